package lease_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/NandhanI20020/IMS-sub000/internal/inventory/lease"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryAcquire(t *testing.T) {
	table := lease.NewTable()

	release, ok := table.TryAcquire("p1:w1")
	require.True(t, ok)
	assert.True(t, table.Held("p1:w1"))

	_, ok = table.TryAcquire("p1:w1")
	assert.False(t, ok, "second acquire on a held key must fail")

	other, ok := table.TryAcquire("p1:w2")
	require.True(t, ok, "other keys are independent")
	other()

	release()
	release()
	assert.False(t, table.Held("p1:w1"))
	assert.Zero(t, table.Len())

	again, ok := table.TryAcquire("p1:w1")
	require.True(t, ok)
	again()
}

func TestTryAcquire_ZeroValue(t *testing.T) {
	var table lease.Table
	release, ok := table.TryAcquire("k")
	require.True(t, ok)
	release()
}

func TestTryAcquire_ExactlyOneWinner(t *testing.T) {
	table := lease.NewTable()

	const workers = 32
	var winners atomic.Int32
	var attempted, done sync.WaitGroup
	start := make(chan struct{})
	hold := make(chan struct{})

	for i := 0; i < workers; i++ {
		attempted.Add(1)
		done.Add(1)
		go func() {
			defer done.Done()
			<-start
			release, ok := table.TryAcquire("hot")
			attempted.Done()
			if ok {
				winners.Add(1)
				<-hold
				release()
			}
		}()
	}

	close(start)
	attempted.Wait()
	assert.True(t, table.Held("hot"))
	close(hold)
	done.Wait()

	assert.Equal(t, int32(1), winners.Load())
	assert.False(t, table.Held("hot"))
}
