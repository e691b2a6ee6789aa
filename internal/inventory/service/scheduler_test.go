package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/NandhanI20020/IMS-sub000/internal/inventory/repository"
	"github.com/NandhanI20020/IMS-sub000/internal/inventory/service"
	"github.com/NandhanI20020/IMS-sub000/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlertScheduler_InvalidSchedule(t *testing.T) {
	e := newEnv(t)
	s := service.NewAlertScheduler(e.monitor, service.SchedulerOptions{SweepSchedule: "every now and then"}, logger.Nop())

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid sweep schedule")
}

func TestAlertScheduler_RunSweepAndPrune(t *testing.T) {
	e := lowStockEnv(t)
	ctx := context.Background()
	s := service.NewAlertScheduler(e.monitor, service.SchedulerOptions{}, logger.Nop())

	alert, err := e.monitor.Check(ctx, e.key(e.a()))
	require.NoError(t, err)
	require.NotNil(t, alert)

	e.receive(t, e.a(), 10, "5.00")
	s.RunSweep(ctx)

	got, err := e.mem.GetAlert(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.AlertResolved, got.Status)

	e.clock.Advance(2 * service.DefaultThrottleWindow)
	s.RunPrune()
	assert.Zero(t, e.monitor.ThrottleSize())
}

func TestAlertScheduler_StartStop(t *testing.T) {
	e := lowStockEnv(t)
	s := service.NewAlertScheduler(e.monitor, service.SchedulerOptions{
		SweepSchedule: "@every 1s",
		PruneSchedule: "@every 1h",
	}, logger.Nop())

	alert, err := e.monitor.Check(context.Background(), e.key(e.a()))
	require.NoError(t, err)
	require.NotNil(t, alert)
	e.receive(t, e.a(), 10, "5.00")

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool {
		got, err := e.mem.GetAlert(context.Background(), alert.ID)
		return err == nil && got.Status == repository.AlertResolved
	}, 5*time.Second, 50*time.Millisecond)
}
