package testutil

import (
	"context"
	"database/sql/driver"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/NandhanI20020/IMS-sub000/internal/inventory/notify"
	"github.com/NandhanI20020/IMS-sub000/internal/inventory/repository"
	"github.com/jmoiron/sqlx"
)

// MockDB wraps sqlmock for easier testing
type MockDB struct {
	DB   *sqlx.DB
	Mock sqlmock.Sqlmock
}

// NewMockDB creates a new mock database for unit testing.
// Use this when you want to test repository SQL without a real database.
//
// Usage:
//
//	mockDB := testutil.NewMockDB(t)
//	defer mockDB.Close()
//
//	mockDB.ExpectQuery("SELECT").WillReturnRows(...)
//
//	store := repository.NewPostgresStore(database.Wrap(mockDB.DB, log))
func NewMockDB(t *testing.T) *MockDB {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	return &MockDB{
		DB:   sqlx.NewDb(db, "postgres"),
		Mock: mock,
	}
}

// Close closes the mock database connection
func (m *MockDB) Close() error {
	return m.DB.Close()
}

// ExpectQuery sets up an expected query
func (m *MockDB) ExpectQuery(query string) *sqlmock.ExpectedQuery {
	return m.Mock.ExpectQuery(regexp.QuoteMeta(query))
}

// ExpectExec sets up an expected exec
func (m *MockDB) ExpectExec(query string) *sqlmock.ExpectedExec {
	return m.Mock.ExpectExec(regexp.QuoteMeta(query))
}

// ExpectBegin sets up an expected transaction begin
func (m *MockDB) ExpectBegin() *sqlmock.ExpectedBegin {
	return m.Mock.ExpectBegin()
}

// ExpectCommit sets up an expected commit
func (m *MockDB) ExpectCommit() *sqlmock.ExpectedCommit {
	return m.Mock.ExpectCommit()
}

// ExpectRollback sets up an expected rollback
func (m *MockDB) ExpectRollback() *sqlmock.ExpectedRollback {
	return m.Mock.ExpectRollback()
}

// ExpectationsWereMet verifies all expectations were met
func (m *MockDB) ExpectationsWereMet(t *testing.T) {
	t.Helper()
	if err := m.Mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled mock expectations: %v", err)
	}
}

// MockRows creates a new mock rows object
func MockRows(columns ...string) *sqlmock.Rows {
	return sqlmock.NewRows(columns)
}

// AnyTime is a matcher for any time.Time value
type AnyTime struct{}

// Match satisfies the sqlmock.Argument interface
func (a AnyTime) Match(v driver.Value) bool {
	_, ok := v.(time.Time)
	return ok
}

var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// AnyUUID is a matcher for any UUID string
type AnyUUID struct{}

// Match satisfies the sqlmock.Argument interface
func (a AnyUUID) Match(v driver.Value) bool {
	s, ok := v.(string)
	return ok && uuidPattern.MatchString(s)
}

// RecordingBroadcaster records broadcast calls. Safe for concurrent use.
type RecordingBroadcaster struct {
	mu        sync.Mutex
	Updates   []repository.InventoryCell
	Movements []*repository.StockMovement
	Alerts    []repository.ReorderAlert
	Failed    []repository.StockTransfer
	Err       error
}

// NewRecordingBroadcaster creates a new recording broadcaster
func NewRecordingBroadcaster() *RecordingBroadcaster {
	return &RecordingBroadcaster{}
}

func (b *RecordingBroadcaster) BroadcastInventoryUpdate(ctx context.Context, cell *repository.InventoryCell, movement *repository.StockMovement) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Updates = append(b.Updates, *cell)
	b.Movements = append(b.Movements, movement)
	return b.Err
}

func (b *RecordingBroadcaster) BroadcastLowStockAlert(ctx context.Context, alert *repository.ReorderAlert) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Alerts = append(b.Alerts, *alert)
	return b.Err
}

func (b *RecordingBroadcaster) BroadcastTransferFailed(ctx context.Context, transfer *repository.StockTransfer) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Failed = append(b.Failed, *transfer)
	return b.Err
}

// UpdateCount returns the number of inventory updates broadcast.
func (b *RecordingBroadcaster) UpdateCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Updates)
}

// AlertCount returns the number of reorder alerts broadcast.
func (b *RecordingBroadcaster) AlertCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Alerts)
}

// SentMail is one recorded low-stock mail.
type SentMail struct {
	Recipients    []string
	Items         []notify.LowStockItem
	WarehouseName string
}

// RecordingMailer records low-stock mails. Safe for concurrent use.
type RecordingMailer struct {
	mu   sync.Mutex
	Sent []SentMail
	Err  error
}

// NewRecordingMailer creates a new recording mailer
func NewRecordingMailer() *RecordingMailer {
	return &RecordingMailer{}
}

func (m *RecordingMailer) SendLowStockAlert(ctx context.Context, recipients []string, items []notify.LowStockItem, warehouseName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, SentMail{Recipients: recipients, Items: items, WarehouseName: warehouseName})
	return m.Err
}

// Count returns the number of mails sent.
func (m *RecordingMailer) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// RecordingQueue records reorder enqueues. Full makes every Enqueue fail.
type RecordingQueue struct {
	mu   sync.Mutex
	Keys []repository.CellKey
	Full bool
}

func (q *RecordingQueue) Enqueue(key repository.CellKey) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.Full {
		return false
	}
	q.Keys = append(q.Keys, key)
	return true
}

// Len returns the number of keys enqueued.
func (q *RecordingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.Keys)
}
