package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/NandhanI20020/IMS-sub000/pkg/database"
	"github.com/jmoiron/sqlx"
)

// PostgresStore is the Store backed by PostgreSQL through sqlx.
type PostgresStore struct {
	reads
	db *database.DB
}

// NewPostgresStore creates a new Postgres backed store
func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{reads: reads{q: db.DB}, db: db}
}

// UnitOfWork runs fn inside a read-committed transaction.
func (s *PostgresStore) UnitOfWork(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	err := s.db.Transaction(ctx, func(sqlTx *sqlx.Tx) error {
		return fn(ctx, &pgTx{reads: reads{q: sqlTx}, tx: sqlTx})
	})
	return database.MapError(err, "record", "transaction failed")
}

// reads holds queries that are valid both inside and outside a transaction.
type reads struct {
	q sqlx.ExtContext
}

// pgTx implements Tx on an open sqlx transaction.
type pgTx struct {
	reads
	tx *sqlx.Tx
}

// where accumulates positional predicates for dynamic queries.
type where struct {
	clauses []string
	args    []any
}

// add appends a predicate. format receives the new argument's position.
func (w *where) add(format string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(format, len(w.args)))
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// page appends LIMIT/OFFSET placeholders and returns the SQL suffix and args.
func (w *where) page(limit, offset int) (string, []any) {
	args := append(append([]any{}, w.args...), limit, offset)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args)), args
}

var (
	_ Store     = (*PostgresStore)(nil)
	_ UserCache = (*PostgresStore)(nil)
	_ Tx        = (*pgTx)(nil)
)
