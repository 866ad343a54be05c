// Package libdbexec provides a thin database-agnostic execution layer.
// It hides the difference between running statements on a pool and inside
// a transaction, and translates driver errors into sentinel errors that
// callers can match with errors.Is.
package libdbexec

import (
	"context"
	"database/sql"
	"errors"
)

var (
	ErrNotFound             = errors.New("libdb: not found")
	ErrTxFailed             = errors.New("libdb: transaction failed")
	ErrUniqueViolation      = errors.New("libdb: unique constraint violation")
	ErrForeignKeyViolation  = errors.New("libdb: foreign key constraint violation")
	ErrNotNullViolation     = errors.New("libdb: not-null constraint violation")
	ErrCheckViolation       = errors.New("libdb: check constraint violation")
	ErrConstraintViolation  = errors.New("libdb: constraint violation")
	ErrDeadlockDetected     = errors.New("libdb: deadlock detected")
	ErrSerializationFailure = errors.New("libdb: serialization failure")
	ErrLockNotAvailable     = errors.New("libdb: lock not available")
	ErrQueryCanceled        = errors.New("libdb: query canceled")
	ErrDataTruncation       = errors.New("libdb: data truncation")
	ErrNumericOutOfRange    = errors.New("libdb: numeric value out of range")
	ErrInvalidInputSyntax   = errors.New("libdb: invalid input syntax")
	ErrUndefinedColumn      = errors.New("libdb: undefined column")
	ErrUndefinedTable       = errors.New("libdb: undefined table")
	ErrMaxRowsReached       = errors.New("libdb: max rows reached")
)

// QueryRower mirrors *sql.Row so error translation can happen inside Scan.
type QueryRower interface {
	Scan(dest ...any) error
}

// Exec runs statements either directly on the pool or inside a transaction,
// depending on how it was obtained from the DBManager.
type Exec interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) QueryRower
}

// CommitTx commits the transaction associated with an Exec obtained from
// WithTransaction. The context is checked before the commit is attempted.
type CommitTx func(ctx context.Context) error

// ReleaseTx rolls the transaction back unless it was committed. Safe to defer.
type ReleaseTx func() error

// DBManager owns a database connection pool for one driver.
type DBManager interface {
	WithoutTransaction() Exec
	WithTransaction(ctx context.Context, onRollback ...func()) (Exec, CommitTx, ReleaseTx, error)
	Close() error
}
