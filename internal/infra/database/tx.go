package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Querier is the subset of *sql.DB and *sql.Tx the repositories need.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// TransactionError wraps a failure that ended a unit of work: a driver error on
// begin/commit/savepoint, or the error returned by the unit of work itself.
type TransactionError struct {
	Op        string // begin, savepoint, release, commit, unit of work
	Savepoint string // Set for nested units of work
	Err       error
}

func (e *TransactionError) Error() string {
	if e.Savepoint != "" {
		return fmt.Sprintf("transaction %s (savepoint %s): %v", e.Op, e.Savepoint, e.Err)
	}
	return fmt.Sprintf("transaction %s: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }

type txKey struct{}

// txState is shared by every unit of work nested inside one database transaction.
type txState struct {
	tx    *sql.Tx
	hooks []func(ctx context.Context)
}

// Coordinator runs units of work inside database transactions. A unit of work
// started while another is active on the same context joins it through a
// uniquely named savepoint instead of opening a second transaction.
//
// Every transaction runs at READ COMMITTED. Writers that depend on a prior read
// (booking allocation, payment and contract transitions) take explicit locks.
type Coordinator struct {
	db     *sql.DB
	opts   *sql.TxOptions
	logger *logrus.Entry
}

func NewCoordinator(db *sql.DB, logger *logrus.Entry) *Coordinator {
	return &Coordinator{
		db:     db,
		opts:   &sql.TxOptions{Isolation: sql.LevelReadCommitted},
		logger: logger,
	}
}

// Do runs fn as a unit of work. See Run.
func (c *Coordinator) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Run(ctx, c, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Run executes fn inside a transaction and returns its result.
//
// Outermost call: begin, fn, commit on success, rollback on error or panic.
// Nested call: SAVEPOINT, fn, RELEASE on success, ROLLBACK TO SAVEPOINT on
// error; the enclosing transaction stays open for its own caller to finish.
//
// Errors from fn are returned wrapped in *TransactionError, so errors.Is and
// errors.As still reach the original cause.
func Run[T any](ctx context.Context, c *Coordinator, fn func(ctx context.Context) (T, error)) (T, error) {
	if st, ok := ctx.Value(txKey{}).(*txState); ok {
		return runNested(ctx, c, st, fn)
	}
	return runOutermost(ctx, c, fn)
}

func runOutermost[T any](ctx context.Context, c *Coordinator, fn func(ctx context.Context) (T, error)) (result T, err error) {
	var zero T

	tx, err := c.db.BeginTx(ctx, c.opts)
	if err != nil {
		return zero, &TransactionError{Op: "begin", Err: err}
	}

	st := &txState{tx: tx}
	done := false
	defer func() {
		if done {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			c.logger.WithError(rbErr).Error("Failed to roll back transaction")
		}
	}()

	result, err = fn(context.WithValue(ctx, txKey{}, st))
	if err != nil {
		return zero, wrapUnitOfWork(err, "")
	}

	done = true
	if err := tx.Commit(); err != nil {
		return zero, &TransactionError{Op: "commit", Err: err}
	}

	// Hooks see the caller's context, so whatever they do runs outside the
	// committed transaction.
	for _, hook := range st.hooks {
		hook(ctx)
	}
	return result, nil
}

func runNested[T any](ctx context.Context, c *Coordinator, st *txState, fn func(ctx context.Context) (T, error)) (result T, err error) {
	var zero T
	name := newSavepointName()

	if _, err := st.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return zero, &TransactionError{Op: "savepoint", Savepoint: name, Err: err}
	}

	hookMark := len(st.hooks)
	released := false
	defer func() {
		if released {
			return
		}
		st.hooks = st.hooks[:hookMark]
		if _, rbErr := st.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			c.logger.WithError(rbErr).WithField("savepoint", name).Error("Failed to roll back to savepoint")
		}
	}()

	result, err = fn(ctx)
	if err != nil {
		return zero, wrapUnitOfWork(err, name)
	}

	if _, err := st.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return zero, &TransactionError{Op: "release", Savepoint: name, Err: err}
	}
	released = true
	return result, nil
}

// AfterCommit registers hook to run once the outermost transaction on ctx has
// committed. Hooks registered inside a savepoint that is rolled back are
// dropped, as are all hooks of a transaction that is rolled back. Without an
// active transaction the hook runs immediately.
func (c *Coordinator) AfterCommit(ctx context.Context, hook func(ctx context.Context)) {
	st, ok := ctx.Value(txKey{}).(*txState)
	if !ok {
		hook(ctx)
		return
	}
	st.hooks = append(st.hooks, hook)
}

// InTransaction reports whether ctx carries an active unit of work.
func InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*txState)
	return ok
}

// conn returns the transaction carried by ctx, or db when there is none.
func conn(ctx context.Context, db *sql.DB) Querier {
	if st, ok := ctx.Value(txKey{}).(*txState); ok {
		return st.tx
	}
	return db
}

func wrapUnitOfWork(err error, savepoint string) error {
	var txErr *TransactionError
	if errors.As(err, &txErr) {
		return err
	}
	return &TransactionError{Op: "unit of work", Savepoint: savepoint, Err: err}
}

func newSavepointName() string {
	return "sp_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
