package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	dErrors "alumnus/pkg/domain-errors"
	"alumnus/pkg/platform/sentinel"
	txcontext "alumnus/pkg/platform/tx"
)

// TxRunner runs callbacks inside a serializable transaction carried on the
// context (see pkg/platform/tx). Stores pick it up through tx.Executor.
type TxRunner struct {
	db      *sql.DB
	timeout time.Duration
	observe func(outcome string, d time.Duration)
}

// TxOption configures a TxRunner.
type TxOption func(*TxRunner)

// WithTimeout overrides the default transaction timeout.
func WithTimeout(d time.Duration) TxOption {
	return func(r *TxRunner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithObserver receives the outcome ("commit", "rollback") and duration of
// every transaction.
func WithObserver(fn func(outcome string, d time.Duration)) TxOption {
	return func(r *TxRunner) {
		r.observe = fn
	}
}

func NewTxRunner(db *sql.DB, opts ...TxOption) *TxRunner {
	r := &TxRunner{db: db, timeout: txcontext.DefaultTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *TxRunner) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) (err error) {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r.observe == nil {
			return
		}
		outcome := "commit"
		if err != nil {
			outcome = "rollback"
		}
		r.observe(outcome, time.Since(start))
	}()

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return classify(err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

// classify marks serialization failures as unavailable so services report a
// retryable storage error instead of an internal one.
func classify(err error) error {
	if IsRetryable(err) && !errors.Is(err, sentinel.ErrUnavailable) {
		return fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
	}
	return err
}
