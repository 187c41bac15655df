package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/carosello75/courseconnect/core"
)

type (
	txKey struct{}

	txState struct {
		tx    *sqlx.Tx
		depth int
	}

	// Transactor runs units of work on a postgres database.
	// The transaction travels in the context; repositories pick it up through Executor.
	Transactor struct {
		db *sqlx.DB
	}
)

var _ core.Transactor = (*Transactor)(nil)

func NewTransactor(db *sqlx.DB) *Transactor {
	return &Transactor{db: db}
}

// Executor returns the transaction bound to ctx, or db outside of a unit of work.
func Executor(ctx context.Context, db *sqlx.DB) core.DBExecutor {
	if st, ok := ctx.Value(txKey{}).(*txState); ok {
		return st.tx
	}
	return db
}

// WithinTx runs fn in a transaction committed when fn returns nil.
// Nested calls run in a savepoint.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if st, ok := ctx.Value(txKey{}).(*txState); ok {
		return t.withinSavepoint(ctx, st, fn)
	}

	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = errors.Wrapf(err, "rolling back transaction: %v", rbErr)
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = errors.Wrap(cErr, "committing transaction")
		}
	}()
	return fn(context.WithValue(ctx, txKey{}, &txState{tx: tx}))
}

func (t *Transactor) withinSavepoint(ctx context.Context, st *txState, fn func(ctx context.Context) error) (err error) {
	st.depth++
	sp := fmt.Sprintf("sp_%d", st.depth)
	defer func() { st.depth-- }()

	if _, err = st.tx.ExecContext(ctx, "SAVEPOINT "+sp); err != nil {
		return errors.Wrap(err, "creating savepoint")
	}
	defer func() {
		if p := recover(); p != nil {
			_, _ = st.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+sp)
			panic(p)
		}
		if err != nil {
			if _, rbErr := st.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+sp); rbErr != nil {
				err = errors.Wrapf(err, "rolling back savepoint: %v", rbErr)
			}
			return
		}
		if _, rlErr := st.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+sp); rlErr != nil {
			err = errors.Wrap(rlErr, "releasing savepoint")
		}
	}()
	return fn(ctx)
}
