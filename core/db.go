package core

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type (
	// DBExecutor is satisfied by both *sqlx.DB and *sqlx.Tx.
	DBExecutor interface {
		sqlx.ExtContext

		GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
		SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	}

	// Transactor runs fn as one unit of work.
	// A call nested inside another unit of work runs as a savepoint: an error returned by fn
	// only undoes what fn did, the outer unit of work carries on.
	Transactor interface {
		WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	}
)
