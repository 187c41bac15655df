package sqlxrepos

import (
	"context"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/carosello75/courseconnect/core"
	"github.com/carosello75/courseconnect/storage/database"
)

const uniqueViolation = "23505"

type repository struct {
	db *sqlx.DB
}

// exec returns the transaction of the current unit of work, if any.
func (repo repository) exec(ctx context.Context) core.DBExecutor {
	return database.Executor(ctx, repo.db)
}

// isUniqueViolation reports whether err violates the named unique constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation && (constraint == "" || pqErr.Constraint == constraint)
	}
	return false
}

// in expands query for slice arguments and rebinds it for postgres.
func in(exec core.DBExecutor, query string, args ...interface{}) (string, []interface{}, error) {
	q, params, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return exec.Rebind(q), params, nil
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
