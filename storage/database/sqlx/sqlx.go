// Package sqlxrepos implements the repositories on Postgres with sqlx and squirrel.
package sqlxrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/NoheilaRamdani/sae401/storage/database"
)

const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type repository struct {
	db *sqlx.DB
}

func (repo repository) exec(ctx context.Context) sqlx.ExtContext {
	return database.Executor(ctx, repo.db)
}

func (repo repository) get(ctx context.Context, dest interface{}, b sq.Sqlizer) error {
	q, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.GetContext(ctx, repo.exec(ctx), dest, q, args...)
}

func (repo repository) selectAll(ctx context.Context, dest interface{}, b sq.Sqlizer) error {
	q, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.SelectContext(ctx, repo.exec(ctx), dest, q, args...)
}

func (repo repository) run(ctx context.Context, b sq.Sqlizer) (sql.Result, error) {
	q, args, err := b.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	return repo.exec(ctx).ExecContext(ctx, q, args...)
}

// count runs SELECT COUNT(*) with the FROM and WHERE clauses of b, which must not be ordered yet.
func (repo repository) count(ctx context.Context, b sq.SelectBuilder) (int, error) {
	var n int
	err := repo.get(ctx, &n, b.RemoveColumns().Columns("COUNT(*)").RemoveLimit().RemoveOffset())
	return n, err
}

// trapNoRowsErr maps psql "no rows" err to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func pqErrCode(err error) string {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		return string(pqErr.Code)
	}
	return ""
}

// validID reports whether id can be compared against a UUID column.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// anyOf matches column against the given ids. A non-nil empty list matches nothing.
func anyOf(column string, ids []string) sq.Sqlizer {
	if len(ids) == 0 {
		return sq.Expr("FALSE")
	}
	return sq.Expr(column+" = ANY(?)", pq.Array(ids))
}
