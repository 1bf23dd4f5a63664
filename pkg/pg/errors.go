package pg

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNoConnString = errors.New("pg: PG_CONN_URL is empty")
	ErrBadConfig    = errors.New("pg: cannot parse connection string")
	ErrUnreachable  = errors.New("pg: database unreachable")
	ErrMigrate      = errors.New("pg: migration failed")
)

// SQLSTATE codes the flag and audit stores react to.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

func IsNotFoundError(err error) bool { return errors.Is(err, pgx.ErrNoRows) }

func IsDuplicateKeyError(err error) bool { return sqlState(err) == codeUniqueViolation }

func IsForeignKeyViolation(err error) bool { return sqlState(err) == codeForeignKeyViolation }

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
