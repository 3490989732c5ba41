package services

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation    = "23505"
	mysqlDuplicateEntry  = 1062
	sqliteUniqueFailText = "unique constraint failed"
)

// isUniqueConstraintError reports whether err is a uniqueness violation. gorm
// translates most drivers to ErrDuplicatedKey; the driver errors are checked
// for statements issued outside the translator, e.g. raw Exec.
func isUniqueConstraintError(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return true
	}

	if pgErr := (*pgconn.PgError)(nil); errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	if myErr := (*mysql.MySQLError)(nil); errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	return strings.Contains(strings.ToLower(err.Error()), sqliteUniqueFailText)
}
