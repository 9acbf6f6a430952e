package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	mssql "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"
)

// dialect describes how the store talks to one SQL backend: the
// database/sql driver it opens, the goose dialect its migrations run under,
// and the directory of embedded migrations.
type dialect struct {
	name         string
	driverName   string
	gooseDialect string
	singleConn   bool
}

var dialects = map[string]dialect{
	"sqlite": {
		name:         "sqlite",
		driverName:   "sqlite",
		gooseDialect: "sqlite3",
		singleConn:   true, // SQLite doesn't support concurrent writes
	},
	"postgres": {
		name:         "postgres",
		driverName:   "pgx",
		gooseDialect: "postgres",
	},
	"mysql": {
		name:         "mysql",
		driverName:   "mysql",
		gooseDialect: "mysql",
	},
	"sqlserver": {
		name:         "sqlserver",
		driverName:   "sqlserver",
		gooseDialect: "mssql",
	},
}

var driverAliases = map[string]string{
	"":        "sqlite",
	"sqlite3": "sqlite",
	"pgx":     "postgres",
	"mssql":   "sqlserver",
}

// dialectFor resolves a configured driver name to its dialect.
func dialectFor(driver string) (dialect, error) {
	name := strings.ToLower(strings.TrimSpace(driver))
	if alias, ok := driverAliases[name]; ok {
		name = alias
	}
	d, ok := dialects[name]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported driver: %s (available: %v)", driver, Drivers())
	}
	return d, nil
}

// Drivers returns the names of the supported store drivers.
func Drivers() []string {
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (d dialect) migrationDir() string {
	return "migrations/" + d.name
}

// isUniqueViolation reports whether err is a UNIQUE constraint violation
// from any of the supported drivers.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}

	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return msErr.Number == 2627 || msErr.Number == 2601
	}

	// modernc.org/sqlite reports constraint failures by message.
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique constraint") ||
		strings.Contains(lower, "duplicate key") ||
		strings.Contains(lower, "duplicate entry")
}
