// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Driver names registered with database/sql
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// sqlitePragmas are appended to SQLite DSNs that do not set them.
// _txlock=immediate takes the write lock at BEGIN so concurrent bids queue
// on busy_timeout instead of failing on lock upgrade.
var sqlitePragmas = []string{
	"_pragma=foreign_keys(1)",
	"_pragma=busy_timeout(5000)",
	"_pragma=journal_mode(WAL)",
	"_txlock=immediate",
}

// DriverName maps a configured database type to its database/sql driver
func DriverName(dbType string) (string, error) {
	switch dbType {
	case "postgres":
		return DriverPostgres, nil
	case "sqlite", "":
		return DriverSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database type %q", dbType)
	}
}

// Open connects to the configured database and verifies the connection
func Open(dbType, url string) (*sql.DB, error) {
	driver, err := DriverName(dbType)
	if err != nil {
		return nil, err
	}
	dsn := url
	if driver == DriverSQLite {
		dsn = SQLiteDSN(url)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", driver, err)
	}

	return conn, nil
}

// SQLiteDSN adds the connection pragmas the server relies on
func SQLiteDSN(path string) string {
	var missing []string
	for _, p := range sqlitePragmas {
		key := p[:strings.IndexByte(p, '=')+1]
		if strings.HasPrefix(p, "_pragma=") {
			key = p[:strings.IndexByte(p, '(')]
		}
		if !strings.Contains(path, key) {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return path
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(missing, "&")
}

// IsUniqueViolation reports whether err is a unique or primary key
// constraint failure from either driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}

	return false
}
