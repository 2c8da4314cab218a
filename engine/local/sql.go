package local

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/viant/mmkv/db/sqliteutil"
	_ "modernc.org/sqlite"
)

const tableName = "mmkv_local"

type dialect struct {
	create    string
	upsert    string
	get       string
	remove    string
	keysRange string
	keysAll   string
}

var dialects = map[string]dialect{
	"sqlite": {
		create:    `CREATE TABLE IF NOT EXISTS ` + tableName + ` (k TEXT PRIMARY KEY, v TEXT NOT NULL)`,
		upsert:    `INSERT INTO ` + tableName + `(k, v) VALUES(?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v`,
		get:       `SELECT v FROM ` + tableName + ` WHERE k = ?`,
		remove:    `DELETE FROM ` + tableName + ` WHERE k = ?`,
		keysRange: `SELECT k FROM ` + tableName + ` WHERE k >= ? AND k < ? ORDER BY k`,
		keysAll:   `SELECT k FROM ` + tableName + ` ORDER BY k`,
	},
	// Range scans rely on byte order, so keys use the "C" collation.
	"postgres": {
		create:    `CREATE TABLE IF NOT EXISTS ` + tableName + ` (k TEXT COLLATE "C" PRIMARY KEY, v TEXT NOT NULL)`,
		upsert:    `INSERT INTO ` + tableName + `(k, v) VALUES($1, $2) ON CONFLICT (k) DO UPDATE SET v = EXCLUDED.v`,
		get:       `SELECT v FROM ` + tableName + ` WHERE k = $1`,
		remove:    `DELETE FROM ` + tableName + ` WHERE k = $1`,
		keysRange: `SELECT k FROM ` + tableName + ` WHERE k COLLATE "C" >= $1 AND k COLLATE "C" < $2 ORDER BY k COLLATE "C"`,
		keysAll:   `SELECT k FROM ` + tableName + ` ORDER BY k COLLATE "C"`,
	},
	// VARBINARY keeps keys case sensitive and byte ordered.
	"mysql": {
		create:    `CREATE TABLE IF NOT EXISTS ` + tableName + ` (k VARBINARY(512) PRIMARY KEY, v LONGTEXT NOT NULL)`,
		upsert:    `INSERT INTO ` + tableName + `(k, v) VALUES(?, ?) ON DUPLICATE KEY UPDATE v = VALUES(v)`,
		get:       `SELECT v FROM ` + tableName + ` WHERE k = BINARY ?`,
		remove:    `DELETE FROM ` + tableName + ` WHERE k = BINARY ?`,
		keysRange: `SELECT k FROM ` + tableName + ` WHERE k >= BINARY ? AND k < BINARY ? ORDER BY k`,
		keysAll:   `SELECT k FROM ` + tableName + ` ORDER BY k`,
	},
}

// SQLStorage is a durable Storage backed by a single SQL table.
type SQLStorage struct {
	db      *sql.DB
	dialect dialect
}

// OpenSQL opens (or creates) the storage table. An empty driver is detected from the DSN.
func OpenSQL(driver, dsn string) (*SQLStorage, error) {
	if driver == "" {
		detected, ok := DetectDriver(dsn)
		if !ok {
			return nil, fmt.Errorf("local: unable to detect sql driver from dsn")
		}
		driver = detected
	}
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("local: unsupported sql driver %q", driver)
	}
	if driver == "sqlite" {
		dsn = sqliteutil.DefaultPragmas.Apply(dsn)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(context.Background(), d.create); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("local: create table: %w", err)
	}
	return &SQLStorage{db: db, dialect: d}, nil
}

// DetectDriver guesses the sql driver name from a DSN.
func DetectDriver(dsn string) (string, bool) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return "", false
	}
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return "postgres", true
	case strings.HasPrefix(lower, "file:"), lower == ":memory:", strings.HasSuffix(lower, ".sqlite"), strings.HasSuffix(lower, ".db"):
		return "sqlite", true
	case strings.Contains(lower, "@tcp("), strings.Contains(lower, "@unix("):
		return "mysql", true
	}
	return "", false
}

func (s *SQLStorage) GetItem(key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(context.Background(), s.dialect.get, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *SQLStorage) SetItem(key, value string) error {
	_, err := s.db.ExecContext(context.Background(), s.dialect.upsert, key, value)
	return err
}

func (s *SQLStorage) RemoveItem(key string) (bool, error) {
	res, err := s.db.ExecContext(context.Background(), s.dialect.remove, key)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLStorage) Keys(prefix string) ([]string, error) {
	var rows *sql.Rows
	var err error
	if prefix == "" {
		rows, err = s.db.QueryContext(context.Background(), s.dialect.keysAll)
	} else {
		rows, err = s.db.QueryContext(context.Background(), s.dialect.keysRange, prefix, prefixEnd(prefix))
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Close closes the underlying database.
func (s *SQLStorage) Close() error {
	return s.db.Close()
}

// prefixEnd returns the smallest string greater than every string with prefix.
func prefixEnd(prefix string) string {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1])
		}
	}
	return string(append([]byte(prefix), 0xff))
}

var _ Storage = (*SQLStorage)(nil)
