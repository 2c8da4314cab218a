package sqliteutil

import (
	"fmt"
	"strings"
	"time"
)

// Pragmas lists the connection pragmas applied to file backed databases.
type Pragmas struct {
	WAL         bool
	BusyTimeout time.Duration
	Synchronous string
}

// DefaultPragmas suits a small key/value table written by several processes.
var DefaultPragmas = Pragmas{WAL: true, BusyTimeout: 5 * time.Second, Synchronous: "NORMAL"}

// IsMemory reports whether dsn addresses an in-memory database.
func IsMemory(dsn string) bool {
	lower := strings.ToLower(dsn)
	return dsn == ":memory:" || strings.HasPrefix(lower, "file::memory:") || strings.Contains(lower, "mode=memory")
}

// Apply appends the pragmas missing from dsn. In-memory DSNs are returned unchanged.
func (p Pragmas) Apply(dsn string) string {
	if dsn == "" || IsMemory(dsn) {
		return dsn
	}
	lower := strings.ToLower(dsn)
	if p.WAL && !strings.Contains(lower, "_pragma=journal_mode") {
		dsn = addPragma(dsn, "journal_mode(WAL)")
	}
	if ms := p.BusyTimeout.Milliseconds(); ms > 0 && !strings.Contains(lower, "_pragma=busy_timeout") {
		dsn = addPragma(dsn, fmt.Sprintf("busy_timeout(%d)", ms))
	}
	if p.Synchronous != "" && !strings.Contains(lower, "_pragma=synchronous") {
		dsn = addPragma(dsn, "synchronous("+p.Synchronous+")")
	}
	return dsn
}

func addPragma(dsn, pragma string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=" + pragma
}
