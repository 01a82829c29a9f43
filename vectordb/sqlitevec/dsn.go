package sqlitevec

import (
	"fmt"
	"strings"
)

// withPragmas appends WAL and busy-timeout pragmas to a file DSN when the
// caller did not set them. In-memory databases are left untouched.
func withPragmas(dsn string, busyTimeoutMS int) string {
	if dsn == "" {
		return dsn
	}
	lower := strings.ToLower(dsn)
	if dsn == ":memory:" || strings.HasPrefix(lower, "file::memory:") {
		return dsn
	}
	if !strings.Contains(lower, "_pragma=journal_mode") {
		dsn = addPragma(dsn, "journal_mode(WAL)")
	}
	if busyTimeoutMS > 0 && !strings.Contains(lower, "_pragma=busy_timeout") {
		dsn = addPragma(dsn, fmt.Sprintf("busy_timeout(%d)", busyTimeoutMS))
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
