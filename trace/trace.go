// Package trace provides transparent SQL tracing for modernc.org/sqlite.
//
// It registers a "sqlite-trace" driver that wraps the standard "sqlite"
// driver, intercepting every Exec and Query at the database/sql/driver level.
// No application code changes are needed beyond switching the driver name:
//
//	import _ "github.com/induslabs/pulse/trace" // registers "sqlite-trace"
//	db, _ := dbopen.Open("data/pulse.db", dbopen.WithTrace())
//
// Every query is logged via slog with adaptive levels (Debug, Warn >100ms,
// Error on failure). Trace IDs are read from context via kit.GetRequestID
// for request correlation. The daemon enables this behind the -sql-trace flag.
package trace

import (
	"database/sql"

	sqlite "modernc.org/sqlite"
)

func init() {
	sql.Register("sqlite-trace", &TracingDriver{
		Driver: &sqlite.Driver{},
	})
}
