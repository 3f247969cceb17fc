package sqlite

import "satload/internal/schema"

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:satload.db?_pragma=busy_timeout(5000)"
	//   ":memory:"
	DSN string

	// Table is the destination table. FQN values such as "main.ANEXO_1A"
	// are accepted and quoted segment by segment.
	Table string

	Schema schema.Schema
}
