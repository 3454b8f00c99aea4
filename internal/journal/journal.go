// Package journal records every ledger invocation and its outcome in a
// SQLite database, in logical-clock order. The journal is what replay
// re-executes.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/roach88/perks/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - no schema
// 1 - invocations and completions, op index
const currentSchemaVersion = 1

var migrations = []store.Migration{
	migrateToV1,
}

// Invocation is one call of a named ledger operation.
type Invocation struct {
	ID            string   `json:"id"`
	TxID          string   `json:"tx_id"`
	Op            string   `json:"op"`
	Args          []string `json:"args"`
	Seq           int64    `json:"seq"`
	EngineVersion string   `json:"engine_version"`
	RecordVersion string   `json:"record_version"`
}

// Completion is the outcome of an invocation. ErrorKind is empty on
// success; Result is the canonical JSON result and is nil on failure.
type Completion struct {
	ID           string `json:"id"`
	InvocationID string `json:"invocation_id"`
	ErrorKind    string `json:"error_kind,omitempty"`
	Message      string `json:"message,omitempty"`
	Result       []byte `json:"-"`
	Seq          int64  `json:"seq"`
}

// OK reports whether the invocation succeeded.
func (c Completion) OK() bool {
	return c.ErrorKind == "" && c.Message == ""
}

// Entry pairs an invocation with its completion. Completion is nil when
// the process stopped between the two writes.
type Entry struct {
	Invocation Invocation  `json:"invocation"`
	Completion *Completion `json:"completion,omitempty"`
}

// Journal is a SQLite-backed invocation journal.
type Journal struct {
	db *sql.DB
}

// Open creates or opens a journal database at path.
func Open(path string) (*Journal, error) {
	db, err := store.OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(db, schemaSQL, currentSchemaVersion, migrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// migrateToV1 adds the op lookup index to journals created before it
// was part of the schema.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_invocations_op ON invocations(op, seq)`)
	return err
}

// LastSeq returns the highest seq in the journal, or 0 if it is empty.
// The engine clock resumes from it.
func (j *Journal) LastSeq(ctx context.Context) (int64, error) {
	var invSeq, compSeq int64
	if err := j.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM invocations`).Scan(&invSeq); err != nil {
		return 0, fmt.Errorf("get last seq from invocations: %w", err)
	}
	if err := j.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM completions`).Scan(&compSeq); err != nil {
		return 0, fmt.Errorf("get last seq from completions: %w", err)
	}
	return max(invSeq, compSeq), nil
}
