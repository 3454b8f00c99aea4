package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

const entryColumns = `
	i.id, i.tx_id, i.op, i.args, i.seq, i.engine_version, i.record_version,
	c.id, c.error_kind, c.message, c.result, c.seq
`

// ReadAll returns every entry ordered by invocation seq.
func (j *Journal) ReadAll(ctx context.Context) ([]Entry, error) {
	return j.query(ctx, `
		SELECT `+entryColumns+`
		FROM invocations i
		LEFT JOIN completions c ON c.invocation_id = i.id
		ORDER BY i.seq ASC, i.id COLLATE BINARY ASC
	`)
}

// ReadOp returns the entries of one operation ordered by seq.
func (j *Journal) ReadOp(ctx context.Context, op string) ([]Entry, error) {
	return j.query(ctx, `
		SELECT `+entryColumns+`
		FROM invocations i
		LEFT JOIN completions c ON c.invocation_id = i.id
		WHERE i.op = ?
		ORDER BY i.seq ASC, i.id COLLATE BINARY ASC
	`, op)
}

// ReadTx returns the entry recorded under a transaction ID.
// Returns sql.ErrNoRows if not found.
func (j *Journal) ReadTx(ctx context.Context, txID string) (Entry, error) {
	entries, err := j.query(ctx, `
		SELECT `+entryColumns+`
		FROM invocations i
		LEFT JOIN completions c ON c.invocation_id = i.id
		WHERE i.tx_id = ?
	`, txID)
	if err != nil {
		return Entry{}, err
	}
	if len(entries) == 0 {
		return Entry{}, sql.ErrNoRows
	}
	return entries[0], nil
}

func (j *Journal) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return entries, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e       Entry
		args    string
		compID  sql.NullString
		kind    sql.NullString
		message sql.NullString
		result  sql.NullString
		compSeq sql.NullInt64
	)
	inv := &e.Invocation
	err := rows.Scan(
		&inv.ID, &inv.TxID, &inv.Op, &args, &inv.Seq, &inv.EngineVersion, &inv.RecordVersion,
		&compID, &kind, &message, &result, &compSeq,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("scan journal entry: %w", err)
	}
	if err := json.Unmarshal([]byte(args), &inv.Args); err != nil {
		return Entry{}, fmt.Errorf("decode args of %s: %w", inv.ID, err)
	}

	if compID.Valid {
		c := &Completion{
			ID:           compID.String,
			InvocationID: inv.ID,
			ErrorKind:    kind.String,
			Message:      message.String,
			Seq:          compSeq.Int64,
		}
		if result.Valid {
			c.Result = []byte(result.String)
		}
		e.Completion = c
	}
	return e, nil
}
