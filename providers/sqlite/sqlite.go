// Package sqlite provides a durable AuditStore backed by SQLite.
//
// The store owns two tables matching the pipeline's schema contract:
// audit_log (one row per entry plus the integrity hash) and audit_exports
// (chain-of-custody rows). Appends run in a transaction that re-reads the
// stored tail hash and rejects batches whose first entry does not extend it,
// so concurrent writers cannot fork the hash chain even across processes.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hengadev/auditx"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_log (
	seq            INTEGER PRIMARY KEY AUTOINCREMENT,
	id             TEXT NOT NULL UNIQUE,
	timestamp      TEXT NOT NULL,
	level          TEXT NOT NULL,
	source         TEXT NOT NULL,
	action         TEXT NOT NULL,
	message        TEXT NOT NULL,
	resource_type  TEXT NOT NULL,
	resource_id    TEXT NOT NULL,
	user_id        TEXT NOT NULL DEFAULT '',
	entry          TEXT NOT NULL,
	prev_hash      TEXT NOT NULL,
	data_hash      TEXT NOT NULL,
	compliance     INTEGER NOT NULL,
	risk_score     INTEGER NOT NULL,
	retention_days INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_log_timestamp ON audit_log(timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_log_user ON audit_log(user_id);

CREATE TABLE IF NOT EXISTS audit_exports (
	export_id    TEXT PRIMARY KEY,
	requester_id TEXT NOT NULL,
	export_data  TEXT NOT NULL,
	file_path    TEXT NOT NULL DEFAULT '',
	created_at   TEXT NOT NULL,
	expires_at   TEXT
);
`

// Store implements auditx.AuditStore and auditx.ExportStore over a SQLite
// database file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the audit database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", auditx.ErrStorageUnavailable, path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: applying schema: %w", auditx.ErrStorageUnavailable, err)
	}
	return &Store{db: db}, nil
}

// Append implements auditx.AuditStore. The whole batch commits or none of it
// does; the previous-hash check runs inside the same transaction as the
// inserts.
func (s *Store) Append(ctx context.Context, entries []*auditx.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin append: %w", auditx.ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	tail, err := lastHashTx(ctx, tx)
	if err != nil {
		return err
	}
	if entries[0].PrevHash != tail {
		return auditx.NewChainMismatchError(entries[0].PrevHash, tail)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO audit_log (
			id, timestamp, level, source, action, message,
			resource_type, resource_id, user_id, entry,
			prev_hash, data_hash, compliance, risk_score, retention_days
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare append: %w", auditx.ErrStorageUnavailable, err)
	}
	defer stmt.Close()

	prev := tail
	for _, e := range entries {
		if e.PrevHash != prev {
			return auditx.NewChainMismatchError(e.PrevHash, prev)
		}
		raw, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encoding entry %s: %w", e.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			e.ID, e.Timestamp.Format(time.RFC3339Nano), string(e.Level), e.Source,
			string(e.Action), e.Message, e.ResourceType, e.ResourceID, e.UserID,
			string(raw), e.PrevHash, e.DataHash, boolToInt(e.ComplianceImpact),
			e.RiskScore, e.RetentionDays,
		); err != nil {
			return fmt.Errorf("%w: inserting entry %s: %w", auditx.ErrStorageUnavailable, e.ID, err)
		}
		prev = e.DataHash
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit append: %w", auditx.ErrStorageUnavailable, err)
	}
	return nil
}

// LastHash implements auditx.AuditStore.
func (s *Store) LastHash(ctx context.Context) (string, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return "", fmt.Errorf("%w: %w", auditx.ErrStorageUnavailable, err)
	}
	defer tx.Rollback()
	return lastHashTx(ctx, tx)
}

func lastHashTx(ctx context.Context, tx *sql.Tx) (string, error) {
	var hash string
	err := tx.QueryRowContext(ctx,
		`SELECT data_hash FROM audit_log ORDER BY seq DESC LIMIT 1`).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return auditx.GenesisHash, nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: reading chain tail: %w", auditx.ErrStorageUnavailable, err)
	}
	return hash, nil
}

// Query implements auditx.AuditStore. Time bounds are pushed into SQL; the
// remaining criteria run through Filter.Matches on the decoded entries.
func (s *Store) Query(ctx context.Context, f auditx.Filter) ([]*auditx.Entry, error) {
	query := `SELECT entry FROM audit_log`
	var (
		conds []string
		args  []any
	)
	if !f.From.IsZero() {
		conds = append(conds, `timestamp >= ?`)
		args = append(args, f.From.Format(time.RFC3339Nano))
	}
	if !f.To.IsZero() {
		conds = append(conds, `timestamp < ?`)
		args = append(args, f.To.Format(time.RFC3339Nano))
	}
	if f.UserID != "" {
		conds = append(conds, `user_id = ?`)
		args = append(args, f.UserID)
	}
	for i, c := range conds {
		if i == 0 {
			query += ` WHERE ` + c
		} else {
			query += ` AND ` + c
		}
	}
	query += ` ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %w", auditx.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var out []*auditx.Entry
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("%w: scan: %w", auditx.ErrStorageUnavailable, err)
		}
		var e auditx.Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decoding stored entry: %w", err)
		}
		if !f.Matches(&e) {
			continue
		}
		out = append(out, &e)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", auditx.ErrStorageUnavailable, err)
	}
	return out, nil
}

// RecordExport implements auditx.ExportStore.
func (s *Store) RecordExport(ctx context.Context, rec *auditx.ExportRecord) error {
	var expires any
	if !rec.ExpiresAt.IsZero() {
		expires = rec.ExpiresAt.Format(time.RFC3339Nano)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_exports (export_id, requester_id, export_data, file_path, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ExportID, rec.RequesterID, string(rec.Envelope), rec.FilePath,
		rec.CreatedAt.Format(time.RFC3339Nano), expires,
	)
	if err != nil {
		return fmt.Errorf("%w: recording export %s: %w", auditx.ErrStorageUnavailable, rec.ExportID, err)
	}
	return nil
}

// Close implements auditx.AuditStore.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
