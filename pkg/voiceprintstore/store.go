// Package voiceprintstore persists voiceprint records and their
// verification attempts in a relational store, backed by a pure-Go,
// cgo-free SQLite driver so the binary stays statically linkable.
package voiceprintstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/arcvoice/voiceverify/internal/verrors"
)

const schema = `
CREATE TABLE IF NOT EXISTS voiceprints (
	id               TEXT PRIMARY KEY,
	customer_id      TEXT NOT NULL UNIQUE,
	qdrant_vector_id INTEGER NOT NULL UNIQUE,
	is_active        INTEGER NOT NULL DEFAULT 1,
	verification     INTEGER NOT NULL DEFAULT 0,
	last_verified_at TEXT,
	created_at       TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_voiceprints_customer_active
	ON voiceprints (customer_id) WHERE is_active = 1;

CREATE TABLE IF NOT EXISTS verification_attempts (
	id              TEXT PRIMARY KEY,
	voiceprint_id   TEXT NOT NULL REFERENCES voiceprints(id) ON DELETE CASCADE,
	raw_plda_score  REAL NOT NULL,
	as_norm_score   REAL NOT NULL,
	threshold       REAL NOT NULL,
	count           INTEGER NOT NULL DEFAULT 0,
	created_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_attempts_created_at ON verification_attempts (created_at);
CREATE INDEX IF NOT EXISTS idx_attempts_voiceprint_id ON verification_attempts (voiceprint_id);
`

// Record mirrors a row in the voiceprints table.
type Record struct {
	ID             string
	CustomerID     string
	QdrantVectorID int64
	IsActive       bool
	Verification   bool
	LastVerifiedAt *time.Time
	CreatedAt      time.Time
}

// Attempt mirrors a row in the verification_attempts table.
type Attempt struct {
	ID            string
	VoiceprintID  string
	RawPLDAScore  float64
	ASNormScore   float64
	Threshold     float64
	Count         int
	CreatedAt     time.Time
}

// Store wraps a *sql.DB open against a SQLite database file (or :memory:
// for tests).
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// applies the schema. Pass ":memory:" for an ephemeral, in-process store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("voiceprintstore: open %s: %w", path, err)
	}
	// SQLite allows only one writer at a time; a single connection avoids
	// SQLITE_BUSY errors under concurrent requests without needing WAL
	// mode tuning here.
	db.SetMaxOpenConns(1)

	// SQLite enforces foreign keys, and so ON DELETE CASCADE, only when
	// they are switched on for the connection.
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("voiceprintstore: enable foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("voiceprintstore: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// GetActive returns the active voiceprint record for customerID, or
// (nil, nil) if the customer has never enrolled.
func (s *Store) GetActive(ctx context.Context, customerID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, customer_id, qdrant_vector_id, is_active, verification, last_verified_at, created_at
		FROM voiceprints WHERE customer_id = ? AND is_active = 1`, customerID)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, verrors.Wrap(verrors.StoreUnavailable, err, "query active voiceprint")
	}
	return rec, nil
}

// Replace deletes any existing active record for customerID and inserts a
// new one pointing at qdrantVectorID, all within one transaction.
func (s *Store) Replace(ctx context.Context, customerID string, qdrantVectorID int64) (*Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, verrors.Wrap(verrors.StoreUnavailable, err, "begin replace transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM voiceprints WHERE customer_id = ?`, customerID); err != nil {
		return nil, verrors.Wrap(verrors.StoreUnavailable, err, "delete existing voiceprint")
	}

	rec := &Record{
		ID:             uuid.NewString(),
		CustomerID:     customerID,
		QdrantVectorID: qdrantVectorID,
		IsActive:       true,
		Verification:   false,
		CreatedAt:      time.Now().UTC(),
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO voiceprints (id, customer_id, qdrant_vector_id, is_active, verification, last_verified_at, created_at)
		VALUES (?, ?, ?, 1, 0, NULL, ?)`,
		rec.ID, rec.CustomerID, rec.QdrantVectorID, rec.CreatedAt.Format(time.RFC3339Nano),
	); err != nil {
		return nil, verrors.Wrap(verrors.StoreUnavailable, err, "insert voiceprint")
	}

	if err := tx.Commit(); err != nil {
		return nil, verrors.Wrap(verrors.StoreUnavailable, err, "commit replace transaction")
	}
	return rec, nil
}

// MarkVerified sets verification=true and last_verified_at=at for the
// given voiceprint. Once true, verification is never cleared by a
// subsequent failed attempt.
func (s *Store) MarkVerified(ctx context.Context, voiceprintID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE voiceprints SET verification = 1, last_verified_at = ? WHERE id = ?`,
		at.UTC().Format(time.RFC3339Nano), voiceprintID)
	if err != nil {
		return verrors.Wrap(verrors.StoreUnavailable, err, "mark voiceprint verified")
	}
	return nil
}

// AppendAttempt records one verification attempt against voiceprintID.
func (s *Store) AppendAttempt(ctx context.Context, voiceprintID string, raw, normalized, threshold float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO verification_attempts (id, voiceprint_id, raw_plda_score, as_norm_score, threshold, count, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)`,
		uuid.NewString(), voiceprintID, raw, normalized, threshold, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return verrors.Wrap(verrors.StoreUnavailable, err, "append verification attempt")
	}
	return nil
}

// Delete removes customerID's voiceprint, cascading to its attempts. It
// reports whether a row was actually removed; deleting an already-absent
// customer is not an error.
func (s *Store) Delete(ctx context.Context, customerID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM voiceprints WHERE customer_id = ?`, customerID)
	if err != nil {
		return false, verrors.Wrap(verrors.StoreUnavailable, err, "delete voiceprint")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, verrors.Wrap(verrors.StoreUnavailable, err, "read rows affected")
	}
	return n > 0, nil
}

// History returns customerID's verification attempts, newest first.
func (s *Store) History(ctx context.Context, customerID string) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.voiceprint_id, a.raw_plda_score, a.as_norm_score, a.threshold, a.count, a.created_at
		FROM verification_attempts a
		JOIN voiceprints v ON v.id = a.voiceprint_id
		WHERE v.customer_id = ?
		ORDER BY a.created_at DESC`, customerID)
	if err != nil {
		return nil, verrors.Wrap(verrors.StoreUnavailable, err, "query verification history")
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		var createdAt string
		if err := rows.Scan(&a.ID, &a.VoiceprintID, &a.RawPLDAScore, &a.ASNormScore, &a.Threshold, &a.Count, &createdAt); err != nil {
			return nil, verrors.Wrap(verrors.StoreUnavailable, err, "scan verification attempt")
		}
		a.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("voiceprintstore: parse created_at: %w", err)
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, verrors.Wrap(verrors.StoreUnavailable, err, "iterate verification history")
	}
	return attempts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var isActive, verification int
	var lastVerifiedAt sql.NullString
	var createdAt string

	if err := row.Scan(&rec.ID, &rec.CustomerID, &rec.QdrantVectorID, &isActive, &verification, &lastVerifiedAt, &createdAt); err != nil {
		return nil, err
	}

	rec.IsActive = isActive != 0
	rec.Verification = verification != 0
	if lastVerifiedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, lastVerifiedAt.String)
		if err != nil {
			return nil, fmt.Errorf("voiceprintstore: parse last_verified_at: %w", err)
		}
		rec.LastVerifiedAt = &t
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("voiceprintstore: parse created_at: %w", err)
	}
	rec.CreatedAt = t

	return &rec, nil
}
