package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// PurchaseStatus is the lifecycle status of a purchase record.
type PurchaseStatus string

// PurchaseStatusCompleted is the only status this service ever writes.
const PurchaseStatusCompleted PurchaseStatus = "completed"

// Purchase is a purchase record keyed by normalized (lowercased) email.
type Purchase struct {
	Email           string         `json:"email"`
	StripeSessionID string         `json:"stripe_session_id"`
	Status          PurchaseStatus `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
}

// Completed reports whether the record grants access to the reader.
func (p *Purchase) Completed() bool {
	return p != nil && p.Status == PurchaseStatusCompleted
}

// PurchaseStore provides upsert/read operations for purchase records backed by SQLite.
type PurchaseStore struct {
	db *sql.DB
}

// Open opens (or creates) the purchase database in dir.
func Open(dir string) (*PurchaseStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	dbPath := filepath.Join(dir, "purchases.db")
	dsn := dbPath + "?" + url.Values{
		"_pragma": []string{
			"busy_timeout(30000)",
			"journal_mode(WAL)",
			"synchronous(NORMAL)",
		},
	}.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open purchase db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &PurchaseStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PurchaseStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS purchases (
		email             TEXT PRIMARY KEY,
		stripe_session_id TEXT NOT NULL DEFAULT '',
		status            TEXT NOT NULL DEFAULT 'completed',
		created_at        INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init purchase schema: %w", err)
	}
	return nil
}

// Ping checks database connectivity (used for readiness probes).
func (s *PurchaseStore) Ping() error {
	return s.db.Ping()
}

// Close closes the underlying database connection.
func (s *PurchaseStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// UpsertCompleted records a completed purchase for email, overwriting the
// session provenance and timestamp of any existing record. The conflict key is
// the email column, so repeated verifications of the same buyer converge on a
// single row.
func (s *PurchaseStore) UpsertCompleted(ctx context.Context, email, stripeSessionID string, at time.Time) error {
	email = NormalizeEmail(email)
	if email == "" {
		return fmt.Errorf("upsert purchase: empty email")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO purchases (email, stripe_session_id, status, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			stripe_session_id = excluded.stripe_session_id,
			status = excluded.status,
			created_at = excluded.created_at`,
		email, stripeSessionID, string(PurchaseStatusCompleted), at.UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert purchase: %w", err)
	}
	return nil
}

// Get retrieves the purchase record for email, or nil if none exists.
func (s *PurchaseStore) Get(ctx context.Context, email string) (*Purchase, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT email, stripe_session_id, status, created_at
		FROM purchases WHERE email = ?`, NormalizeEmail(email))

	var p Purchase
	var status string
	var createdAt int64
	if err := row.Scan(&p.Email, &p.StripeSessionID, &status, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("read purchase: %w", err)
	}
	p.Status = PurchaseStatus(status)
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &p, nil
}

// NormalizeEmail lowercases and trims an email so lookups and upserts agree on
// the record key regardless of how the address was typed.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
