package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"briefing_agent/internal/model"
	"briefing_agent/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite allows a single writer; one pooled connection also keeps a
	// :memory: dsn pointing at one database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// UpsertPreferences inserts or replaces a subscriber's preferences.
func (s *SQLite) UpsertPreferences(ctx context.Context, p *model.UserPreferences) error {
	topics, err := json.Marshal(p.Topics)
	if err != nil {
		return fmt.Errorf("encode topics: %w", err)
	}
	now := time.Now().UTC().Format(timeLayout)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO user_preferences (user_id, email, topics, timezone, send_time, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
		   email = excluded.email,
		   topics = excluded.topics,
		   timezone = excluded.timezone,
		   send_time = excluded.send_time,
		   is_active = excluded.is_active,
		   updated_at = excluded.updated_at`,
		p.UserID, p.Email, string(topics), p.Timezone, p.SendTime, boolToInt(p.IsActive), now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert preferences: %w", err)
	}
	return nil
}

// GetPreferences returns a subscriber's preferences by user ID.
func (s *SQLite) GetPreferences(ctx context.Context, userID string) (*model.UserPreferences, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, email, topics, timezone, send_time, is_active, created_at, updated_at
		 FROM user_preferences WHERE user_id = ?`, userID,
	)
	p, err := scanPreferences(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// ListActiveUsers returns all subscribers with the active flag set.
func (s *SQLite) ListActiveUsers(ctx context.Context) ([]model.UserPreferences, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, email, topics, timezone, send_time, is_active, created_at, updated_at
		 FROM user_preferences WHERE is_active = 1 ORDER BY user_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query active users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []model.UserPreferences
	for rows.Next() {
		p, err := scanPreferences(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *p)
	}
	return users, rows.Err()
}

// RecordArticle records the first sighting of a fingerprint system-wide.
// Re-recording a known fingerprint keeps the original first-seen timestamp.
func (s *SQLite) RecordArticle(ctx context.Context, fingerprint string, firstSeen time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO dedup_articles (fingerprint, first_seen_at) VALUES (?, ?)`,
		fingerprint, firstSeen.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("record article: %w", err)
	}
	return nil
}

// IsDelivered checks whether a fingerprint was already delivered to a user.
func (s *SQLite) IsDelivered(ctx context.Context, fingerprint, userID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM dedup_deliveries WHERE fingerprint = ? AND user_id = ?`,
		fingerprint, userID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check delivered: %w", err)
	}
	return count > 0, nil
}

// MarkDelivered adds a user to a fingerprint's delivered set if absent.
func (s *SQLite) MarkDelivered(ctx context.Context, fingerprint, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO dedup_deliveries (fingerprint, user_id, delivered_at) VALUES (?, ?, ?)`,
		fingerprint, userID, time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	return nil
}

// SeenByAnyUser checks whether any user has ever been delivered the fingerprint.
func (s *SQLite) SeenByAnyUser(ctx context.Context, fingerprint string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM dedup_deliveries WHERE fingerprint = ?`, fingerprint,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check seen: %w", err)
	}
	return count > 0, nil
}

// PutSummary stores a generated summary. Re-putting the same
// (fingerprint, user) pair leaves the first stored summary in place.
func (s *SQLite) PutSummary(ctx context.Context, sum *model.Summary) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO summaries (fingerprint, user_id, title, url, summary, generated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sum.Fingerprint, sum.UserID, sum.Title, sum.URL, sum.Text, sum.GeneratedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("put summary: %w", err)
	}
	return nil
}

// ListSummaries returns all stored summaries for a user, newest first.
func (s *SQLite) ListSummaries(ctx context.Context, userID string) ([]model.Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT fingerprint, user_id, title, url, summary, generated_at
		 FROM summaries WHERE user_id = ? ORDER BY generated_at DESC, fingerprint`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sums []model.Summary
	for rows.Next() {
		var sum model.Summary
		var generated string
		if err := rows.Scan(&sum.Fingerprint, &sum.UserID, &sum.Title, &sum.URL, &sum.Text, &generated); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		sum.GeneratedAt, _ = time.Parse(timeLayout, generated)
		sums = append(sums, sum)
	}
	return sums, rows.Err()
}

// TryConsumeQuota checks and increments all grants in one transaction.
// It returns false and mutates nothing if any grant would exceed its cap.
func (s *SQLite) TryConsumeQuota(ctx context.Context, grants []model.QuotaGrant) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, g := range grants {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO quota_counters (category, bucket, used) VALUES (?, ?, 0)`,
			g.Category, g.Bucket,
		); err != nil {
			return false, fmt.Errorf("init counter %s/%s: %w", g.Category, g.Bucket, err)
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE quota_counters SET used = used + ?
			 WHERE category = ? AND bucket = ? AND used + ? <= ?`,
			g.Amount, g.Category, g.Bucket, g.Amount, g.Cap,
		)
		if err != nil {
			return false, fmt.Errorf("consume quota %s/%s: %w", g.Category, g.Bucket, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			// Denied; the rollback discards the other increments.
			return false, nil
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit quota: %w", err)
	}
	return true, nil
}

// QuotaUsed returns the used count for a counter, zero if it does not exist.
func (s *SQLite) QuotaUsed(ctx context.Context, category, bucket string) (int, error) {
	var used int
	err := s.db.QueryRowContext(ctx,
		`SELECT used FROM quota_counters WHERE category = ? AND bucket = ?`,
		category, bucket,
	).Scan(&used)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query quota: %w", err)
	}
	return used, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scannable interface {
	Scan(dest ...any) error
}

func scanPreferences(row scannable) (*model.UserPreferences, error) {
	var p model.UserPreferences
	var topics string
	var isActive int
	var created, updated sql.NullString
	err := row.Scan(&p.UserID, &p.Email, &topics, &p.Timezone, &p.SendTime, &isActive, &created, &updated)
	if err != nil {
		return nil, fmt.Errorf("scan preferences: %w", err)
	}
	p.IsActive = isActive == 1
	if err := json.Unmarshal([]byte(topics), &p.Topics); err != nil {
		return nil, fmt.Errorf("decode topics: %w", err)
	}
	if created.Valid {
		p.CreatedAt, _ = time.Parse(timeLayout, created.String)
	}
	if updated.Valid {
		p.UpdatedAt, _ = time.Parse(timeLayout, updated.String)
	}
	return &p, nil
}
