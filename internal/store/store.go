package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/placemate/mailsentry/internal/mail"
)

//go:embed schema.sql
var schemaSQL string

// Store is the durable collaborator for recipients, checkpoints, the
// notification ledger, message history, and failure-alert state.
type Store struct {
	DB *sql.DB
}

// Recipient is a user eligible for sweeping
type Recipient struct {
	ID                   string
	ChatID               int64
	NotificationsEnabled bool
}

// Open opens or creates the sentry database
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{DB: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.DB.Close()
}

// UpsertRecipient creates or updates a recipient
func (s *Store) UpsertRecipient(ctx context.Context, r Recipient) error {
	now := time.Now().Unix()
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO recipients (id, chat_id, notifications_enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			chat_id = excluded.chat_id,
			notifications_enabled = excluded.notifications_enabled,
			updated_at = excluded.updated_at
	`, r.ID, r.ChatID, boolToInt(r.NotificationsEnabled), now, now)

	if err != nil {
		return fmt.Errorf("failed to upsert recipient: %w", err)
	}
	return nil
}

// SetProviderEnabled enables or disables a provider account for a recipient
func (s *Store) SetProviderEnabled(ctx context.Context, recipientID string, provider mail.Provider, enabled bool) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO provider_accounts (recipient_id, provider, enabled, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(recipient_id, provider) DO UPDATE SET
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`, recipientID, string(provider), boolToInt(enabled), time.Now().Unix())

	if err != nil {
		return fmt.Errorf("failed to set provider enabled: %w", err)
	}
	return nil
}

// ListActiveRecipients returns recipients with notifications enabled and at
// least one enabled provider account.
func (s *Store) ListActiveRecipients(ctx context.Context) ([]Recipient, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT DISTINCT r.id, r.chat_id, r.notifications_enabled
		FROM recipients r
		JOIN provider_accounts pa ON pa.recipient_id = r.id AND pa.enabled = 1
		WHERE r.notifications_enabled = 1
		ORDER BY r.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active recipients: %w", err)
	}
	defer rows.Close()

	var recipients []Recipient
	for rows.Next() {
		var r Recipient
		var enabled int
		if err := rows.Scan(&r.ID, &r.ChatID, &enabled); err != nil {
			return nil, fmt.Errorf("failed to scan recipient: %w", err)
		}
		r.NotificationsEnabled = enabled != 0
		recipients = append(recipients, r)
	}

	return recipients, rows.Err()
}

// EnabledProviders lists the enabled provider accounts for a recipient
func (s *Store) EnabledProviders(ctx context.Context, recipientID string) ([]mail.Provider, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT provider FROM provider_accounts
		WHERE recipient_id = ? AND enabled = 1
		ORDER BY provider
	`, recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query provider accounts: %w", err)
	}
	defer rows.Close()

	var providers []mail.Provider
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan provider: %w", err)
		}
		providers = append(providers, mail.Provider(p))
	}

	return providers, rows.Err()
}

// GetCheckpoint loads the last-checked timestamp for a (recipient, provider)
// pair. The second return value is false when no checkpoint exists yet.
func (s *Store) GetCheckpoint(ctx context.Context, recipientID string, provider mail.Provider) (time.Time, bool, error) {
	var lastChecked int64
	err := s.DB.QueryRowContext(ctx, `
		SELECT last_checked_at FROM checkpoints
		WHERE recipient_id = ? AND provider = ?
	`, recipientID, string(provider)).Scan(&lastChecked)

	if err != nil {
		if err == sql.ErrNoRows {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	return time.Unix(lastChecked, 0), true, nil
}

// SetCheckpoint advances the checkpoint for a (recipient, provider) pair
func (s *Store) SetCheckpoint(ctx context.Context, recipientID string, provider mail.Provider, checkedAt time.Time) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO checkpoints (recipient_id, provider, last_checked_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(recipient_id, provider) DO UPDATE SET
			last_checked_at = excluded.last_checked_at,
			updated_at = excluded.updated_at
	`, recipientID, string(provider), checkedAt.Unix(), time.Now().Unix())

	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// IsNotified reports whether a notification was already sent to the
// recipient for this message.
func (s *Store) IsNotified(ctx context.Context, recipientID, uniqueID string) (bool, error) {
	var one int
	err := s.DB.QueryRowContext(ctx, `
		SELECT 1 FROM notification_ledger
		WHERE recipient_id = ? AND unique_id = ?
	`, recipientID, uniqueID).Scan(&one)

	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("failed to check ledger: %w", err)
	}

	return true, nil
}

// MarkNotified records a delivered notification in the ledger. The insert
// is conditional on the (recipient, uniqueId) key being absent, so two
// concurrent sweeps can never double-record; the return value reports
// whether this call won the insert.
func (s *Store) MarkNotified(ctx context.Context, recipientID string, msg mail.Message, cls mail.Classification) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `
		INSERT INTO notification_ledger
		(recipient_id, unique_id, record_id, provider, message_id, category, confidence, method, notified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(recipient_id, unique_id) DO NOTHING
	`, recipientID, msg.UniqueID(), uuid.NewString(), string(msg.Provider), msg.MessageID,
		string(cls.Category), cls.Confidence, cls.Method, time.Now().Unix())

	if err != nil {
		return false, fmt.Errorf("failed to record notification: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return affected > 0, nil
}

// SaveMessage persists a message and its classification for history
func (s *Store) SaveMessage(ctx context.Context, recipientID string, msg mail.Message, cls mail.Classification) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT OR IGNORE INTO message_history
		(record_id, recipient_id, unique_id, provider, message_id, thread_id, subject, sender,
		 snippet, web_link, is_spam, received_at, important, category, confidence, reason, method, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), recipientID, msg.UniqueID(), string(msg.Provider), msg.MessageID, msg.ThreadID,
		msg.Subject, msg.From, msg.Snippet, msg.WebLink, boolToInt(msg.IsSpam), msg.ReceivedAt.Unix(),
		boolToInt(cls.Important), string(cls.Category), cls.Confidence, cls.Reason, cls.Method, time.Now().Unix())

	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// SetCategoryPref enables or disables notifications for one category
func (s *Store) SetCategoryPref(ctx context.Context, recipientID string, category mail.Category, enabled bool) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO category_prefs (recipient_id, category, enabled, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(recipient_id, category) DO UPDATE SET
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`, recipientID, string(category), boolToInt(enabled), time.Now().Unix())

	if err != nil {
		return fmt.Errorf("failed to set category pref: %w", err)
	}
	return nil
}

// CategoryEnabled reports whether the recipient wants notifications for a
// category. Categories without an explicit preference default to enabled.
func (s *Store) CategoryEnabled(ctx context.Context, recipientID string, category mail.Category) (bool, error) {
	var enabled int
	err := s.DB.QueryRowContext(ctx, `
		SELECT enabled FROM category_prefs
		WHERE recipient_id = ? AND category = ?
	`, recipientID, string(category)).Scan(&enabled)

	if err != nil {
		if err == sql.ErrNoRows {
			return true, nil
		}
		return false, fmt.Errorf("failed to load category pref: %w", err)
	}

	return enabled != 0, nil
}

// CanSendFailureAlert reports whether the cooldown has elapsed since the
// last outage alert for the (recipient, provider) pair.
func (s *Store) CanSendFailureAlert(ctx context.Context, recipientID string, provider mail.Provider, cooldown time.Duration) (bool, error) {
	var lastAlert int64
	err := s.DB.QueryRowContext(ctx, `
		SELECT last_alert_at FROM failure_alerts
		WHERE recipient_id = ? AND provider = ?
	`, recipientID, string(provider)).Scan(&lastAlert)

	if err != nil {
		if err == sql.ErrNoRows {
			return true, nil
		}
		return false, fmt.Errorf("failed to load failure alert state: %w", err)
	}

	return time.Since(time.Unix(lastAlert, 0)) >= cooldown, nil
}

// RecordFailureAlert stamps the last-alert time for a (recipient, provider)
// pair. Called only after the alert was confirmed delivered.
func (s *Store) RecordFailureAlert(ctx context.Context, recipientID string, provider mail.Provider) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO failure_alerts (recipient_id, provider, last_alert_at)
		VALUES (?, ?, ?)
		ON CONFLICT(recipient_id, provider) DO UPDATE SET
			last_alert_at = excluded.last_alert_at
	`, recipientID, string(provider), time.Now().Unix())

	if err != nil {
		return fmt.Errorf("failed to record failure alert: %w", err)
	}
	return nil
}

// RecordProviderError logs a provider-level fetch failure
func (s *Store) RecordProviderError(ctx context.Context, recipientID string, provider mail.Provider, errText string) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO provider_errors (recipient_id, provider, error_text, occurred_at)
		VALUES (?, ?, ?, ?)
	`, recipientID, string(provider), errText, time.Now().Unix())

	if err != nil {
		return fmt.Errorf("failed to record provider error: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
