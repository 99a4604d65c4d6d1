package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placemate/mailsentry/internal/mail"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	st, err := Open(filepath.Join(t.TempDir(), "sentry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestOpenIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sentry.db")

	st, err := Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	// Reopening an existing database must re-apply the schema cleanly.
	st, err = Open(dbPath)
	require.NoError(t, err)
	st.Close()
}

func TestListActiveRecipients(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertRecipient(ctx, Recipient{ID: "u1", ChatID: 11, NotificationsEnabled: true}))
	require.NoError(t, st.UpsertRecipient(ctx, Recipient{ID: "u2", ChatID: 22, NotificationsEnabled: true}))
	require.NoError(t, st.UpsertRecipient(ctx, Recipient{ID: "u3", ChatID: 33, NotificationsEnabled: false}))

	require.NoError(t, st.SetProviderEnabled(ctx, "u1", mail.ProviderGmail, true))
	require.NoError(t, st.SetProviderEnabled(ctx, "u1", mail.ProviderOutlook, true))
	require.NoError(t, st.SetProviderEnabled(ctx, "u3", mail.ProviderGmail, true))
	// u2 has no enabled provider; u3 muted notifications.

	active, err := st.ListActiveRecipients(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "u1", active[0].ID)
	assert.EqualValues(t, 11, active[0].ChatID)

	providers, err := st.EnabledProviders(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []mail.Provider{mail.ProviderGmail, mail.ProviderOutlook}, providers)
}

func TestSetProviderEnabledToggle(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertRecipient(ctx, Recipient{ID: "u1", ChatID: 1, NotificationsEnabled: true}))
	require.NoError(t, st.SetProviderEnabled(ctx, "u1", mail.ProviderGmail, true))
	require.NoError(t, st.SetProviderEnabled(ctx, "u1", mail.ProviderGmail, false))

	providers, err := st.EnabledProviders(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, providers)
}

func TestCheckpointRoundtrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	_, exists, err := st.GetCheckpoint(ctx, "u1", mail.ProviderGmail)
	require.NoError(t, err)
	assert.False(t, exists)

	checkedAt := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, st.SetCheckpoint(ctx, "u1", mail.ProviderGmail, checkedAt))

	got, exists, err := st.GetCheckpoint(ctx, "u1", mail.ProviderGmail)
	require.NoError(t, err)
	require.True(t, exists)
	assert.True(t, got.Equal(checkedAt))

	// Checkpoints are scoped per provider.
	_, exists, err = st.GetCheckpoint(ctx, "u1", mail.ProviderOutlook)
	require.NoError(t, err)
	assert.False(t, exists)

	later := checkedAt.Add(5 * time.Minute)
	require.NoError(t, st.SetCheckpoint(ctx, "u1", mail.ProviderGmail, later))

	got, _, err = st.GetCheckpoint(ctx, "u1", mail.ProviderGmail)
	require.NoError(t, err)
	assert.True(t, got.Equal(later))
}

func ledgerMessage(id string) (mail.Message, mail.Classification) {
	msg := mail.Message{
		Provider:   mail.ProviderGmail,
		MessageID:  id,
		Subject:    "Interview scheduled",
		From:       "hr@acme.com",
		ReceivedAt: time.Now(),
	}
	cls := mail.Classification{
		Important:  true,
		Category:   mail.CategoryInterview,
		Confidence: 0.9,
		Reason:     "matched: interview scheduled",
		Method:     mail.MethodKeyword,
	}
	return msg, cls
}

func TestNotificationLedgerAtMostOnce(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	msg, cls := ledgerMessage("m1")

	notified, err := st.IsNotified(ctx, "u1", msg.UniqueID())
	require.NoError(t, err)
	assert.False(t, notified)

	won, err := st.MarkNotified(ctx, "u1", msg, cls)
	require.NoError(t, err)
	assert.True(t, won, "first insert must win the reservation")

	won, err = st.MarkNotified(ctx, "u1", msg, cls)
	require.NoError(t, err)
	assert.False(t, won, "second insert must lose without error")

	notified, err = st.IsNotified(ctx, "u1", msg.UniqueID())
	require.NoError(t, err)
	assert.True(t, notified)

	// The ledger key includes the recipient: another recipient is fresh.
	notified, err = st.IsNotified(ctx, "u2", msg.UniqueID())
	require.NoError(t, err)
	assert.False(t, notified)
}

func TestSaveMessageIgnoresDuplicates(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	msg, cls := ledgerMessage("m1")

	require.NoError(t, st.SaveMessage(ctx, "u1", msg, cls))
	require.NoError(t, st.SaveMessage(ctx, "u1", msg, cls))

	var count int
	err := st.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM message_history WHERE recipient_id = ? AND unique_id = ?`,
		"u1", msg.UniqueID()).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCategoryPrefDefaultsToEnabled(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	enabled, err := st.CategoryEnabled(ctx, "u1", mail.CategoryRejection)
	require.NoError(t, err)
	assert.True(t, enabled)

	require.NoError(t, st.SetCategoryPref(ctx, "u1", mail.CategoryRejection, false))

	enabled, err = st.CategoryEnabled(ctx, "u1", mail.CategoryRejection)
	require.NoError(t, err)
	assert.False(t, enabled)

	// Other categories keep the default.
	enabled, err = st.CategoryEnabled(ctx, "u1", mail.CategoryInterview)
	require.NoError(t, err)
	assert.True(t, enabled)

	require.NoError(t, st.SetCategoryPref(ctx, "u1", mail.CategoryRejection, true))
	enabled, err = st.CategoryEnabled(ctx, "u1", mail.CategoryRejection)
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestFailureAlertCooldown(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	canSend, err := st.CanSendFailureAlert(ctx, "u1", mail.ProviderGmail, 2*time.Hour)
	require.NoError(t, err)
	assert.True(t, canSend, "no prior alert means no cooldown")

	require.NoError(t, st.RecordFailureAlert(ctx, "u1", mail.ProviderGmail))

	canSend, err = st.CanSendFailureAlert(ctx, "u1", mail.ProviderGmail, 2*time.Hour)
	require.NoError(t, err)
	assert.False(t, canSend, "fresh alert must be inside the cooldown")

	canSend, err = st.CanSendFailureAlert(ctx, "u1", mail.ProviderGmail, 0)
	require.NoError(t, err)
	assert.True(t, canSend, "zero cooldown never suppresses")

	// The limiter is scoped per provider.
	canSend, err = st.CanSendFailureAlert(ctx, "u1", mail.ProviderOutlook, 2*time.Hour)
	require.NoError(t, err)
	assert.True(t, canSend)
}

func TestRecordProviderError(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.RecordProviderError(ctx, "u1", mail.ProviderGmail, "oauth token revoked"))
	require.NoError(t, st.RecordProviderError(ctx, "u1", mail.ProviderGmail, "oauth token revoked"))

	var count int
	err := st.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM provider_errors WHERE recipient_id = ?`, "u1").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
