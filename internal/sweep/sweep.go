// Package sweep implements the incremental ingestion pipeline: per-provider
// fetch windows, classification, at-most-once notification, and the run
// orchestrator that fans a single invocation out across all active
// recipients.
package sweep

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/placemate/mailsentry/internal/mail"
	"github.com/placemate/mailsentry/internal/store"
)

// Calibrated defaults for windowing and failure alerting.
const (
	DefaultLookback      = 30 * time.Minute
	DefaultAlertCooldown = 2 * time.Hour
)

// Fetcher retrieves normalized messages received at or after since.
// Implementations own pagination and rate limiting, return a finite list
// deduplicated within the call, and fail cleanly on auth/transport errors.
type Fetcher interface {
	Fetch(ctx context.Context, since time.Time) ([]mail.Message, error)
}

// FetcherFactory builds a Fetcher for one (recipient, provider) pair.
// Token acquisition happens here, so an expired credential surfaces as a
// provider-level failure.
type FetcherFactory func(ctx context.Context, recipientID string, provider mail.Provider) (Fetcher, error)

// Classifier maps one message to exactly one classification
type Classifier interface {
	Classify(ctx context.Context, msg mail.Message) mail.Classification
}

// Notifier is the outbound messaging collaborator. The bool reports
// confirmed delivery; only confirmed deliveries advance the ledger.
type Notifier interface {
	NotifyImportant(ctx context.Context, rec store.Recipient, msg mail.Message, cls mail.Classification) (bool, error)
	NotifyFailure(ctx context.Context, rec store.Recipient, provider mail.Provider, errText string) (bool, error)
}

// EventPublisher fans confirmed notifications out to the event bus.
// Publishing is best effort and never blocks the pipeline.
type EventPublisher interface {
	PublishImportant(recipientID string, msg mail.Message, cls mail.Classification) error
}

// Storage is the slice of the store the pipeline depends on
type Storage interface {
	ListActiveRecipients(ctx context.Context) ([]store.Recipient, error)
	EnabledProviders(ctx context.Context, recipientID string) ([]mail.Provider, error)
	GetCheckpoint(ctx context.Context, recipientID string, provider mail.Provider) (time.Time, bool, error)
	SetCheckpoint(ctx context.Context, recipientID string, provider mail.Provider, checkedAt time.Time) error
	IsNotified(ctx context.Context, recipientID, uniqueID string) (bool, error)
	MarkNotified(ctx context.Context, recipientID string, msg mail.Message, cls mail.Classification) (bool, error)
	SaveMessage(ctx context.Context, recipientID string, msg mail.Message, cls mail.Classification) error
	CategoryEnabled(ctx context.Context, recipientID string, category mail.Category) (bool, error)
	CanSendFailureAlert(ctx context.Context, recipientID string, provider mail.Provider, cooldown time.Duration) (bool, error)
	RecordFailureAlert(ctx context.Context, recipientID string, provider mail.Provider) error
	RecordProviderError(ctx context.Context, recipientID string, provider mail.Provider, errText string) error
}

// ProviderResult reports one provider sweep
type ProviderResult struct {
	Provider  mail.Provider `json:"provider"`
	Scanned   int           `json:"scanned"`
	Important int           `json:"important"`
	Notified  int           `json:"notified"`
	Err       string        `json:"error,omitempty"`
}

// UserResult reports one user sweep
type UserResult struct {
	RecipientID      string           `json:"recipient_id"`
	Scanned          int              `json:"scanned"`
	Important        int              `json:"important"`
	Notified         int              `json:"notified"`
	ProviderFailures int              `json:"provider_failures"`
	Providers        []ProviderResult `json:"providers"`
}

// RunSummary is the immutable result of one orchestrator invocation
type RunSummary struct {
	StartedAt      time.Time    `json:"started_at"`
	FinishedAt     time.Time    `json:"finished_at"`
	UsersProcessed int          `json:"users_processed"`
	TotalScanned   int          `json:"total_scanned"`
	TotalImportant int          `json:"total_important"`
	TotalNotified  int          `json:"total_notified"`
	TotalFailures  int          `json:"total_failures"`
	Users          []UserResult `json:"users"`
}

// Config tunes the orchestrator
type Config struct {
	Lookback      time.Duration // fetch window bound W, default 30m
	AlertCooldown time.Duration // failure-alert cooldown, default 2h
}

// Orchestrator runs one full sweep per invocation. It holds no state
// between invocations beyond what lives in the storage collaborator.
type Orchestrator struct {
	store      Storage
	classifier Classifier
	notifier   Notifier
	fetchers   FetcherFactory
	events     EventPublisher // may be nil
	logger     *zap.Logger

	lookback      time.Duration
	alertCooldown time.Duration
	clock         func() time.Time
}

// New creates an orchestrator
func New(st Storage, cl Classifier, nt Notifier, ff FetcherFactory, ev EventPublisher, logger *zap.Logger, cfg Config) *Orchestrator {
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultLookback
	}
	if cfg.AlertCooldown <= 0 {
		cfg.AlertCooldown = DefaultAlertCooldown
	}

	return &Orchestrator{
		store:         st,
		classifier:    cl,
		notifier:      nt,
		fetchers:      ff,
		events:        ev,
		logger:        logger,
		lookback:      cfg.Lookback,
		alertCooldown: cfg.AlertCooldown,
		clock:         time.Now,
	}
}

// Run iterates every active recipient sequentially and aggregates one run
// summary. A single recipient's unexpected failure is counted and skipped;
// it never aborts the remaining recipients.
func (o *Orchestrator) Run(ctx context.Context) RunSummary {
	summary := RunSummary{StartedAt: o.clock()}

	recipients, err := o.store.ListActiveRecipients(ctx)
	if err != nil {
		o.logger.Error("failed to list active recipients", zap.Error(err))
		summary.TotalFailures++
		summary.FinishedAt = o.clock()
		return summary
	}

	for _, rec := range recipients {
		result, err := o.sweepUserSafe(ctx, rec)
		summary.UsersProcessed++

		if err != nil {
			o.logger.Error("user sweep failed",
				zap.String("recipient_id", rec.ID),
				zap.Error(err))
			summary.TotalFailures++
			continue
		}

		summary.TotalScanned += result.Scanned
		summary.TotalImportant += result.Important
		summary.TotalNotified += result.Notified
		summary.Users = append(summary.Users, result)
	}

	summary.FinishedAt = o.clock()

	o.logger.Info("sweep run complete",
		zap.Int("users", summary.UsersProcessed),
		zap.Int("scanned", summary.TotalScanned),
		zap.Int("important", summary.TotalImportant),
		zap.Int("notified", summary.TotalNotified),
		zap.Int("failures", summary.TotalFailures))

	return summary
}
