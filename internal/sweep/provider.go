package sweep

import (
	"context"

	"go.uber.org/zap"

	"github.com/placemate/mailsentry/internal/mail"
	"github.com/placemate/mailsentry/internal/store"
)

// sweepProvider processes one (recipient, provider) pair for one invocation:
// window computation, fetch, per-message classify/notify, checkpoint advance.
func (o *Orchestrator) sweepProvider(ctx context.Context, rec store.Recipient, provider mail.Provider) ProviderResult {
	result := ProviderResult{Provider: provider}
	now := o.clock()

	lastChecked, hasCheckpoint, err := o.store.GetCheckpoint(ctx, rec.ID, provider)
	if err != nil {
		o.logger.Error("failed to load checkpoint",
			zap.String("recipient_id", rec.ID),
			zap.String("provider", string(provider)),
			zap.Error(err))
		result.Err = err.Error()
		return result
	}

	since := windowStart(lastChecked, hasCheckpoint, now, o.lookback)

	fetcher, err := o.fetchers(ctx, rec.ID, provider)
	if err != nil {
		o.handleFetchFailure(ctx, rec, provider, err)
		result.Err = err.Error()
		return result
	}

	messages, err := fetcher.Fetch(ctx, since)
	if err != nil {
		// A fetch failure must not advance the checkpoint: the window
		// stays open for the next sweep.
		o.handleFetchFailure(ctx, rec, provider, err)
		result.Err = err.Error()
		return result
	}

	for _, msg := range messages {
		result.Scanned++
		o.processMessage(ctx, rec, msg, &result)
	}

	// The checkpoint advances once the loop completes, regardless of how
	// many individual messages were skipped or failed.
	if err := o.store.SetCheckpoint(ctx, rec.ID, provider, now); err != nil {
		o.logger.Error("failed to advance checkpoint",
			zap.String("recipient_id", rec.ID),
			zap.String("provider", string(provider)),
			zap.Error(err))
	}

	return result
}

// processMessage runs the per-message pipeline. Every failure in here is
// logged and skipped; nothing aborts the rest of the batch.
func (o *Orchestrator) processMessage(ctx context.Context, rec store.Recipient, msg mail.Message, result *ProviderResult) {
	uniqueID := msg.UniqueID()

	// Idempotency check comes first: an already-notified message is
	// skipped before classification runs at all.
	notified, err := o.store.IsNotified(ctx, rec.ID, uniqueID)
	if err != nil {
		o.logger.Error("ledger check failed",
			zap.String("unique_id", uniqueID),
			zap.Error(err))
		return
	}
	if notified {
		return
	}

	cls := o.classifier.Classify(ctx, msg)

	enabled, err := o.store.CategoryEnabled(ctx, rec.ID, cls.Category)
	if err != nil {
		o.logger.Error("category pref lookup failed",
			zap.String("unique_id", uniqueID),
			zap.Error(err))
		return
	}

	// A disabled category suppresses the notification and the
	// important-found count; the message still counted as scanned.
	if !cls.Important || !enabled {
		return
	}
	result.Important++

	delivered, err := o.notifier.NotifyImportant(ctx, rec, msg, cls)
	if err != nil || !delivered {
		// Not marked notified: the message stays eligible for retry on
		// a future sweep while it remains inside the fetch window.
		o.logger.Warn("notification delivery failed",
			zap.String("unique_id", uniqueID),
			zap.Error(err))
		return
	}

	reserved, err := o.store.MarkNotified(ctx, rec.ID, msg, cls)
	if err != nil {
		o.logger.Error("failed to record notification",
			zap.String("unique_id", uniqueID),
			zap.Error(err))
		return
	}
	if !reserved {
		// A concurrent sweep won the insert; the delivery already
		// happened so count it and move on.
		o.logger.Warn("notification already recorded by concurrent sweep",
			zap.String("unique_id", uniqueID))
	}

	if err := o.store.SaveMessage(ctx, rec.ID, msg, cls); err != nil {
		o.logger.Error("failed to persist message history",
			zap.String("unique_id", uniqueID),
			zap.Error(err))
	}

	if o.events != nil {
		if err := o.events.PublishImportant(rec.ID, msg, cls); err != nil {
			o.logger.Warn("failed to publish important-email event",
				zap.String("unique_id", uniqueID),
				zap.Error(err))
		}
	}

	result.Notified++
}

// handleFetchFailure records a provider-level error and sends a
// cooldown-gated outage notice. Only confirmed delivery stamps the limiter,
// so a dropped alert is retried on the next sweep.
func (o *Orchestrator) handleFetchFailure(ctx context.Context, rec store.Recipient, provider mail.Provider, fetchErr error) {
	o.logger.Error("provider fetch failed",
		zap.String("recipient_id", rec.ID),
		zap.String("provider", string(provider)),
		zap.Error(fetchErr))

	if err := o.store.RecordProviderError(ctx, rec.ID, provider, fetchErr.Error()); err != nil {
		o.logger.Error("failed to record provider error", zap.Error(err))
	}

	canSend, err := o.store.CanSendFailureAlert(ctx, rec.ID, provider, o.alertCooldown)
	if err != nil {
		o.logger.Error("failure alert limiter check failed", zap.Error(err))
		return
	}
	if !canSend {
		return
	}

	delivered, err := o.notifier.NotifyFailure(ctx, rec, provider, fetchErr.Error())
	if err != nil || !delivered {
		o.logger.Warn("failure alert delivery failed",
			zap.String("recipient_id", rec.ID),
			zap.String("provider", string(provider)),
			zap.Error(err))
		return
	}

	if err := o.store.RecordFailureAlert(ctx, rec.ID, provider); err != nil {
		o.logger.Error("failed to stamp failure alert", zap.Error(err))
	}
}
