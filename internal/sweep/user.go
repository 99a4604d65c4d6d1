package sweep

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/placemate/mailsentry/internal/store"
)

// sweepUserSafe wraps sweepUser with a recover so one recipient's
// unexpected failure is reported upward instead of taking down the run.
func (o *Orchestrator) sweepUserSafe(ctx context.Context, rec store.Recipient) (result UserResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("user sweep panicked: %v", r)
		}
	}()

	return o.sweepUser(ctx, rec)
}

// sweepUser fans one recipient out across their enabled providers and
// aggregates counts. Provider failures are isolated from each other: a
// broken Gmail connection never blocks the Outlook sweep.
func (o *Orchestrator) sweepUser(ctx context.Context, rec store.Recipient) (UserResult, error) {
	result := UserResult{RecipientID: rec.ID}

	providers, err := o.store.EnabledProviders(ctx, rec.ID)
	if err != nil {
		return result, fmt.Errorf("list enabled providers: %w", err)
	}

	for _, provider := range providers {
		pr := o.sweepProvider(ctx, rec, provider)

		result.Scanned += pr.Scanned
		result.Important += pr.Important
		result.Notified += pr.Notified
		if pr.Err != "" {
			result.ProviderFailures++
		}
		result.Providers = append(result.Providers, pr)

		o.logger.Debug("provider sweep finished",
			zap.String("recipient_id", rec.ID),
			zap.String("provider", string(provider)),
			zap.Int("scanned", pr.Scanned),
			zap.Int("important", pr.Important),
			zap.Int("notified", pr.Notified),
			zap.String("error", pr.Err))
	}

	return result, nil
}
