package classify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/placemate/mailsentry/internal/mail"
)

// Default calibration for the AI escalation band and call timeout.
const (
	DefaultLowThreshold  = 3
	DefaultHighThreshold = 8
	DefaultAITimeout     = 10 * time.Second
)

// AIBackend sends a classification prompt to an LLM provider. The returned
// text is expected to contain a JSON object but carries no guarantee of
// well-formedness.
type AIBackend interface {
	Classify(ctx context.Context, prompt string) (string, error)
}

// Classifier maps one normalized message to exactly one classification:
// deterministic keyword scoring always runs, and an AI-assisted tier is
// consulted only when the keyword score lands in the uncertain middle band.
type Classifier struct {
	backend AIBackend // nil when no AI backend is configured
	logger  *zap.Logger

	lowThreshold  int
	highThreshold int
	aiTimeout     time.Duration
}

// New creates a classifier. backend may be nil, in which case every
// uncertain message resolves to the keyword result. A non-positive
// aiTimeout selects the calibrated default.
func New(backend AIBackend, logger *zap.Logger, aiTimeout time.Duration) *Classifier {
	if aiTimeout <= 0 {
		aiTimeout = DefaultAITimeout
	}

	return &Classifier{
		backend:       backend,
		logger:        logger,
		lowThreshold:  DefaultLowThreshold,
		highThreshold: DefaultHighThreshold,
		aiTimeout:     aiTimeout,
	}
}

// Classify never returns an error: any AI-tier failure falls back to the
// keyword result, and the returned classification is always schema-valid.
func (c *Classifier) Classify(ctx context.Context, msg mail.Message) mail.Classification {
	keyword, score := ScoreKeywords(msg)

	// Scores at or below the low threshold, or at or above the high
	// threshold, are confident enough to skip the AI tier entirely.
	if score <= c.lowThreshold || score >= c.highThreshold {
		return keyword
	}

	if c.backend == nil {
		keyword.Method = mail.MethodKeywordFallback
		return keyword
	}

	result, ok := c.classifyAI(ctx, msg)
	if !ok {
		keyword.Method = mail.MethodKeywordFallback
		return keyword
	}
	return result
}

// classifyAI runs the AI tier. The second return value is false when the
// backend call failed and the caller should fall back to the keyword result.
// A response that was received but could not be parsed is still a result
// (the fixed unparseable classification), not a fallback.
func (c *Classifier) classifyAI(ctx context.Context, msg mail.Message) (result mail.Classification, ok bool) {
	// The AI tier must never panic past the classifier boundary.
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("ai classification panicked", zap.Any("panic", r))
			ok = false
		}
	}()

	aiCtx, cancel := context.WithTimeout(ctx, c.aiTimeout)
	defer cancel()

	raw, err := c.backend.Classify(aiCtx, buildPrompt(msg))
	if err != nil {
		c.logger.Warn("ai backend error, using keyword fallback",
			zap.String("unique_id", msg.UniqueID()),
			zap.Error(err))
		return mail.Classification{}, false
	}

	parsed, parseOK := parseAIResponse(raw)
	if !parseOK {
		c.logger.Warn("unparseable ai response",
			zap.String("unique_id", msg.UniqueID()))
		return mail.Classification{
			Important:  false,
			Category:   mail.CategoryOther,
			Confidence: 0,
			Reason:     "unparseable AI response",
			Method:     mail.MethodAI,
		}, true
	}

	parsed.Method = mail.MethodAI
	return parsed, true
}

// buildPrompt renders the classification request sent to the AI backend.
// Only subject, sender, and snippet are shared; the body stays local.
func buildPrompt(msg mail.Message) string {
	labels := make([]string, 0, len(mail.Categories))
	for _, c := range mail.Categories {
		labels = append(labels, string(c))
	}

	return fmt.Sprintf(`You classify emails for a job seeker. Decide whether this email is placement/interview-related.

Subject: %s
From: %s
Preview: %s

Respond with exactly one JSON object and nothing else:
{"important": <bool>, "category": <one of %s>, "confidence": <0.0-1.0>, "reason": "<short justification>"}`,
		msg.Subject, msg.From, msg.Snippet, strings.Join(labels, ", "))
}
