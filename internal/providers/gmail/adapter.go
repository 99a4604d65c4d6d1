package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/placemate/mailsentry/internal/auth"
	"github.com/placemate/mailsentry/internal/mail"
)

// Body text is truncated before classification; keyword scoring does not
// need more than this.
const maxBodyBytes = 4096

// Adapter fetches normalized messages from Gmail
type Adapter struct {
	svc *gmail.Service
}

// New creates a new Gmail adapter
func New(ctx context.Context, tok *auth.Token) (*Adapter, error) {
	oauth2Token := &oauth2.Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}

	config := &oauth2.Config{
		Scopes: []string{gmail.GmailReadonlyScope},
	}

	httpClient := config.Client(ctx, oauth2Token)

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return &Adapter{svc: svc}, nil
}

// Fetch lists messages received at or after since, including the spam
// folder. Pagination is handled here; the returned list is deduplicated
// within the call.
func (a *Adapter) Fetch(ctx context.Context, since time.Time) ([]mail.Message, error) {
	query := fmt.Sprintf("after:%d", since.Unix())
	call := a.svc.Users.Messages.List("me").Q(query).IncludeSpamTrash(true).MaxResults(100)

	var messages []mail.Message
	seen := make(map[string]bool)

	err := call.Pages(ctx, func(page *gmail.ListMessagesResponse) error {
		for _, m := range page.Messages {
			if seen[m.Id] {
				continue
			}
			seen[m.Id] = true

			full, err := a.svc.Users.Messages.Get("me", m.Id).Format("full").Context(ctx).Do()
			if err != nil {
				return fmt.Errorf("failed to get message %s: %w", m.Id, err)
			}

			messages = append(messages, normalize(full))
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	return messages, nil
}

// normalize converts a Gmail message to the provider-agnostic shape
func normalize(m *gmail.Message) mail.Message {
	headers := make(map[string]string)
	if m.Payload != nil {
		for _, kv := range m.Payload.Headers {
			headers[kv.Name] = kv.Value
		}
	}

	isSpam := false
	for _, label := range m.LabelIds {
		if label == "SPAM" {
			isSpam = true
			break
		}
	}

	return mail.Message{
		Provider:   mail.ProviderGmail,
		MessageID:  m.Id,
		ThreadID:   m.ThreadId,
		Subject:    headers["Subject"],
		From:       headers["From"],
		To:         splitAddrs(headers["To"]),
		Snippet:    m.Snippet,
		Body:       extractBody(m.Payload),
		ReceivedAt: time.UnixMilli(m.InternalDate),
		WebLink:    fmt.Sprintf("https://mail.google.com/mail/u/0/#all/%s", m.Id),
		IsSpam:     isSpam,
	}
}

// extractBody pulls the first text/plain part, decoded and truncated
func extractBody(p *gmail.MessagePart) string {
	if p == nil {
		return ""
	}

	if strings.HasPrefix(p.MimeType, "text/plain") && p.Body != nil && p.Body.Data != "" {
		decoded, err := base64.RawURLEncoding.DecodeString(p.Body.Data)
		if err != nil {
			// Some messages arrive padded.
			decoded, err = base64.URLEncoding.DecodeString(p.Body.Data)
			if err != nil {
				return ""
			}
		}
		return truncate(string(decoded))
	}

	for _, part := range p.Parts {
		if body := extractBody(part); body != "" {
			return body
		}
	}

	return ""
}

func truncate(s string) string {
	if len(s) > maxBodyBytes {
		return s[:maxBodyBytes]
	}
	return s
}

// splitAddrs parses comma-separated email addresses
func splitAddrs(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
