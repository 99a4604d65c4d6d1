package outlook

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	"github.com/microsoftgraph/msgraph-sdk-go/models"
	"github.com/microsoftgraph/msgraph-sdk-go/users"

	"github.com/placemate/mailsentry/internal/auth"
	"github.com/placemate/mailsentry/internal/mail"
)

const maxBodyBytes = 4096

var selectFields = []string{
	"id", "conversationId", "subject", "from", "toRecipients",
	"bodyPreview", "body", "receivedDateTime", "webLink",
}

// Adapter fetches normalized messages from Outlook via Microsoft Graph
type Adapter struct {
	client *msgraphsdk.GraphServiceClient
}

// New creates a new Outlook adapter
func New(ctx context.Context, tok *auth.Token) (*Adapter, error) {
	cred := &staticTokenCredential{token: tok.AccessToken}

	client, err := msgraphsdk.NewGraphServiceClientWithCredentials(cred, []string{})
	if err != nil {
		return nil, fmt.Errorf("failed to create Graph client: %w", err)
	}

	return &Adapter{client: client}, nil
}

// Fetch lists messages received at or after since from the inbox and the
// junk folder. Junk messages carry the IsSpam flag.
func (a *Adapter) Fetch(ctx context.Context, since time.Time) ([]mail.Message, error) {
	filter := fmt.Sprintf("receivedDateTime ge %s", since.UTC().Format(time.RFC3339))

	inbox, err := a.fetchFolder(ctx, "inbox", filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list inbox messages: %w", err)
	}

	junk, err := a.fetchFolder(ctx, "junkemail", filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list junk messages: %w", err)
	}

	seen := make(map[string]bool, len(inbox))
	messages := make([]mail.Message, 0, len(inbox)+len(junk))
	for _, m := range inbox {
		normalized := normalize(m, false)
		seen[normalized.MessageID] = true
		messages = append(messages, normalized)
	}
	for _, m := range junk {
		normalized := normalize(m, true)
		if seen[normalized.MessageID] {
			continue
		}
		messages = append(messages, normalized)
	}

	return messages, nil
}

func (a *Adapter) fetchFolder(ctx context.Context, folderID, filter string) ([]models.Messageable, error) {
	requestConfig := &users.ItemMailFoldersItemMessagesRequestBuilderGetRequestConfiguration{
		QueryParameters: &users.ItemMailFoldersItemMessagesRequestBuilderGetQueryParameters{
			Top:     int32Ptr(100),
			Filter:  &filter,
			Select:  selectFields,
			Orderby: []string{"receivedDateTime asc"},
		},
	}

	result, err := a.client.Me().MailFolders().ByMailFolderId(folderID).Messages().Get(ctx, requestConfig)
	if err != nil {
		return nil, err
	}

	return result.GetValue(), nil
}

// normalize converts an Outlook message to the provider-agnostic shape
func normalize(m models.Messageable, isSpam bool) mail.Message {
	msg := mail.Message{
		Provider: mail.ProviderOutlook,
		IsSpam:   isSpam,
	}

	if id := m.GetId(); id != nil {
		msg.MessageID = *id
	}

	if convID := m.GetConversationId(); convID != nil {
		msg.ThreadID = *convID
	}

	if subject := m.GetSubject(); subject != nil {
		msg.Subject = *subject
	}

	if from := m.GetFrom(); from != nil {
		if emailAddr := from.GetEmailAddress(); emailAddr != nil {
			if addr := emailAddr.GetAddress(); addr != nil {
				msg.From = *addr
			}
		}
	}

	if to := m.GetToRecipients(); to != nil {
		msg.To = extractAddresses(to)
	}

	if preview := m.GetBodyPreview(); preview != nil {
		msg.Snippet = *preview
	}

	if body := m.GetBody(); body != nil {
		if content := body.GetContent(); content != nil {
			msg.Body = truncate(*content)
		}
	}

	if rcvd := m.GetReceivedDateTime(); rcvd != nil {
		msg.ReceivedAt = *rcvd
	}

	if link := m.GetWebLink(); link != nil {
		msg.WebLink = *link
	}

	return msg
}

// extractAddresses extracts email addresses from recipients
func extractAddresses(recipients []models.Recipientable) []string {
	var addrs []string
	for _, r := range recipients {
		if emailAddr := r.GetEmailAddress(); emailAddr != nil {
			if addr := emailAddr.GetAddress(); addr != nil {
				addrs = append(addrs, *addr)
			}
		}
	}
	return addrs
}

func truncate(s string) string {
	if len(s) > maxBodyBytes {
		return s[:maxBodyBytes]
	}
	return s
}

// staticTokenCredential implements the Azure credential interface around an
// access token the auth service already refreshed.
type staticTokenCredential struct {
	token string
}

func (c *staticTokenCredential) GetToken(ctx context.Context, options policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return azcore.AccessToken{
		Token:     c.token,
		ExpiresOn: time.Now().Add(1 * time.Hour),
	}, nil
}

func int32Ptr(i int32) *int32 {
	return &i
}
