package natsjs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/placemate/mailsentry/internal/mail"
)

const streamName = "MAIL_ALERTS"

// Publisher fans confirmed important-email notifications out to JetStream
// so downstream consumers (history UI, analytics) see the same stream the
// recipient was alerted on. MsgId deduplication keys on the message's
// global unique ID, matching the ledger key.
type Publisher struct {
	nc *nats.Conn
	js nats.JetStreamContext
}

// NewPublisher connects to NATS and ensures the alerts stream exists
func NewPublisher(url string) (*Publisher, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	p := &Publisher{nc: nc, js: js}
	if err := p.ensureStream(); err != nil {
		nc.Close()
		return nil, err
	}

	return p, nil
}

func (p *Publisher) ensureStream() error {
	if info, err := p.js.StreamInfo(streamName); err == nil && info != nil {
		return nil
	}

	_, err := p.js.AddStream(&nats.StreamConfig{
		Name:       streamName,
		Subjects:   []string{"recipient.*.email.>"},
		Storage:    nats.FileStorage,
		Retention:  nats.LimitsPolicy,
		Duplicates: 10 * time.Minute,
		MaxAge:     30 * 24 * time.Hour,
	})

	if err != nil {
		if err == nats.ErrStreamNameAlreadyInUse || err.Error() == "stream name already in use" {
			return nil
		}
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// PublishImportant publishes one important-email event with deduplication
func (p *Publisher) PublishImportant(recipientID string, msg mail.Message, cls mail.Classification) error {
	event := map[string]interface{}{
		"recipient_id": recipientID,
		"provider":     string(msg.Provider),
		"message_id":   msg.MessageID,
		"unique_id":    msg.UniqueID(),
		"subject":      msg.Subject,
		"sender":       msg.From,
		"received_at":  msg.ReceivedAt.Unix(),
		"is_spam":      msg.IsSpam,
		"important":    cls.Important,
		"category":     string(cls.Category),
		"confidence":   cls.Confidence,
		"method":       cls.Method,
		"ts":           time.Now().Unix(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := fmt.Sprintf("recipient.%s.email.important", recipientID)
	msgID := fmt.Sprintf("email.important|%s|%s", recipientID, msg.UniqueID())

	if _, err := p.js.Publish(subject, payload, nats.MsgId(msgID)); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// Close closes the NATS connection
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}
