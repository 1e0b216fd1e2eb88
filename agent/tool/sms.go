package tool

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	qstashx "github.com/tanpawarit/Resilient-Tool-Gateway/pkg/qstash"
)

// SMSSender hands a message to a delivery channel and returns its id.
type SMSSender interface {
	Send(ctx context.Context, to, message string) (string, error)
}

type SMSConfig struct {
	Destination string `envconfig:"DESTINATION" split_words:"true"`
}

func (c SMSConfig) Enabled() bool {
	return strings.TrimSpace(c.Destination) != ""
}

type SentMessage struct {
	ID      string    `json:"id"`
	To      string    `json:"to"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

// Outbox keeps sent messages in memory. It is the default sender.
type Outbox struct {
	mu       sync.Mutex
	messages []SentMessage
	now      func() time.Time
}

func NewOutbox() *Outbox {
	return &Outbox{now: time.Now}
}

func (o *Outbox) Send(_ context.Context, to, message string) (string, error) {
	id := "sms_" + uuid.NewString()

	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, SentMessage{
		ID:      id,
		To:      to,
		Message: message,
		SentAt:  o.now().UTC(),
	})
	return id, nil
}

func (o *Outbox) Messages() []SentMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]SentMessage, len(o.messages))
	copy(out, o.messages)
	return out
}

func (o *Outbox) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = nil
}

type publisher interface {
	Publish(ctx context.Context, destination string, body []byte, headers map[string]string) (string, error)
}

// QStashSender queues messages for an SMS webhook through QStash.
type QStashSender struct {
	client      publisher
	destination string
}

func NewQStashSender(client *qstashx.Client, cfg SMSConfig) (*QStashSender, error) {
	if client == nil {
		return nil, errors.New("qstash client is required")
	}
	return newQStashSender(client, cfg)
}

func newQStashSender(client publisher, cfg SMSConfig) (*QStashSender, error) {
	if !cfg.Enabled() {
		return nil, errors.New("sms destination is required")
	}
	return &QStashSender{client: client, destination: strings.TrimSpace(cfg.Destination)}, nil
}

// smsNamespace scopes the name-based ids of queued messages.
var smsNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:tool-gateway:sms"))

// contentID is stable for a (to, message) pair, so a resend of the same text
// collapses into one delivery inside the QStash deduplication window.
func contentID(to, message string) string {
	return "sms_" + uuid.NewSHA1(smsNamespace, []byte(to+"\x00"+message)).String()
}

func (s *QStashSender) Send(ctx context.Context, to, message string) (string, error) {
	localID := contentID(to, message)
	body, err := json.Marshal(map[string]string{
		"id":      localID,
		"to":      to,
		"message": message,
	})
	if err != nil {
		return "", err
	}

	messageID, err := s.client.Publish(ctx, s.destination, body, map[string]string{
		"Upstash-Deduplication-Id": localID,
	})
	if err != nil {
		return "", err
	}
	if messageID == "" {
		return localID, nil
	}
	return messageID, nil
}
