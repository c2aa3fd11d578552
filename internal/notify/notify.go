// Package notify announces written records to downstream consumers.
package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Event describes one stored record.
type Event struct {
	RunID      string `json:"run_id,omitempty"`
	Site       string `json:"site"`
	QuestionID int64  `json:"question_id"`
	ExternalID string `json:"external_id"`
	Path       string `json:"path"`
	Object     string `json:"object,omitempty"`
	// SHA256 is the hex digest of the record file contents.
	SHA256 string `json:"sha256"`
}

// Publisher sends a JSON payload to a topic and returns the message id.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Notifier publishes record events to one topic. A nil *Notifier, or one
// without a publisher, does nothing.
type Notifier struct {
	publisher Publisher
	topic     string
	logger    *zap.Logger
}

// New returns a Notifier for topic.
func New(publisher Publisher, topic string, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{publisher: publisher, topic: topic, logger: logger}
}

// Enabled reports whether events are actually sent.
func (n *Notifier) Enabled() bool {
	return n != nil && n.publisher != nil
}

// RecordWritten publishes ev.
func (n *Notifier) RecordWritten(ctx context.Context, ev Event) error {
	if !n.Enabled() {
		return nil
	}
	id, err := n.publisher.Publish(ctx, n.topic, ev)
	if err != nil {
		return fmt.Errorf("notify %s/%d: %w", ev.Site, ev.QuestionID, err)
	}
	n.logger.Debug("record event published",
		zap.String("topic", n.topic),
		zap.String("message_id", id),
		zap.String("external_id", ev.ExternalID),
	)
	return nil
}
