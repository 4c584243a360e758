// Package notify publishes build pass outcomes to interested listeners.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Event is the payload published after each build pass.
type Event struct {
	PassID    string    `json:"pass_id"`
	Backend   string    `json:"backend"`
	Mode      string    `json:"mode"`
	Outcome   string    `json:"outcome"`
	Messages  []string  `json:"messages"`
	OutputDir string    `json:"output_dir"`
	Staged    bool      `json:"staged"`
	At        time.Time `json:"at"`
}

// Publisher delivers events. Callers log publish errors and carry on.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// NoopPublisher discards events.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
func (NoopPublisher) Close() error                         { return nil }

// NATSPublisher publishes events as JSON on a core NATS subject.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher connects to the NATS server at url.
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	if subject == "" {
		return nil, fmt.Errorf("nats subject is required")
	}
	conn, err := nats.Connect(url, nats.Name("spabuild"), nats.Timeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	slog.Info("NATS publisher initialized", "url", url, "subject", subject)
	return &NATSPublisher{conn: conn, subject: subject}, nil
}

// Publish sends ev and waits for the server to acknowledge the flush.
func (p *NATSPublisher) Publish(ctx context.Context, ev Event) error {
	data, err := Encode(ev)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	flushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.conn.FlushWithContext(flushCtx); err != nil {
		return fmt.Errorf("failed to flush event: %w", err)
	}
	slog.Debug("Published build outcome", "subject", p.subject, "pass_id", ev.PassID, "outcome", ev.Outcome)
	return nil
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() error {
	if p == nil || p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}

// Encode marshals ev, normalizing a nil message list to an empty array.
func Encode(ev Event) ([]byte, error) {
	if ev.Messages == nil {
		ev.Messages = []string{}
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return data, nil
}
