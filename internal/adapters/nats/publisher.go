package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/urbanbuzz/explorer/internal/core/domain"
)

const (
	streamName       = "EXPLORATIONS"
	progressSubject  = "explore.progress."
	completedSubject = "explore.completed"
)

// Publisher implements ports.EventPublisher on NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and makes sure the exploration stream exists.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("urbanbuzz-explorer"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := &nats.StreamConfig{
		Name:      streamName,
		Subjects:  []string{"explore.>"},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(cfg); err != nil {
		if _, err := js.UpdateStream(cfg); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ensure stream %s: %w", streamName, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishProgress publishes a snapshot on explore.progress.<id>.
func (p *Publisher) PublishProgress(ctx context.Context, snap *domain.Snapshot) error {
	return p.publish(ctx, progressSubject+snap.ExplorationID, snap)
}

// PublishCompleted publishes the history record of a finished exploration.
func (p *Publisher) PublishCompleted(ctx context.Context, rec *domain.ExplorationRecord) error {
	return p.publish(ctx, completedSubject, rec)
}

func (p *Publisher) publish(ctx context.Context, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", subject, err)
	}
	if _, err := p.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Connected reports the connection state for the readiness probe.
func (p *Publisher) Connected() bool {
	return p.conn.IsConnected()
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}
