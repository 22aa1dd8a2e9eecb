// Package jetstream publishes ledger events to NATS JetStream, one subject
// per event type under the ledger.agents.* hierarchy.
package jetstream

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/feral-file/agent-ledger/internal/adapter"
	"github.com/feral-file/agent-ledger/internal/domain"
	"github.com/feral-file/agent-ledger/internal/logger"
	"github.com/feral-file/agent-ledger/internal/messaging"
)

// SubjectPrefix is the root of the subject hierarchy for ledger events
const SubjectPrefix = "ledger.agents"

// Config holds the configuration for NATS JetStream connection
type Config struct {
	URL            string
	StreamName     string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectionName string
	ConnectTimeout time.Duration
}

type publisher struct {
	nc         adapter.NatsConn
	js         adapter.JetStream
	streamName string
	json       adapter.JSON
}

// NewPublisher connects to NATS, ensures the event stream exists and returns
// a publisher bound to it. The initial connection is retried with exponential
// backoff up to cfg.ConnectTimeout.
func NewPublisher(ctx context.Context, cfg Config, natsJS adapter.NatsJetStream, jsonAdapter adapter.JSON) (messaging.Publisher, error) {
	opts := []nats.Option{
		nats.Name(cfg.ConnectionName),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Error(err, zap.String("message", "Disconnected from NATS"))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Reconnected to NATS", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	var (
		nc adapter.NatsConn
		js adapter.JetStream
	)
	connect := func() error {
		var err error
		nc, js, err = natsJS.Connect(cfg.URL, opts...)
		return err
	}
	policy := backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(cfg.ConnectTimeout),
	), ctx)
	if err := backoff.Retry(connect, policy); err != nil {
		return nil, fmt.Errorf("failed to connect to NATS and create JetStream: %w", err)
	}

	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.StreamName,
		Subjects: []string{SubjectPrefix + ".>"},
		Storage:  jetstream.FileStorage,
	}); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream %s: %w", cfg.StreamName, err)
	}

	return &publisher{
		nc:         nc,
		js:         js,
		streamName: cfg.StreamName,
		json:       jsonAdapter,
	}, nil
}

// PublishEvent publishes a ledger event to NATS JetStream
func (p *publisher) PublishEvent(ctx context.Context, event *domain.LedgerEvent) error {
	logger.Debug("Publishing ledger event", zap.Any("event", event))

	data, err := p.json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// Deduplicate on the event's ULID so a retried publish cannot double
	// a record in the stream.
	_, err = p.js.Publish(ctx, Subject(event.Type), data, jetstream.WithMsgID(event.ID))
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// Subject returns the NATS subject for an event type,
// e.g. ledger.agents.minted, ledger.agents.sold
func Subject(t domain.EventType) string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, t)
}

// Close closes the NATS connection
func (p *publisher) Close() {
	if p.nc == nil {
		return
	}

	p.nc.Close()
}
