package messaging

import (
	"context"

	"github.com/feral-file/agent-ledger/internal/domain"
)

// Publisher defines the interface for publishing ledger events to a message broker
//
//go:generate mockgen -source=publisher.go -destination=../mocks/publisher.go -package=mocks -mock_names=Publisher=MockPublisher
type Publisher interface {
	// PublishEvent publishes a ledger event to the message broker
	PublishEvent(ctx context.Context, event *domain.LedgerEvent) error
	// Close closes the connection
	Close()
}
