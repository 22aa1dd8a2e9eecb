package store

import (
	"context"

	"github.com/feral-file/agent-ledger/internal/store/schema"
)

// EventRecord bundles one journal entry with the mirror rows it makes stale.
// The store applies the whole record in a single transaction so the journal
// and the mirror can never disagree.
type EventRecord struct {
	// Event is the journal entry; always present
	Event schema.LedgerEvent

	// Agent is upserted when the event changed the agent row
	// (mint, metadata/config update, transfer, sale)
	Agent *schema.Agent
	// Balance is upserted when the event changed a (agent, account) balance
	Balance *schema.RentalBalance
	// Listing is upserted when the event created or repriced a listing
	Listing *schema.SaleListing
	// ClearListing removes the agent's listing row
	// (delist, transfer, sale)
	ClearListing bool
	// AccruedFees overwrites the stored fee pool balance when set
	AccruedFees *uint64
}

// EventFilter narrows ListEvents. Zero values mean no constraint.
type EventFilter struct {
	AgentID   uint64
	Actor     string
	EventType string
	Limit     int
	Offset    int
}

// LedgerState is the full mirror as loaded at startup
type LedgerState struct {
	Agents      []schema.Agent
	Balances    []schema.RentalBalance
	Listings    []schema.SaleListing
	AccruedFees uint64
}

// Store defines the interface for database operations
//
//go:generate mockgen -source=store.go -destination=../mocks/store.go -package=mocks -mock_names=Store=MockStore
type Store interface {
	// ApplyEvent persists a journal entry and its mirror updates atomically.
	// Re-applying a record whose event id is already journaled is a no-op.
	ApplyEvent(ctx context.Context, rec *EventRecord) error
	// ListEvents returns journal entries in emission order
	ListEvents(ctx context.Context, filter EventFilter) ([]schema.LedgerEvent, error)
	// GetAgent retrieves one agent row, nil when absent
	GetAgent(ctx context.Context, id uint64) (*schema.Agent, error)
	// LoadLedgerState loads the full mirror for ledger bootstrap
	LoadLedgerState(ctx context.Context) (*LedgerState, error)
}
