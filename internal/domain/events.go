package domain

import "time"

// EventType names a ledger state change. Every mutating operation emits
// exactly one event.
type EventType string

const (
	EventTypeMinted          EventType = "minted"
	EventTypeMetadataUpdated EventType = "metadata_updated"
	EventTypeConfigUpdated   EventType = "config_updated"
	EventTypeTransferred     EventType = "transferred"
	EventTypeRented          EventType = "rented"
	EventTypeUsed            EventType = "used"
	EventTypeListed          EventType = "listed"
	EventTypeDelisted        EventType = "delisted"
	EventTypeSold            EventType = "sold"
	EventTypeFeesWithdrawn   EventType = "fees_withdrawn"
)

// LedgerEvent is the normalized record of a single ledger state change.
// It is the unit persisted to the event journal and published to the stream.
type LedgerEvent struct {
	// ID is a ULID, monotonic within the emitting process
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	AgentID   uint64    `json:"agent_id"`
	Actor     Address   `json:"actor"`
	Timestamp time.Time `json:"timestamp"`

	// Counterparty is the other side of a value transfer: the seller on a
	// sold event, the recipient on a transfer
	Counterparty *Address `json:"counterparty,omitempty"`

	// Uses is the number of uses purchased (rented) or consumed (used)
	Uses uint64 `json:"uses,omitempty"`
	// Amount is the settled cost retained by the ledger or paid out
	Amount uint64 `json:"amount,omitempty"`
	// Refund is the overpayment returned to the actor within the operation
	Refund uint64 `json:"refund,omitempty"`
	// Price is the listing price on listed/sold events
	Price uint64 `json:"price,omitempty"`

	// ByOwner marks a used event consumed by the agent's owner
	ByOwner bool `json:"by_owner,omitempty"`
	// Prepaid marks a rented event that included prepaid inference credits,
	// or a used event settled against the prepaid balance
	Prepaid bool `json:"prepaid,omitempty"`

	// RentalBalance and PrepaidBalance are the actor's balances after the
	// operation, on rented and used events
	RentalBalance  uint64 `json:"rental_balance,omitempty"`
	PrepaidBalance uint64 `json:"prepaid_balance,omitempty"`
}
