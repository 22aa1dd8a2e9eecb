package schema

import (
	"time"

	"gorm.io/datatypes"
)

// LedgerEvent represents the ledger_events table - the append-only journal of
// every ledger state change, in emission order
type LedgerEvent struct {
	// Cursor is an auto-incrementing sequence number for efficient pagination and ordering
	Cursor int64 `gorm:"column:\"cursor\";primaryKey;autoIncrement"`
	// EventID is the ULID assigned at emission; unique and lexically ordered
	EventID string `gorm:"column:event_id;not null;uniqueIndex;type:text"`
	// EventType names the state change (minted, rented, used, sold, ...)
	EventType string `gorm:"column:event_type;not null;type:text;index:idx_ledger_events_agent_type,priority:2"`
	// AgentID is the subject agent, 0 for registry-level events such as fee withdrawals
	AgentID uint64 `gorm:"column:agent_id;not null;index:idx_ledger_events_agent_type,priority:1"`
	// Actor is the address that performed the operation
	Actor string `gorm:"column:actor;not null;type:text;index:idx_ledger_events_actor"`
	// OccurredAt is the ledger timestamp of the state change
	OccurredAt time.Time `gorm:"column:occurred_at;not null;type:timestamptz"`
	// Payload is the full event as JSON, including amounts and post-operation balances
	Payload datatypes.JSON `gorm:"column:payload;type:jsonb"`
}

// TableName specifies the table name for the LedgerEvent model
func (LedgerEvent) TableName() string {
	return "ledger_events"
}
