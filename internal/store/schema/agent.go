package schema

import (
	"time"

	"gorm.io/datatypes"
)

// Agent represents the agents table - the durable mirror of every minted
// agent's identity, descriptive record and current ownership
type Agent struct {
	// ID is the ledger-assigned agent id; sequential from 1, never reused
	ID uint64 `gorm:"column:id;primaryKey"`
	// Name is the agent's display name (not unique)
	Name string `gorm:"column:name;not null;type:text"`
	// Description is the free-form description of the agent
	Description string `gorm:"column:description;type:text"`
	// Model identifies the underlying AI model (e.g. "gpt-4o")
	Model string `gorm:"column:model;not null;type:text"`
	// UsageCost is the price per metered use in the smallest currency unit
	UsageCost uint64 `gorm:"column:usage_cost;not null;default:0"`
	// MaxUsagesPerDay caps non-owner uses per UTC day; 0 means uncapped
	MaxUsagesPerDay uint64 `gorm:"column:max_usages_per_day;not null;default:0"`
	// Rentable indicates whether rental purchases are open
	Rentable bool `gorm:"column:rentable;not null;default:false"`
	// RentalPricePerUse is the price per rental credit in the smallest currency unit
	RentalPricePerUse uint64 `gorm:"column:rental_price_per_use;not null;default:0"`
	// ExternalURI is an opaque pointer to off-chain configuration
	ExternalURI string `gorm:"column:external_uri;type:text"`
	// Creator is the address that minted the agent (immutable)
	Creator string `gorm:"column:creator;not null;type:text"`
	// Owner is the current owner's address
	Owner string `gorm:"column:owner;not null;type:text;index:idx_agents_owner"`
	// ToolConfig is the agent's current tool configuration as JSON
	ToolConfig datatypes.JSON `gorm:"column:tool_config;type:jsonb"`
	// ConfigHash is the canonical SHA-256 of the tool configuration
	ConfigHash string `gorm:"column:config_hash;not null;type:text"`
	// CreatedAt is the mint timestamp
	CreatedAt time.Time `gorm:"column:created_at;not null;type:timestamptz"`
	// UpdatedAt is the timestamp of the last mirror write
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`

	// Associations
	RentalBalances []RentalBalance `gorm:"foreignKey:AgentID;constraint:OnDelete:CASCADE"`
	SaleListing    *SaleListing    `gorm:"foreignKey:AgentID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the Agent model
func (Agent) TableName() string {
	return "agents"
}
