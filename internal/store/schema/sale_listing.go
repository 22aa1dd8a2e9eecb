package schema

import (
	"time"
)

// SaleListing represents the sale_listings table - at most one standing sale
// offer per agent
type SaleListing struct {
	// AgentID references the listed agent
	AgentID uint64 `gorm:"column:agent_id;primaryKey;autoIncrement:false"`
	// Price is the asking price in the smallest currency unit; always positive
	Price uint64 `gorm:"column:price;not null"`
	// ListedAt is when the current listing was created or last repriced
	ListedAt time.Time `gorm:"column:listed_at;not null;type:timestamptz"`
}

// TableName specifies the table name for the SaleListing model
func (SaleListing) TableName() string {
	return "sale_listings"
}
