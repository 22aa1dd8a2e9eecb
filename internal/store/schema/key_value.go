package schema

import (
	"time"
)

// KeyAccruedFees stores the withdrawable fee pool balance
const KeyAccruedFees = "accrued_fees"

// KeyValue represents the key_value_store table - small registry-level
// scalars that do not warrant their own table
type KeyValue struct {
	// Key is the unique identifier for the stored value
	Key string `gorm:"column:key;primaryKey;type:text"`
	// Value is the stored value as a string
	Value string `gorm:"column:value;not null;type:text"`
	// UpdatedAt is the timestamp when the value was last modified
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the KeyValue model
func (KeyValue) TableName() string {
	return "key_value_store"
}
