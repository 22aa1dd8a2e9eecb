package schema

import (
	"time"
)

// RentalBalance represents the rental_balances table - one row per
// (agent, account) pair that has ever purchased rental credits
type RentalBalance struct {
	// AgentID references the agent the credits are scoped to
	AgentID uint64 `gorm:"column:agent_id;primaryKey;autoIncrement:false"`
	// Account is the renter's address
	Account string `gorm:"column:account;primaryKey;type:text"`
	// Rentals is the number of unconsumed rental credits
	Rentals uint64 `gorm:"column:rentals;not null;default:0"`
	// Prepaid is the number of unconsumed prepaid inference credits
	Prepaid uint64 `gorm:"column:prepaid;not null;default:0"`
	// LastUseAt is when the account last consumed a use (zero if never)
	LastUseAt time.Time `gorm:"column:last_use_at;type:timestamptz"`
	// UsesToday is the number of uses consumed in the UTC day of LastUseAt
	UsesToday uint64 `gorm:"column:uses_today;not null;default:0"`
	// UpdatedAt is the timestamp of the last mirror write
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the RentalBalance model
func (RentalBalance) TableName() string {
	return "rental_balances"
}
