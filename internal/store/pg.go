package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/feral-file/agent-ledger/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// Migrate creates or updates the ledger tables
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&schema.Agent{},
		&schema.RentalBalance{},
		&schema.SaleListing{},
		&schema.LedgerEvent{},
		&schema.KeyValue{},
	)
}

// ConfigureConnectionPool configures the connection pool settings for a GORM
// database connection. Zero values fall back to defaults:
//   - MaxOpenConns: 20
//   - MaxIdleConns: 5
//   - ConnMaxLifetime: 5 minutes
//   - ConnMaxIdleTime: 10 minutes
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// ApplyEvent persists a journal entry and its mirror updates in one
// transaction. The journal insert carries ON CONFLICT DO NOTHING on the event
// id: a record that was already applied is skipped wholesale, which makes
// redeliveries from the recorder safe.
func (s *pgStore) ApplyEvent(ctx context.Context, rec *EventRecord) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).Create(&rec.Event)
		if res.Error != nil {
			return fmt.Errorf("failed to journal event %s: %w", rec.Event.EventID, res.Error)
		}
		if res.RowsAffected == 0 {
			// already journaled, mirror already reflects it
			return nil
		}

		if rec.Agent != nil {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				UpdateAll: true,
			}).Create(rec.Agent).Error; err != nil {
				return fmt.Errorf("failed to upsert agent %d: %w", rec.Agent.ID, err)
			}
		}

		if rec.Balance != nil {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "agent_id"}, {Name: "account"}},
				UpdateAll: true,
			}).Create(rec.Balance).Error; err != nil {
				return fmt.Errorf("failed to upsert balance for agent %d account %s: %w",
					rec.Balance.AgentID, rec.Balance.Account, err)
			}
		}

		if rec.Listing != nil {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "agent_id"}},
				UpdateAll: true,
			}).Create(rec.Listing).Error; err != nil {
				return fmt.Errorf("failed to upsert listing for agent %d: %w", rec.Listing.AgentID, err)
			}
		}

		if rec.ClearListing {
			if err := tx.Where("agent_id = ?", rec.Event.AgentID).
				Delete(&schema.SaleListing{}).Error; err != nil {
				return fmt.Errorf("failed to clear listing for agent %d: %w", rec.Event.AgentID, err)
			}
		}

		if rec.AccruedFees != nil {
			kv := schema.KeyValue{
				Key:       schema.KeyAccruedFees,
				Value:     strconv.FormatUint(*rec.AccruedFees, 10),
				UpdatedAt: time.Now().UTC(),
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				UpdateAll: true,
			}).Create(&kv).Error; err != nil {
				return fmt.Errorf("failed to update accrued fees: %w", err)
			}
		}

		return nil
	})
}

// ListEvents returns journal entries in emission order
func (s *pgStore) ListEvents(ctx context.Context, filter EventFilter) ([]schema.LedgerEvent, error) {
	q := s.db.WithContext(ctx).Model(&schema.LedgerEvent{})
	if filter.AgentID != 0 {
		q = q.Where("agent_id = ?", filter.AgentID)
	}
	if filter.Actor != "" {
		q = q.Where("actor = ?", filter.Actor)
	}
	if filter.EventType != "" {
		q = q.Where("event_type = ?", filter.EventType)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var events []schema.LedgerEvent
	if err := q.Order("\"cursor\" ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// GetAgent retrieves one agent row, nil when absent
func (s *pgStore) GetAgent(ctx context.Context, id uint64) (*schema.Agent, error) {
	var agent schema.Agent
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&agent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get agent %d: %w", id, err)
	}
	return &agent, nil
}

// LoadLedgerState loads the full mirror for ledger bootstrap
func (s *pgStore) LoadLedgerState(ctx context.Context) (*LedgerState, error) {
	var state LedgerState

	if err := s.db.WithContext(ctx).Order("id ASC").Find(&state.Agents).Error; err != nil {
		return nil, fmt.Errorf("failed to load agents: %w", err)
	}
	if err := s.db.WithContext(ctx).Find(&state.Balances).Error; err != nil {
		return nil, fmt.Errorf("failed to load rental balances: %w", err)
	}
	if err := s.db.WithContext(ctx).Find(&state.Listings).Error; err != nil {
		return nil, fmt.Errorf("failed to load sale listings: %w", err)
	}

	var kv schema.KeyValue
	err := s.db.WithContext(ctx).Where("key = ?", schema.KeyAccruedFees).First(&kv).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to load accrued fees: %w", err)
		}
		return &state, nil
	}
	fees, err := strconv.ParseUint(kv.Value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt accrued fees value %q: %w", kv.Value, err)
	}
	state.AccruedFees = fees

	return &state, nil
}
