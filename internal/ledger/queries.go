package ledger

import (
	"time"

	"github.com/feral-file/agent-ledger/internal/domain"
)

// All queries are pure reads over a consistent snapshot and are safe to call
// at arbitrary frequency. Missing balance entries read as zero and are never
// created by a read.

// TotalAgents returns the number of agents ever minted
func (l *Ledger) TotalAgents() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return uint64(len(l.agents))
}

// AgentIDs returns every minted agent id in mint order
func (l *Ledger) AgentIDs() []uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]uint64, len(l.agents))
	for i := range l.agents {
		ids[i] = uint64(i) + 1
	}
	return ids
}

// AgentOf returns the agent record for an id
func (l *Ledger) AgentOf(id uint64) (domain.Agent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, err := l.agentLocked(id)
	if err != nil {
		return domain.Agent{}, err
	}
	return s.agent, nil
}

// MetadataOf returns the descriptive record for an id
func (l *Ledger) MetadataOf(id uint64) (domain.AgentMetadata, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, err := l.agentLocked(id)
	if err != nil {
		return domain.AgentMetadata{}, err
	}
	return s.agent.Metadata, nil
}

// ToolConfigOf returns the tool config for an id
func (l *Ledger) ToolConfigOf(id uint64) (domain.ToolConfig, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, err := l.agentLocked(id)
	if err != nil {
		return domain.ToolConfig{}, err
	}
	return s.config, nil
}

// OwnerOf returns the current owner of an id
func (l *Ledger) OwnerOf(id uint64) (domain.Address, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, err := l.agentLocked(id)
	if err != nil {
		return "", err
	}
	return s.owner, nil
}

// Agents returns a page of agent records in mint order plus the total count
func (l *Ledger) Agents(limit int, offset uint64) ([]domain.Agent, uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := uint64(len(l.agents))
	if offset >= total || limit <= 0 {
		return []domain.Agent{}, total
	}
	end := offset + uint64(limit)
	if end > total {
		end = total
	}
	page := make([]domain.Agent, 0, end-offset)
	for _, s := range l.agents[offset:end] {
		page = append(page, s.agent)
	}
	return page, total
}

// AgentsOwnedBy returns all agents currently owned by the given party
func (l *Ledger) AgentsOwnedBy(owner domain.Address) []domain.Agent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.Agent
	for _, s := range l.agents {
		if s.owner == owner {
			out = append(out, s.agent)
		}
	}
	return out
}

// AgentsForRent returns all agents whose rentable flag is on
func (l *Ledger) AgentsForRent() []domain.Agent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.Agent
	for _, s := range l.agents {
		if s.agent.Metadata.Rentable {
			out = append(out, s.agent)
		}
	}
	return out
}

// AgentsForSale returns the standing sale listings
func (l *Ledger) AgentsForSale() []domain.Listing {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.Listing
	for _, s := range l.agents {
		if s.listed {
			out = append(out, domain.Listing{AgentID: s.agent.ID, Price: s.price})
		}
	}
	return out
}

// ListingOf returns the sale listing for an id, or nil when not listed
func (l *Ledger) ListingOf(id uint64) (*domain.Listing, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, err := l.agentLocked(id)
	if err != nil {
		return nil, err
	}
	if !s.listed {
		return nil, nil
	}
	return &domain.Listing{AgentID: id, Price: s.price}, nil
}

// RentalBalanceOf returns the account's unconsumed rental credits
func (l *Ledger) RentalBalanceOf(id uint64, account domain.Address) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, err := l.agentLocked(id)
	if err != nil {
		return 0, err
	}
	return s.rentals[account], nil
}

// PrepaidBalanceOf returns the account's unconsumed prepaid inference credits
func (l *Ledger) PrepaidBalanceOf(id uint64, account domain.Address) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, err := l.agentLocked(id)
	if err != nil {
		return 0, err
	}
	return s.prepaid[account], nil
}

// BalanceSnapshot is an account's complete rental position on one agent
type BalanceSnapshot struct {
	Rentals   uint64
	Prepaid   uint64
	LastUse   time.Time
	UsesToday uint64
}

// BalanceSnapshotOf returns the account's full rental position in one
// consistent read
func (l *Ledger) BalanceSnapshotOf(id uint64, account domain.Address) (BalanceSnapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, err := l.agentLocked(id)
	if err != nil {
		return BalanceSnapshot{}, err
	}
	return BalanceSnapshot{
		Rentals:   s.rentals[account],
		Prepaid:   s.prepaid[account],
		LastUse:   s.lastUse[account],
		UsesToday: s.usesToday[account],
	}, nil
}

// LastUsedAt returns when the account last consumed a use, zero time if never
func (l *Ledger) LastUsedAt(id uint64, account domain.Address) (time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, err := l.agentLocked(id)
	if err != nil {
		return time.Time{}, err
	}
	return s.lastUse[account], nil
}

// CanUse reports whether the account may consume a use right now: true for
// the owner, otherwise true iff a rental balance remains
func (l *Ledger) CanUse(id uint64, account domain.Address) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, err := l.agentLocked(id)
	if err != nil {
		return false, err
	}
	return s.owner == account || s.rentals[account] > 0, nil
}

// AccruedFees returns the fee balance currently withdrawable by the admin
func (l *Ledger) AccruedFees() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.accrued
}
