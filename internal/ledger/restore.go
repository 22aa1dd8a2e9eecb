package ledger

import (
	"time"

	"github.com/feral-file/agent-ledger/internal/domain"
)

// RestoredAgent is the full state of one agent as reloaded from storage.
type RestoredAgent struct {
	Agent       domain.Agent
	Config      domain.ToolConfig
	Owner       domain.Address
	Rentals     map[domain.Address]uint64
	Prepaid     map[domain.Address]uint64
	LastUse     map[domain.Address]time.Time
	UsesToday   map[domain.Address]uint64
	Listed      bool
	ListedPrice uint64
}

// Restore replaces the ledger's state with a snapshot reloaded from storage.
// Agents must be ordered by id starting at 1 with no gaps. It is intended to
// run once at startup before the ledger is exposed to callers.
func (l *Ledger) Restore(agents []RestoredAgent, accruedFees uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	states := make([]*agentState, 0, len(agents))
	for i, r := range agents {
		if r.Agent.ID != uint64(i)+1 {
			return domain.ErrInvalidArgument
		}
		if !r.Owner.Valid() {
			return domain.ErrInvalidArgument
		}
		s := &agentState{
			agent:     r.Agent,
			config:    r.Config,
			owner:     r.Owner,
			rentals:   r.Rentals,
			prepaid:   r.Prepaid,
			lastUse:   r.LastUse,
			usesToday: r.UsesToday,
			listed:    r.Listed,
			price:     r.ListedPrice,
		}
		if s.rentals == nil {
			s.rentals = make(map[domain.Address]uint64)
		}
		if s.prepaid == nil {
			s.prepaid = make(map[domain.Address]uint64)
		}
		if s.lastUse == nil {
			s.lastUse = make(map[domain.Address]time.Time)
		}
		if s.usesToday == nil {
			s.usesToday = make(map[domain.Address]uint64)
		}
		states = append(states, s)
	}

	l.agents = states
	l.accrued = accruedFees
	return nil
}
