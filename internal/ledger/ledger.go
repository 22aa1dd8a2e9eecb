// Package ledger implements the authoritative ownership, rental, usage and
// marketplace state machine for tokenized agents. All mutations are atomic:
// an operation either applies every state change and emits exactly one event,
// or fails leaving the ledger untouched. Operations that move funds commit
// state and emit their event before any outbound transfer, and hold a
// ledger-wide settlement flag so a nested value-transferring call fails with
// domain.ErrReentrancyBlocked instead of observing partial state.
package ledger

import (
	"crypto/rand"
	"fmt"
	"math/bits"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/feral-file/agent-ledger/internal/adapter"
	"github.com/feral-file/agent-ledger/internal/domain"
)

// Bank moves native currency on behalf of the ledger. Debits may fail when
// the payer's balance is short; payouts are credits and must not fail, which
// is what lets the ledger commit state before moving funds out.
//
//go:generate mockgen -source=ledger.go -destination=../mocks/ledger_bank.go -package=mocks -mock_names=Bank=MockBank,EventSink=MockEventSink
type Bank interface {
	// Debit removes amount from the payer's account
	Debit(from domain.Address, amount uint64) error
	// Pay credits amount to the recipient's account
	Pay(to domain.Address, amount uint64)
}

// EventSink receives the single event each mutating operation emits.
// Emit is called after the operation's state changes are committed and must
// not block the caller.
type EventSink interface {
	Emit(ev domain.LedgerEvent)
}

type nopSink struct{}

func (nopSink) Emit(domain.LedgerEvent) {}

// NopSink returns a sink that drops all events
func NopSink() EventSink {
	return nopSink{}
}

// agentState is the per-agent row group: identity, tool config, ownership,
// per-account balances and usage windows, and the sale listing.
// Balance maps are created lazily on first write; a missing key reads as zero.
type agentState struct {
	agent     domain.Agent
	config    domain.ToolConfig
	owner     domain.Address
	rentals   map[domain.Address]uint64
	prepaid   map[domain.Address]uint64
	lastUse   map[domain.Address]time.Time
	usesToday map[domain.Address]uint64
	listed    bool
	price     uint64
}

// Config holds the ledger's collaborators and administrative identity
type Config struct {
	// Admin is the registry's administrative owner, the only party allowed
	// to withdraw accrued fees
	Admin domain.Address
	Bank  Bank
	Sink  EventSink
	Clock adapter.Clock
}

// Ledger is the single authoritative state for all agents. Agent ids are
// sequential from 1 and index into the dense agents slice.
type Ledger struct {
	mu      sync.Mutex
	agents  []*agentState
	accrued uint64 // fees retained from rentals and pay-per-use settlements

	// settling guards every value-transferring operation for its full
	// duration, including the outbound transfers after state is committed
	settling atomic.Bool

	admin   domain.Address
	bank    Bank
	sink    EventSink
	clock   adapter.Clock
	entropy *ulid.MonotonicEntropy
}

// New creates a ledger with the given collaborators. A nil sink drops events
// and a nil clock uses wall time.
func New(cfg Config) *Ledger {
	sink := cfg.Sink
	if sink == nil {
		sink = NopSink()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = adapter.NewClock()
	}
	return &Ledger{
		admin:   cfg.Admin,
		bank:    cfg.Bank,
		sink:    sink,
		clock:   clock,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// SetSink replaces the event sink. The recorder reads ledger state back, so
// it is constructed after the ledger; call this during startup wiring, before
// the ledger is exposed to callers.
func (l *Ledger) SetSink(sink EventSink) {
	if sink == nil {
		sink = NopSink()
	}
	l.mu.Lock()
	l.sink = sink
	l.mu.Unlock()
}

// enterSettlement marks the ledger as mid-settlement. A second entry while
// the flag is held is a reentrant call and is rejected.
func (l *Ledger) enterSettlement() error {
	if !l.settling.CompareAndSwap(false, true) {
		return domain.ErrReentrancyBlocked
	}
	return nil
}

func (l *Ledger) exitSettlement() {
	l.settling.Store(false)
}

// agentLocked returns the state for an id. Callers must hold l.mu.
func (l *Ledger) agentLocked(id uint64) (*agentState, error) {
	if id == 0 || id > uint64(len(l.agents)) {
		return nil, domain.ErrNotFound
	}
	return l.agents[id-1], nil
}

// newEventLocked builds an event skeleton. Callers must hold l.mu so ULIDs
// stay monotonic.
func (l *Ledger) newEventLocked(t domain.EventType, agentID uint64, actor domain.Address) domain.LedgerEvent {
	now := l.clock.Now().UTC()
	return domain.LedgerEvent{
		ID:        ulid.MustNew(ulid.Timestamp(now), l.entropy).String(),
		Type:      t,
		AgentID:   agentID,
		Actor:     actor,
		Timestamp: now,
	}
}

// Mint registers a new agent owned by the caller and returns its event,
// whose AgentID field carries the assigned id. Minting is free and never
// rejects duplicate names.
func (l *Ledger) Mint(caller domain.Address, md domain.AgentMetadata, cfg domain.ToolConfig) (domain.LedgerEvent, error) {
	if !caller.Valid() {
		return domain.LedgerEvent{}, fmt.Errorf("%w: caller address", domain.ErrInvalidArgument)
	}
	if err := md.Validate(); err != nil {
		return domain.LedgerEvent{}, err
	}
	if err := cfg.Validate(); err != nil {
		return domain.LedgerEvent{}, err
	}
	hash, err := cfg.Hash()
	if err != nil {
		return domain.LedgerEvent{}, err
	}

	l.mu.Lock()
	id := uint64(len(l.agents)) + 1
	now := l.clock.Now().UTC()
	l.agents = append(l.agents, &agentState{
		agent: domain.Agent{
			ID:         id,
			Metadata:   md,
			Creator:    caller,
			CreatedAt:  now,
			ConfigHash: hash,
		},
		config:    cfg,
		owner:     caller,
		rentals:   make(map[domain.Address]uint64),
		prepaid:   make(map[domain.Address]uint64),
		lastUse:   make(map[domain.Address]time.Time),
		usesToday: make(map[domain.Address]uint64),
	})
	ev := l.newEventLocked(domain.EventTypeMinted, id, caller)
	l.mu.Unlock()

	l.sink.Emit(ev)
	return ev, nil
}

// UpdateMetadata replaces an agent's metadata wholesale. Owner only.
func (l *Ledger) UpdateMetadata(caller domain.Address, id uint64, md domain.AgentMetadata) (domain.LedgerEvent, error) {
	if err := md.Validate(); err != nil {
		return domain.LedgerEvent{}, err
	}

	l.mu.Lock()
	s, err := l.agentLocked(id)
	if err != nil {
		l.mu.Unlock()
		return domain.LedgerEvent{}, err
	}
	if s.owner != caller {
		l.mu.Unlock()
		return domain.LedgerEvent{}, domain.ErrUnauthorized
	}
	s.agent.Metadata = md
	ev := l.newEventLocked(domain.EventTypeMetadataUpdated, id, caller)
	l.mu.Unlock()

	l.sink.Emit(ev)
	return ev, nil
}

// UpdateToolConfig replaces an agent's tool config wholesale. Owner only.
func (l *Ledger) UpdateToolConfig(caller domain.Address, id uint64, cfg domain.ToolConfig) (domain.LedgerEvent, error) {
	if err := cfg.Validate(); err != nil {
		return domain.LedgerEvent{}, err
	}
	hash, err := cfg.Hash()
	if err != nil {
		return domain.LedgerEvent{}, err
	}

	l.mu.Lock()
	s, err := l.agentLocked(id)
	if err != nil {
		l.mu.Unlock()
		return domain.LedgerEvent{}, err
	}
	if s.owner != caller {
		l.mu.Unlock()
		return domain.LedgerEvent{}, domain.ErrUnauthorized
	}
	s.config = cfg
	s.agent.ConfigHash = hash
	ev := l.newEventLocked(domain.EventTypeConfigUpdated, id, caller)
	l.mu.Unlock()

	l.sink.Emit(ev)
	return ev, nil
}

// Transfer hands an agent to another party without settlement. Owner only.
// Any standing sale listing is cleared together with the ownership change, so
// a stale listing can never survive a transfer.
func (l *Ledger) Transfer(caller domain.Address, id uint64, to domain.Address) (domain.LedgerEvent, error) {
	if !to.Valid() {
		return domain.LedgerEvent{}, fmt.Errorf("%w: recipient address", domain.ErrInvalidArgument)
	}

	l.mu.Lock()
	s, err := l.agentLocked(id)
	if err != nil {
		l.mu.Unlock()
		return domain.LedgerEvent{}, err
	}
	if s.owner != caller {
		l.mu.Unlock()
		return domain.LedgerEvent{}, domain.ErrUnauthorized
	}
	transferOwnershipLocked(s, to)
	ev := l.newEventLocked(domain.EventTypeTransferred, id, caller)
	ev.Counterparty = &to
	l.mu.Unlock()

	l.sink.Emit(ev)
	return ev, nil
}

// transferOwnershipLocked changes the owner and clears the sale listing in
// one step; no intermediate state is observable. Callers must hold l.mu.
func transferOwnershipLocked(s *agentState, to domain.Address) {
	s.owner = to
	s.listed = false
	s.price = 0
}

// mulChecked multiplies two amounts, rejecting overflow
func mulChecked(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, fmt.Errorf("%w: cost overflows", domain.ErrInvalidArgument)
	}
	return lo, nil
}

// addChecked adds two amounts, rejecting overflow
func addChecked(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, fmt.Errorf("%w: amount overflows", domain.ErrInvalidArgument)
	}
	return sum, nil
}
