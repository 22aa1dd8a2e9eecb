// Package recorder bridges the ledger's event stream to durable storage and
// the message broker. Events are processed on a single-worker pool so the
// journal and the mirror are written in emission order.
package recorder

import (
	"context"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/feral-file/agent-ledger/internal/adapter"
	"github.com/feral-file/agent-ledger/internal/domain"
	"github.com/feral-file/agent-ledger/internal/ledger"
	"github.com/feral-file/agent-ledger/internal/logger"
	"github.com/feral-file/agent-ledger/internal/messaging"
	"github.com/feral-file/agent-ledger/internal/store"
	"github.com/feral-file/agent-ledger/internal/store/schema"
)

// StateReader is the slice of the ledger the recorder needs to mirror an
// event into storage
//
//go:generate mockgen -source=recorder.go -destination=../mocks/state_reader.go -package=mocks -mock_names=StateReader=MockStateReader
type StateReader interface {
	AgentOf(id uint64) (domain.Agent, error)
	ToolConfigOf(id uint64) (domain.ToolConfig, error)
	OwnerOf(id uint64) (domain.Address, error)
	ListingOf(id uint64) (*domain.Listing, error)
	BalanceSnapshotOf(id uint64, account domain.Address) (ledger.BalanceSnapshot, error)
	AccruedFees() uint64
}

// Config tunes the recorder's queue and retry behavior
type Config struct {
	// QueueSize bounds the number of events waiting to be persisted
	QueueSize int
	// StoreRetryTimeout caps retries of a failed database write
	StoreRetryTimeout time.Duration
}

// Recorder persists every ledger event and publishes it to the broker.
// It implements ledger.EventSink.
type Recorder struct {
	reader    StateReader
	store     store.Store
	publisher messaging.Publisher
	json      adapter.JSON
	cfg       Config
	pool      pond.Pool
}

// New creates a recorder. Pass a nil publisher to persist without publishing.
func New(reader StateReader, st store.Store, publisher messaging.Publisher, jsonAdapter adapter.JSON, cfg Config) *Recorder {
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 1024
	}
	if cfg.StoreRetryTimeout == 0 {
		cfg.StoreRetryTimeout = 30 * time.Second
	}
	return &Recorder{
		reader:    reader,
		store:     st,
		publisher: publisher,
		json:      jsonAdapter,
		cfg:       cfg,
		// one worker: records must land in emission order
		pool: pond.NewPool(1, pond.WithQueueSize(cfg.QueueSize)),
	}
}

// Emit queues a ledger event for persistence and publishing. It never blocks
// the ledger; on a full queue the event is dropped and logged, and the mirror
// heals on the next write for the same rows.
func (r *Recorder) Emit(ev domain.LedgerEvent) {
	_, ok := r.pool.TrySubmit(func() {
		r.record(ev)
	})
	if !ok {
		logger.Error(domain.ErrEventBacklog,
			zap.String("event_id", ev.ID),
			zap.String("event_type", string(ev.Type)))
	}
}

// Close drains the queue and waits for in-flight writes to finish
func (r *Recorder) Close() {
	r.pool.StopAndWait()
}

func (r *Recorder) record(ev domain.LedgerEvent) {
	ctx := context.Background()

	rec, err := r.buildRecord(ev)
	if err != nil {
		logger.Error(err, zap.String("event_id", ev.ID))
		return
	}

	persist := func() error {
		return r.store.ApplyEvent(ctx, rec)
	}
	policy := backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(r.cfg.StoreRetryTimeout),
	)
	if err := backoff.Retry(persist, policy); err != nil {
		logger.Error(err,
			zap.String("event_id", ev.ID),
			zap.String("event_type", string(ev.Type)))
		return
	}

	if r.publisher == nil {
		return
	}
	if err := r.publisher.PublishEvent(ctx, &ev); err != nil {
		logger.Error(err,
			zap.String("event_id", ev.ID),
			zap.String("event_type", string(ev.Type)))
	}
}

// buildRecord maps an event to its journal entry plus the mirror rows it
// made stale. Mirror rows carry the ledger's current state, which converges
// because records are applied in emission order.
func (r *Recorder) buildRecord(ev domain.LedgerEvent) (*store.EventRecord, error) {
	payload, err := r.json.Marshal(&ev)
	if err != nil {
		return nil, err
	}

	rec := &store.EventRecord{
		Event: schema.LedgerEvent{
			EventID:    ev.ID,
			EventType:  string(ev.Type),
			AgentID:    ev.AgentID,
			Actor:      string(ev.Actor),
			OccurredAt: ev.Timestamp,
			Payload:    payload,
		},
	}

	switch ev.Type {
	case domain.EventTypeMinted, domain.EventTypeMetadataUpdated, domain.EventTypeConfigUpdated:
		agent, err := r.agentRow(ev.AgentID)
		if err != nil {
			return nil, err
		}
		rec.Agent = agent

	case domain.EventTypeTransferred, domain.EventTypeSold:
		agent, err := r.agentRow(ev.AgentID)
		if err != nil {
			return nil, err
		}
		rec.Agent = agent
		rec.ClearListing = true

	case domain.EventTypeRented:
		balance, err := r.balanceRow(ev.AgentID, ev.Actor)
		if err != nil {
			return nil, err
		}
		rec.Balance = balance
		fees := r.reader.AccruedFees()
		rec.AccruedFees = &fees

	case domain.EventTypeUsed:
		if ev.ByOwner {
			// owner uses are unmetered: journal only
			break
		}
		balance, err := r.balanceRow(ev.AgentID, ev.Actor)
		if err != nil {
			return nil, err
		}
		rec.Balance = balance
		fees := r.reader.AccruedFees()
		rec.AccruedFees = &fees

	case domain.EventTypeListed:
		listing, err := r.reader.ListingOf(ev.AgentID)
		if err != nil {
			return nil, err
		}
		if listing == nil {
			// listing already gone; a later event clears the row
			break
		}
		rec.Listing = &schema.SaleListing{
			AgentID:  listing.AgentID,
			Price:    listing.Price,
			ListedAt: ev.Timestamp,
		}

	case domain.EventTypeDelisted:
		rec.ClearListing = true

	case domain.EventTypeFeesWithdrawn:
		fees := r.reader.AccruedFees()
		rec.AccruedFees = &fees
	}

	return rec, nil
}

func (r *Recorder) agentRow(id uint64) (*schema.Agent, error) {
	agent, err := r.reader.AgentOf(id)
	if err != nil {
		return nil, err
	}
	cfg, err := r.reader.ToolConfigOf(id)
	if err != nil {
		return nil, err
	}
	owner, err := r.reader.OwnerOf(id)
	if err != nil {
		return nil, err
	}
	rawCfg, err := r.json.Marshal(&cfg)
	if err != nil {
		return nil, err
	}

	md := agent.Metadata
	return &schema.Agent{
		ID:                agent.ID,
		Name:              md.Name,
		Description:       md.Description,
		Model:             md.Model,
		UsageCost:         md.UsageCost,
		MaxUsagesPerDay:   md.MaxUsagesPerDay,
		Rentable:          md.Rentable,
		RentalPricePerUse: md.RentalPricePerUse,
		ExternalURI:       md.ExternalURI,
		Creator:           string(agent.Creator),
		Owner:             string(owner),
		ToolConfig:        rawCfg,
		ConfigHash:        agent.ConfigHash,
		CreatedAt:         agent.CreatedAt,
		UpdatedAt:         time.Now().UTC(),
	}, nil
}

func (r *Recorder) balanceRow(id uint64, account domain.Address) (*schema.RentalBalance, error) {
	snap, err := r.reader.BalanceSnapshotOf(id, account)
	if err != nil {
		return nil, err
	}
	return &schema.RentalBalance{
		AgentID:   id,
		Account:   string(account),
		Rentals:   snap.Rentals,
		Prepaid:   snap.Prepaid,
		LastUseAt: snap.LastUse,
		UsesToday: snap.UsesToday,
		UpdatedAt: time.Now().UTC(),
	}, nil
}
