package ledger_test

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/agent-ledger/internal/bank"
	"github.com/feral-file/agent-ledger/internal/domain"
	"github.com/feral-file/agent-ledger/internal/ledger"
)

const adminAddr = domain.Address("admin")

// fakeClock is a settable clock for exercising time-windowed behavior.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Since(t time.Time) time.Duration { return c.Now().Sub(t) }

func (c *fakeClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// captureSink records every emitted event in order.
type captureSink struct {
	mu     sync.Mutex
	events []domain.LedgerEvent
}

func (s *captureSink) Emit(ev domain.LedgerEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *captureSink) all() []domain.LedgerEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.LedgerEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *captureSink) last() domain.LedgerEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[len(s.events)-1]
}

type env struct {
	ledger *ledger.Ledger
	bank   *bank.AccountBook
	sink   *captureSink
	clock  *fakeClock
}

func newEnv(t *testing.T) *env {
	t.Helper()
	book := bank.NewAccountBook()
	sink := &captureSink{}
	clock := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	led := ledger.New(ledger.Config{
		Admin: adminAddr,
		Bank:  book,
		Sink:  sink,
		Clock: clock,
	})
	return &env{ledger: led, bank: book, sink: sink, clock: clock}
}

func testMetadata() domain.AgentMetadata {
	return domain.AgentMetadata{
		Name:              "researcher",
		Description:       "web research agent",
		Model:             "gpt-4o",
		UsageCost:         5,
		MaxUsagesPerDay:   0,
		Rentable:          true,
		RentalPricePerUse: 10,
		ExternalURI:       "ipfs://QmconfigV1",
	}
}

func testConfig() domain.ToolConfig {
	return domain.ToolConfig{
		WebSearch:      true,
		ResponseFormat: domain.ResponseFormatText,
		Temperature:    700,
		TopP:           950,
	}
}

func mustMint(t *testing.T, e *env, owner domain.Address, md domain.AgentMetadata) uint64 {
	t.Helper()
	ev, err := e.ledger.Mint(owner, md, testConfig())
	require.NoError(t, err)
	return ev.AgentID
}

func TestMint(t *testing.T) {
	e := newEnv(t)

	t.Run("assigns sequential ids from 1", func(t *testing.T) {
		ev1, err := e.ledger.Mint("alice", testMetadata(), testConfig())
		require.NoError(t, err)
		ev2, err := e.ledger.Mint("bob", testMetadata(), testConfig())
		require.NoError(t, err)

		assert.Equal(t, uint64(1), ev1.AgentID)
		assert.Equal(t, uint64(2), ev2.AgentID)
		assert.Equal(t, uint64(2), e.ledger.TotalAgents())

		owner, err := e.ledger.OwnerOf(1)
		require.NoError(t, err)
		assert.Equal(t, domain.Address("alice"), owner)
	})

	t.Run("records creator and config hash", func(t *testing.T) {
		id := mustMint(t, e, "carol", testMetadata())
		agent, err := e.ledger.AgentOf(id)
		require.NoError(t, err)
		assert.Equal(t, domain.Address("carol"), agent.Creator)

		wantHash, err := testConfig().Hash()
		require.NoError(t, err)
		assert.Equal(t, wantHash, agent.ConfigHash)
	})

	t.Run("rejects empty caller", func(t *testing.T) {
		_, err := e.ledger.Mint("", testMetadata(), testConfig())
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("rejects invalid metadata", func(t *testing.T) {
		md := testMetadata()
		md.Name = ""
		_, err := e.ledger.Mint("alice", md, testConfig())
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("allows duplicate names", func(t *testing.T) {
		md := testMetadata()
		md.Name = "twin"
		_, err := e.ledger.Mint("alice", md, testConfig())
		require.NoError(t, err)
		_, err = e.ledger.Mint("bob", md, testConfig())
		assert.NoError(t, err)
	})

	t.Run("emits one minted event", func(t *testing.T) {
		before := len(e.sink.all())
		mustMint(t, e, "dave", testMetadata())
		events := e.sink.all()
		require.Len(t, events, before+1)
		assert.Equal(t, domain.EventTypeMinted, events[len(events)-1].Type)
	})
}

func TestUpdateMetadata(t *testing.T) {
	e := newEnv(t)
	id := mustMint(t, e, "alice", testMetadata())

	t.Run("owner replaces record wholesale", func(t *testing.T) {
		md := testMetadata()
		md.Description = "updated"
		md.RentalPricePerUse = 25
		_, err := e.ledger.UpdateMetadata("alice", id, md)
		require.NoError(t, err)

		got, err := e.ledger.MetadataOf(id)
		require.NoError(t, err)
		assert.Equal(t, md, got)
	})

	t.Run("non-owner rejected", func(t *testing.T) {
		_, err := e.ledger.UpdateMetadata("mallory", id, testMetadata())
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("unknown agent", func(t *testing.T) {
		_, err := e.ledger.UpdateMetadata("alice", 99, testMetadata())
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestUpdateToolConfig(t *testing.T) {
	e := newEnv(t)
	id := mustMint(t, e, "alice", testMetadata())

	t.Run("owner update refreshes hash", func(t *testing.T) {
		before, err := e.ledger.AgentOf(id)
		require.NoError(t, err)

		cfg := testConfig()
		cfg.CodeExecution = true
		cfg.Temperature = 200
		_, err = e.ledger.UpdateToolConfig("alice", id, cfg)
		require.NoError(t, err)

		after, err := e.ledger.AgentOf(id)
		require.NoError(t, err)
		assert.NotEqual(t, before.ConfigHash, after.ConfigHash)

		got, err := e.ledger.ToolConfigOf(id)
		require.NoError(t, err)
		assert.Equal(t, cfg, got)
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		cfg := testConfig()
		cfg.ResponseFormat = "yaml"
		_, err := e.ledger.UpdateToolConfig("alice", id, cfg)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("non-owner rejected", func(t *testing.T) {
		_, err := e.ledger.UpdateToolConfig("mallory", id, testConfig())
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})
}

func TestTransfer(t *testing.T) {
	e := newEnv(t)
	id := mustMint(t, e, "alice", testMetadata())

	t.Run("non-owner rejected", func(t *testing.T) {
		_, err := e.ledger.Transfer("mallory", id, "mallory")
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("empty recipient rejected", func(t *testing.T) {
		_, err := e.ledger.Transfer("alice", id, "")
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("clears standing listing with ownership", func(t *testing.T) {
		_, err := e.ledger.ListForSale("alice", id, 500)
		require.NoError(t, err)

		ev, err := e.ledger.Transfer("alice", id, "bob")
		require.NoError(t, err)
		require.NotNil(t, ev.Counterparty)
		assert.Equal(t, domain.Address("bob"), *ev.Counterparty)

		owner, err := e.ledger.OwnerOf(id)
		require.NoError(t, err)
		assert.Equal(t, domain.Address("bob"), owner)

		listing, err := e.ledger.ListingOf(id)
		require.NoError(t, err)
		assert.Nil(t, listing)
	})
}

func TestPurchaseRental(t *testing.T) {
	t.Run("exact payment buys uses with no refund", func(t *testing.T) {
		e := newEnv(t)
		id := mustMint(t, e, "alice", testMetadata())
		e.bank.Deposit("bob", 100)

		ev, err := e.ledger.PurchaseRental("bob", id, 3, 30)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), ev.Uses)
		assert.Equal(t, uint64(30), ev.Amount)
		assert.Equal(t, uint64(0), ev.Refund)
		assert.False(t, ev.Prepaid)
		assert.Equal(t, uint64(3), ev.RentalBalance)

		got, err := e.ledger.RentalBalanceOf(id, "bob")
		require.NoError(t, err)
		assert.Equal(t, uint64(3), got)
		assert.Equal(t, uint64(70), e.bank.BalanceOf("bob"))
		assert.Equal(t, uint64(30), e.ledger.AccruedFees())
	})

	t.Run("overpayment is refunded in full", func(t *testing.T) {
		e := newEnv(t)
		id := mustMint(t, e, "alice", testMetadata())
		e.bank.Deposit("bob", 100)

		ev, err := e.ledger.PurchaseRental("bob", id, 2, 47)
		require.NoError(t, err)
		assert.Equal(t, uint64(27), ev.Refund)
		assert.Equal(t, uint64(80), e.bank.BalanceOf("bob"))
		assert.Equal(t, uint64(20), e.ledger.AccruedFees())
	})

	t.Run("repeat purchases accumulate", func(t *testing.T) {
		e := newEnv(t)
		id := mustMint(t, e, "alice", testMetadata())
		e.bank.Deposit("bob", 100)

		_, err := e.ledger.PurchaseRental("bob", id, 2, 20)
		require.NoError(t, err)
		_, err = e.ledger.PurchaseRental("bob", id, 4, 40)
		require.NoError(t, err)

		got, err := e.ledger.RentalBalanceOf(id, "bob")
		require.NoError(t, err)
		assert.Equal(t, uint64(6), got)
	})

	t.Run("underpayment rejected without side effects", func(t *testing.T) {
		e := newEnv(t)
		id := mustMint(t, e, "alice", testMetadata())
		e.bank.Deposit("bob", 100)

		_, err := e.ledger.PurchaseRental("bob", id, 3, 29)
		assert.ErrorIs(t, err, domain.ErrInsufficientPayment)
		assert.Equal(t, uint64(100), e.bank.BalanceOf("bob"))

		got, err := e.ledger.RentalBalanceOf(id, "bob")
		require.NoError(t, err)
		assert.Equal(t, uint64(0), got)
	})

	t.Run("insufficient funds rejected without side effects", func(t *testing.T) {
		e := newEnv(t)
		id := mustMint(t, e, "alice", testMetadata())
		e.bank.Deposit("bob", 5)

		_, err := e.ledger.PurchaseRental("bob", id, 1, 10)
		assert.ErrorIs(t, err, bank.ErrInsufficientFunds)

		got, err := e.ledger.RentalBalanceOf(id, "bob")
		require.NoError(t, err)
		assert.Equal(t, uint64(0), got)
		assert.Equal(t, uint64(0), e.ledger.AccruedFees())
	})

	t.Run("not rentable", func(t *testing.T) {
		e := newEnv(t)
		md := testMetadata()
		md.Rentable = false
		id := mustMint(t, e, "alice", md)
		e.bank.Deposit("bob", 100)

		_, err := e.ledger.PurchaseRental("bob", id, 1, 10)
		assert.ErrorIs(t, err, domain.ErrNotRentable)
	})

	t.Run("zero uses rejected", func(t *testing.T) {
		e := newEnv(t)
		id := mustMint(t, e, "alice", testMetadata())
		_, err := e.ledger.PurchaseRental("bob", id, 0, 0)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("unknown agent", func(t *testing.T) {
		e := newEnv(t)
		_, err := e.ledger.PurchaseRental("bob", 7, 1, 10)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestPurchaseRentalWithInference(t *testing.T) {
	// rentalPricePerUse=10, usageCost=5, 3 uses at (10+5)*3 = 45
	e := newEnv(t)
	id := mustMint(t, e, "alice", testMetadata())
	e.bank.Deposit("bob", 45)

	ev, err := e.ledger.PurchaseRentalWithInference("bob", id, 3, 45)
	require.NoError(t, err)
	assert.True(t, ev.Prepaid)
	assert.Equal(t, uint64(45), ev.Amount)
	assert.Equal(t, uint64(3), ev.RentalBalance)
	assert.Equal(t, uint64(3), ev.PrepaidBalance)
	assert.Equal(t, uint64(0), e.bank.BalanceOf("bob"))

	// all three uses settle from the prepaid balance with no payment
	for i := 0; i < 3; i++ {
		uev, err := e.ledger.ConsumeUse("bob", id, 0, domain.ConsumeModePrepaid)
		require.NoError(t, err)
		assert.True(t, uev.Prepaid)
		assert.Equal(t, uint64(2-i), uev.RentalBalance)
		assert.Equal(t, uint64(2-i), uev.PrepaidBalance)
	}

	// the balance is fully drained, not short by one
	_, err = e.ledger.ConsumeUse("bob", id, 0, domain.ConsumeModePrepaid)
	assert.ErrorIs(t, err, domain.ErrNoRentalBalance)
	assert.Equal(t, uint64(45), e.ledger.AccruedFees())
}

func TestPurchaseRentalWithInferencePrepaidOverflow(t *testing.T) {
	// A free agent lets the balances grow without exhausting funds. Pay-per-use
	// consumption drains rentals but not prepaid, so prepaid sits one above
	// rentals and must be overflow-checked on its own.
	e := newEnv(t)
	md := testMetadata()
	md.UsageCost = 0
	md.RentalPricePerUse = 0
	id := mustMint(t, e, "alice", md)

	_, err := e.ledger.PurchaseRentalWithInference("bob", id, math.MaxUint64-1, 0)
	require.NoError(t, err)
	_, err = e.ledger.ConsumeUse("bob", id, 0, domain.ConsumeModePayPerUse)
	require.NoError(t, err)

	// rentals has headroom for 2 more, prepaid does not
	_, err = e.ledger.PurchaseRentalWithInference("bob", id, 2, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	rentals, err := e.ledger.RentalBalanceOf(id, "bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64-2), rentals)
	prepaid, err := e.ledger.PrepaidBalanceOf(id, "bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64-1), prepaid)
}

func TestConsumeUse(t *testing.T) {
	t.Run("owner uses free and unmetered", func(t *testing.T) {
		e := newEnv(t)
		md := testMetadata()
		md.MaxUsagesPerDay = 1
		id := mustMint(t, e, "alice", md)

		for i := 0; i < 5; i++ {
			ev, err := e.ledger.ConsumeUse("alice", id, 0, domain.ConsumeModePayPerUse)
			require.NoError(t, err)
			assert.True(t, ev.ByOwner)
			assert.Equal(t, uint64(0), ev.Amount)
		}
		assert.Equal(t, uint64(0), e.ledger.AccruedFees())
	})

	t.Run("pay per use debits cost and refunds excess", func(t *testing.T) {
		e := newEnv(t)
		id := mustMint(t, e, "alice", testMetadata())
		e.bank.Deposit("bob", 100)
		_, err := e.ledger.PurchaseRental("bob", id, 2, 20)
		require.NoError(t, err)

		ev, err := e.ledger.ConsumeUse("bob", id, 8, domain.ConsumeModePayPerUse)
		require.NoError(t, err)
		assert.Equal(t, uint64(5), ev.Amount)
		assert.Equal(t, uint64(3), ev.Refund)
		assert.Equal(t, uint64(1), ev.RentalBalance)
		assert.Equal(t, uint64(75), e.bank.BalanceOf("bob"))
		assert.Equal(t, uint64(25), e.ledger.AccruedFees())
	})

	t.Run("no rental balance", func(t *testing.T) {
		e := newEnv(t)
		id := mustMint(t, e, "alice", testMetadata())
		_, err := e.ledger.ConsumeUse("bob", id, 10, domain.ConsumeModePayPerUse)
		assert.ErrorIs(t, err, domain.ErrNoRentalBalance)
	})

	t.Run("underpayment preserves balances", func(t *testing.T) {
		e := newEnv(t)
		id := mustMint(t, e, "alice", testMetadata())
		e.bank.Deposit("bob", 100)
		_, err := e.ledger.PurchaseRental("bob", id, 1, 10)
		require.NoError(t, err)

		_, err = e.ledger.ConsumeUse("bob", id, 4, domain.ConsumeModePayPerUse)
		assert.ErrorIs(t, err, domain.ErrInsufficientPayment)

		got, err := e.ledger.RentalBalanceOf(id, "bob")
		require.NoError(t, err)
		assert.Equal(t, uint64(1), got)
		assert.Equal(t, uint64(90), e.bank.BalanceOf("bob"))
	})

	t.Run("prepaid mode without prepaid balance", func(t *testing.T) {
		e := newEnv(t)
		id := mustMint(t, e, "alice", testMetadata())
		e.bank.Deposit("bob", 100)
		_, err := e.ledger.PurchaseRental("bob", id, 1, 10)
		require.NoError(t, err)

		_, err = e.ledger.ConsumeUse("bob", id, 0, domain.ConsumeModePrepaid)
		assert.ErrorIs(t, err, domain.ErrNoPrepaidBalance)
	})

	t.Run("invalid mode", func(t *testing.T) {
		e := newEnv(t)
		id := mustMint(t, e, "alice", testMetadata())
		_, err := e.ledger.ConsumeUse("bob", id, 0, "subscription")
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})
}

func TestDailyUsageLimit(t *testing.T) {
	setup := func(t *testing.T) (*env, uint64) {
		e := newEnv(t)
		md := testMetadata()
		md.MaxUsagesPerDay = 2
		id := mustMint(t, e, "alice", md)
		e.bank.Deposit("bob", 1000)
		_, err := e.ledger.PurchaseRental("bob", id, 10, 100)
		require.NoError(t, err)
		return e, id
	}

	t.Run("cap blocks the third use in a day", func(t *testing.T) {
		e, id := setup(t)
		for i := 0; i < 2; i++ {
			_, err := e.ledger.ConsumeUse("bob", id, 5, domain.ConsumeModePayPerUse)
			require.NoError(t, err)
		}
		_, err := e.ledger.ConsumeUse("bob", id, 5, domain.ConsumeModePayPerUse)
		assert.ErrorIs(t, err, domain.ErrDailyLimitExceeded)

		// blocked use consumed nothing
		got, err := e.ledger.RentalBalanceOf(id, "bob")
		require.NoError(t, err)
		assert.Equal(t, uint64(8), got)
	})

	t.Run("window resets at the UTC day boundary", func(t *testing.T) {
		e, id := setup(t)
		for i := 0; i < 2; i++ {
			_, err := e.ledger.ConsumeUse("bob", id, 5, domain.ConsumeModePayPerUse)
			require.NoError(t, err)
		}
		_, err := e.ledger.ConsumeUse("bob", id, 5, domain.ConsumeModePayPerUse)
		require.ErrorIs(t, err, domain.ErrDailyLimitExceeded)

		e.clock.Advance(13 * time.Hour) // past midnight UTC
		_, err = e.ledger.ConsumeUse("bob", id, 5, domain.ConsumeModePayPerUse)
		assert.NoError(t, err)
	})

	t.Run("limits are tracked per account", func(t *testing.T) {
		e, id := setup(t)
		e.bank.Deposit("carol", 1000)
		_, err := e.ledger.PurchaseRental("carol", id, 5, 50)
		require.NoError(t, err)

		for i := 0; i < 2; i++ {
			_, err := e.ledger.ConsumeUse("bob", id, 5, domain.ConsumeModePayPerUse)
			require.NoError(t, err)
		}
		_, err = e.ledger.ConsumeUse("carol", id, 5, domain.ConsumeModePayPerUse)
		assert.NoError(t, err)
	})

	t.Run("zero cap means uncapped", func(t *testing.T) {
		e := newEnv(t)
		id := mustMint(t, e, "alice", testMetadata())
		e.bank.Deposit("bob", 1000)
		_, err := e.ledger.PurchaseRental("bob", id, 20, 200)
		require.NoError(t, err)

		for i := 0; i < 20; i++ {
			_, err := e.ledger.ConsumeUse("bob", id, 5, domain.ConsumeModePayPerUse)
			require.NoError(t, err)
		}
	})
}

func TestMarketplace(t *testing.T) {
	t.Run("list then delist round trip", func(t *testing.T) {
		e := newEnv(t)
		id := mustMint(t, e, "alice", testMetadata())

		ev, err := e.ledger.ListForSale("alice", id, 1000)
		require.NoError(t, err)
		assert.Equal(t, uint64(1000), ev.Price)

		listing, err := e.ledger.ListingOf(id)
		require.NoError(t, err)
		require.NotNil(t, listing)
		assert.Equal(t, uint64(1000), listing.Price)

		_, err = e.ledger.Delist("alice", id)
		require.NoError(t, err)
		listing, err = e.ledger.ListingOf(id)
		require.NoError(t, err)
		assert.Nil(t, listing)
	})

	t.Run("relisting overwrites the price", func(t *testing.T) {
		e := newEnv(t)
		id := mustMint(t, e, "alice", testMetadata())
		_, err := e.ledger.ListForSale("alice", id, 1000)
		require.NoError(t, err)
		_, err = e.ledger.ListForSale("alice", id, 750)
		require.NoError(t, err)

		listing, err := e.ledger.ListingOf(id)
		require.NoError(t, err)
		require.NotNil(t, listing)
		assert.Equal(t, uint64(750), listing.Price)
	})

	t.Run("delist is idempotent", func(t *testing.T) {
		e := newEnv(t)
		id := mustMint(t, e, "alice", testMetadata())
		_, err := e.ledger.Delist("alice", id)
		require.NoError(t, err)
		_, err = e.ledger.Delist("alice", id)
		assert.NoError(t, err)
	})

	t.Run("zero price rejected", func(t *testing.T) {
		e := newEnv(t)
		id := mustMint(t, e, "alice", testMetadata())
		_, err := e.ledger.ListForSale("alice", id, 0)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("non-owner cannot list or delist", func(t *testing.T) {
		e := newEnv(t)
		id := mustMint(t, e, "alice", testMetadata())
		_, err := e.ledger.ListForSale("mallory", id, 100)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
		_, err = e.ledger.Delist("mallory", id)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})
}

func TestPurchase(t *testing.T) {
	t.Run("overpayment pays seller the price and refunds the rest", func(t *testing.T) {
		// listed at 1000, buyer pays 1200: seller +1000, buyer refunded 200
		e := newEnv(t)
		id := mustMint(t, e, "alice", testMetadata())
		_, err := e.ledger.ListForSale("alice", id, 1000)
		require.NoError(t, err)
		e.bank.Deposit("bob", 1200)

		ev, err := e.ledger.Purchase("bob", id, 1200)
		require.NoError(t, err)
		assert.Equal(t, uint64(1000), ev.Price)
		assert.Equal(t, uint64(200), ev.Refund)
		require.NotNil(t, ev.Counterparty)
		assert.Equal(t, domain.Address("alice"), *ev.Counterparty)

		owner, err := e.ledger.OwnerOf(id)
		require.NoError(t, err)
		assert.Equal(t, domain.Address("bob"), owner)

		listing, err := e.ledger.ListingOf(id)
		require.NoError(t, err)
		assert.Nil(t, listing)

		assert.Equal(t, uint64(1000), e.bank.BalanceOf("alice"))
		assert.Equal(t, uint64(200), e.bank.BalanceOf("bob"))
		// sale proceeds go to the seller, not the fee pool
		assert.Equal(t, uint64(0), e.ledger.AccruedFees())
	})

	t.Run("not for sale", func(t *testing.T) {
		e := newEnv(t)
		id := mustMint(t, e, "alice", testMetadata())
		e.bank.Deposit("bob", 1000)
		_, err := e.ledger.Purchase("bob", id, 1000)
		assert.ErrorIs(t, err, domain.ErrNotForSale)
	})

	t.Run("owner cannot buy own listing", func(t *testing.T) {
		e := newEnv(t)
		id := mustMint(t, e, "alice", testMetadata())
		_, err := e.ledger.ListForSale("alice", id, 1000)
		require.NoError(t, err)
		e.bank.Deposit("alice", 1000)

		_, err = e.ledger.Purchase("alice", id, 1000)
		assert.ErrorIs(t, err, domain.ErrSelfPurchase)
	})

	t.Run("underpayment leaves listing standing", func(t *testing.T) {
		e := newEnv(t)
		id := mustMint(t, e, "alice", testMetadata())
		_, err := e.ledger.ListForSale("alice", id, 1000)
		require.NoError(t, err)
		e.bank.Deposit("bob", 999)

		_, err = e.ledger.Purchase("bob", id, 999)
		assert.ErrorIs(t, err, domain.ErrInsufficientPayment)

		owner, err := e.ledger.OwnerOf(id)
		require.NoError(t, err)
		assert.Equal(t, domain.Address("alice"), owner)

		listing, err := e.ledger.ListingOf(id)
		require.NoError(t, err)
		assert.NotNil(t, listing)
	})

	t.Run("buyer's rental balance survives the sale", func(t *testing.T) {
		e := newEnv(t)
		id := mustMint(t, e, "alice", testMetadata())
		e.bank.Deposit("bob", 2000)
		_, err := e.ledger.PurchaseRental("bob", id, 3, 30)
		require.NoError(t, err)
		_, err = e.ledger.ListForSale("alice", id, 1000)
		require.NoError(t, err)
		_, err = e.ledger.Purchase("bob", id, 1000)
		require.NoError(t, err)

		got, err := e.ledger.RentalBalanceOf(id, "bob")
		require.NoError(t, err)
		assert.Equal(t, uint64(3), got)
	})
}

func TestWithdrawFees(t *testing.T) {
	t.Run("admin drains the accrued balance", func(t *testing.T) {
		e := newEnv(t)
		id := mustMint(t, e, "alice", testMetadata())
		e.bank.Deposit("bob", 100)
		_, err := e.ledger.PurchaseRental("bob", id, 3, 30)
		require.NoError(t, err)
		_, err = e.ledger.ConsumeUse("bob", id, 5, domain.ConsumeModePayPerUse)
		require.NoError(t, err)
		require.Equal(t, uint64(35), e.ledger.AccruedFees())

		ev, err := e.ledger.WithdrawFees(adminAddr)
		require.NoError(t, err)
		assert.Equal(t, uint64(35), ev.Amount)
		assert.Equal(t, uint64(35), e.bank.BalanceOf(adminAddr))
		assert.Equal(t, uint64(0), e.ledger.AccruedFees())
	})

	t.Run("non-admin rejected", func(t *testing.T) {
		e := newEnv(t)
		_, err := e.ledger.WithdrawFees("mallory")
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("nothing accrued", func(t *testing.T) {
		e := newEnv(t)
		_, err := e.ledger.WithdrawFees(adminAddr)
		assert.ErrorIs(t, err, domain.ErrNothingToWithdraw)
	})
}

func TestEventStream(t *testing.T) {
	e := newEnv(t)
	id := mustMint(t, e, "alice", testMetadata())
	e.bank.Deposit("bob", 2000)

	_, err := e.ledger.PurchaseRental("bob", id, 1, 10)
	require.NoError(t, err)
	_, err = e.ledger.ConsumeUse("bob", id, 5, domain.ConsumeModePayPerUse)
	require.NoError(t, err)
	_, err = e.ledger.ListForSale("alice", id, 1000)
	require.NoError(t, err)
	_, err = e.ledger.Purchase("bob", id, 1000)
	require.NoError(t, err)
	_, err = e.ledger.WithdrawFees(adminAddr)
	require.NoError(t, err)

	events := e.sink.all()
	require.Len(t, events, 6)

	wantTypes := []domain.EventType{
		domain.EventTypeMinted,
		domain.EventTypeRented,
		domain.EventTypeUsed,
		domain.EventTypeListed,
		domain.EventTypeSold,
		domain.EventTypeFeesWithdrawn,
	}
	for i, ev := range events {
		assert.Equal(t, wantTypes[i], ev.Type)
		assert.NotEmpty(t, ev.ID)
	}

	// ids are lexically sortable in emission order
	for i := 1; i < len(events); i++ {
		assert.Less(t, events[i-1].ID, events[i].ID)
	}
}
