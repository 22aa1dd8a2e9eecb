package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/feral-file/agent-ledger/internal/domain"
	"github.com/feral-file/agent-ledger/internal/store/schema"
)

var (
	testDB      *gorm.DB
	pgContainer *postgres.PostgresContainer
)

// TestMain sets up the test database before running tests
func TestMain(m *testing.M) {
	ctx := context.Background()

	// Check if we should use an external database (for CI or local development)
	dbHost := os.Getenv("TEST_DB_HOST")
	dbPort := os.Getenv("TEST_DB_PORT")
	dbUser := os.Getenv("TEST_DB_USER")
	dbPassword := os.Getenv("TEST_DB_PASSWORD")
	dbName := os.Getenv("TEST_DB_NAME")

	var dsn string
	var err error

	if dbHost != "" {
		// Use external database
		if dbPort == "" {
			dbPort = "5432"
		}
		if dbUser == "" {
			dbUser = "postgres"
		}
		if dbPassword == "" {
			dbPassword = "postgres"
		}
		if dbName == "" {
			dbName = "test_db"
		}

		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			dbHost, dbPort, dbUser, dbPassword, dbName)

		fmt.Printf("Using external database: %s:%s/%s\n", dbHost, dbPort, dbName)
	} else {
		// Start a PostgreSQL container for testing
		pgContainer, err = postgres.Run(ctx,
			"postgres:18-alpine",
			postgres.WithDatabase("test_db"),
			postgres.WithUsername("postgres"),
			postgres.WithPassword("postgres"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		if err != nil {
			fmt.Printf("Failed to start PostgreSQL container: %v\n", err)
			os.Exit(1)
		}

		dsn, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			fmt.Printf("Failed to get connection string: %v\n", err)
			if err := pgContainer.Terminate(ctx); err != nil {
				fmt.Printf("Failed to terminate PostgreSQL container: %v\n", err)
			}
			os.Exit(1)
		}

		fmt.Printf("Started PostgreSQL container\n")
	}

	// Connect to the database
	testDB, err = gorm.Open(pgdriver.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		fmt.Printf("Failed to connect to database: %v\n", err)
		if pgContainer != nil {
			if err := pgContainer.Terminate(ctx); err != nil {
				fmt.Printf("Failed to terminate PostgreSQL container: %v\n", err)
			}
		}
		os.Exit(1)
	}

	// Initialize the database schema
	if err := Migrate(testDB); err != nil {
		fmt.Printf("Failed to migrate database: %v\n", err)
		if pgContainer != nil {
			if err := pgContainer.Terminate(ctx); err != nil {
				fmt.Printf("Failed to terminate PostgreSQL container: %v\n", err)
			}
		}
		os.Exit(1)
	}

	// Run tests
	code := m.Run()

	// Cleanup
	if pgContainer != nil {
		if err := pgContainer.Terminate(ctx); err != nil {
			fmt.Printf("Failed to terminate PostgreSQL container: %v\n", err)
		}
	}

	os.Exit(code)
}

// initPGTestDB returns a store backed by a clean database
func initPGTestDB(t *testing.T) Store {
	t.Helper()
	for _, table := range []string{
		"ledger_events", "rental_balances", "sale_listings", "agents", "key_value_store",
	} {
		require.NoError(t, testDB.Exec("TRUNCATE TABLE "+table+" CASCADE").Error)
	}
	return NewPGStore(testDB)
}

func testAgentRow(id uint64, owner string) *schema.Agent {
	cfg, _ := json.Marshal(map[string]any{"web_search": true, "response_format": "text"})
	return &schema.Agent{
		ID:                id,
		Name:              fmt.Sprintf("agent-%d", id),
		Description:       "test agent",
		Model:             "gpt-4o",
		UsageCost:         5,
		Rentable:          true,
		RentalPricePerUse: 10,
		Creator:           owner,
		Owner:             owner,
		ToolConfig:        cfg,
		ConfigHash:        "deadbeef",
		CreatedAt:         time.Now().UTC().Truncate(time.Microsecond),
	}
}

func testEventRow(eventID string, eventType domain.EventType, agentID uint64, actor string) schema.LedgerEvent {
	payload, _ := json.Marshal(map[string]any{"id": eventID, "type": eventType})
	return schema.LedgerEvent{
		EventID:    eventID,
		EventType:  string(eventType),
		AgentID:    agentID,
		Actor:      actor,
		OccurredAt: time.Now().UTC().Truncate(time.Microsecond),
		Payload:    payload,
	}
}

func TestApplyEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("journals the event and upserts the agent", func(t *testing.T) {
		s := initPGTestDB(t)

		err := s.ApplyEvent(ctx, &EventRecord{
			Event: testEventRow("01AAAAAAAAAAAAAAAAAAAAAAA1", domain.EventTypeMinted, 1, "alice"),
			Agent: testAgentRow(1, "alice"),
		})
		require.NoError(t, err)

		agent, err := s.GetAgent(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, agent)
		assert.Equal(t, "alice", agent.Owner)

		events, err := s.ListEvents(ctx, EventFilter{AgentID: 1})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, string(domain.EventTypeMinted), events[0].EventType)
	})

	t.Run("re-applying the same event id is a no-op", func(t *testing.T) {
		s := initPGTestDB(t)

		rec := &EventRecord{
			Event: testEventRow("01AAAAAAAAAAAAAAAAAAAAAAA2", domain.EventTypeMinted, 1, "alice"),
			Agent: testAgentRow(1, "alice"),
		}
		require.NoError(t, s.ApplyEvent(ctx, rec))

		// redelivery carries a stale mirror row; nothing must change
		stale := *rec
		staleAgent := *rec.Agent
		staleAgent.Owner = "mallory"
		stale.Agent = &staleAgent
		require.NoError(t, s.ApplyEvent(ctx, &stale))

		agent, err := s.GetAgent(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, agent)
		assert.Equal(t, "alice", agent.Owner)

		events, err := s.ListEvents(ctx, EventFilter{})
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})

	t.Run("upserts balances and overwrites fee pool", func(t *testing.T) {
		s := initPGTestDB(t)
		require.NoError(t, s.ApplyEvent(ctx, &EventRecord{
			Event: testEventRow("01AAAAAAAAAAAAAAAAAAAAAAA3", domain.EventTypeMinted, 1, "alice"),
			Agent: testAgentRow(1, "alice"),
		}))

		fees := uint64(30)
		require.NoError(t, s.ApplyEvent(ctx, &EventRecord{
			Event: testEventRow("01AAAAAAAAAAAAAAAAAAAAAAA4", domain.EventTypeRented, 1, "bob"),
			Balance: &schema.RentalBalance{
				AgentID: 1,
				Account: "bob",
				Rentals: 3,
			},
			AccruedFees: &fees,
		}))

		// consuming a use updates the same row in place
		fees = 35
		require.NoError(t, s.ApplyEvent(ctx, &EventRecord{
			Event: testEventRow("01AAAAAAAAAAAAAAAAAAAAAAA5", domain.EventTypeUsed, 1, "bob"),
			Balance: &schema.RentalBalance{
				AgentID:   1,
				Account:   "bob",
				Rentals:   2,
				UsesToday: 1,
				LastUseAt: time.Now().UTC().Truncate(time.Microsecond),
			},
			AccruedFees: &fees,
		}))

		state, err := s.LoadLedgerState(ctx)
		require.NoError(t, err)
		require.Len(t, state.Balances, 1)
		assert.Equal(t, uint64(2), state.Balances[0].Rentals)
		assert.Equal(t, uint64(35), state.AccruedFees)
	})

	t.Run("listing upsert and clear", func(t *testing.T) {
		s := initPGTestDB(t)
		require.NoError(t, s.ApplyEvent(ctx, &EventRecord{
			Event: testEventRow("01AAAAAAAAAAAAAAAAAAAAAAA6", domain.EventTypeMinted, 1, "alice"),
			Agent: testAgentRow(1, "alice"),
		}))

		require.NoError(t, s.ApplyEvent(ctx, &EventRecord{
			Event: testEventRow("01AAAAAAAAAAAAAAAAAAAAAAA7", domain.EventTypeListed, 1, "alice"),
			Listing: &schema.SaleListing{
				AgentID:  1,
				Price:    1000,
				ListedAt: time.Now().UTC().Truncate(time.Microsecond),
			},
		}))

		state, err := s.LoadLedgerState(ctx)
		require.NoError(t, err)
		require.Len(t, state.Listings, 1)
		assert.Equal(t, uint64(1000), state.Listings[0].Price)

		// a sale rewrites the agent row and clears the listing in one record
		sold := testAgentRow(1, "bob")
		require.NoError(t, s.ApplyEvent(ctx, &EventRecord{
			Event:        testEventRow("01AAAAAAAAAAAAAAAAAAAAAAA8", domain.EventTypeSold, 1, "bob"),
			Agent:        sold,
			ClearListing: true,
		}))

		state, err = s.LoadLedgerState(ctx)
		require.NoError(t, err)
		assert.Empty(t, state.Listings)
		require.Len(t, state.Agents, 1)
		assert.Equal(t, "bob", state.Agents[0].Owner)
	})
}

func TestListEvents(t *testing.T) {
	ctx := context.Background()
	s := initPGTestDB(t)

	require.NoError(t, s.ApplyEvent(ctx, &EventRecord{
		Event: testEventRow("01AAAAAAAAAAAAAAAAAAAAAAB1", domain.EventTypeMinted, 1, "alice"),
		Agent: testAgentRow(1, "alice"),
	}))
	require.NoError(t, s.ApplyEvent(ctx, &EventRecord{
		Event: testEventRow("01AAAAAAAAAAAAAAAAAAAAAAB2", domain.EventTypeMinted, 2, "bob"),
		Agent: testAgentRow(2, "bob"),
	}))
	require.NoError(t, s.ApplyEvent(ctx, &EventRecord{
		Event: testEventRow("01AAAAAAAAAAAAAAAAAAAAAAB3", domain.EventTypeRented, 1, "bob"),
	}))

	t.Run("by agent", func(t *testing.T) {
		events, err := s.ListEvents(ctx, EventFilter{AgentID: 1})
		require.NoError(t, err)
		require.Len(t, events, 2)
		// emission order
		assert.Equal(t, string(domain.EventTypeMinted), events[0].EventType)
		assert.Equal(t, string(domain.EventTypeRented), events[1].EventType)
	})

	t.Run("by actor", func(t *testing.T) {
		events, err := s.ListEvents(ctx, EventFilter{Actor: "bob"})
		require.NoError(t, err)
		assert.Len(t, events, 2)
	})

	t.Run("by type with limit", func(t *testing.T) {
		events, err := s.ListEvents(ctx, EventFilter{EventType: string(domain.EventTypeMinted), Limit: 1})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, uint64(1), events[0].AgentID)
	})

	t.Run("offset pagination", func(t *testing.T) {
		events, err := s.ListEvents(ctx, EventFilter{Limit: 2, Offset: 2})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "01AAAAAAAAAAAAAAAAAAAAAAB3", events[0].EventID)
	})
}

func TestGetAgent(t *testing.T) {
	ctx := context.Background()
	s := initPGTestDB(t)

	agent, err := s.GetAgent(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, agent)
}

func TestLoadLedgerStateEmpty(t *testing.T) {
	ctx := context.Background()
	s := initPGTestDB(t)

	state, err := s.LoadLedgerState(ctx)
	require.NoError(t, err)
	assert.Empty(t, state.Agents)
	assert.Empty(t, state.Balances)
	assert.Empty(t, state.Listings)
	assert.Equal(t, uint64(0), state.AccruedFees)
}
