package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/feral-file/agent-ledger/internal/adapter"
	"github.com/feral-file/agent-ledger/internal/api/middleware"
	"github.com/feral-file/agent-ledger/internal/api/server"
	"github.com/feral-file/agent-ledger/internal/bank"
	"github.com/feral-file/agent-ledger/internal/config"
	"github.com/feral-file/agent-ledger/internal/domain"
	"github.com/feral-file/agent-ledger/internal/ledger"
	"github.com/feral-file/agent-ledger/internal/logger"
	"github.com/feral-file/agent-ledger/internal/messaging"
	"github.com/feral-file/agent-ledger/internal/providers/jetstream"
	"github.com/feral-file/agent-ledger/internal/recorder"
	"github.com/feral-file/agent-ledger/internal/store"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadAPIConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:     cfg.Debug,
		SentryDSN: cfg.SentryDSN,
		Tags: map[string]string{
			"service": "ledger-api",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Agent Ledger API")

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err))
	}

	// Configure connection pool
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}

	// Run migrations
	if err := store.Migrate(db); err != nil {
		logger.FatalCtx(ctx, "Failed to migrate database", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database",
		zap.Int("max_open_conns", cfg.Database.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.Database.MaxIdleConns),
	)

	// Initialize store and adapters
	dataStore := store.NewPGStore(db)
	jsonAdapter := adapter.NewJSON()

	// Connect to NATS JetStream when configured; the ledger runs without a
	// broker, journaling to the database only
	var publisher messaging.Publisher
	if cfg.NATS.URL != "" {
		publisher, err = jetstream.NewPublisher(ctx, jetstream.Config{
			URL:            cfg.NATS.URL,
			StreamName:     cfg.NATS.StreamName,
			MaxReconnects:  cfg.NATS.MaxReconnects,
			ReconnectWait:  cfg.NATS.ReconnectWait,
			ConnectionName: cfg.NATS.ConnectionName,
			ConnectTimeout: cfg.NATS.ConnectTimeout,
		}, adapter.NewNatsJetStream(), jsonAdapter)
		if err != nil {
			logger.FatalCtx(ctx, "Failed to connect to NATS", zap.Error(err))
		}
		defer publisher.Close()
		logger.InfoCtx(ctx, "Connected to NATS", zap.String("url", cfg.NATS.URL))
	} else {
		logger.WarnCtx(ctx, "NATS URL not configured, events will not be published")
	}

	// Build the ledger and restore its state from the mirror
	accountBook := bank.NewAccountBook()
	agentLedger := ledger.New(ledger.Config{
		Admin: cfg.Ledger.AdminAddress,
		Bank:  accountBook,
	})

	state, err := dataStore.LoadLedgerState(ctx)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to load ledger state", zap.Error(err))
	}
	restored, err := restoredAgents(state, jsonAdapter)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to decode ledger state", zap.Error(err))
	}
	if err := agentLedger.Restore(restored, state.AccruedFees); err != nil {
		logger.FatalCtx(ctx, "Failed to restore ledger state", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Restored ledger state",
		zap.Int("agents", len(restored)),
		zap.Uint64("accrued_fees", state.AccruedFees),
	)

	// Wire the recorder between the ledger and its durable stores
	rec := recorder.New(agentLedger, dataStore, publisher, jsonAdapter, recorder.Config{
		QueueSize:         cfg.Ledger.EventBuffer,
		StoreRetryTimeout: cfg.Ledger.StoreRetryTimeout,
	})
	agentLedger.SetSink(rec)

	// Create server config
	serverConfig := server.Config{
		Debug:        cfg.Debug,
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		Admin:        cfg.Ledger.AdminAddress,
		Auth: middleware.AuthConfig{
			JWTPublicKey: cfg.Auth.JWTPublicKey,
			APIKeys:      cfg.Auth.APIKeys,
		},
	}

	// Create and start server
	srv := server.New(serverConfig, agentLedger, accountBook, dataStore)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "server"))
		cancel()
	}

	// Create shutdown context with timeout (don't use canceled ctx)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	logger.InfoCtx(shutdownCtx, "Shutting down server...")

	// Shutdown server first so no new events are produced, then drain the
	// recorder queue
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.FatalCtx(shutdownCtx, "Server forced to shutdown", zap.Error(err))
	}
	rec.Close()

	// Use non-context logger for final message since original ctx is canceled
	logger.Info("API server stopped")
}

// restoredAgents converts the mirror rows into the ledger's snapshot form
func restoredAgents(state *store.LedgerState, jsonAdapter adapter.JSON) ([]ledger.RestoredAgent, error) {
	byAgent := make(map[uint64]*ledger.RestoredAgent, len(state.Agents))
	restored := make([]ledger.RestoredAgent, 0, len(state.Agents))

	for _, row := range state.Agents {
		var cfg domain.ToolConfig
		if len(row.ToolConfig) > 0 {
			if err := jsonAdapter.Unmarshal(row.ToolConfig, &cfg); err != nil {
				return nil, fmt.Errorf("failed to decode tool config of agent %d: %w", row.ID, err)
			}
		}
		restored = append(restored, ledger.RestoredAgent{
			Agent: domain.Agent{
				ID: row.ID,
				Metadata: domain.AgentMetadata{
					Name:              row.Name,
					Description:       row.Description,
					Model:             row.Model,
					UsageCost:         row.UsageCost,
					MaxUsagesPerDay:   row.MaxUsagesPerDay,
					Rentable:          row.Rentable,
					RentalPricePerUse: row.RentalPricePerUse,
					ExternalURI:       row.ExternalURI,
				},
				Creator:    domain.Address(row.Creator),
				CreatedAt:  row.CreatedAt,
				ConfigHash: row.ConfigHash,
			},
			Config: cfg,
			Owner:  domain.Address(row.Owner),
		})
		byAgent[row.ID] = &restored[len(restored)-1]
	}

	for _, b := range state.Balances {
		r, ok := byAgent[b.AgentID]
		if !ok {
			return nil, fmt.Errorf("balance row references unknown agent %d", b.AgentID)
		}
		if r.Rentals == nil {
			r.Rentals = make(map[domain.Address]uint64)
			r.Prepaid = make(map[domain.Address]uint64)
			r.LastUse = make(map[domain.Address]time.Time)
			r.UsesToday = make(map[domain.Address]uint64)
		}
		account := domain.Address(b.Account)
		r.Rentals[account] = b.Rentals
		r.Prepaid[account] = b.Prepaid
		if !b.LastUseAt.IsZero() {
			r.LastUse[account] = b.LastUseAt
		}
		r.UsesToday[account] = b.UsesToday
	}

	for _, l := range state.Listings {
		r, ok := byAgent[l.AgentID]
		if !ok {
			return nil, fmt.Errorf("listing row references unknown agent %d", l.AgentID)
		}
		r.Listed = true
		r.ListedPrice = l.Price
	}

	return restored, nil
}
