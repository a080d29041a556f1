// Command twapd runs the order-execution engine behind an HTTP API. It
// wires the configured storage backend, the market adapters, the
// notification fan-out, and optionally an in-process executor agent.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"twap-engine/internal/agent"
	"twap-engine/internal/config"
	"twap-engine/internal/httpapi"
	"twap-engine/internal/log"
	"twap-engine/internal/market"
	"twap-engine/internal/market/evm"
	"twap-engine/internal/market/stub"
	"twap-engine/internal/notify"
	"twap-engine/internal/observability"
	"twap-engine/internal/storage"
	"twap-engine/internal/storage/clickhouse"
	"twap-engine/internal/storage/memory"
	"twap-engine/internal/storage/migrations"
	"twap-engine/internal/storage/postgres"
	"twap-engine/internal/twap"
)

func main() {
	var (
		configPath = flag.String("config", "configs/config.yaml", "path to config file")
		withAgent  = flag.Bool("agent", false, "run the executor agent in-process")
	)
	flag.Parse()

	if err := run(*configPath, *withAgent); err != nil {
		fmt.Fprintf(os.Stderr, "twapd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, withAgent bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := log.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics("")

	fills, events, quotes, closeStores, err := buildStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStores()

	oracle, venue, bank, self, err := buildMarket(ctx, cfg, logger)
	if err != nil {
		return err
	}
	oracle = market.NewRecordingOracle(oracle, quotes, cfg.Market.Mode, logger, metrics)

	hub := notify.NewHub(logger, metrics)
	defer hub.Close()
	notifier := notify.Multi{
		notify.NewLogNotifier(logger),
		notify.NewStoreRecorder(fills, events, logger, metrics),
		hub,
	}

	owner, err := parseAddress(cfg.Engine.Owner, "engine.owner")
	if err != nil {
		return err
	}
	executor, err := parseAddress(cfg.Engine.Executor, "engine.executor")
	if err != nil {
		return err
	}
	if cfg.Engine.Self != "" {
		self, err = parseAddress(cfg.Engine.Self, "engine.self")
		if err != nil {
			return err
		}
	}

	engine, err := twap.New(twap.Options{
		Owner:    owner,
		Executor: executor,
		Self:     self,
		Oracle:   oracle,
		Venue:    venue,
		Bank:     bank,
		Notifier: notifier,
		Metrics:  metrics,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("init engine: %w", err)
	}

	api := httpapi.NewServer(engine, hub, cfg.Server.AdminToken, cfg.Server.ExecutorToken, logger)
	srv := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      api.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Server.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if withAgent {
		runner := agent.NewRunner(agent.RunnerOptions{
			Engine:       agent.NewLocalEngine(engine, executor),
			PollInterval: cfg.Agent.PollInterval,
			MaxRetry:     cfg.Agent.MaxRetry,
			Logger:       logger.Named("agent"),
		})
		go runner.Run(ctx)
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// buildStores constructs the fill, order-event and quote stores per the
// storage config and runs the backend migrations.
func buildStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.FillStore, storage.OrderEventStore, storage.QuoteStore, func(), error) {
	closers := []func(){}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var (
		fills  storage.FillStore
		events storage.OrderEventStore
	)
	switch cfg.Storage.Backend {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			closeAll()
			return nil, nil, nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		fills = postgres.NewFillStore(pool)
		events = postgres.NewOrderEventStore(pool)
		logger.Info("using postgres storage")
	default:
		fills = memory.NewFillStore()
		events = memory.NewOrderEventStore()
		logger.Info("using in-memory storage")
	}

	var quotes storage.QuoteStore
	if cfg.Storage.ClickhouseDSN != "" {
		conn, err := clickhouse.NewConn(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			closeAll()
			return nil, nil, nil, nil, fmt.Errorf("connect clickhouse: %w", err)
		}
		closers = append(closers, func() { conn.Close() })
		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			closeAll()
			return nil, nil, nil, nil, fmt.Errorf("migrate clickhouse: %w", err)
		}
		quotes = clickhouse.NewQuoteStore(conn)
		logger.Info("quote timeseries on clickhouse")
	} else {
		quotes = memory.NewQuoteStore()
	}

	return fills, events, quotes, closeAll, nil
}

// buildMarket constructs the oracle, venue and bank adapters. In evm mode
// the returned self address is the signer identity.
func buildMarket(ctx context.Context, cfg *config.Config, logger *zap.Logger) (market.Oracle, market.Venue, market.Bank, common.Address, error) {
	switch cfg.Market.Mode {
	case "evm":
		client, err := evm.Dial(ctx, cfg.Market.RPCURL, cfg.Market.PrivateKey, cfg.Market.ChainID)
		if err != nil {
			return nil, nil, nil, common.Address{}, fmt.Errorf("dial evm rpc: %w", err)
		}
		router, err := parseAddress(cfg.Market.RouterAddress, "market.router_address")
		if err != nil {
			return nil, nil, nil, common.Address{}, err
		}
		feed, err := parseAddress(cfg.Market.FeedAddress, "market.feed_address")
		if err != nil {
			return nil, nil, nil, common.Address{}, err
		}
		logger.Info("using evm market adapters",
			zap.String("router", router.Hex()),
			zap.String("feed", feed.Hex()),
			zap.String("signer", client.From.Hex()),
		)
		return evm.NewOracle(client, feed), evm.NewVenue(client, router), evm.NewBank(client), client.From, nil
	default:
		price, ok := new(big.Int).SetString(cfg.Market.StubPrice, 10)
		if !ok {
			return nil, nil, nil, common.Address{}, fmt.Errorf("invalid market.stub_price %q", cfg.Market.StubPrice)
		}
		logger.Info("using stub market adapters", zap.String("price", price.String()))
		return stub.NewOracle(price), stub.NewVenue(), stub.NewBank(), common.Address{}, nil
	}
}

func parseAddress(s, field string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("config: %s is not a valid address: %q", field, s)
	}
	return common.HexToAddress(s), nil
}
