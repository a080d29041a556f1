// Command agent runs the executor loop against a remote twapd instance.
// In preflight mode it prints the order snapshot and exits; in run mode it
// polls and submits eligible slices until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"twap-engine/internal/agent"
	"twap-engine/internal/config"
	"twap-engine/internal/log"
)

func main() {
	var (
		configPath = flag.String("config", "configs/config.yaml", "path to config file")
		mode       = flag.String("mode", "run", "preflight or run")
	)
	flag.Parse()

	if err := run(*configPath, *mode); err != nil {
		fmt.Fprintf(os.Stderr, "agent: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, mode string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Agent.ServerURL == "" {
		return fmt.Errorf("config: agent.server_url is required")
	}

	engine := agent.NewRemoteEngine(cfg.Agent.ServerURL, cfg.Server.ExecutorToken)

	switch mode {
	case "preflight":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return agent.Preflight(ctx, engine, uint64(time.Now().Unix()), os.Stdout)
	case "run":
		logger, err := log.NewLogger(cfg.Logging)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		runner := agent.NewRunner(agent.RunnerOptions{
			Engine:       engine,
			PollInterval: cfg.Agent.PollInterval,
			MaxRetry:     cfg.Agent.MaxRetry,
			Logger:       logger,
		})
		runner.Run(ctx)
		return nil
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}
