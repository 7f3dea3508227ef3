// Command clusterd runs a cluster coordination node: it heartbeats into the
// shared database, answers liveness queries, hands out cluster locks and
// serves a read-only admin API.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dd0wney/cluso-coord/pkg/config"
	"github.com/dd0wney/cluso-coord/pkg/logging"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", os.Getenv("CLUSO_CONFIG"), "Path to YAML config file (or set CLUSO_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.NewDefaultLogger().Error("invalid configuration", logging.Error(err))
		os.Exit(1)
	}

	logger := logging.NewJSONLogger(os.Stdout, logging.ParseLevel(cfg.Logging.Level)).
		With(logging.NodeID(cfg.Cluster.NodeID))
	logging.SetDefaultLogger(logger)

	if cfg.Cluster.GeneratedNodeID {
		logger.Warn("no node id configured, generated one for this run",
			logging.String("env", config.EnvNodeID))
	}
	logger.Info("cluso coordination node starting",
		logging.Bool("clustered", cfg.Cluster.Clustered),
		logging.Duration("heartbeat_interval", cfg.Cluster.HeartbeatInterval),
		logging.Duration("liveness_threshold", cfg.Cluster.LivenessThreshold))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := newNode(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start node", logging.Error(err))
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- n.Start(ctx) }()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error("node stopped", logging.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	n.Shutdown(shutdownCtx)
	logger.Info("node exited")
}
