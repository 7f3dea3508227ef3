// Command clusterwatch is a terminal dashboard of the heartbeat and lock
// tables shared by a cluster of coordination nodes.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dd0wney/cluso-coord/pkg/clock"
	"github.com/dd0wney/cluso-coord/pkg/config"
	"github.com/dd0wney/cluso-coord/pkg/database"
	"github.com/dd0wney/cluso-coord/pkg/heartbeat"
	"github.com/dd0wney/cluso-coord/pkg/lockstore"
	"github.com/dd0wney/cluso-coord/pkg/logging"
)

// tables joins the two stores into one source
type tables struct {
	heartbeats *heartbeat.PGStore
	locks      *lockstore.PGStore
}

func (t tables) ListHeartbeats(ctx context.Context) ([]heartbeat.Row, error) {
	return t.heartbeats.ListHeartbeats(ctx)
}

func (t tables) ListLocks(ctx context.Context) ([]lockstore.LockRow, error) {
	return t.locks.ListLocks(ctx)
}

func main() {
	configPath := flag.String("config", os.Getenv("CLUSO_CONFIG"), "Path to YAML config file (or set CLUSO_CONFIG)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "clusterwatch: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("no database configured, set %s", config.EnvDatabaseURL)
	}

	pool, err := database.NewPool(context.Background(), cfg.Pool())
	if err != nil {
		return err
	}
	defer pool.Close()

	// The dashboard owns the terminal, so store warnings are dropped
	src := tables{
		heartbeats: heartbeat.NewPGStore(pool, database.NewPGTimeReader(pool), nil, logging.NewNopLogger()),
		locks:      lockstore.NewPGStore(pool),
	}

	p := tea.NewProgram(initialModel(src, clock.System{}, cfg.Cluster.LivenessThreshold), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
