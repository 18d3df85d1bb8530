package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/coldfetch/internal/config"
	"github.com/roach88/coldfetch/internal/confine"
	"github.com/roach88/coldfetch/internal/dispatch"
	"github.com/roach88/coldfetch/internal/logging"
	"github.com/roach88/coldfetch/internal/store"
)

// shutdownTimeout bounds how long a command waits for queued work on exit.
const shutdownTimeout = 5 * time.Second

// app is the per-invocation wiring shared by commands.
type app struct {
	cfg       *config.Config
	log       logging.Logger
	formatter *OutputFormatter
}

// newApp loads configuration and builds the logger. Flags override config.
func newApp(opts *RootOptions, cmd *cobra.Command) (*app, error) {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	if opts.DB != "" {
		cfg.Database = opts.DB
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}

	log, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: logging.Format(cfg.Log.Format),
		Out:    cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeConfig, "invalid log settings", err)
	}

	return &app{cfg: cfg, log: log, formatter: formatter}, nil
}

// openStore opens the configured database.
func (a *app) openStore() (*store.Store, error) {
	st, err := store.Open(a.cfg.Database)
	if err != nil {
		return nil, a.formatter.Fail(ExitCommandError, ErrCodeNotFound,
			fmt.Sprintf("failed to open database %s", a.cfg.Database), err)
	}
	a.log.Debug("database opened", logging.String("path", a.cfg.Database))
	return st, nil
}

// deliveryTarget builds the configured delivery target and its cleanup.
func (a *app) deliveryTarget() (dispatch.Scheduler, func(), error) {
	switch a.cfg.Delivery.Mode {
	case config.DeliveryQueue:
		q := confine.NewQueue("delivery", confine.WithQueueLogger(a.log))
		return q, func() { shutdown(q) }, nil
	case config.DeliveryPool:
		pool, err := dispatch.NewPool(a.cfg.Delivery.PoolSize, a.log)
		if err != nil {
			return nil, nil, a.formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to create delivery pool", err)
		}
		return pool, func() { _ = pool.Release(shutdownTimeout) }, nil
	case config.DeliveryAsync:
		return dispatch.Async{}, func() {}, nil
	default:
		return dispatch.Immediate{}, func() {}, nil
	}
}

// shutdown closes q and waits for its queued work.
func shutdown(q *confine.Queue) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = q.Shutdown(ctx)
}
