package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/coldfetch/internal/compiler"
	"github.com/roach88/coldfetch/internal/confine"
	"github.com/roach88/coldfetch/internal/logging"
	"github.com/roach88/coldfetch/internal/metrics"
	"github.com/roach88/coldfetch/internal/stream"
)

// FetchOptions holds flags for the fetch command.
type FetchOptions struct {
	*RootOptions
	Timeout time.Duration // 0 means use config
	Metrics bool          // write Prometheus text to stderr after the fetch
}

// FetchResult is the JSON payload of a successful fetch.
type FetchResult struct {
	Entity  string       `json:"entity"`
	Request string       `json:"request"` // canonical request key
	Count   int          `json:"count"`
	Records []RecordView `json:"records"`
}

// NewFetchCommand creates the fetch command.
func NewFetchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FetchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fetch <request.cue>",
		Short: "Run a request through the confined stream bridge",
		Long: `Compile a CUE request file and fetch its records.

The request runs as one subscription on the store's confinement queue.
With --timeout the subscription is cancelled if it has not delivered in time.

Exit codes:
  0 - Records fetched
  1 - Fetch failed (validation, store access) or timed out
  2 - Command error (unreadable request, bad config)

Examples:
  coldfetch fetch open-tasks.cue --db tasks.db
  coldfetch fetch open-tasks.cue --format json --timeout 2s`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(opts, args[0], cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "cancel the fetch after this long (0 uses config)")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print Prometheus metrics to stderr")

	return cmd
}

func runFetch(opts *FetchOptions, path string, cmd *cobra.Command) error {
	a, err := newApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	f := a.formatter

	req, err := compiler.CompileFile(path)
	if err != nil {
		return f.Fail(ExitCommandError, errorCode(err), fmt.Sprintf("failed to compile %s", path), err)
	}
	f.VerboseLog("Request: %s", req)

	st, err := a.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	target, cleanup, err := a.deliveryTarget()
	if err != nil {
		return err
	}
	defer cleanup()

	reg := prometheus.NewRegistry()
	collectors := metrics.New(reg)

	queue := confine.NewQueue("store", confine.WithQueueLogger(a.log))
	defer shutdown(queue)
	exec := confine.NewExecutor(st, queue,
		confine.WithExecutorLogger(a.log),
		confine.WithObserver(collectors),
	)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = a.cfg.Fetch.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	s := stream.Adapt(exec, req,
		stream.WithDelivery(target),
		stream.WithLogger(a.log),
		stream.WithMetrics(collectors),
	)
	records, fetchErr := stream.Collect(ctx, s)

	if opts.Metrics {
		if err := metrics.WriteText(cmd.ErrOrStderr(), reg); err != nil {
			a.log.Warn("failed to write metrics", logging.Err(err))
		}
	}

	if fetchErr != nil {
		if errors.Is(fetchErr, context.DeadlineExceeded) {
			return f.Fail(ExitFailure, ErrCodeTimeout, fmt.Sprintf("fetch timed out after %s", timeout), fetchErr)
		}
		return f.Fail(ExitFailure, errorCode(fetchErr), "fetch failed", fetchErr)
	}

	if f.JSON() {
		return f.Success(FetchResult{
			Entity:  req.Entity(),
			Request: req.String(),
			Count:   len(records),
			Records: recordViews(records),
		})
	}
	return writeRecordsText(cmd.OutOrStdout(), records)
}
