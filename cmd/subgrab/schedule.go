package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/nao1215/subgrab/internal/fetch"
	"github.com/nao1215/subgrab/internal/log"
)

// defaultCronSpec runs once a day, shortly after the site publishes.
const defaultCronSpec = "0 8 * * *"

// cronParser accepts standard five-field specs, an optional leading seconds
// field and descriptors such as @daily or @every 6h.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// NewScheduleCmd creates the schedule command.
func NewScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Fetch subscription files repeatedly on a cron schedule",
		Long: `Schedule keeps running and executes the same pipeline as "subgrab run" on a
cron schedule until interrupted. A failed run is logged and does not stop
the schedule. A run that is still in progress when the next one is due
causes the next one to be skipped.

Examples:
  # Every day at 08:00 local time
  subgrab schedule

  # Every 6 hours, starting with an immediate run
  subgrab schedule --cron "@every 6h" --now

  # Every day at 07:30, recording each run
  subgrab schedule --cron "30 7 * * *" --history`,
		Args: cobra.NoArgs,
		RunE: runScheduleCmd,
	}

	addPipelineFlags(cmd)
	cmd.Flags().String("cron", defaultCronSpec,
		"Cron spec (5 or 6 fields, or a descriptor such as @daily or @every 6h)")
	cmd.Flags().Bool("now", false,
		"Run once immediately before waiting for the schedule")

	return cmd
}

// runScheduleCmd executes the schedule command.
func runScheduleCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	spec, err := cmd.Flags().GetString("cron")
	if err != nil {
		return err
	}
	now, err := cmd.Flags().GetBool("now")
	if err != nil {
		return err
	}

	logger := log.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// client is set before the scheduler starts.
	var client *fetch.Client
	job := func(ctx context.Context) {
		run, err := runOnce(ctx, cfg, client, cmd.OutOrStdout(), logger)
		if err != nil {
			logger.Error("scheduled run failed",
				"run", run.ID,
				"exitCode", exitCode(err),
				"error", err,
			)
			return
		}
		logger.Info("scheduled run completed", "run", run.ID, "files", len(run.SavedFiles()))
	}

	s, err := newScheduler(ctx, spec, job, logger)
	if err != nil {
		return err
	}

	client, cleanup, err := newClient(ctx, cfg, cmd.ErrOrStderr(), logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if now {
		job(ctx)
	}

	s.Start()
	fmt.Fprintf(cmd.ErrOrStderr(), "Scheduled with %q, next run at %s\n",
		spec, s.Next(time.Now()).Format(time.RFC3339))

	<-ctx.Done()
	logger.Info("received shutdown signal, waiting for the running job...")
	<-s.Stop().Done()
	return nil
}

// scheduler runs a single job on a cron schedule.
type scheduler struct {
	cron     *cron.Cron
	schedule cron.Schedule
}

// newScheduler parses spec and registers job. The job receives ctx, so a
// cancelled ctx also cancels a run in progress.
func newScheduler(ctx context.Context, spec string, job func(context.Context), logger *slog.Logger) (*scheduler, error) {
	if spec == "" {
		return nil, errors.New("cron spec is required")
	}
	schedule, err := cronParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}

	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	c.Schedule(schedule, cron.FuncJob(func() {
		start := time.Now()
		job(ctx)
		logger.Debug("scheduled job finished", "elapsed", time.Since(start))
	}))

	return &scheduler{cron: c, schedule: schedule}, nil
}

// Start starts the scheduler in its own goroutine.
func (s *scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler. The returned context is done once the running
// job, if any, has finished.
func (s *scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Next returns the first activation after t.
func (s *scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

// Info logs routine scheduler messages at debug level.
func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

// Error logs scheduler errors, e.g. a recovered panic.
func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
