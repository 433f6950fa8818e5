package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/subgrab/internal/config"
	"github.com/nao1215/subgrab/internal/database"
	"github.com/nao1215/subgrab/internal/model"
)

// defaultHistoryLimit is the number of runs listed when --limit is not set.
const defaultHistoryLimit = 20

// defaultKeepRuns is the number of runs kept by "history prune".
const defaultKeepRuns = 30

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List runs recorded with --history",
		Long: `History lists runs recorded with "subgrab run --history", newest first.
The history is never read by the pipeline itself.

Examples:
  # List the 20 most recent runs
  subgrab history

  # Show a single run as Markdown
  subgrab history show 3f1c2e9a-... --markdown

  # Keep only the 10 most recent runs
  subgrab history prune --keep 10`,
		Args: cobra.NoArgs,
		RunE: runHistoryListCmd,
	}

	cmd.PersistentFlags().String("db-dir", "",
		"History database directory (default: XDG data directory)")
	cmd.Flags().IntP("limit", "l", defaultHistoryLimit,
		"Maximum number of runs to list (0 for all)")
	addFormatFlags(cmd)

	cmd.AddCommand(newHistoryShowCmd())
	cmd.AddCommand(newHistoryPruneCmd())

	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a single recorded run",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShowCmd,
	}
	addFormatFlags(cmd)
	return cmd
}

func newHistoryPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the most recent runs",
		Args:  cobra.NoArgs,
		RunE:  runHistoryPruneCmd,
	}
	cmd.Flags().Int("keep", defaultKeepRuns, "Number of most recent runs to keep")
	return cmd
}

func addFormatFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown (mutually exclusive with --json)")
}

// historyConfig resolves the database directory and output format.
// The directory comes from --db-dir, then the configuration file, then the
// XDG data directory.
func historyConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	if err := applyConfigFile(cfg, ""); err != nil {
		return nil, err
	}

	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}

	if cmd.Flags().Lookup("json") != nil {
		if cfg.JSONReport, err = cmd.Flags().GetBool("json"); err != nil {
			return nil, err
		}
		if cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown"); err != nil {
			return nil, err
		}
		if cfg.JSONReport && cfg.MarkdownReport {
			return nil, fmt.Errorf("configuration error: %w", config.ErrConflictingReportFormats)
		}
	}
	cfg.Verbose = getVerboseFlag(cmd)
	return cfg, nil
}

// openHistory opens an existing history database without creating one.
func openHistory(cfg *config.Config) (*database.HistoryDB, error) {
	return database.Open(cfg.DBDir, database.Options{
		CreateIfNotExists: false,
		EnableWAL:         true,
	})
}

// runHistoryListCmd executes the history command.
func runHistoryListCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := historyConfig(cmd)
	if err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	var runs []*model.Run
	db, err := openHistory(cfg)
	switch {
	case errors.Is(err, database.ErrDatabaseNotFound):
		// Nothing recorded yet.
	case err != nil:
		return err
	default:
		defer db.Close()
		if runs, err = db.ListRuns(cmd.Context(), limit); err != nil {
			return err
		}
	}

	_, err = newReportWriter(cfg, cmd.OutOrStdout()).WriteHistory(runs)
	return err
}

// runHistoryShowCmd executes the history show command.
func runHistoryShowCmd(cmd *cobra.Command, args []string) error {
	cfg, err := historyConfig(cmd)
	if err != nil {
		return err
	}

	db, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := db.GetRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	_, err = newReportWriter(cfg, cmd.OutOrStdout()).Write(run)
	return err
}

// runHistoryPruneCmd executes the history prune command.
func runHistoryPruneCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := historyConfig(cmd)
	if err != nil {
		return err
	}
	keep, err := cmd.Flags().GetInt("keep")
	if err != nil {
		return err
	}
	if keep < 0 {
		return fmt.Errorf("invalid --keep %d: must be non-negative", keep)
	}

	db, err := openHistory(cfg)
	if errors.Is(err, database.ErrDatabaseNotFound) {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
		return nil
	}
	if err != nil {
		return err
	}
	defer db.Close()

	removed, err := db.Prune(cmd.Context(), keep)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d run(s), kept the %d most recent.\n", removed, keep)
	return nil
}
