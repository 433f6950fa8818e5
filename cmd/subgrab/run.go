package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/subgrab/internal/config"
	"github.com/nao1215/subgrab/internal/database"
	"github.com/nao1215/subgrab/internal/fetch"
	"github.com/nao1215/subgrab/internal/log"
	"github.com/nao1215/subgrab/internal/model"
	"github.com/nao1215/subgrab/internal/pipeline"
	"github.com/nao1215/subgrab/internal/report"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch today's subscription files once",
		Long: `Run fetches the homepage, follows the newest article, decrypts the payload
embedded in its script and downloads the subscription files it links to.

A .txt link is saved as v2ray.txt and a .yaml link as clash.yaml in the
output directory. Other links are skipped.

Examples:
  # Fetch with defaults into ./output
  subgrab run

  # Search the passphrase range with 4 goroutines and print JSON
  subgrab run -w 4 --json

  # Route requests through a SOCKS5 proxy and record the run
  subgrab run --proxy 127.0.0.1:1080 --history

  # Use a custom configuration file
  subgrab run -c myconfig.yaml`,
		Args: cobra.NoArgs,
		RunE: runRunCmd,
	}

	addPipelineFlags(cmd)
	return cmd
}

// addPipelineFlags registers the flags shared by run and schedule.
func addPipelineFlags(cmd *cobra.Command) {
	flags := cmd.Flags()

	// Configuration file
	flags.StringP("config", "c", "",
		"Configuration file path (default: .subgrab in current or home directory)")

	// Source flags
	flags.StringP("url", "u", config.DefaultHomeURL,
		"Homepage listing the subscription articles")
	flags.String("selector", config.DefaultLinkSelector,
		"CSS selector of the newest article link")

	// Passphrase search flags
	flags.Int("min", config.DefaultPasswordMin,
		"First passphrase candidate (inclusive)")
	flags.Int("max", config.DefaultPasswordMax,
		"End of the passphrase range (exclusive)")
	flags.IntP("workers", "w", config.DefaultWorkers,
		"Number of goroutines searching the passphrase range")

	// Request flags
	flags.DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each HTTP request")
	flags.String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	flags.String("cookie", "",
		"Cookie header sent with every request")
	flags.StringToString("header", nil,
		"Extra HTTP header as name=value (repeatable)")
	flags.Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum response body size in bytes (0 for unlimited)")
	flags.StringP("proxy", "p", "",
		"Route requests through a SOCKS5 proxy (host:port)")
	flags.Bool("tor", false,
		"Route requests through an embedded Tor daemon")
	flags.Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Download flags
	flags.StringP("dir", "d", config.DefaultOutputDir,
		"Output directory for v2ray.txt and clash.yaml")
	flags.IntP("concurrency", "n", config.DefaultConcurrency,
		"Number of files downloaded in parallel")

	// Report flags
	flags.BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	flags.BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	flags.StringP("report-file", "o", "",
		"Write report to specified file path (creates directories if needed)")

	// History flags
	flags.Bool("history", false,
		"Record the run in the history database")
	flags.String("db-dir", "",
		"History database directory (default: XDG data directory)")
}

// runRunCmd executes the run command.
func runRunCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, cleanup, err := newClient(ctx, cfg, cmd.ErrOrStderr(), logger)
	if err != nil {
		return err
	}
	defer cleanup()

	_, err = runOnce(ctx, cfg, client, cmd.OutOrStdout(), logger)
	return err
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from defaults, the configuration file and
// the flags the user set explicitly, in that order of precedence.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	configPath, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}
	if err := applyConfigFile(cfg, configPath); err != nil {
		return nil, err
	}

	err = errors.Join(
		override(cmd, "url", flags.GetString, &cfg.HomeURL),
		override(cmd, "selector", flags.GetString, &cfg.LinkSelector),
		override(cmd, "min", flags.GetInt, &cfg.PasswordMin),
		override(cmd, "max", flags.GetInt, &cfg.PasswordMax),
		override(cmd, "workers", flags.GetInt, &cfg.Workers),
		override(cmd, "timeout", flags.GetDuration, &cfg.Timeout),
		override(cmd, "user-agent", flags.GetString, &cfg.UserAgent),
		override(cmd, "cookie", flags.GetString, &cfg.Cookie),
		override(cmd, "max-body-size", flags.GetInt64, &cfg.MaxBodySize),
		override(cmd, "proxy", flags.GetString, &cfg.ProxyAddress),
		override(cmd, "tor", flags.GetBool, &cfg.UseTor),
		override(cmd, "tor-timeout", flags.GetDuration, &cfg.TorStartupTimeout),
		override(cmd, "dir", flags.GetString, &cfg.OutputDir),
		override(cmd, "concurrency", flags.GetInt, &cfg.Concurrency),
		override(cmd, "json", flags.GetBool, &cfg.JSONReport),
		override(cmd, "markdown", flags.GetBool, &cfg.MarkdownReport),
		override(cmd, "report-file", flags.GetString, &cfg.ReportFile),
		override(cmd, "history", flags.GetBool, &cfg.SaveHistory),
		override(cmd, "db-dir", flags.GetString, &cfg.DBDir),
	)
	if err != nil {
		return nil, err
	}

	if flags.Changed("header") {
		headers, err := flags.GetStringToString("header")
		if err != nil {
			return nil, err
		}
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string, len(headers))
		}
		maps.Copy(cfg.Headers, headers)
	}

	cfg.Verbose = getVerboseFlag(cmd)
	return cfg, nil
}

// override copies the value of the named flag into dst if the user set it.
func override[T any](cmd *cobra.Command, name string, get func(string) (T, error), dst *T) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := get(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// applyConfigFile loads the configuration file onto cfg.
// If the user explicitly specified a path, a missing file is an error.
// Otherwise a missing file leaves cfg untouched.
func applyConfigFile(cfg *config.Config, configPath string) error {
	path := config.FindConfigFile(configPath)
	if path == "" {
		if configPath != "" {
			return fmt.Errorf("%w: %s", config.ErrConfigNotFound, configPath)
		}
		return nil
	}

	file, err := config.LoadConfigFile(path)
	if err != nil {
		return fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	file.ApplyTo(cfg)
	cfg.ConfigFilePath = path
	return nil
}

// runOnce executes the pipeline once, writes the report and records the
// run if history is enabled. The returned error is the pipeline error, or
// errDownloadsFailed when the pipeline finished with failed downloads.
func runOnce(ctx context.Context, cfg *config.Config, client pipeline.Client, stdout io.Writer, logger *slog.Logger) (*model.Run, error) {
	run := model.NewRun(cfg.HomeURL)

	logger.Info("starting run",
		"run", run.ID,
		"home", cfg.HomeURL,
		"output", cfg.OutputDir,
		"workers", cfg.Workers,
	)

	runErr := pipeline.DefaultPipeline(client, cfg, logger).Execute(ctx, run)
	if runErr == nil && run.FailedDownloads() > 0 {
		runErr = fmt.Errorf("%w: %d of %d", errDownloadsFailed, run.FailedDownloads(), len(run.Downloads))
	}

	if err := outputReport(cfg, run, stdout); err != nil {
		logger.Error("report failed", "run", run.ID, "error", err)
		if runErr == nil {
			runErr = fmt.Errorf("failed to write report: %w", err)
		}
	}

	// The run is recorded even when the pipeline was interrupted.
	if err := saveRun(context.WithoutCancel(ctx), cfg, run, logger); err != nil {
		logger.Error("failed to save run", "run", run.ID, "error", err)
	}

	return run, runErr
}

// newClient builds the HTTP client described by cfg.
// A SOCKS5 proxy is checked before use. An embedded Tor daemon is started
// here and stopped by the returned cleanup function.
func newClient(ctx context.Context, cfg *config.Config, progress io.Writer, logger *slog.Logger) (*fetch.Client, func(), error) {
	opts := []fetch.Option{
		fetch.WithTimeout(cfg.Timeout),
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithHeaders(cfg.Headers),
		fetch.WithCookie(cfg.Cookie),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
		fetch.WithLogger(logger),
	}
	cleanup := func() {}

	switch {
	case cfg.ProxyAddress != "":
		dialer, err := fetch.NewSOCKS5Dialer(cfg.ProxyAddress)
		if err != nil {
			return nil, nil, err
		}
		if err := checkProxy(ctx, cfg.ProxyAddress, cfg.HomeURL); err != nil {
			return nil, nil, fmt.Errorf("%w (make sure a SOCKS5 proxy is running at %s)", err, cfg.ProxyAddress)
		}
		logger.Info("SOCKS5 proxy connection verified", "address", cfg.ProxyAddress)
		opts = append(opts, fetch.WithDialer(dialer))

	case cfg.UseTor:
		tor, err := startEmbeddedTor(ctx, cfg, progress, logger)
		if err != nil {
			return nil, nil, err
		}
		dialer, err := tor.Dialer()
		if err != nil {
			_ = tor.Stop() //nolint:errcheck // Best effort cleanup
			return nil, nil, err
		}
		opts = append(opts, fetch.WithDialer(dialer))
		cleanup = func() {
			logger.Info("stopping embedded Tor daemon")
			if err := tor.Stop(); err != nil {
				logger.Error("failed to stop embedded Tor", "error", err)
			}
		}
	}

	return fetch.NewClient(opts...), cleanup, nil
}

// checkProxy asks the SOCKS5 proxy at address to connect to the host of homeURL.
func checkProxy(ctx context.Context, address, homeURL string) error {
	target, err := hostPort(homeURL)
	if err != nil {
		return err
	}
	if status := fetch.CheckProxy(ctx, address, target); status != fetch.ProxyStatusOK {
		return fmt.Errorf("proxy check failed: %w", status.Error())
	}
	return nil
}

// hostPort returns "host:port" for an http(s) URL, filling in the scheme's
// default port.
func hostPort(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("invalid URL %q: missing host", rawURL)
	}

	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}

// startEmbeddedTor starts an embedded Tor daemon using tornago and verifies
// its SOCKS port.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, progress io.Writer, logger *slog.Logger) (*fetch.EmbeddedTor, error) {
	fmt.Fprintln(progress, "Starting embedded Tor daemon...")
	fmt.Fprintf(progress, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	tor := fetch.NewEmbeddedTor(
		fetch.WithStartupTimeout(cfg.TorStartupTimeout),
	)
	if err := tor.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}

	if err := checkProxy(ctx, tor.SocksAddr(), cfg.HomeURL); err != nil {
		_ = tor.Stop() //nolint:errcheck // Best effort cleanup
		return nil, fmt.Errorf("embedded Tor %w", err)
	}

	logger.Info("embedded Tor daemon started", "socksAddr", tor.SocksAddr())
	fmt.Fprintf(progress, "SOCKS proxy: %s\n\n", tor.SocksAddr())
	return tor, nil
}

// outputReport writes the run report in the requested format to the report
// file, or to stdout if none is set.
func outputReport(cfg *config.Config, run *model.Run, stdout io.Writer) error {
	output := stdout
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create report directory: %w", err)
			}
		}

		// Reports contain the recovered passphrase; keep them owner-only.
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer f.Close()
		output = f
	}

	_, err := newReportWriter(cfg, output).Write(run)
	return err
}

// newReportWriter selects the report writer for the configured format.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}

// saveRun records the run in the history database if enabled.
func saveRun(ctx context.Context, cfg *config.Config, run *model.Run, logger *slog.Logger) error {
	if !cfg.SaveHistory {
		return nil
	}

	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.SaveRun(ctx, run); err != nil {
		return err
	}

	logger.Info("run saved to history", "run", run.ID, "db", db.Path())
	return nil
}
