package config

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultHomeURL is the homepage whose first article links to the
	// daily subscription page.
	DefaultHomeURL = "https://www.yudou66.com/"

	// DefaultLinkSelector selects the header link of articles on the homepage.
	// The first match in document order belongs to the newest article.
	DefaultLinkSelector = "#main article div.entry-header a"

	// DefaultOutputDir is where v2ray.txt and clash.yaml are written.
	DefaultOutputDir = "output"

	// DefaultPasswordMin is the first passphrase candidate (inclusive).
	DefaultPasswordMin = 1000

	// DefaultPasswordMax is the end of the passphrase range (exclusive).
	DefaultPasswordMax = 10000

	// DefaultWorkers is the number of goroutines searching the passphrase range.
	DefaultWorkers = 1

	// DefaultTimeout bounds every HTTP request, including body reads.
	DefaultTimeout = 30 * time.Second

	// DefaultConcurrency is the number of output files downloaded in parallel.
	DefaultConcurrency = 2

	// DefaultUserAgent is sent with every request. The site serves a
	// reduced page to unknown clients, so a desktop browser string is used.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

	// DefaultMaxBodySize limits the bytes read from a single response.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// AppName is the application name used for XDG directory paths.
	AppName = "subgrab"
)

// Config holds every tunable of a subgrab run.
// It is built from defaults, an optional config file and CLI flags, and is
// passed into the pipeline explicitly.
type Config struct {
	// HomeURL is the homepage that lists subscription articles.
	HomeURL string

	// LinkSelector is the CSS selector of the article header link.
	LinkSelector string

	// OutputDir receives v2ray.txt and clash.yaml. Created if missing.
	OutputDir string

	// PasswordMin and PasswordMax bound the passphrase search as the
	// half-open range [PasswordMin, PasswordMax).
	PasswordMin int
	PasswordMax int

	// Workers splits the passphrase range across goroutines.
	// The lowest successful candidate is returned regardless of the split.
	Workers int

	// Timeout is applied to each HTTP request.
	Timeout time.Duration

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// Headers are extra HTTP headers sent with every request.
	Headers map[string]string

	// Cookie is a raw Cookie header value sent with every request.
	Cookie string

	// MaxBodySize is the maximum response body size in bytes to read.
	MaxBodySize int64

	// Concurrency is the number of output files downloaded at the same time.
	Concurrency int

	// ProxyAddress routes all requests through a SOCKS5 proxy ("host:port").
	// Empty means direct connections.
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and routes requests through it.
	UseTor bool

	// TorStartupTimeout bounds the embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// Verbose enables debug logging.
	Verbose bool

	// JSONReport prints the run report as JSON.
	JSONReport bool

	// MarkdownReport prints the run report as Markdown.
	MarkdownReport bool

	// ReportFile writes the run report to a file instead of stdout.
	ReportFile string

	// SaveHistory records the finished run in the history database.
	// The pipeline never reads it back.
	SaveHistory bool

	// DBDir is the directory of the history database.
	DBDir string

	// ConfigFilePath is the config file given on the command line.
	ConfigFilePath string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		HomeURL:           DefaultHomeURL,
		LinkSelector:      DefaultLinkSelector,
		OutputDir:         DefaultOutputDir,
		PasswordMin:       DefaultPasswordMin,
		PasswordMax:       DefaultPasswordMax,
		Workers:           DefaultWorkers,
		Timeout:           DefaultTimeout,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		Concurrency:       DefaultConcurrency,
		TorStartupTimeout: DefaultTorStartupTimeout,
		DBDir:             XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for subgrab.
// On Linux: ~/.local/share/subgrab
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for subgrab.
// On Linux: ~/.config/subgrab
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found as one of the sentinel errors.
func (c *Config) Validate() error {
	u, err := url.Parse(c.HomeURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidHomeURL
	}

	if strings.TrimSpace(c.LinkSelector) == "" {
		return ErrEmptyLinkSelector
	}

	if strings.TrimSpace(c.OutputDir) == "" {
		return ErrEmptyOutputDir
	}

	if c.PasswordMin < 0 || c.PasswordMax <= c.PasswordMin {
		return ErrInvalidPasswordRange
	}

	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.UseTor && c.ProxyAddress != "" {
		return ErrConflictingTransports
	}

	return nil
}
