package download

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/sha3"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/subgrab/internal/model"
)

// Output file names.
const (
	V2RayFile = "v2ray.txt"
	ClashFile = "clash.yaml"
)

// ErrOutputDir is returned when the output directory cannot be created.
var ErrOutputDir = errors.New("cannot create output directory")

// Fetcher retrieves a resource body.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) ([]byte, error)
}

// Downloader writes resources into an output directory.
type Downloader struct {
	fetcher     Fetcher
	outputDir   string
	concurrency int
	logger      *slog.Logger
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithConcurrency sets how many output files are downloaded at once.
func WithConcurrency(n int) Option {
	return func(d *Downloader) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithLogger sets the logger for per-URL results.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Downloader) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New creates a Downloader writing into outputDir.
func New(fetcher Fetcher, outputDir string, opts ...Option) *Downloader {
	d := &Downloader{
		fetcher:     fetcher,
		outputDir:   outputDir,
		concurrency: 2,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// TargetFile returns the output file name for rawURL, or false when the URL
// is neither .txt nor .yaml.
func TargetFile(rawURL string) (string, bool) {
	switch {
	case strings.HasSuffix(rawURL, ".txt"):
		return V2RayFile, true
	case strings.HasSuffix(rawURL, ".yaml"):
		return ClashFile, true
	default:
		return "", false
	}
}

// Download fetches every URL and returns one record per URL in input order.
// Per-URL failures are recorded in the returned slice; the error is non-nil
// only when the output directory cannot be created or ctx is cancelled.
func (d *Downloader) Download(ctx context.Context, urls []string) ([]model.Download, error) {
	if err := os.MkdirAll(d.outputDir, 0750); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOutputDir, err)
	}

	results := make([]model.Download, len(urls))
	groups := make(map[string][]int)
	order := make([]string, 0, 2)
	for i, u := range urls {
		results[i].URL = u
		name, ok := TargetFile(u)
		if !ok {
			results[i].Skipped = true
			d.logger.Debug("skipping URL without .txt or .yaml suffix", "url", u)
			continue
		}
		if _, seen := groups[name]; !seen {
			order = append(order, name)
		}
		groups[name] = append(groups[name], i)
	}

	g := new(errgroup.Group)
	g.SetLimit(d.concurrency)
	for _, name := range order {
		path := filepath.Join(d.outputDir, name)
		indexes := groups[name]
		g.Go(func() error {
			for _, i := range indexes {
				results[i] = d.fetchOne(ctx, urls[i], path)
			}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers record failures instead of returning them

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

func (d *Downloader) fetchOne(ctx context.Context, rawURL, path string) model.Download {
	rec := model.Download{URL: rawURL, Path: path}

	body, err := d.fetcher.Get(ctx, rawURL)
	if err != nil {
		rec.Error = err.Error()
		d.logger.Warn("download failed", "url", rawURL, "error", err)
		return rec
	}

	n, digest, err := writeFile(path, body)
	if err != nil {
		rec.Error = err.Error()
		d.logger.Warn("write failed", "url", rawURL, "path", path, "error", err)
		return rec
	}

	rec.Bytes = n
	rec.Digest = digest
	d.logger.Info("saved", "url", rawURL, "path", path, "bytes", n)
	return rec
}

// writeFile truncates path, writes body and returns the byte count and the
// hex SHA3-256 of what was written.
func writeFile(path string, body []byte) (int64, string, error) {
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return 0, "", fmt.Errorf("open %s: %w", path, err)
	}

	h := sha3.New256()
	n, err := io.Copy(io.MultiWriter(f, h), bytes.NewReader(body))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, "", fmt.Errorf("write %s: %w", path, err)
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}
