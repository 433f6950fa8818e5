package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/subgrab/internal/bruteforce"
	"github.com/nao1215/subgrab/internal/config"
	"github.com/nao1215/subgrab/internal/download"
	"github.com/nao1215/subgrab/internal/model"
	"github.com/nao1215/subgrab/internal/scrape"
)

// Step names.
const (
	StepHomepage  = "homepage"
	StepArticle   = "article"
	StepDecrypt   = "decrypt"
	StepParseURLs = "parse_urls"
	StepDownload  = "download"
)

// DocumentFetcher retrieves and parses an HTML page.
type DocumentFetcher interface {
	Document(ctx context.Context, rawURL string) (*goquery.Document, error)
}

// HomepageStep fetches the homepage and stores the newest article's URL.
type HomepageStep struct {
	fetcher  DocumentFetcher
	selector string
	logger   *slog.Logger
}

// NewHomepageStep creates a HomepageStep that finds the article link with selector.
func NewHomepageStep(fetcher DocumentFetcher, selector string, logger *slog.Logger) *HomepageStep {
	return &HomepageStep{fetcher: fetcher, selector: selector, logger: orDefault(logger)}
}

// Name returns the step name.
func (s *HomepageStep) Name() string { return StepHomepage }

// Do executes the step.
func (s *HomepageStep) Do(ctx context.Context, run *model.Run) error {
	doc, err := s.fetcher.Document(ctx, run.HomeURL)
	if err != nil {
		return err
	}
	link, err := scrape.ExtractArticleLink(doc, s.selector)
	if err != nil {
		return err
	}
	run.ArticleURL = link
	s.logger.Info("found article", "url", link)
	return nil
}

// ArticleStep fetches the article and stores the embedded ciphertext.
type ArticleStep struct {
	fetcher DocumentFetcher
	logger  *slog.Logger
}

// NewArticleStep creates an ArticleStep.
func NewArticleStep(fetcher DocumentFetcher, logger *slog.Logger) *ArticleStep {
	return &ArticleStep{fetcher: fetcher, logger: orDefault(logger)}
}

// Name returns the step name.
func (s *ArticleStep) Name() string { return StepArticle }

// Do executes the step.
func (s *ArticleStep) Do(ctx context.Context, run *model.Run) error {
	doc, err := s.fetcher.Document(ctx, run.ArticleURL)
	if err != nil {
		return err
	}
	ciphertext, err := scrape.ScanCiphertext(doc)
	if err != nil {
		return err
	}
	run.Ciphertext = ciphertext
	s.logger.Debug("found encrypted payload", "length", len(ciphertext))
	return nil
}

// DecryptStep recovers the plaintext by brute force.
type DecryptStep struct {
	decryptor *bruteforce.Decryptor
}

// NewDecryptStep creates a DecryptStep.
func NewDecryptStep(decryptor *bruteforce.Decryptor) *DecryptStep {
	return &DecryptStep{decryptor: decryptor}
}

// Name returns the step name.
func (s *DecryptStep) Name() string { return StepDecrypt }

// Do executes the step.
func (s *DecryptStep) Do(ctx context.Context, run *model.Run) error {
	result, err := s.decryptor.Decrypt(ctx, run.Ciphertext)
	if err != nil {
		return err
	}
	run.Password = result.Password
	run.Attempts = result.Attempts
	run.Plaintext = result.Plaintext
	return nil
}

// ParseURLsStep extracts the resource URLs from the plaintext.
type ParseURLsStep struct {
	logger *slog.Logger
}

// NewParseURLsStep creates a ParseURLsStep.
func NewParseURLsStep(logger *slog.Logger) *ParseURLsStep {
	return &ParseURLsStep{logger: orDefault(logger)}
}

// Name returns the step name.
func (s *ParseURLsStep) Name() string { return StepParseURLs }

// Do executes the step.
func (s *ParseURLsStep) Do(_ context.Context, run *model.Run) error {
	urls, err := scrape.ParseResourceURLs(run.Plaintext)
	if err != nil {
		return err
	}
	run.ResourceURLs = urls
	s.logger.Info("found resource URLs", "count", len(urls))
	return nil
}

// DownloadStep downloads the resource URLs. Failed downloads are recorded in
// the run and do not fail the step.
type DownloadStep struct {
	downloader *download.Downloader
}

// NewDownloadStep creates a DownloadStep.
func NewDownloadStep(downloader *download.Downloader) *DownloadStep {
	return &DownloadStep{downloader: downloader}
}

// Name returns the step name.
func (s *DownloadStep) Name() string { return StepDownload }

// Do executes the step.
func (s *DownloadStep) Do(ctx context.Context, run *model.Run) error {
	results, err := s.downloader.Download(ctx, run.ResourceURLs)
	if results != nil {
		run.Downloads = results
	}
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	return nil
}

// Client is what the default pipeline needs from the HTTP layer.
type Client interface {
	DocumentFetcher
	download.Fetcher
}

// DefaultPipeline builds the homepage → article → decrypt → parse → download
// pipeline from cfg.
func DefaultPipeline(client Client, cfg *config.Config, logger *slog.Logger) *Pipeline {
	logger = orDefault(logger)

	p := New(WithLogger(logger))
	p.AddSteps(
		NewHomepageStep(client, cfg.LinkSelector, logger),
		NewArticleStep(client, logger),
		NewDecryptStep(bruteforce.New(
			bruteforce.WithRange(cfg.PasswordMin, cfg.PasswordMax),
			bruteforce.WithWorkers(cfg.Workers),
			bruteforce.WithLogger(logger),
		)),
		NewParseURLsStep(logger),
		NewDownloadStep(download.New(client, cfg.OutputDir,
			download.WithConcurrency(cfg.Concurrency),
			download.WithLogger(logger),
		)),
	)
	return p
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
