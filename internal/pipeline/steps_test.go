package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/nao1215/subgrab/internal/bruteforce"
	"github.com/nao1215/subgrab/internal/config"
	"github.com/nao1215/subgrab/internal/cryptojs"
	"github.com/nao1215/subgrab/internal/download"
	"github.com/nao1215/subgrab/internal/fetch"
	"github.com/nao1215/subgrab/internal/model"
	"github.com/nao1215/subgrab/internal/scrape"
)

const homepageTemplate = `<html><body><div id="main">
<article><div class="entry-header"><a href="/2024/01/today.html">today</a></div></article>
<article><div class="entry-header"><a href="/2023/12/yesterday.html">yesterday</a></div></article>
</div></body></html>`

// site is a fake content site. The article embeds plaintext encrypted under
// passphrase, with {base} replaced by the server URL.
type site struct {
	srv      *httptest.Server
	requests atomic.Int32
}

type siteOptions struct {
	homepage   string
	article    func(base string) string
	statusHome int
}

func newSite(t *testing.T, opts siteOptions) *site {
	t.Helper()

	s := &site{}
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if opts.statusHome != 0 {
			w.WriteHeader(opts.statusHome)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(opts.homepage))
	})
	mux.HandleFunc("/2024/01/today.html", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(opts.article(s.srv.URL)))
	})
	mux.HandleFunc("/files/x.txt", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("vmess://node-a"))
	})
	mux.HandleFunc("/files/y.yaml", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("proxies:\n  - name: a\n"))
	})

	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func encryptedArticle(t *testing.T, passphrase string, plaintext func(base string) string) func(string) string {
	t.Helper()

	return func(base string) string {
		ct, err := cryptojs.Encrypt([]byte(plaintext(base)), passphrase)
		if err != nil {
			t.Errorf("encrypt: %v", err)
			return ""
		}
		return `<html><body><script src="/theme.js"></script>
<script>
  var encryption = ["` + ct + `"];
</script></body></html>`
	}
}

func testConfig(t *testing.T, homeURL string) *config.Config {
	t.Helper()

	cfg := config.NewConfig()
	cfg.HomeURL = homeURL
	cfg.OutputDir = filepath.Join(t.TempDir(), "output")
	cfg.PasswordMin = 4000
	cfg.PasswordMax = 4300
	return cfg
}

func execute(t *testing.T, cfg *config.Config) (*model.Run, error) {
	t.Helper()

	run := model.NewRun(cfg.HomeURL)
	p := DefaultPipeline(fetch.NewClient(fetch.WithTimeout(cfg.Timeout)), cfg, nil)
	err := p.Execute(context.Background(), run)
	return run, err
}

// TestDefaultPipeline tests complete runs against a fake site.
func TestDefaultPipeline(t *testing.T) {
	t.Parallel()

	t.Run("downloads both subscription files", func(t *testing.T) {
		t.Parallel()

		s := newSite(t, siteOptions{
			homepage: homepageTemplate,
			article: encryptedArticle(t, "4242", func(base string) string {
				return fmt.Sprintf("foo %s/files/x.txt bar %s/files/y.yaml baz", base, base)
			}),
		})
		cfg := testConfig(t, s.srv.URL+"/")

		run, err := execute(t, cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if run.ArticleURL != s.srv.URL+"/2024/01/today.html" {
			t.Errorf("unexpected article URL %q", run.ArticleURL)
		}
		if run.Password != "4242" || run.Attempts != 243 {
			t.Errorf("expected password 4242 after 243 attempts, got %q after %d", run.Password, run.Attempts)
		}
		expectedURLs := []string{s.srv.URL + "/files/x.txt", s.srv.URL + "/files/y.yaml"}
		if len(run.ResourceURLs) != 2 || run.ResourceURLs[0] != expectedURLs[0] || run.ResourceURLs[1] != expectedURLs[1] {
			t.Errorf("expected %v, got %v", expectedURLs, run.ResourceURLs)
		}

		v2ray, err := os.ReadFile(filepath.Join(cfg.OutputDir, download.V2RayFile))
		if err != nil || string(v2ray) != "vmess://node-a" {
			t.Errorf("unexpected v2ray.txt %q (%v)", v2ray, err)
		}
		clash, err := os.ReadFile(filepath.Join(cfg.OutputDir, download.ClashFile))
		if err != nil || string(clash) != "proxies:\n  - name: a\n" {
			t.Errorf("unexpected clash.yaml %q (%v)", clash, err)
		}

		expectedSteps := []string{StepHomepage, StepArticle, StepDecrypt, StepParseURLs, StepDownload}
		if len(run.PerformedSteps) != len(expectedSteps) {
			t.Errorf("expected steps %v, got %v", expectedSteps, run.PerformedSteps)
		}
		if !run.Succeeded() {
			t.Errorf("expected run to succeed, got %v", run.Error)
		}
		if got := s.requests.Load(); got != 4 {
			t.Errorf("expected 4 requests, got %d", got)
		}
	})

	t.Run("percent-encoded plaintext is decoded before parsing", func(t *testing.T) {
		t.Parallel()

		s := newSite(t, siteOptions{
			homepage: homepageTemplate,
			article: encryptedArticle(t, "4100", func(base string) string {
				return "%E8%AE%A2%E9%98%85%3A" + base + "/files/x.txt"
			}),
		})
		cfg := testConfig(t, s.srv.URL+"/")

		run, err := execute(t, cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(run.ResourceURLs) != 1 || run.ResourceURLs[0] != s.srv.URL+"/files/x.txt" {
			t.Errorf("unexpected URLs %v", run.ResourceURLs)
		}
	})

	t.Run("missing ciphertext stops after two requests", func(t *testing.T) {
		t.Parallel()

		s := newSite(t, siteOptions{
			homepage: homepageTemplate,
			article: func(string) string {
				return `<html><body><script></script><script>var other = 1;</script></body></html>`
			},
		})
		cfg := testConfig(t, s.srv.URL+"/")

		run, err := execute(t, cfg)
		if !errors.Is(err, scrape.ErrMissingCiphertext) {
			t.Fatalf("expected ErrMissingCiphertext, got %v", err)
		}
		if got := s.requests.Load(); got != 2 {
			t.Errorf("expected exactly 2 requests, got %d", got)
		}
		if _, statErr := os.Stat(cfg.OutputDir); !os.IsNotExist(statErr) {
			t.Error("expected output directory not to be created")
		}
		if len(run.PerformedSteps) != 1 {
			t.Errorf("expected only the homepage step, got %v", run.PerformedSteps)
		}
	})

	t.Run("homepage without article link", func(t *testing.T) {
		t.Parallel()

		s := newSite(t, siteOptions{homepage: `<html><body><div id="main"></div></body></html>`})
		cfg := testConfig(t, s.srv.URL+"/")

		_, err := execute(t, cfg)
		if !errors.Is(err, scrape.ErrMissingLink) {
			t.Fatalf("expected ErrMissingLink, got %v", err)
		}
		if got := s.requests.Load(); got != 1 {
			t.Errorf("expected 1 request, got %d", got)
		}
	})

	t.Run("homepage fetch failure", func(t *testing.T) {
		t.Parallel()

		s := newSite(t, siteOptions{statusHome: http.StatusBadGateway})
		cfg := testConfig(t, s.srv.URL+"/")

		_, err := execute(t, cfg)
		if !errors.Is(err, fetch.ErrFetch) {
			t.Fatalf("expected ErrFetch, got %v", err)
		}
	})

	t.Run("passphrase outside the range exhausts the search", func(t *testing.T) {
		t.Parallel()

		s := newSite(t, siteOptions{
			homepage: homepageTemplate,
			article: encryptedArticle(t, "9999", func(base string) string {
				return base + "/files/x.txt"
			}),
		})
		cfg := testConfig(t, s.srv.URL+"/")

		_, err := execute(t, cfg)
		if !errors.Is(err, bruteforce.ErrExhausted) {
			t.Fatalf("expected ErrExhausted, got %v", err)
		}
	})

	t.Run("plaintext without resource URLs", func(t *testing.T) {
		t.Parallel()

		s := newSite(t, siteOptions{
			homepage: homepageTemplate,
			article: encryptedArticle(t, "4001", func(string) string {
				return "no links today"
			}),
		})
		cfg := testConfig(t, s.srv.URL+"/")

		_, err := execute(t, cfg)
		if !errors.Is(err, scrape.ErrNoURLsFound) {
			t.Fatalf("expected ErrNoURLsFound, got %v", err)
		}
	})

	t.Run("failed download is recorded without failing the run", func(t *testing.T) {
		t.Parallel()

		s := newSite(t, siteOptions{
			homepage: homepageTemplate,
			article: encryptedArticle(t, "4242", func(base string) string {
				return base + "/files/missing.txt " + base + "/files/y.yaml"
			}),
		})
		cfg := testConfig(t, s.srv.URL+"/")

		run, err := execute(t, cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if run.FailedDownloads() != 1 {
			t.Errorf("expected 1 failed download, got %d", run.FailedDownloads())
		}
		if len(run.SavedFiles()) != 1 {
			t.Errorf("expected 1 saved file, got %v", run.SavedFiles())
		}
		if run.Succeeded() {
			t.Error("expected run with failed downloads not to count as succeeded")
		}
	})
}
