package fetch

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/text/encoding/simplifiedchinese"
)

// TestClientGet tests raw body retrieval.
func TestClientGet(t *testing.T) {
	t.Parallel()

	t.Run("returns body on 200", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("payload"))
		}))
		defer srv.Close()

		body, err := NewClient().Get(context.Background(), srv.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(body) != "payload" {
			t.Errorf("expected %q, got %q", "payload", body)
		}
	})

	t.Run("non-2xx status is a RequestError", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		_, err := NewClient().Get(context.Background(), srv.URL)
		if !errors.Is(err, ErrFetch) {
			t.Fatalf("expected ErrFetch, got %v", err)
		}
		var reqErr *RequestError
		if !errors.As(err, &reqErr) {
			t.Fatalf("expected *RequestError, got %T", err)
		}
		if reqErr.StatusCode != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", reqErr.StatusCode)
		}
		if !errors.Is(err, ErrUnexpectedStatus) {
			t.Errorf("expected ErrUnexpectedStatus, got %v", err)
		}
	})

	t.Run("connection failure is a RequestError", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.NotFoundHandler())
		addr := srv.URL
		srv.Close()

		_, err := NewClient().Get(context.Background(), addr)
		if !errors.Is(err, ErrFetch) {
			t.Errorf("expected ErrFetch, got %v", err)
		}
	})

	t.Run("invalid URL is a RequestError", func(t *testing.T) {
		t.Parallel()

		_, err := NewClient().Get(context.Background(), "://bad")
		if !errors.Is(err, ErrFetch) {
			t.Errorf("expected ErrFetch, got %v", err)
		}
	})

	t.Run("timeout aborts slow responses", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer srv.Close()

		start := time.Now()
		_, err := NewClient(WithTimeout(50*time.Millisecond)).Get(context.Background(), srv.URL)
		if !errors.Is(err, ErrFetch) {
			t.Fatalf("expected ErrFetch, got %v", err)
		}
		if time.Since(start) > time.Second {
			t.Errorf("expected request to time out quickly, took %v", time.Since(start))
		}
	})

	t.Run("oversized body is rejected", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(strings.Repeat("x", 100)))
		}))
		defer srv.Close()

		_, err := NewClient(WithMaxBodySize(10)).Get(context.Background(), srv.URL)
		if !errors.Is(err, ErrBodyTooLarge) {
			t.Errorf("expected ErrBodyTooLarge, got %v", err)
		}
	})

	t.Run("body at the limit is accepted", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(strings.Repeat("x", 10)))
		}))
		defer srv.Close()

		body, err := NewClient(WithMaxBodySize(10)).Get(context.Background(), srv.URL)
		if err != nil || len(body) != 10 {
			t.Errorf("expected 10 bytes, got %d (%v)", len(body), err)
		}
	})

	t.Run("sends configured headers", func(t *testing.T) {
		t.Parallel()

		headers := make(chan http.Header, 1)
		srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			headers <- r.Header.Clone()
		}))
		defer srv.Close()

		client := NewClient(
			WithUserAgent("subgrab-test/1.0"),
			WithCookie("session=abc"),
			WithHeaders(map[string]string{"X-Custom": "value"}),
		)
		if _, err := client.Get(context.Background(), srv.URL); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := <-headers
		if got.Get("User-Agent") != "subgrab-test/1.0" {
			t.Errorf("unexpected User-Agent %q", got.Get("User-Agent"))
		}
		if got.Get("Cookie") != "session=abc" {
			t.Errorf("unexpected Cookie %q", got.Get("Cookie"))
		}
		if got.Get("X-Custom") != "value" {
			t.Errorf("unexpected X-Custom %q", got.Get("X-Custom"))
		}
	})

	t.Run("routes connections through the dialer", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("ok"))
		}))
		defer srv.Close()

		d := &countingDialer{}
		if _, err := NewClient(WithDialer(d)).Get(context.Background(), srv.URL); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if d.calls.Load() == 0 {
			t.Error("expected the dialer to be used")
		}
	})
}

// TestClientDocument tests HTML parsing and transcoding.
func TestClientDocument(t *testing.T) {
	t.Parallel()

	t.Run("parses utf-8 page", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(`<html><body><h1 id="t">你好</h1></body></html>`))
		}))
		defer srv.Close()

		doc, err := NewClient().Document(context.Background(), srv.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := doc.Find("#t").Text(); got != "你好" {
			t.Errorf("expected %q, got %q", "你好", got)
		}
		if doc.Url == nil || doc.Url.String() != srv.URL {
			t.Errorf("expected document URL %q, got %v", srv.URL, doc.Url)
		}
	})

	t.Run("transcodes page declared as gbk", func(t *testing.T) {
		t.Parallel()

		encoded, err := simplifiedchinese.GBK.NewEncoder().String(
			`<html><head><meta charset="gbk"></head><body><h1 id="t">你好</h1></body></html>`)
		if err != nil {
			t.Fatalf("failed to encode fixture: %v", err)
		}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(encoded))
		}))
		defer srv.Close()

		doc, err := NewClient().Document(context.Background(), srv.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := doc.Find("#t").Text(); got != "你好" {
			t.Errorf("expected %q, got %q", "你好", got)
		}
	})

	t.Run("fetch failure propagates", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := NewClient().Document(context.Background(), srv.URL)
		if !errors.Is(err, ErrFetch) {
			t.Errorf("expected ErrFetch, got %v", err)
		}
	})
}

// TestRequestError tests error formatting and matching.
func TestRequestError(t *testing.T) {
	t.Parallel()

	withStatus := &RequestError{URL: "http://a", StatusCode: 503, Err: ErrUnexpectedStatus}
	if !strings.Contains(withStatus.Error(), "status 503") {
		t.Errorf("expected status in message, got %q", withStatus.Error())
	}

	cause := errors.New("boom")
	noStatus := &RequestError{URL: "http://a", Err: cause}
	if !errors.Is(noStatus, cause) {
		t.Error("expected cause to be unwrapped")
	}
	if !errors.Is(noStatus, ErrFetch) {
		t.Error("expected ErrFetch match")
	}
}

// TestHeaderInjectingTransport tests cookie merging.
func TestHeaderInjectingTransport(t *testing.T) {
	t.Parallel()

	var got string
	transport := &headerInjectingTransport{
		base: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			got = r.Header.Get("Cookie")
			return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
		}),
		cookie: "b=2",
	}

	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	req.Header.Set("Cookie", "a=1")
	if _, err := transport.RoundTrip(req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "a=1; b=2" {
		t.Errorf("expected merged cookie, got %q", got)
	}
	if req.Header.Get("Cookie") != "a=1" {
		t.Error("expected original request to be left untouched")
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

type countingDialer struct {
	calls atomic.Int32
}

func (d *countingDialer) Dial(network, addr string) (net.Conn, error) {
	d.calls.Add(1)
	return net.Dial(network, addr)
}
