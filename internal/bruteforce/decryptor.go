package bruteforce

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"sync/atomic"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/subgrab/internal/cryptojs"
)

// ErrExhausted is returned when no candidate in the range decrypts the payload.
var ErrExhausted = errors.New("decryption exhausted: no passphrase in range decrypts the payload")

// cancelCheckInterval is how many candidates are tried between context checks.
const cancelCheckInterval = 256

// Result is a successful decryption.
type Result struct {
	// Password is the passphrase that decrypted the payload.
	Password string

	// Candidate is Password as a number.
	Candidate int

	// Plaintext is the decrypted text after percent-decoding.
	Plaintext string

	// Attempts is the number of candidates an ascending scan tries up to
	// and including the winning one.
	Attempts int
}

// Decryptor searches a numeric passphrase range.
type Decryptor struct {
	min     int
	max     int
	workers int
	logger  *slog.Logger
}

// Option configures a Decryptor.
type Option func(*Decryptor)

// WithRange sets the half-open candidate range [lo, hi).
func WithRange(lo, hi int) Option {
	return func(d *Decryptor) {
		d.min = lo
		d.max = hi
	}
}

// WithWorkers sets how many goroutines share the search.
func WithWorkers(n int) Option {
	return func(d *Decryptor) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithLogger sets the logger for progress messages.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Decryptor) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New creates a Decryptor over [1000, 10000) with one worker.
func New(opts ...Option) *Decryptor {
	d := &Decryptor{
		min:     1000,
		max:     10000,
		workers: 1,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decrypt tries every candidate in the range and returns the lowest one that
// decrypts ciphertext. Malformed ciphertext fails immediately with an error
// matching both ErrExhausted and cryptojs.ErrMalformed.
func (d *Decryptor) Decrypt(ctx context.Context, ciphertext string) (Result, error) {
	payload, err := cryptojs.Parse(ciphertext)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrExhausted, err)
	}
	if d.max <= d.min {
		return Result{}, fmt.Errorf("%w: empty range [%d, %d)", ErrExhausted, d.min, d.max)
	}

	d.logger.Debug("starting passphrase search",
		"from", d.min, "to", d.max, "workers", d.workers)

	var (
		candidate int
		plaintext string
		found     bool
	)
	if d.workers == 1 {
		candidate, plaintext, found, err = d.scan(ctx, payload)
	} else {
		candidate, plaintext, found, err = d.scanParallel(ctx, payload)
	}
	if err != nil {
		return Result{}, err
	}
	if !found {
		return Result{}, fmt.Errorf("%w: tried %d candidates in [%d, %d)",
			ErrExhausted, d.max-d.min, d.min, d.max)
	}

	result := Result{
		Password:  strconv.Itoa(candidate),
		Candidate: candidate,
		Plaintext: plaintext,
		Attempts:  candidate - d.min + 1,
	}
	d.logger.Info("payload decrypted", "candidate", result.Password, "attempts", result.Attempts)
	return result, nil
}

func (d *Decryptor) scan(ctx context.Context, p *cryptojs.Payload) (int, string, bool, error) {
	for n := d.min; n < d.max; n++ {
		if (n-d.min)%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return 0, "", false, err
			}
		}
		if text, ok := try(p, n); ok {
			return n, text, true, nil
		}
	}
	return 0, "", false, nil
}

// scanParallel stripes the range across workers. Worker w tries
// min+w, min+w+workers, ... and stops once its next candidate is above the
// best hit so far, so every candidate below the final winner is tried.
func (d *Decryptor) scanParallel(ctx context.Context, p *cryptojs.Payload) (int, string, bool, error) {
	var best atomic.Int64
	best.Store(math.MaxInt64)

	g, gctx := errgroup.WithContext(ctx)
	for w := range d.workers {
		g.Go(func() error {
			tried := 0
			for n := d.min + w; n < d.max; n += d.workers {
				if int64(n) > best.Load() {
					return nil
				}
				if tried%cancelCheckInterval == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				tried++
				if _, ok := try(p, n); ok {
					for {
						cur := best.Load()
						if int64(n) >= cur || best.CompareAndSwap(cur, int64(n)) {
							break
						}
					}
					return nil
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, "", false, err
	}

	n := best.Load()
	if n == math.MaxInt64 {
		return 0, "", false, nil
	}
	text, _ := try(p, int(n))
	return int(n), text, true, nil
}

// try decrypts with candidate n and reports whether the output is plausible text.
func try(p *cryptojs.Payload, n int) (string, bool) {
	raw, err := p.Decrypt(strconv.Itoa(n))
	if err != nil || len(raw) == 0 || !utf8.Valid(raw) {
		return "", false
	}
	return percentDecode(string(raw)), true
}

// percentDecode decodes %XX escapes as decodeURIComponent does, leaving '+'
// untouched. Text with malformed escapes is returned unchanged.
func percentDecode(s string) string {
	decoded, err := url.PathUnescape(s)
	if err != nil || !utf8.ValidString(decoded) {
		return s
	}
	return decoded
}
