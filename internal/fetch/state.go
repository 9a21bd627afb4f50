package fetch

import (
	"context"
	"crypto/x509"
	"fmt"
	"math"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/tsukumogami/crateferry/internal/ferr"
	"github.com/tsukumogami/crateferry/internal/httputil"
)

// State is a candidate's position in the fetch state machine: NEW →
// PROBED → DOWNLOADING → VERIFIED → EXTRACTED → COMMITTED, with FAILED
// looping back to DOWNLOADING on a retriable error and REJECTED/EXHAUSTED
// terminal (spec.md §4.E).
type State int

const (
	StateNew State = iota
	StateProbed
	StateDownloading
	StateVerified
	StateExtracted
	StateCommitted
	StateFailed
	StateRejected
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateProbed:
		return "PROBED"
	case StateDownloading:
		return "DOWNLOADING"
	case StateVerified:
		return "VERIFIED"
	case StateExtracted:
		return "EXTRACTED"
	case StateCommitted:
		return "COMMITTED"
	case StateFailed:
		return "FAILED"
	case StateRejected:
		return "REJECTED"
	case StateExhausted:
		return "EXHAUSTED"
	default:
		return "UNKNOWN"
	}
}

// legalTransitions enumerates the edges the machine allows. FAILED can
// loop back to DOWNLOADING (retry) or fall through to EXHAUSTED (retries
// used up).
var legalTransitions = map[State][]State{
	StateNew:         {StateProbed, StateRejected},
	StateProbed:      {StateDownloading, StateRejected},
	StateDownloading: {StateVerified, StateFailed},
	StateVerified:    {StateExtracted, StateFailed},
	StateExtracted:   {StateCommitted, StateFailed},
	StateFailed:      {StateDownloading, StateExhausted},
}

// Machine tracks one candidate's progress through the fetch pipeline.
type Machine struct {
	state State
}

// NewMachine returns a Machine starting at StateNew.
func NewMachine() *Machine { return &Machine{state: StateNew} }

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Transition moves the machine to to, rejecting edges not present in
// legalTransitions.
func (m *Machine) Transition(to State) error {
	for _, allowed := range legalTransitions[m.state] {
		if allowed == to {
			m.state = to
			return nil
		}
	}
	return fmt.Errorf("illegal fetch state transition %s -> %s", m.state, to)
}

// Options configures a Session's transport-level behavior.
type Options struct {
	// MinTLSVersion, zero defaults to httputil's tls.VersionTLS12.
	MinTLSVersion uint16
	// RequestTimeout is the per-HTTP-request timeout. Default: 30s.
	RequestTimeout time.Duration
	// RateLimitTokens/RateLimitWindow define the global token bucket:
	// RateLimitTokens permits per RateLimitWindow. Default: 1/10ms,
	// matching config.DefaultRateLimitTokens/Window.
	RateLimitTokens int
	RateLimitWindow time.Duration
	// MaxRetries bounds exponential-backoff retries of idempotent
	// failures (429, 5xx, network errors). Default: 3.
	MaxRetries int
	// RootCAs overrides the system trust store, from --root-certificates.
	RootCAs *x509.CertPool
}

// Session is the shared HTTP transport every strategy's Fetch/Find calls
// through: TLS floor, global rate limit, and retry-with-backoff, mirroring
// the teacher's download.go retry loop generalized across strategies
// instead of duplicated per action.
type Session struct {
	Client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
}

// NewSession builds a Session from opts, filling zero values with
// defaults.
func NewSession(opts Options) *Session {
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.RateLimitTokens == 0 {
		opts.RateLimitTokens = 1
	}
	if opts.RateLimitWindow == 0 {
		opts.RateLimitWindow = 10 * time.Millisecond
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}

	client := httputil.NewSecureClient(httputil.ClientOptions{
		Timeout:       opts.RequestTimeout,
		MinTLSVersion: opts.MinTLSVersion,
		RootCAs:       opts.RootCAs,
	})

	limit := rate.Every(opts.RateLimitWindow / time.Duration(opts.RateLimitTokens))
	return &Session{
		Client:     client,
		limiter:    rate.NewLimiter(limit, opts.RateLimitTokens),
		maxRetries: opts.MaxRetries,
	}
}

// Do waits for the global rate limiter, then issues req with exponential
// backoff retry on network errors and retriable status codes (429, 5xx).
// newReq builds a fresh *http.Request per attempt, since an http.Request
// body can't be replayed after a failed Do.
func (s *Session) Do(ctx context.Context, newReq func(context.Context) (*http.Request, error)) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			select {
			case <-ctx.Done():
				return nil, ferr.New(ferr.Cancelled, "fetch.session.do", "", ctx.Err())
			case <-time.After(delay):
			}
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return nil, ferr.New(ferr.Cancelled, "fetch.session.ratelimit", "", err)
		}

		req, err := newReq(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", httputil.DefaultUserAgent)

		resp, err := s.Client.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ferr.New(ferr.Cancelled, "fetch.session.do", "", ctx.Err())
			}
			continue
		}

		if isRetriableStatus(resp.StatusCode) && attempt < s.maxRetries {
			resp.Body.Close()
			lastErr = fmt.Errorf("retriable status %d", resp.StatusCode)
			continue
		}
		return resp, nil
	}
	return nil, ferr.New(ferr.Transport, "fetch.session.do", "", fmt.Errorf("request failed after %d retries: %w", s.maxRetries, lastErr))
}

func isRetriableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
