// Package provider implements the Provider component: a per-source fetcher
// of raw asset prices, rate-limited and timeout-bounded, reporting its own
// health.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/kiichain/oracle-price-feeder/oracle/types"
)

// Name identifies a provider implementation.
type Name string

const (
	NameCoinGecko Name = "coingecko"
	NameBinance   Name = "binance"
	NameOkx       Name = "okx"
	NameHuobi     Name = "huobi"
	NameGate      Name = "gate"
	NameMock      Name = "mock"
)

// ErrorKind tags the two ways a Provider call can fail.
type ErrorKind int

const (
	// ErrAssetUnsupported means the asset has no symbol mapping for this
	// source; no network call is made.
	ErrAssetUnsupported ErrorKind = iota
	// ErrTransportFailure means the outbound HTTP call failed (timeout, DNS,
	// non-2xx status).
	ErrTransportFailure
)

// Error is the error type returned by FetchOne. FetchMany drops failed
// assets instead of returning it, and HealthCheck reports its message in
// HealthStatus.Error.
type Error struct {
	Kind   ErrorKind
	Asset  string
	Source Name
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrAssetUnsupported:
		return fmt.Sprintf("%s: asset %s is not mapped for this provider", e.Source, e.Asset)
	default:
		return fmt.Sprintf("%s: transport failure for %s: %v", e.Source, e.Asset, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func assetUnsupported(source Name, asset string) *Error {
	return &Error{Kind: ErrAssetUnsupported, Asset: asset, Source: source}
}

func transportFailure(source Name, asset string, err error) *Error {
	return &Error{Kind: ErrTransportFailure, Asset: asset, Source: source, Err: err}
}

// HealthStatus is the outcome of a single health probe.
type HealthStatus struct {
	Healthy   bool
	LatencyMS int64
	Error     string
}

// RateLimit configures a provider's leaky-bucket outbound request budget.
type RateLimit struct {
	MaxRequests int
	WindowMs    int64
}

// Provider is the public contract every price source implements.
type Provider interface {
	Name() Name
	Priority() int
	Weight() float64
	Enabled() bool

	// FetchOne maps asset to a source-specific symbol and fetches its price.
	// Fails with an AssetUnsupported Error without making a network call if
	// the asset has no mapping.
	FetchOne(ctx context.Context, asset string) (types.RawPrice, error)

	// FetchMany fetches prices for several assets, silently dropping
	// unmapped ones; partial upstream failures reduce the returned slice
	// rather than failing the call.
	FetchMany(ctx context.Context, assets []string) []types.RawPrice

	// HealthCheck issues one probe against a known-good asset.
	HealthCheck(ctx context.Context) HealthStatus
}

// Config is the shared configuration every concrete provider is built from.
type Config struct {
	Name      Name
	Enabled   bool
	Priority  int
	Weight    float64
	BaseURL   string
	APIKey    string
	RateLimit RateLimit
	Timeout   time.Duration
}

const defaultTimeout = 30 * time.Second

// base is embedded by every concrete HTTP-backed provider. It owns the rate
// limiter, HTTP client, and the read-only attributes common to all
// providers; concrete providers add their symbol table and wire decoding.
type base struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

func newBase(cfg Config, logger zerolog.Logger) base {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	// The leaky bucket: MaxRequests tokens refilled continuously over
	// WindowMs, observed by wall-clock deltas rather than a hard schedule.
	limit := rate.Inf
	burst := 1
	if cfg.RateLimit.MaxRequests > 0 && cfg.RateLimit.WindowMs > 0 {
		perSecond := float64(cfg.RateLimit.MaxRequests) / (float64(cfg.RateLimit.WindowMs) / 1000.0)
		limit = rate.Limit(perSecond)
		burst = cfg.RateLimit.MaxRequests
	}

	return base{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.With().Str("provider", string(cfg.Name)).Logger(),
	}
}

func (b base) Name() Name       { return b.cfg.Name }
func (b base) Priority() int    { return b.cfg.Priority }
func (b base) Weight() float64  { return b.cfg.Weight }
func (b base) Enabled() bool    { return b.cfg.Enabled }

// await blocks until the rate limiter admits one request, or ctx is done.
func (b base) await(ctx context.Context) error {
	return b.limiter.Wait(ctx)
}

func (b base) authHeader(req *http.Request) {
	if b.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)
	}
}

// doGet performs a rate-limited, timeout-bounded HTTP GET and returns the
// response or a transport-failure Error.
func (b base) doGet(ctx context.Context, url, asset string) (*http.Response, error) {
	if err := b.await(ctx); err != nil {
		return nil, transportFailure(b.cfg.Name, asset, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, transportFailure(b.cfg.Name, asset, err)
	}
	b.authHeader(req)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, transportFailure(b.cfg.Name, asset, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, transportFailure(b.cfg.Name, asset, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	return resp, nil
}
