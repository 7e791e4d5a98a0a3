package provider

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kiichain/oracle-price-feeder/oracle/types"
)

// Mock is a deterministic, test-controllable Provider. Prices are set
// directly by the test rather than fetched over HTTP, mirroring the fixture
// style used by the provider test suite.
type Mock struct {
	mtx      sync.RWMutex
	cfg      Config
	logger   zerolog.Logger
	prices  map[string]float64
	fail    map[string]error
	healthy bool
}

// NewMockProvider constructs a Mock provider with no prices set; call
// SetPrice before FetchOne/FetchMany will succeed.
func NewMockProvider(cfg Config, logger zerolog.Logger) *Mock {
	if cfg.Name == "" {
		cfg.Name = NameMock
	}
	return &Mock{
		cfg:     cfg,
		logger:  logger.With().Str("provider", string(NameMock)).Logger(),
		prices:  make(map[string]float64),
		fail:    make(map[string]error),
		healthy: true,
	}
}

func (m *Mock) Name() Name      { return m.cfg.Name }
func (m *Mock) Priority() int   { return m.cfg.Priority }
func (m *Mock) Weight() float64 { return m.cfg.Weight }
func (m *Mock) Enabled() bool   { return m.cfg.Enabled }

// SetPrice fixes the price an asset will report until changed again.
func (m *Mock) SetPrice(asset string, price float64) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.prices[types.CanonicalizeAsset(asset)] = price
}

// SetFailure forces FetchOne for asset to return err until cleared with a
// nil err.
func (m *Mock) SetFailure(asset string, err error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	asset = types.CanonicalizeAsset(asset)
	if err == nil {
		delete(m.fail, asset)
		return
	}
	m.fail[asset] = err
}

// SetHealthy controls the outcome of HealthCheck.
func (m *Mock) SetHealthy(healthy bool) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.healthy = healthy
}

func (m *Mock) FetchOne(_ context.Context, asset string) (types.RawPrice, error) {
	asset = types.CanonicalizeAsset(asset)

	m.mtx.RLock()
	defer m.mtx.RUnlock()

	if err, ok := m.fail[asset]; ok {
		return types.RawPrice{}, transportFailure(m.Name(), asset, err)
	}
	price, ok := m.prices[asset]
	if !ok {
		return types.RawPrice{}, assetUnsupported(m.Name(), asset)
	}

	return types.RawPrice{
		Asset:     asset,
		Price:     price,
		Timestamp: time.Now().Unix(),
		Source:    string(m.Name()),
	}, nil
}

func (m *Mock) FetchMany(ctx context.Context, assets []string) []types.RawPrice {
	out := make([]types.RawPrice, 0, len(assets))
	for _, asset := range assets {
		price, err := m.FetchOne(ctx, asset)
		if err != nil {
			continue
		}
		out = append(out, price)
	}
	return out
}

func (m *Mock) HealthCheck(_ context.Context) HealthStatus {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	if !m.healthy {
		return HealthStatus{Healthy: false, Error: "mock provider marked unhealthy"}
	}
	return HealthStatus{Healthy: true}
}
