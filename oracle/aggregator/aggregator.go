// Package aggregator implements the Aggregator component: cache probing,
// provider fan-out, quorum enforcement, and weighted-median combination.
package aggregator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cosmos/cosmos-sdk/telemetry"
	"github.com/hashicorp/go-metrics"
	"github.com/pkg/errors"

	"github.com/kiichain/oracle-price-feeder/oracle/cache"
	"github.com/kiichain/oracle-price-feeder/oracle/provider"
	"github.com/kiichain/oracle-price-feeder/oracle/types"
	"github.com/kiichain/oracle-price-feeder/oracle/validator"
)

// ErrNoQuorum is returned when fewer validated survivors than MinSources
// remain after fan-out and validation.
var ErrNoQuorum = errors.New("aggregator: insufficient validated sources for quorum")

// ErrAllProvidersFailed is returned when every provider call failed or
// returned an invalid price and there was no cache entry to serve instead.
//
// This is the terminal outcome of the Open Question decision recorded in
// DESIGN.md: on a cache hit the cached value is returned outright; on a
// total provider failure with no cache entry, the caller gets this error.
// There is no second cache-fallback path after a provider failure.
var ErrAllProvidersFailed = errors.New("aggregator: all providers failed and no cache entry available")

const defaultProviderWeight = 0.1

// Config configures an Aggregator.
type Config struct {
	MinSources     int
	FetchTimeout   time.Duration
	Now            func() time.Time
}

// Aggregator combines validated per-source prices into one published price
// per asset.
type Aggregator struct {
	cfg       Config
	providers []provider.Provider // ascending priority
	validator *validator.Validator
	cache     *cache.Cache
	now       func() time.Time
}

// New constructs an Aggregator. providers must already be sorted ascending
// by priority; New does not re-sort them so that explicit tie ordering
// chosen by the caller is preserved.
func New(cfg Config, providers []provider.Provider, v *validator.Validator, c *cache.Cache) *Aggregator {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Aggregator{
		cfg:       cfg,
		providers: providers,
		validator: v,
		cache:     c,
		now:       now,
	}
}

// providerFetch is one provider's outcome for one asset.
type providerFetch struct {
	provider provider.Provider
	raw      types.RawPrice
	err      error
}

// GetPrice produces the aggregated price for asset, or serves the cached
// value without hitting any provider if a live entry exists.
func (a *Aggregator) GetPrice(ctx context.Context, asset string) (types.AggregatedPrice, error) {
	asset = types.CanonicalizeAsset(asset)

	if cached, ok := a.cache.Get(asset); ok {
		return types.AggregatedPrice{
			Asset:      asset,
			Price:      cached.Price,
			Sources:    nil,
			Timestamp:  a.now().Unix(),
			Confidence: 100,
		}, nil
	}

	fetches := a.fetchAll(ctx, asset)

	raws := make([]types.RawPrice, 0, len(fetches))
	for _, f := range fetches {
		if f.err == nil {
			raws = append(raws, f.raw)
		}
	}

	survivors, _ := a.validator.ValidateMany(raws)
	if len(survivors) == 0 {
		return types.AggregatedPrice{}, ErrAllProvidersFailed
	}
	if a.cfg.MinSources > 0 && len(survivors) < a.cfg.MinSources {
		return types.AggregatedPrice{}, ErrNoQuorum
	}

	aggregated := a.combine(asset, survivors)
	a.cache.Set(aggregated)
	return aggregated, nil
}

// GetPrices produces aggregated prices for every asset in assets,
// concurrently. A failure for one asset does not prevent others from
// succeeding; failures are reported per asset in the returned error map.
func (a *Aggregator) GetPrices(ctx context.Context, assets []string) (map[string]types.AggregatedPrice, map[string]error) {
	prices := make(map[string]types.AggregatedPrice, len(assets))
	errs := make(map[string]error)

	var mtx sync.Mutex
	var wg sync.WaitGroup

	for _, asset := range assets {
		asset := asset
		wg.Add(1)
		go func() {
			defer wg.Done()
			price, err := a.GetPrice(ctx, asset)

			mtx.Lock()
			defer mtx.Unlock()
			if err != nil {
				errs[asset] = err
				return
			}
			prices[asset] = price
		}()
	}
	wg.Wait()

	return prices, errs
}

// fetchAll calls FetchOne on every provider concurrently, in ascending
// priority order of initiation, bounded by cfg.FetchTimeout per call.
func (a *Aggregator) fetchAll(ctx context.Context, asset string) []providerFetch {
	results := make([]providerFetch, len(a.providers))
	var wg sync.WaitGroup

	for i, p := range a.providers {
		i, p := i, p
		if !p.Enabled() {
			results[i] = providerFetch{provider: p, err: errors.New("provider disabled")}
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()

			callCtx := ctx
			var cancel context.CancelFunc
			if a.cfg.FetchTimeout > 0 {
				callCtx, cancel = context.WithTimeout(ctx, a.cfg.FetchTimeout)
				defer cancel()
			}

			raw, err := p.FetchOne(callCtx, asset)
			if err != nil {
				telemetry.IncrCounterWithLabels([]string{"failure", "provider"}, 1, []metrics.Label{
					{Name: "provider", Value: string(p.Name())},
					{Name: "asset", Value: asset},
				})
			}
			results[i] = providerFetch{provider: p, raw: raw, err: err}
		}()
	}
	wg.Wait()

	return results
}

// combine implements the weighted-median rule: survivors are sorted by
// scaled price ascending, each assigned its provider's Weight (falling
// back to defaultProviderWeight for an unknown source), and the result is
// the first element whose cumulative weight reaches half the total
// weight. If every weight is zero, it falls back to the plain positional
// median (the middle element for an odd count, the integer mean of the
// two middle elements for an even count).
func (a *Aggregator) combine(asset string, survivors []types.ValidatedPrice) types.AggregatedPrice {
	sorted := make([]types.ValidatedPrice, len(survivors))
	copy(sorted, survivors)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Price < sorted[j].Price })

	weights := make([]float64, len(sorted))
	totalWeight := 0.0
	for i, v := range sorted {
		w := a.weightFor(v.Source)
		weights[i] = w
		totalWeight += w
	}

	var medianPrice int64
	if totalWeight == 0 {
		medianPrice = plainMedian(sorted)
	} else {
		half := totalWeight / 2
		cumulative := 0.0
		medianPrice = sorted[len(sorted)-1].Price
		for i, v := range sorted {
			cumulative += weights[i]
			if cumulative >= half {
				medianPrice = v.Price
				break
			}
		}
	}

	confidence := weightedConfidence(sorted, weights, totalWeight)

	return types.AggregatedPrice{
		Asset:      asset,
		Price:      medianPrice,
		Sources:    sorted,
		Timestamp:  a.now().Unix(),
		Confidence: confidence,
		Dispersion: standardDeviation(sorted),
	}
}

func plainMedian(sorted []types.ValidatedPrice) int64 {
	n := len(sorted)
	mid := n / 2
	if n%2 == 1 {
		return sorted[mid].Price
	}
	return (sorted[mid-1].Price + sorted[mid].Price) / 2
}

func weightedConfidence(sorted []types.ValidatedPrice, weights []float64, totalWeight float64) int {
	if totalWeight == 0 {
		sum := 0
		for _, v := range sorted {
			sum += v.Confidence
		}
		return types.ClampConfidence(sum / len(sorted))
	}

	weightedSum := 0.0
	for i, v := range sorted {
		weightedSum += float64(v.Confidence) * weights[i]
	}
	return types.ClampConfidence(int(weightedSum / totalWeight))
}

// ProviderNames returns the configured provider roster, in the ascending
// priority order passed to New.
func (a *Aggregator) ProviderNames() []string {
	names := make([]string, len(a.providers))
	for i, p := range a.providers {
		names[i] = string(p.Name())
	}
	return names
}

// CacheStats returns the underlying Cache's current hit/miss/eviction
// counters, for the supervisor's status surface.
func (a *Aggregator) CacheStats() cache.Stats {
	return a.cache.Stats()
}

func (a *Aggregator) weightFor(source string) float64 {
	for _, p := range a.providers {
		if string(p.Name()) == source {
			if p.Weight() > 0 {
				return p.Weight()
			}
			return 0
		}
	}
	return defaultProviderWeight
}
