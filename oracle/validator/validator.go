// Package validator implements the Validator component: per-source price
// sanity, staleness, and deviation-from-baseline checks that produce a
// confidence score.
//
// The Validator's baseline state is intentionally distinct from the Cache
// component: the baseline tracks the last accepted price per asset for
// deviation comparisons, while the Cache stores aggregated publish results
// for read-through serving. Collapsing the two would let a stale cache
// entry silently become the deviation baseline.
package validator

import (
	"sync"
	"time"

	"github.com/kiichain/oracle-price-feeder/oracle/types"
)

// Bounds is the absolute sanity floor/ceiling for an asset's price. A zero
// value Bounds imposes no ceiling and treats Min as 0 (i.e. only price <= 0
// is rejected).
type Bounds struct {
	Min float64
	Max float64
}

// Config configures a Validator.
type Config struct {
	// AssetBounds holds the optional per-asset absolute sanity bounds.
	AssetBounds map[string]Bounds

	// MaxDeviationPercent is the maximum allowed distance between a new
	// price and the asset's tracked baseline, as a percentage of the
	// baseline.
	MaxDeviationPercent float64

	// StaleThresholdSeconds is the maximum age a RawPrice may have and
	// still be accepted.
	StaleThresholdSeconds float64

	// Now returns the current time; overridable for deterministic tests.
	Now func() time.Time
}

// Validator holds per-asset baseline state and validates raw prices against
// it.
type Validator struct {
	cfg Config

	mtx      sync.Mutex
	baseline map[string]float64
}

// New constructs a Validator. A nil cfg.Now defaults to time.Now.
func New(cfg Config) *Validator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Validator{
		cfg:      cfg,
		baseline: make(map[string]float64),
	}
}

func (v *Validator) now() time.Time { return v.cfg.Now() }

// Validate checks a single RawPrice against every applicable rule without
// short-circuiting: a price that is both stale and deviating from the
// baseline reports both failures. On success it returns a ValidatedPrice
// carrying a confidence score and a nil error slice; on any failure it
// returns the full list of *types.ValidationError encountered and updates
// no state.
func (v *Validator) Validate(raw types.RawPrice) (types.ValidatedPrice, []*types.ValidationError) {
	asset := types.CanonicalizeAsset(raw.Asset)
	var errs []*types.ValidationError

	bounds := v.cfg.AssetBounds[asset]
	if raw.Price <= 0 || (bounds.Min > 0 && raw.Price < bounds.Min) {
		errs = append(errs, types.NewPriceZeroError(asset, raw.Source, raw.Price))
	}
	if bounds.Max > 0 && raw.Price > bounds.Max {
		deviation := percentDelta(raw.Price, bounds.Max)
		errs = append(errs, types.NewPriceDeviationError(asset, raw.Source, deviation, 0))
	}

	ageSeconds := v.now().Unix() - raw.Timestamp
	if ageSeconds < 0 {
		ageSeconds = 0
	}
	age := float64(ageSeconds)
	if v.cfg.StaleThresholdSeconds > 0 && age > v.cfg.StaleThresholdSeconds {
		errs = append(errs, types.NewPriceStaleError(asset, raw.Source, age, v.cfg.StaleThresholdSeconds))
	}

	deviation := 0.0
	v.mtx.Lock()
	baseline, hasBaseline := v.baseline[asset]
	v.mtx.Unlock()
	if hasBaseline && baseline > 0 {
		deviation = percentDelta(raw.Price, baseline)
		if v.cfg.MaxDeviationPercent > 0 && deviation > v.cfg.MaxDeviationPercent {
			errs = append(errs, types.NewPriceDeviationError(asset, raw.Source, deviation, v.cfg.MaxDeviationPercent))
		}
	}

	if len(errs) > 0 {
		return types.ValidatedPrice{}, errs
	}

	confidence := v.confidence(age, deviation, raw.Source)

	v.updateBaseline(asset, raw.Price)

	return types.ValidatedPrice{
		Asset:      asset,
		Price:      types.Scale(raw.Price),
		Timestamp:  raw.Timestamp,
		Source:     raw.Source,
		Confidence: confidence,
	}, nil
}

// ValidateMany validates a batch of raw prices, collecting survivors and
// errors independently; one failure never suppresses another asset's
// result.
func (v *Validator) ValidateMany(raws []types.RawPrice) ([]types.ValidatedPrice, []*types.ValidationError) {
	survivors := make([]types.ValidatedPrice, 0, len(raws))
	var errs []*types.ValidationError

	for _, raw := range raws {
		validated, verrs := v.Validate(raw)
		if len(verrs) > 0 {
			errs = append(errs, verrs...)
			continue
		}
		survivors = append(survivors, validated)
	}
	return survivors, errs
}

// confidence starts at 100 and subtracts up to 20 points for staleness
// proportion and up to 30 for deviation proportion, then applies a small
// fixed bias before clamping to [0, 100].
func (v *Validator) confidence(age, deviationPercent float64, source string) int {
	score := 100.0

	if v.cfg.StaleThresholdSeconds > 0 {
		stalenessProportion := age / v.cfg.StaleThresholdSeconds
		if stalenessProportion > 1 {
			stalenessProportion = 1
		}
		score -= 20 * stalenessProportion
	}

	if v.cfg.MaxDeviationPercent > 0 {
		deviationProportion := deviationPercent / v.cfg.MaxDeviationPercent
		if deviationProportion > 1 {
			deviationProportion = 1
		}
		score -= 30 * deviationProportion
	}

	score += sourceBias(source)

	return types.ClampConfidence(int(score))
}

// sourceBias applies a small, fixed per-source adjustment. Sources are
// otherwise treated identically; this only breaks ties deterministically.
func sourceBias(source string) float64 {
	var sum int
	for _, r := range source {
		sum += int(r)
	}
	return float64(sum%3) - 1 // -1, 0, or +1
}

func percentDelta(value, reference float64) float64 {
	if reference == 0 {
		return 0
	}
	delta := value - reference
	if delta < 0 {
		delta = -delta
	}
	return (delta / reference) * 100
}

// UpdateBaseline directly sets the tracked baseline for asset, bypassing
// validation. Used to seed a Validator with a known-good starting price.
func (v *Validator) UpdateBaseline(asset string, price float64) {
	v.updateBaseline(types.CanonicalizeAsset(asset), price)
}

func (v *Validator) updateBaseline(asset string, price float64) {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	v.baseline[asset] = price
}

// ClearBaseline removes the tracked baseline for asset, causing the next
// validated price for it to skip the deviation-from-baseline check.
func (v *Validator) ClearBaseline(asset string) {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	delete(v.baseline, types.CanonicalizeAsset(asset))
}

// BaselineState returns a snapshot of the tracked baselines, keyed by
// canonical asset symbol.
func (v *Validator) BaselineState() map[string]float64 {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	out := make(map[string]float64, len(v.baseline))
	for k, val := range v.baseline {
		out[k] = val
	}
	return out
}
