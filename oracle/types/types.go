package types

import (
	"fmt"
	"math"
	"strings"
)

// PriceScale is the fixed-point scale applied to every price that crosses a
// component boundary: six fractional digits, matching the on-chain contract's
// expected precision.
const PriceScale = 1_000_000

// CanonicalizeAsset uppercases an asset symbol. Per the asset-name hygiene
// decision recorded in DESIGN.md, this does NOT trim whitespace: a
// whitespace-padded symbol is treated as a distinct, unsupported asset.
func CanonicalizeAsset(asset string) string {
	return strings.ToUpper(asset)
}

// Scale converts a real-valued price into the fixed-point integer form used
// by the Validator, Cache, Aggregator and Submitter.
func Scale(price float64) int64 {
	return int64(math.Round(price * PriceScale))
}

// Unscale converts a fixed-point scaled price back into a real value.
func Unscale(scaled int64) float64 {
	return float64(scaled) / PriceScale
}

// CurrencyPair identifies the asset being priced and the currency it is
// quoted in.
type CurrencyPair struct {
	Base  string
	Quote string
}

// String renders the pair the way provider wire formats expect it, e.g.
// "BTCUSDT".
func (cp CurrencyPair) String() string {
	return cp.Base + cp.Quote
}

// RawPrice is a single, source-reported observation. It is transient: only
// the Validator's output (ValidatedPrice) is accepted by downstream
// components.
type RawPrice struct {
	Asset     string
	Price     float64
	Timestamp int64 // unix seconds
	Source    string
}

// ValidatedPrice is the only form of a per-source price accepted past the
// Validator.
type ValidatedPrice struct {
	Asset      string
	Price      int64 // scaled integer, PriceScale
	Timestamp  int64 // unix seconds
	Source     string
	Confidence int // 0..100
}

// Unscaled returns the validated price as a real number.
func (v ValidatedPrice) Unscaled() float64 {
	return Unscale(v.Price)
}

// AggregatedPrice is the Aggregator's output for one asset on one cycle.
type AggregatedPrice struct {
	Asset      string
	Price      int64 // scaled integer, PriceScale
	Sources    []ValidatedPrice
	Timestamp  int64 // unix seconds, produced-at
	Confidence int    // 0..100
	Dispersion int64 // standard deviation across Sources, scaled by PriceScale
}

// String implements fmt.Stringer for log fields.
func (a AggregatedPrice) String() string {
	return fmt.Sprintf("%s=%d (sources=%d, confidence=%d)", a.Asset, a.Price, len(a.Sources), a.Confidence)
}

// ClampConfidence clamps a confidence score into the valid [0, 100] range.
func ClampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
