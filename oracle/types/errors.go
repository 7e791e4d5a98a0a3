package types

import "fmt"

// ValidationErrorCode is the closed tag set for per-source validation
// failures (spec §3, §7).
type ValidationErrorCode string

const (
	ErrCodePriceZero             ValidationErrorCode = "price_zero"
	ErrCodePriceNegative         ValidationErrorCode = "price_negative"
	ErrCodePriceStale            ValidationErrorCode = "price_stale"
	ErrCodePriceDeviationTooHigh ValidationErrorCode = "price_deviation_too_high"
	ErrCodeInvalidAsset          ValidationErrorCode = "invalid_asset"
	ErrCodeSourceUnavailable     ValidationErrorCode = "source_unavailable"
)

// ValidationError is one of the typed variants a Validator emits. Errors are
// per-source and carry whatever numeric context produced them; they never
// escalate past the Aggregator.
type ValidationError struct {
	Code    ValidationErrorCode
	Asset   string
	Source  string
	Message string

	// Context, populated depending on Code.
	Age          float64
	MaxAge       float64
	Deviation    float64
	MaxDeviation float64
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s/%s", e.Code, e.Asset, e.Source)
}

func newValidationError(code ValidationErrorCode, asset, source, msg string) *ValidationError {
	return &ValidationError{Code: code, Asset: asset, Source: source, Message: msg}
}

// NewPriceZeroError reports a non-positive or below-floor price.
func NewPriceZeroError(asset, source string, price float64) *ValidationError {
	return newValidationError(ErrCodePriceZero, asset, source,
		fmt.Sprintf("price %v for %s from %s is zero, negative, or below the configured floor", price, asset, source))
}

// NewPriceStaleError reports a price whose age exceeds the staleness bound.
func NewPriceStaleError(asset, source string, age, maxAge float64) *ValidationError {
	e := newValidationError(ErrCodePriceStale, asset, source,
		fmt.Sprintf("price for %s from %s is stale: age=%.0fs max=%.0fs", asset, source, age, maxAge))
	e.Age, e.MaxAge = age, maxAge
	return e
}

// NewPriceDeviationError reports a price outside the absolute bound, or too
// far from the Validator's baseline.
func NewPriceDeviationError(asset, source string, deviation, maxDeviation float64) *ValidationError {
	e := newValidationError(ErrCodePriceDeviationTooHigh, asset, source,
		fmt.Sprintf("price for %s from %s deviates %.2f%%, exceeding %.2f%%", asset, source, deviation, maxDeviation))
	e.Deviation, e.MaxDeviation = deviation, maxDeviation
	return e
}

// NewInvalidAssetError reports an asset the component does not recognize.
func NewInvalidAssetError(asset, source string) *ValidationError {
	return newValidationError(ErrCodeInvalidAsset, asset, source,
		fmt.Sprintf("asset %s is not supported", asset))
}

// NewSourceUnavailableError reports a source that could not be reached.
func NewSourceUnavailableError(asset, source, detail string) *ValidationError {
	return newValidationError(ErrCodeSourceUnavailable, asset, source,
		fmt.Sprintf("source %s unavailable for %s: %s", source, asset, detail))
}
