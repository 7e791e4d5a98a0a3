package validator_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kiichain/oracle-price-feeder/oracle/types"
	"github.com/kiichain/oracle-price-feeder/oracle/validator"
)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func codes(errs []*types.ValidationError) []types.ValidationErrorCode {
	out := make([]types.ValidationErrorCode, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidate_RejectsZeroAndNegativePrice(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := validator.New(validator.Config{
		MaxDeviationPercent:   10,
		StaleThresholdSeconds: 300,
		Now:                   fixedNow(now),
	})

	_, errs := v.Validate(types.RawPrice{Asset: "btc", Price: 0, Timestamp: now.Unix(), Source: "mock"})
	require.Len(t, errs, 1)
	require.Equal(t, types.ErrCodePriceZero, errs[0].Code)

	_, errs = v.Validate(types.RawPrice{Asset: "btc", Price: -5, Timestamp: now.Unix(), Source: "mock"})
	require.Len(t, errs, 1)
}

func TestValidate_StalenessBoundaryIsAccepted(t *testing.T) {
	now := time.Unix(1_700_000_300, 0)
	v := validator.New(validator.Config{
		StaleThresholdSeconds: 300,
		Now:                   fixedNow(now),
	})

	raw := types.RawPrice{Asset: "BTC", Price: 50000, Timestamp: now.Unix() - 300, Source: "mock"}
	validated, errs := v.Validate(raw)
	require.Empty(t, errs)
	require.Equal(t, types.Scale(50000), validated.Price)
}

func TestValidate_StalenessJustOverThresholdIsRejected(t *testing.T) {
	now := time.Unix(1_700_000_301, 0)
	v := validator.New(validator.Config{
		StaleThresholdSeconds: 300,
		Now:                   fixedNow(now),
	})

	raw := types.RawPrice{Asset: "BTC", Price: 50000, Timestamp: now.Unix() - 301, Source: "mock"}
	_, errs := v.Validate(raw)
	require.Len(t, errs, 1)
	require.Equal(t, types.ErrCodePriceStale, errs[0].Code)
}

func TestValidate_DeviationFromBaselineExactlyAtBoundIsAccepted(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := validator.New(validator.Config{
		MaxDeviationPercent:   10,
		StaleThresholdSeconds: 300,
		Now:                   fixedNow(now),
	})

	_, errs := v.Validate(types.RawPrice{Asset: "BTC", Price: 100, Timestamp: now.Unix(), Source: "a"})
	require.Empty(t, errs)

	_, errs = v.Validate(types.RawPrice{Asset: "BTC", Price: 110, Timestamp: now.Unix(), Source: "b"})
	require.Empty(t, errs)
}

func TestValidate_DeviationFromBaselineOverBoundIsRejected(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := validator.New(validator.Config{
		MaxDeviationPercent:   10,
		StaleThresholdSeconds: 300,
		Now:                   fixedNow(now),
	})

	_, errs := v.Validate(types.RawPrice{Asset: "BTC", Price: 100, Timestamp: now.Unix(), Source: "a"})
	require.Empty(t, errs)

	_, errs = v.Validate(types.RawPrice{Asset: "BTC", Price: 111, Timestamp: now.Unix(), Source: "b"})
	require.Len(t, errs, 1)
	require.Equal(t, types.ErrCodePriceDeviationTooHigh, errs[0].Code)
}

func TestValidate_StaleAndDeviatingReportsBothErrors(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := validator.New(validator.Config{
		MaxDeviationPercent:   10,
		StaleThresholdSeconds: 300,
		Now:                   fixedNow(now),
	})

	_, errs := v.Validate(types.RawPrice{Asset: "BTC", Price: 100, Timestamp: now.Unix(), Source: "a"})
	require.Empty(t, errs)

	// Both stale (age > 300s) and far outside the 10% baseline deviation.
	stale := types.RawPrice{Asset: "BTC", Price: 500, Timestamp: now.Unix() - 301, Source: "b"}
	_, errs = v.Validate(stale)
	require.Len(t, errs, 2)
	require.ElementsMatch(t, []types.ValidationErrorCode{
		types.ErrCodePriceStale,
		types.ErrCodePriceDeviationTooHigh,
	}, codes(errs))
}

func TestClearBaseline_SkipsDeviationCheck(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := validator.New(validator.Config{
		MaxDeviationPercent:   10,
		StaleThresholdSeconds: 300,
		Now:                   fixedNow(now),
	})

	_, errs := v.Validate(types.RawPrice{Asset: "BTC", Price: 100, Timestamp: now.Unix(), Source: "a"})
	require.Empty(t, errs)

	v.ClearBaseline("BTC")

	_, errs = v.Validate(types.RawPrice{Asset: "BTC", Price: 1000, Timestamp: now.Unix(), Source: "b"})
	require.Empty(t, errs)
}

func TestValidateMany_PartialFailureDoesNotSuppressSurvivors(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := validator.New(validator.Config{
		MaxDeviationPercent:   50,
		StaleThresholdSeconds: 300,
		Now:                   fixedNow(now),
	})

	raws := []types.RawPrice{
		{Asset: "BTC", Price: 50000, Timestamp: now.Unix(), Source: "a"},
		{Asset: "BTC", Price: -1, Timestamp: now.Unix(), Source: "b"},
		{Asset: "ETH", Price: 3000, Timestamp: now.Unix(), Source: "a"},
	}

	survivors, errs := v.ValidateMany(raws)
	require.Len(t, survivors, 2)
	// The -1 row is both non-positive and ~100% off the 50000 baseline.
	require.Len(t, errs, 2)
	require.Equal(t, types.ErrCodePriceZero, errs[0].Code)
}
