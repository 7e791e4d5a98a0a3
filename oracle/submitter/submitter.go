// Package submitter implements the Submitter component: encoding,
// building, simulating, signing, broadcasting and confirming
// set_asset_price transactions, with bounded retry and batch pacing.
package submitter

import (
	"context"
	"time"

	"github.com/cosmos/cosmos-sdk/telemetry"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/kiichain/oracle-price-feeder/oracle/types"
)

const (
	// DefaultMaxRetries bounds how many attempts a single price submission
	// gets before being reported as failed.
	DefaultMaxRetries = 3

	// DefaultRetryDelayMs is the base delay; attempt N waits
	// DefaultRetryDelayMs * 2^(N-1) milliseconds, deterministic and
	// unjittered.
	DefaultRetryDelayMs = 1000

	// DefaultPollIntervalMs is the cadence at which tx status is polled
	// after broadcast.
	DefaultPollIntervalMs = 1000

	// DefaultBatchPacingMs is the delay between successive price
	// submissions within one batch call.
	DefaultBatchPacingMs = 100
)

// Config configures a Submitter.
type Config struct {
	AdminAddress  string
	ContractID    string
	MaxRetries    int
	RetryDelayMs  int64
	PollMs        int64
	BatchPacingMs int64
	Sleep         func(d time.Duration) // overridable for deterministic backoff tests
}

// Submitter drives a ChainClient through the submit-and-confirm flow for
// one or many asset prices.
type Submitter struct {
	cfg    Config
	client ChainClient
	logger zerolog.Logger
}

// New constructs a Submitter.
func New(cfg Config, client ChainClient, logger zerolog.Logger) *Submitter {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryDelayMs <= 0 {
		cfg.RetryDelayMs = DefaultRetryDelayMs
	}
	if cfg.PollMs <= 0 {
		cfg.PollMs = DefaultPollIntervalMs
	}
	if cfg.BatchPacingMs <= 0 {
		cfg.BatchPacingMs = DefaultBatchPacingMs
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	return &Submitter{
		cfg:    cfg,
		client: client,
		logger: logger.With().Str("module", "submitter").Logger(),
	}
}

// Result is the outcome of submitting one price.
type Result struct {
	Asset   string
	TxHash  string
	Retries int
	Err     error
}

// encodeMsg translates a PriceUpdate into the on-chain set_asset_price
// message. The concrete sdk.Msg type is left to the chain client's own
// message construction in deployments that target something other than an
// x/oracle vote; here it is wrapped directly since CosmosClient consumes
// raw sdk.Msg values.
func (s *Submitter) encodeMsg(update PriceUpdate) sdk.Msg {
	return newSetAssetPriceMsg(s.cfg.AdminAddress, s.cfg.ContractID, update)
}

// SubmitOne submits a single price update, retrying with exponential
// backoff up to cfg.MaxRetries attempts.
func (s *Submitter) SubmitOne(ctx context.Context, update PriceUpdate) Result {
	result := Result{Asset: update.Asset}
	msg := s.encodeMsg(update)

	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		result.Retries = attempt - 1

		txCtx, cancel := context.WithTimeout(ctx, TxDeadline)
		hash, err := s.attempt(txCtx, msg)
		cancel()

		if err == nil {
			result.TxHash = hash
			return result
		}

		lastErr = err
		s.logger.Warn().
			Str("asset", update.Asset).
			Int("attempt", attempt).
			Err(err).
			Msg("submission attempt failed")

		if attempt < s.cfg.MaxRetries {
			backoff := time.Duration(s.cfg.RetryDelayMs<<uint(attempt-1)) * time.Millisecond
			s.cfg.Sleep(backoff)
		}
	}

	result.Err = errors.Wrapf(lastErr, "submission for %s failed after %d attempts", update.Asset, s.cfg.MaxRetries)
	return result
}

// attempt performs one simulate-sign-broadcast-poll cycle.
func (s *Submitter) attempt(ctx context.Context, msg sdk.Msg) (string, error) {
	gasUsed, err := s.client.Simulate(ctx, []sdk.Msg{msg})
	if err != nil {
		return "", errors.Wrap(err, "simulate failed")
	}

	hash, err := s.client.SignAndBroadcast(ctx, []sdk.Msg{msg}, gasUsed)
	if err != nil {
		telemetry.IncrCounter(1, "failure", "broadcast")
		return "", errors.Wrap(err, "broadcast failed")
	}

	if err := s.pollUntilConfirmed(ctx, hash); err != nil {
		return "", err
	}
	telemetry.IncrCounter(1, "success", "broadcast")
	return hash, nil
}

// pollUntilConfirmed polls tx status at cfg.PollMs cadence until it reports
// success or failure; "not found" and "pending" both keep it polling.
func (s *Submitter) pollUntilConfirmed(ctx context.Context, txHash string) error {
	interval := time.Duration(s.cfg.PollMs) * time.Millisecond

	for {
		status, err := s.client.TxStatus(ctx, txHash)
		if err != nil {
			return errors.Wrap(err, "failed to poll transaction status")
		}

		switch status {
		case TxStatusSuccess:
			return nil
		case TxStatusFailed:
			return errors.Errorf("transaction %s failed on-chain", txHash)
		case TxStatusNotFound:
			// keep polling
		default:
			// pending: keep polling
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "timed out waiting for transaction confirmation")
		default:
			s.cfg.Sleep(interval)
		}
	}
}

// SubmitBatch submits every update in order, pacing successive submissions
// by cfg.BatchPacingMs so the chain isn't hit with a burst.
func (s *Submitter) SubmitBatch(ctx context.Context, updates []PriceUpdate) []Result {
	results := make([]Result, 0, len(updates))
	pacing := time.Duration(s.cfg.BatchPacingMs) * time.Millisecond

	for i, update := range updates {
		results = append(results, s.SubmitOne(ctx, update))
		if i < len(updates)-1 {
			s.cfg.Sleep(pacing)
		}
	}
	return results
}

// HealthCheck performs a cheap liveness probe against the chain client
// without submitting anything.
func (s *Submitter) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx)
}

// toUpdate converts an aggregated price into the wire PriceUpdate the
// chain message is built from.
func toUpdate(price types.AggregatedPrice) PriceUpdate {
	return PriceUpdate{
		Asset:       price.Asset,
		ScaledPrice: price.Price,
		Timestamp:   price.Timestamp,
	}
}

// FromAggregated adapts a slice of AggregatedPrice into submittable
// updates, preserving order.
func FromAggregated(prices []types.AggregatedPrice) []PriceUpdate {
	updates := make([]PriceUpdate, len(prices))
	for i, p := range prices {
		updates[i] = toUpdate(p)
	}
	return updates
}
