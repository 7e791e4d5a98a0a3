// Package supervisor implements the Supervisor component: the tick-driven
// loop that ties the Aggregator and Submitter together, with start/stop
// lifecycle and a status surface.
package supervisor

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cosmos/cosmos-sdk/telemetry"
	"github.com/rs/zerolog"

	"github.com/kiichain/oracle-price-feeder/internal/closer"
	"github.com/kiichain/oracle-price-feeder/oracle/aggregator"
	"github.com/kiichain/oracle-price-feeder/oracle/cache"
	"github.com/kiichain/oracle-price-feeder/oracle/submitter"
)

// State is the Supervisor's coarse lifecycle state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// SubState tracks where an in-progress cycle is, for the status surface.
type SubState string

const (
	SubStateNone       SubState = ""
	SubStateFetching   SubState = "fetching"
	SubStateSubmitting SubState = "submitting"
	SubStatePublished  SubState = "published"
)

// HealthcheckTarget is one URL pinged at the end of a successful cycle,
// mirroring the teacher's healthchecksPing supplemented feature.
type HealthcheckTarget struct {
	Name    string
	URL     string
	Timeout time.Duration
}

// Config configures a Supervisor.
type Config struct {
	Network          string
	TargetContractID string
	TickInterval     time.Duration
	Assets           []string
	Healthchecks     []HealthcheckTarget
}

// Status is a point-in-time snapshot of the Supervisor, returned by
// Status().
type Status struct {
	State           State
	SubState        SubState
	Network         string
	TargetID        string
	Assets          []string
	Providers       []string
	AggregatorStats cache.Stats
	LastCycleAt     time.Time
	LastCycleError  string
	CyclesRun       int64
	CyclesSkipped   int64
}

// Supervisor drives the Aggregator/Submitter pair on a fixed interval.
// Cycle overlap policy: if a tick fires while the previous cycle's
// aggregate-then-submit pass is still running, the tick is skipped rather
// than queued or run concurrently. This keeps at most one in-flight
// submission per asset and avoids two cycles racing to overwrite the
// Validator baseline.
type Supervisor struct {
	cfg        Config
	aggregator *aggregator.Aggregator
	submitter  *submitter.Submitter
	logger     zerolog.Logger
	closer     *closer.Closer

	mtx            sync.Mutex
	state          State
	subState       SubState
	running        int32 // atomic: 1 while a cycle is in flight
	lastCycleAt    time.Time
	lastCycleErr   string
	cyclesRun      int64
	cyclesSkipped  int64
}

// New constructs a Supervisor in the Idle state.
func New(cfg Config, agg *aggregator.Aggregator, sub *submitter.Submitter, logger zerolog.Logger) *Supervisor {
	return &Supervisor{
		cfg:        cfg,
		aggregator: agg,
		submitter:  sub,
		logger:     logger.With().Str("module", "supervisor").Logger(),
		closer:     closer.NewCloser(),
		state:      StateIdle,
	}
}

// Start blocks, running one cycle per tick until ctx is cancelled or Stop
// is called.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mtx.Lock()
	s.state = StateRunning
	s.mtx.Unlock()

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	s.logger.Info().Str("network", s.cfg.Network).Dur("interval", s.cfg.TickInterval).Msg("supervisor started")

	s.runTick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.transitionIdle()
			return ctx.Err()
		case <-s.closer.Done():
			s.transitionIdle()
			return nil
		case <-ticker.C:
			s.runTick(ctx)
		}
	}
}

// Stop signals the run loop to exit after its current tick, if any.
func (s *Supervisor) Stop() {
	s.closer.Close()
}

func (s *Supervisor) transitionIdle() {
	s.mtx.Lock()
	s.state = StateIdle
	s.subState = SubStateNone
	s.mtx.Unlock()
	s.logger.Info().Msg("supervisor stopped")
}

// runTick runs one aggregate-then-submit cycle, skipping if the previous
// cycle has not finished.
func (s *Supervisor) runTick(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		s.mtx.Lock()
		s.cyclesSkipped++
		s.mtx.Unlock()
		telemetry.IncrCounter(1, "skipped", "tick")
		s.logger.Debug().Msg("skipping tick: previous cycle still in flight")
		return
	}
	defer atomic.StoreInt32(&s.running, 0)

	start := time.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("cycle panicked; recovered")
				err = fmt.Errorf("cycle panicked: %v", r)
			}
		}()
		return s.cycle(ctx)
	}()
	telemetry.MeasureSince(start, "latency", "tick")

	s.mtx.Lock()
	s.lastCycleAt = start
	s.cyclesRun++
	if err != nil {
		s.lastCycleErr = err.Error()
	} else {
		s.lastCycleErr = ""
	}
	s.mtx.Unlock()

	logEvt := s.logger.Info()
	if err != nil {
		telemetry.IncrCounter(1, "failure", "tick")
		logEvt = s.logger.Warn().Err(err)
	} else {
		telemetry.IncrCounter(1, "success", "tick")
	}
	logEvt.Dur("tick_duration", time.Since(start)).Msg("cycle complete")

	if err == nil {
		s.healthchecksPing(ctx)
	}
}

func (s *Supervisor) cycle(ctx context.Context) error {
	s.setSubState(SubStateFetching)
	prices, fetchErrs := s.aggregator.GetPrices(ctx, s.cfg.Assets)
	for asset, err := range fetchErrs {
		s.logger.Warn().Str("asset", asset).Err(err).Msg("aggregation failed for asset")
	}
	if len(prices) == 0 {
		s.setSubState(SubStateNone)
		return nil
	}

	ordered := make([]submitter.PriceUpdate, 0, len(prices))
	for _, asset := range s.cfg.Assets {
		if p, ok := prices[asset]; ok {
			ordered = append(ordered, submitter.PriceUpdate{
				Asset:       p.Asset,
				ScaledPrice: p.Price,
				Timestamp:   p.Timestamp,
			})
		}
	}

	s.setSubState(SubStateSubmitting)
	results := s.submitter.SubmitBatch(ctx, ordered)

	var lastErr error
	for _, r := range results {
		if r.Err != nil {
			s.logger.Warn().Str("asset", r.Asset).Int("attempt", r.Retries+1).Err(r.Err).Msg("submission failed")
			lastErr = r.Err
		}
	}

	s.setSubState(SubStatePublished)
	return lastErr
}

func (s *Supervisor) setSubState(sub SubState) {
	s.mtx.Lock()
	s.subState = sub
	s.mtx.Unlock()
}

// healthchecksPing pings every configured healthcheck URL, logging but not
// failing the cycle on error.
func (s *Supervisor) healthchecksPing(ctx context.Context) {
	for _, hc := range s.cfg.Healthchecks {
		timeout := hc.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, hc.URL, nil)
		if err != nil {
			cancel()
			continue
		}
		resp, err := http.DefaultClient.Do(req)
		cancel()
		if err != nil {
			s.logger.Debug().Str("healthcheck", hc.Name).Err(err).Msg("healthcheck ping failed")
			continue
		}
		resp.Body.Close()
	}
}

// Status returns a snapshot of the Supervisor's current state.
func (s *Supervisor) Status() Status {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return Status{
		State:           s.state,
		SubState:        s.subState,
		Network:         s.cfg.Network,
		TargetID:        s.cfg.TargetContractID,
		Assets:          append([]string(nil), s.cfg.Assets...),
		Providers:       s.aggregator.ProviderNames(),
		AggregatorStats: s.aggregator.CacheStats(),
		LastCycleAt:     s.lastCycleAt,
		LastCycleError:  s.lastCycleErr,
		CyclesRun:       s.cyclesRun,
		CyclesSkipped:   s.cyclesSkipped,
	}
}
