package application

import (
	"context"
	"errors"
	"log"
	"math"
	"time"

	downlink "frostguard/internal/downlink/domain"
	"frostguard/internal/observability/metrics"
)

const (
	DefaultTimeoutHours = 24
	MinTimeoutHours     = 1
	MaxTimeoutHours     = 168
	MaxBatchLimit       = 200

	// Name identifies the sweeper in its health descriptor.
	Name = "change-timeout-sweeper"
)

// StaleChangeStore times out sent changes older than cutoff. Implementations
// must scope the update to rows still matching the stale predicate when it
// executes, so repeated or concurrent runs never double count.
type StaleChangeStore interface {
	TimeoutStale(ctx context.Context, cutoff, now time.Time, limit int) ([]downlink.TimedOutChange, error)
}

// Result summarizes one sweep.
type Result struct {
	TimedOut        int       `json:"timed_out"`
	AffectedSensors []string  `json:"affected_sensors"`
	Cutoff          time.Time `json:"cutoff"`
	TimeoutHours    float64   `json:"timeout_hours"`
}

// Sweeper reconciles pending changes the device never confirmed.
type Sweeper struct {
	store      StaleChangeStore
	clock      downlink.Clock
	batchLimit int
	timeout    float64
	logger     *log.Logger
}

// NewSweeper constructs a Sweeper.
func NewSweeper(store StaleChangeStore, cfg Config, clock downlink.Clock, logger *log.Logger) (*Sweeper, error) {
	if store == nil {
		return nil, errors.New("sweeper: nil store")
	}
	if clock == nil {
		clock = downlink.SystemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Sweeper{
		store:      store,
		clock:      clock,
		batchLimit: clampBatchLimit(cfg.BatchLimit),
		timeout:    configuredTimeout(cfg.TimeoutHours),
		logger:     logger,
	}, nil
}

// ClampTimeoutHours bounds a requested window to [1,168] hours. Zero and
// negative windows clamp to the minimum; NaN selects the default.
func ClampTimeoutHours(hours float64) float64 {
	if math.IsNaN(hours) {
		return DefaultTimeoutHours
	}
	if hours < MinTimeoutHours {
		return MinTimeoutHours
	}
	if hours > MaxTimeoutHours {
		return MaxTimeoutHours
	}
	return hours
}

// configuredTimeout treats an unset (zero) config window as the default.
func configuredTimeout(hours float64) float64 {
	if hours == 0 {
		return DefaultTimeoutHours
	}
	return ClampTimeoutHours(hours)
}

func clampBatchLimit(limit int) int {
	if limit <= 0 || limit > MaxBatchLimit {
		return MaxBatchLimit
	}
	return limit
}

// TimeoutHours returns the configured window.
func (s *Sweeper) TimeoutHours() float64 {
	return s.timeout
}

// BatchLimit returns the per-run row limit.
func (s *Sweeper) BatchLimit() int {
	return s.batchLimit
}

// Run times out one batch. A nil timeoutHours uses the configured window.
// On error nothing from the batch is reported as committed.
func (s *Sweeper) Run(ctx context.Context, timeoutHours *float64) (Result, error) {
	hours := s.timeout
	if timeoutHours != nil {
		hours = ClampTimeoutHours(*timeoutHours)
	}
	now := s.clock.Now().UTC()
	cutoff := now.Add(-time.Duration(hours * float64(time.Hour)))
	result := Result{Cutoff: cutoff, TimeoutHours: hours, AffectedSensors: []string{}}

	start := time.Now()
	changes, err := s.store.TimeoutStale(ctx, cutoff, now, s.batchLimit)
	if err != nil {
		metrics.ObserveSweeperRun(metrics.ResultError, time.Since(start))
		s.logf("sweeper_failed", result, err.Error())
		return result, err
	}
	metrics.ObserveSweeperRun(metrics.ResultSuccess, time.Since(start))
	metrics.AddDownlinkTimeouts(len(changes))

	seen := make(map[string]struct{}, len(changes))
	for _, change := range changes {
		if _, ok := seen[change.SensorID]; ok {
			continue
		}
		seen[change.SensorID] = struct{}{}
		result.AffectedSensors = append(result.AffectedSensors, change.SensorID)
	}
	result.TimedOut = len(changes)
	s.logf("sweeper_completed", result, "")
	return result, nil
}

func (s *Sweeper) logf(event string, result Result, errMsg string) {
	s.logger.Printf("event=%s timed_out=%d affected_sensors=%d cutoff=%s timeout_hours=%g error=%s",
		event, result.TimedOut, len(result.AffectedSensors), result.Cutoff.Format(time.RFC3339), result.TimeoutHours, errMsg)
}
