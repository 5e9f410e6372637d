package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/doaqui/doaqui/internal/metrics"
	"github.com/doaqui/doaqui/internal/repository"
)

// sweepLockKey coordinates sweep runs across server instances.
const sweepLockKey = "lock:sweep:reservations"

// ReservationSweeper releases reservations whose pickup never happened.
// A product scheduled longer ago than the reservation TTL goes back to
// available so other users can schedule it. Disabled by default: enabling
// it is an operational decision, since a released reservation silently
// cancels a planned pickup.
type ReservationSweeper struct {
	productRepo repository.ProductRepository
	locker      repository.DistributedLock
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	config      SweeperConfig

	// Control
	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	doneChan chan struct{}
}

// SweeperConfig contains reservation sweeper configuration.
type SweeperConfig struct {
	// Enabled determines if the sweep runs automatically.
	Enabled bool

	// Interval is how often to run the sweep.
	Interval time.Duration

	// ReservationTTL is how long a reservation may stay unconcluded.
	ReservationTTL time.Duration
}

// DefaultSweeperConfig returns sensible defaults.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Enabled:        false,
		Interval:       1 * time.Hour,
		ReservationTTL: 7 * 24 * time.Hour,
	}
}

// NewReservationSweeper creates a new reservation sweeper.
func NewReservationSweeper(
	productRepo repository.ProductRepository,
	locker repository.DistributedLock,
	m *metrics.Metrics,
	logger zerolog.Logger,
	config SweeperConfig,
) *ReservationSweeper {
	return &ReservationSweeper{
		productRepo: productRepo,
		locker:      locker,
		metrics:     m,
		logger:      logger.With().Str("service", "sweeper").Logger(),
		config:      config,
	}
}

// Start begins the sweep scheduler. The control channels are created per
// run so a stopped sweeper can be started again.
func (s *ReservationSweeper) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	stop, done := s.stopChan, s.doneChan
	s.mu.Unlock()

	s.logger.Info().
		Dur("interval", s.config.Interval).
		Dur("reservation_ttl", s.config.ReservationTTL).
		Msg("Starting reservation sweeper")

	go s.runLoop(stop, done)
}

// Stop stops the sweep scheduler and waits for the loop to exit.
func (s *ReservationSweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop, done := s.stopChan, s.doneChan
	s.mu.Unlock()

	close(stop)
	<-done

	s.logger.Info().Msg("Reservation sweeper stopped")
}

// runLoop is the main sweep loop.
func (s *ReservationSweeper) runLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce(context.Background())
		case <-stop:
			return
		}
	}
}

// SweepResult contains the result of a sweep run.
type SweepResult struct {
	// Released is the number of reservations returned to available.
	Released int64

	// Skipped is true when the lock was held by another instance.
	Skipped bool

	// Duration is how long the run took.
	Duration time.Duration
}

// RunOnce executes a single sweep. Can be called manually or by the
// scheduler. The distributed lock keeps concurrent instances from sweeping
// at the same time; the release itself is idempotent either way.
func (s *ReservationSweeper) RunOnce(ctx context.Context) SweepResult {
	start := time.Now()
	result := SweepResult{}

	lockTTL := s.config.Interval / 2
	if lockTTL < time.Minute {
		lockTTL = time.Minute
	}

	acquired, err := s.locker.Acquire(ctx, sweepLockKey, lockTTL)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to acquire sweep lock")
		result.Duration = time.Since(start)
		return result
	}
	if !acquired {
		s.logger.Debug().Msg("Sweep lock held by another instance, skipping run")
		result.Skipped = true
		result.Duration = time.Since(start)
		return result
	}
	defer func() {
		if _, err := s.locker.Release(ctx, sweepLockKey); err != nil {
			s.logger.Error().Err(err).Msg("Failed to release sweep lock")
		}
	}()

	cutoff := time.Now().UTC().Add(-s.config.ReservationTTL)
	released, err := s.productRepo.ReleaseExpired(ctx, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to release expired reservations")
		result.Duration = time.Since(start)
		return result
	}

	result.Released = released
	result.Duration = time.Since(start)

	if released > 0 {
		s.metrics.ObserveReleased(released)
		s.logger.Info().
			Int64("released", released).
			Time("cutoff", cutoff).
			Dur("duration", result.Duration).
			Msg("Expired reservations released")
	} else {
		s.logger.Debug().Msg("No expired reservations")
	}

	return result
}
