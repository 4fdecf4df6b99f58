package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/store"
)

// MaxVolumeDelta bounds the volume added to an instrument per tick.
const MaxVolumeDelta = 10000

// SimulatorConfig holds the random-walk parameters.
type SimulatorConfig struct {
	Volatility   float64         // maximum relative move per tick, e.g. 0.02
	PriceFloor   decimal.Decimal // prices never drop below this
	HistoryLimit int
}

// DefaultSimulatorConfig returns ±2% moves, a 1.00 floor, and 100 points
// of history.
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		Volatility:   0.02,
		PriceFloor:   decimal.NewFromInt(1),
		HistoryLimit: domain.DefaultHistoryLimit,
	}
}

// TickResult reports what one tick changed.
type TickResult struct {
	Updated int
	Failed  int
}

// SimulatorStatus is a snapshot of the loop state.
type SimulatorStatus struct {
	Running  bool
	Interval time.Duration
	Ticks    int64
	LastTick time.Time
}

// Simulator advances every instrument's price on a fixed cadence and
// broadcasts the resulting quotes.
type Simulator struct {
	cfg         SimulatorConfig
	instruments store.Instruments
	publisher   Publisher
	rng         RandomSource
	logger      *slog.Logger
	now         func() time.Time

	tickMu sync.Mutex // serializes ticks and guards rng

	mu       sync.Mutex // protects the loop fields below
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
	interval time.Duration
	ticks    int64
	lastTick time.Time
}

// NewSimulator creates a stopped Simulator.
func NewSimulator(
	cfg SimulatorConfig,
	instruments store.Instruments,
	publisher Publisher,
	rng RandomSource,
	logger *slog.Logger,
) *Simulator {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if rng == nil {
		rng = DefaultRandom()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{
		cfg:         cfg,
		instruments: instruments,
		publisher:   publisher,
		rng:         rng,
		logger:      logger,
		now:         time.Now,
	}
}

// Initialize creates each seed instrument that does not exist yet and
// returns how many were created. Existing instruments are left untouched.
func (s *Simulator) Initialize(ctx context.Context, seeds []*domain.Instrument) (int, error) {
	created := 0
	for _, inst := range seeds {
		err := s.instruments.Create(ctx, inst)
		if errors.Is(err, domain.ErrInstrumentAlreadyExists) {
			continue
		}
		if err != nil {
			return created, err
		}
		created++
	}
	s.logger.Info("market initialized", "seeds", len(seeds), "created", created)
	return created, nil
}

// ErrInvalidInterval is returned by Start for a non-positive interval.
var ErrInvalidInterval = errors.New("invalid_interval")

// Start launches the tick loop. It returns false without doing anything
// if the loop is already running. The loop ends on Stop or when parent
// is cancelled.
func (s *Simulator) Start(parent context.Context, interval time.Duration) (bool, error) {
	if interval <= 0 {
		return false, fmt.Errorf("%w: %v", ErrInvalidInterval, interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Info("market simulator already running")
		return false, nil
	}
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	s.running = true
	s.cancel = cancel
	s.done = done
	s.interval = interval

	go s.loop(ctx, interval, done)
	s.logger.Info("market simulator started", "interval", interval.String())
	return true, nil
}

func (s *Simulator) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer func() {
		s.mu.Lock()
		if s.done == done {
			s.running = false
			s.cancel = nil
			s.done = nil
		}
		s.mu.Unlock()
		close(done)
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// A started tick runs to completion even if Stop is called.
			if _, err := s.Tick(context.WithoutCancel(ctx)); err != nil {
				s.logger.Error("tick failed", "error", err)
			}
		}
	}
}

// Stop cancels future ticks and waits for an in-flight tick to finish.
// It returns false if the loop was not running.
func (s *Simulator) Stop() bool {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return false
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	s.logger.Info("market simulator stopped")
	return true
}

// Running reports whether the tick loop is active.
func (s *Simulator) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status returns the loop state.
func (s *Simulator) Status() SimulatorStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SimulatorStatus{
		Running:  s.running,
		Interval: s.interval,
		Ticks:    s.ticks,
		LastTick: s.lastTick,
	}
}

// Tick advances every instrument by one step and broadcasts a
// market-update with all quotes. An instrument whose update fails is
// logged, skipped, and broadcast with its last stored state. Only a
// failure to list instruments is returned.
func (s *Simulator) Tick(ctx context.Context) (TickResult, error) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	var res TickResult
	insts, err := s.instruments.List(ctx)
	if err != nil {
		return res, err
	}

	at := s.now()
	snapshot := make([]*domain.Instrument, 0, len(insts))
	for _, inst := range insts {
		updated, err := s.instruments.Apply(ctx, inst.Symbol, func(cur *domain.Instrument) error {
			cur.ApplyTick(s.nextPrice(cur.Price), s.rng.Int64N(MaxVolumeDelta), at, s.cfg.HistoryLimit)
			return nil
		})
		if err != nil {
			res.Failed++
			s.logger.Warn("tick skipped instrument", "symbol", inst.Symbol, "error", err)
			snapshot = append(snapshot, inst)
			continue
		}
		res.Updated++
		snapshot = append(snapshot, updated)
	}

	s.mu.Lock()
	s.ticks++
	s.lastTick = at
	s.mu.Unlock()

	if err := s.publisher.Publish(ctx, EventMarketUpdate, quoteUpdates(snapshot)); err != nil {
		s.logger.Warn("market-update broadcast failed", "error", err)
	}
	s.logger.Debug("tick complete", "updated", res.Updated, "failed", res.Failed)
	return res, nil
}

// nextPrice draws a move in [-volatility, +volatility] and applies the
// floor after rounding.
func (s *Simulator) nextPrice(price decimal.Decimal) decimal.Decimal {
	delta := (s.rng.Float64()*2 - 1) * s.cfg.Volatility
	next := domain.RoundMoney(price.Mul(decimal.NewFromFloat(1 + delta)))
	if next.LessThan(s.cfg.PriceFloor) {
		return s.cfg.PriceFloor
	}
	return next
}
