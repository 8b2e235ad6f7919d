package board

import (
	"context"
	"sync"
	"time"

	"github.com/yegors/arrival-board/internal/arrivals"
	"github.com/yegors/arrival-board/internal/weather"
	"github.com/yegors/arrival-board/pkg/logger"
)

// ArrivalSource fetches the current arrivals for the monitored stop
type ArrivalSource interface {
	Fetch(ctx context.Context, now time.Time) (arrivals.Result, error)
}

// WeatherSource produces the next weather snapshot from the previous one
type WeatherSource interface {
	Refresh(ctx context.Context, prev weather.Snapshot, stopNameHint string, now time.Time) weather.Snapshot
}

// Publisher is told about every board change
type Publisher interface {
	PublishBoard(view View)
}

// Recorder persists successful polls
type Recorder interface {
	RecordArrivals(ctx context.Context, pollTime time.Time, stopID string, list []arrivals.Arrival) error
}

// SchedulerConfig holds the loop cadences
type SchedulerConfig struct {
	PollInterval    time.Duration // Arrivals cadence
	TickInterval    time.Duration // How often due-ness is checked
	WeatherInterval time.Duration // Minimum age before weather is refetched
}

// Scheduler drives all fetching from a single goroutine. Fetches run
// synchronously inside the loop, so at most one request is ever in flight.
type Scheduler struct {
	cfg       SchedulerConfig
	source    ArrivalSource
	weather   WeatherSource
	state     *State
	publisher Publisher
	recorder  Recorder
	logger    *logger.Logger

	lastArrivalsAttempt time.Time
	lastWeatherAttempt  time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler creates a scheduler. weatherSource may be nil when weather is disabled.
func NewScheduler(cfg SchedulerConfig, source ArrivalSource, weatherSource WeatherSource, state *State, log *logger.Logger) *Scheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 250 * time.Millisecond
	}
	return &Scheduler{
		cfg:     cfg,
		source:  source,
		weather: weatherSource,
		state:   state,
		logger:  log.Named("scheduler"),
		stopCh:  make(chan struct{}),
	}
}

// SetPublisher sets the change listener
func (s *Scheduler) SetPublisher(p Publisher) {
	s.publisher = p
}

// SetRecorder sets the history sink
func (s *Scheduler) SetRecorder(r Recorder) {
	s.recorder = r
}

// State returns the board state the scheduler writes to
func (s *Scheduler) State() *State {
	return s.state
}

// Start runs the loop in the background until Stop is called or ctx ends
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting scheduler",
		logger.Duration("poll_interval", s.cfg.PollInterval),
		logger.Duration("weather_interval", s.cfg.WeatherInterval),
		logger.Duration("tick_interval", s.cfg.TickInterval))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Run(ctx)
	}()
}

// Stop stops the loop and waits for an in-flight tick to finish
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

// Run checks due-ness every tick until ctx is cancelled or Stop is called
func (s *Scheduler) Run(ctx context.Context) {
	s.Tick(ctx, time.Now())

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Tick(ctx, time.Now())
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce fetches arrivals and weather immediately regardless of due-ness
func (s *Scheduler) RunOnce(ctx context.Context) View {
	now := time.Now()
	s.pollArrivals(ctx, now)
	if s.weather != nil {
		s.refreshWeather(ctx, now)
	}
	view := s.state.View()
	s.publish(view)
	return view
}

// Tick performs whatever work is due at now. Arrivals and weather are checked
// independently; each runs to completion before the next is considered.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	changed := false

	if s.arrivalsDue(now) {
		s.pollArrivals(ctx, now)
		changed = true
	}

	if s.weatherDue(now) {
		s.refreshWeather(ctx, now)
		changed = true
	}

	if changed {
		s.publish(s.state.View())
	}
}

func (s *Scheduler) arrivalsDue(now time.Time) bool {
	return s.lastArrivalsAttempt.IsZero() || now.Sub(s.lastArrivalsAttempt) >= s.cfg.PollInterval
}

// weatherDue applies the minimum refetch age to the last successful fetch.
// After a failure LastFetch does not move, so retries are additionally spaced
// by the poll interval.
func (s *Scheduler) weatherDue(now time.Time) bool {
	if s.weather == nil {
		return false
	}
	if !weather.Due(s.state.Weather(), now, s.cfg.WeatherInterval) {
		return false
	}
	return s.lastWeatherAttempt.IsZero() || now.Sub(s.lastWeatherAttempt) >= s.cfg.PollInterval
}

// pollArrivals fetches once. Only a successful fetch replaces the arrivals on
// the board; a failure leaves the previous list visible.
func (s *Scheduler) pollArrivals(ctx context.Context, now time.Time) {
	s.lastArrivalsAttempt = now

	res, err := s.source.Fetch(ctx, now)
	if err != nil {
		s.state.RecordArrivalsFailure(err, now)
		status := s.state.Status()
		s.logger.Warn("Arrivals poll failed, keeping previous arrivals",
			logger.Error(err),
			logger.Int("consecutive_failures", status.ConsecutiveFailures))
		return
	}

	s.state.ApplyArrivals(res, now)
	s.logger.Debug("Arrivals updated",
		logger.Int("count", res.Len()),
		logger.String("stop_name", s.state.StopName()))

	if s.recorder != nil {
		view := s.state.View()
		if err := s.recorder.RecordArrivals(ctx, now, view.StopID, res.Arrivals); err != nil {
			s.logger.Error("Failed to record arrivals", logger.Error(err))
		}
	}
}

func (s *Scheduler) refreshWeather(ctx context.Context, now time.Time) {
	s.lastWeatherAttempt = now
	next := s.weather.Refresh(ctx, s.state.Weather(), s.state.StopName(), now)
	s.state.ApplyWeather(next, now)
}

func (s *Scheduler) publish(view View) {
	if s.publisher != nil {
		s.publisher.PublishBoard(view)
	}
}
