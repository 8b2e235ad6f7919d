package board

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/yegors/arrival-board/internal/arrivals"
	"github.com/yegors/arrival-board/internal/weather"
	"github.com/yegors/arrival-board/pkg/logger"
)

type scriptedSource struct {
	results []arrivals.Result
	errs    []error
	calls   int
}

func (s *scriptedSource) Fetch(_ context.Context, _ time.Time) (arrivals.Result, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return arrivals.Result{}, s.errs[i]
	}
	if i < len(s.results) {
		return s.results[i], nil
	}
	return arrivals.Result{}, errors.New("script exhausted")
}

type fakeWeather struct {
	calls int
	hints []string
	fail  bool
}

func (f *fakeWeather) Refresh(_ context.Context, prev weather.Snapshot, hint string, now time.Time) weather.Snapshot {
	f.calls++
	f.hints = append(f.hints, hint)
	if f.fail {
		prev.HasData = false
		return prev
	}
	return weather.Snapshot{HasData: true, Icon: weather.IconClear, TemperatureF: 60, LastFetch: now}
}

type capturePublisher struct {
	mu    sync.Mutex
	views []View
}

func (p *capturePublisher) PublishBoard(v View) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.views = append(p.views, v)
}

type captureRecorder struct {
	polls int
	rows  int
}

func (r *captureRecorder) RecordArrivals(_ context.Context, _ time.Time, _ string, list []arrivals.Arrival) error {
	r.polls++
	r.rows += len(list)
	return nil
}

func makeResult(n int, stopName string) arrivals.Result {
	res := arrivals.Result{StopName: stopName}
	for i := 0; i < n; i++ {
		res.Arrivals = append(res.Arrivals, arrivals.Arrival{
			Route:               fmt.Sprintf("Q%d", i),
			Vehicle:             arrivals.UnknownVehicle,
			Destination:         arrivals.UnknownDestName,
			StopsAway:           i,
			MinutesUntilArrival: i,
			MilesAway:           arrivals.UnknownMiles,
		})
	}
	return res
}

var schedCfg = SchedulerConfig{
	PollInterval:    10 * time.Second,
	TickInterval:    time.Second,
	WeatherInterval: 600 * time.Second,
}

func TestStaleOnFailure(t *testing.T) {
	src := &scriptedSource{
		results: []arrivals.Result{makeResult(5, "MAIN ST")},
		errs:    []error{nil, errors.New("transport: timeout"), nil},
	}
	state := NewState("MTA_1", "")
	s := NewScheduler(schedCfg, src, nil, state, logger.NewNop())

	t0 := time.Date(2026, 1, 17, 12, 0, 0, 0, time.UTC)
	s.Tick(context.Background(), t0)

	before := state.View()
	if len(before.Arrivals) != 5 {
		t.Fatalf("expected 5 arrivals after first poll, got %d", len(before.Arrivals))
	}

	s.Tick(context.Background(), t0.Add(10*time.Second))

	after := state.View()
	if len(after.Arrivals) != 5 {
		t.Fatalf("failed poll must keep the previous 5 arrivals, got %d", len(after.Arrivals))
	}
	for i := range before.Arrivals {
		if before.Arrivals[i] != after.Arrivals[i] {
			t.Errorf("arrival %d changed across a failed poll: %+v -> %+v", i, before.Arrivals[i], after.Arrivals[i])
		}
	}
	if !after.Status.Stale() || after.Status.ArrivalsError == "" {
		t.Errorf("status should report the failure, got %+v", after.Status)
	}
	if !after.Status.LastArrivalsSuccess.Equal(t0) {
		t.Errorf("last success should stay at %v, got %v", t0, after.Status.LastArrivalsSuccess)
	}
}

func TestMalformedPayloadTreatedAsFailure(t *testing.T) {
	src := &scriptedSource{
		results: []arrivals.Result{makeResult(3, "")},
		errs:    []error{nil, fmt.Errorf("%w: bad", arrivals.ErrMalformedPayload)},
	}
	state := NewState("MTA_1", "")
	s := NewScheduler(schedCfg, src, nil, state, logger.NewNop())

	t0 := time.Now()
	s.Tick(context.Background(), t0)
	s.Tick(context.Background(), t0.Add(schedCfg.PollInterval))

	if got := len(state.View().Arrivals); got != 3 {
		t.Errorf("expected 3 arrivals retained, got %d", got)
	}
}

func TestPollCadence(t *testing.T) {
	src := &scriptedSource{results: []arrivals.Result{makeResult(1, ""), makeResult(2, ""), makeResult(3, "")}}
	s := NewScheduler(schedCfg, src, nil, NewState("MTA_1", ""), logger.NewNop())

	t0 := time.Date(2026, 1, 17, 12, 0, 0, 0, time.UTC)
	for _, offset := range []time.Duration{0, time.Second, 5 * time.Second, 9999 * time.Millisecond} {
		s.Tick(context.Background(), t0.Add(offset))
	}
	if src.calls != 1 {
		t.Fatalf("expected a single fetch within the poll interval, got %d", src.calls)
	}

	s.Tick(context.Background(), t0.Add(10*time.Second))
	if src.calls != 2 {
		t.Errorf("expected a second fetch once the interval elapsed, got %d", src.calls)
	}
}

func TestWeatherCadenceIndependent(t *testing.T) {
	results := make([]arrivals.Result, 100)
	for i := range results {
		results[i] = makeResult(1, "MAIN ST")
	}
	src := &scriptedSource{results: results}
	wx := &fakeWeather{}
	s := NewScheduler(schedCfg, src, wx, NewState("MTA_1", ""), logger.NewNop())

	t0 := time.Date(2026, 1, 17, 12, 0, 0, 0, time.UTC)
	// ten minutes of polling at the arrivals cadence
	for i := 0; i < 60; i++ {
		s.Tick(context.Background(), t0.Add(time.Duration(i)*10*time.Second))
	}

	if src.calls != 60 {
		t.Errorf("expected 60 arrivals polls, got %d", src.calls)
	}
	if wx.calls != 1 {
		t.Errorf("expected 1 weather refresh within 600s, got %d", wx.calls)
	}

	s.Tick(context.Background(), t0.Add(600*time.Second))
	if wx.calls != 2 {
		t.Errorf("expected weather refresh at 600s, got %d", wx.calls)
	}
	if wx.hints[0] != "MAIN ST" {
		t.Errorf("weather should receive the stop name hint, got %q", wx.hints[0])
	}
}

func TestWeatherRetryAfterFailureIsSpaced(t *testing.T) {
	src := &scriptedSource{results: make([]arrivals.Result, 10)}
	wx := &fakeWeather{fail: true}
	s := NewScheduler(schedCfg, src, wx, NewState("MTA_1", ""), logger.NewNop())

	t0 := time.Date(2026, 1, 17, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		s.Tick(context.Background(), t0.Add(time.Duration(i)*time.Second))
	}
	if wx.calls != 1 {
		t.Errorf("failed weather should not be retried every tick, got %d calls", wx.calls)
	}

	s.Tick(context.Background(), t0.Add(schedCfg.PollInterval))
	if wx.calls != 2 {
		t.Errorf("failed weather should be retried after the poll interval, got %d calls", wx.calls)
	}
}

func TestStopNameAdoption(t *testing.T) {
	t0 := time.Date(2026, 1, 17, 12, 0, 0, 0, time.UTC)

	src := &scriptedSource{results: []arrivals.Result{makeResult(1, ""), makeResult(1, "MAIN ST"), makeResult(1, "OTHER")}}
	state := NewState("MTA_1", "")
	s := NewScheduler(schedCfg, src, nil, state, logger.NewNop())

	s.Tick(context.Background(), t0)
	if state.StopName() != "" {
		t.Errorf("expected empty name, got %q", state.StopName())
	}
	s.Tick(context.Background(), t0.Add(10*time.Second))
	s.Tick(context.Background(), t0.Add(20*time.Second))
	if state.StopName() != "MAIN ST" {
		t.Errorf("first upstream name should stick, got %q", state.StopName())
	}

	override := NewState("MTA_1", "Kiosk 4")
	src = &scriptedSource{results: []arrivals.Result{makeResult(1, "MAIN ST")}}
	NewScheduler(schedCfg, src, nil, override, logger.NewNop()).Tick(context.Background(), t0)
	if override.StopName() != "Kiosk 4" {
		t.Errorf("override should win, got %q", override.StopName())
	}
}

func TestPublishAndRecord(t *testing.T) {
	src := &scriptedSource{
		results: []arrivals.Result{makeResult(4, "MAIN ST")},
		errs:    []error{nil, errors.New("boom")},
	}
	pub := &capturePublisher{}
	rec := &captureRecorder{}
	s := NewScheduler(schedCfg, src, &fakeWeather{}, NewState("MTA_1", ""), logger.NewNop())
	s.SetPublisher(pub)
	s.SetRecorder(rec)

	t0 := time.Date(2026, 1, 17, 12, 0, 0, 0, time.UTC)
	s.Tick(context.Background(), t0)
	s.Tick(context.Background(), t0.Add(time.Second)) // nothing due
	s.Tick(context.Background(), t0.Add(10*time.Second))

	if len(pub.views) != 2 {
		t.Fatalf("expected 2 published views, got %d", len(pub.views))
	}
	if !pub.views[0].Weather.HasData || len(pub.views[0].Arrivals) != 4 {
		t.Errorf("unexpected first view %+v", pub.views[0])
	}
	if rec.polls != 1 || rec.rows != 4 {
		t.Errorf("only successful polls should be recorded, got %d polls %d rows", rec.polls, rec.rows)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	src := &scriptedSource{results: []arrivals.Result{makeResult(2, "")}}
	state := NewState("MTA_1", "")
	s := NewScheduler(SchedulerConfig{PollInterval: time.Hour, TickInterval: 10 * time.Millisecond}, src, nil, state, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if src.calls != 1 || len(state.View().Arrivals) != 2 {
		t.Errorf("expected exactly the initial poll, got %d calls", src.calls)
	}
}

func TestStartStop(t *testing.T) {
	src := &scriptedSource{results: []arrivals.Result{makeResult(1, "")}}
	s := NewScheduler(SchedulerConfig{PollInterval: time.Hour, TickInterval: 10 * time.Millisecond}, src, nil, NewState("MTA_1", ""), logger.NewNop())

	s.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	s.Stop()
	s.Stop()
}

func TestRunOnce(t *testing.T) {
	src := &scriptedSource{results: []arrivals.Result{makeResult(3, "MAIN ST")}}
	wx := &fakeWeather{}
	s := NewScheduler(schedCfg, src, wx, NewState("MTA_1", ""), logger.NewNop())

	view := s.RunOnce(context.Background())
	if len(view.Arrivals) != 3 || view.StopName != "MAIN ST" || !view.Weather.HasData {
		t.Errorf("unexpected view %+v", view)
	}
	if wx.hints[0] != "MAIN ST" {
		t.Errorf("weather should run after arrivals so it sees the stop name, got %q", wx.hints[0])
	}
}

func TestViewIsACopy(t *testing.T) {
	state := NewState("MTA_1", "")
	state.ApplyArrivals(makeResult(2, ""), time.Now())

	v := state.View()
	v.Arrivals[0].Route = "MUTATED"

	if state.View().Arrivals[0].Route == "MUTATED" {
		t.Error("mutating a view must not affect the state")
	}
	if empty := NewState("x", "").View(); empty.Arrivals == nil {
		t.Error("empty board should expose an empty, non-nil arrivals list")
	}
}
