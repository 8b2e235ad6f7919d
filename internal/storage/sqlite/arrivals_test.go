package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/yegors/arrival-board/internal/arrivals"
	"github.com/yegors/arrival-board/pkg/logger"
)

func newTestStorage(t *testing.T) *ArrivalStorage {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "nested", DatabaseFilename), logger.NewNop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s, err := NewArrivalStorage(db, logger.NewNop())
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleArrivals(routes ...string) []arrivals.Arrival {
	var out []arrivals.Arrival
	for i, r := range routes {
		out = append(out, arrivals.Arrival{
			Route:               r,
			Vehicle:             "MTA NYCT_7241",
			Destination:         "JAMAICA",
			StopsAway:           i,
			MinutesUntilArrival: i * 2,
			ExpectedArrival:     time.Unix(1768623900+int64(i)*60, 0),
			MilesAway:           arrivals.UnknownMiles,
			EstimatedOccupancy:  3,
		})
	}
	return out
}

func TestRecordAndRecent(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	t0 := time.Date(2026, 1, 17, 12, 0, 0, 0, time.UTC)
	if err := s.RecordArrivals(ctx, t0, "MTA_1", sampleArrivals("Q27", "BX12", "Q27")); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.RecordArrivals(ctx, t0.Add(10*time.Second), "MTA_1", sampleArrivals("Q28")); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.RecordArrivals(ctx, t0, "MTA_1", nil); err != nil {
		t.Fatalf("empty poll should be a no-op: %v", err)
	}

	n, err := s.Count(ctx)
	if err != nil || n != 4 {
		t.Fatalf("expected 4 rows, got %d (%v)", n, err)
	}

	all, err := s.Recent(ctx, "", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(all) != 4 || all[0].Route != "Q28" {
		t.Fatalf("expected newest poll first, got %+v", all[0])
	}
	if !all[0].PollTime.Equal(t0.Add(10 * time.Second)) {
		t.Errorf("unexpected poll time %v", all[0].PollTime)
	}

	q27, err := s.Recent(ctx, "q27", 10)
	if err != nil {
		t.Fatalf("recent q27: %v", err)
	}
	if len(q27) != 2 {
		t.Fatalf("expected 2 Q27 rows, got %d", len(q27))
	}
	if q27[0].Position != 0 || q27[1].Position != 2 {
		t.Errorf("expected upstream positions 0 and 2, got %d and %d", q27[0].Position, q27[1].Position)
	}
	if q27[1].ExpectedArrivalEpoch != 1768623900+120 || q27[1].MilesAway != arrivals.UnknownMiles {
		t.Errorf("values did not survive storage: %+v", q27[1])
	}

	limited, err := s.Recent(ctx, "", 1)
	if err != nil || len(limited) != 1 {
		t.Errorf("expected limit to apply, got %d (%v)", len(limited), err)
	}
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fresh := time.Date(2026, 1, 17, 0, 0, 0, 0, time.UTC)
	if err := s.RecordArrivals(ctx, old, "MTA_1", sampleArrivals("Q27", "Q27")); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordArrivals(ctx, fresh, "MTA_1", sampleArrivals("Q27")); err != nil {
		t.Fatal(err)
	}

	removed, err := s.Prune(ctx, fresh.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 rows pruned, got %d", removed)
	}
	if n, _ := s.Count(ctx); n != 1 {
		t.Errorf("expected 1 row left, got %d", n)
	}
}

func TestRunRetentionStopsOnCancel(t *testing.T) {
	s := newTestStorage(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.RunRetention(ctx, 10*time.Millisecond, time.Hour)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("retention loop did not stop")
	}

	// disabled retention returns immediately
	s.RunRetention(context.Background(), time.Millisecond, 0)
}
