package display

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yegors/arrival-board/internal/arrivals"
	"github.com/yegors/arrival-board/internal/board"
	"github.com/yegors/arrival-board/internal/weather"
	"github.com/yegors/arrival-board/pkg/logger"
)

func TestFormatTile(t *testing.T) {
	tests := []struct {
		name     string
		arrival  arrivals.Arrival
		wantETA  string
		wantUnit string
		wantMeta string
	}{
		{
			name: "full",
			arrival: arrivals.Arrival{
				Route: "Q27", Destination: "CAMBRIA HTS", Vehicle: "MTA NYCT_7241",
				StopsAway: 3, MinutesUntilArrival: 5, MilesAway: 1.04, EstimatedOccupancy: 4,
			},
			wantETA:  "5",
			wantUnit: "min",
			wantMeta: "3 stops  •  4 ppl  •  BUS 7241  •  1.0 mi",
		},
		{
			name: "arriving",
			arrival: arrivals.Arrival{
				Route: "Q27", Destination: "X", Vehicle: "MTA 7241",
				StopsAway: 0, MinutesUntilArrival: 0, MilesAway: 0.06, EstimatedOccupancy: 1,
			},
			wantETA:  "NOW",
			wantUnit: "",
			wantMeta: "0 stops  •  1 ppl  •  BUS 7241  •  0.1 mi",
		},
		{
			name: "unknown everything",
			arrival: arrivals.Arrival{
				Route: arrivals.UnknownRoute, Destination: arrivals.UnknownDestName, Vehicle: arrivals.UnknownVehicle,
				StopsAway: arrivals.Unknown, MinutesUntilArrival: arrivals.Unknown, MilesAway: arrivals.UnknownMiles, EstimatedOccupancy: 1,
			},
			wantETA:  "--",
			wantUnit: "min",
			wantMeta: "-- stops  •  1 ppl  •  BUS --  •  -- mi",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tile := FormatTile(tt.arrival)
			if tile.ETA != tt.wantETA || tile.ETAUnit != tt.wantUnit {
				t.Errorf("eta: expected %q %q, got %q %q", tt.wantETA, tt.wantUnit, tile.ETA, tile.ETAUnit)
			}
			if tile.Meta != tt.wantMeta {
				t.Errorf("meta: expected %q, got %q", tt.wantMeta, tile.Meta)
			}
		})
	}
}

func TestBusNumber(t *testing.T) {
	tests := map[string]string{
		"MTA NYCT_7241": "7241",
		"MTABC 3302":    "3302",
		"8500":          "8500",
		"MTA_":          "MTA_",
		"":              "--",
		"--":            "--",
	}
	for in, want := range tests {
		if got := BusNumber(in); got != want {
			t.Errorf("%q: expected %q, got %q", in, want, got)
		}
	}
}

func TestHeader(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	now := time.Date(2026, 1, 18, 0, 5, 0, 0, time.UTC) // 7:05 PM on the 17th in New York

	h := FormatHeader("MTA_308209", "", weather.Snapshot{}, now, ny)
	if h.Title != "Stop MTA_308209" || h.Subtitle != "Stop MTA_308209" {
		t.Errorf("unexpected titles %+v", h)
	}
	if h.Clock != "Sat Jan 17  7:05 PM" {
		t.Errorf("unexpected clock %q", h.Clock)
	}
	if h.WeatherPrimary != "Weather --" || h.WeatherSecondary != "" {
		t.Errorf("unexpected weather lines %+v", h)
	}

	named := FormatHeader("MTA_308209", "MAIN ST/KISSENA BL", weather.Snapshot{}, now, ny)
	if named.Title != "MAIN ST/KISSENA BL" {
		t.Errorf("expected stop name title, got %q", named.Title)
	}
}

func TestWeatherLines(t *testing.T) {
	tests := []struct {
		name          string
		snap          weather.Snapshot
		primary, prec string
	}{
		{
			name:    "probability preferred",
			snap:    weather.Snapshot{HasData: true, Icon: weather.IconRain, TemperatureF: 54, PrecipProbability: 40, PrecipInches: 0.12},
			primary: "☔  54°F", prec: "Precip 40%",
		},
		{
			name:    "inches fallback",
			snap:    weather.Snapshot{HasData: true, Icon: weather.IconClear, TemperatureF: -3, PrecipProbability: -1, PrecipInches: 0.12},
			primary: "☀  -3°F", prec: "Precip 0.12 in",
		},
		{
			name:    "nothing known",
			snap:    weather.Snapshot{HasData: true, Icon: weather.IconOvercast, TemperatureF: weather.UnknownTemperature, PrecipProbability: -1, PrecipInches: -1},
			primary: "☁  --°F", prec: "Precip --",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, s := WeatherLines(tt.snap)
			if p != tt.primary || s != tt.prec {
				t.Errorf("expected %q / %q, got %q / %q", tt.primary, tt.prec, p, s)
			}
		})
	}
}

func sampleView() board.View {
	return board.View{
		StopID:   "MTA_308209",
		StopName: "MAIN ST",
		Arrivals: []arrivals.Arrival{
			{Route: "Q27", Destination: "CAMBRIA HTS", Vehicle: "MTA NYCT_7241", StopsAway: 3, MinutesUntilArrival: 5, MilesAway: 1, EstimatedOccupancy: 4},
		},
		Weather: weather.Snapshot{HasData: true, Icon: weather.IconClear, TemperatureF: 60, PrecipProbability: 10},
	}
}

func TestRenderDefaultTemplate(t *testing.T) {
	r, err := NewRenderer("", logger.NewNop())
	if err != nil {
		t.Fatalf("default template: %v", err)
	}

	out, err := r.Render(FormatBoard(sampleView(), time.Now(), time.UTC))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"Arrival Board", "MAIN ST", "Q27", "CAMBRIA HTS", "5 min", "BUS 7241", "☀  60°F"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered board missing %q:\n%s", want, out)
		}
	}

	empty, err := r.Render(FormatBoard(board.View{StopID: "1"}, time.Now(), time.UTC))
	if err != nil {
		t.Fatalf("render empty: %v", err)
	}
	if !strings.Contains(empty, "No upcoming arrivals") {
		t.Errorf("expected empty message:\n%s", empty)
	}
}

func TestRenderCustomTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.tmpl")
	if err := os.WriteFile(path, []byte(`{{ len .Tiles }} tiles for {{ .Header.Title }}`), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := NewRenderer(path, logger.NewNop())
	if err != nil {
		t.Fatalf("custom template: %v", err)
	}
	out, err := r.Render(FormatBoard(sampleView(), time.Now(), time.UTC))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != "1 tiles for MAIN ST" {
		t.Errorf("unexpected output %q", out)
	}

	if _, err := NewRenderer(filepath.Join(t.TempDir(), "missing.tmpl"), logger.NewNop()); err == nil {
		t.Error("expected error for missing template")
	}
}

func TestNewDocument(t *testing.T) {
	v := sampleView()
	v.Status.ConsecutiveFailures = 1

	doc := NewDocument(v, time.Date(2026, 1, 17, 9, 30, 0, 0, time.UTC), time.UTC)
	if !doc.Stale {
		t.Error("expected stale document after a failed poll")
	}
	if doc.StopID != "MTA_308209" || len(doc.Display.Tiles) != 1 {
		t.Errorf("unexpected document %+v", doc)
	}
	if doc.Display.Header.Clock != "Sat Jan 17  9:30 AM" {
		t.Errorf("unexpected clock %q", doc.Display.Header.Clock)
	}
}
