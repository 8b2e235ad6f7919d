package display

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yegors/arrival-board/internal/arrivals"
	"github.com/yegors/arrival-board/internal/board"
	"github.com/yegors/arrival-board/internal/weather"
)

// AppTitle is drawn centered at the top of the header
const AppTitle = "Arrival Board"

// ClockLayout matches "Sat Jan 17  7:05 PM"
const ClockLayout = "Mon Jan 2  3:04 PM"

const metaSeparator = "  •  "

// Header is the text of the board header
type Header struct {
	AppTitle         string `json:"app_title"`
	Title            string `json:"title"`             // Stop name, or "Stop <id>"
	Subtitle         string `json:"subtitle"`          // Always "Stop <id>"
	Clock            string `json:"clock"`             // Local date and time
	WeatherPrimary   string `json:"weather_primary"`   // Icon and temperature, or "Weather --"
	WeatherSecondary string `json:"weather_secondary"` // Precipitation, empty without weather
}

// Tile is the text of one arrival tile
type Tile struct {
	Route       string `json:"route"`
	Destination string `json:"destination"`
	ETA         string `json:"eta"`      // "NOW", minutes, or "--"
	ETAUnit     string `json:"eta_unit"` // "min" unless the bus is arriving now
	Meta        string `json:"meta"`     // Stops, riders, bus number and distance
}

// Board is the fully formatted board
type Board struct {
	Header Header `json:"header"`
	Tiles  []Tile `json:"tiles"`
}

// FormatBoard formats a board view at now in loc
func FormatBoard(view board.View, now time.Time, loc *time.Location) Board {
	b := Board{
		Header: FormatHeader(view.StopID, view.StopName, view.Weather, now, loc),
		Tiles:  make([]Tile, 0, len(view.Arrivals)),
	}
	for _, a := range view.Arrivals {
		b.Tiles = append(b.Tiles, FormatTile(a))
	}
	return b
}

// FormatHeader builds the header lines
func FormatHeader(stopID, stopName string, wx weather.Snapshot, now time.Time, loc *time.Location) Header {
	h := Header{
		AppTitle: AppTitle,
		Title:    HeaderTitle(stopID, stopName),
		Subtitle: "Stop " + orDash(stopID),
		Clock:    ClockLine(now, loc),
	}
	h.WeatherPrimary, h.WeatherSecondary = WeatherLines(wx)
	return h
}

// HeaderTitle returns the stop name, falling back to the stop id
func HeaderTitle(stopID, stopName string) string {
	if stopName != "" {
		return stopName
	}
	return "Stop " + orDash(stopID)
}

// ClockLine formats now in loc. A nil loc uses local time.
func ClockLine(now time.Time, loc *time.Location) string {
	if loc != nil {
		now = now.In(loc)
	}
	return now.Format(ClockLayout)
}

// WeatherLines returns the icon/temperature line and the precipitation line
func WeatherLines(wx weather.Snapshot) (string, string) {
	if !wx.HasData {
		return "Weather --", ""
	}

	temp := "--"
	if wx.HasTemperature() {
		temp = strconv.Itoa(wx.TemperatureF)
	}
	primary := fmt.Sprintf("%s  %s°F", wx.Icon.Glyph(), temp)

	var secondary string
	switch {
	case wx.PrecipProbability >= 0:
		secondary = fmt.Sprintf("Precip %d%%", wx.PrecipProbability)
	case wx.PrecipInches >= 0:
		secondary = fmt.Sprintf("Precip %.2f in", wx.PrecipInches)
	default:
		secondary = "Precip --"
	}
	return primary, secondary
}

// FormatTile builds the text of one arrival tile
func FormatTile(a arrivals.Arrival) Tile {
	t := Tile{
		Route:       orDash(a.Route),
		Destination: orDash(a.Destination),
		ETA:         ETAText(a.MinutesUntilArrival),
		ETAUnit:     "min",
	}
	if a.MinutesUntilArrival == 0 {
		t.ETAUnit = ""
	}

	stops := "--"
	if a.StopsAway >= 0 {
		stops = strconv.Itoa(a.StopsAway)
	}
	miles := "--"
	if a.MilesAway >= 0 {
		miles = fmt.Sprintf("%.1f", a.MilesAway)
	}

	t.Meta = strings.Join([]string{
		stops + " stops",
		strconv.Itoa(a.EstimatedOccupancy) + " ppl",
		"BUS " + BusNumber(a.Vehicle),
		miles + " mi",
	}, metaSeparator)
	return t
}

// ETAText renders minutes until arrival
func ETAText(mins int) string {
	switch {
	case mins == 0:
		return "NOW"
	case mins > 0:
		return strconv.Itoa(mins)
	default:
		return "--"
	}
}

// BusNumber shortens a vehicle ref like "MTA NYCT_7241" to "7241". The text
// after the last '_' wins, else the text after the last space.
func BusNumber(vehicle string) string {
	if vehicle == "" || vehicle == arrivals.UnknownVehicle {
		return "--"
	}
	if i := strings.LastIndex(vehicle, "_"); i >= 0 && i < len(vehicle)-1 {
		return vehicle[i+1:]
	}
	if i := strings.LastIndex(vehicle, " "); i >= 0 && i < len(vehicle)-1 {
		return vehicle[i+1:]
	}
	return vehicle
}

func orDash(s string) string {
	if s == "" {
		return "--"
	}
	return s
}

// Document is a board view together with its formatted text, as served to
// HTTP and WebSocket clients
type Document struct {
	board.View
	Stale   bool  `json:"stale"`
	Display Board `json:"display"`
}

// NewDocument formats view at now in loc
func NewDocument(view board.View, now time.Time, loc *time.Location) Document {
	return Document{
		View:    view,
		Stale:   view.Status.Stale(),
		Display: FormatBoard(view, now, loc),
	}
}
