package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yegors/arrival-board/internal/arrivals"
	"github.com/yegors/arrival-board/internal/board"
	"github.com/yegors/arrival-board/internal/config"
	"github.com/yegors/arrival-board/internal/display"
	"github.com/yegors/arrival-board/internal/storage/sqlite"
	"github.com/yegors/arrival-board/internal/weather"
	"github.com/yegors/arrival-board/internal/websocket"
	"github.com/yegors/arrival-board/pkg/logger"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

var errInvalidLimit = errors.New("limit must be a positive integer")

// HistoryStore is the read side of the arrival history
type HistoryStore interface {
	Recent(ctx context.Context, route string, limit int) ([]*sqlite.ArrivalRecord, error)
	Count(ctx context.Context) (int, error)
}

// Handler contains the API handlers
type Handler struct {
	state    *board.State
	history  HistoryStore // nil when storage is disabled
	renderer *display.Renderer
	wsServer *websocket.Server
	config   *config.Config
	loc      *time.Location
	now      func() time.Time
	started  time.Time
	logger   *logger.Logger
}

// NewHandler creates a new API handler. history and wsServer may be nil.
func NewHandler(state *board.State, history HistoryStore, renderer *display.Renderer, wsServer *websocket.Server, cfg *config.Config, log *logger.Logger) *Handler {
	return &Handler{
		state:    state,
		history:  history,
		renderer: renderer,
		wsServer: wsServer,
		config:   cfg,
		loc:      cfg.Display.Location(),
		now:      time.Now,
		started:  time.Now(),
		logger:   log.Named("api-handler"),
	}
}

// HistoryEnabled reports whether the history endpoint is served
func (h *Handler) HistoryEnabled() bool {
	return h.history != nil
}

// GetBoard returns the full board with its formatted text
func (h *Handler) GetBoard(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, display.NewDocument(h.state.View(), h.now(), h.loc))
}

// GetBoardText renders the board through the text template
func (h *Handler) GetBoardText(w http.ResponseWriter, r *http.Request) {
	b := display.FormatBoard(h.state.View(), h.now(), h.loc)
	out, err := h.renderer.Render(b)
	if err != nil {
		h.logger.Error("Failed to render board", logger.Error(err))
		WriteError(w, http.StatusInternalServerError, "failed to render board")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(out))
}

// GetArrivals returns the arrivals currently on display
func (h *Handler) GetArrivals(w http.ResponseWriter, r *http.Request) {
	view := h.state.View()

	response := struct {
		StopID      string             `json:"stop_id"`
		StopName    string             `json:"stop_name"`
		Arrivals    []arrivals.Arrival `json:"arrivals"`
		Count       int                `json:"count"`
		Stale       bool               `json:"stale"`
		LastSuccess *time.Time         `json:"last_success,omitempty"`
	}{
		StopID:      view.StopID,
		StopName:    view.StopName,
		Arrivals:    view.Arrivals,
		Count:       len(view.Arrivals),
		Stale:       view.Status.Stale(),
		LastSuccess: optionalTime(view.Status.LastArrivalsSuccess),
	}

	WriteJSON(w, http.StatusOK, response)
}

// GetWeather returns the current weather snapshot
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	snap := h.state.Weather()
	primary, secondary := display.WeatherLines(snap)

	response := struct {
		Enabled bool `json:"enabled"`
		weather.Snapshot
		Glyph     string `json:"glyph"`
		Primary   string `json:"primary"`
		Secondary string `json:"secondary"`
	}{
		Enabled:   h.config.Weather.Enabled,
		Snapshot:  snap,
		Glyph:     snap.Icon.Glyph(),
		Primary:   primary,
		Secondary: secondary,
	}

	WriteJSON(w, http.StatusOK, response)
}

// GetHealth returns the health status of the pipeline. The board keeps
// serving stale data through upstream outages, so health is always 200 and
// the status field tells the story.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	st := h.state.Status()

	status := "ok"
	switch {
	case st.LastArrivalsSuccess.IsZero():
		status = "starting"
	case st.Stale():
		status = "stale"
	}

	response := map[string]any{
		"status":               status,
		"stop_id":              h.config.Transit.StopID,
		"last_attempt":         optionalTime(st.LastArrivalsAttempt),
		"last_success":         optionalTime(st.LastArrivalsSuccess),
		"consecutive_failures": st.ConsecutiveFailures,
		"uptime_seconds":       int64(h.now().Sub(h.started).Seconds()),
	}
	if st.ArrivalsError != "" {
		response["error"] = st.ArrivalsError
	}
	if h.wsServer != nil {
		response["websocket_clients"] = h.wsServer.ClientCount()
	}
	if h.history != nil {
		if n, err := h.history.Count(r.Context()); err == nil {
			response["history_rows"] = n
		}
	}

	WriteJSON(w, http.StatusOK, response)
}

// GetConfig returns the public configuration
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	filter := arrivals.ParseRouteFilter(h.config.Transit.RouteFilter)

	publicConfig := map[string]any{
		"transit": map[string]any{
			"stop_id":               h.config.Transit.StopID,
			"operator_ref":          h.config.Transit.OperatorRef,
			"route_filter":          filter.Routes(),
			"poll_interval_seconds": h.config.Transit.PollInterval,
			"max_results":           h.config.Transit.MaxResults,
		},
		"weather": map[string]any{
			"enabled":                  h.config.Weather.Enabled,
			"refresh_interval_seconds": h.config.Weather.RefreshIntervalSeconds,
		},
		"storage": map[string]any{
			"enabled":        h.history != nil,
			"retention_days": h.config.Storage.RetentionDays,
		},
		"display": map[string]any{
			"timezone": h.loc.String(),
		},
	}

	WriteJSON(w, http.StatusOK, publicConfig)
}

// GetHistory returns stored arrivals, newest poll first.
// Query parameters: route (case-insensitive), limit (1..1000, default 100).
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		WriteError(w, http.StatusNotFound, "history storage is disabled")
		return
	}

	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	route := strings.TrimSpace(r.URL.Query().Get("route"))

	records, err := h.history.Recent(r.Context(), route, limit)
	if err != nil {
		h.logger.Error("Failed to query arrival history", logger.Error(err))
		WriteError(w, http.StatusInternalServerError, "failed to query history")
		return
	}
	if records == nil {
		records = []*sqlite.ArrivalRecord{}
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"route":   route,
		"limit":   limit,
		"count":   len(records),
		"records": records,
	})
}

// HandleWebSocket upgrades the request onto the board update hub
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.wsServer == nil {
		WriteError(w, http.StatusServiceUnavailable, "websocket updates are disabled")
		return
	}
	h.wsServer.HandleConnection(w, r)
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultHistoryLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errInvalidLimit
	}
	if n > maxHistoryLimit {
		n = maxHistoryLimit
	}
	return n, nil
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// WriteError writes a JSON error body
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}
