package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/yegors/arrival-board/pkg/logger"
)

// Router wires the handlers onto a chi mux
type Router struct {
	handler *Handler
	static  http.Handler
	logger  *logger.Logger
}

// NewRouter creates a router for handler. static may be nil to skip the kiosk page.
func NewRouter(handler *Handler, static http.Handler, log *logger.Logger) *Router {
	return &Router{
		handler: handler,
		static:  static,
		logger:  log.Named("api-router"),
	}
}

// Routes returns the HTTP handler serving every endpoint
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(rt.requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/board", rt.handler.GetBoard)
		r.Get("/board.txt", rt.handler.GetBoardText)
		r.Get("/arrivals", rt.handler.GetArrivals)
		r.Get("/weather", rt.handler.GetWeather)
		r.Get("/health", rt.handler.GetHealth)
		r.Get("/config", rt.handler.GetConfig)
		if rt.handler.HistoryEnabled() {
			r.Get("/history", rt.handler.GetHistory)
		}
	})

	r.Get("/ws", rt.handler.HandleWebSocket)

	if rt.static != nil {
		r.Handle("/*", rt.static)
	}

	return r
}

// requestLogger logs each request at debug level once it completes
func (rt *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		rt.logger.Debug("HTTP request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", ww.Status()),
			logger.Int("bytes", ww.BytesWritten()),
			logger.Duration("duration", time.Since(start)),
			logger.String("request_id", middleware.GetReqID(r.Context())))
	})
}
