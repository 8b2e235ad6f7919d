package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kr/pretty"
	"github.com/urfave/cli/v2"
	"github.com/yegors/arrival-board/internal/api"
	"github.com/yegors/arrival-board/internal/arrivals"
	"github.com/yegors/arrival-board/internal/board"
	"github.com/yegors/arrival-board/internal/config"
	"github.com/yegors/arrival-board/internal/display"
	"github.com/yegors/arrival-board/internal/fetch"
	"github.com/yegors/arrival-board/internal/storage/sqlite"
	"github.com/yegors/arrival-board/internal/weather"
	"github.com/yegors/arrival-board/internal/websocket"
	"github.com/yegors/arrival-board/pkg/logger"

	_ "time/tzdata"
)

var (
	// Version is injected at build time
	Version = "dev"
)

const retentionInterval = time.Hour

func main() {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file (optional - will search in configs/ and root directory)",
		EnvVars: []string{"ARRIVAL_BOARD_CONFIG"},
	}

	app := &cli.App{
		Name:    "arrival-board",
		Usage:   "Transit stop arrival board backend",
		Version: Version,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "poll arrivals and weather and serve the board over HTTP and WebSocket",
				Flags:  []cli.Flag{configFlag},
				Action: runServer,
			},
			{
				Name:  "once",
				Usage: "fetch arrivals and weather once and print the board",
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:  "format",
						Value: "text",
						Usage: "output format: text, json or pretty",
					},
					&cli.StringFlag{
						Name:  "template",
						Usage: "text/template file for the text format (overrides display.template_path)",
					},
				},
				Action: runOnce,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the file, applies environment overrides and validates
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadWithFallback(path)
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}
	cfg.ApplyEnvironment(os.LookupEnv)
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating logger: %w", err)
	}
	return log, nil
}

// newScheduler builds the fetch pipeline: arrivals client, optional weather
// service, board state and the scheduler driving them
func newScheduler(cfg *config.Config, log *logger.Logger) *board.Scheduler {
	fetcher := fetch.NewClient(fetch.Config{
		ConnectTimeout: time.Duration(cfg.HTTP.ConnectTimeoutSecs) * time.Second,
		RequestTimeout: time.Duration(cfg.HTTP.RequestTimeoutSecs) * time.Second,
		UserAgent:      cfg.HTTP.UserAgent,
	}, log)

	arrivalsClient := arrivals.NewClient(
		cfg.Transit,
		arrivals.NewOccupancyModel(cfg.Occupancy),
		fetcher,
		log,
	)

	var weatherSource board.WeatherSource
	if cfg.Weather.Enabled {
		weatherClient := weather.NewClient(cfg.Weather, fetcher, log)

		var geocoder weather.Geocoder
		if cfg.Weather.GeocodeURL != "" {
			geocoder = weatherClient
		}
		resolver := weather.NewResolver(cfg.Weather, geocoder, log)
		weatherSource = weather.NewService(resolver, weatherClient, log)
	} else {
		log.Info("Weather disabled in configuration")
	}

	state := board.NewState(cfg.Transit.StopID, cfg.Transit.StopName)

	return board.NewScheduler(board.SchedulerConfig{
		PollInterval:    cfg.Transit.PollIntervalDuration(),
		TickInterval:    cfg.Transit.TickInterval(),
		WeatherInterval: cfg.Weather.RefreshInterval(),
	}, arrivalsClient, weatherSource, state, log)
}

func runServer(c *cli.Context) error {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("Starting arrival board",
		logger.String("version", Version),
		logger.String("config_path", c.String("config")),
		logger.String("stop_id", cfg.Transit.StopID))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := newScheduler(cfg, log)
	loc := cfg.Display.Location()

	// Optional arrival history
	var history api.HistoryStore
	if cfg.Storage.Enabled {
		dbPath := filepath.Join(cfg.Storage.SQLiteBasePath, sqlite.DatabaseFilename)
		db, err := sqlite.Open(dbPath, log)
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		store, err := sqlite.NewArrivalStorage(db, log)
		if err != nil {
			db.Close()
			return fmt.Errorf("failed to create history storage: %w", err)
		}
		defer store.Close()

		scheduler.SetRecorder(store)
		history = store
		go store.RunRetention(ctx, retentionInterval, cfg.Storage.RetentionDuration())
		log.Info("Using SQLite history", logger.String("path", dbPath))
	}

	wsServer := websocket.NewServer(loc, log)
	go wsServer.Run(ctx)
	scheduler.SetPublisher(wsServer)

	renderer, err := display.NewRenderer(cfg.Display.TemplatePath, log)
	if err != nil {
		return err
	}

	scheduler.Start(ctx)

	var server *http.Server
	if cfg.Server.Enabled {
		handler := api.NewHandler(scheduler.State(), history, renderer, wsServer, cfg, log)
		static := api.NewStaticFileHandler(cfg.Server.StaticDir, log)
		router := api.NewRouter(handler, static, log)

		server = &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:      router.Routes(),
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
			IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
		}

		go func() {
			log.Info("Starting HTTP server", logger.String("addr", server.Addr))
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("HTTP server error", logger.String("addr", server.Addr), logger.Error(err))
			}
		}()
	} else {
		log.Info("HTTP server disabled in configuration")
	}

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	<-sigCh

	log.Info("Shutting down...")

	scheduler.Stop()

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", logger.Error(err))
		} else {
			log.Info("HTTP server shutdown complete")
		}
	}

	// Stops the hub and the retention loop
	cancel()

	log.Info("Arrival board stopped")
	return nil
}

func runOnce(c *cli.Context) error {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	view := newScheduler(cfg, log).RunOnce(ctx)
	if view.Status.ArrivalsError != "" {
		log.Warn("Arrivals fetch failed", logger.String("error", view.Status.ArrivalsError))
	}

	doc := display.NewDocument(view, time.Now(), cfg.Display.Location())

	switch c.String("format") {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case "pretty":
		pretty.Println(doc)
		return nil
	case "text":
		templatePath := cfg.Display.TemplatePath
		if c.String("template") != "" {
			templatePath = c.String("template")
		}
		renderer, err := display.NewRenderer(templatePath, log)
		if err != nil {
			return err
		}
		out, err := renderer.Render(doc.Display)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	default:
		return fmt.Errorf("unknown format %q", c.String("format"))
	}
}
