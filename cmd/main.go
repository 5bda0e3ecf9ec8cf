package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "paletten_hub/docs"
	"paletten_hub/internal/config"
	"paletten_hub/internal/handlers"
	"paletten_hub/internal/logger"
	"paletten_hub/internal/metrics"
	"paletten_hub/internal/mqtt"
	"paletten_hub/internal/repository"
	"paletten_hub/internal/repository/db"
	"paletten_hub/internal/server"
	"paletten_hub/internal/service"

	"github.com/spf13/pflag"
)

const settingsLoadTimeout = 5 * time.Second

// @title        Paletten hub API
// @version      1.0
// @description  Live control state and operator overrides for the paletten heating hub.
// @BasePath     /
func main() {
	os.Exit(run())
}

func run() int {
	configPath := pflag.StringP("config", "c", "", "config file (default configs/config.yml)")
	pflag.Parse()

	// load config.yml
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Get(logger.InfoLevel, logger.FormatJSON).Errorw("error reading config", "err", err)
		return 1
	}

	// init logger
	log := logger.Get(cfg.Log.Level, cfg.Log.Format)
	defer func() { _ = log.Sync() }()

	// open DB
	sqlDB, err := openDB(cfg, log)
	if err != nil {
		log.Errorw("failed to init sqlite", "err", err, "path", cfg.DB.Path)
		return 1
	}
	defer closeDB(sqlDB, log)

	// wire dependencies
	repos := repository.NewRepository(sqlDB)
	m := metrics.New()

	ingestCfg := service.IngestConfig{
		ReadingsFilter:      cfg.Topics.Readings,
		SetpointFilter:      cfg.Topics.Setpoint,
		AutoFilter:          cfg.Topics.Auto,
		LocationFromPayload: cfg.Control.LocationSource == config.LocationFromPayload,
	}

	client := mqtt.NewPahoClient(mqtt.Options{
		Broker:         cfg.MQTT.Broker,
		ClientID:       cfg.MQTT.ClientID,
		Username:       cfg.MQTT.Username,
		Password:       cfg.MQTT.Password,
		KeepAlive:      cfg.MQTT.KeepAlive,
		ConnectTimeout: cfg.MQTT.ConnectTimeout,
		StatusTopic:    cfg.Topics.Status,
	})
	sup := mqtt.NewSupervisor(client, mqtt.SupervisorConfig{
		Subscriptions:  ingestCfg.Subscriptions(),
		Backoff:        cfg.MQTT.Backoff,
		ConnectTimeout: cfg.MQTT.ConnectTimeout,
		StatusTopic:    cfg.Topics.Status,
		EventBuffer:    cfg.MQTT.EventBuffer,
	}, log, m)

	dispatcher := service.NewCommandDispatcher(sup, service.DispatchConfig{
		TopicTemplate: cfg.Topics.HeaterCommand,
		Format:        cfg.Dispatch.Format,
		QoS:           cfg.Dispatch.QoS,
		Retained:      cfg.Dispatch.Retained,
		Timeout:       cfg.Dispatch.Timeout,
		Retry:         cfg.Dispatch.Retry,
	}, log, m)

	coordinator := service.NewCoordinator(service.CoordinatorConfig{
		Margin:   cfg.Control.Margin,
		Cooldown: cfg.Control.Cooldown,
	}, locationConfigs(cfg), repos, dispatcher, log, m)
	applySettings(coordinator, repos, log)

	ingest := service.NewIngest(ingestCfg, coordinator, log, m)
	lanes := service.NewLanes(cfg.Control.LaneBuffer, log)
	hub := service.NewHub(ingest, coordinator, lanes, log)

	services := service.NewService(coordinator, sup.Status)
	apiHandler := handlers.NewHandler(services, log, m)
	apiHandler.SetStreamInterval(cfg.HTTP.WSInterval)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	supErr := make(chan error, 1)
	go func() { supErr <- sup.Run(ctx) }()

	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx, sup.Events())
		close(hubDone)
	}()

	// start HTTP server
	srv := &server.Server{}
	if cfg.HTTP.Port != "" {
		runHTTPServer(srv, cfg.HTTP.Port, apiHandler, log)
	}

	log.Infow("hub_started", "broker", cfg.MQTT.Broker, "locations", len(cfg.Locations),
		"http_port", cfg.HTTP.Port)

	// graceful shutdown
	exitCode, supReturned := waitForShutdown(supErr, log)

	// stop consuming, then finish queued work while the session is still up
	cancel()
	<-hubDone
	if !lanes.Close(cfg.ShutdownTimeout) {
		log.Warnw("shutdown_drain_incomplete", "timeout", cfg.ShutdownTimeout.String())
	}
	if !supReturned {
		<-supErr
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	sup.Close(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
	log.Infow("hub_stopped", "exit_code", exitCode)
	return exitCode
}

// openDB initializes the SQLite database using configuration.
func openDB(cfg *config.Config, log *logger.Logger) (*sql.DB, error) {
	log.Infow("opening sqlite", "path", cfg.DB.Path)
	return db.InitDB(cfg.DB.Path)
}

func closeDB(sqlDB *sql.DB, log *logger.Logger) {
	if err := sqlDB.Close(); err != nil {
		log.Errorw("failed to close sqlite", "err", err)
	}
}

func locationConfigs(cfg *config.Config) []service.LocationConfig {
	out := make([]service.LocationConfig, 0, len(cfg.Locations))
	for _, l := range cfg.Locations {
		out = append(out, service.LocationConfig{
			Name:               l.Name,
			HeaterID:           l.HeaterID,
			DesiredTemperature: l.DesiredTemperature,
			Enabled:            l.IsEnabled(),
		})
	}
	return out
}

// applySettings restores setpoint and auto-mode overrides saved by earlier runs.
func applySettings(c *service.Coordinator, repos *repository.Repository, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), settingsLoadTimeout)
	defer cancel()

	settings, err := repos.Settings.LoadAll(ctx)
	if err != nil {
		log.Warnw("location_settings_load_failed", "err", err)
		return
	}
	c.ApplySettings(settings)
	log.Infow("location_settings_applied", "count", len(settings))
}

// runHTTPServer runs the HTTP server in a separate goroutine. The status API
// is not essential to control, so a failure is logged and the hub keeps running.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Errorw("error starting server", "err", err, "port", port)
		}
	}()
}

// waitForShutdown blocks until a termination signal arrives or the supervisor
// gives up. It returns the exit code and whether supErr was consumed.
func waitForShutdown(supErr <-chan error, log *logger.Logger) (int, bool) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		log.Infow("shutting down hub...", "signal", sig.String())
		return 0, false
	case err := <-supErr:
		if errors.Is(err, mqtt.ErrBackoffExhausted) {
			log.Errorw("broker unreachable, giving up", "err", err)
			return 1, true
		}
		if err != nil {
			log.Errorw("supervisor stopped", "err", err)
			return 1, true
		}
		log.Warnw("supervisor stopped unexpectedly")
		return 1, true
	}
}
