package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/joho/godotenv"
	"github.com/yanun0323/logs"
	"gorm.io/gorm"

	"main/internal/api"
	"main/internal/eventlog"
	"main/internal/feed"
	"main/internal/feed/bybit"
	"main/internal/obs"
	"main/internal/session"
	"main/pkg/conn"
)

const _shutdownTimeout = 5 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		logs.Info("no .env file, reading process environment")
	}

	port := envOr("PORT", "8080")
	env := envOr("APP_ENV", "local")
	logDir := envOr("EVENT_LOG_DIR", "data/sessions")
	version := envOr("GIT_HASH", "unknown")

	stopProfiler := startProfiler(env)
	defer stopProfiler()

	var archiveDB *gorm.DB
	if dsn := os.Getenv("EVENT_ARCHIVE_DSN"); dsn != "" {
		db, err := conn.OpenPostgres(conn.PostgresOption{DSN: dsn})
		if err != nil {
			logs.Errorf("event archive connect failed, err: %+v", err)
			os.Exit(1)
		}
		archiveDB = db
		logs.Info("event archive enabled")
	}

	metrics := obs.NewMetrics()
	rest := bybit.NewRestClient(os.Getenv("BYBIT_REST_URL"), nil)

	manager := session.NewManager(session.Deps{
		FeedFactory: func(callbacks feed.Callbacks) feed.MarketFeed {
			return bybit.NewClient(bybit.Options{WsURL: os.Getenv("BYBIT_WS_URL")}, callbacks)
		},
		Instruments: rest,
		SinkFactory: func() eventlog.Sink {
			sinks := eventlog.Tee{eventlog.NewWriter(logDir, 0)}
			if archiveDB != nil {
				sinks = append(sinks, eventlog.NewArchive(archiveDB, 0))
			}
			return sinks
		},
		Metrics: metrics,
	})

	hub := api.NewHub(manager, env)
	server := api.NewServer(manager, hub, metrics, version)

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logs.Infof("listening on :%s", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logs.Errorf("http server failed, err: %+v", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	logs.Info("shutting down")

	// stop the session first so close events still reach connected clients
	manager.Stop()
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), _shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logs.Errorf("http shutdown failed, err: %+v", err)
	}
	if archiveDB != nil {
		if err := conn.ClosePostgres(archiveDB); err != nil {
			logs.Errorf("event archive close failed, err: %+v", err)
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func startProfiler(env string) func() {
	addr := os.Getenv("PYROSCOPE_ADDR")
	if addr == "" {
		return func() {}
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: "bybit-paper-bot",
		ServerAddress:   addr,
		Tags:            map[string]string{"env": env},
		Logger:          emptyLogger{},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
	if err != nil {
		logs.Errorf("pyroscope start failed, err: %+v", err)
		return func() {}
	}
	return func() {
		if err := profiler.Stop(); err != nil {
			logs.Errorf("pyroscope stop failed, err: %+v", err)
		}
	}
}

type emptyLogger struct{}

func (emptyLogger) Infof(string, ...interface{})  {}
func (emptyLogger) Debugf(string, ...interface{}) {}
func (emptyLogger) Errorf(string, ...interface{}) {}
