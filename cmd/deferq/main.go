package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"deferq/internal/api"
	"deferq/internal/config"
	"deferq/internal/handlers"
	"deferq/internal/notify"
	"deferq/internal/poller"
	"deferq/internal/registry"
	"deferq/internal/retention"
	"deferq/internal/scheduler"
	"deferq/internal/store"
)

func main() {
	var (
		cfgPath = flag.String("config", "", "path to YAML config (optional)")
		addr    = flag.String("addr", "", "HTTP bind address (overrides config)")
		dbPath  = flag.String("db", "", "SQLite DB path (overrides config)")
		poll    = flag.Duration("poll", 0, "poll interval (overrides config)")
		debug   = flag.Bool("debug", false, "enable pprof endpoints")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		cfg, err = config.Load(*cfgPath)
		if err != nil {
			log.Fatal().Err(err).Msg("load config")
		}
	}
	if *addr != "" {
		cfg.HTTP.Addr = *addr
	}
	if *dbPath != "" {
		cfg.DB.Path = *dbPath
	}
	if *poll > 0 {
		cfg.Poll.Interval = config.Duration(*poll)
	}
	if *debug {
		cfg.HTTP.Debug = true
	}
	applyLogLevel(cfg.Log.Level)

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=journal_mode(WAL)", cfg.DB.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("open db")
	}
	defer db.Close()
	db.SetMaxOpenConns(1) // SQLite single writer

	if err := store.EnsureSchema(db); err != nil {
		log.Fatal().Err(err).Msg("ensure schema")
	}

	reg := registry.New(store.NewSQLite(db))
	if err := reg.Load(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("load task list")
	}

	// Execution collaborator: remote provisioning if configured, echo otherwise.
	disp := handlers.NewDispatcher()
	if cfg.Executor.Endpoint != "" {
		disp.RegisterAll(&handlers.Provisioner{
			Endpoint: cfg.Executor.Endpoint,
			Token:    cfg.Executor.Token,
			Client:   &http.Client{Timeout: cfg.Poll.ExecutionTimeout.Std()},
		})
	} else {
		disp.RegisterAll(handlers.Echo{})
	}

	sink := notify.NewRateLimited(notify.LogSink{}, cfg.Notify.RatePerSec, cfg.Notify.Burst)
	svc := scheduler.New(reg, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := poller.New(reg, disp, cfg.Poll.Interval.Std(), cfg.Poll.ExecutionTimeout.Std())
	go p.Start(ctx)

	var sweeper *retention.Sweeper
	if cfg.Retention.Sweep != "" {
		sweeper = retention.New(reg, cfg.Retention.Sweep, cfg.Retention.MaxAge.Std())
		if err := sweeper.Start(); err != nil {
			log.Fatal().Err(err).Msg("start retention sweeper")
		}
	}

	if *cfgPath != "" {
		err := config.Watch(ctx, *cfgPath, func(c config.Config) {
			p.SetInterval(c.Poll.Interval.Std())
			applyLogLevel(c.Log.Level)
		})
		if err != nil {
			log.Warn().Err(err).Msg("config watch unavailable")
		}
	}

	srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: api.NewServer(svc, api.Options{
		AuthToken: cfg.HTTP.AuthToken,
		Debug:     cfg.HTTP.Debug,
	})}
	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	log.Info().Msg("shutting down")
	p.Stop()
	if sweeper != nil {
		sweeper.Stop()
	}
	cancel()
	ctxTimeout, cancelTimeout := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelTimeout()
	_ = srv.Shutdown(ctxTimeout)
}

func applyLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
