package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"bataille/internal/config"
	"bataille/internal/game"
	"bataille/internal/handlers"
	"bataille/internal/logging"
	"bataille/internal/matchmaking"
	"bataille/internal/realtime"
	"bataille/internal/storage"
)

func main() {
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	cfg, err := config.FromEnv()
	if err != nil {
		logging.Configure("")
		log := logging.Component("main")
		log.Fatal().Err(err).Msg("load config")
	}
	level := cfg.LogLevel
	if *debug {
		level = "debug"
	}
	logging.Configure(level)
	log := logging.Component("main")

	var store game.Store
	if cfg.DatabaseURL != "" {
		db, err := storage.New(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("connect database")
		}
		store = storage.NewStore(db)
		log.Info().Msg("database connected")
	} else {
		log.Warn().Msg("DATABASE_URL not set, sessions are kept in memory only")
	}

	manager := game.NewManager(store, cfg.InactivityTimeout)
	queue := matchmaking.New(manager, cfg.RatingBand)
	hub := realtime.NewHub(manager, queue)
	manager.SetPublisher(hub)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go manager.Run(ctx, cfg.SweepInterval)

	h := handlers.NewHandler(manager, commit)
	router := h.Routes()
	router.Get("/ws", hub.ServeWS)

	srv := &http.Server{Addr: cfg.Addr, Handler: router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.Addr).Str("commit", commit).Msg("bataille listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server")
	}
}
