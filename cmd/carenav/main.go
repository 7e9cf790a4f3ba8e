package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ruralcare/carenav/internal/config"
	"github.com/ruralcare/carenav/internal/finder"
	"github.com/ruralcare/carenav/internal/logger"
	"github.com/ruralcare/carenav/internal/recognition"
	"github.com/ruralcare/carenav/internal/server"
	"github.com/ruralcare/carenav/internal/session"
	"github.com/ruralcare/carenav/internal/validation"
)

func main() {
	configPath := flag.String("config", "", "Path to a config file (default: configs/config.yaml if present)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := logger.NewZapAdapter(zapLogger).With(map[string]interface{}{
		"app":         cfg.App.Name,
		"environment": cfg.App.Environment,
	})

	for _, w := range cfg.Warnings() {
		log.Warn(w, nil)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	finderDeps, err := finder.NewDeps(cfg, log)
	if err != nil {
		log.WithError(err).Error("could not build facility search", nil)
		os.Exit(1)
	}

	store, closeStore, err := buildStore(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Error("could not open session store", nil)
		os.Exit(1)
	}
	defer closeStore()

	assets := recognition.NewAssetLoader(
		cfg.Recognition.TFJSScriptURL,
		cfg.Recognition.SpeechCommandsScriptURL,
		cfg.Recognition.ModelURL,
		config.GetDuration(cfg.Recognition.LoadTimeout),
		log,
	)

	listen := recognition.DefaultListenConfig()
	listen.ProbabilityThreshold = cfg.Recognition.ConfidenceThreshold
	listen.OverlapFactor = cfg.Recognition.OverlapFactor

	sessions := session.NewManager(store, session.Options{
		Finder:        finderDeps,
		NewEngine:     func() recognition.ScoreSource { return recognition.NewStreamEngine(assets) },
		Listen:        listen,
		Threshold:     cfg.Recognition.ConfidenceThreshold,
		DebounceDelay: config.GetDuration(cfg.Recognition.DebounceDelay),
		IdleTimeout:   config.GetDuration(cfg.Session.TTL),
	}, log)
	go sessions.Run(ctx, config.GetDuration(cfg.Session.SweepInterval))

	validator, err := validation.New()
	if err != nil {
		log.WithError(err).Error("could not compile request schemas", nil)
		os.Exit(1)
	}

	srv := server.New(cfg.Server.Port, server.Deps{
		Sessions:     sessions,
		Validator:    validator,
		Model:        assets,
		Listen:       listen,
		StaticDir:    cfg.Server.StaticDir,
		Environment:  cfg.App.Environment,
		SessionStore: cfg.Session.Store,
		ModelTimeout: config.GetDuration(cfg.Recognition.LoadTimeout),
		Logger:       log,
	})

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("server stopped", nil)
			done <- syscall.SIGTERM
		}
	}()

	<-done
	log.Info("shutting down", nil)
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown error", nil)
	}
	if err := sessions.Close(); err != nil {
		log.WithError(err).Error("session flush failed", nil)
	}

	log.Info("goodbye", nil)
}

// buildStore opens the configured session store. The returned func
// releases it.
func buildStore(ctx context.Context, cfg *config.Config, log logger.Logger) (session.Store, func(), error) {
	ttl := config.GetDuration(cfg.Session.TTL)

	if cfg.Session.Store == config.StoreRedis {
		store := session.NewRedisStore(session.NewRedisClient(cfg.Redis), ttl)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		log.Info("using redis session store", map[string]interface{}{"address": cfg.Redis.Address})
		return store, func() { _ = store.Close() }, nil
	}

	store := session.NewMemoryStore(cfg.Session.DataDir, ttl)
	if err := store.LoadFromDisk(); err != nil {
		log.Warn("could not load saved sessions", map[string]interface{}{"error": err.Error()})
	}
	log.Info("using in-memory session store", map[string]interface{}{
		"sessions": store.Len(),
		"data_dir": cfg.Session.DataDir,
	})
	return store, func() {}, nil
}
