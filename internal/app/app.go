package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-session-agent/internal/authn"
	"go-session-agent/internal/config"
	"go-session-agent/internal/event"
	"go-session-agent/internal/guard"
	"go-session-agent/internal/httpapi"
	"go-session-agent/internal/monitor"
	"go-session-agent/internal/provider"
	"go-session-agent/internal/refresh"
	"go-session-agent/internal/state"
	"go-session-agent/internal/store"
)

type App struct {
	server        *http.Server
	authenticator *authn.Authenticator
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	sessionStore, err := buildStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}

	providerClient := provider.NewHTTPClient(cfg.ProviderBaseURL, cfg.ProviderTimeout)

	bus := event.NewBus(cfg.MaxEventHistory, slog.Default())
	machine := state.NewMachine()

	coordinator := refresh.NewCoordinator(sessionStore, providerClient, cfg.RefreshSafetyMargin, slog.Default())

	detector := monitor.NewRefreshStormDetector(cfg.MaxRefreshAttempts, cfg.RefreshAttemptWindow)
	mon := monitor.New(monitor.Config{
		AbsoluteTimeout: cfg.AbsoluteSessionTimeout,
		IdleTimeout:     cfg.IdleTimeout,
		TimeoutWarning:  cfg.TimeoutWarning,
		IdleWarning:     cfg.IdleWarning,
		TickInterval:    cfg.MonitorTickInterval,
	}, bus, detector, slog.Default())

	authenticator := authn.New(sessionStore, providerClient, coordinator, mon, machine, bus, slog.Default())

	// Restore any persisted session before serving; the agent works
	// offline against the stored record until a refresh is due.
	if _, err := authenticator.Bootstrap(context.Background()); err != nil {
		slog.Warn("session bootstrap failed", "error", err)
	}

	routeGuard := guard.New(machine, true)
	handler := httpapi.NewHandler(authenticator, machine, mon, bus, true)
	router := httpapi.NewRouter(cfg.CORSOrigins, routeGuard, handler)

	server := &http.Server{
		Addr:         "localhost:" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	return &App{
		server:        server,
		authenticator: authenticator,
	}, nil
}

func buildStore(cfg *config.Config) (store.Store, error) {
	if len(cfg.SessionKey) > 0 {
		return store.NewEncryptedFileStore(cfg.SessionFile, cfg.SessionKey)
	}

	return store.NewFileStore(cfg.SessionFile)
}

func (a *App) Run() error {
	go func() {
		slog.Info("agent listening", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a.authenticator.Close()

	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("agent stopped")
	return nil
}
