package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/possibilitysolutions/useradmin/internal/auth"
	"github.com/possibilitysolutions/useradmin/internal/config"
	"github.com/possibilitysolutions/useradmin/internal/db"
	httpx "github.com/possibilitysolutions/useradmin/internal/http"
	"github.com/possibilitysolutions/useradmin/internal/observability"
	"github.com/possibilitysolutions/useradmin/internal/repo/postgres"
	"github.com/possibilitysolutions/useradmin/internal/tokens"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	ctx := context.Background()

	shutdownTracer, err := observability.InitTracer(ctx, "useradmin", cfg.OTLPEndpoint)

	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	pool, err := db.NewPool(cfg.DBURL)

	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}

	defer pool.Close()

	// one-time admin provisioning, idempotent across restarts
	if err := db.EnsureAdminUser(ctx, pool, cfg); err != nil {
		log.Error("admin seed failed", "err", err)
		os.Exit(1)
	}

	denylist := tokens.NewRedisDenylist(tokens.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	defer denylist.Close()

	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.AccessTTL())

	router := httpx.NewRouter(httpx.RouterOptions{
		Users:     postgres.NewUsersRepo(pool, prom),
		Tokens:    denylist,
		JWT:       jwtManager,
		Prom:      prom,
		Metrics:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Cfg:       cfg,
		DBPing:    pool.Ping,
		RedisPing: denylist.Ping,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		sctx, cancel := config.WithTimeout(10 * time.Second)

		defer cancel()

		if err := srv.Shutdown(sctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
			return
		}

		if err := shutdownTracer(sctx); err != nil {
			log.Error("tracer shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
