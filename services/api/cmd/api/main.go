package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/VVITTRC/Textbook-reading-club/internal/metrics"
	"github.com/VVITTRC/Textbook-reading-club/internal/ratelimit"
	"github.com/VVITTRC/Textbook-reading-club/internal/util"
	"github.com/VVITTRC/Textbook-reading-club/services/api/internal/app"
	"github.com/VVITTRC/Textbook-reading-club/services/api/internal/config"
	"github.com/VVITTRC/Textbook-reading-club/services/api/internal/server"
)

func main() {
	configPath := flag.String("config", config.ConfigPath, "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	appCore, err := app.New(app.Config{
		DatabaseURL:      cfg.DatabaseURL,
		UploadDir:        cfg.UploadDir,
		MinioEndpoint:    cfg.MinioEndpoint,
		MinioAccessKey:   cfg.MinioAccessKey,
		MinioSecretKey:   cfg.MinioSecretKey,
		MinioBucket:      cfg.MinioBucket,
		MinioUseSSL:      cfg.MinioUseSSL,
		Metrics:          collector,
		AllowAdminSignup: cfg.AllowAdminSignup,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	if seed := cfg.SeedAdmin; seed.Username != "" {
		admin, created, err := appCore.EnsureAdmin(seed.Username, seed.Email, seed.Password)
		if err != nil {
			log.Fatalf("failed to seed admin: %v", err)
		}
		if created {
			slog.Info("admin account created", "user_id", admin.ID, "username", admin.Username)
		}
	}

	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		log.Fatalf("invalid trustedProxyCidrs: %v", err)
	}

	serverCfg := server.Config{
		App:                appCore,
		TrustedProxies:     trusted,
		MaxUploadBytes:     cfg.MaxUploadBytes,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Metrics:            collector,
		Gatherer:           reg,
	}
	if cfg.RedisAddr != "" {
		redisClient, err := ratelimit.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.Fatalf("failed to init redis: %v", err)
		}
		defer redisClient.Close()
		serverCfg.LoginLimiter, err = ratelimit.NewFixedWindowLimiter(redisClient, "readingclub:api:ratelimit:login", cfg.LoginRateLimitPerMinute, time.Minute)
		if err != nil {
			log.Fatalf("failed to init login limiter: %v", err)
		}
		serverCfg.SignupLimiter, err = ratelimit.NewFixedWindowLimiter(redisClient, "readingclub:api:ratelimit:signup", cfg.SignupRateLimitPerMinute, time.Minute)
		if err != nil {
			log.Fatalf("failed to init signup limiter: %v", err)
		}
	} else {
		slog.Warn("no redisAddr configured, login and signup are not rate limited")
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.New(serverCfg).Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "err", err)
		}
	}()

	slog.Info("server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "err", err)
	}
}
