package main

import (
	"context"
	"flag"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/VVITTRC/Textbook-reading-club/internal/util"
	"github.com/VVITTRC/Textbook-reading-club/pkg/apiclient"
	"github.com/VVITTRC/Textbook-reading-club/services/reader/internal/config"
	"github.com/VVITTRC/Textbook-reading-club/services/reader/internal/console"
	"github.com/VVITTRC/Textbook-reading-club/services/reader/internal/session"
	"github.com/VVITTRC/Textbook-reading-club/services/reader/internal/view"
)

func main() {
	configPath := flag.String("config", config.ConfigPath, "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// The console owns stdout; logs go to a rotated file when configured.
	var logOut io.Writer = os.Stderr
	if cfg.LogFile != "" {
		f := util.NewLogFile(cfg.LogFile)
		defer f.Close()
		logOut = f
	}
	util.InitLoggerTo(logOut, cfg.LogLevel)

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("invalid timezone: %v", err)
	}

	api := apiclient.NewClient(cfg.APIBaseURL, cfg.RequestTimeout)
	sessions := session.NewStore(session.NewFileStorage(cfg.StatePath))
	orch := view.NewOrchestrator(api, sessions)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("reader starting", "api", api.BaseURL(), "state", cfg.StatePath)
	if err := console.New(api, orch, os.Stdout, loc).Run(ctx, os.Stdin); err != nil {
		slog.Error("reader stopped", "err", err)
		os.Exit(1)
	}
}
