package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/pflag"

	"github.com/quizforge/srs/internal/config"
	"github.com/quizforge/srs/internal/review"
	"github.com/quizforge/srs/internal/storage"
	"github.com/quizforge/srs/internal/web"
)

func main() {
	flags := pflag.NewFlagSet("srsd", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "", "Path to a YAML config file")
	flags.String("listen_addr", "127.0.0.1:8571", "Address to serve the API on")
	flags.String("db_path", "srs.db", "Path to the SQLite database file")
	flags.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	svc := review.NewService(db, &cfg.Scheduler)
	server := web.NewServer(svc)

	slog.Info("serving", "addr", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, server); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
