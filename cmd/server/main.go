package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/codedeck/server/internal/api"
	"github.com/codedeck/server/internal/compaction"
	"github.com/codedeck/server/internal/config"
	"github.com/codedeck/server/internal/db"
	"github.com/codedeck/server/internal/exec"
	"github.com/codedeck/server/internal/ratelimit"
	"github.com/codedeck/server/internal/token"
	"github.com/codedeck/server/internal/ws"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading configuration failed", "error", err)
		os.Exit(1)
	}
	setupLogger(cfg.LogLevel)

	database, err := db.New(cfg.DBPath)
	if err != nil {
		slog.Error("initializing database failed", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	hub := ws.NewHub(database)
	go hub.Run()

	compactor := compaction.New(database, compaction.DefaultConfig())
	compactor.Start()
	defer compactor.Stop()

	minter := token.NewMinter(cfg.LiveKitAPIKey, cfg.LiveKitAPISecret, cfg.LiveKitWSURL, cfg.TokenTTL)
	execClient := exec.New(cfg.CompilerAPIURL, cfg.CompilerAPIKey, cfg.CompilerAPIHost, database)
	execLimits := ratelimit.NewCallerLimiters(cfg.ExecRatePerMinute/60, cfg.ExecBurst)
	defer execLimits.Stop()

	apiHandler := api.New(hub, database, minter, execClient, execLimits)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWs(hub, w, r)
	})
	mux.HandleFunc("/health", apiHandler.HealthHandler)
	mux.HandleFunc("/api/stats", apiHandler.StatsHandler)
	mux.HandleFunc("/api/get-token", apiHandler.TokenHandler)
	mux.HandleFunc("/api/execute", apiHandler.ExecuteHandler)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: corsMiddleware(mux),
	}

	go func() {
		slog.Info("codedeck server starting", "port", cfg.Port, "db", cfg.DBPath)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func setupLogger(levelName string) {
	level := slog.LevelInfo
	switch levelName {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
