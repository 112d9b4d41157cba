package main

import (
	"context"
	"log"
	"time"

	"gamelend/internal/config"
	"gamelend/internal/database"
	"gamelend/internal/pkg/logger"
	"gamelend/internal/repository"
)

// session_cleanup removes expired sessions once and exits. The API server
// runs the same sweep on a ticker; this is for cron when it is scaled out.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logg := logger.New(cfg.AppEnv)
	defer func() { _ = logg.Sync() }()

	db, err := database.Connect(cfg.DatabaseURL, logg)
	if err != nil {
		logg.Fatalw("db connect failed", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	removed, err := repository.NewSessionRepository(db).DeleteExpired(ctx)
	if err != nil {
		logg.Fatalw("cleanup sessions failed", "error", err)
	}
	logg.Infow("session cleanup completed", "sessions", removed)
}
