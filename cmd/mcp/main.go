package main

import (
	"log"
	"os"
	"time"

	"github.com/benvon/todo-agent/internal/config"
	"github.com/benvon/todo-agent/internal/database"
	"github.com/benvon/todo-agent/internal/logger"
	"github.com/benvon/todo-agent/internal/mcp"
	"github.com/benvon/todo-agent/internal/services/tagops"
	"github.com/benvon/todo-agent/internal/tagcache"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// The MCP server speaks the protocol over stdio, so all logging goes to
// stderr and a single user identity is taken from the environment.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.NewProductionLogger(cfg.ServerDebugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		if syncErr := zapLogger.Sync(); syncErr != nil {
			_ = syncErr
		}
	}()

	rawUserID := os.Getenv("MCP_USER_ID")
	if rawUserID == "" {
		zapLogger.Fatal("mcp_user_id_required")
	}
	userID, err := uuid.Parse(rawUserID)
	if err != nil {
		zapLogger.Fatal("invalid_mcp_user_id", zap.String("value", rawUserID))
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()

	taskRepo := database.NewTaskRepository(db)
	taskRepo.SetLogger(zapLogger)
	tagStatsRepo := database.NewTagStatisticsRepository(db)
	taskRepo.SetTagStatsRepo(tagStatsRepo)

	cache := tagcache.NewMemoryCache(time.Duration(cfg.TagCacheTTL) * time.Second)
	ops := tagops.NewService(taskRepo, cache, nil, zapLogger)

	s := mcp.NewServer(ops, userID)

	zapLogger.Info("mcp_server_starting", zap.String("user_id", userID.String()))
	if err := mcp.Serve(s); err != nil {
		zapLogger.Fatal("mcp_server_failed", zap.Error(err))
	}
}
