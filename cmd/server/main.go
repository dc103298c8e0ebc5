package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/voxstream/voxstream/adapters/inference"
	"github.com/voxstream/voxstream/adapters/memory"
	"github.com/voxstream/voxstream/adapters/mongo"
	"github.com/voxstream/voxstream/adapters/retrieval"
	"github.com/voxstream/voxstream/domain/repositories"
	"github.com/voxstream/voxstream/internal/api"
	"github.com/voxstream/voxstream/internal/auth"
	"github.com/voxstream/voxstream/internal/config"
	"github.com/voxstream/voxstream/internal/registry"
	"github.com/voxstream/voxstream/internal/websocket"
	"github.com/voxstream/voxstream/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Conversation persistence, in-memory unless Mongo is configured
	var conversations repositories.ConversationRepository
	if cfg.MongoURI != "" {
		mongoClient, err := mongo.NewClient(cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			mongoClient.Close(shutdownCtx)
		}()
		conversations = mongo.NewConversationRepository(mongoClient.Database)
	} else {
		logger.Info("No MongoDB configured, conversations kept in memory")
		conversations = memory.NewConversationRepository()
	}

	// Knowledge retriever, static documents unless a model API key is set
	var retriever repositories.KnowledgeRetriever
	if cfg.GenAIAPIKey != "" {
		genaiRetriever, err := retrieval.NewGenAIRetriever(ctx, cfg.GenAIAPIKey, logger)
		if err != nil {
			logger.Fatal("Failed to initialize knowledge retriever", zap.Error(err))
		}
		retriever = genaiRetriever
	} else {
		logger.Info("No model API key configured, using static knowledge base")
		retriever = retrieval.NewStaticRetriever(defaultDocuments())
	}

	// Initialize usecase services
	toolRouter := usecase.NewToolRouter(retriever, logger)
	transcripts := usecase.NewTranscriptService(conversations, logger)

	issuer := auth.NewIssuer([]byte(cfg.JWTSecret), cfg.TokenTTL)
	dialer := inference.NewWebsocketDialer(cfg.UpstreamURL, logger)
	sessions := registry.NewSessionRegistry(cfg.RedisAddr, cfg.RedisPassword, cfg.TokenTTL, logger)
	defer sessions.Close()

	// Initialize WebSocket hub relaying clients to the speech model
	hub := websocket.NewHub(issuer, dialer, issuer, toolRouter, transcripts, sessions, logger)
	go hub.Run(ctx)

	// Initialize API routes
	api.InitRoutes(e, hub, issuer, logger)

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Gateway started",
		zap.String("port", cfg.Port),
		zap.String("upstream", cfg.UpstreamURL))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// defaultDocuments backs the static retriever in development setups.
func defaultDocuments() map[string]string {
	return map[string]string{
		"travel policy": "Travel with pet is not allowed at the XYZ airline.",
		"baggage allowance": "Each passenger may check two bags up to 23kg on XYZ airline. " +
			"Carry-on is limited to one bag and one personal item.",
		"refunds": "Refundable fares on XYZ airline may be cancelled up to 24 hours " +
			"before departure for a full refund.",
	}
}
