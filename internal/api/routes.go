package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/voxstream/voxstream/internal/auth"
	"github.com/voxstream/voxstream/internal/websocket"
)

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, hub *websocket.Hub, issuer *auth.Issuer, logger *zap.Logger) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":          "ok",
			"service":         "voxstream-gateway",
			"active_sessions": hub.ActiveRelays(),
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	v1.POST("/token", func(c echo.Context) error {
		return issueToken(c, issuer, logger)
	})

	// WebSocket endpoint, token validated during the upgrade handshake
	e.GET("/ws", func(c echo.Context) error {
		return websocket.HandleWebSocket(hub, c)
	})
}

func issueToken(c echo.Context, issuer *auth.Issuer, logger *zap.Logger) error {
	var req TokenRequest

	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind token request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if req.ClientID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Client id is required",
		})
	}

	token, err := issuer.GenerateToken(req.ClientID)
	if err != nil {
		logger.Error("Failed to generate token",
			zap.String("client_id", req.ClientID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	logger.Info("Token issued", zap.String("client_id", req.ClientID))

	return c.JSON(http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(issuer.TTL()),
		ClientID:  req.ClientID,
	})
}
