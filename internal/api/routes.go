package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/kaiwa-labs/kaiwa-server/domain/repositories"
	"github.com/kaiwa-labs/kaiwa-server/internal/auth"
	"github.com/kaiwa-labs/kaiwa-server/internal/websocket"
)

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, hub *websocket.Hub, agentRepo repositories.AgentRepository, logger *zap.Logger) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "kaiwa-server",
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	v1.POST("/agents/auth", func(c echo.Context) error {
		return agentAuth(c, agentRepo, logger)
	})

	// WebSocket endpoint with JWT validation
	e.GET("/ws", func(c echo.Context) error {
		return websocketWithAuth(hub, c, logger)
	})
}

// agentAuth exchanges agent credentials for a JWT.
func agentAuth(c echo.Context, agentRepo repositories.AgentRepository, logger *zap.Logger) error {
	var req AgentAuthRequest

	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind agent auth request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if req.SerialNumber == "" || req.SecretKey == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Serial number and secret key are required",
		})
	}

	agent, err := agentRepo.ValidateCredentials(req.SerialNumber, req.SecretKey)
	if err != nil {
		logger.Warn("Agent authentication failed",
			zap.String("serial_number", req.SerialNumber),
			zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "authentication_failed",
			Message: "Invalid agent credentials",
		})
	}

	token, err := auth.GenerateAgentToken(agent.ID)
	if err != nil {
		logger.Error("Failed to generate agent token",
			zap.String("agent_id", agent.ID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	logger.Info("Agent authenticated successfully",
		zap.String("agent_id", agent.ID),
		zap.String("serial_number", agent.SerialNumber))

	return c.JSON(http.StatusOK, AgentAuthResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(24 * time.Hour),
		AgentID:   agent.ID,
	})
}

// websocketWithAuth handles WebSocket connections with JWT authentication
func websocketWithAuth(hub *websocket.Hub, c echo.Context, logger *zap.Logger) error {
	// Extract JWT token from Authorization header or query parameter;
	// browser WebSocket clients cannot set headers.
	var token string
	authHeader := c.Request().Header.Get("Authorization")
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		token = authHeader[7:]
	}
	if token == "" {
		token = c.QueryParam("token")
	}

	if token == "" {
		logger.Warn("WebSocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required",
		})
	}

	claims, err := auth.ValidateToken(token)
	if err != nil {
		logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		})
	}

	if claims.Role != "agent" || claims.AgentID == "" {
		logger.Warn("WebSocket connection rejected: invalid claims",
			zap.String("role", claims.Role))
		return c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "invalid_token_claims",
			Message: "Only agent tokens are allowed for WebSocket connections",
		})
	}

	logger.Info("WebSocket connection authenticated",
		zap.String("agent_id", claims.AgentID))

	return websocket.HandleWebSocket(hub, c, claims.AgentID, logger)
}
