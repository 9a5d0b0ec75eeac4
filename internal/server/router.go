package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/quire/internal/auth"
	"github.com/MarcoPoloResearchLab/quire/internal/docs"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	userIDContextKey      = "quire_user_id"
	defaultRequestTimeout = 10 * time.Second
	wildcardOrigin        = "*"
)

var (
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingUserResolver     = errors.New("user resolver dependency required")
	errMissingDocsService      = errors.New("docs service dependency required")
)

// SessionValidator authenticates an incoming request.
type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
}

// UserResolver maps validated session claims onto a canonical user id.
type UserResolver interface {
	ResolveCanonicalUserID(ctx context.Context, claims auth.SessionClaims) (string, error)
}

// Dependencies wires the HTTP surface.
type Dependencies struct {
	SessionValidator SessionValidator
	UserResolver     UserResolver
	DocsService      *docs.Service
	HealthCheck      func(ctx context.Context) error
	AllowedOrigins   []string
	RequestTimeout   time.Duration
	Logger           *zap.Logger
}

// NewHTTPHandler builds the gin router serving the document API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.SessionValidator == nil {
		return nil, errMissingSessionValidator
	}
	if deps.UserResolver == nil {
		return nil, errMissingUserResolver
	}
	if deps.DocsService == nil {
		return nil, errMissingDocsService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	requestTimeout := deps.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(corsMiddleware(deps.AllowedOrigins))
	router.Use(requestDeadline(requestTimeout))

	handler := &httpHandler{
		sessions:    deps.SessionValidator,
		users:       deps.UserResolver,
		docs:        deps.DocsService,
		healthCheck: deps.HealthCheck,
		logger:      logger,
	}

	router.GET("/healthz", handler.handleHealth)

	api := router.Group("/api/docs")
	api.Use(handler.authorizeRequest)
	api.POST("", handler.handleCreateDocument)
	api.GET("", handler.handleListDocuments)
	api.GET("/:doc_id", handler.handleGetMeta)
	api.GET("/:doc_id/pages/:page_index", handler.handleOpenPage)
	api.PUT("/:doc_id/pages/:page_index", handler.handleUpsertPage)
	api.GET("/:doc_id/members", handler.handleListMembers)
	api.DELETE("/:doc_id/members/:member_user_id", handler.handleRemoveMember)
	api.POST("/:doc_id/join_requests", handler.handleCreateJoinRequest)
	api.GET("/:doc_id/join_requests", handler.handleListJoinRequests)
	api.POST("/requests/:req_id/approve", handler.handleApproveJoinRequest)
	api.POST("/requests/:req_id/deny", handler.handleDenyJoinRequest)

	return router, nil
}

type httpHandler struct {
	sessions    SessionValidator
	users       UserResolver
	docs        *docs.Service
	healthCheck func(ctx context.Context) error
	logger      *zap.Logger
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) == 0 || containsWildcard(allowedOrigins) {
		config.AllowOriginFunc = func(string) bool { return true }
	} else {
		config.AllowOrigins = allowedOrigins
	}
	return cors.New(config)
}

func containsWildcard(origins []string) bool {
	for _, origin := range origins {
		if origin == wildcardOrigin {
			return true
		}
	}
	return false
}

func requestDeadline(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredSessionToken) {
			h.logger.Info("session validation failed", zap.Error(err))
		} else {
			h.logger.Warn("session validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	canonicalUserID, err := h.users.ResolveCanonicalUserID(c.Request.Context(), claims)
	if err != nil {
		h.logger.Warn("user resolution failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if _, err := docs.NewUserID(canonicalUserID); err != nil {
		h.logger.Warn("user resolution failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	c.Set(userIDContextKey, canonicalUserID)
	c.Next()
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	if h.healthCheck != nil {
		if err := h.healthCheck(c.Request.Context()); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			c.Header("Retry-After", retryAfterSeconds)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage_unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func currentUserID(c *gin.Context) (docs.UserID, bool) {
	userID, err := docs.NewUserID(c.GetString(userIDContextKey))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return userID, true
}
