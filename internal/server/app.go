package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"mia/apps/backend/internal/cache"
	"mia/apps/backend/internal/catalog"
	"mia/apps/backend/internal/chat"
	"mia/apps/backend/internal/clinic"
	"mia/apps/backend/internal/config"
	"mia/apps/backend/internal/metrics"
	"mia/apps/backend/internal/redflag"
)

// Deps are the collaborators the HTTP layer calls into.
type Deps struct {
	Chat     *chat.Service
	Catalog  *catalog.Engine
	Clinics  *clinic.Directory
	Patterns redflag.Repository
	Prompts  chat.PromptRepository
	Bus      *cache.Bus
	Metrics  *metrics.Metrics
	// Ready reports whether backing storage is reachable. Nil means always ready.
	Ready func(ctx context.Context) error
}

type App struct {
	cfg    config.Config
	deps   Deps
	logger *zap.Logger
}

func New(cfg config.Config, deps Deps, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{cfg: cfg, deps: deps, logger: logger}
}

func (a *App) Router() *gin.Engine {
	router := gin.New()
	router.Use(a.accessLog(), gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     a.cfg.CORSAllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", a.health)
	if a.deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(a.deps.Metrics.Handler()))
	}

	api := router.Group(a.cfg.APIPrefix)
	api.POST("/chat", a.postChat)
	api.GET("/chat/welcome", a.chatWelcome)
	api.GET("/chat/health", a.chatHealth)
	api.GET("/products/search", a.searchProducts)
	api.GET("/clinics/:postalCode", a.clinicsByPostalCode)

	admin := api.Group("/admin")
	admin.Use(a.authMiddleware())
	admin.GET("/red-flags", a.listRedFlags)
	admin.POST("/red-flags", a.createRedFlag)
	admin.PUT("/red-flags/:id", a.updateRedFlag)
	admin.DELETE("/red-flags/:id", a.deleteRedFlag)
	admin.GET("/prompts/:name", a.getPrompt)
	admin.PUT("/prompts/:name", a.savePrompt)

	return router
}

func (a *App) health(c *gin.Context) {
	if a.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := a.deps.Ready(ctx); err != nil {
			a.logger.Warn("readiness check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "degraded",
				"service": "mia-api",
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "mia-api",
	})
}

// accessLog replaces gin.Logger with structured zap lines and feeds the
// request histogram.
func (a *App) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		latency := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		if a.deps.Metrics != nil {
			a.deps.Metrics.ObserveRequest(c.Request.Method, route, status, latency.Seconds())
		}
		a.logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func (a *App) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
			writeError(c, http.StatusUnauthorized, "Bearer token required")
			return
		}
		tokenString := strings.TrimSpace(authHeader[len("Bearer "):])
		if tokenString == "" {
			writeError(c, http.StatusUnauthorized, "Bearer token required")
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
			if token.Method == nil || token.Method.Alg() != a.cfg.JWTAlgorithm {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(a.cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			writeError(c, http.StatusUnauthorized, "Invalid bearer token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			writeError(c, http.StatusUnauthorized, "Invalid token payload")
			return
		}
		if a.cfg.JWTAudience != "" && !claimHasAudience(claims["aud"], a.cfg.JWTAudience) {
			writeError(c, http.StatusUnauthorized, "Invalid token audience")
			return
		}
		if a.cfg.JWTIssuer != "" {
			issuer, _ := claims["iss"].(string)
			if issuer != a.cfg.JWTIssuer {
				writeError(c, http.StatusUnauthorized, "Invalid token issuer")
				return
			}
		}
		sub, _ := claims["sub"].(string)
		sub = strings.TrimSpace(sub)
		if sub == "" {
			writeError(c, http.StatusUnauthorized, "Token subject missing")
			return
		}

		c.Set("adminSubject", sub)
		c.Next()
	}
}

func claimHasAudience(value any, audience string) bool {
	switch v := value.(type) {
	case string:
		return v == audience
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == audience {
				return true
			}
		}
	case []string:
		for _, item := range v {
			if item == audience {
				return true
			}
		}
	}
	return false
}

func adminSubject(c *gin.Context) string {
	sub, _ := c.Get("adminSubject")
	s, _ := sub.(string)
	return s
}

func writeError(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

func writeData(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func mustJSON(c *gin.Context, payload any) bool {
	if err := c.ShouldBindJSON(payload); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	return true
}
