package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/sistema-escolar/escuela-backend/internal/config"
	"github.com/sistema-escolar/escuela-backend/internal/handler"
	"github.com/sistema-escolar/escuela-backend/internal/metrics"
	"github.com/sistema-escolar/escuela-backend/internal/middleware"
	"github.com/sistema-escolar/escuela-backend/internal/model"
	"github.com/sistema-escolar/escuela-backend/internal/ratelimit"
	"github.com/sistema-escolar/escuela-backend/internal/response"
	"github.com/sistema-escolar/escuela-backend/internal/service"
	"github.com/sistema-escolar/escuela-backend/internal/session"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	CSRF    *handler.CSRFHandler
	Account *handler.AccountHandler
	Health  *handler.HealthHandler
}

// Deps are the shared components the middleware chain needs.
type Deps struct {
	Sessions    *session.Manager
	Cookies     *session.CookieCodec
	AuthService *service.AuthService
	CSRFService *service.CSRFService
	Counter     ratelimit.Counter
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(cfg *config.Config, deps *Deps, handlers *Handlers, log zerolog.Logger) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.HandleMethodNotAllowed = true

	router.Use(gin.Recovery())
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Metrics())
	router.Use(middleware.SecurityHeaders())

	// ─── CORS ──────────────────────────────────────────────────────────
	// The session cookie is credentialed, so origins are always an explicit
	// list. config.Validate rejects "*".
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.AllowedOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID", middleware.CSRFHeader}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(middleware.LoadSession(deps.Sessions, deps.Cookies, log))

	router.NoRoute(func(c *gin.Context) {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	})
	router.NoMethod(func(c *gin.Context) {
		response.Fail(c, http.StatusMethodNotAllowed, response.ErrMethodNotAllowed)
	})

	router.GET("/health", handlers.Health.Health)
	if cfg.MetricsEnabled {
		router.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	limited := func(scope string) gin.HandlerFunc {
		if cfg.RateLimitPerMinute <= 0 {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimit(deps.Counter, scope, cfg.RateLimitPerMinute, time.Minute, log)
	}

	// ─── 1. Session Endpoints (Public) ─────────────────────────────────
	auth := router.Group("")
	auth.Use(middleware.NoStore())
	{
		auth.POST("/login", limited("login"), handlers.Auth.Login)
		auth.POST("/logout", handlers.Auth.Logout)
		auth.GET("/check_session", handlers.Auth.CheckSession)
		auth.GET("/session", handlers.Auth.CheckSession)
		auth.POST("/register", limited("register"), handlers.Auth.Register)

		for _, path := range []string{"/csrf_token", "/csrf-token"} {
			auth.GET(path, limited("csrf"), handlers.CSRF.Issue)
			auth.POST(path, limited("csrf"), handlers.CSRF.Validate)
		}
	}

	// ─── 2. Authenticated API (Any Role) ───────────────────────────────
	api := router.Group("/api/v1")
	api.Use(middleware.NoStore())
	api.Use(middleware.RequireRole(deps.AuthService, model.RoleStudent))
	{
		api.GET("/me", handlers.Auth.Me)
	}

	// ─── 3. Admin API (Admin Role + CSRF) ──────────────────────────────
	admin := api.Group("/admin")
	admin.Use(middleware.RequireRole(deps.AuthService, model.RoleAdmin))
	admin.Use(middleware.RequireCSRF(deps.CSRFService))
	{
		admin.POST("/accounts/:id/disable", handlers.Account.Disable)
		admin.GET("/login-attempts", handlers.Account.LoginAttempts)
	}

	return router
}
