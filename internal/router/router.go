package router

import (
	"fmt"

	"github.com/anonto42/linkup/backend/internal/handlers"
	"github.com/anonto42/linkup/backend/internal/media"
	"github.com/anonto42/linkup/backend/internal/middleware"
	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/realtime"
	"github.com/anonto42/linkup/backend/internal/services"
	"github.com/anonto42/linkup/backend/internal/session"
	"github.com/anonto42/linkup/backend/pkg/config"
	"github.com/anonto42/linkup/backend/validators"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps are the components the HTTP surfaces are built from.
type Deps struct {
	Services     *services.Services
	Auth         *middleware.Authenticator
	Identities   session.IdentityVerifier
	Materializer *session.Materializer
	Sessions     *session.Manager
	Pipeline     *media.Pipeline
	Gateway      *realtime.Gateway
}

// New creates the echo instance with the global middleware, validator and
// error handler installed.
func New(cfg *config.Config, log *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validators.NewValidator()
	e.HTTPErrorHandler = middleware.ErrorHandler(log)

	config.SetupMiddleware(e, cfg)
	e.Use(middleware.RequestContext())
	e.Use(middleware.RequestLogger(log.Named("http")))
	return e
}

// SetupRoutes configures all application routes.
func SetupRoutes(e *echo.Echo, cfg *config.Config, d Deps, log *zap.Logger) {
	e.GET("/health", handlers.HealthCheck(handlers.HealthReport{
		Connections: d.Gateway.Connections,
		Media:       d.Pipeline.Backend,
	}))

	perIP := middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst)
	requireAuth := middleware.RequireAuth(d.Auth)

	// --- Session exchange ---
	handlers.NewAuthHandler(d.Identities, d.Materializer, d.Sessions, d.Auth, cfg.IsProduction(), log).
		RegisterAuthRoutes(e.Group("/api/auth"), perIP)

	// --- Uploads ---
	upload := e.Group("/api/upload", requireAuth)
	handlers.NewUploadHandler(d.Pipeline, d.Services.Profiles, log).
		RegisterUploadRoutes(upload, middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))

	// --- Realtime; the handler authenticates the handshake itself ---
	handlers.NewRealtimeHandler(d.Gateway, d.Auth).RegisterRealtimeRoutes(e.Group("/api/v1"))

	// --- Protected routes ---
	api := e.Group("/api/v1", requireAuth)
	svc := d.Services

	handlers.NewUserHandler(svc.Profiles).RegisterUserRoutes(api)
	handlers.NewPostHandler(svc.Posts).RegisterPostRoutes(api)
	handlers.NewFeedHandler(svc.Posts).RegisterFeedRoutes(api)
	handlers.NewCommentHandler(svc.Posts).RegisterCommentRoutes(api)
	handlers.NewLikeHandler(svc.Posts).RegisterLikeRoutes(api)
	handlers.NewSavedPostHandler(svc.Posts).RegisterSavedPostRoutes(api)
	handlers.NewStoryHandler(svc.Stories).RegisterStoryRoutes(api)
	handlers.NewFriendshipHandler(svc.Friends).RegisterFriendshipRoutes(api)
	handlers.NewNotificationHandler(svc.Notifications).RegisterNotificationRoutes(api)
	handlers.NewChatHandler(svc.Chat).RegisterChatRoutes(api)
	handlers.NewAdminHandler(svc.Admin).RegisterAdminRoutes(api.Group("/admin"))

	log.Info("routes configured", zap.Int("count", len(e.Routes())))
}

// SetupUnconfigured serves /health and refuses every API route with 503
// BACKEND_NOT_CONFIGURED listing the missing settings.
func SetupUnconfigured(e *echo.Echo, missing []string) {
	e.GET("/health", handlers.HealthCheck(handlers.HealthReport{Missing: missing}))
	guard := middleware.RequireConfigured(missing)
	refuse := func(c echo.Context) error { return nil }
	e.Any("/api", refuse, guard)
	e.Any("/api/*", refuse, guard)
}

// AutoMigrate creates or updates the relational tables.
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.FriendRequest{},
		&models.Comment{},
		&models.Like{},
		&models.SavedPost{},
		&models.StorySeen{},
		&models.StoryReaction{},
		&models.Notification{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
