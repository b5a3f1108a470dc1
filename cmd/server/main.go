package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/linkup/backend/internal/jobs"
	"github.com/anonto42/linkup/backend/internal/livequery"
	"github.com/anonto42/linkup/backend/internal/media"
	"github.com/anonto42/linkup/backend/internal/metrics"
	"github.com/anonto42/linkup/backend/internal/middleware"
	"github.com/anonto42/linkup/backend/internal/realtime"
	"github.com/anonto42/linkup/backend/internal/repositories"
	"github.com/anonto42/linkup/backend/internal/router"
	"github.com/anonto42/linkup/backend/internal/services"
	"github.com/anonto42/linkup/backend/internal/session"
	"github.com/anonto42/linkup/backend/internal/supervisor"
	"github.com/anonto42/linkup/backend/pkg/config"
	"github.com/anonto42/linkup/backend/pkg/firebase"
	"github.com/anonto42/linkup/backend/pkg/logger"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	triggerWorkers   = 4
	triggerQueueSize = 1024
)

func main() {
	// Load configuration
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tree := supervisor.NewTree(log, supervisor.DefaultTreeConfig())
	e := router.New(cfg, log)

	if missing := cfg.Missing(); len(missing) > 0 {
		log.Warn("backend not configured; API routes will answer 503", zap.Strings("missing", missing))
		router.SetupUnconfigured(e, missing)
	} else {
		closeAll, err := wire(ctx, cfg, e, tree, log)
		if err != nil {
			log.Fatal("failed to start", zap.Error(err))
		}
		defer closeAll()
	}

	tree.AddAPIService(supervisor.NewHTTPService("http-api", &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}, 10*time.Second))

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	tree.AddAPIService(supervisor.NewHTTPService("http-metrics", &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}, 5*time.Second))

	log.Info("server starting", zap.String("port", cfg.Port), zap.String("metrics_port", cfg.MetricsPort), zap.String("env", cfg.Env))
	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		log.Error("supervisor stopped", zap.Error(err))
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, s := range report {
			log.Warn("service did not stop in time", zap.String("service", s.Name))
		}
	}
	log.Info("server stopped")
}

// wire connects the backends, builds the services and registers every route
// and background service. The returned func releases the connections.
func wire(ctx context.Context, cfg *config.Config, e *echo.Echo, tree *supervisor.Tree, log *zap.Logger) (func(), error) {
	db, err := config.InitDB(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if err := router.AutoMigrate(db.Postgres); err != nil {
		db.CloseDB()
		return nil, err
	}

	rdb, err := config.NewRedisClient(ctx, cfg, log)
	if err != nil {
		db.CloseDB()
		return nil, err
	}

	fb, err := firebase.InitFirebase(ctx, firebase.Options{
		CredentialsPath: cfg.FirebaseCredentialsPath,
		ProjectID:       cfg.FirebaseProjectID,
		StorageBucket:   cfg.FirebaseStorageBucket,
	}, log)
	if err != nil {
		db.CloseDB()
		return nil, err
	}

	closeAll := func() {
		if err := fb.Close(); err != nil {
			log.Warn("closing firestore", zap.Error(err))
		}
		if rdb != nil {
			_ = rdb.Close()
		}
		db.CloseDB()
	}

	// --- Repositories ---
	posts := repositories.NewMongoPostRepository(db.MongoDB)
	chats := repositories.NewMongoChatRepository(db.MongoDB)
	if err := posts.EnsureIndexes(ctx); err != nil {
		log.Warn("ensuring post indexes", zap.Error(err))
	}
	if err := chats.EnsureIndexes(ctx); err != nil {
		log.Warn("ensuring chat indexes", zap.Error(err))
	}
	users := repositories.NewPostgresUserRepository(db.Postgres)
	stories := repositories.NewStoryRepository(db.MongoDB, db.Postgres)
	notifications := repositories.NewPostgresNotificationRepository(db.Postgres)
	friends := repositories.NewPostgresFriendshipRepository(db.Postgres)

	// --- Live queries ---
	broker := livequery.NewBroker(log)
	var revocations session.Revocations = session.NewMemoryRevocations()
	if rdb != nil {
		relay := livequery.NewRedisRelay(rdb, broker, log)
		broker.SetRelay(relay)
		tree.AddDataService(relay)
		revocations = session.NewRedisRevocations(rdb)
	} else {
		log.Warn("REDIS_ADDR not set; invalidations and revocations stay in this process")
	}

	// --- Triggers and maintenance ---
	dispatcher := jobs.NewDispatcher(log, triggerWorkers, triggerQueueSize)
	jobs.NewTriggers(users, posts, notifications, broker, log).Register(dispatcher)
	tree.AddDataService(dispatcher)
	tree.AddDataService(jobs.NewCleanup(stories, notifications, broker, cfg.StoryCleanupInterval, cfg.NotificationRetention, log))

	svc := services.New(services.Deps{
		Users:         users,
		Posts:         posts,
		Comments:      repositories.NewPostgresCommentRepository(db.Postgres),
		Likes:         repositories.NewPostgresLikeRepository(db.Postgres),
		Saved:         repositories.NewPostgresSavedPostRepository(db.Postgres),
		Friends:       friends,
		Notifications: notifications,
		Stories:       stories,
		Chats:         chats,
		Broker:        broker,
		Events:        dispatcher,
		Log:           log,
	})

	// --- Sessions ---
	tokens, err := session.NewTokens(cfg.Session.Secret, cfg.Session.TTL)
	if err != nil {
		closeAll()
		return nil, err
	}
	sessions := session.NewManager(tokens, revocations)
	identities := session.NewFirebaseVerifier(fb.AuthClient)
	materializer := session.NewMaterializer(users, friends, session.NewFirestorePresence(fb.Firestore), broker, log)
	auth := middleware.NewAuthenticator(sessions, identities, users, cfg.Session.CookieName)

	// --- Media ---
	store, err := mediaStore(cfg, fb)
	if err != nil {
		closeAll()
		return nil, err
	}
	pipeline := media.NewPipeline(media.NewBreakerStore(store, media.DefaultBreakerSettings(), log), log)

	// --- Realtime ---
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{cfg.PublicAppURL}
	}
	gateway := realtime.NewGateway(svc, broker, origins, log)
	tree.AddMessagingService(gateway)

	router.SetupRoutes(e, cfg, router.Deps{
		Services:     svc,
		Auth:         auth,
		Identities:   identities,
		Materializer: materializer,
		Sessions:     sessions,
		Pipeline:     pipeline,
		Gateway:      gateway,
	}, log)

	return closeAll, nil
}

func mediaStore(cfg *config.Config, fb *firebase.App) (media.Store, error) {
	switch cfg.Media.Backend {
	case config.MediaBackendCloudinary:
		return media.NewCloudinaryStore(cfg.Media.CloudinaryCloudName, cfg.Media.CloudinaryAPIKey, cfg.Media.CloudinaryAPISecret)
	default:
		if fb.Bucket == nil {
			return nil, fmt.Errorf("storage bucket not initialized")
		}
		return media.NewGCSStore(fb.Bucket, fb.BucketName), nil
	}
}
