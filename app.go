package agora

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/nasermirzaei89/agora/authentication"
	"github.com/nasermirzaei89/agora/authorization"
	"github.com/nasermirzaei89/agora/authorization/casbin"
	"github.com/nasermirzaei89/agora/blob"
	"github.com/nasermirzaei89/agora/cache"
	"github.com/nasermirzaei89/agora/chat"
	"github.com/nasermirzaei89/agora/database/sqlite3"
	"github.com/nasermirzaei89/agora/discuss"
	"github.com/nasermirzaei89/agora/forum"
	"github.com/nasermirzaei89/agora/jobs"
	"github.com/nasermirzaei89/agora/notifications"
	"github.com/nasermirzaei89/agora/random"
	"github.com/nasermirzaei89/agora/server"
	"github.com/nasermirzaei89/agora/web"
	"github.com/nasermirzaei89/env"
)

const (
	defaultReconcileParallelism = 8
	jwksRefreshInterval         = time.Hour
)

type App struct {
	server            *server.Server
	handler           *web.Handler
	aggregator        *notifications.Aggregator
	reconcileInterval time.Duration
	db                *sql.DB
	redis             *cache.RedisCache
	verifier          *authentication.JWTVerifier
}

//go:embed policy.csv
var defaultAuthorizationPolicyContent string

func NewApp(ctx context.Context) (*App, error) {
	db, err := sqlite3.NewDB(ctx, env.GetString("DB_DSN", "file::memory:?cache=shared"))
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	err = sqlite3.MigrateUp(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	userRepo := sqlite3.NewUserRepository(db)
	threadRepo := sqlite3.NewThreadRepository(db)
	postRepo := sqlite3.NewPostRepository(db)
	commentRepo := sqlite3.NewCommentRepository(db)
	conversationRepo := sqlite3.NewConversationRepository(db)
	messageRepo := sqlite3.NewMessageRepository(db)
	notificationRepo := sqlite3.NewNotificationRepository(db)
	jobRepo := sqlite3.NewJobRepository(db)
	applicationRepo := sqlite3.NewApplicationRepository(db)
	unseenSource := sqlite3.NewUnseenSource(db)

	authzProvider, err := newAuthorizationProvider(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization provider: %w", err)
	}

	authzSvc, err := authorization.NewService(authzProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization service: %w", err)
	}

	authzClient := authorization.NewClient(authzSvc)

	verifier, err := newTokenVerifier()
	if err != nil {
		return nil, fmt.Errorf("failed to create token verifier: %w", err)
	}

	authSvc, err := authentication.NewService(userRepo, authzSvc, verifier)
	if err != nil {
		return nil, fmt.Errorf("failed to create authentication service: %w", err)
	}

	if err := authSvc.LoadBloomFilter(ctx, 10_000, 0.01); err != nil {
		return nil, fmt.Errorf("failed to load bloom filter: %w", err)
	}

	blobs, err := newBlobStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create blob store: %w", err)
	}

	healthChecks := []web.HealthCheck{db.PingContext}

	var (
		redisCache         *cache.RedisCache
		forumInvalidator   forum.UnseenInvalidator
		discussInvalidator discuss.UnseenInvalidator
		chatInvalidator    chat.UnseenInvalidator
		presence           chat.Presence
		notificationsCache notifications.UnseenCache
	)

	if addr := env.GetString("REDIS_ADDR", ""); addr != "" {
		redisDB, err := getIntFromEnv("REDIS_DB", 0)
		if err != nil {
			return nil, err
		}

		redisCache = cache.NewRedisCache(addr, env.GetString("REDIS_PASSWORD", ""), redisDB)
		unseenCache := cache.NewUnseenCache(redisCache)

		forumInvalidator = unseenCache
		discussInvalidator = unseenCache
		chatInvalidator = unseenCache
		notificationsCache = unseenCache
		presence = cache.NewPresenceCache(redisCache)

		healthChecks = append(healthChecks, redisCache.Ping)
	} else {
		slog.WarnContext(ctx, "REDIS_ADDR is not set, unseen counts are not cached and presence is disabled")
	}

	forumSvc := forum.NewService(threadRepo, postRepo, blobs, forumInvalidator)
	discussSvc := discuss.NewAuthorizationMiddleware(
		authzClient,
		discuss.NewStore(commentRepo, postRepo, threadRepo, discussInvalidator),
	)
	chatSvc := chat.NewService(conversationRepo, messageRepo, presence, chatInvalidator)
	notificationsSvc := notifications.NewService(notificationRepo, unseenSource, notificationsCache)
	jobsSvc := jobs.NewService(jobRepo, applicationRepo, notificationsSvc)

	parallelism, err := getIntFromEnv("RECONCILE_PARALLELISM", defaultReconcileParallelism)
	if err != nil {
		return nil, err
	}

	aggregator := notifications.NewAggregator(notificationRepo, unseenSource, parallelism)

	reconcileInterval, err := getDurationFromEnv("RECONCILE_INTERVAL", 0)
	if err != nil {
		return nil, err
	}

	httpHandler, err := web.NewHandler(
		web.Services{
			Auth:          authSvc,
			Authz:         authzClient,
			Forum:         forumSvc,
			Discuss:       discussSvc,
			Notifications: notificationsSvc,
			Aggregator:    aggregator,
			Chat:          chatSvc,
			Jobs:          jobsSvc,
			Blobs:         blobs,
		},
		[]byte(env.GetString("AUTH_WEBHOOK_SECRET", "")),
		healthChecks...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP handler: %w", err)
	}

	app := &App{
		server:            newServer(),
		handler:           httpHandler,
		aggregator:        aggregator,
		reconcileInterval: reconcileInterval,
		db:                db,
		redis:             redisCache,
		verifier:          verifier,
	}

	return app, nil
}

func (app *App) Run(ctx context.Context) error {
	// Handle SIGINT (CTRL+C) gracefully.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	defer app.close(ctx)

	if app.reconcileInterval > 0 {
		slog.InfoContext(ctx, "starting notifications aggregator", "interval", app.reconcileInterval.String())

		go app.aggregator.RunEvery(ctx, app.reconcileInterval)
	}

	err := app.server.Run(ctx, app.handler)
	if err != nil {
		return fmt.Errorf("failed to run server: %w", err)
	}

	return nil
}

// Reconcile runs a single notifications pass and exits.
func (app *App) Reconcile(ctx context.Context) (*notifications.RunReport, error) {
	defer app.close(ctx)

	report, err := app.aggregator.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile notifications: %w", err)
	}

	return report, nil
}

func (app *App) close(ctx context.Context) {
	if app.verifier != nil {
		app.verifier.Close()
	}

	if app.redis != nil {
		err := app.redis.Close()
		if err != nil {
			slog.ErrorContext(ctx, "failed to close redis client", "error", err)
		}
	}

	if app.db != nil {
		err := app.db.Close()
		if err != nil {
			slog.ErrorContext(ctx, "failed to close database", "error", err)
		}
	}
}

func newServer() *server.Server {
	server := &server.Server{
		Port: env.GetString("PORT", server.DefaultPort),
		Host: env.GetString("HOST", ""),
		TLS: server.ServerTLS{
			Enabled: env.GetBool("TLS_ENABLED", false),
			Mode:    env.GetString("TLS_MODE", server.DefaultTLSMode),
			AutoCert: &server.ServerTLSAutoCert{
				CacheDir: env.GetString("TLS_AUTOCERT_CACHE_DIR", "./cert-cache"),
				Domains:  env.GetStringSlice("TLS_AUTOCERT_DOMAINS", []string{}),
				Email:    env.GetString("TLS_AUTOCERT_EMAIL", ""),
			},
			CertFile: env.GetString("TLS_CERT_FILE", ""),
			KeyFile:  env.GetString("TLS_KEY_FILE", ""),
		},
	}

	return server
}

// newTokenVerifier prefers the identity provider JWKS endpoint. Without one,
// tokens are checked against a shared HMAC secret.
func newTokenVerifier() (*authentication.JWTVerifier, error) {
	if jwksURL := env.GetString("AUTH_JWKS_URL", ""); jwksURL != "" {
		verifier, err := authentication.NewJWKSVerifier(jwksURL, jwksRefreshInterval)
		if err != nil {
			return nil, fmt.Errorf("failed to create jwks verifier: %w", err)
		}

		return verifier, nil
	}

	secret := []byte(env.GetString("AUTH_HMAC_SECRET", ""))
	if len(secret) == 0 {
		secret = random.Bytes(32)

		slog.Warn("AUTH_HMAC_SECRET is not set, using a random secret; tokens will not verify after a restart")
	}

	verifier, err := authentication.NewHMACVerifier(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to create hmac verifier: %w", err)
	}

	return verifier, nil
}

// newBlobStore returns nil when no bucket is configured.
func newBlobStore() (*blob.Store, error) {
	cfg := blob.Config{
		Endpoint:  env.GetString("S3_ENDPOINT", ""),
		Region:    env.GetString("S3_REGION", ""),
		Bucket:    env.GetString("S3_BUCKET", ""),
		AccessKey: env.GetString("S3_ACCESS_KEY", ""),
		SecretKey: env.GetString("S3_SECRET_KEY", ""),
		UseSSL:    env.GetBool("S3_USE_SSL", true),
	}

	if cfg.Endpoint == "" && cfg.Bucket == "" {
		slog.Warn("S3_ENDPOINT and S3_BUCKET are not set, uploads are disabled")

		return nil, nil
	}

	store, err := blob.NewStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob store: %w", err)
	}

	return store, nil
}

func GetLogLevelFromEnv() slog.Level {
	levelStr := env.GetString("LOG_LEVEL", "info")
	switch levelStr {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		slog.Warn("unknown log level, defaulting to info", "level", levelStr)

		return slog.LevelInfo
	}
}

func getIntFromEnv(key string, def int) (int, error) {
	v := env.GetString(key, "")
	if v == "" {
		return def, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", key, err)
	}

	return n, nil
}

func getDurationFromEnv(key string, def time.Duration) (time.Duration, error) {
	v := env.GetString(key, "")
	if v == "" {
		return def, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", key, err)
	}

	return d, nil
}

func newAuthorizationProvider(ctx context.Context, db *sql.DB) (*casbin.AuthorizationProvider, error) {
	adapter, err := casbin.NewSQLAdapter(db, "sqlite3", "casbin_rule")
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization adapter: %w", err)
	}

	provider, err := casbin.NewAuthorizationProvider(adapter)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization provider: %w", err)
	}

	policyContent, err := loadPolicyContent()
	if err != nil {
		return nil, fmt.Errorf("failed to load authorization policy content: %w", err)
	}

	err = provider.AddPolicyFromCSV(ctx, policyContent)
	if err != nil {
		return nil, fmt.Errorf("failed to add authorization policy from csv: %w", err)
	}

	return provider, nil
}

func loadPolicyContent() (string, error) {
	policyFilePath := env.GetString("AUTHORIZATION_POLICY_FILE", "")

	if policyFilePath == "" {
		return defaultAuthorizationPolicyContent, nil
	}

	content, err := os.ReadFile(policyFilePath) // nolint:gosec
	if err != nil {
		return "", fmt.Errorf("failed to read policy file %q: %w", policyFilePath, err)
	}

	return string(content), nil
}
