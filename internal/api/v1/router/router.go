package router

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"chatpro/internal/api/v1/handler"
	"chatpro/internal/config"
	"chatpro/internal/middleware"
	"chatpro/internal/pubsub"
	"chatpro/internal/repository"
	"chatpro/internal/service"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awsmiddleware "github.com/aws/smithy-go/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// Services are the application services the HTTP layer depends on.
type Services struct {
	RevenueCat    service.RevenueCatService
	StripeWebhook handler.StripeWebhookService
	Billing       handler.BillingSessionService
	Entitlements  service.EntitlementService
	Usage         service.UsageService
}

// New connects every backing client, builds the services and returns the HTTP handler
// plus a cleanup function that releases the clients.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (http.Handler, func(), error) {
	logger.Info().Str("environment", cfg.Environment).Msg("App environment loaded")

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (http.Handler, func(), error) {
		cleanup()
		return nil, nil, err
	}

	// 1. Resolve webhook secrets
	if service.NeedsSecretManager(cfg) {
		sm, err := service.NewSecretManagerService(ctx, cfg)
		if err != nil {
			return fail(err)
		}
		err = service.ResolveWebhookSecrets(ctx, cfg, sm)
		_ = sm.Close()
		if err != nil {
			return fail(fmt.Errorf("resolve webhook secrets: %w", err))
		}
	}
	if cfg.RevenueCatWebhookSecret == "" {
		logger.Warn().Msg("REVENUECAT_WEBHOOK_SECRET not set; RevenueCat webhooks will be rejected")
	}

	// 2. Open DB pool
	pool, err := OpenPool(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, pool.Close)
	logger.Info().Msg("Database connection successful")

	// 3. Identity provider
	authClient, err := service.NewFirebaseAuthClient(ctx, cfg)
	if err != nil {
		return fail(err)
	}

	// 4. Webhook archive
	var archiveClient *s3.Client
	if cfg.ArchiveS3Bucket != "" {
		archiveClient, err = newS3Client(ctx, cfg)
		if err != nil {
			return fail(err)
		}
	}

	// 5. Pub/Sub publisher
	var publisher pubsub.Publisher = pubsub.NopPublisher{}
	if cfg.PubSubEntitlementTopic != "" {
		p, err := pubsub.NewPublisher(ctx, cfg)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() { _ = p.Close() })
		publisher = p
	}

	// 6. Repositories & services
	userRepo := repository.NewUserRepo(pool)
	subRepo := repository.NewSubscriptionRepo(pool)
	usageRepo := repository.NewUsageRepo(pool)

	var archive service.WebhookArchive
	if archiveClient != nil {
		archive = service.NewWebhookArchive(archiveClient, cfg.ArchiveS3Bucket)
	} else {
		archive = service.NewWebhookArchive(nil, "")
	}
	notifier := service.NewEntitlementNotifier(publisher, cfg.PubSubEntitlementTopic)
	oracle := service.NewFirebaseOracle(authClient, logger)

	subSvc := service.NewSubscriptionService(subRepo, logger)
	stripeSvc := service.NewStripeService(cfg, userRepo, subSvc, archive, notifier, logger)
	rcSvc := service.NewRevenueCatService(cfg.RevenueCatWebhookSecret, cfg.ProEntitlementTag, oracle, archive, notifier, logger)
	entSvc := service.NewEntitlementService(oracle, cfg.WebProPlan, logger)

	var usageOpts []service.UsageOption
	if cfg.MessageRecordFallback {
		usageOpts = append(usageOpts, service.WithMessageRecordFallback(subSvc))
	}
	usageSvc := service.NewUsageService(usageRepo, entSvc, service.LimitsFromConfig(cfg), logger, usageOpts...)

	h := NewHandler(cfg, Services{
		RevenueCat:    rcSvc,
		StripeWebhook: stripeSvc,
		Billing:       stripeSvc,
		Entitlements:  entSvc,
		Usage:         usageSvc,
	}, logger)
	logger.Info().Msg("Router initialized")
	return h, cleanup, nil
}

// NewHandler mounts the API under /v1 with health, metrics, CORS and request logging.
func NewHandler(cfg *config.Config, svcs Services, logger zerolog.Logger) http.Handler {
	validate := validator.New(validator.WithRequiredStructEnabled())
	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret, logger)

	webhookHandler := handler.NewWebhookHandler(svcs.RevenueCat, svcs.StripeWebhook, logger)
	subscriptionHandler := handler.NewSubscriptionHandler(svcs.Billing, svcs.RevenueCat, validate, logger)
	entitlementHandler := handler.NewEntitlementHandler(svcs.Entitlements, svcs.Usage, logger)

	mux := http.NewServeMux()

	apiV1Mux := http.NewServeMux()
	webhookHandler.RegisterRoutes(apiV1Mux)
	subscriptionHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	entitlementHandler.RegisterRoutes(apiV1Mux, authMiddleware)

	// Mount the API v1 routes under /v1
	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return middleware.LoggerMiddleware(logger)(c.Handler(mux))
}

// OpenPool opens and pings a pgx pool. Outside development the simple protocol is used
// so transaction poolers like pgbouncer work.
func OpenPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	dsn := cfg.DBConnectionString
	if cfg.Environment == "development" && !strings.Contains(dsn, "sslmode") {
		dsn = appendDSNParam(dsn, "sslmode=disable")
	}
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse DB connection string: %w", err)
	}
	if cfg.Environment != "development" {
		poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}
	poolCfg.MaxConns = 25

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open DB pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping DB: %w", err)
	}
	return pool, nil
}

func appendDSNParam(dsn, param string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		if strings.Contains(dsn, "?") {
			return dsn + "&" + param
		}
		return dsn + "?" + param
	}
	return dsn + " " + param
}

func newS3Client(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.ArchiveS3Region),
		awsconfig.WithAPIOptions([]func(*awsmiddleware.Stack) error{removeDisableGzip()}),
	}
	if cfg.ArchiveS3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.ArchiveS3AccessKey, cfg.ArchiveS3SecretKey, "")))
	}
	s3Config, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load S3 config: %w", err)
	}
	return s3.NewFromConfig(s3Config, func(o *s3.Options) {
		if cfg.ArchiveS3URL != "" {
			o.BaseEndpoint = aws.String(cfg.ArchiveS3URL)
			o.UsePathStyle = true
		}
	}), nil
}

// removeDisableGzip is a workaround for S3 signature errors with some S3-compatible services.
// See: https://github.com/supabase/storage/issues/577
func removeDisableGzip() func(*awsmiddleware.Stack) error {
	return func(stack *awsmiddleware.Stack) error {
		if _, ok := stack.Finalize.Get("DisableAcceptEncodingGzip"); ok {
			_, err := stack.Finalize.Remove("DisableAcceptEncodingGzip")
			return err
		}
		return nil
	}
}
