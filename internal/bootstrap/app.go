package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"kyc-backend/internal/audit"
	"kyc-backend/internal/catalog"
	"kyc-backend/internal/disclosure"
	"kyc-backend/internal/documents"
	"kyc-backend/internal/extract"
	"kyc-backend/internal/fields"
	"kyc-backend/internal/queue"
	"kyc-backend/internal/shared/auth"
	"kyc-backend/internal/shared/config"
	"kyc-backend/internal/shared/server"
	"kyc-backend/internal/shared/server/middleware"
	"kyc-backend/internal/shared/storage/db"
	"kyc-backend/internal/shared/storage/object"
	localstore "kyc-backend/internal/shared/storage/object/local"
	miniostore "kyc-backend/internal/shared/storage/object/minio"
	s3store "kyc-backend/internal/shared/storage/object/s3"
	"kyc-backend/internal/shared/telemetry"
)

const auditStreamMaxLen = 100_000

// App holds shared dependencies.
type App struct {
	Config  config.Config
	Router  *gin.Engine
	DB      *sql.DB
	Dialect db.Dialect
	Store   object.ObjectStore
	Redis   *redis.Client
	Queue   queue.Client
	Logger  *slog.Logger

	Audit    *audit.AsyncRecorder
	AuditLog audit.Lister
	Fields   *fields.Registry
	Pipeline *extract.Pipeline
	Signer   *auth.Signer

	CatalogService    *catalog.Service
	DocumentsService  *documents.Service
	DisclosureService *disclosure.Service
	Gateway           *disclosure.Gateway
	Compliance        *disclosure.Evaluator

	CatalogHandler    *catalog.Handler
	DocumentsHandler  *documents.Handler
	DisclosureHandler *disclosure.Handler
	AuditHandler      *audit.Handler
}

// Build prepares shared dependencies and the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()
	logger := telemetry.Logger()

	sqlDB, dialect, err := buildDB(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	rdb, err := buildRedis(ctx, cfg)
	if err != nil {
		return nil, err
	}

	registry, err := buildFields(cfg)
	if err != nil {
		return nil, err
	}

	signer, err := auth.NewSigner(cfg.JWTSecret, cfg.Env)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:  cfg,
		DB:      sqlDB,
		Dialect: dialect,
		Store:   store,
		Redis:   rdb,
		Queue:   queueClient,
		Logger:  logger,
		Fields:  registry,
		Signer:  signer,
	}
	app.buildAudit()
	app.buildPipeline()
	app.buildServices()

	app.Router = server.NewRouter(server.RouterDeps{
		Config:   cfg,
		Verifier: signer,
		Ready:    app.ready,
		Handlers: []server.RouteRegistrar{
			app.CatalogHandler,
			app.DocumentsHandler,
			app.DisclosureHandler,
			app.AuditHandler,
		},
	})
	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config, logger *slog.Logger) (*sql.DB, db.Dialect, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			logger.Info("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, dialect, err := db.Connect(ctx, cfg.DatabaseURL, DBOptions(cfg, db.DefaultServerOptions()))
	if err != nil {
		return nil, "", err
	}
	if err := db.RunMigrations(ctx, sqlDB, dialect); err != nil {
		_ = sqlDB.Close()
		return nil, "", fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, dialect, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	case "minio":
		return miniostore.New(ctx, cfg.MinIOEndpoint, cfg.MinIOAccessKey, cfg.MinIOSecretKey, cfg.MinIOBucket, cfg.MinIOUseSSL)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if cfg.SQSQueueURL == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx, cfg.SQSQueueURL, cfg.AWSRegion)
}

func buildRedis(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func buildFields(cfg config.Config) (*fields.Registry, error) {
	if strings.TrimSpace(cfg.RulesFile) == "" {
		return fields.Default(), nil
	}
	return fields.LoadFile(cfg.RulesFile)
}

// buildAudit picks the most durable sink available: a Redis stream, then the
// audit_events table, then memory.
func (a *App) buildAudit() {
	var sink audit.Sink
	switch {
	case a.Redis != nil:
		s := &audit.RedisStreamSink{Client: a.Redis, Stream: a.Config.AuditStream, MaxLen: auditStreamMaxLen}
		sink, a.AuditLog = s, s
	case a.DB != nil:
		s := &audit.PGSink{DB: a.DB, Dialect: a.Dialect}
		sink, a.AuditLog = s, s
	default:
		s := audit.NewMemorySink()
		sink, a.AuditLog = s, s
	}
	a.Audit = audit.NewRecorder(sink, a.Config.AuditBuffer,
		audit.WithRequestID(middleware.RequestIDFromRequestContext),
		audit.WithLogger(a.Logger),
	)
}

func (a *App) buildPipeline() {
	ocr := extract.NewRasterOCR(extract.OCRConfig{
		Pdftoppm:      a.Config.PdftoppmPath,
		Tesseract:     a.Config.TesseractPath,
		TesseractLang: a.Config.TesseractLang,
		DPI:           a.Config.OCRDPI,
		Timeout:       a.Config.OCRTimeout,
		MaxConcurrent: a.Config.OCRMaxConcurrent,
		TempDir:       a.Config.OCRTempDir,
	}, extract.ExecRunner{Logger: a.Logger}, a.Logger)

	a.Pipeline = &extract.Pipeline{
		Text:          extract.PDFTextLayer{},
		OCR:           ocr,
		Fields:        a.Fields,
		MinTextLength: a.Config.MinTextLength,
		Logger:        a.Logger,
	}
}

func (a *App) buildServices() {
	var (
		catalogRepo    catalog.Repo
		docRepo        documents.Repo
		disclosureRepo disclosure.Repository
	)
	if a.DB != nil {
		catalogRepo = &catalog.PGRepo{DB: a.DB, Dialect: a.Dialect}
		docRepo = &documents.PGRepo{DB: a.DB, Dialect: a.Dialect}
		disclosureRepo = disclosure.NewPGStore(a.DB, a.Dialect)
	} else {
		catalogRepo = catalog.NewMemoryRepo()
		docRepo = documents.NewMemoryRepo()
		disclosureRepo = disclosure.NewMemoryStore()
	}

	a.CatalogService = catalog.NewService(catalogRepo, a.Audit)
	a.DocumentsService = documents.NewService(a.Store, docRepo, a.CatalogService, a.Pipeline, nil, a.Audit, a.Logger)
	a.DisclosureService = disclosure.NewService(disclosureRepo, a.CatalogService, a.DocumentsService, a.Audit, a.Logger)
	a.DocumentsService.Grants = a.DisclosureService
	a.Gateway = disclosure.NewGateway(disclosureRepo, a.DocumentsService, a.Audit, a.Logger)
	a.Compliance = disclosure.NewEvaluator(disclosureRepo, a.CatalogService, a.DocumentsService, a.Logger)

	var jobs documents.Jobs
	if a.Queue != nil {
		jobs = queue.NewJobs(a.Queue)
	}

	a.CatalogHandler = catalog.NewHandler(a.CatalogService)
	a.DocumentsHandler = documents.NewHandler(a.DocumentsService, accessAdapter{gate: a.Gateway}, jobs, a.Fields.Columns)
	a.DisclosureHandler = disclosure.NewHandler(a.DisclosureService, a.Compliance)
	a.AuditHandler = audit.NewHandler(a.AuditLog)
}

func (a *App) ready(ctx context.Context) error {
	if a.DB == nil {
		return nil
	}
	return a.DB.PingContext(ctx)
}

// Close drains the audit recorder and releases connections.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Audit != nil {
		errs = append(errs, a.Audit.Close(ctx))
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

// accessAdapter lets the documents handler consult the access gateway.
type accessAdapter struct {
	gate *disclosure.Gateway
}

func (a accessAdapter) Authorize(ctx context.Context, orgID, docID, op string) (bool, error) {
	dec, err := a.gate.Authorize(ctx, orgID, docID, disclosure.Operation(op))
	if err != nil {
		return false, err
	}
	return dec.Allowed, nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local", "test":
		return true
	default:
		return false
	}
}

// DBOptions applies the DB_* pool settings from cfg on top of defaults.
func DBOptions(cfg config.Config, defaults db.Options) db.Options {
	return defaults.Override(db.Options{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
		PingTimeout:     cfg.DBPingTimeout,
	})
}
