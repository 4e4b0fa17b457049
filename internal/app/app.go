package app

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/hamlaty/contest-backend/internal/clients/gcs"
	"github.com/hamlaty/contest-backend/internal/clients/graph"
	"github.com/hamlaty/contest-backend/internal/clients/redis"
	"github.com/hamlaty/contest-backend/internal/db"
	"github.com/hamlaty/contest-backend/internal/handlers"
	"github.com/hamlaty/contest-backend/internal/logger"
	"github.com/hamlaty/contest-backend/internal/middleware"
	"github.com/hamlaty/contest-backend/internal/repos"
	"github.com/hamlaty/contest-backend/internal/server"
	"github.com/hamlaty/contest-backend/internal/services"
)

type App struct {
	Log    *logger.Logger
	DB     *gorm.DB
	Router *gin.Engine
	Cfg    Config

	dedup redis.DedupCache
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	// Repos
	log.Info("Setting up repos...")
	contestRepo := repos.NewContestRepo(theDB, log)
	taskRepo := repos.NewTaskRepo(theDB, log)
	pageLinkRepo := repos.NewPageLinkRepo(theDB, log)
	sourceRepo := repos.NewCommentSourceConfigRepo(theDB, log)
	threadRepo := repos.NewThreadRepo(theDB, log)
	entryRepo := repos.NewEntryRepo(theDB, log)
	commentRepo := repos.NewCommentEntryRepo(theDB, log)
	auditRepo := repos.NewAuditEventRepo(theDB, log)

	// Clients. Redis and object storage are optional: a failed init is a
	// degraded run, not a crash.
	log.Info("Setting up clients...")
	graphClient, err := graph.New(log, graph.ConfigFromEnv(log))
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init graph client: %w", err)
	}
	var dedup redis.DedupCache
	if dc, dcErr := redis.NewDedupCache(log); dcErr != nil {
		log.Warn("Dedup cache unavailable, DB-only dedup", "error", dcErr)
	} else {
		dedup = dc
	}
	var bucket gcs.BucketService
	if bs, bsErr := gcs.NewBucketService(log); bsErr != nil {
		log.Warn("Object storage unavailable, attachment offload disabled", "error", bsErr)
	} else {
		bucket = bs
	}

	// Services
	log.Info("Setting up services...")
	signatures, err := services.NewSignatureService(log, cfg.AppSecret, cfg.VerifyToken)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init signature service: %w", err)
	}
	cipher, err := services.NewTokenCipher(cfg.TokenCipherKeyHex)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init token cipher: %w", err)
	}
	sequencer := services.NewTaskSequencer(log, taskRepo)
	audit := services.NewAuditService(log, auditRepo, cfg.AuditCap)
	offloader := services.NewAttachmentOffloader(log, bucket, cfg.MaxAttachmentBytes)
	classifier := services.NewCommentClassifier(log)
	messenger := services.NewMessengerService(
		log, cfg.Messenger,
		contestRepo, pageLinkRepo, sequencer, taskRepo, threadRepo, entryRepo,
		cipher, graphClient,
	)
	comments := services.NewCommentIngestService(
		log,
		sourceRepo, commentRepo, pageLinkRepo, taskRepo,
		cipher, graphClient, offloader, classifier, audit, dedup,
	)

	// Handlers, middleware, router
	log.Info("Setting up router...")
	webhookHandler := handlers.NewWebhookHandler(log, signatures, messenger, comments)
	signatureMiddleware := middleware.NewSignatureMiddleware(log, signatures)
	router := server.NewRouter(server.RouterConfig{
		WebhookHandler:      webhookHandler,
		SignatureMiddleware: signatureMiddleware,
		AllowOrigins:        cfg.AllowOrigins,
	})

	return &App{
		Log:    log,
		DB:     theDB,
		Router: router,
		Cfg:    cfg,
		dedup:  dedup,
	}, nil
}

func (a *App) Run(addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.dedup != nil {
		_ = a.dedup.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
