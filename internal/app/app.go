package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/markdave123-py/lessontutor/internal/config"
	"github.com/markdave123-py/lessontutor/internal/core"
	"github.com/markdave123-py/lessontutor/internal/core/cache"
	db "github.com/markdave123-py/lessontutor/internal/core/database"
	"github.com/markdave123-py/lessontutor/internal/core/ingestion_engine"
	"github.com/markdave123-py/lessontutor/internal/core/llm"
	"github.com/markdave123-py/lessontutor/internal/core/logger"
	"github.com/markdave123-py/lessontutor/internal/core/metrics"
	objectclient "github.com/markdave123-py/lessontutor/internal/core/object-client"
	"github.com/markdave123-py/lessontutor/internal/core/retrieval"
	"github.com/markdave123-py/lessontutor/internal/services"
)

type App struct {
	Log      *logger.Logger
	DBClient *db.DatabaseClient
	Redis    *redis.Client
	LLM      *llm.GeminiLLM
	Server   *Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	log, err := logger.New(cfg.LogMode, cfg.LogFile)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	metrics.Init()

	a := &App{Log: log}

	a.DBClient, err = db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Info("database initialized and ready")

	var textCache core.TextCache = cache.NewDBCache(a.DBClient)
	if cfg.RedisAddr != "" {
		a.Redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := a.Redis.Ping(appCtx).Err(); err != nil {
			// The SQL cache still works without the hot tier.
			log.Warn("redis unavailable, using database text cache only", "addr", cfg.RedisAddr, "error", err)
			_ = a.Redis.Close()
			a.Redis = nil
		} else {
			textCache = cache.NewRedisCache(a.Redis, textCache, log)
			log.Info("redis text cache enabled", "addr", cfg.RedisAddr)
		}
	}

	objClient, err := objectclient.NewS3Client(appCtx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	log.Info("object client initialized and ready", "bucket", objClient.Bucket())

	a.LLM, err = llm.NewGeminiLLM(appCtx, cfg.AIAPIKey, cfg.GenModel)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("couldn't initialize the language model, %w", err)
	}

	useReadability := false
	extractor := ingestion_engine.NewDocconvExtractor(objClient, cfg.BucketName, useReadability)
	loader := ingestion_engine.NewDocumentLoader(textCache, extractor, ingestion_engine.LoaderConfig{}, log)
	selector := retrieval.NewSelector(retrieval.SelectorConfig{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
	})

	tutor := services.NewTutorService(a.DBClient, loader, selector, a.LLM, log)
	threads := services.NewThreadService(a.DBClient)

	a.Server = NewServer(cfg, log, a.DBClient, tutor, threads)
	return a, nil
}

func (a *App) Close() {
	if a.LLM != nil {
		_ = a.LLM.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
