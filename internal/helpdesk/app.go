package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/helpdesk-x/internal/helpdesk/biz"
	"github.com/kart-io/helpdesk-x/internal/helpdesk/handler"
	"github.com/kart-io/helpdesk-x/internal/helpdesk/router"
	"github.com/kart-io/helpdesk-x/internal/helpdesk/store"
	"github.com/kart-io/helpdesk-x/pkg/app"
	"github.com/kart-io/helpdesk-x/pkg/component/milvus"
	"github.com/kart-io/helpdesk-x/pkg/llm"
	"github.com/kart-io/helpdesk-x/pkg/llm/resilience"
	"github.com/kart-io/helpdesk-x/pkg/middleware"

	// Register embedding providers
	_ "github.com/kart-io/helpdesk-x/pkg/llm/ollama"
	_ "github.com/kart-io/helpdesk-x/pkg/llm/openai"
)

const (
	appName        = "helpdesk-x"
	appDescription = `Helpdesk-X Service

The conversational IT helpdesk assistant.

This server provides:
  - Multi-turn incident intake over chat
  - Semantic matching of issues against the knowledge base
  - Incident lifecycle and admin approval workflow
  - Knowledge base synchronization across store, export file and vector index`
)

// NewApp creates a new application instance.
func NewApp() *app.App {
	opts := NewOptions()

	return app.NewApp(
		app.WithName(appName),
		app.WithDescription(appDescription),
		app.WithOptions(opts),
		app.WithRunFunc(func() error {
			return Run(opts)
		}),
	)
}

// Run runs the Helpdesk Service with the given options.
func Run(opts *Options) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. 初始化日志
	if err := opts.Log.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting helpdesk service...")

	// 2. 初始化记录存储
	factory, err := newStoreFactory(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer factory.Close()
	logger.Info("Store layer initialized")

	// 3. 初始化向量索引
	index, err := newVectorIndex(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to initialize vector index: %w", err)
	}
	defer index.Close(ctx)
	logger.Infow("Vector index initialized", "backend", opts.Vector.Backend)

	// 4. Redis (会话存储 / 向量缓存可选)
	var redisClient *goredis.Client
	if opts.Session.Backend == "redis" || opts.Embedding.CacheEnabled {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:         fmt.Sprintf("%s:%d", opts.Redis.Host, opts.Redis.Port),
			Password:     opts.Redis.Password,
			DB:           opts.Redis.Database,
			MaxRetries:   opts.Redis.MaxRetries,
			PoolSize:     opts.Redis.PoolSize,
			MinIdleConns: opts.Redis.MinIdleConns,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()
		logger.Info("Redis client initialized")
	}

	// 5. 初始化 Embedding 供应商
	embedder, err := llm.NewEmbeddingProvider(opts.Embedding.Provider, opts.Embedding.ToConfigMap())
	if err != nil {
		return fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	retryConfig := resilience.DefaultRetryConfig()
	retryConfig.MaxAttempts = opts.Embedding.MaxRetries
	embedder = resilience.NewResilientEmbeddingProvider(embedder, retryConfig, nil)
	if opts.Embedding.CacheEnabled && redisClient != nil {
		embedder = llm.NewCachedEmbeddingProvider(embedder, redisClient, &llm.EmbeddingCacheConfig{
			Enabled:   true,
			TTL:       opts.Embedding.CacheTTL,
			KeyPrefix: "helpdesk:emb:",
		})
		logger.Info("Embedding cache enabled")
	}

	// 6. 会话存储
	var sessions store.SessionStore
	if opts.Session.Backend == "redis" {
		sessions = store.NewRedisSessionStore(redisClient, opts.Session.TTL)
	} else {
		sessions = store.NewMemorySessionStore(opts.Session.TTL)
	}
	defer sessions.Close()

	// 7. 初始化 Biz 层
	if err := os.MkdirAll(filepath.Dir(opts.Helpdesk.ExportPath), 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	export := biz.NewExportFile(opts.Helpdesk.ExportPath)
	matcher := biz.NewMatcherService(embedder, index, opts.Helpdesk.MatchThreshold, opts.Helpdesk.TopK)
	engine := biz.NewSyncEngine(factory, index, export, matcher)
	incidents := biz.NewIncidentService(factory)
	conversation := biz.NewConversationService(sessions, incidents, engine, matcher)
	logger.Info("Business layer initialized")

	// 启动时以导出文件为准做一次全量同步, 文件中尚未入库或未建向量的条目
	// 会在这里补齐。失败不阻塞启动, 可通过 /v1/kb/sync 手工重试。
	if report, err := engine.ForceSync(ctx); err != nil {
		logger.Errorw("启动时知识库同步失败", "error", err)
	} else {
		logger.Infow("启动时知识库同步完成",
			"file_entries", report.FileEntries,
			"reembedded", report.Reembedded,
			"records_created", report.RecordsCreated,
		)
	}

	// 8. 导出文件监听
	if opts.Helpdesk.WatchExport {
		watcher, err := biz.NewExportWatcher(export, func(ctx context.Context) {
			if _, err := engine.ForceSync(ctx); err != nil {
				logger.Errorw("resync after external edit failed", "error", err)
			}
		})
		if err != nil {
			return fmt.Errorf("failed to watch export file: %w", err)
		}
		defer watcher.Close()
		go watcher.Run(ctx)
		logger.Infow("Export watcher started", "path", opts.Helpdesk.ExportPath)
	}

	// 9. 初始化 Handler 层
	chatHandler := handler.NewChatHandler(conversation)
	incidentHandler := handler.NewIncidentHandler(incidents)
	kbHandler := handler.NewKBHandler(engine)
	logger.Info("Handler layer initialized")

	// 10. HTTP 服务器
	gin.SetMode(opts.HTTP.Mode)
	httpEngine := gin.New()
	httpEngine.Use(middleware.RequestID(), middleware.Logger(), middleware.Recovery())
	router.Register(httpEngine, chatHandler, incidentHandler, kbHandler)

	srv := &http.Server{
		Addr:         opts.HTTP.Addr,
		Handler:      httpEngine,
		ReadTimeout:  opts.HTTP.ReadTimeout,
		WriteTimeout: opts.HTTP.WriteTimeout,
		IdleTimeout:  opts.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("Helpdesk service is ready", "addr", opts.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down helpdesk service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.HTTP.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newStoreFactory(ctx context.Context, opts *Options) (store.Factory, error) {
	if opts.Database.Backend == "mongo" {
		return store.NewMongoFactory(ctx, opts.Database.Mongo.URI, opts.Database.Mongo.Database)
	}
	return store.GetFactory(opts.Database.Driver, opts.Database.DSN)
}

func newVectorIndex(ctx context.Context, opts *Options) (store.VectorIndex, error) {
	if opts.Vector.Backend != "milvus" {
		return store.NewMemoryIndex(), nil
	}
	client, err := milvus.New(opts.Milvus)
	if err != nil {
		return nil, err
	}
	return store.NewMilvusIndex(ctx, client, opts.Vector.Collection, opts.Vector.Dimension)
}
