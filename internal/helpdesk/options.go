// Package app provides the Helpdesk Service application.
package app

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	httpopts "github.com/kart-io/helpdesk-x/pkg/options/http"
	logopts "github.com/kart-io/helpdesk-x/pkg/options/logger"
	milvusopts "github.com/kart-io/helpdesk-x/pkg/options/milvus"
	mongoopts "github.com/kart-io/helpdesk-x/pkg/options/mongodb"
	redisopts "github.com/kart-io/helpdesk-x/pkg/options/redis"
)

// Options contains all Helpdesk Service options.
type Options struct {
	// HTTP contains HTTP server configuration.
	HTTP *httpopts.Options `json:"http" mapstructure:"http"`

	// Log contains logger configuration.
	Log *logopts.Options `json:"log" mapstructure:"log"`

	// Database contains record store configuration.
	Database *DatabaseOptions `json:"database" mapstructure:"database"`

	// Milvus contains Milvus configuration, used when vector.backend is milvus.
	Milvus *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// Vector contains vector index configuration.
	Vector *VectorOptions `json:"vector" mapstructure:"vector"`

	// Session contains session store configuration.
	Session *SessionOptions `json:"session" mapstructure:"session"`

	// Redis contains Redis configuration, used for sessions and the
	// embedding cache when enabled.
	Redis *redisopts.Options `json:"redis" mapstructure:"redis"`

	// Embedding contains embedding provider configuration.
	Embedding *LLMProviderOptions `json:"embedding" mapstructure:"embedding"`

	// Helpdesk contains helpdesk-specific configuration.
	Helpdesk *HelpdeskOptions `json:"helpdesk" mapstructure:"helpdesk"`
}

// DatabaseOptions 记录存储配置。
type DatabaseOptions struct {
	// Backend 存储后端 (gorm 或 mongo)。
	Backend string `json:"backend" mapstructure:"backend"`

	// Driver gorm 驱动 (sqlite, mysql, postgres)。
	Driver string `json:"driver" mapstructure:"driver"`

	// DSN 数据库连接串。
	DSN string `json:"dsn" mapstructure:"dsn"`

	// Mongo MongoDB 连接配置, backend 为 mongo 时生效。
	Mongo *mongoopts.Options `json:"mongo" mapstructure:"mongo"`
}

// NewDatabaseOptions 创建默认记录存储配置。
func NewDatabaseOptions() *DatabaseOptions {
	return &DatabaseOptions{
		Backend: "gorm",
		Driver:  "sqlite",
		DSN:     "_output/helpdesk.db",
		Mongo:   mongoopts.NewOptions(),
	}
}

// VectorOptions 向量索引配置。
type VectorOptions struct {
	// Backend 索引后端 (milvus 或 memory)。
	Backend string `json:"backend" mapstructure:"backend"`

	// Collection Milvus 集合名。
	Collection string `json:"collection" mapstructure:"collection"`

	// Dimension 向量维度, 必须与 embedding 模型输出一致。
	Dimension int `json:"dimension" mapstructure:"dimension"`
}

// NewVectorOptions 创建默认向量索引配置。
func NewVectorOptions() *VectorOptions {
	return &VectorOptions{
		Backend:    "memory",
		Collection: "helpdesk_kb",
		Dimension:  768, // nomic-embed-text dimension
	}
}

// SessionOptions 会话存储配置。
type SessionOptions struct {
	// Backend 会话后端 (memory 或 redis)。
	Backend string `json:"backend" mapstructure:"backend"`

	// TTL 会话过期时间。
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`
}

// NewSessionOptions 创建默认会话配置。
func NewSessionOptions() *SessionOptions {
	return &SessionOptions{
		Backend: "memory",
		TTL:     30 * time.Minute,
	}
}

// LLMProviderOptions 定义 LLM 供应商配置。
type LLMProviderOptions struct {
	// Provider 供应商名称（ollama, openai 等）。
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL API 基础地址。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey API 密钥（OpenAI 等需要）。
	APIKey string `json:"api-key" mapstructure:"api-key"`

	// Model 使用的模型名称。
	Model string `json:"model" mapstructure:"model"`

	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries 最大重试次数。
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`

	// CacheEnabled 是否启用基于 Redis 的向量缓存。
	CacheEnabled bool `json:"cache-enabled" mapstructure:"cache-enabled"`

	// CacheTTL 向量缓存过期时间。
	CacheTTL time.Duration `json:"cache-ttl" mapstructure:"cache-ttl"`
}

// NewLLMProviderOptions 创建默认 LLM 供应商配置。
func NewLLMProviderOptions() *LLMProviderOptions {
	return &LLMProviderOptions{
		Provider:   "ollama",
		BaseURL:    "http://localhost:11434",
		Model:      "nomic-embed-text",
		Timeout:    120 * time.Second,
		MaxRetries: 3,
		CacheTTL:   24 * time.Hour,
	}
}

// ToConfigMap 转换为配置 map，用于供应商工厂。
func (o *LLMProviderOptions) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":    o.BaseURL,
		"api_key":     o.APIKey,
		"embed_model": o.Model,
		"timeout":     o.Timeout,
		"max_retries": o.MaxRetries,
	}
}

// HelpdeskOptions contains helpdesk-specific configuration.
type HelpdeskOptions struct {
	// MatchThreshold is the minimum similarity for a knowledge base match.
	MatchThreshold float32 `json:"match-threshold" mapstructure:"match-threshold"`

	// TopK is the number of candidates retrieved per match.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// ExportPath is the flat text knowledge base export location.
	ExportPath string `json:"export-path" mapstructure:"export-path"`

	// WatchExport enables resync on external edits of the export file.
	WatchExport bool `json:"watch-export" mapstructure:"watch-export"`
}

// NewHelpdeskOptions creates new HelpdeskOptions with defaults.
func NewHelpdeskOptions() *HelpdeskOptions {
	return &HelpdeskOptions{
		MatchThreshold: 0.35,
		TopK:           3,
		ExportPath:     "_output/kb_export.txt",
		WatchExport:    true,
	}
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	httpOpts := httpopts.NewOptions()
	httpOpts.Addr = ":8083"

	return &Options{
		HTTP:      httpOpts,
		Log:       logopts.NewOptions(),
		Database:  NewDatabaseOptions(),
		Milvus:    milvusopts.NewOptions(),
		Vector:    NewVectorOptions(),
		Session:   NewSessionOptions(),
		Redis:     redisopts.NewOptions(),
		Embedding: NewLLMProviderOptions(),
		Helpdesk:  NewHelpdeskOptions(),
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	o.HTTP.AddFlags(fs)
	o.Log.AddFlags(fs)
	o.Milvus.AddFlags(fs)
	o.Redis.AddFlags(fs)
	o.Database.Mongo.AddFlags(fs, "database")

	fs.StringVar(&o.Database.Backend, "database.backend", o.Database.Backend, "Record store backend (gorm, mongo)")
	fs.StringVar(&o.Database.Driver, "database.driver", o.Database.Driver, "GORM driver (sqlite, mysql, postgres)")
	fs.StringVar(&o.Database.DSN, "database.dsn", o.Database.DSN, "Database connection string")

	fs.StringVar(&o.Vector.Backend, "vector.backend", o.Vector.Backend, "Vector index backend (milvus, memory)")
	fs.StringVar(&o.Vector.Collection, "vector.collection", o.Vector.Collection, "Milvus collection name")
	fs.IntVar(&o.Vector.Dimension, "vector.dimension", o.Vector.Dimension, "Embedding vector dimension")

	fs.StringVar(&o.Session.Backend, "session.backend", o.Session.Backend, "Session store backend (memory, redis)")
	fs.DurationVar(&o.Session.TTL, "session.ttl", o.Session.TTL, "Session idle expiry")

	fs.StringVar(&o.Embedding.Provider, "embedding.provider", o.Embedding.Provider, "Embedding provider (ollama, openai)")
	fs.StringVar(&o.Embedding.BaseURL, "embedding.base-url", o.Embedding.BaseURL, "Embedding API base URL")
	fs.StringVar(&o.Embedding.APIKey, "embedding.api-key", o.Embedding.APIKey, "Embedding API key (for OpenAI)")
	fs.StringVar(&o.Embedding.Model, "embedding.model", o.Embedding.Model, "Embedding model name")
	fs.DurationVar(&o.Embedding.Timeout, "embedding.timeout", o.Embedding.Timeout, "Embedding request timeout")
	fs.IntVar(&o.Embedding.MaxRetries, "embedding.max-retries", o.Embedding.MaxRetries, "Embedding max retries")
	fs.BoolVar(&o.Embedding.CacheEnabled, "embedding.cache-enabled", o.Embedding.CacheEnabled, "Cache embeddings in Redis")
	fs.DurationVar(&o.Embedding.CacheTTL, "embedding.cache-ttl", o.Embedding.CacheTTL, "Embedding cache TTL")

	fs.Float32Var(&o.Helpdesk.MatchThreshold, "helpdesk.match-threshold", o.Helpdesk.MatchThreshold, "Minimum similarity for a KB match")
	fs.IntVar(&o.Helpdesk.TopK, "helpdesk.top-k", o.Helpdesk.TopK, "Number of match candidates to retrieve")
	fs.StringVar(&o.Helpdesk.ExportPath, "helpdesk.export-path", o.Helpdesk.ExportPath, "Knowledge base export file path")
	fs.BoolVar(&o.Helpdesk.WatchExport, "helpdesk.watch-export", o.Helpdesk.WatchExport, "Resync when the export file is edited externally")
}

// Validate validates the options.
func (o *Options) Validate() error {
	if err := o.Log.Validate(); err != nil {
		return err
	}
	if err := o.HTTP.Validate(); err != nil {
		return err
	}

	switch o.Database.Backend {
	case "gorm":
		switch o.Database.Driver {
		case "sqlite", "mysql", "postgres":
		default:
			return fmt.Errorf("database.driver must be one of sqlite, mysql, postgres")
		}
		if o.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required")
		}
	case "mongo":
		if errs := o.Database.Mongo.Validate(); len(errs) > 0 {
			return errs[0]
		}
	default:
		return fmt.Errorf("database.backend must be gorm or mongo")
	}

	switch o.Vector.Backend {
	case "milvus":
		if errs := o.Milvus.Validate(); len(errs) > 0 {
			return errs[0]
		}
	case "memory":
	default:
		return fmt.Errorf("vector.backend must be milvus or memory")
	}
	if o.Vector.Dimension <= 0 {
		return fmt.Errorf("vector.dimension must be positive")
	}

	switch o.Session.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("session.backend must be memory or redis")
	}
	if o.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl must be positive")
	}
	if o.Session.Backend == "redis" || o.Embedding.CacheEnabled {
		if err := o.Redis.Validate(); err != nil {
			return err
		}
	}

	if o.Embedding.Provider == "" {
		return fmt.Errorf("embedding.provider is required")
	}
	if o.Embedding.BaseURL == "" {
		return fmt.Errorf("embedding.base-url is required")
	}
	if o.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	// OpenAI 供应商需要 API key
	if o.Embedding.Provider == "openai" && o.Embedding.APIKey == "" {
		return fmt.Errorf("embedding.api-key is required for openai provider")
	}

	if o.Helpdesk.MatchThreshold <= 0 || o.Helpdesk.MatchThreshold >= 1 {
		return fmt.Errorf("helpdesk.match-threshold must be in (0, 1)")
	}
	if o.Helpdesk.TopK <= 0 {
		return fmt.Errorf("helpdesk.top-k must be positive")
	}
	if o.Helpdesk.ExportPath == "" {
		return fmt.Errorf("helpdesk.export-path is required")
	}
	return nil
}

// Complete completes the options.
func (o *Options) Complete() error {
	if o.Database.Backend == "mongo" {
		return o.Database.Mongo.Complete()
	}
	return nil
}
