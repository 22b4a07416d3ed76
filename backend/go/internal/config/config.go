package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AppInfo holds basic information about the running application.
type AppInfo struct {
	Name        string `yaml:"name"`        // Application name, e.g. "accord"
	Version     string `yaml:"version"`     // Application version
	Environment string `yaml:"environment"` // "development" or "production"
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"` // Listen address, e.g. ":8080"
	Mode    string `yaml:"mode"`    // Gin mode: "debug", "release" or "test"
}

// LoggerConfig holds the logger settings.
type LoggerConfig struct {
	Level string `yaml:"level"` // "debug", "info", "warn" or "error"
}

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MySQLConfig holds the MySQL connection settings.
type MySQLConfig struct {
	Address         string `yaml:"address"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	Database        string `yaml:"database"`
	MaxOpenConns    int    `yaml:"maxOpenConns"`
	MaxIdleConns    int    `yaml:"maxIdleConns"`
	ConnMaxLifetime int    `yaml:"connMaxLifetime"` // seconds
}

// MinIOConfig holds the MinIO object storage settings.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"` // bucket for uploaded document originals
	Secure    bool   `yaml:"secure"`
}

// MongoConfig holds the MongoDB connection settings.
type MongoConfig struct {
	Address  string `yaml:"address"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// KafkaConfig holds the Kafka settings for the audit event stream.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topics  []string `yaml:"topics"`
}

// DatabaseConfigs groups all datastore configurations.
type DatabaseConfigs struct {
	Redis   RedisConfig `yaml:"redis"`
	MySQL   MySQLConfig `yaml:"mysql"`
	MinIO   MinIOConfig `yaml:"minio"`
	MongoDB MongoConfig `yaml:"mongodb"`
	Kafka   KafkaConfig `yaml:"kafka"`
}

// AuthConfig holds JWT authentication settings.
type AuthConfig struct {
	JwtSecret string `yaml:"jwtSecret"`
	Issuer    string `yaml:"issuer"`
	Audience  string `yaml:"audience"`
	TokenTTL  int    `yaml:"tokenTTL"` // token lifetime in seconds
}

// GeminiConfig holds Google Gemini credentials and model selection.
type GeminiConfig struct {
	APIKey string `yaml:"apiKey"`
	Model  string `yaml:"model"`
}

// OpenAIConfig holds OpenAI credentials and model selection.
type OpenAIConfig struct {
	APIKey  string `yaml:"apiKey"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"baseURL"` // optional, for OpenAI-compatible gateways
}

// OllamaConfig holds the settings for a local Ollama deployment.
type OllamaConfig struct {
	Model   string `yaml:"model"`
	BaseURL string `yaml:"baseURL"`
}

// LLMConfig selects and configures the generative model provider.
type LLMConfig struct {
	Provider string `yaml:"provider"` // "gemini", "openai", "ollama" or "local"
	// AnswerConfidence is reported by adapters for successful generations;
	// provider APIs expose no calibrated confidence of their own.
	AnswerConfidence float64      `yaml:"answerConfidence"`
	Gemini           GeminiConfig `yaml:"gemini"`
	OpenAI           OpenAIConfig `yaml:"openai"`
	Ollama           OllamaConfig `yaml:"ollama"`
}

// EmbeddingCacheConfig sizes the in-process embedding cache.
type EmbeddingCacheConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Capacity int    `yaml:"capacity"`
	TTL      string `yaml:"ttl"` // e.g. "10m"
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider  string               `yaml:"provider"`  // "gemini", "openai", "ollama" or "local"
	Dimension int                  `yaml:"dimension"` // system-wide vector dimension D
	Cache     EmbeddingCacheConfig `yaml:"cache"`
	Gemini    GeminiConfig         `yaml:"gemini"`
	OpenAI    OpenAIConfig         `yaml:"openai"`
	Ollama    OllamaConfig         `yaml:"ollama"`
}

// SearchConfig holds the retrieval defaults used when a request omits them.
type SearchConfig struct {
	DefaultTopK         int     `yaml:"defaultTopK"`
	SimilarityThreshold float64 `yaml:"similarityThreshold"`
	ExcerptLength       int     `yaml:"excerptLength"` // excerpt bound in characters
}

// QAConfig holds question answering settings.
type QAConfig struct {
	NoAnswerText    string `yaml:"noAnswerText"`    // answer used when nothing clears the threshold
	RedactResponses bool   `yaml:"redactResponses"` // run PII redaction over Q&A responses
}

// PIIConfig controls PII detection and redaction.
type PIIConfig struct {
	Enabled bool `yaml:"enabled"`
	// Patterns lists the detection patterns applied during redaction, in
	// order: "ssn", "email", "phone", "credit_card", "ip_address".
	Patterns []string `yaml:"patterns"`
}

// BloomConfig sizes the ingestion duplicate-detection filter.
type BloomConfig struct {
	ExpectedItems     uint    `yaml:"expectedItems"`
	FalsePositiveRate float64 `yaml:"falsePositiveRate"`
}

// IngestConfig holds document ingestion settings.
type IngestConfig struct {
	MaxFileSizeMB int         `yaml:"maxFileSizeMB"`
	RedactPII     bool        `yaml:"redactPII"` // redact detected PII in stored text
	Bloom         BloomConfig `yaml:"bloom"`
}

// FineTuneConfig holds fine-tuning dataset handoff settings.
type FineTuneConfig struct {
	DatasetBucket string  `yaml:"datasetBucket"` // MinIO bucket for training datasets
	MinConfidence float64 `yaml:"minConfidence"` // default confidence floor for pair extraction
	MinSamples    int     `yaml:"minSamples"`    // default minimum pairs for a dataset build
	BaseModel     string  `yaml:"baseModel"`     // default base model recorded on new jobs
}

// UnidocConfig holds the optional unioffice metered license key used for
// DOCX text extraction.
type UnidocConfig struct {
	LicenseKey string `yaml:"licenseKey"`
}

// MiddlewareConfig groups the HTTP middleware configurations.
type MiddlewareConfig struct {
	RateLimiter    RateLimiterConfig    `yaml:"rateLimiter"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker"`
}

// RateLimiterConfig selects and configures a rate limiting algorithm.
type RateLimiterConfig struct {
	Enabled        bool                 `yaml:"enabled"`
	Algorithm      string               `yaml:"algorithm"` // "fixedWindow", "slidingLog", "slidingCounter", "leakyBucket", "tokenBucket"
	FixedWindow    FixedWindowConfig    `yaml:"fixedWindow"`
	SlidingLog     SlidingLogConfig     `yaml:"slidingLog"`
	SlidingCounter SlidingCounterConfig `yaml:"slidingCounter"`
	LeakyBucket    LeakyBucketConfig    `yaml:"leakyBucket"`
	TokenBucket    TokenBucketConfig    `yaml:"tokenBucket"`
}

// FixedWindowConfig configures the fixed window counter algorithm.
type FixedWindowConfig struct {
	Limit  int    `yaml:"limit"`
	Window string `yaml:"window"` // e.g. "1m", "30s"
}

// SlidingLogConfig configures the sliding window log algorithm.
type SlidingLogConfig struct {
	Limit  int    `yaml:"limit"`
	Window string `yaml:"window"`
}

// SlidingCounterConfig configures the sliding window counter algorithm.
type SlidingCounterConfig struct {
	Limit      int    `yaml:"limit"`
	Window     string `yaml:"window"`
	NumBuckets int    `yaml:"numBuckets"`
}

// LeakyBucketConfig configures the leaky bucket algorithm.
type LeakyBucketConfig struct {
	Rate     float64 `yaml:"rate"` // drains per second
	Capacity int     `yaml:"capacity"`
}

// TokenBucketConfig configures the token bucket algorithm.
type TokenBucketConfig struct {
	Rate     float64 `yaml:"rate"` // tokens per second
	Capacity int     `yaml:"capacity"`
}

// CircuitBreakerConfig configures the circuit breaker middleware.
type CircuitBreakerConfig struct {
	Enabled          bool   `yaml:"enabled"`
	FailureThreshold uint32 `yaml:"failureThreshold"`
	SuccessThreshold uint32 `yaml:"successThreshold"`
	Timeout          string `yaml:"timeout"` // e.g. "30s"
}

// AppConfig is the root of the YAML configuration file.
type AppConfig struct {
	App        AppInfo          `yaml:"app"`
	Server     ServerConfig     `yaml:"server"`
	Logger     LoggerConfig     `yaml:"logger"`
	Auth       AuthConfig       `yaml:"auth"`
	LLM        LLMConfig        `yaml:"llm"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Search     SearchConfig     `yaml:"search"`
	QA         QAConfig         `yaml:"qa"`
	PII        PIIConfig        `yaml:"pii"`
	Ingest     IngestConfig     `yaml:"ingest"`
	FineTune   FineTuneConfig   `yaml:"finetune"`
	Unidoc     UnidocConfig     `yaml:"unidoc"`
	Databases  DatabaseConfigs  `yaml:"databases"`
	Middleware MiddlewareConfig `yaml:"middleware"`
}

// DefaultNoAnswerText is used when the configuration does not override it.
const DefaultNoAnswerText = "No relevant information was found in the compliance document repository to answer this question."

// LoadConfig reads and parses the YAML configuration file at the given path,
// then fills in defaults for any setting the file leaves unset.
func LoadConfig(path string) (*AppConfig, error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(yamlFile, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// applyDefaults fills zero-valued settings with their documented defaults.
func (cfg *AppConfig) applyDefaults() {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Auth.TokenTTL <= 0 {
		cfg.Auth.TokenTTL = 86400 // 24 hours
	}
	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "accord"
	}
	if cfg.LLM.AnswerConfidence <= 0 {
		cfg.LLM.AnswerConfidence = 0.85
	}
	if cfg.Embedding.Dimension <= 0 {
		cfg.Embedding.Dimension = 768
	}
	if cfg.Embedding.Cache.Capacity <= 0 {
		cfg.Embedding.Cache.Capacity = 1024
	}
	if cfg.Embedding.Cache.TTL == "" {
		cfg.Embedding.Cache.TTL = "10m"
	}
	if cfg.Search.DefaultTopK <= 0 {
		cfg.Search.DefaultTopK = 5
	}
	if cfg.Search.SimilarityThreshold <= 0 {
		cfg.Search.SimilarityThreshold = 0.7
	}
	if cfg.Search.ExcerptLength <= 0 {
		cfg.Search.ExcerptLength = 500
	}
	if cfg.QA.NoAnswerText == "" {
		cfg.QA.NoAnswerText = DefaultNoAnswerText
	}
	if len(cfg.PII.Patterns) == 0 {
		cfg.PII.Patterns = []string{"ssn", "email", "phone", "credit_card"}
	}
	if cfg.Ingest.MaxFileSizeMB <= 0 {
		cfg.Ingest.MaxFileSizeMB = 25
	}
	if cfg.Ingest.Bloom.ExpectedItems == 0 {
		cfg.Ingest.Bloom.ExpectedItems = 100000
	}
	if cfg.Ingest.Bloom.FalsePositiveRate <= 0 {
		cfg.Ingest.Bloom.FalsePositiveRate = 0.01
	}
	if cfg.FineTune.MinConfidence <= 0 {
		cfg.FineTune.MinConfidence = 0.7
	}
	if cfg.FineTune.DatasetBucket == "" {
		cfg.FineTune.DatasetBucket = "accord-finetune-datasets"
	}
	if cfg.FineTune.MinSamples <= 0 {
		cfg.FineTune.MinSamples = 10
	}
	if cfg.FineTune.BaseModel == "" {
		cfg.FineTune.BaseModel = "gemini-1.5-pro"
	}
}
