package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var (
	ErrMissingRequired = errors.New("missing required configuration")
	ErrInvalidValue    = errors.New("invalid configuration value")
)

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"upao_user"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"upao_rag"`

	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	EnableAPI      bool   `envconfig:"ENABLE_API" default:"true"`
	EnableWorkers  bool   `envconfig:"ENABLE_WORKERS" default:"true"`
	WorkerInFlight int    `envconfig:"WORKER_MAX_IN_FLIGHT" default:"4"`
	MigrationPath  string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Gemini
	GeminiAPIKey       string `envconfig:"GEMINI_API_KEY"`
	LLMModel           string `envconfig:"LLM_MODEL" default:"gemini-2.0-flash"`
	EmbeddingModel     string `envconfig:"EMBEDDING_MODEL" default:"gemini-embedding-001"`
	EmbeddingDimension int    `envconfig:"EMBEDDING_DIMENSION" default:"3072"`
	EmbedBatchSize     int    `envconfig:"EMBED_BATCH_SIZE" default:"32"`
	EmbedConcurrency   int    `envconfig:"EMBED_CONCURRENCY" default:"4"`
	LLMRequestsPerMin  int    `envconfig:"LLM_REQUESTS_PER_MINUTE" default:"60"`

	// RAG defaults, overridable at runtime through settings
	RAG RAGDefaults

	// Originality check
	OriginalityThreshold  float64 `envconfig:"ORIGINALITY_PLAGIARISM_THRESHOLD" default:"0.70"`
	OriginalityTopK       int     `envconfig:"ORIGINALITY_TOP_K_PER_CHUNK" default:"3"`
	OriginalityNoiseFloor float64 `envconfig:"ORIGINALITY_NOISE_FLOOR" default:"0.35"`
	OriginalityMaxLLMDocs int     `envconfig:"ORIGINALITY_MAX_LLM_DOCS" default:"5"`
	OriginalityMinSimLLM  float64 `envconfig:"ORIGINALITY_MIN_SIM_FOR_LLM" default:"5.0"`

	// Ingestion
	AutoCategorize  bool `envconfig:"INGEST_AUTO_CATEGORIZE" default:"true"`
	SummarizeChunks int  `envconfig:"INGEST_SUMMARY_CHUNKS" default:"5"`
	MinChunkLength  int  `envconfig:"MIN_CHUNK_LENGTH" default:"50"`
	UnitTimeoutMins int  `envconfig:"UNIT_TIMEOUT_MINUTES" default:"15"`

	// Server
	ServerPort   int    `envconfig:"SERVER_PORT" default:"8081"`
	QueryLogPath string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

// RAGDefaults seeds the settings row on first boot and backs reads when the
// row cannot be loaded.
type RAGDefaults struct {
	ChunkSize                int     `envconfig:"RAG_CHUNK_SIZE" default:"1000"`
	ChunkOverlap             int     `envconfig:"RAG_CHUNK_OVERLAP" default:"200"`
	TopK                     int     `envconfig:"RAG_TOP_K" default:"5"`
	ScoreThreshold           float64 `envconfig:"RAG_SCORE_THRESHOLD" default:"0.30"`
	Temperature              float64 `envconfig:"RAG_TEMPERATURE" default:"0.3"`
	NumCtx                   int     `envconfig:"RAG_NUM_CTX" default:"4096"`
	CandidateMultiplier      int     `envconfig:"RAG_CANDIDATE_MULTIPLIER" default:"4"`
	CandidateThresholdFactor float64 `envconfig:"RAG_CANDIDATE_THRESHOLD_FACTOR" default:"0.70"`
	MaxChunksPerDoc          int     `envconfig:"RAG_MAX_CHUNKS_PER_DOC" default:"2"`
	EnableReflection         bool    `envconfig:"RAG_ENABLE_REFLECTION" default:"false"`
	EnableQueryExpansion     bool    `envconfig:"RAG_ENABLE_QUERY_EXPANSION" default:"true"`
}

func Load() (*Config, error) {
	// Missing files are fine, the shell may provide everything.
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	_ = godotenv.Load(filepath.Join(cwd, "../.env"))

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.RAG.ChunkSize > 0 && c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("%w: RAG_CHUNK_OVERLAP must be smaller than RAG_CHUNK_SIZE", ErrInvalidValue)
	}
	if c.OriginalityThreshold < 0 || c.OriginalityThreshold > 1 {
		return fmt.Errorf("%w: ORIGINALITY_PLAGIARISM_THRESHOLD must be between 0 and 1", ErrInvalidValue)
	}
	if c.RAG.ScoreThreshold < 0 || c.RAG.ScoreThreshold > 1 {
		return fmt.Errorf("%w: RAG_SCORE_THRESHOLD must be between 0 and 1", ErrInvalidValue)
	}
	return nil
}
