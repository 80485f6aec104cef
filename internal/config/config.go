// Package config loads the service's entire configuration surface from the
// environment (with an optional .env overlay), once at startup, into an
// immutable struct — following the teacher's env-first loader idiom
// (github.com/joho/godotenv + small parseInt/parseBool helpers) scaled down
// to exactly the configuration surface named in spec.md §6.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is immutable once returned by Load.
type Config struct {
	// API security
	APIKey       string
	CORSOrigins  []string
	RateLimitRPM int

	// Vector store (C5)
	QdrantHost       string
	QdrantPort       int
	QdrantCollection string
	QdrantAPIKey     string
	QdrantMetric     string
	HNSWM            int
	HNSWEfConstruct  int
	HNSWEfSearch     int

	// Embedding oracle (C9)
	Embedding EmbeddingConfig

	// LLM oracle (C9)
	LLM LLMConfig

	// Search defaults (C8)
	SearchTopK         int
	SearchScoreThresh  float64
	SearchTimeoutSecs  int

	// Chunker (C4)
	ChunkMaxTokens int
	ChunkOverlap   int

	// Temporal extractor (C1)
	DefaultEffectiveDays int

	// PDF parser (C3)
	EnableOCR  bool
	OCRLang    string

	// Logging (ambient)
	LogLevel    string
	LogFile     string

	// Ingestion (C7)
	IngestionBatchSize int
	NumWorkers         int
	IngestionLogPath   string

	// HTTP server (C10)
	APIHost string
	APIPort int

	// Observability (ambient)
	Obs ObsConfig
}

// ObsConfig configures the OpenTelemetry tracing/metrics exporters
// (internal/observability.InitOTel). OTLP empty disables export entirely.
type ObsConfig struct {
	OTLP           string
	ServiceName    string
	ServiceVersion string
	Environment    string
}

// EmbeddingConfig configures the embedding oracle HTTP client
// (internal/embedding), an OpenAI-compatible /embeddings endpoint.
type EmbeddingConfig struct {
	BaseURL   string
	Path      string
	APIHeader string
	APIKey    string
	Model     string
	Dimension int
	BatchSize int
	MaxLength int
	Timeout   int // seconds
}

// LLMConfig configures the answer-synthesis LLM oracle.
type LLMConfig struct {
	Provider    string // "anthropic" | "openai"
	BaseURL     string // only used by the openai-compatible provider (e.g. Ollama)
	APIKey      string
	Model       string
	Temperature float64
	TopP        float64
	MaxTokens   int
	TimeoutSecs int
}

// Load reads configuration from the process environment, overlaying a
// local .env file when present (godotenv.Overload semantics: .env wins over
// pre-existing process env, matching the teacher's loader). Load is called
// exactly once at startup; the returned Config is never mutated afterward.
func Load() (*Config, error) {
	_ = godotenv.Overload()

	cfg := &Config{
		APIKey:       strings.TrimSpace(os.Getenv("API_KEY")),
		CORSOrigins:  splitCSV(firstNonEmpty(os.Getenv("CORS_ORIGINS"), "http://localhost:3000,http://localhost:8080")),
		RateLimitRPM: parseInt(os.Getenv("RATE_LIMIT"), 100),

		QdrantHost:       firstNonEmpty(os.Getenv("QDRANT_HOST"), "localhost"),
		QdrantPort:       parseInt(os.Getenv("QDRANT_PORT"), 6334),
		QdrantCollection: firstNonEmpty(os.Getenv("QDRANT_COLLECTION_NAME"), "aviation_regulations"),
		QdrantAPIKey:     os.Getenv("QDRANT_API_KEY"),
		QdrantMetric:     firstNonEmpty(os.Getenv("QDRANT_METRIC"), "cosine"),
		HNSWM:            parseInt(os.Getenv("HNSW_M"), 16),
		HNSWEfConstruct:  parseInt(os.Getenv("HNSW_EF_CONSTRUCT"), 100),
		HNSWEfSearch:     parseInt(os.Getenv("HNSW_EF_SEARCH"), 64),

		Embedding: EmbeddingConfig{
			BaseURL:   firstNonEmpty(os.Getenv("EMBEDDING_BASE_URL"), os.Getenv("OLLAMA_HOST"), "http://localhost:11434"),
			Path:      firstNonEmpty(os.Getenv("EMBEDDING_PATH"), "/v1/embeddings"),
			APIHeader: os.Getenv("EMBEDDING_API_HEADER"),
			APIKey:    os.Getenv("EMBEDDING_API_KEY"),
			Model:     firstNonEmpty(os.Getenv("EMBEDDING_MODEL"), "rufimelo/Legal-BERTimbau-sts-large-ma-v3"),
			Dimension: parseInt(os.Getenv("EMBEDDING_DIMENSION"), 1024),
			BatchSize: parseInt(os.Getenv("EMBEDDING_BATCH_SIZE"), 32),
			MaxLength: parseInt(os.Getenv("EMBEDDING_MAX_LENGTH"), 512),
			Timeout:   parseInt(os.Getenv("EMBEDDING_TIMEOUT"), 30),
		},

		LLM: LLMConfig{
			Provider:    firstNonEmpty(os.Getenv("LLM_PROVIDER"), "anthropic"),
			BaseURL:     os.Getenv("OLLAMA_HOST"),
			APIKey:      os.Getenv("LLM_API_KEY"),
			Model:       firstNonEmpty(os.Getenv("LLM_MODEL"), os.Getenv("OLLAMA_MODEL")),
			Temperature: parseFloat(os.Getenv("LLM_TEMPERATURE"), 0.3),
			TopP:        parseFloat(os.Getenv("LLM_TOP_P"), 0.9),
			MaxTokens:   parseInt(os.Getenv("LLM_MAX_TOKENS"), 500),
			TimeoutSecs: parseInt(os.Getenv("LLM_TIMEOUT"), 60),
		},

		SearchTopK:        parseInt(os.Getenv("SEARCH_TOP_K"), 5),
		SearchScoreThresh: parseFloat(os.Getenv("SEARCH_SCORE_THRESHOLD"), 0.7),
		SearchTimeoutSecs: parseInt(os.Getenv("SEARCH_TIMEOUT"), 10),

		ChunkMaxTokens: parseInt(os.Getenv("CHUNK_MAX_TOKENS"), 512),
		ChunkOverlap:   parseInt(os.Getenv("CHUNK_OVERLAP"), 50),

		DefaultEffectiveDays: parseInt(os.Getenv("DEFAULT_EFFECTIVE_DAYS"), 90),

		EnableOCR: parseBool(os.Getenv("ENABLE_OCR"), false),
		OCRLang:   firstNonEmpty(os.Getenv("OCR_LANGUAGE"), "por"),

		LogLevel: firstNonEmpty(os.Getenv("LOG_LEVEL"), "info"),
		LogFile:  os.Getenv("LOG_FILE"),

		IngestionBatchSize: parseInt(os.Getenv("INGESTION_BATCH_SIZE"), 100),
		NumWorkers:         parseInt(os.Getenv("NUM_WORKERS"), 4),
		IngestionLogPath:   firstNonEmpty(os.Getenv("INGESTION_LOG_PATH"), "data/ingestion.log.jsonl"),

		APIHost: firstNonEmpty(os.Getenv("API_HOST"), "0.0.0.0"),
		APIPort: parseInt(os.Getenv("API_PORT"), 8000),

		Obs: ObsConfig{
			OTLP:           os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			ServiceName:    firstNonEmpty(os.Getenv("OTEL_SERVICE_NAME"), "aviation-rag"),
			ServiceVersion: firstNonEmpty(os.Getenv("OTEL_SERVICE_VERSION"), "dev"),
			Environment:    firstNonEmpty(os.Getenv("OTEL_ENVIRONMENT"), "development"),
		},
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("config: API_KEY is required")
	}
	return cfg, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func parseInt(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func parseFloat(s string, def float64) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}

func parseBool(s string, def bool) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return b
}
