package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	PostgresDSN string
	DataDir     string
	HTTPAddr    string

	OpenAIAPIKey  string
	OpenAIBaseURL string

	LLM        LLMConfig
	Embeddings EmbeddingsConfig
	Chunking   ChunkingConfig
	Agent      AgentConfig
}

type LLMConfig struct {
	Model string
}

type EmbeddingsConfig struct {
	Model     string
	Dimension int
	BatchSize int
}

type ChunkingConfig struct {
	Size    int
	Overlap int
}

type AgentConfig struct {
	RetrievalK    int
	MaxToolRounds int
	MaxAttempts   int
	BackoffBase   time.Duration
	CallTimeout   time.Duration
}

func Load() Config {
	return Config{
		PostgresDSN:   getEnv("POSTGRES_DSN", "postgres://localhost:5432/cropmind?sslmode=disable"),
		DataDir:       getEnv("DATA_DIR", "docs"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		LLM: LLMConfig{
			Model: getEnv("LLM_MODEL", "gpt-4o"),
		},
		Embeddings: EmbeddingsConfig{
			Model:     getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			Dimension: getEnvInt("EMBEDDING_DIMENSION", 1536),
			BatchSize: getEnvInt("EMBEDDING_BATCH_SIZE", 50),
		},
		Chunking: ChunkingConfig{
			Size:    getEnvInt("CHUNK_SIZE", 1000),
			Overlap: getEnvInt("CHUNK_OVERLAP", 200),
		},
		Agent: AgentConfig{
			RetrievalK:    getEnvInt("RETRIEVAL_K", 4),
			MaxToolRounds: getEnvInt("MAX_TOOL_ROUNDS", 3),
			MaxAttempts:   getEnvInt("LLM_MAX_ATTEMPTS", 3),
			BackoffBase:   getEnvDuration("LLM_BACKOFF_BASE", 500*time.Millisecond),
			CallTimeout:   getEnvDuration("LLM_CALL_TIMEOUT", 60*time.Second),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
