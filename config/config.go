package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	RelevanceThresholdMode = "threshold"
	RelevanceJudgeMode     = "judge"
)

type LLMConfig struct {
	Provider string `validate:"oneof=ollama openai"`
	Model    string `validate:"required"`
}

type EmbeddingsConfig struct {
	Provider  string `validate:"oneof=ollama openai"`
	Model     string `validate:"required"`
	Dimension int    `validate:"gt=0"`
}

// Pipeline holds the tunable knobs of the ingestion and query pipelines.
// Values are validated once at startup so the stages never re-check them.
type Pipeline struct {
	ChunkSize          int     `validate:"gt=0"`
	ChunkOverlap       int     `validate:"gte=0,ltfield=ChunkSize"`
	QueryVariants      int     `validate:"gte=0"`
	QueryK             int     `validate:"gt=0"`
	TopN               int     `validate:"gt=0"`
	RelevanceMode      string  `validate:"oneof=threshold judge"`
	RelevanceThreshold float64 `validate:"gte=0,lte=1"`
	ContextTokenBudget int     `validate:"gt=0"`
}

type Config struct {
	PostgresDSN string `validate:"required"`
	Neo4jURI    string
	Neo4jUser   string
	Neo4jPass   string

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string

	LLM        LLMConfig
	Embeddings EmbeddingsConfig
	Pipeline   Pipeline

	DataDir     string
	CallTimeout time.Duration `validate:"gt=0"`
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		PostgresDSN: getEnv("POSTGRES_DSN", "postgres://localhost:5432/doc-agent?sslmode=disable"),
		Neo4jURI:    getEnv("NEO4J_URI", ""),
		Neo4jUser:   getEnv("NEO4J_USERNAME", "neo4j"),
		Neo4jPass:   getEnv("NEO4J_PASSWORD", "password"),

		OllamaHost:    getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),

		LLM: LLMConfig{
			Provider: getEnv("LLM_PROVIDER", ProviderOllama),
			Model:    getEnv("LLM_MODEL", "llama3.1"),
		},
		Embeddings: EmbeddingsConfig{
			Provider:  getEnv("EMBEDDINGS_PROVIDER", ProviderOllama),
			Model:     getEnv("EMBEDDINGS_MODEL", "nomic-embed-text"),
			Dimension: getEnvInt("EMBEDDINGS_DIMENSION", 768),
		},
		Pipeline: Pipeline{
			ChunkSize:          getEnvInt("CHUNK_SIZE", 2000),
			ChunkOverlap:       getEnvInt("CHUNK_OVERLAP", 400),
			QueryVariants:      getEnvInt("QUERY_VARIANTS", 4),
			QueryK:             getEnvInt("QUERY_K", 10),
			TopN:               getEnvInt("RETRIEVAL_TOP_N", 8),
			RelevanceMode:      getEnv("RELEVANCE_MODE", RelevanceThresholdMode),
			RelevanceThreshold: getEnvFloat("RELEVANCE_THRESHOLD", 0.35),
			ContextTokenBudget: getEnvInt("CONTEXT_TOKEN_BUDGET", 3000),
		},

		DataDir:     getEnv("DATA_DIR", "./data"),
		CallTimeout: getEnvDuration("CALL_TIMEOUT", 60*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			first := errs[0]
			return fmt.Errorf("config: field %s failed on %q", first.Namespace(), first.Tag())
		}
		return fmt.Errorf("config: %w", err)
	}
	if c.LLM.Provider == ProviderOpenAI && c.OpenAIAPIKey == "" {
		return fmt.Errorf("config: openai llm provider selected but OPENAI_API_KEY not set")
	}
	if c.Embeddings.Provider == ProviderOpenAI && c.OpenAIAPIKey == "" {
		return fmt.Errorf("config: openai embeddings provider selected but OPENAI_API_KEY not set")
	}
	return nil
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

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
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
