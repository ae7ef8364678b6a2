// Package profile holds the runtime configuration assembled from flags and
// environment variables.
package profile

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the retrieval engine.
type Profile struct {
	// Unified LLM configuration (OpenAI-compatible protocol).
	LLMProvider string // deepseek, openai, siliconflow, ollama
	LLMAPIKey   string
	LLMBaseURL  string // optional, has default per provider
	LLMModel    string
	LLMTimeout  int // seconds

	// Embedding configuration.
	EmbeddingModel      string
	EmbeddingAPIKey     string
	EmbeddingBaseURL    string
	EmbeddingDimensions int

	Mode   string
	Driver string // sqlite
	DSN    string

	// VectorDSN, when set, points the vector index at a pgvector database
	// instead of the in-memory index rebuilt from the chunk store.
	VectorDSN string

	Version string
}

// Provider defaults applied when QUILL_LLM_BASE_URL is not set.
var llmProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"deepseek": {
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
	},
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
	},
	"siliconflow": {
		BaseURL: "https://api.siliconflow.cn/v1",
		Model:   "Qwen/Qwen2.5-72B-Instruct",
	},
	"ollama": {
		BaseURL: "http://localhost:11434",
		Model:   "llama3.1",
	},
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.LLMProvider = getEnvOrDefault("QUILL_LLM_PROVIDER", "openai")
	p.LLMAPIKey = getEnvOrDefault("QUILL_LLM_API_KEY", "")
	p.LLMBaseURL = getEnvOrDefault("QUILL_LLM_BASE_URL", "")
	p.LLMModel = getEnvOrDefault("QUILL_LLM_MODEL", "")
	p.LLMTimeout = getEnvOrDefaultInt("QUILL_LLM_TIMEOUT_SECONDS", 120)

	if _, ok := llmProviderDefaults[p.LLMProvider]; !ok {
		slog.Warn("unknown LLM provider, using default: openai", "provider", p.LLMProvider)
		p.LLMProvider = "openai"
	}
	if defaults, ok := llmProviderDefaults[p.LLMProvider]; ok {
		if p.LLMBaseURL == "" {
			p.LLMBaseURL = defaults.BaseURL
		}
		if p.LLMModel == "" {
			p.LLMModel = defaults.Model
		}
	}

	p.EmbeddingModel = getEnvOrDefault("QUILL_EMBEDDING_MODEL", "BAAI/bge-m3")
	p.EmbeddingAPIKey = getEnvOrDefault("QUILL_EMBEDDING_API_KEY", p.LLMAPIKey)
	p.EmbeddingBaseURL = getEnvOrDefault("QUILL_EMBEDDING_BASE_URL", "https://api.siliconflow.cn/v1")
	p.EmbeddingDimensions = getEnvOrDefaultInt("QUILL_EMBEDDING_DIMENSIONS", 1024)

	p.VectorDSN = getEnvOrDefault("QUILL_VECTOR_DSN", "")
}

// Validate checks that the profile can actually start an engine.
func (p *Profile) Validate() error {
	switch p.Driver {
	case "sqlite":
	default:
		return errors.Errorf("unsupported database driver: %s", p.Driver)
	}
	if p.DSN == "" {
		return errors.New("dsn required")
	}
	if p.EmbeddingDimensions <= 0 {
		return errors.New("embedding dimensions must be positive")
	}
	return nil
}
