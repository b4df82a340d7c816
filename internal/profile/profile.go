package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is configuration to start main server.
type Profile struct {
	// LLM configuration (OpenAI-compatible protocol)
	LLMProvider          string  // openai, deepseek, siliconflow, dashscope, openrouter, ollama, zai
	LLMAPIKey            string  // LLM API key
	LLMBaseURL           string  // LLM base URL (optional, has default per provider)
	LLMModel             string  // Model name: gpt-4o-mini, deepseek-chat, etc.
	LLMTimeout           int     // LLM request timeout in seconds (default: 30)
	LLMRequestsPerSecond float64 // Client-side rate limit, 0 disables it

	// Conversation pipeline
	GenerationTimeout      time.Duration // Per-call deadline for triage and strategies
	ShortCircuitLevel      string        // Lowest risk level answered by the crisis strategy
	FollowUpLevel          string        // Lowest risk level flagged for follow-up
	EscalationExpr         string        // Optional CEL expression overriding ShortCircuitLevel
	HistoryLimit           int           // Prior turns passed to the support strategy
	MaxConcurrentPipelines int           // 0 means unlimited
	FlushInterval          time.Duration // Retry period for failed document writes

	// Other configurations
	Mode    string
	DSN     string
	Driver  string
	Version string
	Addr    string
	Data    string
	Port    int
}

// Provider default configurations for LLM.
// Used when MINDCARE_LLM_BASE_URL is not explicitly set.
var llmProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
	},
	"deepseek": {
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
	},
	"zai": {
		BaseURL: "https://open.bigmodel.cn/api/paas/v4",
		Model:   "glm-4.7",
	},
	"siliconflow": {
		BaseURL: "https://api.siliconflow.cn/v1",
		Model:   "Qwen/Qwen2.5-72B-Instruct",
	},
	"dashscope": {
		BaseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1",
		Model:   "qwen-max-latest",
	},
	"openrouter": {
		BaseURL: "https://openrouter.ai/api/v1",
		Model:   "openai/gpt-4o-mini",
	},
	"ollama": {
		BaseURL: "http://localhost:11434/v1",
		Model:   "llama3.1",
	},
}

// Drivers lists the supported document backends.
var Drivers = []string{"memory", "file", "sqlite", "postgres", "redis"}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if an LLM API key is configured. Ollama runs
// without one.
func (p *Profile) IsAIEnabled() bool {
	return p.LLMAPIKey != "" || p.LLMProvider == "ollama"
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
		slog.Warn("ignoring non-integer environment variable", "key", key, "value", value)
	}
	return defaultValue
}

func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		slog.Warn("ignoring non-numeric environment variable", "key", key, "value", value)
	}
	return defaultValue
}

// FromEnv loads LLM and pipeline configuration from environment variables.
func (p *Profile) FromEnv() {
	p.LLMProvider = getEnvOrDefault("MINDCARE_LLM_PROVIDER", "openai")
	p.LLMAPIKey = getEnvOrDefault("MINDCARE_LLM_API_KEY", "")
	p.LLMBaseURL = getEnvOrDefault("MINDCARE_LLM_BASE_URL", "")
	p.LLMModel = getEnvOrDefault("MINDCARE_LLM_MODEL", "")
	p.LLMTimeout = getEnvOrDefaultInt("MINDCARE_LLM_TIMEOUT_SECONDS", 30)
	p.LLMRequestsPerSecond = getEnvOrDefaultFloat("MINDCARE_LLM_REQUESTS_PER_SECOND", 0)

	if _, ok := llmProviderDefaults[p.LLMProvider]; !ok {
		slog.Warn("Unknown LLM provider, using default: openai", "provider", p.LLMProvider)
		p.LLMProvider = "openai"
	}
	defaults := llmProviderDefaults[p.LLMProvider]
	if p.LLMBaseURL == "" {
		p.LLMBaseURL = defaults.BaseURL
	}
	if p.LLMModel == "" {
		p.LLMModel = defaults.Model
	}

	p.GenerationTimeout = time.Duration(getEnvOrDefaultInt("MINDCARE_GENERATION_TIMEOUT_SECONDS", 30)) * time.Second
	p.ShortCircuitLevel = strings.ToLower(getEnvOrDefault("MINDCARE_SHORT_CIRCUIT_LEVEL", "high"))
	p.FollowUpLevel = strings.ToLower(getEnvOrDefault("MINDCARE_FOLLOW_UP_LEVEL", "medium"))
	p.HistoryLimit = getEnvOrDefaultInt("MINDCARE_HISTORY_LIMIT", 6)
	p.MaxConcurrentPipelines = getEnvOrDefaultInt("MINDCARE_MAX_CONCURRENT_PIPELINES", 0)
	p.FlushInterval = time.Duration(getEnvOrDefaultInt("MINDCARE_FLUSH_INTERVAL_SECONDS", 30)) * time.Second
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "mindcare")
		} else {
			p.Data = "/var/opt/mindcare"
		}
		if err := os.MkdirAll(p.Data, 0o770); err != nil {
			slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
			return err
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir

	if p.Driver == "" {
		p.Driver = "sqlite"
	}
	switch p.Driver {
	case "sqlite":
		if p.DSN == "" {
			p.DSN = filepath.Join(dataDir, fmt.Sprintf("mindcare_%s.db", p.Mode))
		}
	case "postgres", "redis":
		if p.DSN == "" {
			return errors.Errorf("driver %s requires a dsn", p.Driver)
		}
	case "memory", "file":
	default:
		return errors.Errorf("unknown driver %q, expected one of %s", p.Driver, strings.Join(Drivers, ", "))
	}

	if p.HistoryLimit < 0 {
		return errors.Errorf("history limit must not be negative: %d", p.HistoryLimit)
	}
	if p.MaxConcurrentPipelines < 0 {
		return errors.Errorf("max concurrent pipelines must not be negative: %d", p.MaxConcurrentPipelines)
	}
	return nil
}
