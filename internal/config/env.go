package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	HTTPHost string `envconfig:"HTTP_HOST" default:""`
	HTTPPort string `envconfig:"HTTP_PORT" default:"3200"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
	APIKey   string `envconfig:"API_KEY" required:"true"`
}

type StorageEnv struct {
	Type    string `envconfig:"STORAGE_TYPE" default:"local"`
	BaseDir string `envconfig:"STORAGE_BASE_DIR" default:".taskpilot/data"`
	// S3 settings (used when Type == "s3")
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"taskpilot/"`
	S3Region string `envconfig:"S3_REGION" default:"ap-northeast-1"`
}

type LLMEnv struct {
	// Provider selects the generation backend: "gemini", "openrouter" or
	// "static". Static is for local development without API keys.
	Provider         string        `envconfig:"LLM_PROVIDER" default:"static"`
	GeminiAPIKey     string        `envconfig:"GEMINI_API_KEY"`
	GeminiModel      string        `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`
	OpenRouterAPIKey string        `envconfig:"OPENROUTER_API_KEY"`
	OpenRouterModel  string        `envconfig:"OPENROUTER_MODEL" default:"openai/gpt-4o-mini"`
	OpenRouterBase   string        `envconfig:"OPENROUTER_BASE_URL" default:"https://openrouter.ai/api/v1"`
	RequestTimeout   time.Duration `envconfig:"LLM_REQUEST_TIMEOUT" default:"60s"`
	AgentConfigPath  string        `envconfig:"AGENT_CONFIG_PATH"`
}

type VAPIDEnv struct {
	VAPIDPublicKey  string `envconfig:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `envconfig:"VAPID_PRIVATE_KEY"`
	VAPIDContact    string `envconfig:"VAPID_CONTACT" default:"mailto:admin@example.com"`
}

type Env struct {
	BaseEnv
	StorageEnv
	LLMEnv
	VAPIDEnv
}

const namespace = "TASKPILOT"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &env, nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelDebug
	}
	return level
}

func BaseEnvFromEnv(env *Env) *BaseEnv {
	return &env.BaseEnv
}

func StorageEnvFromEnv(env *Env) *StorageEnv {
	return &env.StorageEnv
}

func LLMEnvFromEnv(env *Env) *LLMEnv {
	return &env.LLMEnv
}

func VAPIDEnvFromEnv(env *Env) *VAPIDEnv {
	return &env.VAPIDEnv
}
