package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Storage  StorageConfig
	Session  SessionConfig
	LLM      LLMConfig
	Table    TableConfig
	Logger   LoggerConfig
}

type LoggerConfig struct {
	Level string
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	BodyLimit    int
	RateLimit    int // analyze requests per minute per client
	StaticDir    string
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
}

type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

type SessionConfig struct {
	SecretKey string
	TTL       time.Duration
}

// ProviderConfig describes one chat-completion backend.
type ProviderConfig struct {
	Name    string
	APIKey  string
	Model   string
	Models  []string
	BaseURL string
	Vision  bool
	// GigaChat only
	AuthURL            string
	Scope              string
	InsecureSkipVerify bool
}

type LLMConfig struct {
	Order       []string
	SecretsFile string
	Providers   map[string]ProviderConfig
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

type TableConfig struct {
	MaxRows     int
	MaxChars    int
	PreviewRows int
}

// Provider returns the config for name and whether it is known.
func (c LLMConfig) Provider(name string) (ProviderConfig, bool) {
	p, ok := c.Providers[name]
	return p, ok
}

// AllowedModels lists the models of every provider in the chain, first
// occurrence wins.
func (c LLMConfig) AllowedModels() []string {
	seen := make(map[string]bool)
	var out []string
	for _, name := range c.Order {
		for _, m := range c.Providers[name].Models {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out
}

func Load() (*Config, error) {
	// Try to load .env file from current directory or project root
	envFiles := []string{".env", "../.env", "../../.env"}
	for _, envFile := range envFiles {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	secretsFile := getEnv("SECRETS_FILE", ".secrets.toml")
	secrets, err := loadSecrets(secretsFile)
	if err != nil {
		return nil, err
	}

	readTimeout, _ := strconv.Atoi(getEnv("SERVER_READ_TIMEOUT", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("SERVER_WRITE_TIMEOUT", "120"))
	bodyLimitMB, _ := strconv.Atoi(getEnv("SERVER_BODY_LIMIT_MB", "20"))
	rateLimit, _ := strconv.Atoi(getEnv("SERVER_RATE_LIMIT", "30"))
	sessionHours, _ := strconv.Atoi(getEnv("SESSION_TTL_HOURS", "12"))
	llmTimeout, _ := strconv.Atoi(getEnv("LLM_TIMEOUT", "60"))
	temperature, err := strconv.ParseFloat(getEnv("LLM_TEMPERATURE", "0.3"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_TEMPERATURE: %w", err)
	}
	maxTokens, _ := strconv.Atoi(getEnv("LLM_MAX_TOKENS", "700"))
	maxRows, _ := strconv.Atoi(getEnv("TABLE_MAX_ROWS", "80"))
	maxChars, _ := strconv.Atoi(getEnv("TABLE_MAX_CHARS", "9000"))
	previewRows, _ := strconv.Atoi(getEnv("TABLE_PREVIEW_ROWS", "15"))
	maxConns, _ := strconv.Atoi(getEnv("DB_MAX_CONNS", "5"))

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  time.Duration(readTimeout) * time.Second,
			WriteTimeout: time.Duration(writeTimeout) * time.Second,
			BodyLimit:    bodyLimitMB * 1024 * 1024,
			RateLimit:    rateLimit,
			StaticDir:    getEnv("STATIC_DIR", ""),
		},
		Database: DatabaseConfig{
			Enabled:  getEnv("DB_ENABLED", "false") == "true",
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "chart_insights"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(maxConns),
		},
		Storage: StorageConfig{
			Enabled:   getEnv("MINIO_ENABLED", "false") == "true",
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			Region:    getEnv("MINIO_REGION", "us-east-1"),
			Bucket:    getEnv("MINIO_BUCKET", "chart-insights"),
			AccessKey: secrets.lookup("MINIO_ACCESS_KEY"),
			SecretKey: secrets.lookup("MINIO_SECRET_KEY"),
			UseSSL:    getEnv("MINIO_USE_SSL", "false") == "true",
		},
		Session: SessionConfig{
			SecretKey: secrets.lookupDefault("SESSION_SECRET_KEY", "change-me-in-production"),
			TTL:       time.Duration(sessionHours) * time.Hour,
		},
		LLM: LLMConfig{
			Order:       splitList(getEnv("LLM_PROVIDERS", "openai,groq")),
			SecretsFile: secretsFile,
			Providers:   loadProviders(secrets),
			Timeout:     time.Duration(llmTimeout) * time.Second,
			Temperature: temperature,
			MaxTokens:   maxTokens,
		},
		Table: TableConfig{
			MaxRows:     maxRows,
			MaxChars:    maxChars,
			PreviewRows: previewRows,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}, nil
}

func loadProviders(secrets secretValues) map[string]ProviderConfig {
	geminiKey := secrets.lookup("GEMINI_API_KEY")
	if geminiKey == "" {
		geminiKey = secrets.lookup("GOOGLE_API_KEY")
	}

	return map[string]ProviderConfig{
		"openai": {
			Name:    "openai",
			APIKey:  secrets.lookup("OPENAI_API_KEY"),
			Model:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Models:  splitList(getEnv("OPENAI_MODELS", "gpt-4o-mini,gpt-4.1-mini,gpt-4.1")),
			BaseURL: getEnv("OPENAI_BASE_URL", ""),
			Vision:  getEnv("OPENAI_VISION", "true") == "true",
		},
		"groq": {
			Name:    "groq",
			APIKey:  secrets.lookup("GROQ_API_KEY"),
			Model:   getEnv("GROQ_MODEL", "meta-llama/llama-4-scout-17b-16e-instruct"),
			Models:  splitList(getEnv("GROQ_MODELS", "meta-llama/llama-4-scout-17b-16e-instruct,meta-llama/llama-4-maverick-17b-128e-instruct")),
			BaseURL: getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
			Vision:  getEnv("GROQ_VISION", "true") == "true",
		},
		"gigachat": {
			Name:               "gigachat",
			APIKey:             secrets.lookup("GIGACHAT_API_KEY"),
			Model:              getEnv("GIGACHAT_MODEL", "GigaChat-Pro"),
			Models:             splitList(getEnv("GIGACHAT_MODELS", "GigaChat-Pro,GigaChat-Max,GigaChat")),
			BaseURL:            getEnv("GIGACHAT_BASE_URL", "https://gigachat.devices.sberbank.ru/api/v1"),
			Vision:             getEnv("GIGACHAT_VISION", "true") == "true",
			AuthURL:            getEnv("GIGACHAT_AUTH_URL", "https://ngw.devices.sberbank.ru:9443/api/v2/oauth"),
			Scope:              getEnv("GIGACHAT_SCOPE", "GIGACHAT_API_PERS"),
			InsecureSkipVerify: getEnv("GIGACHAT_INSECURE_SKIP_VERIFY", "false") == "true",
		},
		"anthropic": {
			Name:    "anthropic",
			APIKey:  secrets.lookup("ANTHROPIC_API_KEY"),
			Model:   getEnv("ANTHROPIC_MODEL", "claude-3-5-sonnet-latest"),
			Models:  splitList(getEnv("ANTHROPIC_MODELS", "claude-3-5-sonnet-latest,claude-3-5-haiku-latest")),
			BaseURL: getEnv("ANTHROPIC_BASE_URL", ""),
			Vision:  getEnv("ANTHROPIC_VISION", "true") == "true",
		},
		"gemini": {
			Name:    "gemini",
			APIKey:  geminiKey,
			Model:   getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			Models:  splitList(getEnv("GEMINI_MODELS", "gemini-2.0-flash,gemini-1.5-pro")),
			BaseURL: getEnv("GEMINI_BASE_URL", ""),
			Vision:  getEnv("GEMINI_VISION", "true") == "true",
		},
		"ollama": {
			Name:    "ollama",
			Model:   getEnv("OLLAMA_MODEL", "llama3.2-vision"),
			Models:  splitList(getEnv("OLLAMA_MODELS", "llama3.2-vision,llava")),
			BaseURL: getEnv("OLLAMA_HOST", "http://localhost:11434"),
			Vision:  getEnv("OLLAMA_VISION", "true") == "true",
		},
	}
}

// secretValues holds keys read from the secrets file. Non-blank values win
// over the environment.
type secretValues map[string]string

func (s secretValues) lookup(key string) string {
	return s.lookupDefault(key, "")
}

func (s secretValues) lookupDefault(key, defaultValue string) string {
	if v := strings.TrimSpace(s[key]); v != "" {
		return v
	}
	return getEnv(key, defaultValue)
}

func loadSecrets(path string) (secretValues, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return secretValues{}, nil
		}
		return nil, fmt.Errorf("failed to read secrets file: %w", err)
	}
	return parseSecrets(data)
}

func parseSecrets(data []byte) (secretValues, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse secrets file: %w", err)
	}

	out := make(secretValues, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
