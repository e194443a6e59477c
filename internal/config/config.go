// Package config loads the process-wide, immutable configuration for the
// analysis pipeline: graph-store credentials, queue/storage DSNs, LLM
// provider defaults, and batch/timeout tuning. Per-project overrides (e.g. a
// job's llm_config) are passed explicitly through AnalysisJob and never
// mutate this process-wide object.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all process-wide configuration settings.
type Config struct {
	Mode string `yaml:"mode"` // "development", "packaged", "ci"

	GraphStore GraphStoreConfig `yaml:"graph_store"`
	Storage    StorageConfig    `yaml:"storage"`
	Queue      QueueConfig      `yaml:"queue"`
	Redis      RedisConfig      `yaml:"redis"`
	GitHub     GitHubConfig     `yaml:"github"`
	LLM        LLMConfig        `yaml:"llm"`
	Worker     WorkerConfig     `yaml:"worker"`
	CKG        CKGConfig        `yaml:"ckg"`
}

// GraphStoreConfig configures the Neo4j-backed Graph Store.
type GraphStoreConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// StorageConfig selects and configures the Relational Store.
type StorageConfig struct {
	Type        string `yaml:"type"` // "postgres", "sqlite"
	PostgresDSN string `yaml:"postgres_dsn"`
	LocalPath   string `yaml:"local_path"`
}

// QueueConfig configures the Job Queue Interface.
type QueueConfig struct {
	Broker string `yaml:"broker"` // DSN of the durable queue backend
}

// RedisConfig configures the LLM rate limiter and the per-project lease.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
}

// GitHubConfig configures the Repository Fetcher's PR-metadata path.
type GitHubConfig struct {
	Token     string `yaml:"token"`
	RateLimit int    `yaml:"rate_limit"` // requests per second
}

// LLMConfig holds process-wide LLM defaults. Per-project overrides
// arrive via AnalysisJob.llm_config and never mutate this struct.
type LLMConfig struct {
	DefaultProvider    string  `yaml:"default_provider"` // "local", "hosted_a", "hosted_b"
	DefaultTemperature float64 `yaml:"default_temperature"`
	MaxAttempts        int     `yaml:"max_attempts"`

	LocalBaseURL   string `yaml:"local_base_url"`
	LocalModel     string `yaml:"local_model"`
	OpenAIKey      string `yaml:"openai_key"`
	OpenAIModel    string `yaml:"openai_model"`
	AnthropicKey   string `yaml:"anthropic_key"`
	AnthropicModel string `yaml:"anthropic_model"`
	GeminiKey      string `yaml:"gemini_key"`
	EmbeddingModel string `yaml:"embedding_model"`
	UseKeychain    bool   `yaml:"use_keychain"`
}

// WorkerConfig tunes the analysis worker pool.
type WorkerConfig struct {
	MaxAnalysisWorkers    int `yaml:"max_analysis_workers"`
	AnalysisTimeoutSec    int `yaml:"analysis_timeout_seconds"`
	MaxConcurrentAnalyses int `yaml:"max_concurrent_analyses"`
}

// CKGConfig tunes the CKG Builder / Incremental Updater.
type CKGConfig struct {
	BatchSize              int     `yaml:"batch_size"`
	MaxFileSizeBytes       int64   `yaml:"max_file_size_bytes"`
	ParseConcurrency       int     `yaml:"parse_concurrency"`
	MaxPlaceholderFraction float64 `yaml:"max_placeholder_fraction"`
	MaxClosureDepth        int     `yaml:"max_closure_depth"`
}

// Default returns the baseline configuration before file/env overrides.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Mode: "development",
		GraphStore: GraphStoreConfig{
			URI:      "bolt://localhost:7687",
			Username: "neo4j",
			Database: "neo4j",
		},
		Storage: StorageConfig{
			Type:      "sqlite",
			LocalPath: filepath.Join(homeDir, ".ckg-pipeline", "local.db"),
		},
		Queue: QueueConfig{},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		GitHub: GitHubConfig{
			RateLimit: 10,
		},
		LLM: LLMConfig{
			DefaultProvider:    "hosted_a",
			DefaultTemperature: 0.1,
			MaxAttempts:        3,
			OpenAIModel:        "gpt-4o-mini",
			AnthropicModel:     "claude-3-5-sonnet-latest",
			LocalModel:         "local-model",
			EmbeddingModel:     "text-embedding-004",
		},
		Worker: WorkerConfig{
			MaxAnalysisWorkers:    4,
			AnalysisTimeoutSec:    300,
			MaxConcurrentAnalyses: 4,
		},
		CKG: CKGConfig{
			BatchSize:              50,
			MaxFileSizeBytes:       1048576,
			ParseConcurrency:       0, // not read by the pipeline; the Builder uses ckg.DefaultParseConcurrency (2x CPU cores)
			MaxPlaceholderFraction: 0.25,
			MaxClosureDepth:        8,
		},
	}
}

// Load reads configuration from built-in defaults, an optional YAML file,
// and environment variables (CKG_-prefixed via viper, then the explicit
// overrides in applyEnvOverrides), in that order of increasing precedence.
// .env files are loaded into the environment first and do not override
// variables that are already set.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("mode", cfg.Mode)
	v.SetDefault("graph_store", cfg.GraphStore)
	v.SetDefault("storage", cfg.Storage)
	v.SetDefault("queue", cfg.Queue)
	v.SetDefault("redis", cfg.Redis)
	v.SetDefault("github", cfg.GitHub)
	v.SetDefault("llm", cfg.LLM)
	v.SetDefault("worker", cfg.Worker)
	v.SetDefault("ckg", cfg.CKG)

	v.SetEnvPrefix("CKG")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".ckg-pipeline")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".ckg-pipeline"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func loadEnvFiles() {
	envFiles := []string{".env.local", ".env", ".env.example"}
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			if err := godotenv.Load(file); err == nil {
				continue
			}
		}
	}
	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".ckg-pipeline", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies the well-known environment variables, which take
// precedence over both the config file and viper's CKG_-prefixed lookup
// because several of them (NEO4J_*, GITHUB_TOKEN, ...) don't follow that
// naming convention.
func applyEnvOverrides(cfg *Config) {
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		cfg.GraphStore.URI = uri
	}
	if user := os.Getenv("NEO4J_USERNAME"); user != "" {
		cfg.GraphStore.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		cfg.GraphStore.Password = pass
	}
	if db := os.Getenv("NEO4J_DATABASE"); db != "" {
		cfg.GraphStore.Database = db
	}

	if size := os.Getenv("CKG_BATCH_SIZE"); size != "" {
		if n, err := strconv.Atoi(size); err == nil {
			cfg.CKG.BatchSize = n
		}
	}
	if size := os.Getenv("CKG_MAX_FILE_SIZE"); size != "" {
		if n, err := strconv.ParseInt(size, 10, 64); err == nil {
			cfg.CKG.MaxFileSizeBytes = n
		}
	}

	if n := os.Getenv("MAX_ANALYSIS_WORKERS"); n != "" {
		if v, err := strconv.Atoi(n); err == nil {
			cfg.Worker.MaxAnalysisWorkers = v
		}
	}
	if n := os.Getenv("ANALYSIS_TIMEOUT"); n != "" {
		if v, err := strconv.Atoi(n); err == nil {
			cfg.Worker.AnalysisTimeoutSec = v
		}
	}
	if n := os.Getenv("MAX_CONCURRENT_ANALYSES"); n != "" {
		if v, err := strconv.Atoi(n); err == nil {
			cfg.Worker.MaxConcurrentAnalyses = v
		}
	}

	if t := os.Getenv("LLM_DEFAULT_TEMPERATURE"); t != "" {
		if v, err := strconv.ParseFloat(t, 64); err == nil {
			cfg.LLM.DefaultTemperature = v
		}
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.LLM.OpenAIKey = key
	} else if cfg.LLM.OpenAIKey == "" {
		km := NewKeyringManager()
		if km.IsAvailable() {
			if key, err := km.GetAPIKey(KeyringOpenAIItem); err == nil && key != "" {
				cfg.LLM.OpenAIKey = key
			}
		}
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		cfg.LLM.AnthropicKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.LLM.GeminiKey = key
	}
	if url := os.Getenv("LLM_LOCAL_BASE_URL"); url != "" {
		cfg.LLM.LocalBaseURL = url
	}

	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		cfg.GitHub.Token = token
	}
	if rate := os.Getenv("GITHUB_RATE_LIMIT"); rate != "" {
		if v, err := strconv.Atoi(rate); err == nil {
			cfg.GitHub.RateLimit = v
		}
	}

	if storageType := os.Getenv("STORAGE_TYPE"); storageType != "" {
		cfg.Storage.Type = storageType
	}
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		cfg.Storage.PostgresDSN = dsn
	}
	if path := os.Getenv("LOCAL_DB_PATH"); path != "" {
		cfg.Storage.LocalPath = expandPath(path)
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}

	if mode := os.Getenv("CKG_MODE"); mode != "" {
		cfg.Mode = mode
	}
}

func expandPath(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, path[1:])
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")
	v.Set("mode", c.Mode)
	v.Set("graph_store", c.GraphStore)
	v.Set("storage", c.Storage)
	v.Set("queue", c.Queue)
	v.Set("redis", c.Redis)
	v.Set("github", c.GitHub)
	v.Set("llm", c.LLM)
	v.Set("worker", c.Worker)
	v.Set("ckg", c.CKG)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// AnalysisTimeout returns the worker's per-job deadline as a time.Duration.
func (c *Config) AnalysisTimeout() time.Duration {
	return time.Duration(c.Worker.AnalysisTimeoutSec) * time.Second
}
