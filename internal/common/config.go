package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	GitLab      GitLabConfig     `toml:"gitlab"`
	Executor    ExecutorConfig   `toml:"executor"`
	Reconciler  ReconcilerConfig `toml:"reconciler"`
	Logging     LoggingConfig    `toml:"logging"`
}

// GitLabConfig contains connection settings for the GitLab instance
type GitLabConfig struct {
	BaseURL string `toml:"base_url" validate:"required,url"` // e.g. "https://gitlab.example.com/api/v4"
	Token   string `toml:"token" validate:"required"`        // Private-Token header value
}

// ExecutorConfig controls request retry behavior
type ExecutorConfig struct {
	MaxAttempts int           `toml:"max_attempts" validate:"gte=1"` // Attempts per logical request
	Backoff     time.Duration `toml:"backoff"`                       // Fixed interval between attempts
	Timeout     time.Duration `toml:"timeout"`                       // Per-attempt HTTP timeout
}

// ReconcilerConfig controls merge request polling
type ReconcilerConfig struct {
	Schedule string   `toml:"schedule" validate:"required"` // Cron schedule format
	Projects []string `toml:"projects"`                     // Project IDs or URL-encoded paths to watch
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig returns a config populated with defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "production",
		GitLab: GitLabConfig{
			BaseURL: "",
			Token:   "",
		},
		Executor: ExecutorConfig{
			MaxAttempts: 20,               // Transient failures are retried up to 20 times
			Backoff:     10 * time.Second, // Fixed interval, no jitter
			Timeout:     10 * time.Second, // Per-attempt HTTP timeout
		},
		Reconciler: ReconcilerConfig{
			Schedule: "@every 1m",
			Projects: []string{},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env
// Later files override earlier files; environment variables override all files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("CASCADE_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// GitLab configuration (token is normally supplied via env, not file)
	if baseURL := os.Getenv("CASCADE_GITLAB_URL"); baseURL != "" {
		config.GitLab.BaseURL = baseURL
	}
	if token := os.Getenv("CASCADE_GITLAB_TOKEN"); token != "" {
		config.GitLab.Token = token
	}

	// Executor configuration
	if attempts := os.Getenv("CASCADE_EXECUTOR_MAX_ATTEMPTS"); attempts != "" {
		if a, err := strconv.Atoi(attempts); err == nil {
			config.Executor.MaxAttempts = a
		}
	}
	if backoff := os.Getenv("CASCADE_EXECUTOR_BACKOFF"); backoff != "" {
		if d, err := time.ParseDuration(backoff); err == nil {
			config.Executor.Backoff = d
		}
	}
	if timeout := os.Getenv("CASCADE_EXECUTOR_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Executor.Timeout = d
		}
	}

	// Reconciler configuration
	if schedule := os.Getenv("CASCADE_RECONCILER_SCHEDULE"); schedule != "" {
		config.Reconciler.Schedule = schedule
	}
	if projects := os.Getenv("CASCADE_RECONCILER_PROJECTS"); projects != "" {
		parts := []string{}
		for _, p := range strings.Split(projects, ",") {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
		if len(parts) > 0 {
			config.Reconciler.Projects = parts
		}
	}

	// Logging configuration
	if level := os.Getenv("CASCADE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("CASCADE_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}

// IsDevelopment returns true when running in a development environment
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}
