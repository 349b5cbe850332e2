// Package config loads chapterwise configuration from YAML, environment
// variables, and defaults, validates it against an embedded JSON schema,
// and hot-reloads it when the file changes.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mkaplan/chapterwise/internal/boundary"
	"github.com/mkaplan/chapterwise/internal/chunker"
	"github.com/mkaplan/chapterwise/internal/state"
	"github.com/mkaplan/chapterwise/internal/translator"
)

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	v *viper.Viper

	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a config manager and loads the initial config.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{v: viper.New()}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}
	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg
	return cm, nil
}

// initViper sets up defaults, environment overrides, and the config file.
func (cm *Manager) initViper(cfgFile string) error {
	defaults := DefaultConfig()
	cm.v.SetDefault("translation", defaults.Translation)
	cm.v.SetDefault("chunking", defaults.Chunking)
	cm.v.SetDefault("checkpoint", defaults.Checkpoint)
	cm.v.SetDefault("provider", defaults.Provider)
	cm.v.SetDefault("logging", defaults.Logging)

	// Environment variables with CHAPTERWISE_ prefix
	cm.v.SetEnvPrefix("CHAPTERWISE")
	cm.v.AutomaticEnv()

	if cfgFile != "" {
		cm.v.SetConfigFile(cfgFile)
	} else {
		cm.v.SetConfigName("config")
		cm.v.SetConfigType("yaml")
		cm.v.AddConfigPath(".")
		cm.v.AddConfigPath("$HOME/.chapterwise")
	}

	// The config file is optional; defaults cover everything.
	if err := cm.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// load parses the current viper state into a validated Config.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading. A reload that fails validation keeps
// the previous config in place.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	pattern := regexp.MustCompile(`\$\{([^}]+)\}`)
	return pattern.ReplaceAllStringFunc(value, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

// ResolveAPIKey returns the provider API key with env references expanded.
func (c *Config) ResolveAPIKey() string {
	return ResolveEnvVars(c.Provider.APIKey)
}

// ChunkerConfig converts the chunking section into a chunker config.
func (c *Config) ChunkerConfig() (chunker.Config, error) {
	return chunker.NewConfig(
		c.Chunking.TargetSize,
		c.Chunking.MinFactor,
		c.Chunking.MaxFactor,
		c.Chunking.WarningFactor,
		boundary.DefaultTerminators,
	)
}

// TranslatorConfig converts the provider and translation sections into an
// OpenAI translator config. The API key is resolved here.
func (c *Config) TranslatorConfig() translator.OpenAIConfig {
	return translator.OpenAIConfig{
		APIKey:            c.ResolveAPIKey(),
		Model:             c.Translation.Model,
		Temperature:       c.Translation.Temperature,
		RequestsPerMinute: c.Provider.RequestsPerMinute,
		MaxRetries:        c.Provider.MaxRetries,
		RetryDelay:        time.Duration(c.Provider.RetryDelaySeconds) * time.Second,
		Timeout:           time.Duration(c.Provider.TimeoutSeconds) * time.Second,
		BaseURL:           c.Provider.BaseURL,
	}
}

// StateConfig freezes the translation settings into the per-job snapshot
// config.
func (c *Config) StateConfig() state.Config {
	return state.Config{
		SourceLanguage: c.Translation.SourceLanguage,
		TargetLanguage: c.Translation.TargetLanguage,
		TargetSize:     c.Chunking.TargetSize,
		ModelName:      c.Translation.Model,
	}
}

// DBPath returns the checkpoint database path with env and $HOME expanded.
func (c *Config) DBPath() string {
	return expandHome(c.Checkpoint.DBPath)
}

// UploadDir returns the upload directory with env and $HOME expanded.
func (c *Config) UploadDir() string {
	return expandHome(c.Checkpoint.UploadDir)
}

func expandHome(p string) string {
	return os.ExpandEnv(p)
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Chapterwise configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell: export OPENAI_API_KEY=xxx

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
