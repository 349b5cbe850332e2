package config

// Config holds chapterwise configuration.
// Stored at: {config_dir}/config.yaml
type Config struct {
	Translation TranslationCfg `mapstructure:"translation" yaml:"translation" json:"translation"`
	Chunking    ChunkingCfg    `mapstructure:"chunking" yaml:"chunking" json:"chunking"`
	Checkpoint  CheckpointCfg  `mapstructure:"checkpoint" yaml:"checkpoint" json:"checkpoint"`
	Provider    ProviderCfg    `mapstructure:"provider" yaml:"provider" json:"provider"`
	Logging     LoggingCfg     `mapstructure:"logging" yaml:"logging" json:"logging"`
}

// TranslationCfg selects languages and the model driving translation.
type TranslationCfg struct {
	SourceLanguage string  `mapstructure:"source_language" yaml:"source_language" json:"source_language"`
	TargetLanguage string  `mapstructure:"target_language" yaml:"target_language" json:"target_language"`
	Model          string  `mapstructure:"model" yaml:"model" json:"model"`
	Temperature    float64 `mapstructure:"temperature" yaml:"temperature" json:"temperature"`
}

// ChunkingCfg controls chunk sizing. Factors are relative to target_size.
type ChunkingCfg struct {
	TargetSize    int     `mapstructure:"target_size" yaml:"target_size" json:"target_size"`
	MinFactor     float64 `mapstructure:"min_factor" yaml:"min_factor" json:"min_factor"`
	MaxFactor     float64 `mapstructure:"max_factor" yaml:"max_factor" json:"max_factor"`
	WarningFactor float64 `mapstructure:"warning_factor" yaml:"warning_factor" json:"warning_factor"`
}

// CheckpointCfg locates the SQLite checkpoint database and the directory
// preserving uploaded source files for resume.
type CheckpointCfg struct {
	DBPath    string `mapstructure:"db_path" yaml:"db_path" json:"db_path"`
	UploadDir string `mapstructure:"upload_dir" yaml:"upload_dir" json:"upload_dir"`
}

// ProviderCfg configures the OpenAI-compatible endpoint.
type ProviderCfg struct {
	APIKey            string `mapstructure:"api_key" yaml:"api_key" json:"api_key"` // supports ${ENV_VAR} syntax
	BaseURL           string `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	MaxRetries        int    `mapstructure:"max_retries" yaml:"max_retries" json:"max_retries"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds" yaml:"retry_delay_seconds" json:"retry_delay_seconds"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds" json:"timeout_seconds"`
}

// LoggingCfg controls slog output.
type LoggingCfg struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`    // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format" json:"format"` // text, json
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Translation: TranslationCfg{
			SourceLanguage: "English",
			TargetLanguage: "Spanish",
			Model:          "gpt-4o-mini",
			Temperature:    0.3,
		},
		Chunking: ChunkingCfg{
			TargetSize:    4000,
			MinFactor:     0.7,
			MaxFactor:     1.3,
			WarningFactor: 1.5,
		},
		Checkpoint: CheckpointCfg{
			DBPath:    "$HOME/.chapterwise/checkpoints.db",
			UploadDir: "$HOME/.chapterwise/uploads",
		},
		Provider: ProviderCfg{
			APIKey:            "${OPENAI_API_KEY}",
			RequestsPerMinute: 60,
			MaxRetries:        3,
			RetryDelaySeconds: 2,
			TimeoutSeconds:    120,
		},
		Logging: LoggingCfg{
			Level:  "info",
			Format: "text",
		},
	}
}
