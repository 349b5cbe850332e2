package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// configSchema constrains the loaded configuration. Validation runs on
// every load, including hot reloads, so a bad edit never replaces a good
// running config.
const configSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "translation": {
      "type": "object",
      "properties": {
        "source_language": {"type": "string", "minLength": 1},
        "target_language": {"type": "string", "minLength": 1},
        "model": {"type": "string", "minLength": 1},
        "temperature": {"type": "number", "minimum": 0, "maximum": 2}
      },
      "required": ["source_language", "target_language", "model"]
    },
    "chunking": {
      "type": "object",
      "properties": {
        "target_size": {"type": "integer", "minimum": 100},
        "min_factor": {"type": "number", "exclusiveMinimum": 0, "maximum": 1},
        "max_factor": {"type": "number", "minimum": 1},
        "warning_factor": {"type": "number", "minimum": 1}
      },
      "required": ["target_size", "min_factor", "max_factor"]
    },
    "checkpoint": {
      "type": "object",
      "properties": {
        "db_path": {"type": "string", "minLength": 1},
        "upload_dir": {"type": "string"}
      },
      "required": ["db_path"]
    },
    "provider": {
      "type": "object",
      "properties": {
        "api_key": {"type": "string"},
        "base_url": {"type": "string"},
        "requests_per_minute": {"type": "integer", "minimum": 0},
        "max_retries": {"type": "integer", "minimum": 1},
        "retry_delay_seconds": {"type": "integer", "minimum": 0},
        "timeout_seconds": {"type": "integer", "minimum": 1}
      }
    },
    "logging": {
      "type": "object",
      "properties": {
        "level": {"enum": ["debug", "info", "warn", "error"]},
        "format": {"enum": ["text", "json"]}
      }
    }
  },
  "required": ["translation", "chunking", "checkpoint"]
}`

// Validate checks a config against the embedded schema.
func Validate(cfg *Config) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("config.json", strings.NewReader(configSchema)); err != nil {
		return fmt.Errorf("failed to load config schema: %w", err)
	}
	schema, err := compiler.Compile("config.json")
	if err != nil {
		return fmt.Errorf("failed to compile config schema: %w", err)
	}

	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to decode config for validation: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
