package chassis

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigData holds the parsed configuration as a nested map.
// Modules read their own section by name during Init, e.g. "roles.db_path".
type ConfigData map[string]any

// envVarPattern matches ${VAR} or ${VAR:-default} patterns
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// LoadConfig reads a YAML config file and returns the parsed configuration.
// Environment variables in the format ${VAR} or ${VAR:-default} are expanded.
func LoadConfig(path string) (ConfigData, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables before parsing
	expanded := expandEnvVars(string(data))

	var config ConfigData
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val, exists := os.LookupEnv(varName); exists {
			return val
		}
		return defaultVal
	})
}

// Get retrieves a value from the config using dot notation (e.g., "storage.local.base_path").
// Returns nil if the path doesn't exist.
func (cfg ConfigData) Get(path string) any {
	parts := strings.Split(path, ".")
	var current any = map[string]any(cfg)

	for _, part := range parts {
		currentMap := toStringMap(current)
		if currentMap == nil {
			return nil
		}
		var ok bool
		current, ok = currentMap[part]
		if !ok {
			return nil
		}
	}

	return current
}

// toStringMap converts various map types to map[string]any.
// YAML unmarshals nested maps as map[string]interface{}, which requires this helper.
func toStringMap(val any) map[string]any {
	switch typed := val.(type) {
	case map[string]any:
		return typed
	case ConfigData:
		return map[string]any(typed)
	default:
		return nil
	}
}

// GetString retrieves a string value, returning empty string if not found or wrong type.
func (cfg ConfigData) GetString(path string) string {
	val := cfg.Get(path)
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

// GetStringOr retrieves a string value, returning fallback if not found, empty or wrong type.
func (cfg ConfigData) GetStringOr(path, fallback string) string {
	if str := cfg.GetString(path); str != "" {
		return str
	}
	return fallback
}

// Has reports whether path is present in the config with a non-null value.
func (cfg ConfigData) Has(path string) bool {
	return cfg.Get(path) != nil
}

// Section returns a subsection of the config as ConfigData.
// Returns nil if the section doesn't exist.
func (cfg ConfigData) Section(name string) ConfigData {
	val := cfg.Get(name)
	if asMap := toStringMap(val); asMap != nil {
		return ConfigData(asMap)
	}
	return nil
}
