package builtin

import "fmt"

// configString extracts a required string from a step's config.
func configString(config map[string]any, key string) (string, error) {
	v, ok := config[key]
	if !ok {
		return "", fmt.Errorf("weft: config key %q is required", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("weft: config key %q must be a string, got %T", key, v)
	}
	return s, nil
}

// optString extracts an optional string from a step's config.
func optString(config map[string]any, key, fallback string) string {
	if v, ok := config[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return fallback
}
