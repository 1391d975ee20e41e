package configs

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/mx-space/tldr/internal/config"
)

func deepMergeJSON(oldVal, newVal interface{}) interface{} {
	oldMap, oldIsMap := oldVal.(map[string]interface{})
	newMap, newIsMap := newVal.(map[string]interface{})
	if oldIsMap && newIsMap {
		out := make(map[string]interface{}, len(oldMap))
		for k, v := range oldMap {
			out[k] = v
		}
		for k, v := range newMap {
			if existing, ok := out[k]; ok {
				out[k] = deepMergeJSON(existing, v)
				continue
			}
			out[k] = v
		}
		return out
	}

	return newVal
}

func parseBoolFromAny(v interface{}) (bool, bool) {
	switch value := v.(type) {
	case bool:
		return value, true
	case string:
		trimmed := strings.TrimSpace(strings.ToLower(value))
		switch trimmed {
		case "1", "true", "yes", "on":
			return true, true
		case "0", "false", "no", "off":
			return false, true
		}
	case float64:
		return value != 0, true
	}
	return false, false
}

func parseNumberFromAny(v interface{}) (float64, bool) {
	switch value := v.(type) {
	case float64:
		return value, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		return f, err == nil
	}
	return 0, false
}

// normalizeConfigSection coerces values hosts commonly send as strings
// (form posts) into the JSON types FullConfig decodes.
func normalizeConfigSection(key string, v interface{}) interface{} {
	m, ok := v.(map[string]interface{})
	if !ok {
		return v
	}
	switch key {
	case "defaults":
		coerceBool(m, "auto_regen")
		coerceNumber(m, "expand_threshold")
	case "retrieval":
		coerceBool(m, "enabled")
	case "provider":
		coerceNumber(m, "temperature")
		if tokens, ok := m["max_tokens"].(map[string]interface{}); ok {
			for k := range tokens {
				coerceNumber(tokens, k)
			}
		}
	}
	return m
}

func coerceBool(m map[string]interface{}, key string) {
	if raw, ok := m[key]; ok {
		if b, ok := parseBoolFromAny(raw); ok {
			m[key] = b
		}
	}
}

func coerceNumber(m map[string]interface{}, key string) {
	if raw, ok := m[key]; ok {
		if n, ok := parseNumberFromAny(raw); ok {
			m[key] = n
		}
	}
}

// keepMaskedSecrets restores credentials the caller echoed back masked.
func keepMaskedSecrets(updated, current *config.FullConfig) {
	if updated.Provider.APIKey == secretMask {
		updated.Provider.APIKey = current.Provider.APIKey
	}
	if updated.Retrieval.APIKey == secretMask {
		updated.Retrieval.APIKey = current.Retrieval.APIKey
	}
}

// masked returns a copy of cfg safe to send to a browser.
func masked(cfg config.FullConfig) config.FullConfig {
	if cfg.Provider.APIKey != "" {
		cfg.Provider.APIKey = secretMask
	}
	if cfg.Retrieval.APIKey != "" {
		cfg.Retrieval.APIKey = secretMask
	}
	return cfg
}

func convertMapKeys(v interface{}, keyFn func(string) string) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, child := range val {
			out[keyFn(k)] = convertMapKeys(child, keyFn)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, child := range val {
			out[i] = convertMapKeys(child, keyFn)
		}
		return out
	default:
		return val
	}
}

func camelToSnakeKey(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(strings.TrimSpace(s))
	if len(runes) == 0 {
		return ""
	}
	out := make([]rune, 0, len(runes)+4)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || nextLower {
					out = append(out, '_')
				}
			}
			out = append(out, unicode.ToLower(r))
			continue
		}
		out = append(out, r)
	}
	return string(out)
}
