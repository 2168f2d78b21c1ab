package internal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ReadEnv returns the environment variables that start with prefix, keyed by
// the remainder of their name. An empty prefix returns the whole environment.
func ReadEnv(prefix string, environ []string) map[string]string {
	result := make(map[string]string)
	for _, entry := range environ {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		key = strings.TrimPrefix(key, prefix)
		if key == "" {
			continue
		}
		result[key] = value
	}
	return result
}

// DetectFileFormat maps a file extension to "yaml", "toml" or "json".
func DetectFileFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	default:
		return "json"
	}
}

// ReadFile parses a configuration file into a flat snapshot. A missing file
// yields (nil, os.ErrNotExist wrapped).
func ReadFile(path, format string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if format == "" {
		format = DetectFileFormat(path)
	}
	return ParseConfig(data, format)
}

// ParseConfig decodes data in the given format and flattens it so that
// nested keys are joined with "_" and upper-cased:
//
//	compose:
//	  document: deploy/compose.yml   ->   COMPOSE_DOCUMENT=deploy/compose.yml
//
// Lists of scalars become comma-separated values.
func ParseConfig(data []byte, format string) (map[string]string, error) {
	var tree map[string]any

	switch format {
	case "yaml":
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case "toml":
		if _, err := toml.Decode(string(data), &tree); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
	case "json":
		if err := json.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}

	result := make(map[string]string)
	if err := flatten("", tree, result); err != nil {
		return nil, err
	}
	return result, nil
}

func flatten(prefix string, value any, out map[string]string) error {
	switch v := value.(type) {
	case nil:
		if prefix != "" {
			out[prefix] = ""
		}
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := flatten(joinKey(prefix, k), v[k], out); err != nil {
				return err
			}
		}
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			switch item.(type) {
			case map[string]any, []any:
				return fmt.Errorf("key %s: lists may only contain scalar values", prefix)
			}
			items = append(items, fmt.Sprint(item))
		}
		out[prefix] = strings.Join(items, ",")
	default:
		out[prefix] = fmt.Sprint(v)
	}
	return nil
}

func joinKey(prefix, key string) string {
	key = strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
	if prefix == "" {
		return key
	}
	return prefix + "_" + key
}
