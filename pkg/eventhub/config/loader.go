package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix marks environment variables that override hub settings.
// Nested keys are joined with a double underscore:
//
//	EVENTHUB_RESPONSE_TIMEOUT=2s
//	EVENTHUB_SNAPSHOT__REDIS_ADDR=localhost:6379
const EnvPrefix = "EVENTHUB_"

var decoders = map[string]func([]byte, any) error{
	".yaml": yaml.Unmarshal,
	".yml":  yaml.Unmarshal,
	".json": json.Unmarshal,
}

// FromFile decodes a .yaml, .yml or .json settings file.
func FromFile(path string) (Config, error) {
	ext := strings.ToLower(filepath.Ext(path))
	decode, ok := decoders[ext]
	if !ok {
		return Config{}, fmt.Errorf("unsupported config file extension: %q", ext)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return decodeDocument(decode, raw, strings.TrimPrefix(ext, "."))
}

// FromYAML decodes a YAML document.
func FromYAML(raw []byte) (Config, error) {
	return decodeDocument(yaml.Unmarshal, raw, "yaml")
}

// FromJSON decodes a JSON document.
func FromJSON(raw []byte) (Config, error) {
	return decodeDocument(json.Unmarshal, raw, "json")
}

func decodeDocument(decode func([]byte, any) error, raw []byte, format string) (Config, error) {
	var doc map[string]any
	if err := decode(raw, &doc); err != nil {
		return Config{}, fmt.Errorf("decode %s config: %w", format, err)
	}
	return New(doc), nil
}

// FromEnv collects variables from environ (KEY=value pairs, as returned by
// os.Environ) that start with prefix. Keys are lowercased and "__" opens a
// nested section.
func FromEnv(prefix string, environ []string) Config {
	doc := map[string]any{}
	for _, kv := range environ {
		key, val, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		path := strings.Split(strings.ToLower(strings.TrimPrefix(key, prefix)), "__")
		section := doc
		for _, p := range path[:len(path)-1] {
			next, ok := section[p].(map[string]any)
			if !ok {
				next = map[string]any{}
				section[p] = next
			}
			section = next
		}
		section[path[len(path)-1]] = val
	}
	return New(doc)
}

// LoadHub reads hub settings from path, then applies EVENTHUB_ environment
// overrides. Keys set nowhere keep their DefaultHub values.
func LoadHub(path string) (Hub, error) {
	cfg, err := FromFile(path)
	if err != nil {
		return Hub{}, err
	}
	return cfg.Merge(FromEnv(EnvPrefix, os.Environ())).Hub()
}
