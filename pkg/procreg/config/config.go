// Package config translates YAML or JSON documents into registry Start
// options, so a registry's key policy, partition count, and seeded meta can
// live in an application's configuration instead of code.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is a parsed registry configuration document. Accessors return the
// given fallback when a key is absent or holds the wrong type, so registry
// settings can sit inside a larger document without strict schema checks.
type Config struct {
	doc map[string]any
}

// New wraps an already-decoded document. A nil map behaves like an empty
// document.
func New(doc map[string]any) Config {
	if doc == nil {
		doc = map[string]any{}
	}
	return Config{doc: doc}
}

// FromFile reads a registry config document, picking the format by file
// extension: .yaml and .yml decode as YAML, .json as JSON.
func FromFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read registry config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FromYAML(raw)
	case ".json":
		return FromJSON(raw)
	}
	return Config{}, fmt.Errorf("registry config %s: unrecognized extension", path)
}

// FromYAML decodes a YAML registry config document.
func FromYAML(raw []byte) (Config, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Config{}, fmt.Errorf("decode yaml registry config: %w", err)
	}
	return New(doc), nil
}

// FromJSON decodes a JSON registry config document.
func FromJSON(raw []byte) (Config, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Config{}, fmt.Errorf("decode json registry config: %w", err)
	}
	return New(doc), nil
}

// String returns the string under key, or fallback.
func (c Config) String(key, fallback string) string {
	if s, ok := c.doc[key].(string); ok {
		return s
	}
	return fallback
}

// Int returns the integer under key, or fallback. YAML decodes whole
// numbers as int; JSON decodes every number as float64, which resolves
// only when it has no fractional part.
func (c Config) Int(key string, fallback int) int {
	switch v := c.doc[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		if v == float64(int(v)) {
			return int(v)
		}
	}
	return fallback
}

// Map returns the nested mapping under key, or nil.
func (c Config) Map(key string) map[string]any {
	m, _ := c.doc[key].(map[string]any)
	return m
}
