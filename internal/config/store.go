package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
)

// Keys accepted by the on-disk store, in display order.
var Keys = []string{
	"name",
	"email",
	"provider",
	"openaiModel",
	"ollamaModel",
	"ollamaBaseUrl",
	"openwebuiModel",
	"openwebuiBaseUrl",
	"tracker",
	"githubRepo",
	"cacheModels",
}

// Providers are the accepted values of the provider key.
var Providers = []string{"openai", "ollama", "openwebui"}

// Trackers are the accepted values of the tracker key.
var Trackers = []string{"launchpad", "github"}

// IsValidKey reports whether key can be stored.
func IsValidKey(key string) bool {
	return slices.Contains(Keys, key)
}

// Store is the JSON key/value file holding user settings.
type Store struct {
	Path string
}

// DefaultPath returns $EVERGIT_CONFIG or ~/.evergitconfig.
func DefaultPath() (string, error) {
	if p := os.Getenv("EVERGIT_CONFIG"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".evergitconfig"), nil
}

// All returns every stored value. A missing file is an empty store.
func (s *Store) All() (map[string]string, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	values := map[string]string{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", s.Path, err)
	}
	return values, nil
}

// Get returns the value for key and whether it is set.
func (s *Store) Get(key string) (string, bool, error) {
	if !IsValidKey(key) {
		return "", false, unknownKey(key)
	}
	values, err := s.All()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

// Set validates and stores value under key.
func (s *Store) Set(key, value string) error {
	if !IsValidKey(key) {
		return unknownKey(key)
	}
	value = strings.TrimSpace(value)
	if err := validateValue(key, value); err != nil {
		return err
	}
	values, err := s.All()
	if err != nil {
		return err
	}
	values[key] = value
	return s.save(values)
}

// Clear removes key from the store.
func (s *Store) Clear(key string) error {
	if !IsValidKey(key) {
		return unknownKey(key)
	}
	values, err := s.All()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return s.save(values)
}

// SortedKeys returns the keys of values sorted alphabetically.
func SortedKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) save(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if dir := filepath.Dir(s.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(s.Path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func validateValue(key, value string) error {
	switch key {
	case "provider":
		if !slices.Contains(Providers, value) {
			return fmt.Errorf("invalid value for provider: %q (must be one of %s)", value, strings.Join(Providers, ", "))
		}
	case "tracker":
		if !slices.Contains(Trackers, value) {
			return fmt.Errorf("invalid value for tracker: %q (must be one of %s)", value, strings.Join(Trackers, ", "))
		}
	case "cacheModels":
		if value != "true" && value != "false" {
			return fmt.Errorf("invalid value for cacheModels: %q (must be true or false)", value)
		}
	case "githubRepo":
		owner, repo, ok := strings.Cut(value, "/")
		if !ok || owner == "" || repo == "" {
			return fmt.Errorf("invalid value for githubRepo: %q (must be owner/repo)", value)
		}
	case "ollamaBaseUrl", "openwebuiBaseUrl":
		if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
			return fmt.Errorf("invalid value for %s: %q (must be an http or https URL)", key, value)
		}
	}
	return nil
}

func unknownKey(key string) error {
	return fmt.Errorf("invalid config key: %q (valid keys: %s)", key, strings.Join(Keys, ", "))
}
