package oauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Store persists the access token as {accessToken, accessTokenSecret}. The
// file is written owner-only; it is not otherwise encrypted.
type Store struct {
	Path string
}

type storedCredentials struct {
	AccessToken       string `json:"accessToken"`
	AccessTokenSecret string `json:"accessTokenSecret"`
}

// DefaultStorePath returns ~/.evergit/auth.json, or auth.json under
// $EVERGIT_HOME when set.
func DefaultStorePath() (string, error) {
	if dir := os.Getenv("EVERGIT_HOME"); dir != "" {
		return filepath.Join(dir, "auth.json"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".evergit", "auth.json"), nil
}

// Load returns the stored token, or nil when nothing is stored.
func (s *Store) Load() (*Token, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	var stored storedCredentials
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decode credentials %s: %w", s.Path, err)
	}
	if stored.AccessToken == "" || stored.AccessTokenSecret == "" {
		return nil, fmt.Errorf("credentials file %s is incomplete", s.Path)
	}
	return &Token{Key: stored.AccessToken, Secret: stored.AccessTokenSecret}, nil
}

// Save writes token with 0600 permissions, creating the directory as 0700.
func (s *Store) Save(token *Token) error {
	if token == nil || token.Key == "" || token.Secret == "" {
		return errors.New("refusing to store an incomplete access token")
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("create credentials directory: %w", err)
	}
	data, err := json.Marshal(storedCredentials{AccessToken: token.Key, AccessTokenSecret: token.Secret})
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := os.WriteFile(s.Path, data, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	return os.Chmod(s.Path, 0o600)
}

// Clear removes stored credentials. Clearing an empty store is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credentials: %w", err)
	}
	return nil
}
