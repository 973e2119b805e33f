// ABOUTME: Persists the signed-in token between CLI invocations
// ABOUTME: JSON file in the config directory, readable only by the owner

package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
)

// ErrNoToken is returned by Load when nothing has been saved
var ErrNoToken = errors.New("no saved token")

// storedToken keeps the id_token alongside the standard fields, which
// oauth2.Token drops when marshalled
type storedToken struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	Username     string    `json:"username,omitempty"`
}

// Store reads and writes the token file
type Store struct {
	path string
}

// NewStore returns a store backed by path
func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultStorePath returns token.json inside configDir
func DefaultStorePath(configDir string) string {
	return filepath.Join(configDir, "token.json")
}

// Path returns the backing file
func (s *Store) Path() string {
	return s.path
}

// Save writes tok with 0600 permissions, replacing any previous token
func (s *Store) Save(tok *oauth2.Token, username string) error {
	st := storedToken{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
		IDToken:      idToken(tok),
		Username:     username,
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write token: %w", err)
	}
	return nil
}

// Load reads the saved token and the username it was issued for
func (s *Store) Load() (*oauth2.Token, string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, "", ErrNoToken
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to read token: %w", err)
	}

	var st storedToken
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, "", fmt.Errorf("failed to parse token file %s: %w", s.path, err)
	}
	if st.AccessToken == "" && st.IDToken == "" {
		return nil, "", ErrNoToken
	}

	tok := &oauth2.Token{
		AccessToken:  st.AccessToken,
		TokenType:    st.TokenType,
		RefreshToken: st.RefreshToken,
		Expiry:       st.Expiry,
	}
	if st.IDToken != "" {
		tok = tok.WithExtra(map[string]any{"id_token": st.IDToken})
	}
	return tok, st.Username, nil
}

// Clear removes the token file. A missing file is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove token: %w", err)
	}
	return nil
}
