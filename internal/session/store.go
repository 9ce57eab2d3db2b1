// Package session persists the client-side authentication state: the bearer
// token and the cached user profile. Both live under fixed keys in a local
// state directory. Staleness is resolved by the caller re-validating against
// the backend; this package does no expiry tracking of its own.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/voxclone/voxclone-go/internal/core"
)

// Fixed storage keys, one file per key.
const (
	tokenKey = "voxclone_token"
	userKey  = "voxclone_user"
)

// File and directory permissions.
const (
	filePermissions = 0o600
	dirPermissions  = 0o750
)

// ErrStateDirEmpty indicates that no state directory was provided.
var ErrStateDirEmpty = errors.New("state directory cannot be empty")

// Store is a file-backed session store. Concurrent writers follow
// last-write-wins semantics, matching the storage it replaces.
type Store struct {
	dir string
}

// Compile-time interface check.
var _ core.SessionStore = (*Store)(nil)

// New creates a session store rooted at dir, creating the directory if
// needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, ErrStateDirEmpty
	}

	err := os.MkdirAll(dir, dirPermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	return &Store{dir: dir}, nil
}

// Token returns the persisted bearer token, reporting absence when no token
// is stored.
func (s *Store) Token() (string, bool) {
	data, err := os.ReadFile(s.keyPath(tokenKey))
	if err != nil {
		return "", false
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", false
	}

	return token, true
}

// SetToken persists the bearer token.
func (s *Store) SetToken(token string) error {
	err := os.WriteFile(s.keyPath(tokenKey), []byte(token), filePermissions)
	if err != nil {
		return fmt.Errorf("failed to persist token: %w", err)
	}

	return nil
}

// ClearToken removes the persisted token. Clearing an absent token is not an
// error.
func (s *Store) ClearToken() error {
	return s.removeKey(tokenKey)
}

// CachedUser returns the cached user profile. Corrupt stored JSON is treated
// as absent, never as an error.
func (s *Store) CachedUser() (*core.User, bool) {
	data, err := os.ReadFile(s.keyPath(userKey))
	if err != nil {
		return nil, false
	}

	var user core.User

	err = json.Unmarshal(data, &user)
	if err != nil {
		return nil, false
	}

	return &user, true
}

// SetCachedUser persists the user profile.
func (s *Store) SetCachedUser(user *core.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}

	err = os.WriteFile(s.keyPath(userKey), data, filePermissions)
	if err != nil {
		return fmt.Errorf("failed to persist user: %w", err)
	}

	return nil
}

// ClearCachedUser removes the cached user profile.
func (s *Store) ClearCachedUser() error {
	return s.removeKey(userKey)
}

// Clear removes all persisted session state.
func (s *Store) Clear() error {
	tokenErr := s.ClearToken()
	userErr := s.ClearCachedUser()

	if tokenErr != nil {
		return tokenErr
	}

	return userErr
}

func (s *Store) keyPath(key string) string {
	return filepath.Join(s.dir, key)
}

func (s *Store) removeKey(key string) error {
	err := os.Remove(s.keyPath(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to clear %s: %w", key, err)
	}

	return nil
}
