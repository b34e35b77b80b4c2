package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"

	"github.com/joshsymonds/gmail-cleaner/internal/config"
)

const (
	keyringService = "gmail-cleaner"
	keyringUser    = "oauth-token"
)

// ErrNoToken is returned by a TokenStore holding no token.
var ErrNoToken = errors.New("no stored oauth token")

// TokenStore persists the OAuth token between runs.
type TokenStore interface {
	Load() (*oauth2.Token, error)
	Save(tok *oauth2.Token) error
	// Remove deletes the stored token. It returns ErrNoToken if there was none.
	Remove() error
	Location() string
}

// NewTokenStore picks the backend named by cfg.TokenStore.
func NewTokenStore(cfg config.Config) (TokenStore, error) {
	switch cfg.TokenStore {
	case config.TokenStoreFile, "":
		return FileTokenStore{Path: cfg.TokenPath}, nil
	case config.TokenStoreKeyring:
		return KeyringTokenStore{Service: keyringService, User: keyringUser}, nil
	default:
		return nil, fmt.Errorf("unknown token store %q", cfg.TokenStore)
	}
}

// FileTokenStore keeps the token as JSON in a file readable only by the user.
type FileTokenStore struct {
	Path string
}

func (s FileTokenStore) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("read token %s: %w", s.Path, err)
	}
	return decodeToken(data)
}

func (s FileTokenStore) Save(tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}
	if err := os.WriteFile(s.Path, data, 0o600); err != nil {
		return fmt.Errorf("write token %s: %w", s.Path, err)
	}
	return nil
}

func (s FileTokenStore) Remove() error {
	err := os.Remove(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNoToken
	}
	if err != nil {
		return fmt.Errorf("remove token %s: %w", s.Path, err)
	}
	return nil
}

func (s FileTokenStore) Location() string { return s.Path }

// KeyringTokenStore keeps the token in the OS keychain.
type KeyringTokenStore struct {
	Service string
	User    string
}

func (s KeyringTokenStore) Load() (*oauth2.Token, error) {
	secret, err := keyring.Get(s.Service, s.User)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("read token from keyring: %w", err)
	}
	return decodeToken([]byte(secret))
}

func (s KeyringTokenStore) Save(tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := keyring.Set(s.Service, s.User, string(data)); err != nil {
		return fmt.Errorf("write token to keyring: %w", err)
	}
	return nil
}

func (s KeyringTokenStore) Remove() error {
	err := keyring.Delete(s.Service, s.User)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNoToken
	}
	if err != nil {
		return fmt.Errorf("remove token from keyring: %w", err)
	}
	return nil
}

func (s KeyringTokenStore) Location() string {
	return fmt.Sprintf("keyring %s/%s", s.Service, s.User)
}

func decodeToken(data []byte) (*oauth2.Token, error) {
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return &tok, nil
}

var (
	_ TokenStore = FileTokenStore{}
	_ TokenStore = KeyringTokenStore{}
)
