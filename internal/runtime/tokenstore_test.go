package runtime

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/nalgeon/be"
	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"

	"github.com/joshsymonds/gmail-cleaner/internal/config"
)

func sampleToken() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestFileTokenStore(t *testing.T) {
	store := FileTokenStore{Path: filepath.Join(t.TempDir(), "nested", "token.json")}

	_, err := store.Load()
	be.Err(t, err, ErrNoToken)

	be.Err(t, store.Save(sampleToken()), nil)
	tok, err := store.Load()
	be.Err(t, err, nil)
	be.Equal(t, tok.AccessToken, "access")
	be.Equal(t, tok.RefreshToken, "refresh")
	be.True(t, tok.Expiry.Equal(sampleToken().Expiry))

	be.Err(t, store.Remove(), nil)
	be.Err(t, store.Remove(), ErrNoToken)
}

func TestKeyringTokenStore(t *testing.T) {
	keyring.MockInit()
	store := KeyringTokenStore{Service: "gmail-cleaner-test", User: "token"}

	_, err := store.Load()
	be.Err(t, err, ErrNoToken)

	be.Err(t, store.Save(sampleToken()), nil)
	tok, err := store.Load()
	be.Err(t, err, nil)
	be.Equal(t, tok.RefreshToken, "refresh")

	be.Err(t, store.Remove(), nil)
	be.Err(t, store.Remove(), ErrNoToken)
}

func TestNewTokenStore(t *testing.T) {
	cfg := config.Default(t.TempDir())

	store, err := NewTokenStore(cfg)
	be.Err(t, err, nil)
	be.Equal(t, store.Location(), cfg.TokenPath)

	cfg.TokenStore = config.TokenStoreKeyring
	store, err = NewTokenStore(cfg)
	be.Err(t, err, nil)
	_, ok := store.(KeyringTokenStore)
	be.True(t, ok)

	cfg.TokenStore = "vault"
	_, err = NewTokenStore(cfg)
	be.Err(t, err)
}

func TestRemoveToken(t *testing.T) {
	cfg := config.Default(t.TempDir())

	removed, location, err := RemoveToken(cfg)
	be.Err(t, err, nil)
	be.True(t, !removed)
	be.Equal(t, location, cfg.TokenPath)

	be.Err(t, FileTokenStore{Path: cfg.TokenPath}.Save(sampleToken()), nil)
	removed, _, err = RemoveToken(cfg)
	be.Err(t, err, nil)
	be.True(t, removed)
}
