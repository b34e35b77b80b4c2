// Package config resolves gmail-cleaner settings from defaults, an optional
// YAML file and GMAIL_CLEANER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/joshsymonds/gmail-cleaner/internal/gmail"
)

const (
	AppDirName        = ".gmail-cleaner"
	EnvPrefix         = "GMAIL_CLEANER"
	DefaultLabel      = "to delete"
	DefaultWhitelist  = "whitelist.txt"
	DefaultBatchPause = time.Second

	TokenStoreFile    = "file"
	TokenStoreKeyring = "keyring"
)

// Config carries everything the cleaner needs at startup.
type Config struct {
	Dir             string        `mapstructure:"dir"`
	CredentialsPath string        `mapstructure:"credentials_path"`
	TokenPath       string        `mapstructure:"token_path"`
	TokenStore      string        `mapstructure:"token_store"`
	Whitelist       string        `mapstructure:"whitelist"`
	Label           string        `mapstructure:"label"`
	PageSize        int           `mapstructure:"page_size"`
	BatchSize       int           `mapstructure:"batch_size"`
	BatchPause      time.Duration `mapstructure:"batch_pause"`
	RPS             int           `mapstructure:"rps"`
}

// DefaultDir returns ~/.gmail-cleaner, or a relative fallback when the home
// directory is unknown.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return AppDirName
	}
	return filepath.Join(home, AppDirName)
}

// Default returns the built-in configuration rooted at dir.
func Default(dir string) Config {
	cfg := Config{
		Dir:        dir,
		TokenStore: TokenStoreFile,
		Whitelist:  DefaultWhitelist,
		Label:      DefaultLabel,
		PageSize:   gmail.MaxPageSize,
		BatchSize:  gmail.MaxBatchSize,
		BatchPause: DefaultBatchPause,
		RPS:        4,
	}
	cfg.fillPaths()
	return cfg
}

// Load reads the YAML file at path (default <dir>/config.yaml). A missing file
// yields the defaults.
func Load(path string) (Config, error) {
	dir := DefaultDir()
	explicit := path != ""
	if !explicit {
		path = filepath.Join(dir, "config.yaml")
	}
	def := Default(dir)

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	v.SetDefault("dir", def.Dir)
	v.SetDefault("credentials_path", "")
	v.SetDefault("token_path", "")
	v.SetDefault("token_store", def.TokenStore)
	v.SetDefault("whitelist", def.Whitelist)
	v.SetDefault("label", def.Label)
	v.SetDefault("page_size", def.PageSize)
	v.SetDefault("batch_size", def.BatchSize)
	v.SetDefault("batch_pause", def.BatchPause)
	v.SetDefault("rps", def.RPS)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound), !explicit && errors.Is(err, fs.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.fillPaths()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate clamps sizes to what the Gmail API accepts and rejects unknown
// token stores.
func (c *Config) Validate() error {
	if c.PageSize <= 0 || c.PageSize > gmail.MaxPageSize {
		c.PageSize = gmail.MaxPageSize
	}
	if c.BatchSize <= 0 || c.BatchSize > gmail.MaxBatchSize {
		c.BatchSize = gmail.MaxBatchSize
	}
	if c.BatchPause < 0 {
		return fmt.Errorf("batch_pause must not be negative, got %s", c.BatchPause)
	}
	switch c.TokenStore {
	case TokenStoreFile, TokenStoreKeyring:
	default:
		return fmt.Errorf("unknown token_store %q (want %q or %q)", c.TokenStore, TokenStoreFile, TokenStoreKeyring)
	}
	return nil
}

func (c *Config) fillPaths() {
	if c.Dir == "" {
		c.Dir = DefaultDir()
	}
	if c.CredentialsPath == "" {
		c.CredentialsPath = filepath.Join(c.Dir, "credentials.json")
	}
	if c.TokenPath == "" {
		c.TokenPath = filepath.Join(c.Dir, "token.json")
	}
}
