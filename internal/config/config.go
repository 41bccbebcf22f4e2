package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	toml "github.com/pelletier/go-toml/v2"
)

// Config captures everything deck needs to reach the platform.
type Config struct {
	APIBase        string        `env:"API_BASE"`
	SocketURL      string        `env:"SOCKET_URL"`
	UserID         string        `env:"USER_ID"`
	Token          string        `env:"TOKEN"`
	StatePath      string        `env:"STATE_PATH"`
	LogPath        string        `env:"LOG_PATH"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
	Cache          CacheConfig   `envPrefix:"CACHE_"`
	Upload         UploadConfig  `envPrefix:"UPLOAD_"`

	// Endpoints overrides the built-in operation -> URL template table.
	Endpoints map[string]string
}

// CacheConfig holds the default revalidation policy.
type CacheConfig struct {
	DedupingInterval      time.Duration `env:"DEDUPING_INTERVAL"`
	RefreshInterval       time.Duration `env:"REFRESH_INTERVAL"`
	RevalidateOnFocus     bool          `env:"REVALIDATE_ON_FOCUS"`
	RevalidateOnReconnect bool          `env:"REVALIDATE_ON_RECONNECT"`
}

// UploadConfig constrains files accepted for video uploads.
type UploadConfig struct {
	Accept  []string `env:"ACCEPT" envSeparator:","`
	MaxSize int64    `env:"MAX_SIZE"` // bytes
}

const (
	envPrefix             = "DECK_"
	defaultConfigPath     = "~/.config/deck/config.toml"
	defaultStatePath      = "~/.local/share/deck/state.db"
	defaultAPIBase        = "http://127.0.0.1:8080"
	defaultRequestTimeout = 10 * time.Second
	defaultDeduping       = 2 * time.Second
	defaultMaxSizeMB      = 500
)

var defaultAccept = []string{"video/*"}

type rawConfig struct {
	APIBase          string `toml:"api_base"`
	SocketURL        string `toml:"socket_url"`
	UserID           string `toml:"user_id"`
	Token            string `toml:"token"`
	StatePath        string `toml:"state_path"`
	LogPath          string `toml:"log_path"`
	RequestTimeoutMS int    `toml:"request_timeout_ms"`
	Cache            struct {
		DedupingIntervalMS    *int  `toml:"deduping_interval_ms"`
		RefreshIntervalMS     int   `toml:"refresh_interval_ms"`
		RevalidateOnFocus     *bool `toml:"revalidate_on_focus"`
		RevalidateOnReconnect *bool `toml:"revalidate_on_reconnect"`
	} `toml:"cache"`
	Upload struct {
		Accept    []string `toml:"accept"`
		MaxSizeMB int64    `toml:"max_size_mb"`
	} `toml:"upload"`
	Endpoints map[string]string `toml:"endpoints"`
}

// Default returns the configuration used when no file or environment
// overrides exist.
func Default() Config {
	return Config{
		APIBase:        defaultAPIBase,
		StatePath:      mustExpand(defaultStatePath),
		RequestTimeout: defaultRequestTimeout,
		Cache: CacheConfig{
			DedupingInterval:      defaultDeduping,
			RevalidateOnFocus:     true,
			RevalidateOnReconnect: true,
		},
		Upload: UploadConfig{
			Accept:  append([]string(nil), defaultAccept...),
			MaxSize: defaultMaxSizeMB << 20,
		},
	}
}

// Load reads the TOML config at path (or the default location), applies
// DECK_* environment overrides and fills in defaults.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	bytes, err := readFile(resolved)
	if err != nil {
		return Config{}, err
	}
	if bytes != nil {
		var raw rawConfig
		if err := toml.Unmarshal(bytes, &raw); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
		raw.apply(&cfg)
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	return cfg.normalize()
}

func readFile(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return bytes, nil
}

func (r rawConfig) apply(cfg *Config) {
	setString(&cfg.APIBase, r.APIBase)
	setString(&cfg.SocketURL, r.SocketURL)
	setString(&cfg.UserID, r.UserID)
	setString(&cfg.Token, r.Token)
	setString(&cfg.StatePath, r.StatePath)
	setString(&cfg.LogPath, r.LogPath)
	if r.RequestTimeoutMS > 0 {
		cfg.RequestTimeout = time.Duration(r.RequestTimeoutMS) * time.Millisecond
	}
	if r.Cache.DedupingIntervalMS != nil && *r.Cache.DedupingIntervalMS >= 0 {
		cfg.Cache.DedupingInterval = time.Duration(*r.Cache.DedupingIntervalMS) * time.Millisecond
	}
	if r.Cache.RefreshIntervalMS > 0 {
		cfg.Cache.RefreshInterval = time.Duration(r.Cache.RefreshIntervalMS) * time.Millisecond
	}
	if r.Cache.RevalidateOnFocus != nil {
		cfg.Cache.RevalidateOnFocus = *r.Cache.RevalidateOnFocus
	}
	if r.Cache.RevalidateOnReconnect != nil {
		cfg.Cache.RevalidateOnReconnect = *r.Cache.RevalidateOnReconnect
	}
	if len(r.Upload.Accept) > 0 {
		cfg.Upload.Accept = r.Upload.Accept
	}
	if r.Upload.MaxSizeMB > 0 {
		cfg.Upload.MaxSize = r.Upload.MaxSizeMB << 20
	}
	if len(r.Endpoints) > 0 {
		cfg.Endpoints = r.Endpoints
	}
}

func (c Config) normalize() (Config, error) {
	c.APIBase = strings.TrimRight(strings.TrimSpace(c.APIBase), "/")
	if c.APIBase == "" {
		c.APIBase = defaultAPIBase
	}
	if strings.TrimSpace(c.SocketURL) == "" {
		socketURL, err := SocketURLFor(c.APIBase)
		if err != nil {
			return Config{}, err
		}
		c.SocketURL = socketURL
	}
	c.UserID = strings.TrimSpace(c.UserID)
	c.StatePath = mustExpand(c.StatePath)
	if strings.TrimSpace(c.LogPath) != "" {
		c.LogPath = mustExpand(c.LogPath)
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	return c, nil
}

// SocketURLFor derives the realtime endpoint from the API base URL:
// http(s)://host/... becomes ws(s)://host/socket.
func SocketURLFor(apiBase string) (string, error) {
	u, err := url.Parse(apiBase)
	if err != nil {
		return "", fmt.Errorf("parse api_base %q: %w", apiBase, err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/socket"
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

func setString(dst *string, v string) {
	if trimmed := strings.TrimSpace(v); trimmed != "" {
		*dst = trimmed
	}
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
