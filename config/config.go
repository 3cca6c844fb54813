// Package config loads the service configuration: a JSON file under the
// resolved data directory, with environment variables taking precedence.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

const (
	// AppDirectoryName is the per-user application data directory name.
	AppDirectoryName = "cipherchat"
	// DefaultListenAddr is the HTTP bind address when no override exists.
	DefaultListenAddr = ":8085"
	// DefaultRedisAddr is the pub/sub broker address when no override exists.
	DefaultRedisAddr = "localhost:6379"
	// configFileName is the persisted configuration file.
	configFileName = "config.json"
)

// ServiceConfig contains persistent service settings.
type ServiceConfig struct {
	ListenAddr       string `json:"listen_addr"`
	DBPath           string `json:"db_path"`
	RedisAddr        string `json:"redis_addr"`
	DirectoryBaseURL string `json:"directory_base_url"`
	LogLevel         string `json:"log_level"`
	// FallbackPeerID, when positive, injects a synthetic conversation
	// entry for that user into every rollup missing it. Off by default.
	FallbackPeerID      int64  `json:"fallback_peer_id"`
	FallbackPeerPreview string `json:"fallback_peer_preview"`
}

// ResolveDataDir returns the OS-aware app data directory.
//
// If CIPHERCHAT_DATA_DIR is set, its value is used as an explicit override.
func ResolveDataDir() (string, error) {
	if override := os.Getenv("CIPHERCHAT_DATA_DIR"); override != "" {
		return override, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(base, AppDirectoryName), nil
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", AppDirectoryName), nil
	default:
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			base = filepath.Join(home, ".config")
		}
		return filepath.Join(base, AppDirectoryName), nil
	}
}

// ConfigPath returns the full path to config.json for a data directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, configFileName)
}

// Load reads and unmarshals config.json from disk.
func Load(path string) (*ServiceConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg ServiceConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// Save marshals and writes config.json to disk.
func Save(path string, cfg *ServiceConfig) error {
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	raw = append(raw, '\n')
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// LoadOrCreate ensures the data directory and config exist, applies
// defaults and environment overrides, and returns the config with its path.
func LoadOrCreate() (*ServiceConfig, string, error) {
	dataDir, err := ResolveDataDir()
	if err != nil {
		return nil, "", err
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, "", fmt.Errorf("create data directory: %w", err)
	}

	cfgPath := ConfigPath(dataDir)
	cfg, err := Load(cfgPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, "", err
		}

		cfg = defaultConfig(dataDir)
		if err := Save(cfgPath, cfg); err != nil {
			return nil, "", err
		}
	} else if normalizeDefaults(cfg, dataDir) {
		if err := Save(cfgPath, cfg); err != nil {
			return nil, "", err
		}
	}

	applyEnvOverrides(cfg)
	return cfg, cfgPath, nil
}

func defaultConfig(dataDir string) *ServiceConfig {
	return &ServiceConfig{
		ListenAddr: DefaultListenAddr,
		DBPath:     filepath.Join(dataDir, "chat.db"),
		RedisAddr:  DefaultRedisAddr,
		LogLevel:   "info",
	}
}

func normalizeDefaults(cfg *ServiceConfig, dataDir string) bool {
	updated := false

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
		updated = true
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(dataDir, "chat.db")
		updated = true
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = DefaultRedisAddr
		updated = true
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
		updated = true
	}
	if cfg.FallbackPeerID < 0 {
		cfg.FallbackPeerID = 0
		updated = true
	}

	return updated
}

func applyEnvOverrides(cfg *ServiceConfig) {
	if v := os.Getenv("CIPHERCHAT_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("CIPHERCHAT_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("CIPHERCHAT_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("CIPHERCHAT_DIRECTORY_URL"); v != "" {
		cfg.DirectoryBaseURL = v
	}
	if v := os.Getenv("CIPHERCHAT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CIPHERCHAT_FALLBACK_PEER_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.FallbackPeerID = id
		}
	}
	if v := os.Getenv("CIPHERCHAT_FALLBACK_PEER_PREVIEW"); v != "" {
		cfg.FallbackPeerPreview = v
	}
}
