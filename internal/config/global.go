package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// ConfigDir is the directory name under XDG_CONFIG_HOME.
	ConfigDir = "bibrename"
	// ConfigFile is the config file name.
	ConfigFile = "config.yml"
)

// Environment variables that override the file.
const (
	EnvMailto      = "BIBRENAME_MAILTO"
	EnvCrossrefURL = "BIBRENAME_CROSSREF_URL"
	EnvOpenAlexURL = "BIBRENAME_OPENALEX_URL"
	EnvCache       = "BIBRENAME_CACHE"
	EnvAddr        = "BIBRENAME_ADDR"
)

// configCache caches the loaded config.
var configCache *Config

// Path returns the path to the config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/bibrename/config.yml.
func Path() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, ConfigDir, ConfigFile)
}

// Load returns the configuration from the default path with environment
// overrides applied. A missing file yields the defaults.
func Load() (*Config, error) {
	if configCache != nil {
		return configCache, nil
	}

	cfg, err := LoadFile(Path())
	if err != nil {
		return nil, err
	}

	configCache = cfg
	return cfg, nil
}

// LoadFile reads the configuration at path over the defaults and applies
// environment overrides. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	applyEnv(cfg)
	cfg.CachePath = ExpandPath(cfg.CachePath)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ResetCache clears the cached config.
// Useful for testing.
func ResetCache() {
	configCache = nil
}

func applyEnv(cfg *Config) {
	overrides := []struct {
		name string
		dst  *string
	}{
		{EnvMailto, &cfg.Mailto},
		{EnvCrossrefURL, &cfg.CrossrefURL},
		{EnvOpenAlexURL, &cfg.OpenAlexURL},
		{EnvCache, &cfg.CachePath},
		{EnvAddr, &cfg.ServerAddr},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.name); v != "" {
			*o.dst = v
		}
	}
}
