// Package config provides runner configuration loading and validation.
// It uses koanf to merge environment variables with optional file
// overrides; environment variables take precedence.
package config

import (
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// Environment variables consumed by the runner. The upload credentials
// are read separately by the index package.
const (
	IndexURLEnv = "RELEASER_INDEX_URL"
	CacheDirEnv = "RELEASER_CACHE_DIR"
	TagEnv      = "RELEASER_TAG"
)

// DefaultCacheDir is used when no cache directory is configured.
const DefaultCacheDir = ".releaser-cache"

var ErrMissingIndexURL = errors.New("RELEASER_INDEX_URL is required to publish")

// Config holds the runner configuration. The trigger tag lives here
// because it is an input of the run, not of the project: the same
// project definition builds on branches and publishes on tags.
type Config struct {
	IndexURL string `koanf:"index_url"`
	CacheDir string `koanf:"cache_dir"`
	Tag      string `koanf:"tag"`
}

// Load reads configuration from an optional YAML file and the
// environment. Environment variables take precedence over file values.
func Load(configFilePath string) (*Config, error) {
	k := koanf.New(".")

	if configFilePath != "" {
		err := k.Load(file.Provider(configFilePath), yaml.Parser())
		if err != nil {
			return nil, errors.Wrapf(err, "unable to load config file %s", configFilePath)
		}
	}

	cfg := &Config{
		IndexURL: getEnvOrKoanf(IndexURLEnv, k, "index_url"),
		CacheDir: getEnvOrKoanf(CacheDirEnv, k, "cache_dir"),
		Tag:      getEnvOrKoanf(TagEnv, k, "tag"),
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = DefaultCacheDir
	}

	return cfg, nil
}

// ValidateForPublish checks the fields only needed when the gate
// passes. A branch build never publishes and may run without them.
func (c *Config) ValidateForPublish() error {
	if c.IndexURL == "" {
		return ErrMissingIndexURL
	}

	return nil
}

func getEnvOrKoanf(envName string, k *koanf.Koanf, key string) string {
	if value := os.Getenv(envName); value != "" {
		return value
	}

	return k.String(key)
}
