// Package config loads depmap settings.
//
// Settings are layered: built-in defaults, then the TOML file, then a .env
// file in the working directory, then DEPMAP_* environment variables. The
// CLI applies its flags last.
//
//	# ~/.config/depmap/config.toml
//	[aports]
//	root = "/src/aports"
//	repositories = ["main", "community"]
//
//	[cache]
//	backend = "redis"
//	ttl = "24h"
//	[cache.redis]
//	addr = "localhost:6379"
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/matzehuels/depmap/pkg/deps/aports"
	"github.com/matzehuels/depmap/pkg/errors"
	"github.com/matzehuels/depmap/pkg/pipeline"
	"github.com/matzehuels/depmap/pkg/store"
)

// AppName names the configuration, cache and data directories.
const AppName = "depmap"

// Cache and store backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendNone  = "none"
	BackendMongo = "mongo"
)

// DefaultAddr is the address "depmap serve" listens on.
const DefaultAddr = "127.0.0.1:8080"

// Config is the complete set of settings.
type Config struct {
	Aports AportsConfig `toml:"aports"`
	Cache  CacheConfig  `toml:"cache"`
	Store  StoreConfig  `toml:"store"`
	Server ServerConfig `toml:"server"`
}

// AportsConfig locates the ports tree.
type AportsConfig struct {
	Root         string            `toml:"root"`
	Repositories []string          `toml:"repositories"`
	Workers      int               `toml:"workers"`
	Vars         map[string]string `toml:"vars"` // extra variables for every APKBUILD
}

// CacheConfig selects the scan cache backend.
type CacheConfig struct {
	Backend string        `toml:"backend"`
	Dir     string        `toml:"dir"`
	TTL     time.Duration `toml:"ttl"`
	Redis   RedisConfig   `toml:"redis"`
}

// RedisConfig points at a Redis server.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

// StoreConfig selects the snapshot store backend.
type StoreConfig struct {
	Backend string      `toml:"backend"`
	Dir     string      `toml:"dir"`
	Mongo   MongoConfig `toml:"mongo"`
}

// MongoConfig points at a MongoDB deployment.
type MongoConfig struct {
	URI      string `toml:"uri"`
	Database string `toml:"database"`
}

// ServerConfig configures "depmap serve".
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Aports: AportsConfig{Workers: aports.DefaultWorkers},
		Cache: CacheConfig{
			Backend: BackendFile,
			Dir:     CacheDir(),
			TTL:     pipeline.DefaultCacheTTL,
			Redis:   RedisConfig{Addr: "localhost:6379", Prefix: AppName},
		},
		Store: StoreConfig{
			Backend: BackendFile,
			Dir:     store.DefaultDir(),
			Mongo:   MongoConfig{URI: "mongodb://localhost:27017", Database: AppName},
		},
		Server: ServerConfig{Addr: DefaultAddr},
	}
}

// Load reads settings. An empty path reads the default file if it exists;
// an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = Path()
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "read config %s", path)
		}
	} else if explicit {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "read config %s", path)
	}

	_ = godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks backend names and numeric ranges.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case BackendFile, BackendRedis, BackendNone:
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown cache backend %q (want file, redis or none)", c.Cache.Backend)
	}
	switch c.Store.Backend {
	case BackendFile, BackendMongo:
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown store backend %q (want file or mongo)", c.Store.Backend)
	}
	if c.Aports.Workers < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "workers must not be negative")
	}
	for _, r := range c.Aports.Repositories {
		if err := errors.ValidateRepository(r); err != nil {
			return err
		}
	}
	return nil
}

// PipelineOptions returns scan options for the configured tree.
func (c *Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		Root:         c.Aports.Root,
		Repositories: c.Aports.Repositories,
		Workers:      c.Aports.Workers,
		Vars:         c.Aports.Vars,
		CacheTTL:     c.Cache.TTL,
	}
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	str("DEPMAP_APORTS", &c.Aports.Root)
	str("DEPMAP_CACHE", &c.Cache.Backend)
	str("DEPMAP_CACHE_DIR", &c.Cache.Dir)
	str("DEPMAP_REDIS_ADDR", &c.Cache.Redis.Addr)
	str("DEPMAP_REDIS_PASSWORD", &c.Cache.Redis.Password)
	str("DEPMAP_REDIS_PREFIX", &c.Cache.Redis.Prefix)
	str("DEPMAP_STORE", &c.Store.Backend)
	str("DEPMAP_STORE_DIR", &c.Store.Dir)
	str("DEPMAP_MONGO_URI", &c.Store.Mongo.URI)
	str("DEPMAP_MONGO_DB", &c.Store.Mongo.Database)
	str("DEPMAP_ADDR", &c.Server.Addr)

	if v := os.Getenv("DEPMAP_REPOS"); v != "" {
		c.Aports.Repositories = SplitList(v)
	}
	if v := os.Getenv("DEPMAP_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, err, "DEPMAP_WORKERS")
		}
		c.Aports.Workers = n
	}
	if v := os.Getenv("DEPMAP_REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, err, "DEPMAP_REDIS_DB")
		}
		c.Cache.Redis.DB = n
	}
	if v := os.Getenv("DEPMAP_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, err, "DEPMAP_CACHE_TTL")
		}
		c.Cache.TTL = d
	}
	return nil
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Path returns the default config file location.
func Path() string {
	return filepath.Join(xdg("XDG_CONFIG_HOME", ".config"), AppName, "config.toml")
}

// CacheDir returns the scan cache directory (~/.cache/depmap).
func CacheDir() string {
	return filepath.Join(xdg("XDG_CACHE_HOME", ".cache"), AppName)
}

func xdg(env, fallback string) string {
	if dir := os.Getenv(env); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), fallback)
	}
	return filepath.Join(home, fallback)
}

// String renders the settings as TOML with the Redis password masked.
func (c *Config) String() string {
	masked := *c
	if masked.Cache.Redis.Password != "" {
		masked.Cache.Redis.Password = "********"
	}
	var b strings.Builder
	if err := toml.NewEncoder(&b).Encode(masked); err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return b.String()
}
