package cmd

import (
	"errors"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the CLI configuration, read from a YAML file and overridable by
// environment variables.
type Config struct {
	// Bucket is the Cloud Storage bucket holding the spaces.
	Bucket string `koanf:"bucket"`
	// Credentials is an optional service account key file. When empty the
	// client falls back to application default credentials.
	Credentials string `koanf:"credentials"`
	// CacheDir is where the offline snapshot cache lives.
	CacheDir string `koanf:"cache_dir"`
	// Space is the default space to operate on.
	Space string `koanf:"space"`
	// Holder is the name shown to other members of a shared space while this
	// user has unsaved edits.
	Holder string `koanf:"holder"`
	// Currency is the ISO code amounts are displayed in.
	Currency string `koanf:"currency"`
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// Spaces lists the spaces this user may access.
	Spaces SpacesConfig `koanf:"spaces"`
}

// SpacesConfig splits spaces by access level.
type SpacesConfig struct {
	Writable []string `koanf:"writable"`
	ReadOnly []string `koanf:"read_only"`
}

func defaultConfig() Config {
	cacheDir, _ := os.UserCacheDir()
	return Config{
		CacheDir: filepath.Join(cacheDir, "earmark"),
		Space:    "personal",
		Holder:   defaultHolder(),
		Currency: "EUR",
		LogLevel: "warn",
		Spaces:   SpacesConfig{Writable: []string{"personal"}},
	}
}

func defaultHolder() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	host, _ := os.Hostname()
	return host
}

// configPath returns the config file to read: EARMARK_CONFIG if set, the
// standard user config location otherwise.
func configPath() string {
	if path := os.Getenv("EARMARK_CONFIG"); path != "" {
		return path
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "earmark", "config.yaml")
}

// LoadConfig layers defaults, the optional YAML file, and EARMARK_* env
// vars, lowest precedence first.
func LoadConfig() (Config, error) {
	cfg := defaultConfig()

	k := koanf.New(".")
	if path := configPath(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, err
		}
	}

	// EARMARK_BUCKET -> bucket, EARMARK_CACHE_DIR -> cache_dir, ...
	envProvider := env.Provider("EARMARK_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "earmark_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return cfg, err
	}

	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return cfg, err
	}
	if cfg.Bucket == "" {
		return cfg, errors.New("bucket must be configured (config file or EARMARK_BUCKET)")
	}
	return cfg, nil
}
