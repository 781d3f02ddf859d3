// Package config loads ShopQL settings from defaults, an optional config
// file and SHOPQL_ environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/nickyhof/ShopQL/core"
	"github.com/nickyhof/ShopQL/store"
)

// EnvPrefix prefixes every environment variable, e.g. SHOPQL_STORE_KIND.
const EnvPrefix = "SHOPQL"

type Config struct {
	Store  StoreConfig  `mapstructure:"store"`
	Engine EngineConfig `mapstructure:"engine"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
}

type StoreConfig struct {
	Kind      string `mapstructure:"kind"`
	URL       string `mapstructure:"url"`
	APIKey    string `mapstructure:"api_key"`
	Path      string `mapstructure:"path"`
	DSN       string `mapstructure:"dsn"`
	Database  string `mapstructure:"database"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Author    string `mapstructure:"author"`
	Email     string `mapstructure:"email"`
}

type EngineConfig struct {
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	MaxRows      int           `mapstructure:"max_rows"`
}

type ServerConfig struct {
	Port      int     `mapstructure:"port"`
	HTTPPort  int     `mapstructure:"http_port"`
	JWTSecret string  `mapstructure:"jwt_secret"`
	Issuer    string  `mapstructure:"issuer"`
	Audience  string  `mapstructure:"audience"`
	Role      string  `mapstructure:"role"`
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
	TLSCert   string  `mapstructure:"tls_cert"`
	TLSKey    string  `mapstructure:"tls_key"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var defaults = map[string]any{
	"store.kind":           store.KindMemory,
	"store.url":            "",
	"store.api_key":        "",
	"store.path":           "",
	"store.dsn":            "",
	"store.database":       "",
	"store.region":         "",
	"store.endpoint":       "",
	"store.access_key":     "",
	"store.secret_key":     "",
	"store.author":         store.DefaultIdentity.Name,
	"store.email":          store.DefaultIdentity.Email,
	"engine.fetch_timeout": 10 * time.Second,
	"engine.max_rows":      50,
	"server.port":          3306,
	"server.http_port":     0,
	"server.jwt_secret":    "",
	"server.issuer":        "",
	"server.audience":      "",
	"server.role":          "",
	"server.rate_limit":    20.0,
	"server.rate_burst":    40,
	"server.tls_cert":      "",
	"server.tls_key":       "",
	"log.level":            "info",
	"log.format":           "text",
}

// Load reads path when non-empty. A missing path is an error; format is
// taken from the file extension.
func Load(path string) (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) Validate() error {
	var errs []error
	if cfg.Engine.FetchTimeout <= 0 {
		errs = append(errs, errors.New("engine.fetch_timeout must be positive"))
	}
	if cfg.Engine.MaxRows <= 0 {
		errs = append(errs, errors.New("engine.max_rows must be positive"))
	}
	if (cfg.Server.TLSCert == "") != (cfg.Server.TLSKey == "") {
		errs = append(errs, errors.New("server.tls_cert and server.tls_key must be set together"))
	}
	if _, err := parseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", cfg.Log.Format))
	}
	return errors.Join(errs...)
}

// StoreConfig converts the store section for store.Open.
func (cfg Config) StoreConfig() store.Config {
	return store.Config{
		Kind:     cfg.Store.Kind,
		URL:      cfg.Store.URL,
		APIKey:   cfg.Store.APIKey,
		Path:     cfg.Store.Path,
		DSN:      cfg.Store.DSN,
		Schema:   cfg.Store.Database,
		Identity: core.Identity{Name: cfg.Store.Author, Email: cfg.Store.Email},
		S3:       cfg.S3(),
	}
}

func (cfg Config) S3() store.S3Config {
	return store.S3Config{
		AccessKey: cfg.Store.AccessKey,
		SecretKey: cfg.Store.SecretKey,
		Region:    cfg.Store.Region,
		Endpoint:  cfg.Store.Endpoint,
	}
}

func parseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return 0, fmt.Errorf("invalid log.level %q", level)
	}
	return l, nil
}

// NewLogger builds a slog logger writing to w, or stderr when w is nil.
func (cfg LogConfig) NewLogger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level, err := parseLevel(cfg.Level)
	if err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
