// Package config loads the acctd configuration from file, environment and
// flags through viper, and writes it back out as YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/faucetdb/acctd/internal/store"
)

// EnvPrefix prefixes every environment override, e.g. ACCTD_STORE_DSN.
const EnvPrefix = "ACCTD"

// FileName is the config file name searched for without an explicit --config.
const FileName = "acctd"

// Config is the top-level acctd configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Auth      AuthConfig      `yaml:"auth" mapstructure:"auth"`
	Directory DirectoryConfig `yaml:"directory" mapstructure:"directory"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string   `yaml:"host" mapstructure:"host"`
	Port            int      `yaml:"port" mapstructure:"port"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	CORSOrigins     []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	MaxBodySize     int64    `yaml:"max_body_size" mapstructure:"max_body_size"`
	BaseURL         string   `yaml:"base_url" mapstructure:"base_url"`
}

// StoreConfig selects and tunes the account database.
type StoreConfig struct {
	Driver          string   `yaml:"driver" mapstructure:"driver"`
	DSN             string   `yaml:"dsn" mapstructure:"dsn"`
	MaxOpenConns    int      `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// AuthConfig controls the credential checks of the lookup RPCs.
type AuthConfig struct {
	FailureDelay Duration `yaml:"failure_delay" mapstructure:"failure_delay"`
	TokenWindow  Duration `yaml:"token_window" mapstructure:"token_window"`
}

// DirectoryConfig configures LDAP directory authentication.
type DirectoryConfig struct {
	Enabled            bool     `yaml:"enabled" mapstructure:"enabled"`
	URL                string   `yaml:"url" mapstructure:"url"`
	StartTLS           bool     `yaml:"start_tls" mapstructure:"start_tls"`
	InsecureSkipVerify bool     `yaml:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`
	BindDN             string   `yaml:"bind_dn" mapstructure:"bind_dn"`
	BindPassword       string   `yaml:"bind_password" mapstructure:"bind_password"`
	BaseDN             string   `yaml:"base_dn" mapstructure:"base_dn"`
	UIDAttribute       string   `yaml:"uid_attribute" mapstructure:"uid_attribute"`
	NameAttribute      string   `yaml:"name_attribute" mapstructure:"name_attribute"`
	Timeout            Duration `yaml:"timeout" mapstructure:"timeout"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Default returns a Config pre-filled with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: Duration(30 * time.Second),
			CORSOrigins:     []string{"*"},
			MaxBodySize:     64 * 1024,
		},
		Store: StoreConfig{
			Driver:          "sqlite",
			DSN:             "acctd.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: Duration(5 * time.Minute),
		},
		Auth: AuthConfig{
			FailureDelay: Duration(5 * time.Second),
			TokenWindow:  Duration(24 * time.Hour),
		},
		Directory: DirectoryConfig{
			UIDAttribute:  "uid",
			NameAttribute: "cn",
			Timeout:       Duration(10 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// SetDefaults registers every key with its default on v. Keys viper does not
// know about are invisible to environment overrides.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout.String())
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)
	v.SetDefault("server.max_body_size", d.Server.MaxBodySize)
	v.SetDefault("server.base_url", d.Server.BaseURL)

	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.dsn", d.Store.DSN)
	v.SetDefault("store.max_open_conns", d.Store.MaxOpenConns)
	v.SetDefault("store.max_idle_conns", d.Store.MaxIdleConns)
	v.SetDefault("store.conn_max_lifetime", d.Store.ConnMaxLifetime.String())

	v.SetDefault("auth.failure_delay", d.Auth.FailureDelay.String())
	v.SetDefault("auth.token_window", d.Auth.TokenWindow.String())

	v.SetDefault("directory.enabled", d.Directory.Enabled)
	v.SetDefault("directory.url", d.Directory.URL)
	v.SetDefault("directory.start_tls", d.Directory.StartTLS)
	v.SetDefault("directory.insecure_skip_verify", d.Directory.InsecureSkipVerify)
	v.SetDefault("directory.bind_dn", d.Directory.BindDN)
	v.SetDefault("directory.bind_password", d.Directory.BindPassword)
	v.SetDefault("directory.base_dn", d.Directory.BaseDN)
	v.SetDefault("directory.uid_attribute", d.Directory.UIDAttribute)
	v.SetDefault("directory.name_attribute", d.Directory.NameAttribute)
	v.SetDefault("directory.timeout", d.Directory.Timeout.String())

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// Init prepares v to read the config file and ACCTD_* environment. An empty
// path searches ./acctd.yaml and $HOME/.acctd/acctd.yaml. A missing file is
// not an error; an unreadable one is.
func Init(v *viper.Viper, path string) error {
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.acctd")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Load decodes the effective configuration held by v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: %d out of range", c.Server.Port)
	}
	if c.Auth.FailureDelay < 0 {
		return errors.New("auth.failure_delay must not be negative")
	}
	if c.Auth.TokenWindow <= 0 {
		return errors.New("auth.token_window must be positive")
	}

	known := false
	for _, d := range append(store.Drivers(), "sqlite3", "pgx", "mssql") {
		if strings.EqualFold(c.Store.Driver, d) {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("store.driver: unsupported driver %q (available: %v)", c.Store.Driver, store.Drivers())
	}

	if c.Directory.Enabled {
		if c.Directory.URL == "" {
			return errors.New("directory.url is required when directory.enabled is set")
		}
		if c.Directory.BaseDN == "" {
			return errors.New("directory.base_dn is required when directory.enabled is set")
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unknown level %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format: unknown format %q", c.Logging.Format)
	}
	return nil
}

// WriteYAML writes c as YAML.
func (c *Config) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

// WriteFile writes c as YAML to path, refusing to replace an existing file
// unless force is set. The file may hold credentials, so it is created 0600.
func (c *Config) WriteFile(path string, force bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		return fmt.Errorf("create config file: %w", err)
	}
	if err := c.WriteYAML(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
