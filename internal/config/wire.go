package config

import (
	"io"
	"log/slog"
	"strings"

	"github.com/faucetdb/acctd/internal/directory"
	"github.com/faucetdb/acctd/internal/handler"
	"github.com/faucetdb/acctd/internal/server"
	"github.com/faucetdb/acctd/internal/store"
)

// StoreOptions returns the account store options.
func (c *Config) StoreOptions(logger *slog.Logger) store.Options {
	return store.Options{
		Driver:          c.Store.Driver,
		DSN:             c.Store.DSN,
		MaxOpenConns:    c.Store.MaxOpenConns,
		MaxIdleConns:    c.Store.MaxIdleConns,
		ConnMaxLifetime: c.Store.ConnMaxLifetime.Std(),
		Logger:          logger,
	}
}

// HandlerConfig returns the lookup RPC configuration.
func (c *Config) HandlerConfig() handler.Config {
	return handler.Config{
		DirectoryAuthEnabled: c.Directory.Enabled,
		TokenFreshnessWindow: c.Auth.TokenWindow.Std(),
		FailureDelay:         c.Auth.FailureDelay.Std(),
	}
}

// ServerConfig returns the HTTP server configuration.
func (c *Config) ServerConfig() server.Config {
	return server.Config{
		Host:            c.Server.Host,
		Port:            c.Server.Port,
		ShutdownTimeout: c.Server.ShutdownTimeout.Std(),
		CORSOrigins:     c.Server.CORSOrigins,
		MaxBodySize:     c.Server.MaxBodySize,
		BaseURL:         c.Server.BaseURL,
	}
}

// LDAPConfig returns the directory connection settings.
func (c *Config) LDAPConfig() directory.LDAPConfig {
	return directory.LDAPConfig{
		URL:                c.Directory.URL,
		StartTLS:           c.Directory.StartTLS,
		InsecureSkipVerify: c.Directory.InsecureSkipVerify,
		BindDN:             c.Directory.BindDN,
		BindPassword:       c.Directory.BindPassword,
		BaseDN:             c.Directory.BaseDN,
		UIDAttribute:       c.Directory.UIDAttribute,
		NameAttribute:      c.Directory.NameAttribute,
		Timeout:            c.Directory.Timeout.Std(),
	}
}

// NewLogger builds the process logger. debug forces the debug level.
func (l LoggingConfig) NewLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(l.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
