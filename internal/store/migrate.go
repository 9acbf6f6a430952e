package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations
var migrationFS embed.FS

// goose keeps its base FS, dialect and logger in package globals.
var gooseMu sync.Mutex

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// migrate applies the embedded migrations for the store's dialect.
func (s *Store) migrate(ctx context.Context) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := s.configureGoose(); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, s.db.DB, s.dialect.migrationDir()); err != nil {
		return fmt.Errorf("apply %s migrations: %w", s.dialect.name, err)
	}
	return nil
}

// SchemaVersion returns the latest applied migration version.
func (s *Store) SchemaVersion(ctx context.Context) (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := s.configureGoose(); err != nil {
		return 0, err
	}
	v, err := goose.GetDBVersionContext(ctx, s.db.DB)
	if err != nil {
		return 0, fmt.Errorf("get schema version: %w", err)
	}
	return v, nil
}

func (s *Store) configureGoose() error {
	goose.SetBaseFS(migrationFS)
	goose.SetLogger(gooseLogger{logger: s.logger})
	if err := goose.SetDialect(s.dialect.gooseDialect); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	return nil
}

// gooseLogger routes goose output into slog.
type gooseLogger struct {
	logger *slog.Logger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrate")
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrate")
}
