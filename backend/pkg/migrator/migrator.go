package migrator

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"

	"github.com/amacneil/dbmate/v2/pkg/dbmate"
	_ "github.com/amacneil/dbmate/v2/pkg/driver/sqlite"
	_ "github.com/mattn/go-sqlite3"

	"thermonode/backend/pkg/utils"
)

const migrationsDir = "migrations"

// Migrator applies embedded dbmate migrations to a SQLite database file.
type Migrator struct {
	db      *dbmate.DB
	fs      fs.FS
	sqlPath string
	l       *slog.Logger
}

// New creates a SQLite migrator. The FS must contain a "migrations" directory.
func New(l *slog.Logger, migrations fs.FS, sqlPath string) (*Migrator, error) {
	if sqlPath == "" {
		return nil, errors.New("sqlPath is required")
	}

	if strings.Contains(sqlPath, ":memory:") {
		return nil, errors.New("in-memory databases are not supported")
	}

	if _, err := fs.ReadDir(migrations, migrationsDir); err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	u, err := url.Parse("sqlite:" + sqlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}

	db := dbmate.New(u)
	db.Strict = true
	db.FS = migrations
	db.MigrationsDir = []string{migrationsDir}
	db.AutoDumpSchema = false

	l = l.With(slog.String("component", "db-migrator"), slog.String("dialect", "sqlite"))
	db.Log = utils.NewSlogWriter(l)

	return &Migrator{
		db:      db,
		fs:      migrations,
		sqlPath: sqlPath,
		l:       l,
	}, nil
}

// Migrate creates the database if needed and applies pending migrations.
func (m *Migrator) Migrate() error {
	m.l.Info("Migrating database", slog.String("path", m.sqlPath))

	if err := m.db.CreateAndMigrate(); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}

// DumpSchema writes the current schema to filePath.
func (m *Migrator) DumpSchema(filePath string) error {
	m.db.SchemaFile = filePath

	m.l.Info("Dumping schema", slog.String("file", filePath))

	if err := m.db.DumpSchema(); err != nil {
		return fmt.Errorf("failed to dump schema: %w", err)
	}

	return nil
}
