package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// ErrNoMigrations is returned when a migrations directory holds no .surql files
var ErrNoMigrations = errors.New("no migrations found")

// Migration is one SurrealQL schema file
type Migration struct {
	Name      string
	Statement string
}

// LoadMigrations reads every .surql file in dir, ordered by file name
func LoadMigrations(dir string) ([]Migration, error) {
	return LoadMigrationsFS(os.DirFS(dir))
}

// LoadMigrationsFS reads every .surql file at the root of fsys, ordered by
// file name. Blank files are skipped.
func LoadMigrationsFS(fsys fs.FS) ([]Migration, error) {
	names, err := fs.Glob(fsys, "*.surql")
	if err != nil {
		return nil, fmt.Errorf("listing migrations: %w", err)
	}

	migrations := make([]Migration, 0, len(names))
	for _, name := range names {
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		if strings.TrimSpace(string(content)) == "" {
			continue
		}
		migrations = append(migrations, Migration{Name: name, Statement: string(content)})
	}
	if len(migrations) == 0 {
		return nil, ErrNoMigrations
	}
	return migrations, nil
}

// Migrate applies migrations in order and stops at the first failure.
// Schema files use DEFINE ... IF NOT EXISTS, so applying them again is a no-op.
func Migrate(ctx context.Context, db Database, migrations []Migration) error {
	for _, m := range migrations {
		if err := db.Execute(ctx, m.Statement, nil); err != nil {
			return fmt.Errorf("migration %s: %w", m.Name, err)
		}
	}
	return nil
}
