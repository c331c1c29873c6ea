// Package migrate runs the embedded SQL migrations against the audit
// and history Postgres databases at startup, the same discipline the
// gateway's own storage layer uses: the process fails to start rather
// than run against a schema it doesn't recognize.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/entool-router/sqlcore/internal/cerrors"
	"github.com/entool-router/sqlcore/migrations"
)

// Runner applies pending migrations from the embedded migrations.FS.
type Runner struct {
	db *sql.DB
}

// NewRunner builds a Runner over db.
func NewRunner(db *sql.DB) *Runner {
	return &Runner{db: db}
}

type migrationFile struct {
	version  string
	name     string
	filename string
	content  []byte
}

// Run applies every migration not yet recorded in schema_migrations, in
// version order, each inside its own transaction.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.ensureMigrationsTable(ctx); err != nil {
		return cerrors.NewConfigurationError("migrate: failed to create schema_migrations table", err)
	}

	applied, err := r.appliedVersions(ctx)
	if err != nil {
		return cerrors.NewConfigurationError("migrate: failed to read applied migrations", err)
	}

	files, err := r.migrationFiles()
	if err != nil {
		return cerrors.NewConfigurationError("migrate: failed to read migration files", err)
	}

	for _, m := range files {
		if applied[m.version] {
			continue
		}
		if err := r.apply(ctx, m); err != nil {
			return cerrors.NewConfigurationError(fmt.Sprintf("migrate: failed to apply %s", m.name), err)
		}
	}
	return nil
}

func (r *Runner) ensureMigrationsTable(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

func (r *Runner) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (r *Runner) migrationFiles() ([]migrationFile, error) {
	var files []migrationFile

	entries, err := fs.ReadDir(migrations.FS, ".")
	if err != nil {
		return files, nil
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".up.sql") {
			continue
		}

		parts := strings.SplitN(name, "_", 2)
		if len(parts) < 2 {
			continue
		}

		content, err := fs.ReadFile(migrations.FS, name)
		if err != nil {
			return nil, fmt.Errorf("migrate: failed to read %s: %w", name, err)
		}

		files = append(files, migrationFile{
			version:  parts[0],
			name:     strings.TrimSuffix(name, ".up.sql"),
			filename: name,
			content:  content,
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].version < files[j].version })
	return files, nil
}

func (r *Runner) apply(ctx context.Context, m migrationFile) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(m.content)); err != nil {
		return fmt.Errorf("migrate: failed to execute %s: %w", m.filename, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, applied_at) VALUES ($1, $2)`,
		m.version, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("migrate: failed to record %s: %w", m.filename, err)
	}

	return tx.Commit()
}
