package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// Migrator handles database schema migrations.
type Migrator struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewMigrator creates a new migrator instance.
func NewMigrator(pool *pgxpool.Pool, logger *zap.Logger) *Migrator {
	return &Migrator{
		pool:   pool,
		logger: logger.Named("migrate"),
	}
}

// migration is one NNN_name.up.sql file.
type migration struct {
	version  int
	filename string
}

// MigrateFromFS runs all pending migrations found in dir of fsys.
func (m *Migrator) MigrateFromFS(ctx context.Context, fsys fs.FS, dir string) error {
	if err := m.ensureMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := m.getAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	all, err := listMigrations(fsys, dir)
	if err != nil {
		return err
	}

	for _, mig := range all {
		if applied[mig.version] {
			continue
		}

		m.logger.Info("applying migration", zap.String("file", mig.filename), zap.Int("version", mig.version))

		content, err := fs.ReadFile(fsys, path.Join(dir, mig.filename))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", mig.filename, err)
		}

		if err := m.applyMigration(ctx, mig.version, mig.filename, string(content)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", mig.filename, err)
		}
	}

	return nil
}

// listMigrations returns the up migrations of dir sorted by version.
// Files without a numeric prefix are skipped and duplicate versions rejected.
func listMigrations(fsys fs.FS, dir string) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	seen := make(map[int]string)
	var out []migration
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		version := extractVersion(name)
		if version == 0 {
			continue
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("duplicate migration version %d: %s and %s", version, prev, name)
		}
		seen[version] = name
		out = append(out, migration{version: version, filename: name})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

// ensureMigrationsTable creates the schema_migrations table if it doesn't exist.
func (m *Migrator) ensureMigrationsTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			filename TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	_, err := m.pool.Exec(ctx, query)
	return err
}

// getAppliedMigrations returns a map of applied migration versions.
func (m *Migrator) getAppliedMigrations(ctx context.Context) (map[int]bool, error) {
	rows, err := m.pool.Query(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

// applyMigration runs a single migration in a transaction.
func (m *Migrator) applyMigration(ctx context.Context, version int, filename, sql string) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, sql); err != nil {
		return fmt.Errorf("migration SQL failed: %w", err)
	}

	_, err = tx.Exec(ctx,
		"INSERT INTO schema_migrations (version, filename) VALUES ($1, $2)",
		version, filename,
	)
	if err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit(ctx)
}

// extractVersion extracts the version number from a migration filename.
// Expected format: NNN_description.up.sql (e.g., 001_initial.up.sql)
func extractVersion(filename string) int {
	parts := strings.SplitN(filename, "_", 2)
	if len(parts) < 2 {
		return 0
	}
	version, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0
	}
	return version
}
