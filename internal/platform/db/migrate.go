package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migration is a single SQL migration file, identified by the numeric
// prefix of its filename ("001_core.sql" has version 1).
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// MigrationStatus reports whether a known migration has been applied to a
// given agency schema.
type MigrationStatus struct {
	Version   int
	Name      string
	Applied   bool
	AppliedAt *time.Time
}

var migrationFilePattern = regexp.MustCompile(`^(\d+)_.+\.sql$`)

// Migrator applies SQL migration files per agency schema. Every schema
// carries its own schema_migrations table, so agencies can be provisioned
// and upgraded independently.
type Migrator struct {
	pool *pgxpool.Pool
	dir  string
}

func NewMigrator(pool *pgxpool.Pool, dir string) *Migrator {
	return &Migrator{pool: pool, dir: dir}
}

// load reads and sorts the migration files in the directory. Files whose
// names do not match the version prefix pattern are ignored.
func (m *Migrator) load() ([]Migration, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations directory %s: %w", m.dir, err)
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := migrationFilePattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		version, err := strconv.Atoi(match[1])
		if err != nil {
			return nil, fmt.Errorf("parse version of %s: %w", entry.Name(), err)
		}
		sql, err := os.ReadFile(filepath.Join(m.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		migrations = append(migrations, Migration{
			Version: version,
			Name:    entry.Name(),
			SQL:     string(sql),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

func (m *Migrator) ensureVersionTable(ctx context.Context, schema string) error {
	_, err := m.pool.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.schema_migrations (
    version INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, schema))
	if err != nil {
		return fmt.Errorf("create schema_migrations in %s: %w", schema, err)
	}
	return nil
}

func (m *Migrator) appliedVersions(ctx context.Context, schema string) (map[int]time.Time, error) {
	rows, err := m.pool.Query(ctx,
		fmt.Sprintf(`SELECT version, applied_at FROM %s.schema_migrations`, schema))
	if err != nil {
		return nil, fmt.Errorf("query applied migrations in %s: %w", schema, err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var v int
		var at time.Time
		if err := rows.Scan(&v, &at); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		applied[v] = at
	}
	return applied, rows.Err()
}

// Up applies every pending migration to the schema in version order, each
// in its own transaction. Returns how many were applied.
func (m *Migrator) Up(ctx context.Context, schema string) (int, error) {
	if err := m.ensureVersionTable(ctx, schema); err != nil {
		return 0, err
	}
	migrations, err := m.load()
	if err != nil {
		return 0, err
	}
	applied, err := m.appliedVersions(ctx, schema)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, mig := range migrations {
		if _, done := applied[mig.Version]; done {
			continue
		}
		if err := m.apply(ctx, schema, mig); err != nil {
			return count, fmt.Errorf("apply %s to %s: %w", mig.Name, schema, err)
		}
		count++
	}
	return count, nil
}

func (m *Migrator) apply(ctx context.Context, schema string, mig Migration) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// SET LOCAL scopes the search_path to this transaction only.
	if _, err := tx.Exec(ctx,
		fmt.Sprintf("SET LOCAL search_path TO %s, shared, public", schema)); err != nil {
		return fmt.Errorf("set search_path: %w", err)
	}
	if _, err := tx.Exec(ctx, mig.SQL); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		"INSERT INTO schema_migrations (version, name) VALUES ($1, $2)",
		mig.Version, mig.Name); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit(ctx)
}

// Status lists every known migration with its applied state for the schema.
func (m *Migrator) Status(ctx context.Context, schema string) ([]MigrationStatus, error) {
	if err := m.ensureVersionTable(ctx, schema); err != nil {
		return nil, err
	}
	migrations, err := m.load()
	if err != nil {
		return nil, err
	}
	applied, err := m.appliedVersions(ctx, schema)
	if err != nil {
		return nil, err
	}

	statuses := make([]MigrationStatus, 0, len(migrations))
	for _, mig := range migrations {
		st := MigrationStatus{Version: mig.Version, Name: mig.Name}
		if at, ok := applied[mig.Version]; ok {
			st.Applied = true
			appliedAt := at
			st.AppliedAt = &appliedAt
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}
