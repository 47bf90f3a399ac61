package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

var migrationFile = regexp.MustCompile(`^migrations/([0-9]+)_([a-z0-9_]+)\.(up|down)\.sql$`)

type migration struct {
	Version int64
	Name    string
	UpSQL   string
	DownSQL string
}

type migrationDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// loadMigrations pairs NNNN_name.up.sql and NNNN_name.down.sql files and
// returns them in version order.
func loadMigrations(fsys fs.FS) ([]migration, error) {
	paths, err := fs.Glob(fsys, "migrations/*.sql")
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, errors.New("no migration files found")
	}

	byVersion := make(map[int64]*migration)
	for _, p := range paths {
		m := migrationFile.FindStringSubmatch(p)
		if m == nil {
			return nil, fmt.Errorf("invalid migration filename: %s", p)
		}
		version, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse version in %s: %w", p, err)
		}
		body, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", p, err)
		}
		sqlText := strings.TrimSpace(string(body))
		if sqlText == "" {
			return nil, fmt.Errorf("empty migration file: %s", p)
		}

		entry, ok := byVersion[version]
		if !ok {
			entry = &migration{Version: version, Name: m[2]}
			byVersion[version] = entry
		} else if entry.Name != m[2] {
			return nil, fmt.Errorf("conflicting names for version %d: %s vs %s", version, entry.Name, m[2])
		}

		target := &entry.UpSQL
		if m[3] == "down" {
			target = &entry.DownSQL
		}
		if *target != "" {
			return nil, fmt.Errorf("duplicate %s migration for version %d", m[3], version)
		}
		*target = sqlText
	}

	out := make([]migration, 0, len(byVersion))
	for _, entry := range byVersion {
		if entry.UpSQL == "" || entry.DownSQL == "" {
			return nil, fmt.Errorf("migration version %d must include both up and down files", entry.Version)
		}
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

type runner struct {
	db         migrationDB
	migrations []migration
	logger     zerolog.Logger
}

func (r *runner) ensureTable(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version     BIGINT PRIMARY KEY,
    name        TEXT NOT NULL,
    applied_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`)
	return err
}

func (r *runner) appliedVersions(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int64
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (r *runner) up(ctx context.Context) (int, error) {
	versions, err := r.appliedVersions(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return 0, err
	}
	applied := make(map[int64]struct{}, len(versions))
	for _, v := range versions {
		applied[v] = struct{}{}
	}

	count := 0
	for _, m := range r.migrations {
		if _, ok := applied[m.Version]; ok {
			continue
		}
		err := r.inTx(ctx, m.UpSQL, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name)
		if err != nil {
			return count, fmt.Errorf("version %d up: %w", m.Version, err)
		}
		r.logger.Info().Int64("version", m.Version).Str("name", m.Name).Msg("applied migration")
		count++
	}
	return count, nil
}

func (r *runner) down(ctx context.Context, steps int) (int, error) {
	if steps <= 0 {
		return 0, errors.New("steps must be > 0")
	}
	byVersion := make(map[int64]migration, len(r.migrations))
	for _, m := range r.migrations {
		byVersion[m.Version] = m
	}

	versions, err := r.appliedVersions(ctx, `SELECT version FROM schema_migrations ORDER BY version DESC LIMIT $1`, steps)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, v := range versions {
		m, ok := byVersion[v]
		if !ok {
			return count, fmt.Errorf("cannot find migration source for applied version %d", v)
		}
		if err := r.inTx(ctx, m.DownSQL, `DELETE FROM schema_migrations WHERE version = $1`, m.Version); err != nil {
			return count, fmt.Errorf("version %d down: %w", m.Version, err)
		}
		r.logger.Info().Int64("version", m.Version).Str("name", m.Name).Msg("rolled back migration")
		count++
	}
	return count, nil
}

func (r *runner) version(ctx context.Context) (int64, string, error) {
	var version int64
	var name string
	err := r.db.QueryRow(ctx, `SELECT version, name FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&version, &name)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, "", nil
	}
	if err != nil {
		return 0, "", err
	}
	return version, name, nil
}

// inTx runs a migration body and its bookkeeping statement atomically.
func (r *runner) inTx(ctx context.Context, body, bookkeeping string, args ...any) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, body); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if _, err := tx.Exec(ctx, bookkeeping, args...); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("record version: %w", err)
	}
	return tx.Commit(ctx)
}
