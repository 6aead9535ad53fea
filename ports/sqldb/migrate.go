package sqldb

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"
)

// PrefixPlaceholder is replaced with the tenant table prefix in migration
// files.
const PrefixPlaceholder = "{{prefix}}"

// ApplyMigrations executes the *.sql files of fsys in name order, each at
// most once per table prefix. Applied files are recorded in
// <prefix>schema_migrations. Only the "-- +migrate Up" section of a file
// runs.
func ApplyMigrations(ctx context.Context, db DB, fsys fs.FS, prefix string) error {
	if db == nil {
		return fmt.Errorf("sql db is required")
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	table := prefix + "schema_migrations"
	if _, err := db.Exec(ctx, fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (name TEXT PRIMARY KEY, applied_at BIGINT NOT NULL)", table,
	)); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range files {
		content, err := fs.ReadFile(fsys, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		up := strings.ReplaceAll(ExtractUpMigration(string(content)), PrefixPlaceholder, prefix)
		if strings.TrimSpace(up) == "" {
			continue
		}

		err = db.Transactional(ctx, func(ctx context.Context, tx Tx) error {
			var found int
			err := tx.QueryRow(ctx, "SELECT 1 FROM "+table+" WHERE name = ?", file).Scan(&found)
			switch {
			case err == nil:
				return nil
			case !errors.Is(err, ErrNoRows):
				return fmt.Errorf("check: %w", err)
			}

			for _, stmt := range splitStatements(up) {
				if _, err := tx.Exec(ctx, stmt); err != nil && !IsAlreadyExistsError(err) {
					return fmt.Errorf("exec: %w", err)
				}
			}
			_, err = tx.Exec(ctx,
				"INSERT INTO "+table+" (name, applied_at) VALUES (?, ?) ON CONFLICT (name) DO NOTHING",
				file, time.Now().UTC().UnixMilli(),
			)
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %s: %w", file, err)
		}
	}
	return nil
}

// ExtractUpMigration returns the SQL in the -- +migrate Up section.
func ExtractUpMigration(content string) string {
	upIdx := strings.Index(content, "-- +migrate Up")
	if upIdx == -1 {
		return content
	}
	downIdx := strings.Index(content, "-- +migrate Down")
	if downIdx == -1 {
		return content[upIdx+len("-- +migrate Up"):]
	}
	return content[upIdx+len("-- +migrate Up") : downIdx]
}

// IsAlreadyExistsError reports whether this error indicates idempotent DDL success.
func IsAlreadyExistsError(err error) bool {
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "already exists") || strings.Contains(value, "duplicate column name")
}

// splitStatements splits on semicolons at line ends. Migration files keep
// one statement per terminated line group and no semicolons inside literals.
func splitStatements(script string) []string {
	var (
		out []string
		cur strings.Builder
	)
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			out = append(out, strings.TrimSpace(cur.String()))
			cur.Reset()
		}
	}
	if rest := strings.TrimSpace(cur.String()); rest != "" {
		out = append(out, rest)
	}
	return out
}
