// Package sqlitemigrate applies embedded SQL migrations against a SQLite
// database, recording each applied file so replays are cheap no-ops.
package sqlitemigrate

import (
	"database/sql"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"
)

const (
	ledgerTable = "migration_history"
	upMarker    = "-- +migrate Up"
	downMarker  = "-- +migrate Down"
)

// Apply runs every .sql file in src, in lexical order, skipping files the
// ledger already records. Files use sql-migrate style Up/Down markers; only
// the Up section is executed.
func Apply(db *sql.DB, src fs.FS) error {
	if db == nil {
		return fmt.Errorf("sql db is required")
	}

	files, err := listMigrations(src)
	if err != nil {
		return err
	}
	if err := ensureLedger(db); err != nil {
		return err
	}

	for _, file := range files {
		if err := applyFile(db, src, file); err != nil {
			return err
		}
	}
	return nil
}

func listMigrations(src fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(src, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	return files, nil
}

func ensureLedger(db *sql.DB) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    filename TEXT PRIMARY KEY,
    applied_at_ms INTEGER NOT NULL
);
`, ledgerTable)
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("ensure migration ledger: %w", err)
	}
	return nil
}

func applyFile(db *sql.DB, src fs.FS, file string) error {
	recorded, err := inLedger(db, file)
	if err != nil {
		return fmt.Errorf("check migration %s: %w", file, err)
	}
	if recorded {
		return nil
	}

	content, err := fs.ReadFile(src, file)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", file, err)
	}
	stmts := upSection(string(content))
	if strings.TrimSpace(stmts) == "" {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", file, err)
	}
	if _, err := tx.Exec(stmts); err != nil && !isIdempotentDDLError(err) {
		_ = tx.Rollback()
		return fmt.Errorf("exec migration %s: %w", file, err)
	}
	if _, err := tx.Exec(
		fmt.Sprintf("INSERT OR IGNORE INTO %s (filename, applied_at_ms) VALUES (?, ?)", ledgerTable),
		file, time.Now().UTC().UnixMilli(),
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %s: %w", file, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", file, err)
	}
	return nil
}

// upSection returns the SQL between the Up and Down markers. Files without
// markers run whole, which keeps plain schema dumps usable as migrations.
func upSection(content string) string {
	up := strings.Index(content, upMarker)
	if up == -1 {
		return content
	}
	body := content[up+len(upMarker):]
	if down := strings.Index(body, downMarker); down != -1 {
		body = body[:down]
	}
	return body
}

// isIdempotentDDLError reports whether the DDL failed only because its
// objects already exist, which happens when a ledger row was lost but the
// schema survived.
func isIdempotentDDLError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate column name")
}

func inLedger(db *sql.DB, file string) (bool, error) {
	var one int
	err := db.QueryRow("SELECT 1 FROM "+ledgerTable+" WHERE filename = ?", file).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
