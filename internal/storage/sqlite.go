package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"reports/internal/domain"
)

// DB wraps a database/sql connection to the survey database. The same
// queries run against SQLite, MySQL and Postgres.
type DB struct {
	conn   *sql.DB
	driver domain.DatabaseDriver
}

// SQLiteDSN returns the modernc DSN used for local database files.
func SQLiteDSN(path string) string {
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_time_format=sqlite"
}

// New opens (or creates) the SQLite file at dbPath and creates the survey
// and report tables.
func New(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", SQLiteDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite only supports one writer; a single connection avoids SQLITE_BUSY.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, driver: domain.DatabaseDriverSQLite}
	if err := db.migrate(context.Background(), sourceSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := db.EnsureCatalog(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Wrap uses an already open connection. The survey schema is assumed to
// exist; call EnsureCatalog before storing reports in it.
func Wrap(conn *sql.DB, driver domain.DatabaseDriver) *DB {
	return &DB{conn: conn, driver: driver}
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Driver returns the SQL dialect of the connection.
func (db *DB) Driver() domain.DatabaseDriver {
	return db.driver
}

// rebind rewrites ? placeholders to $n for Postgres.
func (db *DB) rebind(query string) string {
	if db.driver != domain.DatabaseDriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for _, r := range query {
		switch {
		case r == '\'':
			inQuote = !inQuote
		case r == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// EnsureCatalog creates the report tables when missing.
func (db *DB) EnsureCatalog(ctx context.Context) error {
	ts := "DATETIME"
	if db.driver == domain.DatabaseDriverPostgres {
		ts = "TIMESTAMP"
	}
	catalog := []string{
		`CREATE TABLE IF NOT EXISTS report (
			id VARCHAR(64) PRIMARY KEY,
			type VARCHAR(32) NOT NULL,
			source_id VARCHAR(64) NOT NULL,
			status VARCHAR(16) NOT NULL,
			created_at ` + ts + ` NOT NULL,
			updated_at ` + ts + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS report_file (
			id VARCHAR(64) PRIMARY KEY,
			report_id VARCHAR(64) NOT NULL,
			file_type VARCHAR(16) NOT NULL,
			file_name VARCHAR(255) NOT NULL,
			created_at ` + ts + ` NOT NULL
		)`,
	}
	if err := db.migrate(ctx, catalog); err != nil {
		return fmt.Errorf("create report catalog: %w", err)
	}
	// MySQL has no CREATE INDEX IF NOT EXISTS.
	if db.driver != domain.DatabaseDriverMySQL {
		_, err := db.conn.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_report_file_report ON report_file(report_id)`)
		if err != nil {
			return fmt.Errorf("create report catalog: %w", err)
		}
	}
	return nil
}

func (db *DB) migrate(ctx context.Context, migrations []string) error {
	for _, m := range migrations {
		if _, err := db.conn.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %s: %w", firstLine(m), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// sourceSchema is the subset of the survey database the report engine
// reads. It is only created for local SQLite files.
var sourceSchema = []string{
	`CREATE TABLE IF NOT EXISTS study (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		default_locale_id TEXT NOT NULL DEFAULT '',
		deleted_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS form (
		id TEXT PRIMARY KEY,
		is_published BOOLEAN NOT NULL DEFAULT 0,
		deleted_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS study_form (
		study_id TEXT NOT NULL REFERENCES study(id),
		form_master_id TEXT NOT NULL REFERENCES form(id),
		sort_order INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS form_section (
		form_id TEXT NOT NULL REFERENCES form(id),
		section_id TEXT NOT NULL,
		sort_order INTEGER NOT NULL DEFAULT 0,
		follow_up_question_id TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS section_question_group (
		section_id TEXT NOT NULL,
		question_group_id TEXT NOT NULL,
		question_group_order INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS question_type (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS question (
		id TEXT PRIMARY KEY,
		question_group_id TEXT NOT NULL,
		question_type_id TEXT NOT NULL REFERENCES question_type(id),
		var_name TEXT NOT NULL,
		sort_order INTEGER NOT NULL DEFAULT 0,
		deleted_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS translation_text (
		translation_id TEXT NOT NULL,
		locale_id TEXT NOT NULL,
		translated_text TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS choice (
		id TEXT PRIMARY KEY,
		val TEXT NOT NULL,
		choice_translation_id TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS question_choice (
		question_id TEXT NOT NULL REFERENCES question(id),
		choice_id TEXT NOT NULL REFERENCES choice(id),
		sort_order INTEGER NOT NULL DEFAULT 0,
		deleted_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS survey (
		id TEXT PRIMARY KEY,
		form_id TEXT NOT NULL REFERENCES form(id),
		respondent_id TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		completed_at DATETIME,
		deleted_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS datum (
		id TEXT PRIMARY KEY,
		survey_id TEXT NOT NULL REFERENCES survey(id),
		question_id TEXT NOT NULL,
		val TEXT,
		opt_out TEXT,
		sort_order INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		deleted_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS datum_choice (
		datum_id TEXT NOT NULL REFERENCES datum(id),
		choice_id TEXT NOT NULL REFERENCES choice(id),
		deleted_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS geo (
		id TEXT PRIMARY KEY,
		name_translation_id TEXT,
		parent_id TEXT,
		deleted_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS datum_geo (
		datum_id TEXT NOT NULL REFERENCES datum(id),
		geo_id TEXT NOT NULL REFERENCES geo(id),
		deleted_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS photo (
		id TEXT PRIMARY KEY,
		file_name TEXT NOT NULL,
		deleted_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS datum_photo (
		datum_id TEXT NOT NULL REFERENCES datum(id),
		photo_id TEXT NOT NULL REFERENCES photo(id),
		sort_order INTEGER NOT NULL DEFAULT 0,
		deleted_at DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS idx_survey_form ON survey(form_id)`,
	`CREATE INDEX IF NOT EXISTS idx_datum_survey_question ON datum(survey_id, question_id)`,
	`CREATE INDEX IF NOT EXISTS idx_question_choice_question ON question_choice(question_id)`,
}
