package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fortuna/kitscout/internal/logger"
	"github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
	"modernc.org/sqlite" // SQLite driver
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect is the SQL flavour behind a Database.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

var numbered = regexp.MustCompile(`\$(\d+)`)

// Database wraps the lead store connection.
type Database struct {
	conn    *sql.DB
	dialect Dialect
	log     *zap.Logger
}

// Open connects to dsn. "postgres://" and "postgresql://" use lib/pq;
// "sqlite://path", "file:" and ":memory:" use SQLite.
func Open(ctx context.Context, dsn string, log *zap.Logger) (*Database, error) {
	log = logger.OrNop(log).Named("store")

	dialect, source, err := parseDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(string(dialect), source)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	switch dialect {
	case Postgres:
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
		db.SetConnMaxIdleTime(10 * time.Minute)
	case SQLite:
		// one writer; also keeps ":memory:" databases alive across queries
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if dialect == SQLite {
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling foreign keys: %w", err)
		}
	}

	log.Info("database connected", zap.String("dialect", string(dialect)))
	return &Database{conn: db, dialect: dialect, log: log}, nil
}

func parseDSN(dsn string) (Dialect, string, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return Postgres, dsn, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		p := strings.TrimPrefix(dsn, "sqlite://")
		if p == "" {
			return "", "", fmt.Errorf("sqlite dsn has no path: %q", dsn)
		}
		if p != ":memory:" {
			if dir := filepath.Dir(p); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return "", "", fmt.Errorf("creating database directory: %w", err)
				}
			}
		}
		return SQLite, p, nil
	case strings.HasPrefix(dsn, "file:"), dsn == ":memory:":
		return SQLite, dsn, nil
	default:
		return "", "", fmt.Errorf("unsupported database url %q (want postgres:// or sqlite://)", dsn)
	}
}

// Close closes the database connection
func (db *Database) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// DB returns the underlying *sql.DB for queries
func (db *Database) DB() *sql.DB {
	return db.conn
}

// Dialect reports which driver is in use.
func (db *Database) Dialect() Dialect {
	return db.dialect
}

// bind rewrites numbered $N placeholders to positional ? for SQLite,
// reordering args to match. Queries must not contain a literal '$'.
func (db *Database) bind(query string, args []any) (string, []any) {
	if db.dialect != SQLite {
		return query, args
	}
	out := make([]any, 0, len(args))
	q := numbered.ReplaceAllStringFunc(query, func(m string) string {
		n, _ := strconv.Atoi(m[1:])
		if n >= 1 && n <= len(args) {
			out = append(out, args[n-1])
		}
		return "?"
	})
	return q, out
}

// ExecContext runs a statement written with $N placeholders.
func (db *Database) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	query, args = db.bind(query, args)
	return db.conn.ExecContext(ctx, query, args...)
}

// QueryContext runs a query written with $N placeholders.
func (db *Database) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	query, args = db.bind(query, args)
	return db.conn.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a single-row query written with $N placeholders.
func (db *Database) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	query, args = db.bind(query, args)
	return db.conn.QueryRowContext(ctx, query, args...)
}

// RunMigrations applies the embedded migrations for the active dialect in
// file-name order, skipping those already recorded in schema_migrations.
func (db *Database) RunMigrations(ctx context.Context) error {
	if err := db.createMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	dir := path.Join("migrations", string(db.dialect))
	entries, err := fs.ReadDir(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("listing migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		if err := db.runMigration(ctx, dir, name); err != nil {
			return fmt.Errorf("failed to run migration %s: %w", name, err)
		}
	}
	return nil
}

func (db *Database) createMigrationsTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL
		)
	`
	_, err := db.conn.ExecContext(ctx, query)
	return err
}

func (db *Database) runMigration(ctx context.Context, dir, filename string) error {
	var exists int
	err := db.QueryRowContext(ctx, "SELECT COUNT(1) FROM schema_migrations WHERE version = $1", filename).Scan(&exists)
	if err != nil {
		return err
	}
	if exists > 0 {
		db.log.Debug("skipping migration", zap.String("version", filename))
		return nil
	}

	content, err := migrationsFS.ReadFile(path.Join(dir, filename))
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range splitStatements(string(content)) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}
	insert, args := db.bind("INSERT INTO schema_migrations (version, applied_at) VALUES ($1, $2)",
		[]any{filename, time.Now().UTC()})
	if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	db.log.Info("applied migration", zap.String("version", filename))
	return nil
}

// splitStatements breaks a migration file on semicolons at line ends.
func splitStatements(content string) []string {
	var out []string
	var cur strings.Builder
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		cur.WriteString(line)
		cur.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			out = append(out, strings.TrimSpace(cur.String()))
			cur.Reset()
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}

// HealthCheck performs a health check on the database
func (db *Database) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return db.conn.PingContext(ctx)
}

// IsUniqueViolation reports whether err is a unique-constraint failure on
// either driver.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
