package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	// PostgreSQL driver registered as "pgx".
	_ "github.com/jackc/pgx/v5/stdlib"
	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects the database.
type Config struct {
	// Driver is "sqlite" (default) or "postgres".
	Driver string `mapstructure:"driver"`

	// DSN is a file path or URI for SQLite, a connection string for
	// PostgreSQL. Empty SQLite DSN resolves to DefaultDBPath.
	DSN string `mapstructure:"dsn"`
}

// Store owns the database handle and hands out repositories.
type Store struct {
	db      *sql.DB
	drv     *entsql.Driver
	dialect string
}

// Open connects to the configured database and migrates the schema.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	switch cfg.Driver {
	case "", DriverSQLite:
		dsn := cfg.DSN
		switch {
		case dsn == "":
			p, err := DefaultDBPath()
			if err != nil {
				return nil, err
			}
			dsn = p
		case !strings.HasPrefix(dsn, "file:") && dsn != ":memory:":
			if err := EnsureDir(dsn); err != nil {
				return nil, err
			}
		}
		return OpenSQLite(ctx, dsn)
	case DriverPostgres:
		return OpenPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// OpenSQLite opens the SQLite database at dsn. It applies recommended
// pragmas and runs auto-migration.
func OpenSQLite(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	return open(ctx, db, dialect.SQLite)
}

// OpenPostgres connects through pgx and runs auto-migration.
func OpenPostgres(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return open(ctx, db, dialect.Postgres)
}

func open(ctx context.Context, db *sql.DB, name string) (*Store, error) {
	s := &Store{
		db:      db,
		drv:     entsql.OpenDB(name, db),
		dialect: name,
	}
	if err := s.migrate(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}
	return s, nil
}

// DB returns the underlying *sql.DB for raw queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the ent dialect name of the connection.
func (s *Store) Dialect() string {
	return s.dialect
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.drv.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.dialect)
}

// Sessions returns the session repository.
func (s *Store) Sessions() SessionRepo { return &sessionRepo{s: s} }

// Questions returns the question repository.
func (s *Store) Questions() QuestionRepo { return &questionRepo{s: s} }

// Answers returns the answer repository.
func (s *Store) Answers() AnswerRepo { return &answerRepo{s: s} }

// Summaries returns the session summary repository.
func (s *Store) Summaries() SummaryRepo { return &summaryRepo{s: s} }

// EventRepo returns the LLM request event repository.
func (s *Store) EventRepo() EventRepo { return &eventRepo{s: s} }

// applyPragmas configures SQLite for a single-process service.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// DefaultDBPath resolves the database file path in priority order:
// 1. PREPWISE_DB environment variable
// 2. $XDG_DATA_HOME/prepwise/prepwise.db
// 3. ~/.local/share/prepwise/prepwise.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("PREPWISE_DB"); p != "" {
		return p, EnsureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "prepwise", "prepwise.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
