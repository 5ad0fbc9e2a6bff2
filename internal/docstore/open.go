package docstore

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Mode selects where the store lives.
type Mode string

const (
	// ModeMemory keeps the store in a private in-process database.
	ModeMemory Mode = "memory"

	// ModeFile keeps the store in an on-disk database at Config.Path.
	ModeFile Mode = "file"

	// ModeRemote names a networked store. Recognised, never served here.
	ModeRemote Mode = "remote"
)

// Drivers registered with database/sql.
const (
	DriverMattn   = "sqlite3" // github.com/mattn/go-sqlite3 (cgo)
	DriverModernc = "sqlite"  // modernc.org/sqlite (pure Go)
)

// Config selects and configures the store.
type Config struct {
	Mode   Mode
	Path   string
	Driver string

	// User and Password are the credentials of a networked store.
	User     string
	Password string
}

// ParseMode parses a mode name, case-insensitively. Empty means memory.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeMemory, nil
	case ModeMemory, ModeFile, ModeRemote:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMode, s)
	}
}

// Validate checks that cfg can be opened.
func (cfg Config) Validate() error {
	mode, err := ParseMode(string(cfg.Mode))
	if err != nil {
		return err
	}
	switch mode {
	case ModeRemote:
		return fmt.Errorf("%w: %s (only in-process stores are supported)", ErrUnsupportedMode, mode)
	case ModeFile:
		if strings.TrimSpace(cfg.Path) == "" {
			return fmt.Errorf("file mode requires a path")
		}
	}
	switch cfg.Driver {
	case "", DriverMattn, DriverModernc:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
	return nil
}

// Open creates a fresh store.
//
// The database is configured with:
//   - WAL mode for file stores
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// A file store's database is deleted first: the cache is disposable, so
// contents never carry over between instances.
func Open(ctx context.Context, cfg Config) (*SQLite, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mode, _ := ParseMode(string(cfg.Mode))
	driver := cfg.Driver
	if driver == "" {
		driver = DriverMattn
	}

	dsn := ":memory:"
	if mode == ModeFile {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		removeDatabase(cfg.Path)
		dsn = cfg.Path
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, connErr("open store", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, connErr("open store", err)
	}

	// One connection: SQLite has a single writer, and a :memory: database
	// lives exactly as long as its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := applyPragmas(ctx, db, mode); err != nil {
		db.Close()
		return nil, connErr("apply pragmas", err)
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, connErr("apply schema", err)
	}

	s := &SQLite{db: db, driver: driver, mode: mode}
	if mode == ModeFile {
		s.path = cfg.Path
	}
	return s, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(ctx context.Context, db *sql.DB, mode Mode) error {
	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	if mode == ModeFile {
		pragmas = append([]string{"PRAGMA journal_mode = WAL"}, pragmas...)
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// removeDatabase deletes a database file with its WAL side files.
func removeDatabase(path string) {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		_ = os.Remove(p)
	}
}
