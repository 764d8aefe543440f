package spacetraveling

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrPageNotFound is returned when no generated page is stored for a path.
var ErrPageNotFound = errors.New("page not found")

// Page is a generated HTML page.
type Page struct {
	Path        string
	HTML        []byte
	GeneratedAt time.Time
}

type pageRow struct {
	Path        string `db:"path"`
	HTML        []byte `db:"html"`
	GeneratedAt int64  `db:"generated_at"`
}

func (r pageRow) page() Page {
	return Page{Path: r.Path, HTML: r.HTML, GeneratedAt: time.Unix(0, r.GeneratedAt)}
}

// Store wraps a SQLite database holding generated pages.
type Store struct {
	db *sqlx.DB
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and runs schema migrations.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	// WAL lets readers proceed while a page is being written; busy_timeout
	// makes writers wait instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	if err := migrate(db.DB); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	dir, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrations directory: %w", err)
	}
	goose.SetBaseFS(dir)
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetPage returns the stored page for path, or ErrPageNotFound.
func (s *Store) GetPage(ctx context.Context, path string) (Page, error) {
	var row pageRow
	err := s.db.GetContext(ctx, &row, `SELECT path, html, generated_at FROM pages WHERE path = ?`, path)
	if errors.Is(err, sql.ErrNoRows) {
		return Page{}, ErrPageNotFound
	}
	if err != nil {
		return Page{}, err
	}
	return row.page(), nil
}

// SavePage inserts or replaces the page at p.Path.
func (s *Store) SavePage(ctx context.Context, p Page) error {
	_, err := s.db.NamedExecContext(ctx, `
INSERT INTO pages (path, html, generated_at) VALUES (:path, :html, :generated_at)
ON CONFLICT(path) DO UPDATE SET html = excluded.html, generated_at = excluded.generated_at
`, pageRow{Path: p.Path, HTML: p.HTML, GeneratedAt: p.GeneratedAt.UnixNano()})
	return err
}

// DeletePage removes the page at path. Missing pages are not an error.
func (s *Store) DeletePage(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pages WHERE path = ?`, path)
	return err
}

// DeleteAll removes every stored page.
func (s *Store) DeleteAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pages`)
	return err
}

// ListPages returns stored pages without their HTML, ordered by path.
func (s *Store) ListPages(ctx context.Context) ([]Page, error) {
	var rows []pageRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT path, generated_at FROM pages ORDER BY path`); err != nil {
		return nil, err
	}
	pages := make([]Page, 0, len(rows))
	for _, r := range rows {
		pages = append(pages, r.page())
	}
	return pages, nil
}
