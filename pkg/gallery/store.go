// Package gallery persists finished composites. Store keeps them in a SQLite
// database; DirSink writes them as files.
package gallery

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/menta2k/booth-compositor/internal/logging"
	"github.com/menta2k/booth-compositor/pkg/types"
)

// ErrNotFound is returned when a photo id is not in the store.
var ErrNotFound = errors.New("photo not found")

// Photo describes a stored composite.
type Photo struct {
	ID         int64     `json:"id"`
	TemplateID string    `json:"template_id"`
	CreatedAt  time.Time `json:"created_at"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
}

// Store wraps a SQLite database of finished composites.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// connPragmas are applied by the driver to every pooled connection. WAL lets
// readers list the gallery while a session commits.
const connPragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and creates the schema.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create gallery directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+connPragmas)
	if err != nil {
		return nil, fmt.Errorf("failed to open gallery: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure gallery: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)

	s := &Store{db: db, now: time.Now}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS photos (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    template_id TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    width INTEGER NOT NULL,
    height INTEGER NOT NULL,
    png BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS photos_created_at ON photos (created_at);
`)
	if err != nil {
		return fmt.Errorf("failed to create gallery schema: %w", err)
	}
	return nil
}

// Save stores a PNG-encoded composite and returns its record.
func (s *Store) Save(ctx context.Context, templateID string, data []byte) (Photo, error) {
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Photo{}, fmt.Errorf("composite is not a png: %w", err)
	}

	p := Photo{
		TemplateID: templateID,
		CreatedAt:  s.now().UTC().Truncate(time.Millisecond),
		Width:      cfg.Width,
		Height:     cfg.Height,
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO photos (template_id, created_at, width, height, png) VALUES (?, ?, ?, ?, ?)`,
		p.TemplateID, p.CreatedAt.UnixMilli(), p.Width, p.Height, data)
	if err != nil {
		return Photo{}, fmt.Errorf("failed to save composite: %w", err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return Photo{}, fmt.Errorf("failed to read photo id: %w", err)
	}
	logging.Logger().Info("saved composite", "id", p.ID, "template", templateID, "width", p.Width, "height", p.Height)
	return p, nil
}

// Commit stores saved composites without a template id. Cancel decisions are
// ignored.
func (s *Store) Commit(ctx context.Context, final []byte, decision types.Decision) error {
	return s.ForTemplate("").Commit(ctx, final, decision)
}

// ForTemplate returns a sink that records templateID with every saved composite.
func (s *Store) ForTemplate(templateID string) *TemplateSink {
	return &TemplateSink{store: s, templateID: templateID}
}

// TemplateSink commits composites to a Store under one template id.
type TemplateSink struct {
	store      *Store
	templateID string
	last       Photo
}

// Commit saves final when decision is DecisionSave.
func (t *TemplateSink) Commit(ctx context.Context, final []byte, decision types.Decision) error {
	if decision != types.DecisionSave {
		return nil
	}
	p, err := t.store.Save(ctx, t.templateID, final)
	if err != nil {
		return err
	}
	t.last = p
	return nil
}

// Last returns the most recently saved photo of this sink.
func (t *TemplateSink) Last() (Photo, bool) {
	return t.last, t.last.ID != 0
}

// List returns up to limit photos, newest first. A non-positive limit
// returns every photo.
func (s *Store) List(ctx context.Context, limit int) ([]Photo, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, template_id, created_at, width, height FROM photos ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	defer rows.Close()

	var photos []Photo
	for rows.Next() {
		var p Photo
		var created int64
		if err := rows.Scan(&p.ID, &p.TemplateID, &created, &p.Width, &p.Height); err != nil {
			return nil, err
		}
		p.CreatedAt = time.UnixMilli(created).UTC()
		photos = append(photos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return photos, nil
}

// Get returns a photo record and its PNG bytes.
func (s *Store) Get(ctx context.Context, id int64) (Photo, []byte, error) {
	var p Photo
	var created int64
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT id, template_id, created_at, width, height, png FROM photos WHERE id = ?`, id).
		Scan(&p.ID, &p.TemplateID, &created, &p.Width, &p.Height, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return Photo{}, nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return Photo{}, nil, fmt.Errorf("failed to load photo %d: %w", id, err)
	}
	p.CreatedAt = time.UnixMilli(created).UTC()
	return p, data, nil
}

// Delete removes a photo.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM photos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete photo %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}
