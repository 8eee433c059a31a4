package gallery

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/menta2k/booth-compositor/internal/utils"
	"github.com/menta2k/booth-compositor/pkg/processing"
	"github.com/menta2k/booth-compositor/pkg/types"
)

// DirSink writes saved composites into a directory.
type DirSink struct {
	Dir      string
	Format   string // png, jpg or webp
	Quality  int
	Lossless bool
	// Prefix starts every file name. Defaults to "booth".
	Prefix string

	now  func() time.Time
	last string
}

// NewDirSink creates a sink writing format files into dir.
func NewDirSink(dir, format string, quality int, lossless bool) *DirSink {
	return &DirSink{Dir: dir, Format: format, Quality: quality, Lossless: lossless, now: time.Now}
}

// Commit writes final when decision is DecisionSave.
func (d *DirSink) Commit(ctx context.Context, final []byte, decision types.Decision) error {
	if decision != types.DecisionSave {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	format := processing.NormalizeFormat(d.Format)
	if format == "" {
		format = "png"
	}
	prefix := d.Prefix
	if prefix == "" {
		prefix = "booth"
	}
	now := time.Now
	if d.now != nil {
		now = d.now
	}
	name := fmt.Sprintf("%s-%s.%s", prefix, now().Format("20060102-150405.000"), format)
	path := utils.UniquePath(filepath.Join(d.Dir, name))

	data := final
	if format != "png" {
		img, err := png.Decode(bytes.NewReader(final))
		if err != nil {
			return fmt.Errorf("composite is not a png: %w", err)
		}
		if data, err = processing.Encode(img, format, d.Quality, d.Lossless); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	d.last = path
	return nil
}

// LastPath returns the path of the most recently written file.
func (d *DirSink) LastPath() string {
	return d.last
}
