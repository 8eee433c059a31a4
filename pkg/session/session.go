// Package session ties one booth run together: it owns the template, the photo
// references, the base composite, the selected filter and the sticker layer,
// and hands the finished raster to a Sink.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/menta2k/booth-compositor/internal/logging"
	"github.com/menta2k/booth-compositor/pkg/collage"
	"github.com/menta2k/booth-compositor/pkg/filters"
	"github.com/menta2k/booth-compositor/pkg/flatten"
	"github.com/menta2k/booth-compositor/pkg/processing"
	"github.com/menta2k/booth-compositor/pkg/stickers"
	"github.com/menta2k/booth-compositor/pkg/types"
)

var (
	// ErrStale is returned by Compose when a newer compose or a discard
	// superseded it. The result was dropped.
	ErrStale = errors.New("compose superseded")
	// ErrNoBase is returned when an operation needs a base composite that has
	// not been built.
	ErrNoBase = errors.New("no base composite")
	// ErrDiscarded is returned by operations on a discarded session.
	ErrDiscarded = errors.New("session discarded")
)

// Sink receives the outcome of a session. final holds PNG bytes for
// DecisionSave and is nil for DecisionCancel.
type Sink interface {
	Commit(ctx context.Context, final []byte, decision types.Decision) error
}

// Composer builds base composites.
type Composer interface {
	Compose(ctx context.Context, tmpl types.Template, refs []string) (*collage.Result, error)
}

// Session is one compose-decorate-finish run.
//
// Compose, the accessors and Flatten may be called from different goroutines.
// The sticker layer is owned by the caller's UI goroutine and must not be
// mutated while Flatten or Finish runs.
type Session struct {
	composer  Composer
	flattener *flatten.Flattener
	template  types.Template

	// Stickers is the editable sticker layer.
	Stickers *stickers.Layer

	mu         sync.Mutex
	refs       []string
	base       *image.RGBA
	result     *collage.Result
	filter     filters.Name
	generation uint64
	discarded  bool

	flattenMu sync.Mutex
}

// New creates a session for tmpl and the given photo references.
func New(composer Composer, flattener *flatten.Flattener, tmpl types.Template, refs []string) (*Session, error) {
	if composer == nil || flattener == nil {
		return nil, fmt.Errorf("session needs a composer and a flattener")
	}
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}
	tmpl.Slots = append([]types.Slot(nil), tmpl.Slots...)
	tmpl.Decorations = append([]string(nil), tmpl.Decorations...)

	return &Session{
		composer:  composer,
		flattener: flattener,
		template:  tmpl,
		Stickers:  stickers.NewLayer(),
		refs:      append([]string(nil), refs...),
		filter:    filters.None,
	}, nil
}

// Template returns the session template.
func (s *Session) Template() types.Template {
	return s.template
}

// Photos returns the current photo references.
func (s *Session) Photos() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.refs...)
}

// SetPhotos replaces the photo references and drops the base composite.
// Composes already running for the old references become stale.
func (s *Session) SetPhotos(refs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs = append([]string(nil), refs...)
	s.base = nil
	s.result = nil
	s.generation++
}

// Compose builds the base composite. Only the most recent compose may commit
// its result; older ones return ErrStale.
func (s *Session) Compose(ctx context.Context) (*collage.Result, error) {
	s.mu.Lock()
	if s.discarded {
		s.mu.Unlock()
		return nil, ErrDiscarded
	}
	s.generation++
	gen := s.generation
	refs := append([]string(nil), s.refs...)
	s.mu.Unlock()

	res, err := s.composer.Compose(ctx, s.template, refs)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.discarded {
		logging.Logger().Debug("dropping stale compose", "template", s.template.ID, "generation", gen)
		return nil, ErrStale
	}
	if err != nil {
		return nil, err
	}
	s.base = res.Image
	s.result = res
	return res, nil
}

// Base returns the base composite, or nil before a successful Compose.
// The image must not be modified.
func (s *Session) Base() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base
}

// Result returns the last committed compose result.
func (s *Session) Result() *collage.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// BasePNG encodes the base composite losslessly with alpha preserved.
func (s *Session) BasePNG() ([]byte, error) {
	base := s.Base()
	if base == nil {
		return nil, ErrNoBase
	}
	return processing.EncodePNG(base)
}

// SetFilter selects the color filter applied at flatten time.
func (s *Session) SetFilter(name filters.Name) error {
	if _, err := filters.ChainFor(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = name
	return nil
}

// Filter returns the selected filter.
func (s *Session) Filter() filters.Name {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// Preview returns a PNG of the base composite with the filter applied,
// downscaled so its longer edge is at most maxDim. Stickers are not included.
func (s *Session) Preview(maxDim int) ([]byte, error) {
	s.mu.Lock()
	base, filter := s.base, s.filter
	s.mu.Unlock()
	if base == nil {
		return nil, ErrNoBase
	}
	return processing.EncodePNG(filters.Preview(base, filter, maxDim))
}

// Flatten renders the final image. Calls for one session run one at a time.
func (s *Session) Flatten() (*image.RGBA, error) {
	s.flattenMu.Lock()
	defer s.flattenMu.Unlock()

	s.mu.Lock()
	base, filter, discarded := s.base, s.filter, s.discarded
	s.mu.Unlock()
	if discarded {
		return nil, ErrDiscarded
	}
	if base == nil {
		return nil, ErrNoBase
	}
	return s.flattener.Flatten(base, filter, s.Stickers.Stickers())
}

// Finish flattens the session and commits the PNG to sink with DecisionSave.
func (s *Session) Finish(ctx context.Context, sink Sink) error {
	final, err := s.Flatten()
	if err != nil {
		return err
	}
	data, err := processing.EncodePNG(final)
	if err != nil {
		return err
	}
	if err := sink.Commit(ctx, data, types.DecisionSave); err != nil {
		return fmt.Errorf("failed to commit composite: %w", err)
	}
	return nil
}

// Discard abandons the session: running composes become stale, the base and
// stickers are dropped and sink, when not nil, receives DecisionCancel.
func (s *Session) Discard(ctx context.Context, sink Sink) error {
	s.mu.Lock()
	s.discarded = true
	s.generation++
	s.base = nil
	s.result = nil
	s.mu.Unlock()

	s.flattenMu.Lock()
	s.Stickers.Clear()
	s.flattenMu.Unlock()

	if sink == nil {
		return nil
	}
	if err := sink.Commit(ctx, nil, types.DecisionCancel); err != nil {
		return fmt.Errorf("failed to report cancel: %w", err)
	}
	return nil
}
