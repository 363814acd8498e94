// Package stream hosts many datasets at once, each behind its own lock, and
// moves their positions in and out of a checkpoint store.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xtding233/cosstream/internal/checkpoint"
	"github.com/xtding233/cosstream/internal/cosdata"
)

var (
	ErrUnknownStream     = errors.New("unknown stream")
	ErrUnknownCheckpoint = errors.New("unknown checkpoint")
	ErrUnknownFunc       = errors.New("unknown evaluation function")
)

// Evaluation function names accepted by Session.Evaluate.
const (
	FuncEnergy     = "energy"
	FuncPDFFunc    = "pdf_func"
	FuncFreeEnergy = "free_energy"
	FuncPDF        = "pdf"
)

// Session is one dataset plus the mutex that makes it shareable.
type Session struct {
	ID      string
	Created time.Time

	mu sync.Mutex
	ds *cosdata.Dataset
}

func (s *Session) Params() cosdata.Params { return s.ds.Params() }

func (s *Session) Batch(n int) (cosdata.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ds.Batch(n)
}

// Evaluate runs one of the closed-form functions (FuncEnergy etc.) over b.
func (s *Session) Evaluate(fn string, b cosdata.Batch) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch fn {
	case FuncEnergy:
		return s.ds.Energy(b), nil
	case FuncPDFFunc:
		return s.ds.PDFFunc(b), nil
	case FuncFreeEnergy:
		return s.ds.FreeEnergy(b), nil
	case FuncPDF:
		return s.ds.PDF(b), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFunc, fn)
	}
}

func (s *Session) ApplyPreprocessor(p cosdata.Preprocessor, canFit bool) error {
	return s.ds.ApplyPreprocessor(p, canFit)
}

func (s *Session) Capabilities() cosdata.Capabilities { return s.ds.Capabilities() }

func (s *Session) Gradient(b cosdata.Batch) cosdata.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ds.FreeEnergyGrad(b)
}

func (s *Session) Position() (cosdata.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ds.StreamPosition()
}

func (s *Session) SetPosition(p cosdata.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ds.SetStreamPosition(p)
}

func (s *Session) Restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ds.RestartStream()
}

// Summary draws a fresh batch of n and summarizes it.
func (s *Session) Summary(n int) (cosdata.Summary, error) {
	b, err := s.Batch(n)
	if err != nil {
		return cosdata.Summary{}, err
	}
	return cosdata.Summarize(b), nil
}

// Registry maps stream ids to sessions.
type Registry struct {
	store checkpoint.Store

	mu       sync.RWMutex
	defaults cosdata.Params
	sessions map[string]*Session
}

// NewRegistry builds a registry whose new streams start from defaults.
// store may be nil, in which case checkpoints are kept in memory.
func NewRegistry(defaults cosdata.Params, store checkpoint.Store) *Registry {
	if store == nil {
		store = checkpoint.NewMemoryStore()
	}
	return &Registry{
		store:    store,
		defaults: defaults,
		sessions: make(map[string]*Session),
	}
}

// Defaults returns the params new streams start from.
func (r *Registry) Defaults() cosdata.Params {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaults
}

// SetDefaults replaces the defaults for streams opened from now on; open
// streams keep their params.
func (r *Registry) SetDefaults(p cosdata.Params) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaults = p
}

// Open validates p and starts a new stream.
func (r *Registry) Open(p cosdata.Params) (*Session, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	ds, err := cosdata.New(p)
	if err != nil {
		return nil, err
	}
	s := &Session{ID: uuid.NewString(), Created: time.Now(), ds: ds}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	log.Printf("stream %s opened: x in [%g, %g], std %g, %s", s.ID, p.MinX, p.MaxX, p.Std, ds.Params().FloatX)
	return s, nil
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStream, id)
	}
	return s, nil
}

func (r *Registry) Close(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStream, id)
	}
	delete(r.sessions, id)
	return nil
}

// List returns open stream ids, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SaveCheckpoint stores the current position of stream id under name.
func (r *Registry) SaveCheckpoint(ctx context.Context, id, name string) (checkpoint.Record, error) {
	s, err := r.Get(id)
	if err != nil {
		return checkpoint.Record{}, err
	}
	pos, err := s.Position()
	if err != nil {
		return checkpoint.Record{}, err
	}
	rec := checkpoint.Record{
		Name:     name,
		StreamID: id,
		Params:   s.Params(),
		Position: pos,
		SavedAt:  time.Now().UTC(),
	}
	if err := r.store.Save(ctx, rec); err != nil {
		return checkpoint.Record{}, fmt.Errorf("save checkpoint %s: %w", name, err)
	}
	return rec, nil
}

// RestoreCheckpoint opens a new stream from a saved record, positioned
// where the record was taken.
func (r *Registry) RestoreCheckpoint(ctx context.Context, name string) (*Session, error) {
	rec, ok, err := r.store.Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", name, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCheckpoint, name)
	}
	s, err := r.Open(rec.Params)
	if err != nil {
		return nil, err
	}
	if err := s.SetPosition(rec.Position); err != nil {
		_ = r.Close(s.ID)
		return nil, err
	}
	return s, nil
}

func (r *Registry) Checkpoints(ctx context.Context) ([]string, error) {
	return r.store.List(ctx)
}

func (r *Registry) DeleteCheckpoint(ctx context.Context, name string) error {
	return r.store.Delete(ctx, name)
}
