// Package cosdata streams synthetic 2D samples where x is uniform on
// [min_x, max_x] and y is cos(x) plus gaussian noise, together with the
// closed-form energy and density of that distribution.
package cosdata

import (
	"errors"
	"fmt"
	"math"
	"reflect"

	"gonum.org/v1/gonum/stat/distuv"
)

var (
	ErrNotImplemented = errors.New("cosdata: not implemented")
	ErrNilSource      = errors.New("cosdata: nil source")
)

// Preprocessor transforms a dataset in place. Richer datasets accept them;
// this one declines, see Capabilities.
type Preprocessor interface {
	Apply(ds *Dataset, canFit bool) error
}

// Capabilities lists optional features of a dataset type.
type Capabilities struct {
	Preprocessing  bool `json:"preprocessing"`
	Differentiable bool `json:"differentiable"`
}

// Dataset is a StreamingCosDataset. It is not safe for concurrent use: every
// Batch call advances the owned generator.
type Dataset struct {
	params Params
	src    Source
	// defaultState is the generator state captured at construction. nil only
	// for a zero Dataset, in which case ResetRNG synthesises it.
	defaultState Position
	external     bool
}

type Option func(*Dataset)

// WithSource supplies an external generator. The dataset takes ownership.
func WithSource(src Source) Option {
	return func(d *Dataset) {
		d.src = src
		d.external = true
	}
}

func isNilSource(src Source) bool {
	if src == nil {
		return true
	}
	v := reflect.ValueOf(src)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

// New builds a dataset. Without WithSource the generator is
// NewSourceFor(p.Generator, p.Seed). p is not validated; call p.Validate for
// that.
func New(p Params, opts ...Option) (*Dataset, error) {
	if p.FloatX == "" {
		p.FloatX = Float64
	}
	d := &Dataset{params: p}
	for _, opt := range opts {
		opt(d)
	}
	if d.external && isNilSource(d.src) {
		return nil, ErrNilSource
	}
	if d.src == nil {
		src, err := NewSourceFor(p.Generator, p.Seed)
		if err != nil {
			return nil, err
		}
		d.src = src
	}
	state, err := snapshot(d.src)
	if err != nil {
		return nil, err
	}
	d.defaultState = state
	return d, nil
}

func (d *Dataset) Params() Params { return d.params }

func (d *Dataset) Capabilities() Capabilities {
	return Capabilities{Preprocessing: false, Differentiable: true}
}

// Batch draws n samples and returns them as an (n, 2) design matrix.
// All x values are drawn first, then all noise values, so one call consumes
// one uniform and one gaussian per row.
func (d *Dataset) Batch(n int) (Batch, error) {
	if n < 0 {
		return nil, fmt.Errorf("batch size must be >= 0, got %d", n)
	}
	d.ensureSource()
	fx := d.params.FloatX
	xs := distuv.Uniform{Min: d.params.MinX, Max: d.params.MaxX, Src: d.src}
	noise := distuv.Normal{Mu: 0, Sigma: 1, Src: d.src}

	out := make(Batch, n)
	for i := range out {
		out[i].X = fx.round(xs.Rand())
	}
	for i := range out {
		e := fx.round(noise.Rand())
		out[i].Y = fx.round(fx.round(math.Cos(out[i].X)) + fx.round(e*d.params.Std))
	}
	return out, nil
}

// StreamPosition returns a copy of the generator state.
func (d *Dataset) StreamPosition() (Position, error) {
	d.ensureSource()
	return snapshot(d.src)
}

// SetStreamPosition restores a state from StreamPosition. A position taken
// from a different generator type fails here with ErrBadPosition and leaves
// the stream where it was.
func (d *Dataset) SetStreamPosition(p Position) error {
	d.ensureSource()
	return restore(d.src, p)
}

// RestartStream rewinds to the state captured at construction.
func (d *Dataset) RestartStream() error { return d.ResetRNG() }

func (d *Dataset) ResetRNG() error {
	if d.defaultState == nil {
		state, err := snapshot(NewSource(DefaultSeed))
		if err != nil {
			return err
		}
		d.defaultState = state
	}
	d.ensureSource()
	return restore(d.src, d.defaultState)
}

// ApplyPreprocessor always fails: this dataset type does not support
// preprocessing.
func (d *Dataset) ApplyPreprocessor(p Preprocessor, canFit bool) error {
	return fmt.Errorf("apply preprocessor: %w", ErrNotImplemented)
}

func (d *Dataset) ensureSource() {
	if d.src == nil {
		d.src = NewSource(DefaultSeed)
	}
}
