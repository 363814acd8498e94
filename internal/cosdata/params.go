package cosdata

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// FloatX selects the precision batches are rounded to.
type FloatX string

const (
	Float32 FloatX = "float32"
	Float64 FloatX = "float64"
)

var ErrInvalidParams = errors.New("cosdata: invalid dataset parameters")

// ParseFloatX accepts "float32"/"float64" (case-insensitive); empty means float64.
func ParseFloatX(s string) (FloatX, error) {
	switch FloatX(strings.ToLower(strings.TrimSpace(s))) {
	case "", Float64:
		return Float64, nil
	case Float32:
		return Float32, nil
	default:
		return "", fmt.Errorf("unknown floatx %q", s)
	}
}

func (f FloatX) round(v float64) float64 {
	if f == Float32 {
		return float64(float32(v))
	}
	return v
}

// Params describes the distribution of one stream.
type Params struct {
	MinX   float64 `json:"min_x"`
	MaxX   float64 `json:"max_x"`
	Std    float64 `json:"std"`
	Seed   Seed    `json:"seed"`
	FloatX FloatX  `json:"floatx,omitempty"`

	// Generator names the source built when none is supplied, see NewSourceFor.
	Generator string `json:"generator,omitempty"`
}

// DefaultParams is the stock dataset: x in [-6.28, 6.28], std 0.05, DefaultSeed.
func DefaultParams() Params {
	return Params{
		MinX:   -6.28,
		MaxX:   6.28,
		Std:    0.05,
		Seed:   DefaultSeed,
		FloatX: Float64,
	}
}

// Validate reports degenerate parameters. New does not call it, degenerate
// params just give degenerate output there.
func (p Params) Validate() error {
	var errs []string
	finite := func(name string, v float64) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			errs = append(errs, name+" must be finite")
		}
	}
	finite("min_x", p.MinX)
	finite("max_x", p.MaxX)
	finite("std", p.Std)
	if !(p.MinX < p.MaxX) {
		errs = append(errs, "min_x must be < max_x")
	}
	if !(p.Std > 0) {
		errs = append(errs, "std must be > 0")
	}
	if p.FloatX != "" && p.FloatX != Float32 && p.FloatX != Float64 {
		errs = append(errs, fmt.Sprintf("floatx must be float32 or float64, got %q", p.FloatX))
	}
	if p.Generator != "" && p.Generator != GeneratorChaCha8 && p.Generator != GeneratorPCG {
		errs = append(errs, fmt.Sprintf("unknown generator %q", p.Generator))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidParams, strings.Join(errs, "; "))
	}
	return nil
}
