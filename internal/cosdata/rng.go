package cosdata

import (
	"bytes"
	"encoding"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"
)

// Seed is the fixed seed triple used when no generator is supplied.
type Seed [3]uint64

// DefaultSeed makes two datasets built from DefaultParams draw identical streams.
var DefaultSeed = Seed{17, 2, 946}

var ErrBadPosition = errors.New("cosdata: stream position does not match generator")

// Source is a random source whose complete state can be saved and restored.
// *rand.ChaCha8 and *rand.PCG both satisfy it.
type Source interface {
	rand.Source
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// NewSource packs the seed triple into a ChaCha8 key, little-endian, last word zero.
func NewSource(seed Seed) *rand.ChaCha8 {
	var key [32]byte
	for i, w := range seed {
		binary.LittleEndian.PutUint64(key[i*8:], w)
	}
	return rand.NewChaCha8(key)
}

// NewPCGSource is the lighter alternative generator with smaller checkpoints.
func NewPCGSource(seed uint64) *rand.PCG {
	return rand.NewPCG(seed, 0)
}

// Generator names accepted by NewSourceFor.
const (
	GeneratorChaCha8 = "chacha8"
	GeneratorPCG     = "pcg"
)

// NewSourceFor builds the named generator from a seed triple. Empty means
// chacha8. PCG takes the first word as its high seed and folds the other two
// into the low one.
func NewSourceFor(generator string, seed Seed) (Source, error) {
	switch generator {
	case "", GeneratorChaCha8:
		return NewSource(seed), nil
	case GeneratorPCG:
		return rand.NewPCG(seed[0], seed[1]<<32^seed[2]), nil
	default:
		return nil, fmt.Errorf("unknown generator %q", generator)
	}
}

// Position is a by-value snapshot of a generator's full state.
type Position []byte

// Equal reports whether two positions describe the same generator state.
func (p Position) Equal(o Position) bool { return bytes.Equal(p, o) }

func snapshot(src Source) (Position, error) {
	b, err := src.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("snapshot generator: %w", err)
	}
	return Position(bytes.Clone(b)), nil
}

// restore loads p into src. On failure src is rolled back to its prior state.
func restore(src Source, p Position) error {
	prev, err := snapshot(src)
	if err != nil {
		return err
	}
	if err := src.UnmarshalBinary(bytes.Clone(p)); err != nil {
		if rerr := src.UnmarshalBinary(prev); rerr != nil {
			return fmt.Errorf("roll back generator: %w", rerr)
		}
		return fmt.Errorf("%w: %v", ErrBadPosition, err)
	}
	return nil
}
