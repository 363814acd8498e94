package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/xtding233/cosstream/internal/cosdata"
)

// ValidateRaw checks semantic constraints of a RawConfig.
func ValidateRaw(cfg RawConfig) error {
	var errs []string

	ds := cfg.Dataset
	for _, f := range []struct {
		name string
		v    *float64
	}{{"dataset.min_x", ds.MinX}, {"dataset.max_x", ds.MaxX}, {"dataset.std", ds.Std}} {
		if f.v != nil && (math.IsNaN(*f.v) || math.IsInf(*f.v, 0)) {
			errs = append(errs, f.name+" must be finite")
		}
	}
	if ds.MinX != nil && ds.MaxX != nil && !(*ds.MinX < *ds.MaxX) {
		errs = append(errs, "dataset.min_x must be < dataset.max_x")
	}
	if ds.Std != nil && !(*ds.Std > 0) {
		errs = append(errs, "dataset.std must be > 0")
	}
	if len(ds.Seed) != 0 && len(ds.Seed) != 3 {
		errs = append(errs, fmt.Sprintf("dataset.seed must have 3 words, got %d", len(ds.Seed)))
	}
	switch ds.Generator {
	case "", cosdata.GeneratorChaCha8, cosdata.GeneratorPCG:
	default:
		errs = append(errs, "dataset.generator must be one of: chacha8, pcg")
	}

	if _, err := cosdata.ParseFloatX(cfg.Numeric.FloatX); err != nil {
		errs = append(errs, "numeric.floatx must be one of: float32, float64")
	}

	if cfg.Checkpoint != nil {
		switch cfg.Checkpoint.Backend {
		case "", "memory":
		case "bbolt", "sqlite":
			if strings.TrimSpace(cfg.Checkpoint.Path) == "" {
				errs = append(errs, "checkpoint.path is required for backend="+cfg.Checkpoint.Backend)
			}
		default:
			errs = append(errs, "checkpoint.backend must be one of: memory, bbolt, sqlite")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
