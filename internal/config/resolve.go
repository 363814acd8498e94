// resolve.go
package config

import (
	"fmt"
	"os"

	"github.com/xtding233/cosstream/internal/cosdata"
)

// EnvFloatX overrides numeric.floatx for the whole process.
const EnvFloatX = "COSDATA_FLOATX"

// Overrides carries per-request or per-flag overrides applied after the
// YAML layers.
type Overrides struct {
	MinX      *float64
	MaxX      *float64
	Std       *float64
	Seed      *cosdata.Seed
	FloatX    *string
	Generator *string
}

// Apply layers o over p. The result is not validated.
func (o Overrides) Apply(p cosdata.Params) (cosdata.Params, error) {
	if o.MinX != nil {
		p.MinX = *o.MinX
	}
	if o.MaxX != nil {
		p.MaxX = *o.MaxX
	}
	if o.Std != nil {
		p.Std = *o.Std
	}
	if o.Seed != nil {
		p.Seed = *o.Seed
	}
	if o.Generator != nil {
		p.Generator = *o.Generator
	}
	if o.FloatX != nil {
		fx, err := cosdata.ParseFloatX(*o.FloatX)
		if err != nil {
			return cosdata.Params{}, err
		}
		p.FloatX = fx
	}
	return p, nil
}

// Resolve merges default → profile → environment → overrides into validated
// settings. Values never mentioned anywhere fall back to cosdata.DefaultParams.
func (l *Loader) Resolve(profile string, o Overrides) (RawConfig, Settings, error) {
	raw, err := l.LoadMerged(profile)
	if err != nil {
		return RawConfig{}, Settings{}, err
	}
	if env := os.Getenv(EnvFloatX); env != "" {
		raw.Numeric.FloatX = env
	}
	if err := ValidateRaw(raw); err != nil {
		return raw, Settings{}, err
	}

	p := cosdata.DefaultParams()
	if raw.Dataset.MinX != nil {
		p.MinX = *raw.Dataset.MinX
	}
	if raw.Dataset.MaxX != nil {
		p.MaxX = *raw.Dataset.MaxX
	}
	if raw.Dataset.Std != nil {
		p.Std = *raw.Dataset.Std
	}
	if len(raw.Dataset.Seed) == 3 {
		copy(p.Seed[:], raw.Dataset.Seed)
	}
	p.Generator = raw.Dataset.Generator
	// already validated above
	p.FloatX, _ = cosdata.ParseFloatX(raw.Numeric.FloatX)

	p, err = o.Apply(p)
	if err != nil {
		return raw, Settings{}, fmt.Errorf("apply overrides: %w", err)
	}
	if err := p.Validate(); err != nil {
		return raw, Settings{}, err
	}

	s := Settings{
		Params:     p,
		Checkpoint: CheckpointConfig{Backend: "memory"},
		Server:     ServerConfig{HTTPAddr: ":8080", GRPCAddr: ":9090"},
		Version:    raw.Version,
	}
	if raw.Checkpoint != nil {
		s.Checkpoint = *raw.Checkpoint
		if s.Checkpoint.Backend == "" {
			s.Checkpoint.Backend = "memory"
		}
	}
	if raw.Server != nil {
		if raw.Server.HTTPAddr != "" {
			s.Server.HTTPAddr = raw.Server.HTTPAddr
		}
		if raw.Server.GRPCAddr != "" {
			s.Server.GRPCAddr = raw.Server.GRPCAddr
		}
	}
	return raw, s, nil
}
