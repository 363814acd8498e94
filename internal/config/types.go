// types.go
package config

import "github.com/xtding233/cosstream/internal/cosdata"

// Raw config loaded from YAML. Pointers distinguish "unset" from zero so
// profiles can override only what they mention.
type RawConfig struct {
	Version    string            `yaml:"version"`
	Dataset    DatasetConfig     `yaml:"dataset"`
	Numeric    NumericConfig     `yaml:"numeric"`
	Checkpoint *CheckpointConfig `yaml:"checkpoint,omitempty"`
	Server     *ServerConfig     `yaml:"server,omitempty"`
	Notes      string            `yaml:"notes,omitempty"`
}

type DatasetConfig struct {
	MinX      *float64 `yaml:"min_x"`
	MaxX      *float64 `yaml:"max_x"`
	Std       *float64 `yaml:"std"`
	Seed      []uint64 `yaml:"seed,omitempty"`      // exactly three words
	Generator string   `yaml:"generator,omitempty"` // "chacha8" | "pcg"
}

type NumericConfig struct {
	FloatX string `yaml:"floatx,omitempty"`
}

type CheckpointConfig struct {
	Backend string `yaml:"backend"` // "memory" | "bbolt" | "sqlite"
	Path    string `yaml:"path,omitempty"`
}

type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr,omitempty"`
	GRPCAddr string `yaml:"grpc_addr,omitempty"`
}

// Settings is the resolved, validated configuration the server runs with.
type Settings struct {
	Params     cosdata.Params
	Checkpoint CheckpointConfig
	Server     ServerConfig
	Version    string // effective config version for tracing
}
