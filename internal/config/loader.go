package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Paths helper for default/profile files.
type Paths struct {
	BaseDir string // base directory, e.g., /etc/cosstream
}

func (p Paths) DefaultPath() string {
	return filepath.Join(p.BaseDir, "datasets", "default.yaml")
}
func (p Paths) ProfilePath(profile string) string {
	return filepath.Join(p.BaseDir, "datasets", profile+".yaml")
}

// Loader reads YAML configs and merges default → profile.
type Loader struct {
	paths Paths

	mu    sync.RWMutex
	cache map[string]RawConfig // key: profile, "" for default only
}

// NewLoader creates a config loader with the given base directory.
func NewLoader(baseDir string) *Loader {
	return &Loader{
		paths: Paths{BaseDir: baseDir},
		cache: make(map[string]RawConfig),
	}
}

func (l *Loader) Paths() Paths { return l.paths }

// WatchedFiles lists the files whose changes should invalidate the cache.
func (l *Loader) WatchedFiles(profile string) []string {
	files := []string{l.paths.DefaultPath()}
	if profile != "" {
		files = append(files, l.paths.ProfilePath(profile))
	}
	return files
}

// LoadMerged loads and merges default → profile (profile optional).
// It returns the merged RawConfig (without validation). A missing default
// file is not an error; built-in defaults fill the gaps in Resolve.
func (l *Loader) LoadMerged(profile string) (RawConfig, error) {
	l.mu.RLock()
	if cfg, ok := l.cache[profile]; ok {
		l.mu.RUnlock()
		return cfg, nil
	}
	l.mu.RUnlock()

	defCfg, err := readYAML(l.paths.DefaultPath())
	if err != nil {
		return RawConfig{}, fmt.Errorf("read default: %w", err)
	}
	merged := defCfg
	if profile != "" {
		profCfg, err := readYAML(l.paths.ProfilePath(profile))
		if err != nil {
			return RawConfig{}, fmt.Errorf("read profile %s: %w", profile, err)
		}
		merged = mergeRaw(defCfg, profCfg)
	}

	l.mu.Lock()
	l.cache[""] = defCfg
	l.cache[profile] = merged
	l.mu.Unlock()

	return merged, nil
}

// Invalidate clears loader's cache. Call after hot-reload detects changes.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string]RawConfig)
}

// readYAML loads a YAML file into RawConfig. Missing files return zero cfg, no error.
func readYAML(path string) (RawConfig, error) {
	var cfg RawConfig
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return RawConfig{}, nil
		}
		return RawConfig{}, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return RawConfig{}, err
	}
	return cfg, nil
}

// mergeRaw performs a deep merge: 'b' overrides 'a' where non-zero/non-nil.
// For slices (the seed), 'b' replaces 'a' if provided.
func mergeRaw(a, b RawConfig) RawConfig {
	out := a

	if b.Version != "" {
		out.Version = b.Version
	}
	if b.Notes != "" {
		out.Notes = b.Notes
	}

	// dataset
	if b.Dataset.MinX != nil {
		out.Dataset.MinX = b.Dataset.MinX
	}
	if b.Dataset.MaxX != nil {
		out.Dataset.MaxX = b.Dataset.MaxX
	}
	if b.Dataset.Std != nil {
		out.Dataset.Std = b.Dataset.Std
	}
	if len(b.Dataset.Seed) > 0 {
		out.Dataset.Seed = append([]uint64(nil), b.Dataset.Seed...)
	}
	if b.Dataset.Generator != "" {
		out.Dataset.Generator = b.Dataset.Generator
	}

	if b.Numeric.FloatX != "" {
		out.Numeric.FloatX = b.Numeric.FloatX
	}

	// checkpoint
	switch {
	case out.Checkpoint == nil && b.Checkpoint != nil:
		c := *b.Checkpoint
		out.Checkpoint = &c
	case out.Checkpoint != nil && b.Checkpoint != nil:
		c := *out.Checkpoint
		if b.Checkpoint.Backend != "" {
			c.Backend = b.Checkpoint.Backend
		}
		if b.Checkpoint.Path != "" {
			c.Path = b.Checkpoint.Path
		}
		out.Checkpoint = &c
	}

	// server
	switch {
	case out.Server == nil && b.Server != nil:
		c := *b.Server
		out.Server = &c
	case out.Server != nil && b.Server != nil:
		c := *out.Server
		if b.Server.HTTPAddr != "" {
			c.HTTPAddr = b.Server.HTTPAddr
		}
		if b.Server.GRPCAddr != "" {
			c.GRPCAddr = b.Server.GRPCAddr
		}
		out.Server = &c
	}

	return out
}
