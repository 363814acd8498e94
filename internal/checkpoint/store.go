// Package checkpoint persists stream positions so a stream can be resumed
// after the process that produced it is gone.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/xtding233/cosstream/internal/cosdata"
)

var ErrEmptyName = errors.New("checkpoint name is required")

// Record is one saved stream: enough to rebuild the dataset and resume it.
type Record struct {
	Name     string           `json:"name"`
	StreamID string           `json:"stream_id,omitempty"`
	Params   cosdata.Params   `json:"params"`
	Position cosdata.Position `json:"position"`
	SavedAt  time.Time        `json:"saved_at"`
}

// Store defines persistence operations for checkpoint records.
type Store interface {
	Init(ctx context.Context) error
	Save(ctx context.Context, rec Record) error
	Load(ctx context.Context, name string) (Record, bool, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) error
	Close() error
}

func encodeRecord(rec Record) ([]byte, error) {
	if rec.Name == "" {
		return nil, ErrEmptyName
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode checkpoint %s: %w", rec.Name, err)
	}
	return b, nil
}

func decodeRecord(name string, b []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return Record{}, fmt.Errorf("decode checkpoint %s: %w", name, err)
	}
	return rec, nil
}
