package checkpoint

import "fmt"

// NewStore opens the backend named by kind. path is ignored for memory.
func NewStore(kind, path string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "bbolt":
		return NewBboltStore(path), nil
	case "sqlite":
		return NewSQLiteStore(path), nil
	default:
		return nil, fmt.Errorf("unsupported checkpoint backend: %s", kind)
	}
}
