package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// LoadJSON decodes the record at key into v. found is false when the key is
// absent; err is set for backend or decode failures.
func LoadJSON(ctx context.Context, s Store, key string, v any) (found bool, err error) {
	raw, found, err := s.Get(ctx, key)
	if err != nil || !found {
		return found, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return true, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

// SaveJSON encodes v and writes it at key.
func SaveJSON(ctx context.Context, s Store, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return s.Set(ctx, key, string(b))
}
