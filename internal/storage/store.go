// Package storage persists engine state as opaque versioned blobs behind a
// small key/value Store, with memory, SQLite, PostgreSQL and Redis backends.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SchemaVersion is the envelope version written by this build
const SchemaVersion = 1

// Common errors
var (
	ErrUnsupportedVersion = errors.New("unsupported schema version")
	ErrEmptyKey           = errors.New("storage key is empty")
	ErrClosed             = errors.New("store is closed")
)

// Store saves and loads raw payloads by key
type Store interface {
	Save(ctx context.Context, key string, data []byte) error
	// Load reports found=false for an absent key
	Load(ctx context.Context, key string) (data []byte, found bool, err error)

	// Health
	Ping(ctx context.Context) error
	Close() error
}

// Envelope wraps every payload written through SaveJSON
type Envelope struct {
	Version int             `json:"version"`
	SavedAt time.Time       `json:"saved_at"`
	Data    json.RawMessage `json:"data"`
}

// SaveJSON marshals v into a versioned envelope and stores it under key
func SaveJSON(ctx context.Context, s Store, key string, v any) error {
	if key == "" {
		return ErrEmptyKey
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	raw, err := json.Marshal(Envelope{Version: SchemaVersion, SavedAt: time.Now().UTC(), Data: data})
	if err != nil {
		return fmt.Errorf("failed to marshal envelope for %s: %w", key, err)
	}
	if err := s.Save(ctx, key, raw); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

// LoadJSON reads the envelope under key into v. It returns false when the
// key is absent and ErrUnsupportedVersion for payloads from a newer build.
func LoadJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	raw, found, err := s.Load(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to load %s: %w", key, err)
	}
	if !found {
		return false, nil
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return false, fmt.Errorf("failed to unmarshal envelope for %s: %w", key, err)
	}
	if env.Version < 1 || env.Version > SchemaVersion {
		return false, fmt.Errorf("%w: %s has version %d", ErrUnsupportedVersion, key, env.Version)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}
