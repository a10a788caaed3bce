// Package patchstore persists intermediate tiles between processing steps.
//
// Stores are flat key-value namespaces keyed by tile name. They are the only
// place where tile names are parsed back into positions; everything past
// LoadManifest works on explicit records.
package patchstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"

	"github.com/disintegration/imaging"

	"fieldseg/pkg/config"
)

// ErrNotFound is returned by Get for names that are not stored
var ErrNotFound = errors.New("patch not found")

// Store is a key-value store for encoded tile images.
// Reads observe writes made through the same Store immediately.
type Store interface {
	// Put stores data under name, replacing any previous value
	Put(ctx context.Context, name string, data []byte) error

	// Get returns the data stored under name or ErrNotFound
	Get(ctx context.Context, name string) ([]byte, error)

	// List returns the stored names starting with prefix in sorted order
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes name. Deleting a missing name is not an error.
	Delete(ctx context.Context, name string) error

	// Close releases resources held by the store
	Close() error
}

// Open returns the store selected by cfg, namespaced by scope so that
// concurrent runs never see each other's tiles
func Open(cfg config.Storage, scope string) (Store, error) {
	switch cfg.Backend {
	case config.BackendDir, "":
		return NewDirStore(filepath.Join(cfg.Dir, scope))
	case config.BackendSQLite:
		return NewSQLiteStore(cfg.SQLitePath, scope)
	case config.BackendMemory:
		return NewMemStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// EncodeImage encodes img as PNG
func EncodeImage(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode tile: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeImage decodes PNG bytes produced by EncodeImage
func DecodeImage(data []byte) (*image.NRGBA, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode tile: %w", err)
	}
	return imaging.Clone(img), nil
}
