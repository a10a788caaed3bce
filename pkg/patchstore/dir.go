package patchstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"fieldseg/pkg/naming"
)

// DirStore keeps one PNG file per tile in a directory
type DirStore struct {
	dir string
}

// NewDirStore creates dir if needed and returns a store over it
func NewDirStore(dir string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create patch directory: %w", err)
	}
	return &DirStore{dir: dir}, nil
}

// Dir returns the directory backing the store
func (s *DirStore) Dir() string {
	return s.dir
}

func (s *DirStore) path(name string) string {
	return filepath.Join(s.dir, naming.WithExt(name))
}

// Put implements Store
func (s *DirStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid patch name %q", name)
	}
	if err := os.WriteFile(s.path(name), data, 0644); err != nil {
		return fmt.Errorf("failed to write patch %s: %w", name, err)
	}
	return nil
}

// Get implements Store
func (s *DirStore) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read patch %s: %w", name, err)
	}
	return data, nil
}

// List implements Store
func (s *DirStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list patches: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != naming.Ext {
			continue
		}
		name := naming.StripExt(e.Name())
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete implements Store
func (s *DirStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove patch %s: %w", name, err)
	}
	return nil
}

// Close removes the directory if it is empty. Leftover files keep it in
// place.
func (s *DirStore) Close() error {
	_ = os.Remove(s.dir)
	return nil
}
