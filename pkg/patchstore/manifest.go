package patchstore

import (
	"context"
	"fmt"
	"image"

	"go.uber.org/zap"

	"fieldseg/internal/models"
	"fieldseg/pkg/naming"
)

// Save encodes tile image img and stores it under the canonical name of
// (identifier, row, col, suffix). It returns the name used.
func Save(ctx context.Context, s Store, identifier string, row, col int, suffix naming.Suffix, img image.Image) (string, error) {
	name, err := naming.Encode(identifier, row, col, suffix)
	if err != nil {
		return "", err
	}
	data, err := EncodeImage(img)
	if err != nil {
		return "", err
	}
	if err := s.Put(ctx, name, data); err != nil {
		return "", err
	}
	return name, nil
}

// LoadManifest reads every tile of identifier carrying suffix back into
// records. Names that share the identifier as a plain prefix but belong to a
// different image are skipped. Malformed names are logged and skipped
// without failing the rest.
func LoadManifest(ctx context.Context, s Store, identifier string, suffix naming.Suffix, logger *zap.Logger) ([]models.Record, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	names, err := s.List(ctx, identifier+"_")
	if err != nil {
		return nil, err
	}
	return load(ctx, s, names, func(p naming.Parsed) bool {
		return p.Identifier == identifier && p.Suffix == suffix
	}, logger)
}

// LoadAll reads every tile carrying suffix, whatever its identifier
func LoadAll(ctx context.Context, s Store, suffix naming.Suffix, logger *zap.Logger) ([]models.Record, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	names, err := s.List(ctx, "")
	if err != nil {
		return nil, err
	}
	return load(ctx, s, names, func(p naming.Parsed) bool {
		return p.Suffix == suffix
	}, logger)
}

func load(ctx context.Context, s Store, names []string, keep func(naming.Parsed) bool, logger *zap.Logger) ([]models.Record, error) {
	var records []models.Record
	for _, name := range names {
		p, err := naming.Decode(name)
		if err != nil {
			logger.Warn("skipping stored tile", zap.String("name", name), zap.Error(err))
			continue
		}
		if !keep(p) {
			continue
		}

		data, err := s.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		img, err := DecodeImage(data)
		if err != nil {
			return nil, fmt.Errorf("tile %s: %w", name, err)
		}
		records = append(records, models.Record{
			Identifier: p.Identifier,
			Row:        p.Row,
			Col:        p.Col,
			Image:      img,
		})
	}
	return records, nil
}

// Cleanup deletes every stored tile of identifier, whatever its suffix.
// Failures are logged, never returned: a leftover tile must not fail an
// otherwise finished run. It returns the number of tiles removed.
func Cleanup(ctx context.Context, s Store, identifier string, logger *zap.Logger) int {
	if logger == nil {
		logger = zap.NewNop()
	}
	names, err := s.List(ctx, identifier+"_")
	if err != nil {
		logger.Warn("failed to list tiles for cleanup", zap.String("identifier", identifier), zap.Error(err))
		return 0
	}

	removed := 0
	for _, name := range names {
		p, err := naming.Decode(name)
		if err != nil || p.Identifier != identifier {
			continue
		}
		if err := s.Delete(ctx, name); err != nil {
			logger.Warn("failed to remove tile", zap.String("name", name), zap.Error(err))
			continue
		}
		removed++
	}
	return removed
}
