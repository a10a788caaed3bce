package config

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldseg/pkg/classmap"
)

func TestDefaultClassTableMatchesBuiltin(t *testing.T) {
	table, err := DefaultConfig().ClassTable()
	require.NoError(t, err)

	builtin := classmap.DefaultTable()
	assert.Equal(t, builtin.Classes(), table.Classes())
	assert.Equal(t, builtin.Tolerance(), table.Tolerance())
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Tiling, cfg.Tiling)

	cfg, err = LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.Tiling.PatchSize)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "fieldseg.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Classes, cfg.Classes)
	assert.Equal(t, DefaultConfig().Storage, cfg.Storage)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fieldseg.yaml")
	data := `
tiling:
  patchSize: 128
  relevanceFilter: true
classes:
  tolerance: 4
  table:
    - name: soil
      color: "#000000"
    - name: crop
      color: "#00ff00"
stitching:
  strict: true
storage:
  backend: sqlite
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 128, cfg.Tiling.PatchSize)
	assert.True(t, cfg.Tiling.RelevanceFilter)
	assert.True(t, cfg.Stitching.Strict)
	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)

	table, err := cfg.ClassTable()
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())
	assert.Equal(t, 4, table.Tolerance())
	crop, err := table.ColorOf(1)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{G: 255, A: 255}, crop)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"patch size": "tiling:\n  patchSize: 0\n",
		"backend":    "storage:\n  backend: s3\n",
		"colour":     "classes:\n  table:\n    - name: x\n      color: \"not-a-colour\"\n",
		"workers":    "processing:\n  workers: -1\n",
		"yaml":       "tiling: [",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			require.NoError(t, os.WriteFile(path, []byte(data), 0644))
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}
