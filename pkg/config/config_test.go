package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxelpart/pkg/partition"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "partitions", cfg.Output.Dir)
	assert.False(t, cfg.Output.ExportCSV)
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
output:
  dir: out
  exportCsv: true
partitions:
  declive:
    type: nrrd
    sources: [density.nrrd, orientation.nrrd]
    keys: [density, orientation]
    voxel_size: 25
  cerebellum:
    type: allen
    source: annotation.nrrd
    struct_name: CB
    hierarchy: hierarchy.json
    voxel_size: [25, 25, 25]
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Output.ExportCSV)
	require.Len(t, cfg.Partitions, 2)

	declive := cfg.Partitions["declive"]
	assert.Equal(t, partition.TypeNRRD, declive.Type)
	assert.Equal(t, []string{"density.nrrd", "orientation.nrrd"}, declive.SourceList())
	assert.Equal(t, partition.VoxelSize{25, 25, 25}, declive.VoxelSize)

	cb := cfg.Partitions["cerebellum"]
	assert.Equal(t, partition.TypeAllen, cb.Type)
	assert.Equal(t, "CB", cb.StructName)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigRejectsInvalidPartition(t *testing.T) {
	path := writeConfig(t, `
partitions:
  broken:
    type: nrrd
    sources: [a.nrrd, b.nrrd]
    keys: [only-one]
    voxel_size: 25
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"broken"`)
}

func TestSaveAndReloadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Partitions = map[string]partition.Descriptor{
		"layer1": {
			Type:      partition.TypeNRRD,
			Source:    "layer1.nrrd",
			VoxelSize: partition.VoxelSize{10, 10, 10},
		},
	}

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, SaveConfig(cfg, path))

	got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Partitions["layer1"].Source, got.Partitions["layer1"].Source)
	assert.Equal(t, cfg.Partitions["layer1"].VoxelSize, got.Partitions["layer1"].VoxelSize)
}
