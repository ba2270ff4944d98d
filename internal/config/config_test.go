package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/fuelgeom/pkg/blob"
	"github.com/chazu/fuelgeom/pkg/plot"
	"github.com/chazu/fuelgeom/pkg/store"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	d, err := cfg.EngineTimeout()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, d)

	p, err := cfg.Palette()
	require.NoError(t, err)
	assert.Equal(t, plot.DefaultPalette().Colors, p.Colors)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fuelgeom.yaml")
	yaml := `
engine:
  timeout: 30s
mesh:
  resolution: 128
storage:
  blob:
    driver: s3
    s3:
      bucket: runs
      endpoint: http://localhost:9000
      path_style: true
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "30s", cfg.Engine.Timeout)
	assert.Equal(t, 128, cfg.Mesh.Resolution)
	assert.Equal(t, 2.0, cfg.Mesh.Height)
	assert.Equal(t, blob.DriverS3, cfg.Storage.Blob.Driver)
	assert.Equal(t, "runs", cfg.Storage.Blob.S3.Bucket)
	assert.True(t, cfg.Storage.Blob.S3.PathStyle)
	assert.Equal(t, store.DriverSQLite, cfg.Storage.Catalog.Driver)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine: [unclosed"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "fuelgeom.yaml")
	cfg := DefaultConfig()
	cfg.Plot.Scale = 4
	cfg.Storage.Catalog = CatalogConfig{Driver: store.DriverPostgres, DSN: "postgres://localhost/fuelgeom"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FUELGEOM_LOG_LEVEL", "debug")
	t.Setenv("FUELGEOM_SERVER_ADDR", ":9090")
	t.Setenv("FUELGEOM_BLOB_DRIVER", "memory")
	t.Setenv("FUELGEOM_S3_PATH_STYLE", "true")
	t.Setenv("FUELGEOM_CATALOG_DRIVER", "postgres")
	t.Setenv("FUELGEOM_CATALOG_DSN", "postgres://db/fuelgeom")
	t.Setenv("FUELGEOM_ENGINE_TIMEOUT", "250ms")
	t.Setenv("FUELGEOM_MESH_RESOLUTION", "32")
	t.Setenv("FUELGEOM_PLOT_WORKERS", "not-a-number")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, blob.DriverMemory, cfg.Storage.Blob.Driver)
	assert.True(t, cfg.Storage.Blob.S3.PathStyle)
	assert.Equal(t, store.DriverPostgres, cfg.Storage.Catalog.Driver)
	assert.Equal(t, "postgres://db/fuelgeom", cfg.Storage.Catalog.DSN)
	assert.Equal(t, 32, cfg.Mesh.Resolution)
	assert.Equal(t, 0, cfg.Plot.Workers, "unparseable numbers are ignored")

	d, err := cfg.EngineTimeout()
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"bad timeout", func(c *Config) { c.Engine.Timeout = "soon" }, "engine.timeout"},
		{"zero timeout", func(c *Config) { c.Engine.Timeout = "0s" }, "must be positive"},
		{"bad colour", func(c *Config) { c.Plot.Colors = []string{"red"} }, "plot.colors"},
		{"bad void colour", func(c *Config) { c.Plot.Void = "#12" }, "plot:"},
		{"zero scale", func(c *Config) { c.Plot.Scale = 0 }, "plot.scale"},
		{"negative resolution", func(c *Config) { c.Mesh.Resolution = -1 }, "mesh.resolution"},
		{"negative height", func(c *Config) { c.Mesh.Height = -2 }, "mesh.height"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestPaletteOverrides(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Plot.Colors = []string{"#102030"}
	cfg.Plot.Unresolved = "#00FF00"

	p, err := cfg.Palette()
	require.NoError(t, err)
	require.Len(t, p.Colors, 1)
	assert.Equal(t, uint8(0x10), p.Colors[0].R)
	assert.Equal(t, uint8(0xFF), p.Unresolved.G)
	assert.Equal(t, uint8(0), p.Unresolved.R)
}
