package config

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chazu/fuelgeom/pkg/blob"
	"github.com/chazu/fuelgeom/pkg/plot"
	"github.com/chazu/fuelgeom/pkg/store"
)

// DefaultPath is where the CLI looks for configuration.
const DefaultPath = "fuelgeom.yaml"

// Config holds all fuelgeom configuration.
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Plot    PlotConfig    `yaml:"plot"`
	Mesh    MeshConfig    `yaml:"mesh"`
	Storage StorageConfig `yaml:"storage"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

// EngineConfig configures script evaluation.
type EngineConfig struct {
	Timeout string `yaml:"timeout"`
}

// PlotConfig configures plot rendering.
type PlotConfig struct {
	Workers    int      `yaml:"workers"` // 0 = GOMAXPROCS
	Scale      int      `yaml:"scale"`
	Colors     []string `yaml:"colors"`
	Void       string   `yaml:"void"`
	Outside    string   `yaml:"outside"`
	Unresolved string   `yaml:"unresolved"`
}

// MeshConfig configures tessellation.
type MeshConfig struct {
	Resolution int     `yaml:"resolution"` // marching cubes cells per solid
	Height     float64 `yaml:"height"`
	Workers    int     `yaml:"workers"`
}

// StorageConfig configures the export sink.
type StorageConfig struct {
	Blob    blob.Config   `yaml:"blob"`
	Catalog CatalogConfig `yaml:"catalog"`
}

// CatalogConfig selects the run catalog database.
type CatalogConfig struct {
	Driver store.Driver `yaml:"driver"`
	DSN    string       `yaml:"dsn"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{Timeout: "5s"},
		Plot: PlotConfig{
			Scale:      1,
			Colors:     append([]string(nil), plot.DefaultColors...),
			Void:       "#000000",
			Outside:    "#FFFFFF",
			Unresolved: "#FF00FF",
		},
		Mesh: MeshConfig{Resolution: 64, Height: 2},
		Storage: StorageConfig{
			Blob:    blob.Config{Driver: blob.DriverFilesystem, Root: "fuelgeom-data/blobs"},
			Catalog: CatalogConfig{Driver: store.DriverSQLite, DSN: "fuelgeom-data/catalog.db"},
		},
		Server:  ServerConfig{Addr: "127.0.0.1:8080"},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Load reads configuration from path. A missing file yields the defaults.
// Environment overrides are applied either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// applyEnvOverrides applies FUELGEOM_* environment variables. Unparseable
// numbers are ignored.
func (c *Config) applyEnvOverrides() {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	str("FUELGEOM_ENGINE_TIMEOUT", &c.Engine.Timeout)
	str("FUELGEOM_SERVER_ADDR", &c.Server.Addr)
	str("FUELGEOM_LOG_LEVEL", &c.Logging.Level)
	str("FUELGEOM_LOG_FORMAT", &c.Logging.Format)
	str("FUELGEOM_BLOB_ROOT", &c.Storage.Blob.Root)
	str("FUELGEOM_S3_BUCKET", &c.Storage.Blob.S3.Bucket)
	str("FUELGEOM_S3_REGION", &c.Storage.Blob.S3.Region)
	str("FUELGEOM_S3_ENDPOINT", &c.Storage.Blob.S3.Endpoint)
	str("FUELGEOM_CATALOG_DSN", &c.Storage.Catalog.DSN)
	if v := os.Getenv("FUELGEOM_BLOB_DRIVER"); v != "" {
		c.Storage.Blob.Driver = blob.Driver(v)
	}
	if v := os.Getenv("FUELGEOM_CATALOG_DRIVER"); v != "" {
		c.Storage.Catalog.Driver = store.Driver(v)
	}
	if v := os.Getenv("FUELGEOM_S3_PATH_STYLE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Storage.Blob.S3.PathStyle = b
		}
	}
	if v := os.Getenv("FUELGEOM_MESH_RESOLUTION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Mesh.Resolution = n
		}
	}
	if v := os.Getenv("FUELGEOM_PLOT_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Plot.Workers = n
		}
	}
}

// Validate checks values that would otherwise fail deep inside a command.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.EngineTimeout(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Palette(); err != nil {
		errs = append(errs, err)
	}
	if c.Plot.Scale < 1 {
		errs = append(errs, fmt.Errorf("plot.scale %d must be at least 1", c.Plot.Scale))
	}
	if c.Mesh.Resolution < 0 {
		errs = append(errs, fmt.Errorf("mesh.resolution %d must not be negative", c.Mesh.Resolution))
	}
	if c.Mesh.Height < 0 {
		errs = append(errs, fmt.Errorf("mesh.height %g must not be negative", c.Mesh.Height))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q, expected debug, info, warn or error", c.Logging.Level))
	}
	return errors.Join(errs...)
}

// EngineTimeout parses the evaluation timeout.
func (c *Config) EngineTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Engine.Timeout)
	if err != nil {
		return 0, fmt.Errorf("engine.timeout: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("engine.timeout %s must be positive", d)
	}
	return d, nil
}

// Palette builds the plot palette from the configured colours.
func (c *Config) Palette() (plot.Palette, error) {
	p := plot.DefaultPalette()
	if len(c.Plot.Colors) > 0 {
		p.Colors = p.Colors[:0:0]
		for _, hex := range c.Plot.Colors {
			col, err := plot.ParseHex(hex)
			if err != nil {
				return plot.Palette{}, fmt.Errorf("plot.colors: %w", err)
			}
			p.Colors = append(p.Colors, col)
		}
	}
	for _, f := range []struct {
		hex string
		dst *color.RGBA
	}{
		{c.Plot.Void, &p.Void},
		{c.Plot.Outside, &p.Outside},
		{c.Plot.Unresolved, &p.Unresolved},
	} {
		if f.hex == "" {
			continue
		}
		col, err := plot.ParseHex(f.hex)
		if err != nil {
			return plot.Palette{}, fmt.Errorf("plot: %w", err)
		}
		*f.dst = col
	}
	return p, nil
}
