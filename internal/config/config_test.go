package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "mediaexport.db", cfg.Database.DSN)

	assert.Equal(t, "./exports", cfg.Storage.OutputDir)
	assert.Equal(t, ByteSize(0), cfg.Storage.MaxOutputSize)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	assert.Equal(t, "original", cfg.Export.DefaultQuality)
	assert.Equal(t, "mp4", cfg.Export.DefaultFormat)
	assert.Equal(t, 256, cfg.Export.FragmentSamples)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
database:
  driver: postgres
  dsn: "host=localhost user=app dbname=exports"
storage:
  output_dir: /srv/exports
  max_output_size: 2GB
logging:
  level: debug
export:
  default_quality: medium
  fragment_samples: 64
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "/srv/exports", cfg.Storage.OutputDir)
	assert.Equal(t, int64(2*1024*1024*1024), cfg.Storage.MaxOutputSize.Int64())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "medium", cfg.Export.DefaultQuality)
	assert.Equal(t, 64, cfg.Export.FragmentSamples)

	// Untouched keys keep their defaults.
	assert.Equal(t, "mp4", cfg.Export.DefaultFormat)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("MEDIAEXPORT_SERVER_PORT", "7070")
	t.Setenv("MEDIAEXPORT_EXPORT_DEFAULT_QUALITY", "high")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "high", cfg.Export.DefaultQuality)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad driver", func(c *Config) { c.Database.Driver = "oracle" }, "invalid database driver"},
		{"bad quality", func(c *Config) { c.Export.DefaultQuality = "extreme" }, "invalid default quality"},
		{"bad format", func(c *Config) { c.Export.DefaultFormat = "avi" }, "invalid default format"},
		{"zero fragment samples", func(c *Config) { c.Export.FragmentSamples = 0 }, "fragment_samples"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseByteSize(t *testing.T) {
	size, err := ParseByteSize("5MB")
	require.NoError(t, err)
	assert.Equal(t, int64(5*1024*1024), size.Int64())

	_, err = ParseByteSize("not a size")
	require.Error(t, err)
}

func TestByteSizeJSON(t *testing.T) {
	var b ByteSize
	require.NoError(t, b.UnmarshalJSON([]byte(`"1.5MB"`)))
	assert.Equal(t, int64(1.5*1024*1024), b.Int64())

	require.NoError(t, b.UnmarshalJSON([]byte(`4096`)))
	assert.Equal(t, int64(4096), b.Int64())

	data, err := ByteSize(1024).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"1KB"`, string(data))
}
