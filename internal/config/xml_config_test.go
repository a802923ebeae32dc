package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets key for the test and restores it afterwards.
func clearEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}

func clearOverrides(t *testing.T) {
	for _, key := range []string{"PORT", "DATA_DIR", "UPLOAD_ENDPOINT", "UPLOAD_HEADER_VALUE"} {
		clearEnv(t, key)
	}
}

func TestLoadConfig_CreatesDefaultXML(t *testing.T) {
	clearOverrides(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "uploader.config")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err, "default config should be written")

	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, "https://httpbin.org/post", cfg.Upload.Endpoint)
	assert.Equal(t, "Custom-Header", cfg.Upload.HeaderName)
	assert.Equal(t, "value", cfg.Upload.HeaderValue)
	assert.Equal(t, "image/png,image/jpeg", cfg.Upload.AllowedTypes)
	assert.Equal(t, filepath.Join(dir, "data", "staged"), cfg.GetUploadDir())

	again, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Upload, again.Upload)
}

func TestLoadConfig_XMLOverridesDefaults(t *testing.T) {
	clearOverrides(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "uploader.config")
	xmlContent := `<?xml version="1.0" encoding="UTF-8"?>
<ImageUploader>
  <Server><Port>9000</Port><BindAddress>127.0.0.1</BindAddress></Server>
  <Upload><Endpoint>http://example.test/upload</Endpoint><HeaderName>X-Token</HeaderName><HeaderValue>abc</HeaderValue></Upload>
</ImageUploader>`
	require.NoError(t, os.WriteFile(path, []byte(xmlContent), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.GetServerAddr())
	assert.Equal(t, "http://example.test/upload", cfg.Upload.Endpoint)
	assert.Equal(t, "X-Token", cfg.Upload.HeaderName)
	// Unset elements keep their defaults.
	assert.Equal(t, "image/png,image/jpeg", cfg.Upload.AllowedTypes)
	assert.Equal(t, 30, cfg.Widgets.SessionTimeoutMinutes)
}

func TestLoadConfig_YAML(t *testing.T) {
	clearOverrides(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "uploader.yaml")
	yamlContent := `
server:
  port: 9100
upload:
  endpoint: http://yaml.test/post
  allowedTypes: image/png
storage:
  maxFileSize: 1M
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "http://yaml.test/post", cfg.Upload.Endpoint)
	assert.Equal(t, "image/png", cfg.Upload.AllowedTypes)
	assert.Equal(t, "Custom-Header", cfg.Upload.HeaderName)

	size, err := cfg.GetMaxFileSize()
	require.NoError(t, err)
	assert.Equal(t, int64(1024*1024), size)
}

func TestLoadConfig_YAMLDefaultIsWritten(t *testing.T) {
	clearOverrides(t)
	path := filepath.Join(t.TempDir(), "uploader.yml")

	_, err := LoadConfig(path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "endpoint: https://httpbin.org/post")
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	clearOverrides(t)
	dir := t.TempDir()
	t.Setenv("PORT", "7001")
	t.Setenv("UPLOAD_ENDPOINT", "http://env.test/post")
	t.Setenv("DATA_DIR", filepath.Join(dir, "elsewhere"))

	cfg, err := LoadConfig(filepath.Join(dir, "uploader.config"))
	require.NoError(t, err)

	assert.Equal(t, 7001, cfg.Server.Port)
	assert.Equal(t, "http://env.test/post", cfg.Upload.Endpoint)
	assert.Equal(t, filepath.Join(dir, "elsewhere"), cfg.GetDataDir())
	assert.Equal(t, filepath.Join(dir, "elsewhere", "staged"), cfg.GetUploadDir())
}

func TestLoadConfig_DotEnv(t *testing.T) {
	clearOverrides(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("UPLOAD_HEADER_VALUE=from-dotenv\n"), 0644))

	cfg, err := LoadConfig(filepath.Join(dir, "uploader.config"))
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Upload.HeaderValue)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr bool
	}{
		{"defaults are valid", func(*AppConfig) {}, false},
		{"missing endpoint", func(c *AppConfig) { c.Upload.Endpoint = "" }, true},
		{"bad port", func(c *AppConfig) { c.Server.Port = 70000 }, true},
		{"bad size", func(c *AppConfig) { c.Storage.MaxFileSize = "lots" }, true},
		{"no size limit", func(c *AppConfig) { c.Storage.MaxFileSize = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.resolvePaths(dir)

	require.NoError(t, cfg.EnsureDirectories())
	info, err := os.Stat(cfg.GetUploadDir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
