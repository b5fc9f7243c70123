package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestLoad_Defaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "config")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, PubSubMemory, cfg.PubSub.Provider)
	assert.Equal(t, "admin", cfg.Auth.AdminRole)
	assert.False(t, cfg.Upload.Enabled())
	assert.Equal(t, filepath.Join(filepath.Dir(dir), "logs"), cfg.Logging.Dir)

	require.Len(t, cfg.Views, 6)
	gallery, ok := cfg.Views.Get("gallery")
	require.True(t, ok)
	assert.Equal(t, "title", gallery.Fields.Title)
	assert.Equal(t, DefaultPageSize, gallery.PageSize)
	assert.Equal(t, "desc", gallery.Order.Direction)

	team, _ := cfg.Views.Get("team")
	assert.Equal(t, "name", team.Fields.Title)
	assert.Equal(t, "createdAt", team.Fields.CreatedAt)

	subs, _ := cfg.Views.Get("subscribers")
	assert.True(t, subs.Admin)
}

func TestLoad_FilesAndLocalOverride(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yml", `
server:
  http_port: 7070
storage:
  backend: mongo
  mongo:
    uri: "mongodb://file:27017"
    database: filedb
  memory:
    seed_file: seed.yml
views:
  - name: gallery
    scope: "doc.published == true"
    where:
      - field: category
        op: "!="
        value: Hidden
`)
	writeConfig(t, dir, "config.local.yml", `
server:
  http_port: 7071
`)

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 7071, cfg.Server.HTTPPort)
	assert.Equal(t, "mongodb://file:27017", cfg.Storage.Mongo.URI)
	assert.Equal(t, "filedb", cfg.Storage.Mongo.Database)
	assert.True(t, cfg.Storage.Mongo.ChangeStreams, "defaults survive partial YAML")
	assert.Equal(t, filepath.Join(dir, "seed.yml"), cfg.Storage.Memory.SeedFile)

	require.Len(t, cfg.Views, 1)
	assert.Equal(t, "gallery", cfg.Views[0].Collection)
	assert.Equal(t, "doc.published == true", cfg.Views[0].Scope)
	require.Len(t, cfg.Views[0].Where, 1)
	assert.Equal(t, "Hidden", cfg.Views[0].Where[0].Value)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ATELIER_HTTP_PORT", "9999")
	t.Setenv("ATELIER_STORAGE_BACKEND", "realtime")
	t.Setenv("ATELIER_REALTIME_URL", "ws://store:8080/realtime/ws")
	t.Setenv("ATELIER_PUBSUB_PROVIDER", "none")
	t.Setenv("ATELIER_LOG_LEVEL", "debug")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.HTTPPort)
	assert.Equal(t, BackendRealtime, cfg.Storage.Backend)
	assert.False(t, cfg.Storage.Writable())
	assert.False(t, cfg.PubSub.Enabled())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "debug", cfg.Logging.Console.Level)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("malformed yaml", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, "config.local.yml", "not: [valid")
		_, err := Load(dir)
		assert.ErrorContains(t, err, "config.local.yml")
	})

	t.Run("unreadable file", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(dir, "config.yml"), 0755))
		_, err := Load(dir)
		assert.Error(t, err)
	})

	t.Run("invalid section", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, "config.yml", "storage:\n  backend: sqlite\n")
		_, err := Load(dir)
		assert.ErrorContains(t, err, "storage.backend")
	})

	t.Run("bad env value", func(t *testing.T) {
		t.Setenv("ATELIER_HTTP_PORT", "eighty")
		_, err := Load(t.TempDir())
		assert.Error(t, err)
	})
}

func TestLoadConfig_UsesConfigDirEnv(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yml", "server:\n  http_port: 6060\n")
	t.Setenv("ATELIER_CONFIG_DIR", dir)

	cfg := LoadConfig()
	assert.Equal(t, 6060, cfg.Server.HTTPPort)
}
