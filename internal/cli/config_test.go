package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/filedb/dberr"
	"github.com/roach88/filedb/engine"
	"github.com/roach88/filedb/model"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "filedb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
path: data
format: yaml
layout: partitioned
sync: periodic:2s
compact: true
models:
  - name: users
    columns: [id, name]
  - name: events
    id: key
    schema: '{key: string}'
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.Path)
	assert.Equal(t, filepath.Join(dir, "data"), cfg.StorePath())
	assert.Equal(t, "yaml", cfg.Format)
	assert.Equal(t, "partitioned", cfg.Layout)
	assert.True(t, cfg.Compact)
	require.Len(t, cfg.Models, 2)
	assert.Equal(t, []string{"id", "name"}, cfg.Models[0].Columns)
	assert.Equal(t, "key", cfg.Models[1].ID)

	policy, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, engine.Periodic(2*time.Second), policy)
}

func TestLoadConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "path: /var/lib/filedb/store.json\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/filedb/store.json", cfg.StorePath())
	assert.Empty(t, cfg.Models)

	policy, err := cfg.Policy()
	require.NoError(t, err)
	assert.True(t, policy.IsManual())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "path: store.json\nsync: manual\n")
	t.Setenv("FILEDB_SYNC", "every-write")
	t.Setenv("FILEDB_PATH", "other.yaml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "other.yaml"), cfg.StorePath())

	policy, err := cfg.Policy()
	require.NoError(t, err)
	assert.True(t, policy.IsEveryWrite())
}

func TestLoadConfig_NoFileUsesEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FILEDB_PATH", "store.json")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "store.json", cfg.StorePath())
}

func TestLoadConfig_SearchesWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "path: found.json\n")
	t.Chdir(dir)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "found.json", cfg.Path)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing path", "models: []\n", "store path is not configured"},
		{"unnamed model", "path: x.json\nmodels:\n  - id: id\n", "name is required"},
		{"duplicate model", "path: x.json\nmodels:\n  - name: a\n  - name: a\n", "duplicate model"},
		{"two schemas", "path: x.json\nmodels:\n  - name: a\n    schema: '{}'\n    schema_file: a.cue\n", "mutually exclusive"},
		{"malformed yaml", "path: [unterminated\n", "read config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.body)
			_, err := LoadConfig(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestBuildAdapter(t *testing.T) {
	tests := []struct {
		path, format, layout string
		want                 string
	}{
		{"store.json", "", "", "*adapter.Unified"},
		{"store.yml", "", "", "*adapter.Unified"},
		{"store.db", "", "", "*adapter.SQLite"},
		{"store", "", "", "*adapter.Partitioned"},
		{"store", "json", "", "*adapter.Unified"},
		{"store", "json", "partitioned", "*adapter.Partitioned"},
		{"store", "csv", "", "*adapter.Partitioned"},
		{"store", "sqlite", "", "*adapter.SQLite"},
		{"store", "", "partitioned", "*adapter.Partitioned"},
	}

	for _, tt := range tests {
		t.Run(tt.path+"/"+tt.format+"/"+tt.layout, func(t *testing.T) {
			a, err := buildAdapter(tt.path, tt.format, tt.layout, false)
			require.NoError(t, err)
			assert.Equal(t, tt.want, fmt.Sprintf("%T", a))
		})
	}

	_, err := buildAdapter("store", "xml", "", false)
	assert.Error(t, err)
	_, err = buildAdapter("store", "csv", "unified", false)
	assert.Error(t, err)
	_, err = buildAdapter("store", "json", "sideways", false)
	assert.Error(t, err)
}

func TestCatalog(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "event.cue"), []byte(`{key: string, at: int}`), 0o644))
	path := writeConfig(t, dir, `
path: store.json
models:
  - name: users
    schema: '{id: string, name: string}'
  - name: events
    id: key
    schema_file: event.cue
  - name: notes
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	cat, err := cfg.catalog()
	require.NoError(t, err)
	assert.Equal(t, []string{"users", "events", "notes"}, cat.registry.Names())
	assert.Equal(t, "id", cat.idFields["users"])
	assert.Equal(t, "key", cat.idFields["events"])

	users, err := cat.lookup("users")
	require.NoError(t, err)
	assert.NoError(t, users.Validate(model.Document{"id": "1", "name": "Alice"}))
	assert.True(t, dberr.IsValidation(users.Validate(model.Document{"id": "1"})))

	events, err := cat.lookup("events")
	require.NoError(t, err)
	assert.Equal(t, "e1", events.ID(model.Document{"key": "e1"}))
	assert.True(t, dberr.IsValidation(events.Validate(model.Document{"key": "e1", "at": "noon"})))

	notes, err := cat.lookup("notes")
	require.NoError(t, err)
	assert.NoError(t, notes.Validate(model.Document{"id": 3.0, "anything": true}))

	_, err = cat.lookup("ghosts")
	assert.True(t, dberr.IsUnknownModel(err))
}

func TestCatalog_InvalidSchema(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "path: store.json\nmodels:\n  - name: users\n    schema: '{id: '\n")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	_, err = cfg.catalog()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model users")

	path = writeConfig(t, dir, "path: store.json\nmodels:\n  - name: users\n    schema_file: missing.cue\n")
	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	_, err = cfg.catalog()
	assert.Error(t, err)
}
