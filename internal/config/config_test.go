package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dstore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":3000", cfg.Listen)
	assert.Equal(t, time.Second, cfg.QuietWindow)
	require.Len(t, cfg.Stores, 1)
	assert.Equal(t, StoreConfig{Name: "stream-items", Route: "/stream-item"}, cfg.Stores[0])
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
dir: /var/lib/dstore
listen: 127.0.0.1:8080
quiet_window: 250ms
stores:
  - name: stream-items
    route: /stream-item
    schema: schemas/item.cue
    definition: "#StreamItem"
  - name: users
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/dstore", cfg.Dir)
	assert.Equal(t, "127.0.0.1:8080", cfg.Listen)
	assert.Equal(t, 250*time.Millisecond, cfg.QuietWindow)
	require.Len(t, cfg.Stores, 2)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "schemas", "item.cue"), cfg.Stores[0].Schema)
	assert.Equal(t, "/users", cfg.Stores[1].Route, "route defaults to /<name>")
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "quiet_window: 2s\n"))
	require.NoError(t, err)

	assert.Equal(t, DefaultListen, cfg.Listen)
	assert.Equal(t, 2*time.Second, cfg.QuietWindow)
	assert.Equal(t, DefaultStore, cfg.Stores[0].Name)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")

	_, err = Load(writeConfig(t, "stores: [\n"))
	assert.ErrorContains(t, err, "parse config")

	_, err = Load(writeConfig(t, "quiet_window: soon\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "negative window",
			cfg:  Config{QuietWindow: -time.Second},
			want: "quiet_window",
		},
		{
			name: "bad name",
			cfg:  Config{Stores: []StoreConfig{{Name: "a/b", Route: "/a"}}},
			want: "path separator",
		},
		{
			name: "duplicate name",
			cfg:  Config{Stores: []StoreConfig{{Name: "a", Route: "/a"}, {Name: "a", Route: "/b"}}},
			want: "duplicate store",
		},
		{
			name: "duplicate route",
			cfg:  Config{Stores: []StoreConfig{{Name: "a", Route: "/x"}, {Name: "b", Route: "/x"}}},
			want: "duplicate route",
		},
		{
			name: "relative route",
			cfg:  Config{Stores: []StoreConfig{{Name: "a", Route: "a"}}},
			want: "must start with /",
		},
		{
			name: "schema without definition",
			cfg:  Config{Stores: []StoreConfig{{Name: "a", Route: "/a", Schema: "a.cue"}}},
			want: "set together",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorContains(t, tt.cfg.Validate(), tt.want)
		})
	}
}

func TestMerge(t *testing.T) {
	base := Default()
	merged := base.Merge(Config{Listen: ":9000"})

	assert.Equal(t, ":9000", merged.Listen)
	assert.Equal(t, base.QuietWindow, merged.QuietWindow)
	assert.Equal(t, base.Stores, merged.Stores)
}

func TestStoreLookup(t *testing.T) {
	cfg := Default()

	s, ok := cfg.Store(" stream-items ")
	require.True(t, ok)
	assert.Equal(t, "/stream-item", s.Route)

	_, ok = cfg.Store("nope")
	assert.False(t, ok)
}
