package genconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeToml(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "dcsema.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeToml(t, `
[emitter]
package = "gen"
comment = true

[cache]
path = "custom.db"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "gen", cfg.Emitter.Package)
	require.True(t, cfg.Emitter.Comment)
	require.Equal(t, "custom.db", cfg.Cache.Path)
}

func TestLoadDefaultsCachePath(t *testing.T) {
	path := writeToml(t, `
[emitter]
package = "gen"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "dcsema-buildcache.db", cfg.Cache.Path)
}

func TestLoadMissingPackageIsError(t *testing.T) {
	path := writeToml(t, `
[cache]
path = "x.db"
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFileIsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.Error(t, err)
}
