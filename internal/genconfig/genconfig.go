// Package genconfig loads the Table Emitter's build-time configuration
// from a dcsema.toml file: the output package name, whether to comment
// each emitted entry, and where the build cache lives (spec.md section
// 4.3's "embeddable output", parameterized the way vovakirdan-surge's
// surge.toml configures its own build).
package genconfig

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the decoded shape of dcsema.toml.
type Config struct {
	Emitter EmitterConfig `toml:"emitter"`
	Cache   CacheConfig   `toml:"cache"`
}

// EmitterConfig configures internal/semtable.Emit's output.
type EmitterConfig struct {
	Package string `toml:"package"`
	Comment bool   `toml:"comment"`
}

// CacheConfig configures internal/buildcache's sqlite store.
type CacheConfig struct {
	Path string `toml:"path"`
}

// Load decodes path into a Config, defaulting Comment to false and
// requiring [emitter].package to be set: an emitted table with no
// destination package name is a configuration error, not a silently
// guessed default.
func Load(path string) (Config, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("emitter") || strings.TrimSpace(cfg.Emitter.Package) == "" {
		return Config{}, fmt.Errorf("%s: missing [emitter].package", path)
	}
	if strings.TrimSpace(cfg.Cache.Path) == "" {
		cfg.Cache.Path = "dcsema-buildcache.db"
	}
	return cfg, nil
}
