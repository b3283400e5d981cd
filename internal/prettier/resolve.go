package prettier

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Resolver finds the project configuration that applies to a file.
type Resolver interface {
	Resolve(filePath string) (Config, error)
}

// searchPlaces are checked in every directory, nearest directory first.
var searchPlaces = []string{
	"package.json",
	".prettierrc",
	".prettierrc.json",
	".prettierrc.yaml",
	".prettierrc.yml",
	".prettierrc.json5",
	".prettierrc.js",
	".prettierrc.cjs",
	".prettierrc.mjs",
	"prettier.config.js",
	"prettier.config.cjs",
	"prettier.config.mjs",
	".prettierrc.toml",
}

// FileResolver resolves configuration the way prettier does: the nearest
// config file walking up from the file's directory, with matching
// "overrides" entries applied.
type FileResolver struct{}

// NewFileResolver creates a FileResolver.
func NewFileResolver() *FileResolver {
	return &FileResolver{}
}

// Resolve returns the configuration for filePath. No config file yields an
// empty Config. A config file that cannot be read or decoded is an error.
func (r *FileResolver) Resolve(filePath string) (Config, error) {
	if filePath == "" {
		return Config{}, nil
	}
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("resolve file path: %w", err)
	}

	for dir := filepath.Dir(abs); ; dir = filepath.Dir(dir) {
		cfg, source, err := loadDir(dir)
		if err != nil {
			return nil, err
		}
		if cfg != nil {
			log.Debug().Str("config", source).Str("file", abs).Msg("Resolved prettier config")
			return applyOverrides(cfg, dir, abs), nil
		}
		if parent := filepath.Dir(dir); parent == dir {
			break
		}
	}

	return Config{}, nil
}

// loadDir returns the first configuration found in dir, or nil.
func loadDir(dir string) (Config, string, error) {
	for _, name := range searchPlaces {
		p := filepath.Join(dir, name)
		data, err := os.ReadFile(p)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, p, fmt.Errorf("read prettier config %s: %w", p, err)
		}

		cfg, found, err := decodeConfig(name, data)
		if err != nil {
			return nil, p, fmt.Errorf("parse prettier config %s: %w", p, err)
		}
		if found {
			return cfg, p, nil
		}
	}
	return nil, "", nil
}

// decodeConfig decodes one config file. found is false for a package.json
// without a "prettier" key.
func decodeConfig(name string, data []byte) (Config, bool, error) {
	switch {
	case name == "package.json":
		var pkg struct {
			Prettier json.RawMessage `json:"prettier"`
		}
		if err := json.Unmarshal(data, &pkg); err != nil {
			return nil, false, err
		}
		if len(pkg.Prettier) == 0 {
			return nil, false, nil
		}
		var shared string
		if json.Unmarshal(pkg.Prettier, &shared) == nil {
			log.Warn().Str("config", shared).Msg("Shared prettier configs are not supported, using defaults")
			return Config{}, true, nil
		}
		cfg := Config{}
		if err := json.Unmarshal(pkg.Prettier, &cfg); err != nil {
			return nil, false, err
		}
		return cfg, true, nil

	case name == ".prettierrc.toml":
		cfg := Config{}
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, false, err
		}
		return cfg, true, nil

	case name == ".prettierrc" || name == ".prettierrc.json" ||
		name == ".prettierrc.yaml" || name == ".prettierrc.yml":
		// JSON is a subset of YAML, so one decoder serves all four.
		cfg := Config{}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, false, err
		}
		return cfg, true, nil
	}

	log.Warn().Str("config", name).Msg("Executable prettier configs are not supported, using defaults")
	return Config{}, true, nil
}

// applyOverrides merges the options of every "overrides" entry whose files
// globs match the file, in declaration order.
func applyOverrides(cfg Config, configDir, filePath string) Config {
	var entries []any
	switch v := cfg["overrides"].(type) {
	case []any:
		entries = v
	case []map[string]any:
		for _, m := range v {
			entries = append(entries, m)
		}
	default:
		return cfg
	}

	rel, err := filepath.Rel(configDir, filePath)
	if err != nil {
		return cfg
	}
	rel = filepath.ToSlash(rel)

	out := maps.Clone(cfg)
	for _, raw := range entries {
		entry := toConfig(raw)
		if entry == nil {
			continue
		}
		if !matchAny(entry.Strings("files"), rel) || matchAny(entry.Strings("excludeFiles"), rel) {
			continue
		}
		maps.Copy(out, toConfig(entry["options"]))
	}
	return out
}

func toConfig(v any) Config {
	switch m := v.(type) {
	case map[string]any:
		return Config(m)
	case Config:
		return m
	}
	return nil
}

// matchAny reports whether rel matches one of the globs, "**" included.
// Globs without a slash match against the base name, as prettier does.
func matchAny(globs []string, rel string) bool {
	for _, g := range globs {
		target := rel
		if !strings.Contains(g, "/") {
			target = path.Base(rel)
		}
		if ok, _ := doublestar.Match(g, target); ok {
			return true
		}
	}
	return false
}
