// Package prettier delegates whitespace and structure normalization to the
// prettier CLI with the Twig melody plugin.
package prettier

import (
	"maps"
	"strconv"
	"strings"
)

const (
	DefaultPlugin = "prettier-plugin-twig-melody"
	DefaultParser = "melody"

	PrintWidth = 120
	TabWidth   = 4
)

// Config is a prettier option set, as found in a .prettierrc file.
type Config map[string]any

// Options are the fixed values applied on top of any project configuration.
type Options struct {
	PrintWidth                int
	TabWidth                  int
	SingleQuote               bool
	BracketSpacing            bool
	Semi                      bool
	HTMLWhitespaceSensitivity string
	Parser                    string
	Plugins                   []string
	Filepath                  string
}

// Overrides returns the house style for the given plugin, parser and file.
func Overrides(plugin, parser, filePath string) Options {
	if plugin == "" {
		plugin = DefaultPlugin
	}
	if parser == "" {
		parser = DefaultParser
	}
	return Options{
		PrintWidth:                PrintWidth,
		TabWidth:                  TabWidth,
		SingleQuote:               false,
		BracketSpacing:            true,
		Semi:                      true,
		HTMLWhitespaceSensitivity: "ignore",
		Parser:                    parser,
		Plugins:                   []string{plugin},
		Filepath:                  filePath,
	}
}

// Config returns the options keyed the way prettier names them.
func (o Options) Config() Config {
	return Config{
		"printWidth":                o.PrintWidth,
		"tabWidth":                  o.TabWidth,
		"singleQuote":               o.SingleQuote,
		"bracketSpacing":            o.BracketSpacing,
		"semi":                      o.Semi,
		"htmlWhitespaceSensitivity": o.HTMLWhitespaceSensitivity,
		"parser":                    o.Parser,
		"plugins":                   o.Plugins,
		"filepath":                  o.Filepath,
	}
}

// Merge layers overrides on top of a resolved project configuration.
// Overrides always win. Resolution-only keys are dropped.
func Merge(resolved Config, overrides Options) Config {
	merged := make(Config, len(resolved)+9)
	maps.Copy(merged, resolved)
	delete(merged, "overrides")
	delete(merged, "$schema")
	maps.Copy(merged, overrides.Config())
	return merged
}

// String returns the string option key or "".
func (c Config) String(key string) string {
	s, _ := c[key].(string)
	return s
}

// Int returns the integer option key, accepting the number types produced by
// the JSON, YAML and TOML decoders.
func (c Config) Int(key string, fallback int) int {
	switch v := c[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// Bool returns the boolean option key or false.
func (c Config) Bool(key string) bool {
	b, _ := c[key].(bool)
	return b
}

// Strings returns a list option such as plugins.
func (c Config) Strings(key string) []string {
	switch v := c[key].(type) {
	case []string:
		return v
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// IndentUnit is one indentation level of formatter output.
func IndentUnit(c Config) string {
	if c.Bool("useTabs") {
		return "\t"
	}
	return strings.Repeat(" ", c.Int("tabWidth", TabWidth))
}
