// Package projectconfig reads ribbon.toml, this interpreter's trimmed
// equivalent of the teacher's yar.toml: a single-entry-file project has
// no module graph to describe, so only [package].name and .entry
// survive from build.Config.
package projectconfig

import (
	"fmt"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the parsed contents of ribbon.toml.
type Config struct {
	Package struct {
		Name  string `toml:"name"`
		Entry string `toml:"entry"`
	} `toml:"package"`
}

// Load reads and parses ribbon.toml under projectRoot.
func Load(projectRoot string) (*Config, error) {
	path := filepath.Join(projectRoot, "ribbon.toml")

	var cfg Config

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if cfg.Package.Name == "" {
		return nil, fmt.Errorf("%s: package.name is required", path)
	}

	if cfg.Package.Entry == "" {
		return nil, fmt.Errorf("%s: package.entry is required", path)
	}

	return &cfg, nil
}

// EntryPath resolves the configured entry file relative to projectRoot.
func (c *Config) EntryPath(projectRoot string) string {
	return filepath.Join(projectRoot, c.Package.Entry)
}

// OutputPath returns where a build's cached bytecode blob belongs.
func (c *Config) OutputPath(projectRoot string) string {
	return filepath.Join(projectRoot, "build", "bytecode", c.Package.Name+".rbc")
}
