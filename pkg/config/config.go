// Package config loads importshim.yml. Command-line flags override the
// values loaded here.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file read when no path is given.
const DefaultFile = "importshim.yml"

const (
	// DefaultMaxFileSize skips chunk files larger than this.
	DefaultMaxFileSize = 50 * 1024 * 1024
	// DefaultStorePath keeps results in memory only.
	DefaultStorePath = ":memory:"
	// DefaultMapSuffix names map files next to their chunk.
	DefaultMapSuffix = ".map"
)

// DefaultExtensions are the chunk file extensions processed by default.
var DefaultExtensions = []string{".js", ".mjs", ".cjs"}

// Config is the resolved configuration.
type Config struct {
	Mode          Mode     `yaml:"mode"`
	SourceRoot    string   `yaml:"source_root"`
	OutDir        string   `yaml:"out_dir"`
	StorePath     string   `yaml:"store_path"`
	Incremental   bool     `yaml:"incremental"`
	Workers       int      `yaml:"workers"`
	IncludeHidden bool     `yaml:"include_hidden"`
	MaxFileSize   int64    `yaml:"max_file_size"`
	Extensions    []string `yaml:"extensions"`
	// SourcesContent embeds chunk text in maps. Unset follows the mode:
	// on in development, off in production.
	SourcesContent *bool  `yaml:"sources_content"`
	MapSuffix      string `yaml:"map_suffix"`
	InlineMap      bool   `yaml:"inline_map"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = Production
	}
	if c.StorePath == "" {
		c.StorePath = DefaultStorePath
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = DefaultMaxFileSize
	}
	if len(c.Extensions) == 0 {
		c.Extensions = append([]string(nil), DefaultExtensions...)
	}
	if c.MapSuffix == "" {
		c.MapSuffix = DefaultMapSuffix
	}
}

// Load reads the config file at path. A missing DefaultFile yields the
// defaults; a missing file named explicitly is an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates YAML config. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	var c Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	mode, err := ParseMode(string(c.Mode))
	if err != nil {
		return nil, err
	}
	c.Mode = mode

	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.applyDefaults()
	return &c, nil
}

// Validate checks a resolved configuration.
func (c *Config) Validate() error {
	if _, err := ParseMode(string(c.Mode)); err != nil {
		return err
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	for _, ext := range c.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("extension %q must start with a dot", ext)
		}
	}
	if strings.ContainsAny(c.MapSuffix, `/\`) {
		return fmt.Errorf("map_suffix %q must not contain a path separator", c.MapSuffix)
	}
	return nil
}

// IncludeSourcesContent resolves the sourcesContent toggle against the
// mode.
func (c *Config) IncludeSourcesContent() bool {
	if c.SourcesContent != nil {
		return *c.SourcesContent
	}
	return c.Mode.IsDevelopment()
}
