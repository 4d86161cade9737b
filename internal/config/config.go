// Package config loads the adapter settings from a YAML file and applies
// command-line overrides on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/StinkyLord/clangcl-adapter/internal/clangcl"
)

const (
	// ConfigDir is the directory name under ~/.config
	ConfigDir = "clangcl-adapter"
	// ConfigFile is the config file name
	ConfigFile = "config.yaml"
)

// Config holds the adapter settings.
type Config struct {
	PlatformBits        int      `yaml:"platform_bits" mapstructure:"platform_bits"`
	Compiler            string   `yaml:"compiler" mapstructure:"compiler"`
	VCVarsAll           string   `yaml:"vcvarsall" mapstructure:"vcvarsall"` // empty: use the current environment
	BlockedIncludes     []string `yaml:"blocked_includes" mapstructure:"blocked_includes"`
	ExtraCompileOptions []string `yaml:"extra_compile_options" mapstructure:"extra_compile_options"`
	AlwaysLinkBuiltins  bool     `yaml:"always_link_builtins" mapstructure:"always_link_builtins"`
	ExemptClangInclude  bool     `yaml:"exempt_clang_include" mapstructure:"exempt_clang_include"`
	Verbose             bool     `yaml:"verbose" mapstructure:"verbose"`
}

// DefaultConfig returns the built-in settings. The bit width follows the
// architecture this binary was built for.
func DefaultConfig() *Config {
	bits := 64
	if runtime.GOARCH == "386" {
		bits = 32
	}
	return &Config{
		PlatformBits:    bits,
		Compiler:        clangcl.DefaultCompiler,
		BlockedIncludes: append([]string(nil), clangcl.DefaultBlockedIncludes...),
	}
}

// DefaultPath returns ~/.config/clangcl-adapter/config.yaml, or "" when the
// home directory is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", ConfigDir, ConfigFile)
}

// Load reads the config file at path (DefaultPath when empty) over the
// defaults. A missing file yields the defaults; keys present in the file
// replace the defaults even when their value is zero.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultPath()
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyOverrides sets fields from key=value strings such as
// "platform_bits=32" or "blocked_includes=Windows Kits,MSVC". Keys use the
// YAML names; unknown keys are rejected.
func (c *Config) ApplyOverrides(pairs []string) error {
	if len(pairs) == 0 {
		return nil
	}
	raw := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return fmt.Errorf("invalid override %q (want key=value)", p)
		}
		raw[k] = v
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           c,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		ZeroFields:       true, // lists replace, not patch, the current value
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("applying overrides: %w", err)
	}
	return c.Validate()
}

// Validate checks the settings for values the adapter cannot work with.
func (c *Config) Validate() error {
	if c.PlatformBits != 32 && c.PlatformBits != 64 {
		return fmt.Errorf("platform_bits must be 32 or 64, got %d", c.PlatformBits)
	}
	if strings.TrimSpace(c.Compiler) == "" {
		return fmt.Errorf("compiler must not be empty")
	}
	return nil
}

// Save writes cfg as YAML to path, creating parent directories.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
