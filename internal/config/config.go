// Package config loads blocklink settings from an HCL file, a .env file and
// the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/agentic-research/blocklink/internal/manifest"
	"github.com/agentic-research/blocklink/internal/toolchain"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/joho/godotenv"
)

// Config holds everything a build pass and the CLI need.
type Config struct {
	Namespace string
	Strict    bool
	LogLevel  string
	LogFormat string
	Profile   toolchain.Profile
}

// file mirrors the HCL layout:
//
//	namespace = "shop"
//	strict    = true
//	log {
//	  level  = "debug"
//	  format = "json"
//	}
//	profile {
//	  target       = "es2020"
//	  jsx_factory  = "h"
//	  jsx_fragment = "Fragment"
//	  syntax_check = true
//	}
type file struct {
	Namespace *string       `hcl:"namespace,optional"`
	Strict    *bool         `hcl:"strict,optional"`
	Log       *logBlock     `hcl:"log,block"`
	Profile   *profileBlock `hcl:"profile,block"`
}

type logBlock struct {
	Level  *string `hcl:"level,optional"`
	Format *string `hcl:"format,optional"`
}

type profileBlock struct {
	Version     *string `hcl:"version,optional"`
	Target      *string `hcl:"target,optional"`
	JSXFactory  *string `hcl:"jsx_factory,optional"`
	JSXFragment *string `hcl:"jsx_fragment,optional"`
	SyntaxCheck *bool   `hcl:"syntax_check,optional"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Namespace: manifest.DefaultNamespace,
		LogLevel:  "info",
		LogFormat: "text",
		Profile:   toolchain.DefaultProfile(),
	}
}

// Load builds the configuration. path may be empty, in which case only
// defaults, .env and the environment apply.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		src, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := cfg.applyHCL(src, path); err != nil {
			return Config{}, err
		}
	}

	// A missing .env file is not an error.
	_ = godotenv.Load()
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes HCL source on top of the defaults. It does not read the
// environment.
func Parse(src []byte, filename string) (Config, error) {
	cfg := Default()
	if err := cfg.applyHCL(src, filename); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyHCL(src []byte, filename string) error {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var raw file
	if diags := gohcl.DecodeBody(f.Body, nil, &raw); diags.HasErrors() {
		return fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	setString(&c.Namespace, raw.Namespace)
	if raw.Strict != nil {
		c.Strict = *raw.Strict
	}
	if raw.Log != nil {
		setString(&c.LogLevel, raw.Log.Level)
		setString(&c.LogFormat, raw.Log.Format)
	}
	if p := raw.Profile; p != nil {
		setString(&c.Profile.Version, p.Version)
		setString(&c.Profile.Target, p.Target)
		setString(&c.Profile.JSXFactory, p.JSXFactory)
		setString(&c.Profile.JSXFragment, p.JSXFragment)
		if p.SyntaxCheck != nil {
			c.Profile.SyntaxCheck = *p.SyntaxCheck
		}
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := strings.TrimSpace(getenv("BLOCKLINK_NAMESPACE")); v != "" {
		c.Namespace = v
	}
	if v := strings.TrimSpace(getenv("BLOCKLINK_STRICT")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("BLOCKLINK_STRICT: %w", err)
		}
		c.Strict = b
	}
	if v := strings.TrimSpace(getenv("BLOCKLINK_LOG_LEVEL")); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if v := strings.TrimSpace(getenv("BLOCKLINK_LOG_FORMAT")); v != "" {
		c.LogFormat = strings.ToLower(v)
	}
	return nil
}

// Validate checks the values Load cannot fix up on its own.
func (c Config) Validate() error {
	if c.Namespace == "" || strings.Contains(c.Namespace, "/") {
		return fmt.Errorf("namespace %q must be non-empty and contain no '/'", c.Namespace)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if err := c.Profile.Validate(); err != nil {
		return errors.Join(errors.New("invalid profile"), err)
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
