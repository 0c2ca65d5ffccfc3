// Package config loads feedgrid's YAML configuration.
//
// A file is decoded strictly (unknown keys are errors), then unified with
// an embedded CUE schema that supplies defaults and bounds. Command-line
// flags are applied on top by the CLI.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Config is the full configuration.
type Config struct {
	Database string `yaml:"database" json:"database"`
	Listen   string `yaml:"listen" json:"listen"`
	Server   string `yaml:"server" json:"server"`
	LogLevel string `yaml:"log_level" json:"log_level"`
	Viewer   Viewer `yaml:"viewer" json:"viewer"`
	Feed     Feed   `yaml:"feed" json:"feed"`
	Seed     Seed   `yaml:"seed" json:"seed"`
}

// Viewer is the identity the client acts as.
type Viewer struct {
	ID          string `yaml:"id" json:"id"`
	DisplayName string `yaml:"display_name" json:"display_name"`
}

// Feed tunes the client core.
type Feed struct {
	PageSize         int `yaml:"page_size" json:"page_size"`
	SettleWindowMS   int `yaml:"settle_window_ms" json:"settle_window_ms"`
	RequestTimeoutMS int `yaml:"request_timeout_ms" json:"request_timeout_ms"`
	ItemExtent       int `yaml:"item_extent" json:"item_extent"`
}

// Seed describes the demo grid written by the seed command.
type Seed struct {
	Columns  int `yaml:"columns" json:"columns"`
	Rows     int `yaml:"rows" json:"rows"`
	GapEvery int `yaml:"gap_every" json:"gap_every"`
}

// SettleWindow returns the post-jump settle window.
func (f Feed) SettleWindow() time.Duration {
	return time.Duration(f.SettleWindowMS) * time.Millisecond
}

// RequestTimeout returns the collaborator call bound.
func (f Feed) RequestTimeout() time.Duration {
	return time.Duration(f.RequestTimeoutMS) * time.Millisecond
}

// Default returns the configuration of an empty file.
func Default() Config {
	cfg, err := Parse(nil)
	if err != nil {
		// The embedded schema is static; failing here is a build defect.
		panic(fmt.Sprintf("config: default configuration invalid: %v", err))
	}
	return cfg
}

// Load reads the file at path. An empty path yields Default().
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML, rejects unknown keys, then applies the schema.
func Parse(data []byte) (Config, error) {
	// Strict pass: typos and type mismatches fail with YAML line numbers.
	var strict Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&strict); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Schema pass: only keys present in the file are encoded so the
	// schema's defaults fill the rest.
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	v := def.Unify(ctx.Encode(raw))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Config{}, formatCUEError(err)
	}

	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return Config{}, formatCUEError(err)
	}
	return cfg, nil
}

// ValidationError is a schema violation.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + e.Message
}

func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	return &ValidationError{Message: errs[0].Error()}
}
