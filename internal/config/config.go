// Package config loads perks configuration from YAML. Files are decoded
// strictly, then unified with an embedded CUE schema that supplies
// defaults and rejects out-of-range values.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Config is the full configuration.
type Config struct {
	Store   Store   `yaml:"store" json:"store"`
	Journal Journal `yaml:"journal" json:"journal"`
	Log     Log     `yaml:"log" json:"log"`
	Metrics Metrics `yaml:"metrics" json:"metrics"`
}

// Store selects the record store.
type Store struct {
	Backend string `yaml:"backend" json:"backend"`
	Path    string `yaml:"path" json:"path"`
}

// Journal locates the invocation journal. An empty Path disables it.
type Journal struct {
	Path string `yaml:"path" json:"path"`
}

// Log configures the process logger. File output is rotated.
type Log struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"`
	File       string `yaml:"file" json:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" json:"max_age_days"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// Metrics configures the Prometheus textfile export. Empty disables it.
type Metrics struct {
	Textfile string `yaml:"textfile" json:"textfile"`
}

// Error is a configuration problem, with the source line when known.
type Error struct {
	File    string
	Line    int
	Field   string
	Message string
}

func (e *Error) Error() string {
	switch {
	case e.Line > 0:
		return fmt.Sprintf("%s:%d: %s: %s", e.File, e.Line, e.Field, e.Message)
	case e.Field != "":
		return fmt.Sprintf("%s: %s: %s", e.File, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// Default returns the configuration used when no file is given.
func Default() Config {
	cfg, err := Parse("defaults", nil)
	if err != nil {
		panic(fmt.Sprintf("config: schema defaults do not validate: %v", err))
	}
	return cfg
}

// Load reads and validates the configuration file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, data)
}

// Parse validates YAML configuration data. filename is used in errors.
func Parse(filename string, data []byte) (Config, error) {
	if len(bytes.TrimSpace(data)) > 0 {
		// The struct decode only checks field names; values are checked
		// against the schema below.
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		var strict Config
		if err := dec.Decode(&strict); err != nil {
			return Config{}, &Error{File: filename, Message: err.Error()}
		}
	}

	ctx := cuecontext.New()
	def, err := schema(ctx)
	if err != nil {
		return Config{}, err
	}

	v := def
	if len(bytes.TrimSpace(data)) > 0 {
		file, err := cueyaml.Extract(filename, data)
		if err != nil {
			return Config{}, &Error{File: filename, Message: err.Error()}
		}
		v = def.Unify(ctx.BuildFile(file))
	}
	return decode(filename, v)
}

// Validate checks a configuration assembled in code, such as one with
// command-line overrides applied.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	def, err := schema(ctx)
	if err != nil {
		return err
	}
	_, err = decode("config", def.Unify(ctx.Encode(c)))
	return err
}

func schema(ctx *cue.Context) (cue.Value, error) {
	v := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("compile config schema: %w", err)
	}
	return v.LookupPath(cue.ParsePath("#Config")), nil
}

func decode(filename string, v cue.Value) (Config, error) {
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Config{}, schemaError(filename, err)
	}
	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return Config{}, &Error{File: filename, Message: err.Error()}
	}
	return cfg, nil
}

// schemaError reports the first CUE error with its field path and line.
func schemaError(filename string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &Error{File: filename, Message: err.Error()}
	}
	first := errs[0]
	format, args := first.Msg()
	e := &Error{File: filename, Message: fmt.Sprintf(format, args...)}
	path := first.Path()
	if len(path) > 0 && path[0] == "#Config" {
		path = path[1:]
	}
	e.Field = strings.Join(path, ".")
	for _, pos := range cueerrors.Positions(first) {
		if pos.Filename() == filename {
			e.Line = pos.Line()
			break
		}
	}
	return e
}
