// Package config loads liftsync settings from YAML.
//
// Files are decoded strictly over Default(), so a file only needs the keys
// it changes and a misspelled key is an error. The result is checked
// against an embedded CUE schema.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/liftsync/internal/backend"
	"github.com/roach88/liftsync/internal/conn"
	"github.com/roach88/liftsync/internal/throttle"
)

//go:embed schema.cue
var schemaCUE string

// Config is the full configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Throttle  ThrottleConfig  `yaml:"throttle"`
	Backend   BackendConfig   `yaml:"backend"`
}

// ServerConfig locates the backend.
type ServerConfig struct {
	WSURL  string `yaml:"ws_url"`
	APIURL string `yaml:"api_url"`
}

// StorageConfig locates the local SQLite database.
type StorageConfig struct {
	Path string `yaml:"path"`
	// Journal records every pushed snapshot.
	Journal bool `yaml:"journal"`
}

// ReconnectConfig is the WebSocket retry policy.
type ReconnectConfig struct {
	Delay            Duration `yaml:"delay"`
	MaxAttempts      int      `yaml:"max_attempts"`
	HandshakeTimeout Duration `yaml:"handshake_timeout"`
}

// ThrottleConfig controls hall-call clearing on door open.
type ThrottleConfig struct {
	Window Duration `yaml:"window"`
}

// BackendConfig controls REST calls.
type BackendConfig struct {
	Timeout          Duration `yaml:"timeout"`
	RollbackOnReject bool     `yaml:"rollback_on_reject"`
}

// Duration is a time.Duration written as a Go duration string ("3s",
// "4000ms") in YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("line %d: duration must be a string like \"3s\"", node.Line)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the built-in configuration: a backend on localhost:8000,
// five reconnects three seconds apart, a four second clearing window.
func Default() Config {
	return Config{
		Server: ServerConfig{
			WSURL:  conn.DefaultURL,
			APIURL: backend.DefaultBaseURL,
		},
		Storage: StorageConfig{
			Path:    "liftsync.db",
			Journal: true,
		},
		Reconnect: ReconnectConfig{
			Delay:            Duration(conn.DefaultReconnectDelay),
			MaxAttempts:      conn.DefaultMaxAttempts,
			HandshakeTimeout: Duration(10 * time.Second),
		},
		Throttle: ThrottleConfig{
			Window: Duration(throttle.DefaultWindow),
		},
		Backend: BackendConfig{
			Timeout: Duration(backend.DefaultTimeout),
		},
	}
}

// Load reads the YAML file at path over Default() and validates the
// result. An empty path returns the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode reads YAML from r over Default() and validates the result.
func Decode(r io.Reader) (Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if len(bytes.TrimSpace(data)) > 0 {
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true) // Reject unknown fields
		if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Problem is one schema violation.
type Problem struct {
	Path    string
	Message string
	Pos     token.Pos
}

// ValidationError lists every schema violation found.
type ValidationError struct {
	Problems []Problem
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		if p.Path != "" {
			parts[i] = p.Path + ": " + p.Message
		} else {
			parts[i] = p.Message
		}
	}
	return "invalid config: " + strings.Join(parts, "; ")
}

// Validate checks c against the embedded CUE schema.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	v := def.Unify(ctx.Encode(c.cueView()))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// cueView is the shape the schema checks, with durations in milliseconds.
func (c Config) cueView() map[string]any {
	return map[string]any{
		"server": map[string]any{
			"ws_url":  c.Server.WSURL,
			"api_url": c.Server.APIURL,
		},
		"storage": map[string]any{
			"path":    c.Storage.Path,
			"journal": c.Storage.Journal,
		},
		"reconnect": map[string]any{
			"delay_ms":             c.Reconnect.Delay.Std().Milliseconds(),
			"max_attempts":         c.Reconnect.MaxAttempts,
			"handshake_timeout_ms": c.Reconnect.HandshakeTimeout.Std().Milliseconds(),
		},
		"throttle": map[string]any{
			"window_ms": c.Throttle.Window.Std().Milliseconds(),
		},
		"backend": map[string]any{
			"timeout_ms":         c.Backend.Timeout.Std().Milliseconds(),
			"rollback_on_reject": c.Backend.RollbackOnReject,
		},
	}
}

// formatCUEError flattens CUE errors into a ValidationError.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &ValidationError{Problems: []Problem{{Message: err.Error()}}}
	}

	out := &ValidationError{}
	for _, e := range errs {
		p := Problem{
			Path: strings.Join(e.Path(), "."),
		}
		format, args := e.Msg()
		p.Message = fmt.Sprintf(format, args...)
		if positions := cueerrors.Positions(e); len(positions) > 0 {
			p.Pos = positions[0]
		}
		out.Problems = append(out.Problems, p)
	}
	return out
}
