package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shaharia-lab/cryptodash/internal/rewrite"
)

// OutputMode selects how the frontend bundle is packaged and served.
type OutputMode string

const (
	// OutputStandalone serves the bundle embedded in the binary.
	OutputStandalone OutputMode = "standalone"
	// OutputServer serves the bundle from DistDir on disk.
	OutputServer OutputMode = "server"
	// OutputExport writes the bundle out as static files; no server features.
	OutputExport OutputMode = "export"
)

// Valid reports whether m is a known output mode.
func (m OutputMode) Valid() bool {
	switch m {
	case OutputStandalone, OutputServer, OutputExport:
		return true
	}
	return false
}

// RewriteRule forwards requests matching Source to Destination.
type RewriteRule struct {
	Source      string              `yaml:"source"`
	Destination string              `yaml:"destination"`
	Has         []rewrite.Condition `yaml:"has,omitempty"`
	Missing     []rewrite.Condition `yaml:"missing,omitempty"`
}

// RedirectRule answers requests matching Source with a redirect.
type RedirectRule struct {
	Source      string              `yaml:"source"`
	Destination string              `yaml:"destination"`
	Permanent   bool                `yaml:"permanent"`
	StatusCode  int                 `yaml:"statusCode,omitempty"`
	Has         []rewrite.Condition `yaml:"has,omitempty"`
	Missing     []rewrite.Condition `yaml:"missing,omitempty"`
}

// Rewrites groups rules by the point of the request pipeline at which they
// are consulted: before bundle files, after bundle files, and after the
// single-page-app fallback.
type Rewrites struct {
	BeforeFiles []RewriteRule `yaml:"beforeFiles,omitempty"`
	AfterFiles  []RewriteRule `yaml:"afterFiles,omitempty"`
	Fallback    []RewriteRule `yaml:"fallback,omitempty"`
}

// UnmarshalYAML accepts either a plain list, taken as afterFiles, or a
// mapping with the three phase keys.
func (r *Rewrites) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		var rules []RewriteRule
		if err := node.Decode(&rules); err != nil {
			return err
		}
		*r = Rewrites{AfterFiles: rules}
		return nil
	}
	type phased Rewrites
	var p phased
	if err := node.Decode(&p); err != nil {
		return err
	}
	*r = Rewrites(p)
	return nil
}

// Len returns the number of rewrite rules across all phases.
func (r Rewrites) Len() int {
	return len(r.BeforeFiles) + len(r.AfterFiles) + len(r.Fallback)
}

// Proxy tunes how external rewrite destinations are forwarded.
type Proxy struct {
	// PreserveHost keeps the client's Host header instead of the upstream host.
	PreserveHost bool `yaml:"preserveHost"`
	// XForwarded sets X-Forwarded-For/Host/Proto. Defaults to true.
	XForwarded *bool `yaml:"xForwarded,omitempty"`
	// Timeout bounds the wait for upstream response headers. Zero means none.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// XForwardedEnabled reports whether X-Forwarded-* headers are set.
func (p Proxy) XForwardedEnabled() bool {
	return p.XForwarded == nil || *p.XForwarded
}

// FrontendConfig is the declarative frontend configuration: how the bundle
// is packaged and which request paths are rewritten to other services.
// It is loaded once at startup and treated as read-only afterwards.
type FrontendConfig struct {
	Output       OutputMode     `yaml:"output"`
	DistDir      string         `yaml:"distDir,omitempty"`
	DevServerURL string         `yaml:"devServerURL,omitempty"`
	Rewrites     Rewrites       `yaml:"rewrites"`
	Redirects    []RedirectRule `yaml:"redirects,omitempty"`
	Proxy        Proxy          `yaml:"proxy,omitempty"`
}

// DefaultBackendURL is the upstream of the built-in /api rewrite.
const DefaultBackendURL = "http://backend:5000"

// DefaultFrontendConfig returns the built-in configuration: a standalone
// bundle with every /api request forwarded to the backend service.
// An empty backendURL selects DefaultBackendURL.
func DefaultFrontendConfig(backendURL string) *FrontendConfig {
	if backendURL == "" {
		backendURL = DefaultBackendURL
	}
	return &FrontendConfig{
		Output:       OutputStandalone,
		DistDir:      "frontend/dist",
		DevServerURL: "http://localhost:5173",
		Rewrites: Rewrites{
			AfterFiles: []RewriteRule{
				{
					Source:      "/api/:path*",
					Destination: strings.TrimSuffix(backendURL, "/") + "/api/:path*",
				},
			},
		},
	}
}

// LoadFrontendConfig reads the YAML file at path. An empty path or a
// missing file yields DefaultFrontendConfig(backendURL). Fields left out of
// the file keep their defaults, except rewrites: a file that sets output
// but no rewrites has none.
func LoadFrontendConfig(path, backendURL string) (*FrontendConfig, error) {
	cfg := DefaultFrontendConfig(backendURL)
	if path == "" {
		return cfg, nil
	}

	//nolint:gosec // path comes from operator configuration
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading frontend config %q: %w", path, err)
	}

	cfg.Rewrites = Rewrites{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing frontend config %q: %w", path, err)
	}
	if cfg.Output == "" {
		cfg.Output = OutputStandalone
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid frontend config %q: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the output mode and compiles every rule, reporting all
// problems at once.
func (c *FrontendConfig) Validate() error {
	var errs []error
	if !c.Output.Valid() {
		errs = append(errs, fmt.Errorf("output: unknown mode %q (want standalone, server or export)", c.Output))
	}
	if c.Output == OutputServer && c.DistDir == "" {
		errs = append(errs, errors.New("distDir: required when output is server"))
	}
	if c.Output == OutputExport && (c.Rewrites.Len() > 0 || len(c.Redirects) > 0) {
		errs = append(errs, errors.New("rewrites and redirects are not supported with output: export"))
	}

	phases := []struct {
		name  string
		rules []RewriteRule
	}{
		{"beforeFiles", c.Rewrites.BeforeFiles},
		{"afterFiles", c.Rewrites.AfterFiles},
		{"fallback", c.Rewrites.Fallback},
	}
	for _, ph := range phases {
		for i, r := range ph.rules {
			if _, err := rewrite.NewRule(r.Source, r.Destination, r.Has, r.Missing); err != nil {
				errs = append(errs, fmt.Errorf("rewrites.%s[%d]: %w", ph.name, i, err))
			}
		}
	}
	for i, r := range c.Redirects {
		if _, err := rewrite.NewRedirect(r.Source, r.Destination, r.Permanent, r.StatusCode, r.Has, r.Missing); err != nil {
			errs = append(errs, fmt.Errorf("redirects[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// RuleSets holds the compiled rules of a FrontendConfig.
type RuleSets struct {
	Redirects   *rewrite.RedirectSet
	BeforeFiles *rewrite.Set
	AfterFiles  *rewrite.Set
	Fallback    *rewrite.Set
}

// Compile builds the rule sets in declaration order.
func (c *FrontendConfig) Compile() (*RuleSets, error) {
	before, err := compileRewrites(c.Rewrites.BeforeFiles)
	if err != nil {
		return nil, fmt.Errorf("rewrites.beforeFiles: %w", err)
	}
	after, err := compileRewrites(c.Rewrites.AfterFiles)
	if err != nil {
		return nil, fmt.Errorf("rewrites.afterFiles: %w", err)
	}
	fallback, err := compileRewrites(c.Rewrites.Fallback)
	if err != nil {
		return nil, fmt.Errorf("rewrites.fallback: %w", err)
	}

	redirects := make([]*rewrite.Redirect, 0, len(c.Redirects))
	for i, r := range c.Redirects {
		rd, err := rewrite.NewRedirect(r.Source, r.Destination, r.Permanent, r.StatusCode, r.Has, r.Missing)
		if err != nil {
			return nil, fmt.Errorf("redirects[%d]: %w", i, err)
		}
		redirects = append(redirects, rd)
	}

	return &RuleSets{
		Redirects:   rewrite.NewRedirectSet(redirects...),
		BeforeFiles: before,
		AfterFiles:  after,
		Fallback:    fallback,
	}, nil
}

func compileRewrites(rules []RewriteRule) (*rewrite.Set, error) {
	compiled := make([]*rewrite.Rule, 0, len(rules))
	for i, r := range rules {
		rule, err := rewrite.NewRule(r.Source, r.Destination, r.Has, r.Missing)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		compiled = append(compiled, rule)
	}
	return rewrite.NewSet(compiled...), nil
}

// Dump renders the configuration as YAML.
func (c *FrontendConfig) Dump() (string, error) {
	b, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encoding frontend config: %w", err)
	}
	return string(b), nil
}
