package server

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"regexp"
	"strings"

	"github.com/shaharia-lab/cryptodash/internal/bundle"
	"github.com/shaharia-lab/cryptodash/internal/config"
	"github.com/shaharia-lab/cryptodash/internal/rewrite"
)

// Step names the stage of the gateway pipeline that decided a request.
type Step string

const (
	StepNormalize   Step = "normalize"
	StepRedirect    Step = "redirect"
	StepBeforeFiles Step = "beforeFiles"
	StepFile        Step = "file"
	StepAfterFiles  Step = "afterFiles"
	StepDev         Step = "dev"
	StepSPA         Step = "spa"
	StepFallback    Step = "fallback"
	StepNotFound    Step = "not found"
)

// Route is the decision of the pipeline for one request. Exactly one of
// Location, Forward and File is set unless the request is not found.
type Route struct {
	Step Step
	// Rule is the rewrite or redirect rule that matched, if any.
	Rule *rewrite.Rule

	Status   int
	Location string

	// Forward is an external target for the proxy.
	Forward *rewrite.Result
	// File is the bundle file to serve.
	File string
}

// Found reports whether the route serves something.
func (rt Route) Found() bool {
	return rt.Location != "" || rt.Forward != nil || rt.File != ""
}

// Target describes where the request ends up.
func (rt Route) Target() string {
	switch {
	case rt.Location != "":
		return rt.Location
	case rt.Forward != nil:
		return rt.Forward.Target.String()
	case rt.File != "":
		return rt.File
	default:
		return "404"
	}
}

// Pipeline resolves requests against redirects, the three rewrite phases
// and the frontend bundle. A nil bundle selects dev mode.
type Pipeline struct {
	rules *config.RuleSets
	files fs.FS
	dev   *rewrite.Rule
}

// NewPipeline compiles the dev server rule when files is nil.
func NewPipeline(rules *config.RuleSets, files fs.FS, devServerURL string) (*Pipeline, error) {
	if rules == nil {
		rules = &config.RuleSets{}
	}
	p := &Pipeline{rules: rules, files: files}
	if files == nil {
		if devServerURL == "" {
			return nil, errors.New("dev mode requires a dev server URL")
		}
		dev, err := rewrite.NewRule("/:path*", strings.TrimSuffix(devServerURL, "/")+"/:path*", nil, nil)
		if err != nil {
			return nil, fmt.Errorf("dev server URL: %w", err)
		}
		p.dev = dev
	}
	return p, nil
}

// DevMode reports whether unmatched requests go to the dev server.
func (p *Pipeline) DevMode() bool {
	return p.dev != nil
}

var repeatedSlashes = regexp.MustCompile(`/{2,}`)

// Resolve runs the pipeline: slash normalization, redirects, beforeFiles
// rewrites, bundle files, afterFiles rewrites, SPA index or dev server,
// fallback rewrites.
func (p *Pipeline) Resolve(r *http.Request) (Route, error) {
	if escaped := r.URL.EscapedPath(); strings.Contains(escaped, "//") {
		loc := repeatedSlashes.ReplaceAllString(escaped, "/")
		if r.URL.RawQuery != "" {
			loc += "?" + r.URL.RawQuery
		}
		return Route{Step: StepNormalize, Status: http.StatusPermanentRedirect, Location: loc}, nil
	}

	if rt, ok, err := p.redirect(r); ok || err != nil {
		return rt, err
	}

	if rt, ok, err := p.rewrite(StepBeforeFiles, p.rules.BeforeFiles, r); ok || err != nil {
		return rt, err
	}

	if p.files != nil && isRead(r) {
		if name, ok := bundle.Lookup(p.files, r.URL.Path); ok {
			return Route{Step: StepFile, File: name}, nil
		}
	}

	if rt, ok, err := p.rewrite(StepAfterFiles, p.rules.AfterFiles, r); ok || err != nil {
		return rt, err
	}

	if p.dev != nil {
		res, err := p.dev.Apply(r)
		if err != nil {
			return Route{}, err
		}
		return Route{Step: StepDev, Rule: p.dev, Forward: res}, nil
	}
	if isNavigation(r) && bundle.Has(p.files, bundle.IndexFile) {
		return Route{Step: StepSPA, File: bundle.IndexFile}, nil
	}

	if rt, ok, err := p.rewrite(StepFallback, p.rules.Fallback, r); ok || err != nil {
		return rt, err
	}

	return Route{Step: StepNotFound}, nil
}

func (p *Pipeline) redirect(r *http.Request) (Route, bool, error) {
	loc, status, err := p.rules.Redirects.Resolve(r)
	if errors.Is(err, rewrite.ErrNoMatch) {
		return Route{}, false, nil
	}
	if err != nil {
		return Route{}, false, err
	}
	rt := Route{Step: StepRedirect, Status: status, Location: loc}
	for _, rd := range p.rules.Redirects.Redirects() {
		if _, err := rd.Apply(r); err == nil {
			rt.Rule = rd.Rule
			break
		}
	}
	return rt, true, nil
}

// rewrite applies the first matching rule of set. Internal destinations
// are resolved against the bundle, or the dev server, without running the
// rules again.
func (p *Pipeline) rewrite(step Step, set *rewrite.Set, r *http.Request) (Route, bool, error) {
	res, err := set.Resolve(r)
	if errors.Is(err, rewrite.ErrNoMatch) {
		return Route{}, false, nil
	}
	if err != nil {
		return Route{}, false, err
	}

	rt := Route{Step: step, Rule: res.Rule}
	if res.External {
		rt.Forward = res
		return rt, true, nil
	}

	if p.dev != nil {
		r2 := r.Clone(r.Context())
		r2.URL.Path = res.Target.Path
		r2.URL.RawPath = res.Target.RawPath
		r2.URL.RawQuery = res.Target.RawQuery
		dev, err := p.dev.Apply(r2)
		if err != nil {
			return Route{}, false, err
		}
		rt.Forward = dev
		return rt, true, nil
	}
	if isRead(r) {
		if name, ok := bundle.Lookup(p.files, res.Target.Path); ok {
			rt.File = name
		}
	}
	return rt, true, nil
}

func isRead(r *http.Request) bool {
	return r.Method == http.MethodGet || r.Method == http.MethodHead
}

// isNavigation reports whether r looks like a browser page load rather than
// an asset request.
func isNavigation(r *http.Request) bool {
	return isRead(r) && path.Ext(r.URL.Path) == ""
}
