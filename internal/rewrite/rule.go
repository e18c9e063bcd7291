package rewrite

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// ErrNoMatch is returned by Resolve when no rule applies to a request.
var ErrNoMatch = errors.New("no matching rule")

// Condition types understood by has/missing matchers.
const (
	ConditionHeader = "header"
	ConditionCookie = "cookie"
	ConditionQuery  = "query"
	ConditionHost   = "host"
)

// Condition restricts a rule to requests carrying (has) or lacking (missing)
// a header, cookie, query parameter or host. Value is an optional regular
// expression matched against the whole value; host conditions match Value
// against the request host and ignore Key.
type Condition struct {
	Type  string `yaml:"type" json:"type"`
	Key   string `yaml:"key,omitempty" json:"key,omitempty"`
	Value string `yaml:"value,omitempty" json:"value,omitempty"`
}

type matcher struct {
	cond  Condition
	value *regexp.Regexp
}

func compileCondition(c Condition) (*matcher, error) {
	switch c.Type {
	case ConditionHeader, ConditionCookie, ConditionQuery:
		if c.Key == "" {
			return nil, fmt.Errorf("%s condition requires a key", c.Type)
		}
	case ConditionHost:
		if c.Value == "" {
			return nil, fmt.Errorf("host condition requires a value")
		}
	default:
		return nil, fmt.Errorf("unknown condition type %q", c.Type)
	}

	m := &matcher{cond: c}
	if c.Value != "" {
		re, err := regexp.Compile("^(?:" + c.Value + ")$")
		if err != nil {
			return nil, fmt.Errorf("%s condition value: %w", c.Type, err)
		}
		m.value = re
	}
	return m, nil
}

func (m *matcher) matches(r *http.Request) bool {
	var values []string
	switch m.cond.Type {
	case ConditionHeader:
		values = r.Header.Values(m.cond.Key)
	case ConditionCookie:
		if ck, err := r.Cookie(m.cond.Key); err == nil {
			values = []string{ck.Value}
		}
	case ConditionQuery:
		if v, ok := r.URL.Query()[m.cond.Key]; ok {
			values = v
			if len(values) == 0 {
				values = []string{""}
			}
		}
	case ConditionHost:
		host := r.Host
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		if host != "" {
			values = []string{host}
		}
	}

	if len(values) == 0 {
		return false
	}
	if m.value == nil {
		return true
	}
	for _, v := range values {
		if m.value.MatchString(v) {
			return true
		}
	}
	return false
}

// Rule maps requests matching Source to Destination. A destination that
// starts with "/" is internal; otherwise it must be an absolute http(s) URL.
type Rule struct {
	Source      string
	Destination string

	pattern *Pattern
	has     []*matcher
	missing []*matcher
}

// NewRule compiles a rule. Every parameter referenced by the destination
// must be declared by the source.
func NewRule(source, destination string, has, missing []Condition) (*Rule, error) {
	p, err := Compile(source)
	if err != nil {
		return nil, err
	}

	if err := checkDestination(destination); err != nil {
		return nil, err
	}
	for _, name := range TemplateParams(destination) {
		if !p.Has(name) {
			return nil, fmt.Errorf("destination %q references parameter %q not declared in source %q", destination, name, source)
		}
	}

	r := &Rule{Source: source, Destination: destination, pattern: p}
	for _, c := range has {
		m, err := compileCondition(c)
		if err != nil {
			return nil, fmt.Errorf("has: %w", err)
		}
		r.has = append(r.has, m)
	}
	for _, c := range missing {
		m, err := compileCondition(c)
		if err != nil {
			return nil, fmt.Errorf("missing: %w", err)
		}
		r.missing = append(r.missing, m)
	}
	return r, nil
}

func checkDestination(dest string) error {
	switch {
	case dest == "":
		return fmt.Errorf("destination is empty")
	case strings.HasPrefix(dest, "/"):
		return nil
	case strings.HasPrefix(dest, "http://"), strings.HasPrefix(dest, "https://"):
		rest := dest[strings.Index(dest, "//")+2:]
		if rest == "" || rest[0] == '/' {
			return fmt.Errorf("destination %q has no host", dest)
		}
		return nil
	default:
		return fmt.Errorf("destination %q must be a path starting with / or an http(s) URL", dest)
	}
}

// External reports whether the rule forwards to another origin.
func (r *Rule) External() bool {
	return !strings.HasPrefix(r.Destination, "/")
}

// Pattern returns the compiled source pattern.
func (r *Rule) Pattern() *Pattern {
	return r.pattern
}

// Result is the outcome of applying a rule to a request.
type Result struct {
	Rule     *Rule
	Params   Params
	Target   *url.URL
	External bool
}

// Apply matches the request against the rule and builds the target URL.
// The incoming query string is appended to the destination's own query.
func (r *Rule) Apply(req *http.Request) (*Result, error) {
	path := req.URL.EscapedPath()
	params, ok := r.pattern.Match(path)
	if !ok {
		return nil, ErrNoMatch
	}
	for _, m := range r.has {
		if !m.matches(req) {
			return nil, ErrNoMatch
		}
	}
	for _, m := range r.missing {
		if m.matches(req) {
			return nil, ErrNoMatch
		}
	}

	dest, err := Interpolate(r.Destination, params)
	if err != nil {
		return nil, err
	}
	target, err := url.Parse(dest)
	if err != nil {
		return nil, fmt.Errorf("rule %q: building target: %w", r.Source, err)
	}

	if len(path) > 1 && strings.HasSuffix(path, "/") && !strings.HasSuffix(r.Source, "/") &&
		!strings.HasSuffix(target.Path, "/") {
		target.Path += "/"
		if target.RawPath != "" {
			target.RawPath += "/"
		}
	}

	if req.URL.RawQuery != "" {
		if target.RawQuery == "" {
			target.RawQuery = req.URL.RawQuery
		} else {
			target.RawQuery += "&" + req.URL.RawQuery
		}
	}

	return &Result{
		Rule:     r,
		Params:   params,
		Target:   target,
		External: r.External(),
	}, nil
}

// Set is an ordered list of rules. The first matching rule wins.
type Set struct {
	rules []*Rule
}

// NewSet returns a Set evaluating rules in the given order.
func NewSet(rules ...*Rule) *Set {
	return &Set{rules: rules}
}

// Rules returns the rules in evaluation order.
func (s *Set) Rules() []*Rule {
	if s == nil {
		return nil
	}
	return s.rules
}

// Len returns the number of rules.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

// Resolve returns the result of the first rule matching req, or ErrNoMatch.
func (s *Set) Resolve(req *http.Request) (*Result, error) {
	if s == nil {
		return nil, ErrNoMatch
	}
	for _, rule := range s.rules {
		res, err := rule.Apply(req)
		if errors.Is(err, ErrNoMatch) {
			continue
		}
		return res, err
	}
	return nil, ErrNoMatch
}
