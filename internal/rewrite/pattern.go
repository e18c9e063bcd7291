// Package rewrite matches request paths against path patterns such as
// /api/:path* and builds destination URLs from the captured parameters.
//
// Pattern syntax:
//
//	:name          one path segment
//	:name?         an optional segment (the leading "/" is optional too)
//	:name*         zero or more segments
//	:name+         one or more segments
//	:name(\d+)     a segment restricted by a regular expression
//	(.*)           an unnamed group, captured as :0, :1, ... in order
//	\:             a literal colon
//
// Matching is anchored and case-insensitive and runs against the escaped
// form of the request path, so captured values are reproduced byte for byte.
// A single trailing slash on the request path is always accepted.
package rewrite

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Params holds the values captured by a pattern, keyed by parameter name.
type Params map[string]string

type token struct {
	literal  string
	name     string
	expr     string
	modifier byte
}

func (t token) optional() bool {
	return t.modifier == '?' || t.modifier == '*'
}

// Pattern is a compiled source pattern.
type Pattern struct {
	source string
	re     *regexp.Regexp
	groups map[string]string // regexp group -> parameter name
	names  []string
}

// Compile parses a source pattern. The pattern must start with "/".
func Compile(source string) (*Pattern, error) {
	if !strings.HasPrefix(source, "/") {
		return nil, fmt.Errorf("pattern %q must start with /", source)
	}

	tokens, err := parse(source)
	if err != nil {
		return nil, err
	}

	p := &Pattern{
		source: source,
		groups: make(map[string]string),
	}

	var b strings.Builder
	b.WriteString("(?i)^")
	for i, t := range tokens {
		if t.name == "" {
			lit := t.literal
			if i+1 < len(tokens) && tokens[i+1].optional() {
				lit = strings.TrimSuffix(lit, "/")
			}
			b.WriteString(regexp.QuoteMeta(lit))
			continue
		}

		for _, n := range p.names {
			if n == t.name {
				return nil, fmt.Errorf("pattern %q: duplicate parameter %q", source, t.name)
			}
		}

		prefix := ""
		if t.optional() && i > 0 && strings.HasSuffix(tokens[i-1].literal, "/") {
			prefix = "/"
		}

		seg, tail := `[^/]+`, `[^/]*`
		if t.expr != "" {
			if _, err := regexp.Compile(t.expr); err != nil {
				return nil, fmt.Errorf("pattern %q: parameter %q: %w", source, t.name, err)
			}
			seg = "(?:" + t.expr + ")"
			tail = seg
		}

		group := fmt.Sprintf("g%d", len(p.names))
		p.groups[group] = t.name
		p.names = append(p.names, t.name)

		switch t.modifier {
		case '?':
			if prefix != "" {
				fmt.Fprintf(&b, "(?:/(?P<%s>%s))?", group, seg)
			} else {
				fmt.Fprintf(&b, "(?P<%s>%s)?", group, seg)
			}
		case '*':
			if prefix != "" {
				fmt.Fprintf(&b, "(?:/(?P<%s>%s(?:/%s)*?))?", group, seg, tail)
			} else {
				fmt.Fprintf(&b, "(?P<%s>(?:%s(?:/%s)*?)?)", group, seg, tail)
			}
		case '+':
			fmt.Fprintf(&b, "(?P<%s>%s(?:/%s)*?)", group, seg, tail)
		default:
			fmt.Fprintf(&b, "(?P<%s>%s)", group, seg)
		}
	}
	if strings.HasSuffix(source, "/") {
		b.WriteString("$")
	} else {
		b.WriteString("/?$")
	}

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", source, err)
	}
	p.re = re
	return p, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(source string) *Pattern {
	p, err := Compile(source)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the source pattern.
func (p *Pattern) String() string {
	return p.source
}

// Names returns the parameter names in declaration order.
func (p *Pattern) Names() []string {
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

// Has reports whether the pattern declares the named parameter.
func (p *Pattern) Has(name string) bool {
	for _, n := range p.names {
		if n == name {
			return true
		}
	}
	return false
}

// Match matches an escaped request path. Parameters that did not take part
// in the match are present with an empty value.
func (p *Pattern) Match(path string) (Params, bool) {
	m := p.re.FindStringSubmatch(path)
	if m == nil {
		return nil, false
	}
	params := make(Params, len(p.names))
	for i, group := range p.re.SubexpNames() {
		if name, ok := p.groups[group]; ok {
			params[name] = m[i]
		}
	}
	return params, true
}

func parse(s string) ([]token, error) {
	var (
		tokens  []token
		lit     strings.Builder
		unnamed int
	)
	flush := func() {
		if lit.Len() > 0 {
			tokens = append(tokens, token{literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s):
			lit.WriteByte(s[i+1])
			i += 2
		case c == ':' && i+1 < len(s) && isNameStart(s[i+1]):
			j := i + 1
			for j < len(s) && isNameChar(s[j]) {
				j++
			}
			t := token{name: s[i+1 : j]}
			if j < len(s) && s[j] == '(' {
				end, err := groupEnd(s, j)
				if err != nil {
					return nil, err
				}
				t.expr = s[j+1 : end]
				if t.expr == "" {
					return nil, fmt.Errorf("pattern %q: empty expression for parameter %q", s, t.name)
				}
				j = end + 1
			}
			if j < len(s) && (s[j] == '?' || s[j] == '*' || s[j] == '+') {
				t.modifier = s[j]
				j++
			}
			flush()
			tokens = append(tokens, t)
			i = j
		case c == '(':
			end, err := groupEnd(s, i)
			if err != nil {
				return nil, err
			}
			t := token{name: strconv.Itoa(unnamed), expr: s[i+1 : end]}
			if t.expr == "" {
				return nil, fmt.Errorf("pattern %q: empty group at offset %d", s, i)
			}
			unnamed++
			j := end + 1
			if j < len(s) && (s[j] == '?' || s[j] == '*' || s[j] == '+') {
				t.modifier = s[j]
				j++
			}
			flush()
			tokens = append(tokens, t)
			i = j
		default:
			lit.WriteByte(c)
			i++
		}
	}
	flush()
	return tokens, nil
}

// groupEnd returns the index of the parenthesis closing the one at open.
func groupEnd(s string, open int) (int, error) {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("pattern %q: unbalanced parenthesis at offset %d", s, open)
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isNameChar(c byte) bool {
	return isNameStart(c) || isDigit(c)
}
