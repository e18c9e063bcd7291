package rewrite

import (
	"fmt"
	"strings"
)

type part struct {
	literal string
	name    string
	query   bool
}

// splitTemplate breaks a destination template into literal text and
// parameter references. A colon starts a named reference when followed by
// a letter or underscore, and an unnamed group reference such as :0 only
// directly after a "/", so ports such as :5000 and the scheme separator
// stay literal. A "?" directly after a reference is its modifier when it ends a
// path segment; any other "?" starts the query string.
func splitTemplate(tmpl string) []part {
	var (
		parts []part
		lit   strings.Builder
		query bool
	)
	flush := func() {
		if lit.Len() > 0 {
			parts = append(parts, part{literal: lit.String(), query: query})
			lit.Reset()
		}
	}

	for i := 0; i < len(tmpl); {
		c := tmpl[i]
		switch {
		case c == '\\' && i+1 < len(tmpl):
			lit.WriteByte(tmpl[i+1])
			i += 2
		case c == ':' && i+1 < len(tmpl) && (isNameStart(tmpl[i+1]) || (isDigit(tmpl[i+1]) && i > 0 && tmpl[i-1] == '/')):
			j := i + 1
			valid := isNameChar
			if isDigit(tmpl[i+1]) {
				valid = isDigit
			}
			for j < len(tmpl) && valid(tmpl[j]) {
				j++
			}
			name := tmpl[i+1 : j]
			if j < len(tmpl) {
				switch tmpl[j] {
				case '*', '+':
					j++
				case '?':
					if j+1 == len(tmpl) || tmpl[j+1] == '/' || tmpl[j+1] == '#' {
						j++
					}
				}
			}
			flush()
			parts = append(parts, part{name: name, query: query})
			i = j
		default:
			if c == '?' {
				query = true
			}
			lit.WriteByte(c)
			i++
		}
	}
	flush()
	return parts
}

// TemplateParams returns the parameter names referenced by a destination
// template, in order of appearance.
func TemplateParams(tmpl string) []string {
	var names []string
	for _, p := range splitTemplate(tmpl) {
		if p.name != "" {
			names = append(names, p.name)
		}
	}
	return names
}

// Interpolate substitutes captured parameters into a destination template.
// Values are inserted verbatim. When an empty value lands directly after a
// "/" in the path, that slash is dropped so /api/:path* with an empty path
// yields /api rather than /api/.
func Interpolate(tmpl string, params Params) (string, error) {
	var b strings.Builder
	for _, p := range splitTemplate(tmpl) {
		if p.name == "" {
			b.WriteString(p.literal)
			continue
		}
		v, ok := params[p.name]
		if !ok {
			return "", fmt.Errorf("destination %q: unknown parameter %q", tmpl, p.name)
		}
		if v == "" && !p.query {
			s := b.String()
			if strings.HasSuffix(s, "/") && !strings.HasSuffix(s, "//") {
				b.Reset()
				b.WriteString(strings.TrimSuffix(s, "/"))
			}
		}
		b.WriteString(v)
	}
	return b.String(), nil
}
