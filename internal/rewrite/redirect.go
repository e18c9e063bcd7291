package rewrite

import (
	"errors"
	"fmt"
	"net/http"
)

// Redirect answers matching requests with a redirect instead of forwarding.
type Redirect struct {
	*Rule
	Status int
}

// NewRedirect compiles a redirect rule. A zero statusCode selects 308 for
// permanent redirects and 307 otherwise.
func NewRedirect(source, destination string, permanent bool, statusCode int, has, missing []Condition) (*Redirect, error) {
	rule, err := NewRule(source, destination, has, missing)
	if err != nil {
		return nil, err
	}

	status := statusCode
	switch status {
	case 0:
		status = http.StatusTemporaryRedirect
		if permanent {
			status = http.StatusPermanentRedirect
		}
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
	default:
		return nil, fmt.Errorf("redirect %q: unsupported status code %d", source, statusCode)
	}

	return &Redirect{Rule: rule, Status: status}, nil
}

// RedirectSet is an ordered list of redirects. The first match wins.
type RedirectSet struct {
	redirects []*Redirect
}

// NewRedirectSet returns a RedirectSet evaluating redirects in order.
func NewRedirectSet(redirects ...*Redirect) *RedirectSet {
	return &RedirectSet{redirects: redirects}
}

// Redirects returns the redirects in evaluation order.
func (s *RedirectSet) Redirects() []*Redirect {
	if s == nil {
		return nil
	}
	return s.redirects
}

// Resolve returns the Location and status code of the first matching
// redirect, or ErrNoMatch.
func (s *RedirectSet) Resolve(req *http.Request) (string, int, error) {
	if s == nil {
		return "", 0, ErrNoMatch
	}
	for _, rd := range s.redirects {
		res, err := rd.Apply(req)
		if errors.Is(err, ErrNoMatch) {
			continue
		}
		if err != nil {
			return "", 0, err
		}
		return res.Target.String(), rd.Status, nil
	}
	return "", 0, ErrNoMatch
}
