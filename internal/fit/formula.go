// Package fit estimates regression models on long-format panel datasets:
// pooled ordinary least squares and a random-intercept model for balanced
// panels. Models are specified with a small formula syntax of the form
// "Y ~ t + G + E + (1|id)".
package fit

import (
	"fmt"
	"strings"
)

// Formula is a parsed model specification. The intercept is always implied;
// a "(1|<group>)" term requests a per-group random intercept.
type Formula struct {
	// Response is the left-hand-side column name.
	Response string
	// Terms are the fixed-effect column names, in declaration order.
	Terms []string
	// Group is the random-intercept grouping column, empty for plain OLS.
	Group string
	// Raw is the original formula string.
	Raw string
}

// HasRandomIntercept reports whether the formula carries a "(1|...)" term.
func (f Formula) HasRandomIntercept() bool { return f.Group != "" }

// ParseFormula parses a formula string. The right-hand side is a
// "+"-separated list of column names, an optional literal "1" (the implied
// intercept), and at most one random-intercept term "(1|group)".
func ParseFormula(s string) (Formula, error) {
	f := Formula{Raw: s}

	parts := strings.Split(s, "~")
	if len(parts) != 2 {
		return f, fmt.Errorf("formula %q: expected exactly one ~", s)
	}

	f.Response = strings.TrimSpace(parts[0])
	if f.Response == "" {
		return f, fmt.Errorf("formula %q: missing response", s)
	}
	if !validName(f.Response) {
		return f, fmt.Errorf("formula %q: bad response name %q", s, f.Response)
	}

	for _, raw := range strings.Split(parts[1], "+") {
		term := strings.TrimSpace(raw)
		switch {
		case term == "":
			return f, fmt.Errorf("formula %q: empty term", s)
		case term == "1":
			// Intercept is implied; accept the explicit form.
		case strings.HasPrefix(term, "("):
			group, err := parseRandomTerm(term)
			if err != nil {
				return f, fmt.Errorf("formula %q: %w", s, err)
			}
			if f.Group != "" {
				return f, fmt.Errorf("formula %q: multiple random-intercept terms", s)
			}
			f.Group = group
		case validName(term):
			f.Terms = append(f.Terms, term)
		default:
			return f, fmt.Errorf("formula %q: bad term %q", s, term)
		}
	}

	if len(f.Terms) == 0 {
		return f, fmt.Errorf("formula %q: no fixed-effect terms", s)
	}
	return f, nil
}

// parseRandomTerm accepts exactly the form "(1|group)". Random slopes and
// nested groupings are outside this lab's scope.
func parseRandomTerm(term string) (string, error) {
	if !strings.HasPrefix(term, "(") || !strings.HasSuffix(term, ")") {
		return "", fmt.Errorf("bad random term %q", term)
	}
	inner := term[1 : len(term)-1]
	parts := strings.Split(inner, "|")
	if len(parts) != 2 || strings.TrimSpace(parts[0]) != "1" {
		return "", fmt.Errorf("bad random term %q (only (1|group) is supported)", term)
	}
	group := strings.TrimSpace(parts[1])
	if !validName(group) {
		return "", fmt.Errorf("bad grouping name %q", group)
	}
	return group, nil
}

func validName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
