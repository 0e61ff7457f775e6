package rules

import (
	"fmt"
	"regexp"
	"strings"
)

// Matcher is a single text condition: either a literal substring test or a
// compiled regular expression. Configuration never hands a regexp type to
// the rest of the system; everything goes through Matches.
type Matcher struct {
	literal string
	re      *regexp.Regexp
}

// Literal returns a Matcher that fires when text contains s.
func Literal(s string) Matcher {
	return Matcher{literal: s}
}

// Pattern returns a Matcher that fires when the expression matches anywhere
// in the text.
func Pattern(expr string) (Matcher, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Matcher{}, fmt.Errorf("invalid pattern %q: %w", expr, err)
	}
	return Matcher{re: re}, nil
}

// Matches reports whether the condition fires for text.
func (m Matcher) Matches(text string) bool {
	if m.re != nil {
		return m.re.MatchString(text)
	}
	return strings.Contains(text, m.literal)
}

// String returns the configured condition for log output.
func (m Matcher) String() string {
	if m.re != nil {
		return "pattern:" + m.re.String()
	}
	return "contains:" + m.literal
}
