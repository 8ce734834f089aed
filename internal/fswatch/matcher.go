package fswatch

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/text/unicode/norm"
)

// Matcher decides whether a bare filename satisfies a set of shell globs.
// The zero value and a matcher built from no patterns match every name.
type Matcher struct {
	patterns []string
	globs    []string
}

// NewMatcher validates and NFC-normalises patterns. Order is preserved.
func NewMatcher(patterns []string) (*Matcher, error) {
	m := &Matcher{
		patterns: make([]string, 0, len(patterns)),
		globs:    make([]string, 0, len(patterns)),
	}
	for _, p := range patterns {
		p = norm.NFC.String(p)
		g, err := compileGlob(p)
		if err != nil {
			return nil, err
		}
		m.patterns = append(m.patterns, p)
		m.globs = append(m.globs, g)
	}
	return m, nil
}

// compileGlob converts a shell glob to doublestar syntax. Shell globs have no
// alternation, so braces and commas are escaped to match literally.
func compileGlob(pattern string) (string, error) {
	var b strings.Builder
	b.Grow(len(pattern))
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '\\':
			b.WriteByte(c)
			if i+1 < len(pattern) {
				i++
				b.WriteByte(pattern[i])
			}
			continue
		case '{', '}', ',':
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	glob := b.String()
	if !doublestar.ValidatePattern(glob) {
		return "", fmt.Errorf("%w: %q", ErrBadPattern, pattern)
	}
	return glob, nil
}

// Patterns returns a copy of the filter set.
func (m *Matcher) Patterns() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.patterns...)
}

// Empty reports whether the filter set has no patterns.
func (m *Matcher) Empty() bool {
	return m == nil || len(m.patterns) == 0
}

// Matches reports whether name matches at least one pattern.
func (m *Matcher) Matches(name string) bool {
	if m.Empty() {
		return true
	}
	name = norm.NFC.String(name)
	for _, g := range m.globs {
		if globMatch(g, name) {
			return true
		}
	}
	return false
}

// globMatch matches a compiled, normalised glob against a bare name.
// Patterns are validated up front, so a match error is treated as no match.
func globMatch(pattern, name string) bool {
	ok, err := doublestar.Match(pattern, name)
	return err == nil && ok
}
