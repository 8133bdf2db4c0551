// Package policy decides which library candidates are visible, based on
// accept and reject lists of glob patterns.
package policy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

var schemePrefix = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)

// knownHosts are stripped from patterns written without a scheme.
var knownHosts = map[string]bool{
	"github.com":     true,
	"www.github.com": true,
	"gitlab.com":     true,
	"bitbucket.org":  true,
	"context7.com":   true,
}

// Pattern is a compiled, case-insensitive glob anchored to the whole
// identifier. '*' matches any run of characters including '/', '?' matches
// exactly one character, and everything else is literal.
type Pattern struct {
	raw string
	g   glob.Glob
}

// Compile normalizes and compiles pattern.
func Compile(pattern string) (Pattern, error) {
	normalized := normalizePattern(pattern)
	var b strings.Builder
	for _, r := range normalized {
		switch r {
		case '*', '?':
			b.WriteRune(r)
		default:
			b.WriteString(glob.QuoteMeta(string(r)))
		}
	}
	g, err := glob.Compile(b.String())
	if err != nil {
		return Pattern{}, fmt.Errorf("compile pattern %q: %w", pattern, err)
	}
	return Pattern{raw: pattern, g: g}, nil
}

// Match reports whether id matches p. A single leading '/' on id is ignored.
func (p Pattern) Match(id string) bool {
	if p.g == nil {
		return false
	}
	return p.g.Match(strings.ToLower(strings.TrimPrefix(id, "/")))
}

func (p Pattern) String() string {
	return p.raw
}

// Matches compiles pattern and matches id against it. Patterns that fail to
// compile match nothing.
func Matches(id, pattern string) bool {
	p, err := Compile(pattern)
	if err != nil {
		return false
	}
	return p.Match(id)
}

// normalizePattern lowercases pattern and strips a URL-style host prefix so
// "https://github.com/vercel/*", "github.com/vercel/*" and "vercel/*" are
// equivalent.
func normalizePattern(pattern string) string {
	p := strings.ToLower(strings.TrimSpace(pattern))
	if loc := schemePrefix.FindStringIndex(p); loc != nil {
		p = p[loc[1]:]
		if i := strings.IndexByte(p, '/'); i >= 0 {
			p = p[i+1:]
		} else {
			p = ""
		}
	} else if i := strings.IndexByte(p, '/'); i > 0 && knownHosts[p[:i]] {
		p = p[i+1:]
	}
	return strings.TrimPrefix(p, "/")
}
