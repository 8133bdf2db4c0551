// Package ranking orders library search results by how well they match the
// user's query.
//
// Every candidate lands in exactly one band; bands never overlap, so a
// weaker signal can not lift a candidate past a stronger one. Snippet count
// and trust score are not inputs.
package ranking

import (
	"net/url"
	"sort"
	"strings"
	"unicode"

	"github.com/ggoodman/context7-mcp-go/internal/context7"
)

// Band is a relevance tier. Higher bands sort first.
type Band int

const (
	BandNone Band = iota
	BandDescription
	BandTitle
	BandIDContains
	BandNormalized
	BandExact
)

func (b Band) String() string {
	switch b {
	case BandExact:
		return "exact"
	case BandNormalized:
		return "normalized"
	case BandIDContains:
		return "id-contains"
	case BandTitle:
		return "title-contains"
	case BandDescription:
		return "description-contains"
	default:
		return "none"
	}
}

// Rerank returns candidates ordered by descending band. The sort is stable,
// and within the title band shorter titles come first. A blank query
// returns candidates itself, unchanged.
func Rerank(candidates []context7.LibraryCandidate, query string) []context7.LibraryCandidate {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return candidates
	}

	type scored struct {
		c    context7.LibraryCandidate
		band Band
	}
	ranked := make([]scored, len(candidates))
	for i, c := range candidates {
		ranked[i] = scored{c: c, band: Score(c, q)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].band != ranked[j].band {
			return ranked[i].band > ranked[j].band
		}
		if ranked[i].band == BandTitle {
			return len(ranked[i].c.Title) < len(ranked[j].c.Title)
		}
		return false
	})

	out := make([]context7.LibraryCandidate, len(ranked))
	for i, r := range ranked {
		out[i] = r.c
	}
	return out
}

// Score places c in a band for query. query is compared case-insensitively.
func Score(c context7.LibraryCandidate, query string) Band {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return BandNone
	}
	id := strings.ToLower(c.NormalizedID())
	title := strings.ToLower(c.Title)

	if id == strings.TrimPrefix(q, "/") || matchesRepoURL(c.DocsRepoURL, q) {
		return BandExact
	}

	if cq := collapse(q); cq != "" {
		if cq == collapse(id) || cq == collapse(projectSegment(id)) || cq == collapse(title) {
			return BandNormalized
		}
	}

	if strings.Contains(id, q) {
		return BandIDContains
	}
	if strings.Contains(title, q) {
		return BandTitle
	}
	if strings.Contains(strings.ToLower(c.Description), q) {
		return BandDescription
	}
	return BandNone
}

// matchesRepoURL compares q against repoURL with and without its scheme and
// host: "https://github.com/org/proj", "github.com/org/proj" and "org/proj"
// all match the same stored URL.
func matchesRepoURL(repoURL, q string) bool {
	if repoURL == "" {
		return false
	}
	for _, form := range urlForms(repoURL) {
		for _, qf := range urlForms(q) {
			if form == qf {
				return true
			}
		}
	}
	return false
}

func urlForms(raw string) []string {
	s := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(raw)), "/")
	s = strings.TrimSuffix(s, ".git")
	forms := []string{s}
	if u, err := url.Parse(s); err == nil && u.Scheme != "" && u.Host != "" {
		hostPath := u.Host + u.Path
		forms = append(forms, hostPath, strings.TrimPrefix(u.Path, "/"))
		return forms
	}
	if i := strings.IndexByte(s, '/'); i > 0 && strings.Contains(s[:i], ".") {
		forms = append(forms, s[i+1:])
	}
	return forms
}

// projectSegment returns the project part of "org/project[/version]".
func projectSegment(id string) string {
	parts := strings.Split(id, "/")
	if len(parts) >= 2 {
		return parts[1]
	}
	return id
}

// collapse drops everything that is not a letter or digit, so "next.js",
// "next-js" and "nextjs" compare equal.
func collapse(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
