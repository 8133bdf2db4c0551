package policy

import (
	"strings"
	"unicode"

	"github.com/ggoodman/context7-mcp-go/internal/context7"
)

// Filter applies a compiled accept/reject policy. The zero value and a
// Filter built from two empty lists pass every candidate.
type Filter struct {
	accept []Pattern
	reject []Pattern
}

// NewFilter compiles the accept and reject lists.
func NewFilter(accept, reject []string) (*Filter, error) {
	f := &Filter{}
	for _, raw := range accept {
		p, err := Compile(raw)
		if err != nil {
			return nil, err
		}
		f.accept = append(f.accept, p)
	}
	for _, raw := range reject {
		p, err := Compile(raw)
		if err != nil {
			return nil, err
		}
		f.reject = append(f.reject, p)
	}
	return f, nil
}

// Active reports whether the filter can drop anything.
func (f *Filter) Active() bool {
	return f != nil && (len(f.accept) > 0 || len(f.reject) > 0)
}

// Allows reports whether a single identifier passes the policy. Reject
// patterns win over accept patterns.
func (f *Filter) Allows(id string) bool {
	if f == nil {
		return true
	}
	for _, p := range f.reject {
		if p.Match(id) {
			return false
		}
	}
	if len(f.accept) == 0 {
		return true
	}
	for _, p := range f.accept {
		if p.Match(id) {
			return true
		}
	}
	return false
}

// Apply returns the candidates that pass the policy, in their original
// order. The input slice is not modified.
func (f *Filter) Apply(candidates []context7.LibraryCandidate) []context7.LibraryCandidate {
	out := make([]context7.LibraryCandidate, 0, len(candidates))
	for _, c := range candidates {
		if f.Allows(c.NormalizedID()) {
			out = append(out, c)
		}
	}
	return out
}

// Describe renders the active lists, e.g. "accept: vercel/*; reject: vercel/legacy".
func (f *Filter) Describe() string {
	if !f.Active() {
		return "none"
	}
	var parts []string
	if len(f.accept) > 0 {
		parts = append(parts, "accept: "+joinPatterns(f.accept))
	}
	if len(f.reject) > 0 {
		parts = append(parts, "reject: "+joinPatterns(f.reject))
	}
	return strings.Join(parts, "; ")
}

func joinPatterns(ps []Pattern) string {
	raw := make([]string, len(ps))
	for i, p := range ps {
		raw[i] = p.String()
	}
	return strings.Join(raw, ", ")
}

// ParseList splits a comma- or whitespace-separated pattern list, dropping
// empty items.
func ParseList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}
