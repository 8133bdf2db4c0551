package ranking

import (
	"reflect"
	"testing"

	"github.com/ggoodman/context7-mcp-go/internal/context7"
)

func fixtures() []context7.LibraryCandidate {
	return []context7.LibraryCandidate{
		{ID: "/vercel/nextjs", Title: "Next.js Documentation", DocsRepoURL: "https://github.com/vercel/nextjs", TotalSnippets: 50},
		{ID: "/tanstack/query", Title: "React Query", DocsRepoURL: "https://github.com/tanstack/query", TotalSnippets: 50},
		{ID: "/mongodb/docs", Title: "MongoDB", DocsRepoURL: "https://github.com/mongodb/docs", TotalSnippets: 50},
		{ID: "/graphql/spec", Title: "GraphQL Query", DocsRepoURL: "https://github.com/graphql/spec", TotalSnippets: 50},
	}
}

func ids(cs []context7.LibraryCandidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func TestRerankBlankQueryIsIdentity(t *testing.T) {
	in := fixtures()
	for _, q := range []string{"", "   ", "\t\n"} {
		out := Rerank(in, q)
		if len(out) != len(in) || &out[0] != &in[0] {
			t.Fatalf("Rerank(%q) did not return the input slice", q)
		}
	}
	if out := Rerank(nil, ""); out != nil {
		t.Fatalf("expected nil for nil input, got %v", out)
	}
}

func TestRerankTopResult(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"nextjs", "/vercel/nextjs"},
		{"NEXTJS", "/vercel/nextjs"},
		{"mongo", "/mongodb/docs"},
		{"next.js", "/vercel/nextjs"},
		{"https://github.com/tanstack/query", "/tanstack/query"},
		{"github.com/tanstack/query", "/tanstack/query"},
		{"tanstack/query", "/tanstack/query"},
		{"/graphql/spec", "/graphql/spec"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			out := Rerank(fixtures(), tt.query)
			if out[0].ID != tt.want {
				t.Fatalf("Rerank(%q)[0] = %s, want %s (order %v)", tt.query, out[0].ID, tt.want, ids(out))
			}
		})
	}
}

func TestRerankTitleMatches(t *testing.T) {
	out := Rerank(fixtures(), "query")
	want := []string{"/tanstack/query", "/graphql/spec", "/vercel/nextjs", "/mongodb/docs"}
	if got := ids(out); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestRerankBareIDScenario(t *testing.T) {
	in := []context7.LibraryCandidate{
		{ID: "vercel/nextjs"},
		{ID: "tanstack/query"},
		{ID: "mongodb/docs"},
		{ID: "graphql/spec", Title: "GraphQL Query"},
	}
	out := ids(Rerank(in, "query"))
	top := map[string]bool{out[0]: true, out[1]: true}
	if !top["tanstack/query"] || !top["graphql/spec"] {
		t.Fatalf("expected query matches on top, got %v", out)
	}
	if out[2] != "vercel/nextjs" || out[3] != "mongodb/docs" {
		t.Fatalf("expected non-matches to keep input order, got %v", out)
	}
}

func TestRerankExactBeatsEverything(t *testing.T) {
	in := []context7.LibraryCandidate{
		{ID: "/acme/react-router", Title: "React", TrustScore: 10, TotalSnippets: 9000},
		{ID: "/facebook/react-native", Title: "React Native"},
		{ID: "/facebook/react", Title: "React Documentation", TrustScore: 1},
	}
	out := Rerank(in, "facebook/react")
	if out[0].ID != "/facebook/react" {
		t.Fatalf("expected exact id match first, got %v", ids(out))
	}
}

func TestRerankStableWithoutMatches(t *testing.T) {
	in := fixtures()
	out := Rerank(in, "zzz-nothing")
	if !reflect.DeepEqual(ids(out), ids(in)) {
		t.Fatalf("expected input order, got %v", ids(out))
	}
	if &out[0] == &in[0] {
		t.Fatalf("non-blank queries must not alias the input")
	}
}

func TestRerankShorterTitleFirst(t *testing.T) {
	in := []context7.LibraryCandidate{
		{ID: "/a/one", Title: "Widget Toolkit Extended"},
		{ID: "/b/two", Title: "Widget Kit"},
		{ID: "/c/three", Title: "Other", Description: "a widget helper"},
	}
	out := ids(Rerank(in, "widget"))
	want := []string{"/b/two", "/a/one", "/c/three"}
	if !reflect.DeepEqual(out, want) {
		t.Fatalf("got %v, want %v", out, want)
	}
}

func TestScoreBands(t *testing.T) {
	c := context7.LibraryCandidate{ID: "/vercel/next.js", Title: "Next.js", Description: "The React framework", DocsRepoURL: "https://github.com/vercel/next.js"}
	tests := []struct {
		query string
		want  Band
	}{
		{"vercel/next.js", BandExact},
		{"github.com/vercel/next.js", BandExact},
		{"nextjs", BandNormalized},
		{"vercel", BandIDContains},
		{"react", BandDescription},
		{"svelte", BandNone},
	}
	for _, tt := range tests {
		if got := Score(c, tt.query); got != tt.want {
			t.Fatalf("Score(%q) = %s, want %s", tt.query, got, tt.want)
		}
	}
}
