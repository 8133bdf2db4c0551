package tools

import (
	"strconv"
	"strings"

	"github.com/ggoodman/context7-mcp-go/internal/context7"
)

const resolveHeader = `Available Libraries (top matches):

Each result includes:
- Library ID: Context7-compatible identifier (format: /org/repo)
- Name: Library or package name
- Description: Short summary
- Code Snippets: Number of available code examples
- Trust Score: Authority indicator

For best results, select libraries based on name match, trust score, snippet coverage, and relevance to your use case.

----------

`

const resultSeparator = "\n----------\n"

func formatSearchResult(c context7.LibraryCandidate) string {
	lines := []string{
		"- Title: " + c.Title,
		"- Context7-compatible library ID: " + c.ID,
		"- Description: " + c.Description,
	}
	if c.TotalSnippets >= 0 {
		lines = append(lines, "- Code Snippets: "+strconv.Itoa(c.TotalSnippets))
	}
	if c.TrustScore >= 0 {
		lines = append(lines, "- Trust Score: "+strconv.FormatFloat(c.TrustScore, 'f', -1, 64))
	}
	if len(c.Versions) > 0 {
		lines = append(lines, "- Versions: "+strings.Join(c.Versions, ", "))
	}
	return strings.Join(lines, "\n")
}

func formatSearchResults(cs []context7.LibraryCandidate) string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = formatSearchResult(c)
	}
	return strings.Join(out, resultSeparator)
}
