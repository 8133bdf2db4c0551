package context7

import "strings"

// LibraryCandidate is one documentation source returned by a search.
type LibraryCandidate struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Branch         string   `json:"branch,omitempty"`
	LastUpdateDate string   `json:"lastUpdateDate,omitempty"`
	State          string   `json:"state,omitempty"`
	TotalTokens    int      `json:"totalTokens,omitempty"`
	TotalSnippets  int      `json:"totalSnippets"`
	Stars          int      `json:"stars,omitempty"`
	TrustScore     float64  `json:"trustScore"`
	DocsRepoURL    string   `json:"docsRepoUrl,omitempty"`
	Folders        []string `json:"folders,omitempty"`
	Versions       []string `json:"versions,omitempty"`
}

// NormalizedID returns the identifier without its single leading slash.
func (c LibraryCandidate) NormalizedID() string {
	return strings.TrimPrefix(c.ID, "/")
}

// SearchResponse is the result of a library search. Error is set instead of
// Results when the search could not be completed.
type SearchResponse struct {
	Results []LibraryCandidate `json:"results"`
	Error   string             `json:"error,omitempty"`
}
