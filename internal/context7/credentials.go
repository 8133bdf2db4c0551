package context7

import (
	"context"
	"net/http"
	"strings"
)

type apiKeyKey struct{}

// WithAPIKey returns a context whose upstream requests authenticate with key
// instead of the client's configured key. An empty key leaves ctx unchanged.
func WithAPIKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, apiKeyKey{}, key)
}

// APIKeyFromRequest extracts a caller-supplied key from an inbound HTTP
// request. Authorization bearer tokens win over the Context7-API-Key and
// X-API-Key headers.
func APIKeyFromRequest(r *http.Request) string {
	if auth := strings.TrimSpace(r.Header.Get("Authorization")); auth != "" {
		if scheme, token, ok := strings.Cut(auth, " "); ok && strings.EqualFold(scheme, "Bearer") {
			if token = strings.TrimSpace(token); token != "" {
				return token
			}
		}
	}
	for _, h := range []string{"Context7-API-Key", "X-API-Key"} {
		if v := strings.TrimSpace(r.Header.Get(h)); v != "" {
			return v
		}
	}
	return ""
}

func (c *Client) keyFor(ctx context.Context) string {
	if key, ok := ctx.Value(apiKeyKey{}).(string); ok && key != "" {
		return key
	}
	return c.apiKey
}
