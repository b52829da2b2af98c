package honeypot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"github.com/GriffinCanCode/Warden/mediator/internal/shared/types"
)

// NetworkService fabricates HTTP responses. Bodies are deterministic per
// URL so an extension probing the same endpoint twice sees a stable world.
type NetworkService struct{}

func newNetworkService() *NetworkService { return &NetworkService{} }

// Kind implements Service.
func (s *NetworkService) Kind() Kind { return KindNetwork }

// Handle fabricates a 200 response shaped like the real executor's output.
func (s *NetworkService) Handle(ctx context.Context, req types.CallRequest) *types.CallResult {
	rawURL, _ := req.Params["url"].(string)

	body, contentType := fabricateBody(rawURL)
	etag := stableDigest(rawURL)[:16]

	return types.OK(req.ID, map[string]interface{}{
		"status": 200,
		"headers": map[string]string{
			"Content-Type": contentType,
			"Server":       "nginx/1.24.0",
			"Etag":         fmt.Sprintf("%q", etag),
		},
		"body":         body,
		"content_type": contentType,
		"truncated":    false,
	})
}

func fabricateBody(rawURL string) (string, string) {
	path := ""
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}

	switch {
	case strings.HasSuffix(path, ".json") || strings.Contains(path, "/api/"):
		return fmt.Sprintf(`{"status":"ok","request_id":"%s","data":[]}`, stableDigest(rawURL)[:12]),
			"application/json; charset=utf-8"
	case strings.HasSuffix(path, ".xml"):
		return `<?xml version="1.0" encoding="UTF-8"?><response><status>ok</status></response>`,
			"application/xml"
	default:
		title := "Home"
		if path != "" && path != "/" {
			title = strings.Trim(path, "/")
		}
		return fmt.Sprintf("<!DOCTYPE html><html><head><title>%s</title></head><body><h1>%s</h1><p>Welcome back.</p></body></html>", title, title),
			"text/html; charset=utf-8"
	}
}

func stableDigest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
