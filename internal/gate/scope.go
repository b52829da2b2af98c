package gate

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/net/publicsuffix"
)

// matchDomains checks the request URL's host against a grant's domain list.
// A grant domain covers itself and its subdomains, but a grant pinned at a
// bare public suffix (e.g. "com", "co.uk") never matches: that would be an
// effectively unscoped grant hiding behind a scoped shape.
func matchDomains(domains []string, rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return false, fmt.Errorf("unparseable url %q", rawURL)
	}
	host := strings.ToLower(u.Hostname())

	for _, d := range domains {
		domain := strings.ToLower(strings.TrimSpace(d))
		if domain == "" || isPublicSuffix(domain) {
			continue
		}
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true, nil
		}
	}
	return false, nil
}

func isPublicSuffix(domain string) bool {
	suffix, _ := publicsuffix.PublicSuffix(domain)
	return suffix == domain
}

// matchKeyPatterns checks a storage key against grant glob patterns.
func matchKeyPatterns(patterns []string, key string) (bool, error) {
	for _, p := range patterns {
		ok, err := doublestar.Match(p, key)
		if err != nil {
			return false, fmt.Errorf("bad key pattern %q", p)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
