package routing

import (
	"net/url"
	"strings"
)

// NormalizeBasePath canonicalizes a configured base path to either "" or
// "/segment[/segment...]" with exactly one leading slash and no trailing
// slash. It never fails; malformed configuration degrades to the closest
// normalized form, and empty, "/", and whitespace-only inputs mean "no base
// path". Idempotent.
func NormalizeBasePath(raw string) string {
	p := strings.TrimSpace(raw)
	if p == "" || p == "/" {
		return ""
	}
	p = "/" + strings.Trim(p, "/")
	if p == "/" {
		// Input was all slashes.
		return ""
	}
	return p
}

// StripBasePath removes the base-path prefix from a request URL in place, so
// the tenant's application sees paths as if deployed at the root. The URL
// (not just the path) is rewritten to preserve the query string. Paths
// outside the prefix are left untouched; the stripped path always starts
// with "/".
func StripBasePath(u *url.URL, basePath string) {
	if basePath == "" {
		return
	}
	path := u.Path
	if path != basePath && !strings.HasPrefix(path, basePath+"/") {
		return
	}
	stripped := strings.TrimPrefix(path, basePath)
	if stripped == "" {
		stripped = "/"
	}
	u.Path = stripped
	if u.RawPath != "" {
		u.RawPath = ""
	}
}
