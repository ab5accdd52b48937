package routing

import (
	"strings"

	"github.com/brightvale/platform/pkg/tenant"
)

// exemptPathPrefixes are never subject to the canonical base-path redirect:
// same-origin API calls and build-tool asset paths.
var exemptPathPrefixes = []string{
	"/api/",
	"/bv_api/",
	"/assets/",
	"/src/",
	"/@",
	"/node_modules/",
}

// CanonicalRedirect computes the 301 target that keeps the base path
// canonical, or ok=false when no redirect applies.
//
// Only the site's primary domain redirects, and only for the root path:
// "/" becomes basePath+"/". Alias domains never redirect, because the
// fronting proxy already maps the alias's root onto the tenant's base path.
// Every other primary-domain path is expected to carry the base path
// already and passes through for StripBasePath to handle.
func CanonicalRedirect(rc *tenant.ResolutionContext, requestPath string) (string, bool) {
	if rc == nil || rc.BasePath == "" {
		return "", false
	}
	if rc.VisitorHostname == "" || rc.SitePrimaryDomain == "" {
		return "", false
	}
	for _, prefix := range exemptPathPrefixes {
		if strings.HasPrefix(requestPath, prefix) {
			return "", false
		}
	}
	if rc.IsAliasDomain() {
		return "", false
	}
	if requestPath == "/" {
		return rc.BasePath + "/", true
	}
	return "", false
}
