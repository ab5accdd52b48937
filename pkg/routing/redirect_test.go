package routing

import (
	"testing"

	"github.com/brightvale/platform/pkg/tenant"
)

func primaryContext() *tenant.ResolutionContext {
	return &tenant.ResolutionContext{
		SiteID:            "site-1",
		BasePath:          "/blog",
		SiteHostname:      "tenant.example",
		VisitorHostname:   "tenant.example",
		SitePrimaryDomain: "tenant.example",
	}
}

func TestCanonicalRedirectPrimaryRoot(t *testing.T) {
	target, ok := CanonicalRedirect(primaryContext(), "/")
	if !ok {
		t.Fatal("expected a redirect for the primary-domain root")
	}
	if target != "/blog/" {
		t.Errorf("expected /blog/, got %q", target)
	}
}

func TestCanonicalRedirectOnlyRoot(t *testing.T) {
	for _, path := range []string{"/blog/", "/blog/post/x", "/post/x", "/sitemap.xml"} {
		if _, ok := CanonicalRedirect(primaryContext(), path); ok {
			t.Errorf("expected no redirect for %q", path)
		}
	}
}

func TestCanonicalRedirectAliasNever(t *testing.T) {
	rc := primaryContext()
	rc.VisitorHostname = "alias.example"
	for _, path := range []string{"/", "/post/x", "/blog/"} {
		if _, ok := CanonicalRedirect(rc, path); ok {
			t.Errorf("alias domain must never redirect, got one for %q", path)
		}
	}
}

func TestCanonicalRedirectEmptyBasePath(t *testing.T) {
	rc := primaryContext()
	rc.BasePath = ""
	if _, ok := CanonicalRedirect(rc, "/"); ok {
		t.Error("expected no redirect without a base path")
	}
}

func TestCanonicalRedirectUnknownHostnames(t *testing.T) {
	rc := primaryContext()
	rc.VisitorHostname = ""
	if _, ok := CanonicalRedirect(rc, "/"); ok {
		t.Error("expected no redirect with unknown visitor hostname")
	}

	rc = primaryContext()
	rc.SitePrimaryDomain = ""
	if _, ok := CanonicalRedirect(rc, "/"); ok {
		t.Error("expected no redirect with unknown primary domain")
	}
}

func TestCanonicalRedirectExemptPrefixes(t *testing.T) {
	for _, path := range []string{"/api/posts", "/bv_api/ping", "/assets/a.js", "/src/main.ts", "/@vite/client", "/node_modules/x"} {
		if _, ok := CanonicalRedirect(primaryContext(), path); ok {
			t.Errorf("expected no redirect for exempt path %q", path)
		}
	}
}
