package routing

import (
	"net/url"
	"testing"

	"pgregory.net/rapid"
)

func TestNormalizeBasePath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/", ""},
		{"//", ""},
		{"   ", ""},
		{"blog", "/blog"},
		{"/blog", "/blog"},
		{"/blog/", "/blog"},
		{"blog/", "/blog"},
		{"//blog//", "/blog"},
		{"/docs/v2/", "/docs/v2"},
		{" /blog ", "/blog"},
	}
	for _, tc := range cases {
		if got := NormalizeBasePath(tc.in); got != tc.want {
			t.Errorf("NormalizeBasePath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeBasePathIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw := rapid.String().Draw(t, "raw")
		once := NormalizeBasePath(raw)
		twice := NormalizeBasePath(once)
		if once != twice {
			t.Fatalf("not idempotent: normalize(%q) = %q, normalize again = %q", raw, once, twice)
		}
		if once != "" && (once[0] != '/' || once[len(once)-1] == '/') {
			t.Fatalf("normalize(%q) = %q violates shape invariant", raw, once)
		}
	})
}

func TestStripBasePath(t *testing.T) {
	cases := []struct {
		path     string
		query    string
		basePath string
		want     string
	}{
		{"/blog/assets/app.js", "", "/blog", "/assets/app.js"},
		{"/blog", "", "/blog", "/"},
		{"/blog/", "", "/blog", "/"},
		{"/blog/post/hello", "ref=home", "/blog", "/post/hello"},
		{"/blogging", "", "/blog", "/blogging"},
		{"/other", "", "/blog", "/other"},
		{"/anything", "", "", "/anything"},
	}
	for _, tc := range cases {
		u := &url.URL{Path: tc.path, RawQuery: tc.query}
		StripBasePath(u, tc.basePath)
		if u.Path != tc.want {
			t.Errorf("StripBasePath(%q, %q): path = %q, want %q", tc.path, tc.basePath, u.Path, tc.want)
		}
		if u.RawQuery != tc.query {
			t.Errorf("StripBasePath(%q, %q): query %q was not preserved (got %q)", tc.path, tc.basePath, tc.query, u.RawQuery)
		}
	}
}

func TestStripBasePathAlwaysRooted(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := NormalizeBasePath(rapid.StringMatching(`/[a-z]{1,8}`).Draw(t, "base"))
		rest := rapid.StringMatching(`(/[a-z0-9]{0,6}){0,3}`).Draw(t, "rest")
		u := &url.URL{Path: base + rest}
		StripBasePath(u, base)
		if len(u.Path) == 0 || u.Path[0] != '/' {
			t.Fatalf("stripped path %q does not start with /", u.Path)
		}
	})
}
