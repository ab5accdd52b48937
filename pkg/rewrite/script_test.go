package rewrite

import "testing"

func TestRewriteScriptTextLiterals(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "double quoted asset",
			in:   `import("/assets/chunk-abc.js")`,
			want: `import("/blog/assets/chunk-abc.js")`,
		},
		{
			name: "single quoted src",
			in:   `const m = '/src/main.tsx'`,
			want: `const m = '/blog/src/main.tsx'`,
		},
		{
			name: "template literal",
			in:   "const u = `/node_modules/.vite/deps/react.js`",
			want: "const u = `/blog/node_modules/.vite/deps/react.js`",
		},
		{
			name: "vite internals",
			in:   `load("/@vite/client");load("/.vite/deps/x.js")`,
			want: `load("/blog/@vite/client");load("/blog/.vite/deps/x.js")`,
		},
		{
			name: "content route untouched",
			in:   `fetch("/post/hello")`,
			want: `fetch("/post/hello")`,
		},
		{
			name: "api untouched",
			in:   `fetch("/api/posts").then(r => r.json())`,
			want: `fetch("/api/posts").then(r => r.json())`,
		},
		{
			name: "absolute untouched",
			in:   `load("https://cdn.example/assets/x.js")`,
			want: `load("https://cdn.example/assets/x.js")`,
		},
		{
			name: "mid-string slash untouched",
			in:   `const s = "foo/assets/bar"`,
			want: `const s = "foo/assets/bar"`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := rewriteScriptText(tc.in, "/blog"); got != tc.want {
				t.Errorf("rewriteScriptText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestRewriteScriptTextBaseVariable(t *testing.T) {
	in := `const url = __BASE__ + "/post/" + slug;`
	want := `const url = __BASE__ + "/blog/post/" + slug;`
	if got := rewriteScriptText(in, "/blog"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	// The builder convention and the literal rule must not stack.
	in = `const a = __BASE__ + "/assets/app.js";`
	want = `const a = __BASE__ + "/blog/assets/app.js";`
	if got := rewriteScriptText(in, "/blog"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRewriteScriptTextPreservesSurroundings(t *testing.T) {
	in := "/* banner */\nwindow.__APP__ = { root: \"/assets/\", api: \"/api/\" };\n// trailing"
	want := "/* banner */\nwindow.__APP__ = { root: \"/blog/assets/\", api: \"/api/\" };\n// trailing"
	if got := rewriteScriptText(in, "/blog"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
