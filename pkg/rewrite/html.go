// Package rewrite implements the base-path response transform: a response
// writer decorator that buffers HTML payloads and an HTML URL rewriter that
// prefixes root-relative asset URLs with the tenant's base path.
package rewrite

import (
	"bytes"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// rewriteAttrs is the fixed attribute set whose values are candidates for
// rewriting.
var rewriteAttrs = map[string]bool{
	"href":     true,
	"src":      true,
	"data-src": true,
	"action":   true,
	"poster":   true,
	"srcset":   true,
}

// bundlerPrefixes are the path prefixes build tools emit for generated
// assets. URLs under them always get the base path.
var bundlerPrefixes = []string{
	"/assets/",
	"/src/",
	"/@",
	"/node_modules/",
	"/.vite/",
}

// staticFilePatterns are well-known static-file names served from the site
// root regardless of the content routes.
var staticFilePatterns = []string{
	"favicon",
	"manifest",
	"robots.txt",
	"sitemap",
	"apple-touch-icon",
	"og-image",
	"open-graph",
}

// assetExtensions are binary asset extensions rewritten wherever they appear
// as root-relative paths.
var assetExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".svg": true, ".ico": true, ".webp": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
}

// ShouldRewrite classifies a URL found in tenant HTML. Only root-relative
// URLs pointing at build output or well-known static files are rewritten;
// same-origin API calls are never touched, and other root-relative paths are
// tenant content routes already expected to carry the base path.
func ShouldRewrite(url string) bool {
	if url == "" {
		return false
	}
	switch {
	case strings.HasPrefix(url, "http://"),
		strings.HasPrefix(url, "https://"),
		strings.HasPrefix(url, "//"),
		strings.HasPrefix(url, "data:"),
		strings.HasPrefix(url, "mailto:"),
		strings.HasPrefix(url, "tel:"),
		strings.HasPrefix(url, "#"),
		strings.HasPrefix(url, "javascript:"):
		return false
	}
	if !strings.HasPrefix(url, "/") {
		return false
	}
	if strings.HasPrefix(url, "/api/") || strings.HasPrefix(url, "/auth/") {
		return false
	}
	for _, prefix := range bundlerPrefixes {
		if strings.HasPrefix(url, prefix) {
			return true
		}
	}

	path := url
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	base := path
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	lower := strings.ToLower(base)
	for _, pattern := range staticFilePatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	if i := strings.LastIndexByte(lower, '.'); i >= 0 && assetExtensions[lower[i:]] {
		return true
	}
	return false
}

// rewriteURL prefixes a URL that passed ShouldRewrite.
func rewriteURL(url, basePath string) string {
	return basePath + url
}

// rewriteSrcset rewrites each candidate of a srcset value independently. The
// URL is the first whitespace-delimited token of each comma-separated entry;
// descriptors are preserved.
func rewriteSrcset(value, basePath string) (string, bool) {
	entries := strings.Split(value, ",")
	changed := false
	for i, entry := range entries {
		trimmed := strings.TrimSpace(entry)
		if trimmed == "" {
			continue
		}
		url := trimmed
		rest := ""
		if j := strings.IndexAny(trimmed, " \t\n"); j >= 0 {
			url, rest = trimmed[:j], trimmed[j:]
		}
		if !ShouldRewrite(url) {
			continue
		}
		leading := entry[:strings.Index(entry, trimmed)]
		entries[i] = leading + rewriteURL(url, basePath) + rest
		changed = true
	}
	if !changed {
		return value, false
	}
	return strings.Join(entries, ","), true
}

// Rewrite prefixes root-relative URLs in an HTML document with the base
// path. It tokenizes rather than building a tree: tokens that need no change
// are emitted from their raw bytes, so unaffected markup round-trips
// byte-for-byte and entities are never re-decoded. Malformed input passes
// through unchanged; availability of the response wins over rewrite
// coverage.
func Rewrite(doc []byte, basePath string) []byte {
	if basePath == "" || basePath == "/" {
		return doc
	}

	z := html.NewTokenizer(bytes.NewReader(doc))
	var out bytes.Buffer
	out.Grow(len(doc) + 256)
	inScript := false

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return out.Bytes()
			}
			return doc

		case html.StartTagToken, html.SelfClosingTagToken:
			raw := append([]byte(nil), z.Raw()...)
			name, hasAttr := z.TagName()
			tag := string(name)
			if tag == "script" && tt == html.StartTagToken {
				inScript = true
			}
			if !hasAttr {
				out.Write(raw)
				continue
			}
			if !writeRewrittenTag(&out, z, tag, tt == html.SelfClosingTagToken, raw, basePath) {
				out.Write(raw)
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "script" {
				inScript = false
			}
			out.Write(z.Raw())

		case html.TextToken:
			if inScript {
				out.WriteString(rewriteScriptText(string(z.Raw()), basePath))
			} else {
				out.Write(z.Raw())
			}

		default:
			// Doctype, comments, CDATA: verbatim.
			out.Write(z.Raw())
		}
	}
}

// tagAttr mirrors one parsed attribute.
type tagAttr struct {
	key, val string
	hasValue bool
}

// writeRewrittenTag re-serializes a start tag whose attributes changed.
// Returns false when nothing changed, so the caller can emit the raw bytes
// instead.
func writeRewrittenTag(out *bytes.Buffer, z *html.Tokenizer, tag string, selfClosing bool, raw []byte, basePath string) bool {
	var attrs []tagAttr
	changed := false
	for {
		key, val, more := z.TagAttr()
		a := tagAttr{key: string(key), val: string(val), hasValue: true}
		// An attribute with no "=" parses as an empty value; keeping it
		// valueless avoids rewriting <input required> to <input required="">.
		if !bytes.Contains(raw, []byte(a.key+"=")) && a.val == "" {
			a.hasValue = false
		}
		if rewriteAttrs[a.key] && a.val != "" {
			if a.key == "srcset" {
				if v, ok := rewriteSrcset(a.val, basePath); ok {
					a.val = v
					changed = true
				}
			} else if ShouldRewrite(a.val) {
				a.val = rewriteURL(a.val, basePath)
				changed = true
			}
		}
		attrs = append(attrs, a)
		if !more {
			break
		}
	}
	if !changed {
		return false
	}

	out.WriteByte('<')
	out.WriteString(tag)
	for _, a := range attrs {
		out.WriteByte(' ')
		out.WriteString(a.key)
		if a.hasValue {
			out.WriteString(`="`)
			out.WriteString(escapeAttr(a.val))
			out.WriteByte('"')
		}
	}
	if selfClosing {
		out.WriteString("/>")
	} else {
		out.WriteByte('>')
	}
	return true
}

// escapeAttr escapes only what a double-quoted attribute value requires.
// Entities already present in the source were not decoded by the tokenizer's
// raw bytes, but TagAttr values are decoded, so quotes and ampersands must
// be re-escaped.
func escapeAttr(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, `"`, "&quot;")
	return s
}
