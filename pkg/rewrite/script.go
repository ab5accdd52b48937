package rewrite

import (
	"regexp"
	"strings"
)

// Inline scripts are not parsed as JavaScript. The rewriter targets the
// string shapes the supported bundler emits and nothing else: quoted string
// literals and template-literal segments opening with a known build-output
// prefix, plus the __BASE__ builder-variable convention. Everything outside
// a matched span is preserved exactly.
var (
	// "(/assets/... | '/src/... | `/@... — the opening quote's prefix is
	// enough; the rest of the literal is untouched.
	scriptLiteralRe = regexp.MustCompile("([\"'`])(/assets/|/src/|/@|/node_modules/|/\\.vite/)")

	// __BASE__ + "/path" — the builder convention for runtime-joined URLs.
	scriptBaseVarRe = regexp.MustCompile("__BASE__\\s*\\+\\s*([\"'`])/")
)

// rewriteScriptText applies the inline-script heuristics to a script body.
func rewriteScriptText(script, basePath string) string {
	if !strings.Contains(script, "/") {
		return script
	}

	// The builder convention first: once the base path sits between the
	// quote and the slash, the literal pattern below can no longer match
	// the same span, so the two passes never double-prefix.
	out := scriptBaseVarRe.ReplaceAllStringFunc(script, func(m string) string {
		// m ends with the quote and the slash; the prefix goes between.
		return m[:len(m)-1] + basePath + "/"
	})

	out = scriptLiteralRe.ReplaceAllStringFunc(out, func(m string) string {
		// m is the quote character followed by the matched prefix.
		return m[:1] + basePath + m[1:]
	})

	return out
}
