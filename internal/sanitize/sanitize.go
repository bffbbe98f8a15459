// Package sanitize renders untrusted rich text safe for the public preview.
// The policy is an explicit allow-list: anything not listed (script, iframe,
// inline event handlers, style) is stripped rather than escaped.
package sanitize

import "github.com/microcosm-cc/bluemonday"

// Policy returns the allow-list policy for acta bodies.
func Policy() *bluemonday.Policy {
	p := bluemonday.StrictPolicy()
	p.AllowElements("p", "br", "strong", "em", "u", "code", "pre", "blockquote")
	p.AllowElements("ul", "ol", "li")
	p.AllowElements("h1", "h2", "h3", "h4", "h5", "h6")
	p.AllowElements("table", "thead", "tbody", "tr", "th", "td")
	p.AllowAttrs("href").OnElements("a")
	p.RequireParseableURLs(true)
	p.AllowURLSchemes("http", "https", "mailto")
	p.RequireNoFollowOnLinks(true)
	return p
}

// Body sanitizes one acta body with the shared policy.
func Body(html string) string {
	return Policy().Sanitize(html)
}
