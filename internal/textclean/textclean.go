// Package textclean normalizes free text before it reaches a model.
package textclean

import (
	"html"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	tagRe   = regexp.MustCompile(`<[^>]+>`)
	urlRe   = regexp.MustCompile(`https?://\S+|www\.\S+`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// Clean strips HTML tags and URLs, decodes entities, applies NFC
// normalization and collapses whitespace runs to a single space.
func Clean(s string) string {
	s = norm.NFC.String(s)
	s = tagRe.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = urlRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
