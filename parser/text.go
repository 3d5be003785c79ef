package parser

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var stripPolicy = bluemonday.StrictPolicy()

// CleanText collapses whitespace runs and trims. Blank input gives nil.
func CleanText(s string) *string {
	out := strings.Join(strings.Fields(s), " ")
	if out == "" {
		return nil
	}
	return &out
}

// HTMLToText strips every tag from an HTML fragment and returns the visible
// text with entities decoded. Adjacent elements are separated by a space.
func HTMLToText(fragment string) *string {
	if fragment == "" {
		return nil
	}
	// Splits adjacent block elements; CleanText collapses the extra spaces.
	spaced := strings.ReplaceAll(fragment, "<", " <")
	return CleanText(html.UnescapeString(stripPolicy.Sanitize(spaced)))
}
