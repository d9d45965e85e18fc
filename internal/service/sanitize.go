package service

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// plainText strips every tag. The policy is safe for concurrent use once built.
var plainText = bluemonday.StrictPolicy()

// cleanText removes markup from free text and stores it unescaped, so
// "Tom & Jerry" is kept as typed rather than as "Tom &amp; Jerry".
func cleanText(value string) string {
	return strings.TrimSpace(html.UnescapeString(plainText.Sanitize(value)))
}
