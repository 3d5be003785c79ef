package storage

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

const maxKeyLen = 200

var (
	keyWhitespace = regexp.MustCompile(`\s+`)
	keyUnsafe     = regexp.MustCompile(`[^A-Za-z0-9._-]`)
	keyUnderscore = regexp.MustCompile(`_+`)
)

// SafeKey turns free text into an object key segment: accents are
// decomposed and dropped, everything outside [A-Za-z0-9._-] becomes "_",
// and the result is capped at 200 bytes. Empty results become "object".
func SafeKey(name string) string {
	var b strings.Builder
	for _, r := range norm.NFKD.String(name) {
		if r < 0x80 {
			b.WriteRune(r)
		}
	}
	s := keyWhitespace.ReplaceAllString(b.String(), "_")
	s = keyUnsafe.ReplaceAllString(s, "_")
	s = strings.Trim(keyUnderscore.ReplaceAllString(s, "_"), "_")
	if s == "" {
		return "object"
	}
	if len(s) > maxKeyLen {
		s = s[:maxKeyLen]
	}
	return s
}

// HTMLKey is the object key of a raw listing page scraped at ts. A blank
// offer id gets a random name so pages never overwrite each other.
func HTMLKey(ts time.Time, offerID string) string {
	name := uuid.NewString()
	if strings.TrimSpace(offerID) != "" {
		name = SafeKey(offerID)
	}
	return "listings/" + ts.UTC().Format("20060102T150405Z") + "_" + name + ".html"
}
