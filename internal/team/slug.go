package team

import (
	"strconv"
	"strings"
)

const (
	maxSlugLen     = 48
	maxSlugBaseLen = 44 // leaves room for a "-NNN" suffix
)

// Slugify derives a URL-safe slug from a team name: lower-cased, runs of
// characters outside [a-z0-9] collapsed to one hyphen, hyphens trimmed from
// both ends, then truncated to 48 characters. A hyphen left at the cut is kept.
func Slugify(name string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}

	slug := b.String()
	if len(slug) > maxSlugLen {
		slug = slug[:maxSlugLen]
	}
	if slug == "" {
		slug = "team"
	}
	return slug
}

// suffixedSlug returns the n-th collision candidate for base, e.g. "design-co-2".
// The base is cut to 44 characters and loses trailing hyphens so the suffix
// never doubles a separator.
func suffixedSlug(base string, n int) string {
	if len(base) > maxSlugBaseLen {
		base = strings.TrimRight(base[:maxSlugBaseLen], "-")
	}
	return base + "-" + strconv.Itoa(n)
}

