package httptransport

import "strings"

// DefaultImageBaseURL is prefixed to relative image paths in the listing.
const DefaultImageBaseURL = "https://app.getswipe.in"

// NormalizeImageURL turns the image field of a listing row into an absolute
// URL. Blank input yields "". Absolute http(s) URLs are kept as they are;
// anything else is joined onto base with exactly one slash.
func NormalizeImageURL(raw, base string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return trimmed
	}

	if base == "" {
		base = DefaultImageBaseURL
	}
	base = strings.TrimSuffix(base, "/")
	if strings.HasPrefix(trimmed, "/") {
		return base + trimmed
	}
	return base + "/" + trimmed
}
