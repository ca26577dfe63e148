package sanitize

import (
	"regexp"
	"strings"
)

// Matches both images (leading '!') and links in one pass so an image is
// never re-parsed as a link.
var mdRefRe = regexp.MustCompile(`(!?)\[([^\]]*)\]\(\s*([^)\s]+)[^)]*\)`)

// sanitizeMarkdownLine strips images with non-http(s) URLs and rewrites
// links whose visible text misrepresents the destination into TEXT (URL).
// The rewritten forms contain no markdown syntax, so they are stable.
func sanitizeMarkdownLine(line string) string {
	return mdRefRe.ReplaceAllStringFunc(line, func(m string) string {
		sub := mdRefRe.FindStringSubmatch(m)
		bang, text, url := sub[1], sub[2], sub[3]

		if bang == "!" {
			if isHTTPURL(url) {
				return m
			}
			return text
		}

		if !isHTTPURL(url) {
			// javascript:, data:, and friends lose their destination.
			return text
		}
		if misleadingLinkText(text, url) {
			return text + " (" + url + ")"
		}
		return m
	})
}

func isHTTPURL(url string) bool {
	lower := strings.ToLower(url)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// misleadingLinkText reports whether the link text itself reads as a URL or
// domain that points somewhere other than the actual destination.
func misleadingLinkText(text, url string) bool {
	t := strings.TrimSpace(strings.ToLower(text))
	if t == "" {
		return false
	}
	looksLikeTarget := strings.Contains(t, "://") ||
		(strings.Contains(t, ".") && !strings.ContainsAny(t, " \t"))
	if !looksLikeTarget {
		return false
	}
	host := hostOf(url)
	return host != "" && !strings.Contains(t, host)
}

func hostOf(url string) string {
	s := strings.ToLower(url)
	if idx := strings.Index(s, "://"); idx >= 0 {
		s = s[idx+3:]
	}
	if idx := strings.IndexAny(s, "/?#"); idx >= 0 {
		s = s[:idx]
	}
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}
	return s
}
