// Package sanitize renders markup inert without discarding the text a
// reviewer needs. Line numbers survive sanitization so finding spans stay
// usable.
package sanitize

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/bridgewarden/bridgewarden/internal/normalize"
)

// Elements whose entire content is removed, not just the tags.
var dropContent = map[string]bool{
	"script":   true,
	"style":    true,
	"iframe":   true,
	"object":   true,
	"embed":    true,
	"noscript": true,
}

// Run sanitizes normalized text: hazard runs become visible placeholders,
// fenced code is made opaque, HTML is stripped to its text content, and
// markdown links and images are neutralized. Sanitization is idempotent.
func Run(text string, hazards []normalize.Hazard) string {
	text = collapseHazards(text, hazards)
	text = escapeFences(text)
	if strings.Contains(text, "<") {
		text = stripHTML(text)
	}

	lines := strings.Split(text, "\n")
	inFence := false
	for i, line := range lines {
		if isFenceDelimiter(line) {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		lines[i] = sanitizeMarkdownLine(line)
	}
	return strings.Join(lines, "\n")
}

// collapseHazards replaces each hazard run with a visible placeholder of the
// form [U+XXXX×N]. Placeholders contain no hazard characters, so a second
// pass leaves them untouched.
func collapseHazards(text string, hazards []normalize.Hazard) string {
	if len(hazards) == 0 {
		return text
	}
	sorted := make([]normalize.Hazard, len(hazards))
	copy(sorted, hazards)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var b strings.Builder
	pos := 0
	for _, h := range sorted {
		if h.Start < pos {
			continue
		}
		b.WriteString(text[pos:h.Start])
		fmt.Fprintf(&b, "[U+%04X×%d]", h.Rune, h.Count)
		pos = h.End
	}
	b.WriteString(text[pos:])
	return b.String()
}

func isFenceDelimiter(line string) bool {
	trimmed := strings.TrimLeft(line, " \t")
	return strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~")
}

// escapeFences makes fenced code opaque by escaping '<' inside fences, so
// the HTML pass never interprets code samples as markup. The escaped form
// contains no '<' and is stable under repeated sanitization.
func escapeFences(text string) string {
	lines := strings.Split(text, "\n")
	inFence := false
	changed := false
	for i, line := range lines {
		if isFenceDelimiter(line) {
			inFence = !inFence
			continue
		}
		if inFence && strings.Contains(line, "<") {
			lines[i] = strings.ReplaceAll(line, "<", "&lt;")
			changed = true
		}
	}
	if !changed {
		return text
	}
	return strings.Join(lines, "\n")
}

// stripHTML removes all tags, dropping the content of active elements
// entirely. Event-handler attributes and javascript: URLs vanish with their
// tags. Newlines inside removed regions are kept so later lines keep their
// numbers. Text is emitted raw (entities untouched) for idempotency.
func stripHTML(text string) string {
	z := html.NewTokenizer(strings.NewReader(text))
	var b strings.Builder
	skipDepth := 0
	skipTag := ""

	for {
		tt := z.Next()
		raw := string(z.Raw())
		switch tt {
		case html.ErrorToken:
			// Tokenizer stops at EOF; any trailing raw bytes are text.
			b.WriteString(raw)
			return b.String()
		case html.TextToken:
			if skipDepth > 0 {
				writeNewlines(&b, raw)
				continue
			}
			b.WriteString(raw)
		case html.StartTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skipDepth > 0 {
				if tag == skipTag {
					skipDepth++
				}
				writeNewlines(&b, raw)
				continue
			}
			if dropContent[tag] {
				skipDepth = 1
				skipTag = tag
			}
			writeNewlines(&b, raw)
		case html.EndTagToken:
			name, _ := z.TagName()
			if skipDepth > 0 && string(name) == skipTag {
				skipDepth--
			}
			writeNewlines(&b, raw)
		case html.SelfClosingTagToken, html.CommentToken, html.DoctypeToken:
			writeNewlines(&b, raw)
		}
	}
}

func writeNewlines(b *strings.Builder, raw string) {
	for range strings.Count(raw, "\n") {
		b.WriteByte('\n')
	}
}
