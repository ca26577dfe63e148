package fetch

import (
	"strings"

	"golang.org/x/net/html"
)

// Elements whose subtree is boilerplate, not content.
var skipSubtree = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"nav":      true,
	"header":   true,
	"footer":   true,
	"aside":    true,
	"form":     true,
	"iframe":   true,
	"svg":      true,
	"template": true,
}

// Elements that end a block of text.
var blockEnd = map[string]bool{
	"p": true, "div": true, "section": true, "article": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "tr": true, "pre": true, "blockquote": true, "br": true,
	"table": true, "ul": true, "ol": true,
}

// ExtractReadableText reduces an HTML page to its main text content:
// title, headings, paragraphs, lists, code blocks. Non-HTML input comes
// back unchanged, so plain text and markdown pass through.
func ExtractReadableText(body []byte) string {
	s := string(body)
	if !strings.Contains(s, "<") || !looksLikeHTML(s) {
		return s
	}

	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		// Parse errors leave the body as-is; the pipeline still sees it.
		return s
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			if skipSubtree[n.Data] {
				return
			}
			if n.Data == "title" && n.FirstChild != nil {
				b.WriteString(strings.TrimSpace(n.FirstChild.Data))
				b.WriteString("\n\n")
				return
			}
		case html.TextNode:
			if t := n.Data; strings.TrimSpace(t) != "" {
				b.WriteString(t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockEnd[n.Data] {
			b.WriteString("\n")
		}
	}
	walk(doc)

	return collapseBlankLines(b.String())
}

func looksLikeHTML(s string) bool {
	probe := strings.ToLower(s)
	if len(probe) > 1024 {
		probe = probe[:1024]
	}
	return strings.Contains(probe, "<html") || strings.Contains(probe, "<!doctype html") ||
		strings.Contains(probe, "<body") || strings.Contains(probe, "<div") ||
		strings.Contains(probe, "<p>") || strings.Contains(probe, "<article")
}

// collapseBlankLines trims trailing space per line and squeezes runs of
// blank lines down to one.
func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := true
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
