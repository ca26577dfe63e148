// Package normalize canonicalizes raw bytes into Unicode text and flags
// invisible or reordering characters that can hide instructions.
package normalize

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/bridgewarden/bridgewarden/internal/model"
)

// Reason codes emitted by the normalizer.
const (
	CodeEncodingInvalid = "ENCODING_INVALID"
	CodeBidiControl     = "BIDI_CONTROL"
	CodeZeroWidth       = "ZERO_WIDTH"
	CodeTagChars        = "TAG_CHARS"
	CodePrivateUseRun   = "PRIVATE_USE_RUN"
)

// Fixed weights for structural hazards.
var hazardWeights = map[string]float64{
	CodeEncodingInvalid: 0.3,
	CodeBidiControl:     0.6,
	CodeZeroWidth:       0.4,
	CodeTagChars:        0.7,
	CodePrivateUseRun:   0.3,
}

// Hazard is a run of consecutive hazard code points in the normalized text.
type Hazard struct {
	Code  string
	Start int // byte offset in Text
	End   int
	Rune  rune // first rune of the run, for placeholder rendering
	Count int
}

// Shadow is the collapsed alphanumeric projection of the normalized text:
// lowercased, everything outside [a-z0-9] removed. Offsets[i] is the byte
// offset in the normalized text of the rune that produced shadow byte i.
type Shadow struct {
	Text    string
	Offsets []int
}

// Result carries the canonical text plus structural findings.
type Result struct {
	Text     string
	Hazards  []Hazard
	Findings []model.Finding
	Shadow   Shadow
}

// Run decodes, NFKC-normalizes, and canonicalizes raw bytes, then scans for
// hazard characters and builds the shadow projection.
func Run(raw []byte) Result {
	var res Result

	text, invalid := decode(raw)
	if invalid {
		res.Findings = append(res.Findings, finding(CodeEncodingInvalid, nil))
	}

	// NFKC collapses compatibility variants (fullwidth forms, ligatures)
	// so homoglyph-style obfuscation lands on the same code points.
	text = norm.NFKC.String(text)

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimPrefix(text, "\ufeff")

	res.Text = text
	res.Hazards = scanHazards(text)
	for _, h := range res.Hazards {
		res.Findings = append(res.Findings, finding(h.Code, &model.Span{
			Start: h.Start,
			End:   h.End,
			Line:  lineAt(text, h.Start),
		}))
	}
	res.Shadow = buildShadow(text)
	return res
}

func finding(code string, span *model.Span) model.Finding {
	return model.Finding{Code: code, Span: span, Weight: hazardWeights[code]}
}

// decode interprets raw as UTF-8, replacing invalid sequences with U+FFFD.
func decode(raw []byte) (string, bool) {
	if utf8.Valid(raw) {
		return string(raw), false
	}
	var b strings.Builder
	b.Grow(len(raw))
	for len(raw) > 0 {
		r, size := utf8.DecodeRune(raw)
		b.WriteRune(r) // RuneError for invalid sequences
		raw = raw[size:]
	}
	return b.String(), true
}

func hazardClass(r rune) string {
	switch {
	case r >= 0x202A && r <= 0x202E, r >= 0x2066 && r <= 0x2069:
		return CodeBidiControl
	case r >= 0x200B && r <= 0x200F, r == 0x2060, r == 0xFEFF:
		// A leading BOM is stripped before this scan; any FEFF left is interior.
		return CodeZeroWidth
	case r >= 0xE0000 && r <= 0xE007F:
		return CodeTagChars
	case r >= 0xE000 && r <= 0xF8FF,
		r >= 0xF0000 && r <= 0xFFFFD,
		r >= 0x100000 && r <= 0x10FFFD:
		return CodePrivateUseRun
	default:
		return ""
	}
}

// scanHazards groups consecutive code points of the same hazard class into
// runs. Private-use runs shorter than 4 code points are ignored.
func scanHazards(text string) []Hazard {
	var hazards []Hazard
	var cur *Hazard

	flush := func() {
		if cur == nil {
			return
		}
		if cur.Code != CodePrivateUseRun || cur.Count >= 4 {
			hazards = append(hazards, *cur)
		}
		cur = nil
	}

	for i, r := range text {
		class := hazardClass(r)
		if class == "" {
			flush()
			continue
		}
		if cur != nil && cur.Code == class && cur.End == i {
			cur.End = i + utf8.RuneLen(r)
			cur.Count++
			continue
		}
		flush()
		cur = &Hazard{Code: class, Start: i, End: i + utf8.RuneLen(r), Rune: r, Count: 1}
	}
	flush()
	return hazards
}

func buildShadow(text string) Shadow {
	var b strings.Builder
	var offsets []int
	for i, r := range text {
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteByte(byte(r))
			offsets = append(offsets, i)
		}
	}
	return Shadow{Text: b.String(), Offsets: offsets}
}

// lineAt returns the 1-based line number of byte offset pos.
func lineAt(text string, pos int) int {
	if pos > len(text) {
		pos = len(text)
	}
	return 1 + strings.Count(text[:pos], "\n")
}
