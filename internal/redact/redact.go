// Package redact masks secret material before text reaches the caller.
// Redaction happens after sanitization and before the response is built, so
// quarantined originals keep the secret but every surfaced view does not.
package redact

import (
	"math"
	"regexp"
	"strings"

	"github.com/bridgewarden/bridgewarden/internal/model"
)

// CodeSecretFound is the reason code emitted when any secret is redacted.
const CodeSecretFound = "SECRET_FOUND"

// Secret kinds, in scan order. Multiline block kinds run first so a private
// key is not partially eaten by the generic matcher.
const (
	KindPrivateKey   = "PRIVATE_KEY"
	KindAWSAccessKey = "AWS_ACCESS_KEY"
	KindJWT          = "JWT"
	KindBearerToken  = "BEARER_TOKEN"
	KindAPIKey       = "API_KEY"
)

// kindWeights drive the SECRET_FOUND weight: the strongest kind wins.
var kindWeights = map[string]float64{
	KindPrivateKey:   0.6,
	KindAWSAccessKey: 0.6,
	KindJWT:          0.5,
	KindBearerToken:  0.5,
	KindAPIKey:       0.4,
}

// minEntropy gates the generic matcher. Prose and identifiers sit well
// below this; random key material sits above.
const minEntropy = 3.5

type pattern struct {
	kind string
	re   *regexp.Regexp
	// group is the submatch index that must pass the entropy gate;
	// 0 means redact unconditionally.
	group int
}

var patterns = []pattern{
	{kind: KindPrivateKey, re: regexp.MustCompile(
		`(?s)-----BEGIN [A-Z ]*PRIVATE KEY-----.*?-----END [A-Z ]*PRIVATE KEY-----`)},
	{kind: KindJWT, re: regexp.MustCompile(
		`\beyJ[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]{8,}\b`)},
	{kind: KindAWSAccessKey, re: regexp.MustCompile(
		`\b(AKIA|ASIA)[0-9A-Z]{16}\b`)},
	{kind: KindBearerToken, re: regexp.MustCompile(
		`(?i)\b(bearer|authorization)\s*[:=]?\s+([A-Za-z0-9\-._~+/]{16,}=*)`), group: 2},
	{kind: KindAPIKey, re: regexp.MustCompile(
		`(?i)\b(api[_-]?key|secret|token|passwd|password|credentials?)\b["'\s:=]{1,8}([A-Za-z0-9+/_\-]{32,})`), group: 2},
}

// Result carries the redacted text and what was removed.
type Result struct {
	Text       string
	Redactions []model.Redaction
	// Finding is the SECRET_FOUND reason, nil when nothing was redacted.
	Finding *model.Finding
}

// Run masks every secret in text with a «REDACTED:KIND» placeholder and
// reports per-kind counts. Placeholders never match any pattern, so a
// second pass is a no-op.
func Run(text string) Result {
	counts := make(map[string]int)
	maxWeight := 0.0

	for _, p := range patterns {
		text = p.re.ReplaceAllStringFunc(text, func(m string) string {
			if p.group > 0 {
				sub := p.re.FindStringSubmatch(m)
				secret := sub[p.group]
				if p.kind == KindAPIKey && entropy(secret) < minEntropy {
					return m
				}
				counts[p.kind]++
				return strings.Replace(m, secret, placeholder(p.kind), 1)
			}
			counts[p.kind]++
			return placeholder(p.kind)
		})
	}

	res := Result{Text: text}
	for _, p := range patterns {
		if n := counts[p.kind]; n > 0 {
			res.Redactions = append(res.Redactions, model.Redaction{Kind: p.kind, Count: n})
			if w := kindWeights[p.kind]; w > maxWeight {
				maxWeight = w
			}
		}
	}
	if len(res.Redactions) > 0 {
		res.Finding = &model.Finding{
			Code:   CodeSecretFound,
			Weight: maxWeight,
			Span:   firstPlaceholderSpan(text),
		}
	}
	return res
}

func placeholder(kind string) string {
	return "«REDACTED:" + kind + "»"
}

// firstPlaceholderSpan locates the first placeholder in the redacted text.
// Spans are reported in redacted coordinates, which is the view callers see.
func firstPlaceholderSpan(text string) *model.Span {
	idx := strings.Index(text, "«REDACTED:")
	if idx < 0 {
		return nil
	}
	end := strings.Index(text[idx:], "»")
	if end < 0 {
		return nil
	}
	return &model.Span{
		Start: idx,
		End:   idx + end + len("»"),
		Line:  1 + strings.Count(text[:idx], "\n"),
	}
}

// entropy is Shannon entropy in bits per byte.
func entropy(s string) float64 {
	if s == "" {
		return 0
	}
	var freq [256]int
	for i := 0; i < len(s); i++ {
		freq[s[i]]++
	}
	var h float64
	n := float64(len(s))
	for _, c := range freq {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		h -= p * math.Log2(p)
	}
	return h
}
