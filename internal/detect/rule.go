// Package detect matches instruction-likeness patterns against normalized
// text and its shadow projection. Rule packs are compiled once at snapshot
// load, never at request time.
package detect

import (
	"fmt"
	"regexp"
	"strings"
)

// Tier is the least strict profile at which a rule is active. The active
// sets compose: permissive ⊂ balanced ⊂ strict.
type Tier int

const (
	TierPermissive Tier = iota + 1
	TierBalanced
	TierStrict
)

// TierForProfile maps a profile name to the tier ceiling of its active rule
// set. Unknown profiles fail closed to the full strict set.
func TierForProfile(profile string) Tier {
	switch profile {
	case "permissive":
		return TierPermissive
	case "balanced":
		return TierBalanced
	default:
		return TierStrict
	}
}

// MatcherKind selects how a rule matches.
type MatcherKind int

const (
	// KindPhrase is a case-insensitive literal phrase set, matched against
	// the normalized text and against the shadow.
	KindPhrase MatcherKind = iota
	// KindRegex is a compiled regular expression run on normalized text.
	KindRegex
	// KindStructural is a regex standing in for a structural predicate,
	// e.g. a numbered imperative followed by a dangerous verb.
	KindStructural
)

// Rule is one detection rule as declared in a pack.
type Rule struct {
	Code    string
	Tier    Tier
	Weight  float64
	Kind    MatcherKind
	Phrases []string // KindPhrase
	Pattern string   // KindRegex, KindStructural
}

// compiledRule holds the matchers built from a Rule.
type compiledRule struct {
	Rule
	re       *regexp.Regexp
	shadow   []string // collapsed phrases for shadow matching
	lang     string   // "" for builtin rules
	extended bool     // gated on the language hint
}

func compileRule(r Rule) (compiledRule, error) {
	cr := compiledRule{Rule: r}
	switch r.Kind {
	case KindPhrase:
		pat, shadows := phrasePattern(r.Phrases)
		re, err := regexp.Compile(pat)
		if err != nil {
			return cr, fmt.Errorf("detect: rule %s: %w", r.Code, err)
		}
		cr.re = re
		cr.shadow = shadows
	case KindRegex, KindStructural:
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return cr, fmt.Errorf("detect: rule %s: %w", r.Code, err)
		}
		cr.re = re
	}
	return cr, nil
}

// phrasePattern builds one whitespace-tolerant alternation for a phrase set
// plus the collapsed alphanumeric forms used against the shadow. ASCII
// phrases get word boundaries; phrases with non-ASCII letters do not, since
// \b is ASCII-defined.
func phrasePattern(phrases []string) (string, []string) {
	alts := make([]string, 0, len(phrases))
	shadows := make([]string, 0, len(phrases))
	for _, p := range phrases {
		words := strings.Fields(p)
		escaped := make([]string, len(words))
		for i, w := range words {
			escaped[i] = regexp.QuoteMeta(w)
		}
		alt := strings.Join(escaped, `\s+`)
		if isASCII(p) {
			alt = `\b` + alt + `\b`
		}
		alts = append(alts, alt)
		if s := collapse(p); s != "" {
			shadows = append(shadows, s)
		}
	}
	return "(?i)(?:" + strings.Join(alts, "|") + ")", shadows
}

func isASCII(s string) bool {
	for _, r := range s {
		if r >= 0x80 {
			return false
		}
	}
	return true
}

// collapse lowercases and strips everything outside [a-z0-9], mirroring the
// shadow projection.
func collapse(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteByte(byte(r))
		}
	}
	return b.String()
}
