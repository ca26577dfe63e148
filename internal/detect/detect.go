package detect

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/bridgewarden/bridgewarden/internal/model"
)

// PackVersion identifies the built-in rule tables. It feeds the policy
// version hash, so bumping it on rule changes rotates the version.
const PackVersion = "2026.08"

// DefaultMaxFindings caps detector output per scan.
const DefaultMaxFindings = 64

// weightRuleLimit is attached to the RULE_LIMIT_REACHED marker finding.
const weightRuleLimit = 0.1

// Packs is a compiled, immutable rule set. Build once per policy snapshot
// and share across requests.
type Packs struct {
	rules []compiledRule
}

// Load compiles the built-in rules plus any extra rules (typically from a
// user pack file). Extra rules run after the built-ins.
func Load(extra ...Rule) (*Packs, error) {
	var rules []compiledRule

	add := func(r Rule, lang string, extended bool) error {
		cr, err := compileRule(r)
		if err != nil {
			return err
		}
		cr.lang = lang
		cr.extended = extended
		rules = append(rules, cr)
		return nil
	}

	for _, r := range builtinRules {
		if err := add(r, "", false); err != nil {
			return nil, err
		}
	}
	for _, p := range corePacks {
		for _, r := range p.Rules {
			if err := add(r, p.Lang, false); err != nil {
				return nil, err
			}
		}
	}
	for _, p := range extendedPacks {
		for _, r := range p.Rules {
			if err := add(r, p.Lang, true); err != nil {
				return nil, err
			}
		}
	}
	for _, r := range extra {
		if err := add(r, "", false); err != nil {
			return nil, err
		}
	}
	return &Packs{rules: rules}, nil
}

// RuleCount reports the number of compiled rules.
func (p *Packs) RuleCount() int { return len(p.rules) }

// Run matches every active rule against the normalized text and, for phrase
// rules, against the shadow. Findings come back in rule declaration order,
// at most one per reason code. Shadow-only hits carry the _OBFUSCATED
// suffix at 0.8× weight and are skipped when the same rule already matched
// the plain text.
func (p *Packs) Run(text string, shadow Shadow, profile string, maxFindings int) []model.Finding {
	if maxFindings <= 0 {
		maxFindings = DefaultMaxFindings
	}
	tier := TierForProfile(profile)
	hints := languageHints(text)

	var (
		findings []model.Finding
		byCode   = make(map[string]bool)
	)
	emit := func(f model.Finding) {
		if byCode[f.Code] {
			return
		}
		byCode[f.Code] = true
		findings = append(findings, f)
	}

	for _, r := range p.rules {
		if r.Tier > tier {
			continue
		}
		if r.extended && !hints[r.lang] {
			continue
		}

		plain := false
		if loc := r.re.FindStringIndex(text); loc != nil {
			plain = true
			emit(model.Finding{
				Code:   r.Code,
				Weight: r.Weight,
				Span: &model.Span{
					Start: loc[0],
					End:   loc[1],
					Line:  lineOf(text, loc[0]),
				},
			})
		}
		if plain || len(r.shadow) == 0 {
			continue
		}
		for _, needle := range r.shadow {
			idx := strings.Index(shadow.Text, needle)
			if idx < 0 {
				continue
			}
			span := shadowSpan(text, shadow, idx, len(needle))
			emit(model.Finding{
				Code:   r.Code + ObfuscatedSuffix,
				Weight: round4(r.Weight * 0.8),
				Span:   span,
			})
			break
		}
	}

	if len(findings) > maxFindings {
		findings = findings[:maxFindings]
		findings = append(findings, model.Finding{
			Code:   CodeRuleLimitReached,
			Weight: weightRuleLimit,
		})
	}
	return findings
}

// Shadow is the collapsed projection the detector matches phrase rules
// against. Offsets[i] is the byte offset in the normalized text of the rune
// that produced shadow byte i.
type Shadow struct {
	Text    string
	Offsets []int
}

// shadowSpan maps a shadow substring back to a span in the normalized text.
func shadowSpan(text string, shadow Shadow, idx, n int) *model.Span {
	if idx+n > len(shadow.Offsets) || n == 0 {
		return nil
	}
	start := shadow.Offsets[idx]
	last := shadow.Offsets[idx+n-1]
	_, size := utf8.DecodeRuneInString(text[last:])
	return &model.Span{
		Start: start,
		End:   last + size,
		Line:  lineOf(text, start),
	}
}

func lineOf(text string, pos int) int {
	if pos > len(text) {
		pos = len(text)
	}
	return 1 + strings.Count(text[:pos], "\n")
}

func round4(v float64) float64 {
	return float64(int(v*10000+0.5)) / 10000
}

// packFile is the on-disk shape of a user rule pack.
type packFile struct {
	Rules []struct {
		Code    string   `yaml:"code"`
		Profile string   `yaml:"profile"`
		Weight  float64  `yaml:"weight"`
		Phrases []string `yaml:"phrases"`
		Pattern string   `yaml:"pattern"`
	} `yaml:"rules"`
}

// LoadFile reads extra rules from a YAML pack file. Rules with phrases
// become phrase rules; rules with a pattern become regex rules.
func LoadFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("detect: read pack: %w", err)
	}
	var pf packFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("detect: parse pack: %w", err)
	}

	rules := make([]Rule, 0, len(pf.Rules))
	for i, fr := range pf.Rules {
		if fr.Code == "" {
			return nil, fmt.Errorf("detect: pack rule %d: missing code", i)
		}
		if fr.Weight <= 0 || fr.Weight > 1 {
			return nil, fmt.Errorf("detect: pack rule %s: weight must be in (0,1]", fr.Code)
		}
		r := Rule{
			Code:   fr.Code,
			Tier:   tierFromName(fr.Profile),
			Weight: fr.Weight,
		}
		switch {
		case len(fr.Phrases) > 0:
			r.Kind = KindPhrase
			r.Phrases = fr.Phrases
		case fr.Pattern != "":
			r.Kind = KindRegex
			r.Pattern = fr.Pattern
		default:
			return nil, fmt.Errorf("detect: pack rule %s: needs phrases or pattern", fr.Code)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func tierFromName(name string) Tier {
	switch name {
	case "balanced":
		return TierBalanced
	case "strict":
		return TierStrict
	default:
		return TierPermissive
	}
}
