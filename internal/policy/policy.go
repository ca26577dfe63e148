// Package policy turns findings into a score and a decision. Everything
// here is pure: same findings and profile, same outcome.
package policy

import (
	"math"
	"strings"

	"github.com/bridgewarden/bridgewarden/internal/detect"
	"github.com/bridgewarden/bridgewarden/internal/model"
	"github.com/bridgewarden/bridgewarden/internal/normalize"
	"github.com/bridgewarden/bridgewarden/internal/redact"
)

// Thresholds are the WARN and BLOCK score boundaries for one profile.
type Thresholds struct {
	Warn  float64
	Block float64
}

var profiles = map[string]Thresholds{
	"strict":     {Warn: 0.20, Block: 0.40},
	"balanced":   {Warn: 0.35, Block: 0.65},
	"permissive": {Warn: 0.55, Block: 0.80},
}

// ProfileThresholds returns the boundaries for a profile. Unknown profiles
// fail closed to strict.
func ProfileThresholds(profile string) Thresholds {
	if t, ok := profiles[profile]; ok {
		return t
	}
	return profiles["strict"]
}

// hardBlock codes force BLOCK regardless of score.
var hardBlock = map[string]bool{
	model.CodeSSRFBlocked:       true,
	model.CodeNewSourceApproval: true,
	model.CodeSizeExceeded:      true,
	normalize.CodeTagChars:      true,
}

// hideSanitized codes suppress the sanitized text on BLOCK results, so a
// blocked secret or SSRF response never leaks through the safe view.
var hideSanitized = map[string]bool{
	model.CodeSecretExfil: true,
	model.CodeSSRFBlocked: true,
}

// weightSecretExfil is the derived finding's weight when a secret and an
// exfiltration request co-occur.
const weightSecretExfil = 0.8

// Derive appends cross-stage findings. SECRET_EXFIL fires when a redacted
// secret co-occurs with an exfiltration request, plain or obfuscated.
func Derive(findings []model.Finding) []model.Finding {
	var secret, exfil bool
	for _, f := range findings {
		switch {
		case f.Code == redact.CodeSecretFound:
			secret = true
		case f.Code == detect.CodeExfilRequest,
			f.Code == detect.CodeExfilRequest+detect.ObfuscatedSuffix:
			exfil = true
		}
	}
	if secret && exfil {
		findings = append(findings, model.Finding{
			Code:   model.CodeSecretExfil,
			Weight: weightSecretExfil,
		})
	}
	return findings
}

// Score combines finding weights as independent evidence:
// 1 - Π(1 - w), clamped to [0,1] and rounded to 4 decimal places.
// Duplicate codes collapse to their strongest instance first, so three
// zero-width runs weigh the same as one and the score agrees with the
// deduplicated reasons list.
func Score(findings []model.Finding) float64 {
	weights := make(map[string]float64, len(findings))
	for _, f := range findings {
		w := f.Weight
		if w < 0 {
			w = 0
		}
		if w > 1 {
			w = 1
		}
		if w > weights[f.Code] {
			weights[f.Code] = w
		}
	}
	survive := 1.0
	for _, w := range weights {
		survive *= 1 - w
	}
	score := 1 - survive
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return math.Round(score*10000) / 10000
}

// Decide maps a score and findings to a decision under a profile. Hard
// block codes win over any score; ENCODING_INVALID hard-blocks only under
// strict.
func Decide(profile string, findings []model.Finding, score float64) model.Decision {
	for _, f := range findings {
		if hardBlock[f.Code] {
			return model.Block
		}
		if profile == "strict" && f.Code == normalize.CodeEncodingInvalid {
			return model.Block
		}
	}
	t := ProfileThresholds(profile)
	switch {
	case score >= t.Block:
		return model.Block
	case score >= t.Warn:
		return model.Warn
	default:
		return model.Allow
	}
}

// HideSanitized reports whether a blocked result must omit sanitized text.
func HideSanitized(reasons []string) bool {
	for _, r := range reasons {
		if hideSanitized[r] {
			return true
		}
	}
	return false
}

// Reasons projects findings to their codes, deduplicated in order.
func Reasons(findings []model.Finding) []string {
	seen := make(map[string]bool, len(findings))
	out := make([]string, 0, len(findings))
	for _, f := range findings {
		if seen[f.Code] {
			continue
		}
		seen[f.Code] = true
		out = append(out, f.Code)
	}
	return out
}

// ValidProfile reports whether name is a known profile.
func ValidProfile(name string) bool {
	_, ok := profiles[name]
	return ok
}

// ProfileNames lists the known profiles for error messages.
func ProfileNames() string {
	return strings.Join([]string{"strict", "balanced", "permissive"}, ", ")
}
