package policy

import (
	"testing"

	"github.com/bridgewarden/bridgewarden/internal/config"
	"github.com/bridgewarden/bridgewarden/internal/detect"
	"github.com/bridgewarden/bridgewarden/internal/model"
)

func f(code string, w float64) model.Finding {
	return model.Finding{Code: code, Weight: w}
}

func TestScoreCombines(t *testing.T) {
	got := Score([]model.Finding{f("A", 0.5), f("B", 0.4)})
	if got != 0.7 {
		t.Fatalf("score = %v, want 0.7", got)
	}
}

func TestScoreRoundsToFourPlaces(t *testing.T) {
	got := Score([]model.Finding{f("A", 0.55), f("B", 0.44)})
	// 1 - 0.45*0.56 = 0.748
	if got != 0.748 {
		t.Fatalf("score = %v, want 0.748", got)
	}
	got = Score([]model.Finding{f("A", 0.333), f("B", 0.333)})
	// 1 - 0.667^2 = 0.555111
	if got != 0.5551 {
		t.Fatalf("score = %v, want 0.5551", got)
	}
}

func TestScoreCollapsesDuplicateCodes(t *testing.T) {
	got := Score([]model.Finding{f("ZERO_WIDTH", 0.4), f("ZERO_WIDTH", 0.4), f("ZERO_WIDTH", 0.4)})
	if got != 0.4 {
		t.Fatalf("score = %v, want 0.4", got)
	}
	// The strongest instance of a code wins before the product.
	got = Score([]model.Finding{f("A", 0.2), f("A", 0.5), f("B", 0.4)})
	if got != 0.7 {
		t.Fatalf("score = %v, want 0.7", got)
	}
}

func TestScoreEmpty(t *testing.T) {
	if got := Score(nil); got != 0 {
		t.Fatalf("score = %v, want 0", got)
	}
}

func TestScoreClampsWeights(t *testing.T) {
	if got := Score([]model.Finding{f("A", 1.5)}); got != 1 {
		t.Fatalf("score = %v, want 1", got)
	}
	if got := Score([]model.Finding{f("A", -0.3)}); got != 0 {
		t.Fatalf("score = %v, want 0", got)
	}
}

func TestDecideThresholds(t *testing.T) {
	cases := []struct {
		profile string
		score   float64
		want    model.Decision
	}{
		{"balanced", 0.10, model.Allow},
		{"balanced", 0.35, model.Warn},
		{"balanced", 0.64, model.Warn},
		{"balanced", 0.65, model.Block},
		{"strict", 0.19, model.Allow},
		{"strict", 0.20, model.Warn},
		{"strict", 0.40, model.Block},
		{"permissive", 0.54, model.Allow},
		{"permissive", 0.55, model.Warn},
		{"permissive", 0.80, model.Block},
	}
	for _, c := range cases {
		if got := Decide(c.profile, nil, c.score); got != c.want {
			t.Errorf("Decide(%s, %v) = %s, want %s", c.profile, c.score, got, c.want)
		}
	}
}

func TestHardBlockWinsOverScore(t *testing.T) {
	findings := []model.Finding{f("TAG_CHARS", 0.7)}
	if got := Decide("permissive", findings, 0.1); got != model.Block {
		t.Fatalf("decision = %s, want BLOCK", got)
	}
	findings = []model.Finding{f(model.CodeSSRFBlocked, 0)}
	if got := Decide("permissive", findings, 0); got != model.Block {
		t.Fatalf("decision = %s, want BLOCK", got)
	}
}

func TestEncodingInvalidBlocksOnlyStrict(t *testing.T) {
	findings := []model.Finding{f("ENCODING_INVALID", 0.3)}
	if got := Decide("strict", findings, 0.3); got != model.Block {
		t.Fatalf("strict: %s, want BLOCK", got)
	}
	if got := Decide("balanced", findings, 0.3); got != model.Allow {
		t.Fatalf("balanced: %s, want ALLOW", got)
	}
}

func TestUnknownProfileUsesStrictThresholds(t *testing.T) {
	if got := Decide("nope", nil, 0.25); got != model.Warn {
		t.Fatalf("decision = %s, want WARN", got)
	}
}

func TestDeriveSecretExfil(t *testing.T) {
	findings := Derive([]model.Finding{
		f("SECRET_FOUND", 0.6),
		f("EXFIL_REQUEST", 0.6),
	})
	last := findings[len(findings)-1]
	if last.Code != model.CodeSecretExfil || last.Weight != 0.8 {
		t.Fatalf("derived = %+v", last)
	}

	// Obfuscated exfil still derives.
	findings = Derive([]model.Finding{
		f("SECRET_FOUND", 0.6),
		f("EXFIL_REQUEST_OBFUSCATED", 0.48),
	})
	if findings[len(findings)-1].Code != model.CodeSecretExfil {
		t.Fatal("obfuscated exfil did not derive SECRET_EXFIL")
	}

	// Either alone does not.
	findings = Derive([]model.Finding{f("SECRET_FOUND", 0.6)})
	if len(findings) != 1 {
		t.Fatalf("unexpected derivation: %+v", findings)
	}
}

func TestHideSanitized(t *testing.T) {
	if !HideSanitized([]string{"ZERO_WIDTH", model.CodeSecretExfil}) {
		t.Fatal("SECRET_EXFIL should hide sanitized text")
	}
	if !HideSanitized([]string{model.CodeSSRFBlocked}) {
		t.Fatal("SSRF_BLOCKED should hide sanitized text")
	}
	if HideSanitized([]string{"POLICY_OVERRIDE", "SECRET_FOUND"}) {
		t.Fatal("plain findings should not hide sanitized text")
	}
}

func TestReasonsDedupe(t *testing.T) {
	got := Reasons([]model.Finding{f("A", 0.1), f("B", 0.2), f("A", 0.1)})
	if len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Fatalf("reasons = %v", got)
	}
}

func TestSnapshotVersionRotates(t *testing.T) {
	packs, err := detect.Load()
	if err != nil {
		t.Fatal(err)
	}
	a := NewSnapshot(config.Default(), "sha256:aaaa", packs)
	b := NewSnapshot(config.Default(), "sha256:bbbb", packs)
	if a.Version == b.Version {
		t.Fatal("config hash change must rotate the policy version")
	}

	cfg := config.Default()
	cfg.Profile = "strict"
	c := NewSnapshot(cfg, "sha256:aaaa", packs)
	if c.Version == a.Version {
		t.Fatal("profile change must rotate the policy version")
	}
}
