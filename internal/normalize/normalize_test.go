package normalize

import (
	"strings"
	"testing"
)

func codes(res Result) []string {
	var out []string
	for _, f := range res.Findings {
		out = append(out, f.Code)
	}
	return out
}

func hasCode(res Result, code string) bool {
	for _, f := range res.Findings {
		if f.Code == code {
			return true
		}
	}
	return false
}

func TestNFKCFoldsCompatibilityForms(t *testing.T) {
	res := Run([]byte("ｉｇｎｏｒｅ ﬁle"))
	if res.Text != "ignore file" {
		t.Fatalf("text = %q", res.Text)
	}
	if len(res.Findings) != 0 {
		t.Fatalf("fullwidth text produced findings: %v", codes(res))
	}
}

func TestLineEndingsAndBOM(t *testing.T) {
	res := Run([]byte("\uFEFFone\r\ntwo\rthree"))
	if res.Text != "one\ntwo\nthree" {
		t.Fatalf("text = %q", res.Text)
	}
	// The leading BOM is encoding plumbing, not a hidden character.
	if hasCode(res, CodeZeroWidth) {
		t.Fatalf("leading BOM flagged: %v", codes(res))
	}
}

func TestInteriorBOMIsZeroWidth(t *testing.T) {
	res := Run([]byte("one\uFEFFtwo"))
	if !hasCode(res, CodeZeroWidth) {
		t.Fatalf("codes = %v", codes(res))
	}
}

func TestInvalidUTF8(t *testing.T) {
	res := Run([]byte{'o', 'k', 0xff, 0xfe, '!'})
	if !hasCode(res, CodeEncodingInvalid) {
		t.Fatalf("codes = %v", codes(res))
	}
	if !strings.Contains(res.Text, "�") {
		t.Fatalf("text = %q, want replacement char", res.Text)
	}
}

func TestBidiControlRun(t *testing.T) {
	res := Run([]byte("safe \u202Egpj.exe"))
	if len(res.Hazards) != 1 {
		t.Fatalf("hazards = %+v", res.Hazards)
	}
	h := res.Hazards[0]
	if h.Code != CodeBidiControl || h.Count != 1 || h.Rune != 0x202E {
		t.Fatalf("hazard = %+v", h)
	}
	if res.Findings[0].Weight != 0.6 {
		t.Fatalf("weight = %v", res.Findings[0].Weight)
	}
}

func TestZeroWidthRunGroupsAndLocates(t *testing.T) {
	res := Run([]byte("line one\nig\u200B\u200Bnore"))
	if len(res.Hazards) != 1 {
		t.Fatalf("hazards = %+v", res.Hazards)
	}
	h := res.Hazards[0]
	if h.Code != CodeZeroWidth || h.Count != 2 {
		t.Fatalf("hazard = %+v", h)
	}
	if res.Findings[0].Span.Line != 2 {
		t.Fatalf("line = %d", res.Findings[0].Span.Line)
	}
}

func TestTagCharacters(t *testing.T) {
	res := Run([]byte("hi\U000E0041\U000E0042"))
	if len(res.Hazards) != 1 || res.Hazards[0].Code != CodeTagChars {
		t.Fatalf("hazards = %+v", res.Hazards)
	}
	if res.Findings[0].Weight != 0.7 {
		t.Fatalf("weight = %v", res.Findings[0].Weight)
	}
}

func TestPrivateUseRunThreshold(t *testing.T) {
	short := Run([]byte("xy"))
	if len(short.Hazards) != 0 {
		t.Fatalf("run of 3 flagged: %+v", short.Hazards)
	}
	long := Run([]byte("xy"))
	if len(long.Hazards) != 1 || long.Hazards[0].Code != CodePrivateUseRun || long.Hazards[0].Count != 4 {
		t.Fatalf("hazards = %+v", long.Hazards)
	}
}

func TestShadowProjection(t *testing.T) {
	res := Run([]byte("I-g N:o_r e!42"))
	if res.Shadow.Text != "ignore42" {
		t.Fatalf("shadow = %q", res.Shadow.Text)
	}
	if len(res.Shadow.Offsets) != len(res.Shadow.Text) {
		t.Fatalf("offsets len %d != shadow len %d", len(res.Shadow.Offsets), len(res.Shadow.Text))
	}
	// Each offset points at the rune in Text that produced the shadow byte.
	for i, off := range res.Shadow.Offsets {
		c := res.Text[off]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c != res.Shadow.Text[i] {
			t.Fatalf("offset %d: text %q vs shadow %q", i, c, res.Shadow.Text[i])
		}
	}
}

func TestDeterminism(t *testing.T) {
	in := []byte("ig\u200Bnore \u202E previous \uFB01le")
	a, b := Run(in), Run(in)
	if a.Text != b.Text || a.Shadow.Text != b.Shadow.Text || len(a.Findings) != len(b.Findings) {
		t.Fatal("two runs over identical bytes disagree")
	}
}
