package audit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bridgewarden/bridgewarden/internal/model"
)

func testEntry(decision string) Entry {
	return FromResult("bw_scan_text", model.GuardResult{
		Decision:      model.Decision(decision),
		RiskScore:     0.42,
		Reasons:       []string{"POLICY_OVERRIDE"},
		Source:        model.Source{Kind: "inline"},
		ContentHash:   "abc123",
		PolicyVersion: "sha256:deadbeef",
	})
}

func TestEntryRedactionsKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	log, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	e := testEntry("BLOCK")
	e.Redactions = []model.Redaction{{Kind: "API_KEY", Count: 2}}
	if err := log.Record(e); err != nil {
		t.Fatal(err)
	}
	if err := log.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"redactions_summary":[{"kind":"API_KEY","count":2}]`) {
		t.Fatalf("log line: %s", data)
	}
}

func TestRecordAndVerify(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	log, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for range 3 {
		if err := log.Record(testEntry("WARN")); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if err := log.Close(); err != nil {
		t.Fatal(err)
	}

	res := Verify(path)
	if !res.Valid {
		t.Fatalf("chain invalid: %+v", res)
	}
	if res.Lines != 3 {
		t.Fatalf("lines = %d, want 3", res.Lines)
	}
}

func TestReopenContinuesChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")

	log, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := log.Record(testEntry("ALLOW")); err != nil {
		t.Fatal(err)
	}
	log.Close()

	log, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := log.Record(testEntry("BLOCK")); err != nil {
		t.Fatal(err)
	}
	log.Close()

	res := Verify(path)
	if !res.Valid || res.Lines != 2 {
		t.Fatalf("verify after reopen: %+v", res)
	}
}

func TestVerifyDetectsEditedMiddleLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	log, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	log.Record(testEntry("ALLOW"))
	log.Record(testEntry("WARN"))
	log.Record(testEntry("BLOCK"))
	log.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	tampered := strings.Replace(string(data), `"WARN"`, `"ALLOW"`, 1)
	if err := os.WriteFile(path, []byte(tampered), 0600); err != nil {
		t.Fatal(err)
	}

	res := Verify(path)
	if res.Valid {
		t.Fatal("tampered middle line not detected")
	}
	if res.ErrorLine != 3 {
		t.Fatalf("error line = %d, want 3", res.ErrorLine)
	}
}

func TestVerifyDetectsTruncation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	log, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	log.Record(testEntry("ALLOW"))
	log.Record(testEntry("WARN"))
	log.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.SplitAfter(string(data), "\n")
	// Drop the first line; the survivor's prev_hash no longer matches genesis.
	if err := os.WriteFile(path, []byte(strings.Join(lines[1:], "")), 0600); err != nil {
		t.Fatal(err)
	}

	res := Verify(path)
	if res.Valid {
		t.Fatal("truncation not detected")
	}
	if res.ErrorLine != 1 {
		t.Fatalf("error line = %d, want 1", res.ErrorLine)
	}
}

func TestTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	log, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	log.Record(testEntry("ALLOW"))
	log.Record(testEntry("WARN"))
	log.Record(testEntry("BLOCK"))
	log.Close()

	entries, err := Tail(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	if entries[1].Decision != "BLOCK" {
		t.Fatalf("last decision = %s", entries[1].Decision)
	}
}

func TestTailMissingFile(t *testing.T) {
	entries, err := Tail(filepath.Join(t.TempDir(), "nope.jsonl"), 10)
	if err != nil || entries != nil {
		t.Fatalf("got %v, %v; want nil, nil", entries, err)
	}
}
