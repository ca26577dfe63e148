// Package model holds the shared types that cross package boundaries:
// pipeline results, findings, source descriptors, and persisted records.
package model

import (
	"crypto/sha256"
	"encoding/hex"
)

// Decision is the policy outcome for one piece of content.
type Decision string

const (
	Allow Decision = "ALLOW"
	Warn  Decision = "WARN"
	Block Decision = "BLOCK"
)

// Span locates a finding in the normalized text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
	Line  int `json:"line"`
}

// Finding is a single detection hit with its scoring weight.
type Finding struct {
	Code   string  `json:"code"`
	Span   *Span   `json:"span,omitempty"`
	Weight float64 `json:"weight"`
}

// Redaction counts masked secrets of one kind.
type Redaction struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

// Source describes where scanned content came from.
type Source struct {
	Kind      string `json:"kind"`
	URL       string `json:"url,omitempty"`
	Path      string `json:"path,omitempty"`
	Domain    string `json:"domain,omitempty"`
	RepoID    string `json:"repo_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// GuardResult is the external result of one scan. Identical input bytes
// under the same policy version produce an identical result.
type GuardResult struct {
	Decision      Decision    `json:"decision"`
	RiskScore     float64     `json:"risk_score"`
	Reasons       []string    `json:"reasons"`
	Source        Source      `json:"source"`
	ContentHash   string      `json:"content_hash"`
	SanitizedText string      `json:"sanitized_text"`
	QuarantineID  string      `json:"quarantine_id,omitempty"`
	Redactions    []Redaction `json:"redactions"`
	CacheHit      bool        `json:"cache_hit"`
	PolicyVersion string      `json:"policy_version"`
	ApprovalID    string      `json:"approval_id,omitempty"`
}

// QuarantineRecord is the immutable stored form of a blocked original.
type QuarantineRecord struct {
	ID            string      `json:"id"`
	CreatedAt     string      `json:"created_at"`
	Source        Source      `json:"source"`
	Original      string      `json:"original"`
	Sanitized     string      `json:"sanitized"`
	Findings      []Finding   `json:"findings"`
	Redactions    []Redaction `json:"redactions"`
	Decision      Decision    `json:"decision"`
	RiskScore     float64     `json:"risk_score"`
	PolicyVersion string      `json:"policy_version"`
	ContentHash   string      `json:"content_hash"`
}

// FileFinding is the per-file outcome of a repository scan.
type FileFinding struct {
	Path        string   `json:"path"`
	Decision    Decision `json:"decision"`
	RiskScore   float64  `json:"risk_score"`
	Reasons     []string `json:"reasons"`
	ContentHash string   `json:"content_hash"`
}

// ChangedFile reports a path's status relative to the baseline revision.
type ChangedFile struct {
	Path   string `json:"path"`
	Status string `json:"status"` // added, modified, unchanged
}

// RepoSummary aggregates per-file decisions for one repo fetch.
type RepoSummary struct {
	Total     int `json:"total"`
	Allowed   int `json:"allowed"`
	Warned    int `json:"warned"`
	Blocked   int `json:"blocked"`
	CacheHits int `json:"cache_hits"`
}

// RepoScanResult is the response of bw_fetch_repo.
type RepoScanResult struct {
	RepoID        string        `json:"repo_id"`
	NewRevision   string        `json:"new_revision"`
	ChangedFiles  []ChangedFile `json:"changed_files"`
	Summary       RepoSummary   `json:"summary"`
	Findings      []FileFinding `json:"findings"`
	QuarantineIDs []string      `json:"quarantine_ids"`
	Reasons       []string      `json:"reasons,omitempty"`
	Source        Source        `json:"source"`
	ApprovalID    string        `json:"approval_id,omitempty"`
}

// ContentHash returns the hex SHA-256 of the original, pre-normalization bytes.
func ContentHash(raw []byte) string {
	h := sha256.Sum256(raw)
	return hex.EncodeToString(h[:])
}
