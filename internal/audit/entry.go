package audit

import "github.com/bridgewarden/bridgewarden/internal/model"

// Entry is one line in the hash-chained JSONL audit log. All fields are
// structs and slices (no map[string]any) so json.Marshal field order is
// deterministic and the line hash reproducible.
type Entry struct {
	Timestamp     string            `json:"ts"`
	Tool          string            `json:"tool"`
	Source        model.Source      `json:"source"`
	ContentHash   string            `json:"content_hash,omitempty"`
	RiskScore     float64           `json:"risk_score"`
	Decision      string            `json:"decision"`
	Reasons       []string          `json:"reasons,omitempty"`
	PolicyVersion string            `json:"policy_version"`
	CacheHit      bool              `json:"cache_hit,omitempty"`
	QuarantineID  string            `json:"quarantine_id,omitempty"`
	Redactions    []model.Redaction `json:"redactions_summary,omitempty"`
	PrevHash      string            `json:"prev_hash"`
}

// FromResult builds an audit entry for one scan outcome. Sanitized and
// original text never enter the log; only hashes and metadata do.
func FromResult(tool string, res model.GuardResult) Entry {
	return Entry{
		Tool:          tool,
		Source:        res.Source,
		ContentHash:   res.ContentHash,
		RiskScore:     res.RiskScore,
		Decision:      string(res.Decision),
		Reasons:       res.Reasons,
		PolicyVersion: res.PolicyVersion,
		CacheHit:      res.CacheHit,
		QuarantineID:  res.QuarantineID,
		Redactions:    res.Redactions,
	}
}
