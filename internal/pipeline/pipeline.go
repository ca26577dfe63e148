// Package pipeline runs the inspection stages in fixed order: normalize,
// sanitize, detect, redact, score, decide, quarantine, audit. A scan is a
// pure function of its input bytes, source descriptor, and policy
// snapshot; everything after the decision is persistence.
package pipeline

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bridgewarden/bridgewarden/internal/audit"
	"github.com/bridgewarden/bridgewarden/internal/detect"
	"github.com/bridgewarden/bridgewarden/internal/model"
	"github.com/bridgewarden/bridgewarden/internal/normalize"
	"github.com/bridgewarden/bridgewarden/internal/policy"
	"github.com/bridgewarden/bridgewarden/internal/quarantine"
	"github.com/bridgewarden/bridgewarden/internal/redact"
	"github.com/bridgewarden/bridgewarden/internal/sanitize"
)

// Pipeline owns the stores shared across scans. The policy snapshot is
// passed per call so reloads never affect an in-flight scan.
type Pipeline struct {
	quarantine *quarantine.Store
	auditLog   *audit.Log
	log        *zap.Logger
}

// New builds a pipeline. auditLog may be nil for one-shot CLI scans; log
// may be nil to disable diagnostics.
func New(q *quarantine.Store, auditLog *audit.Log, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{quarantine: q, auditLog: auditLog, log: log}
}

// Request is one scan of raw bytes.
type Request struct {
	Raw    []byte
	Source model.Source
	Tool   string
	// Profile overrides the snapshot's profile when non-empty.
	Profile string
}

// Scan runs the full pipeline. It never panics outward: any internal
// failure produces a BLOCK with reason INTERNAL_ERROR, carrying nothing of
// the offending text except its hash.
func (p *Pipeline) Scan(snap *policy.Snapshot, req Request) (result model.GuardResult) {
	contentHash := model.ContentHash(req.Raw)
	if req.Source.RequestID == "" {
		req.Source.RequestID = uuid.NewString()
	}

	defer func() {
		if r := recover(); r != nil {
			p.log.Error("pipeline panic, failing closed",
				zap.Any("panic", r),
				zap.String("content_hash", contentHash))
			version := ""
			if snap != nil {
				version = snap.Version
			}
			result = model.GuardResult{
				Decision:      model.Block,
				RiskScore:     1,
				Reasons:       []string{model.CodeInternalError},
				Source:        req.Source,
				ContentHash:   contentHash,
				PolicyVersion: version,
			}
			p.record(req.Tool, result)
		}
	}()

	profile := req.Profile
	if profile == "" {
		profile = snap.Cfg.Profile
	}

	norm := normalize.Run(req.Raw)
	sanitized := sanitize.Run(norm.Text, norm.Hazards)

	findings := norm.Findings
	findings = append(findings, snap.Packs.Run(
		norm.Text, detect.Shadow(norm.Shadow), profile, detect.DefaultMaxFindings)...)

	red := redact.Run(sanitized)
	sanitized = red.Text
	if red.Finding != nil {
		findings = append(findings, *red.Finding)
	}
	findings = policy.Derive(findings)

	score := policy.Score(findings)
	decision := policy.Decide(profile, findings, score)
	reasons := policy.Reasons(findings)
	if reasons == nil {
		reasons = []string{}
	}

	result = model.GuardResult{
		Decision:      decision,
		RiskScore:     score,
		Reasons:       reasons,
		Source:        req.Source,
		ContentHash:   contentHash,
		SanitizedText: sanitized,
		Redactions:    red.Redactions,
		PolicyVersion: snap.Version,
	}

	if decision == model.Block {
		id, hit, err := p.quarantine.Put(model.QuarantineRecord{
			Source:        req.Source,
			Original:      string(req.Raw),
			Sanitized:     sanitized,
			Findings:      findings,
			Redactions:    red.Redactions,
			Decision:      decision,
			RiskScore:     score,
			PolicyVersion: snap.Version,
			ContentHash:   contentHash,
		})
		if err != nil {
			p.log.Error("quarantine write failed", zap.Error(err))
		} else {
			result.QuarantineID = id
			result.CacheHit = hit
		}
		if policy.HideSanitized(reasons) {
			result.SanitizedText = ""
		}
	}

	p.record(req.Tool, result)
	return result
}

// Refuse builds a BLOCK result for a guard decision made before any bytes
// were read: missing approval, SSRF, disabled network. There is no content,
// so no hash, no sanitized text, and no quarantine.
func (p *Pipeline) Refuse(snap *policy.Snapshot, tool string, source model.Source, codes ...string) model.GuardResult {
	if source.RequestID == "" {
		source.RequestID = uuid.NewString()
	}
	result := model.GuardResult{
		Decision:      model.Block,
		RiskScore:     0,
		Reasons:       codes,
		Source:        source,
		PolicyVersion: snap.Version,
	}
	p.record(tool, result)
	return result
}

func (p *Pipeline) record(tool string, res model.GuardResult) {
	if p.auditLog == nil {
		return
	}
	if err := p.auditLog.Record(audit.FromResult(tool, res)); err != nil {
		p.log.Error("audit append failed", zap.Error(err))
	}
}
