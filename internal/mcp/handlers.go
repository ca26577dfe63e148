package mcp

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/bridgewarden/bridgewarden/internal/approvals"
	"github.com/bridgewarden/bridgewarden/internal/fetch"
	"github.com/bridgewarden/bridgewarden/internal/model"
	"github.com/bridgewarden/bridgewarden/internal/pipeline"
	"github.com/bridgewarden/bridgewarden/internal/policy"
)

// --- Input/Output types ---

// ReadFileInput selects a file under the configured base directory, or a
// sanitized file from a previously fetched repository when repo_id is set.
type ReadFileInput struct {
	Path   string `json:"path" jsonschema:"file path relative to the base directory"`
	RepoID string `json:"repo_id,omitempty" jsonschema:"read from a fetched repository instead of the base directory"`
	Mode   string `json:"mode,omitempty" jsonschema:"raw_text or readable_text (default raw_text)"`
}

// WebFetchInput fetches one page.
type WebFetchInput struct {
	URL      string `json:"url" jsonschema:"http(s) URL to fetch"`
	Mode     string `json:"mode,omitempty" jsonschema:"readable_text (default) or raw_text"`
	MaxBytes int64  `json:"max_bytes,omitempty" jsonschema:"response size cap, bounded by the configured web cap"`
}

// FetchRepoInput fetches and inspects a repository archive.
type FetchRepoInput struct {
	URL              string   `json:"url" jsonschema:"https repository URL on a supported forge"`
	Ref              string   `json:"ref,omitempty" jsonschema:"branch, tag, or commit (default HEAD)"`
	Depth            int      `json:"depth,omitempty" jsonschema:"maximum directory depth, 0 for unlimited"`
	IncludePaths     []string `json:"include_paths,omitempty" jsonschema:"path prefixes or globs to include"`
	ExcludePaths     []string `json:"exclude_paths,omitempty" jsonschema:"path prefixes or globs to exclude"`
	BaselineRevision string   `json:"baseline_revision,omitempty" jsonschema:"revision to diff against (default: latest recorded)"`
}

// QuarantineGetInput names one quarantine record.
type QuarantineGetInput struct {
	ID string `json:"id" jsonschema:"quarantine id (q_ followed by 16 hex digits)"`
}

// QuarantineMetadata is the non-content part of a quarantine record.
type QuarantineMetadata struct {
	Source        model.Source      `json:"source"`
	CreatedAt     string            `json:"created_at"`
	Decision      model.Decision    `json:"decision"`
	ContentHash   string            `json:"content_hash"`
	PolicyVersion string            `json:"policy_version"`
	Redactions    []model.Redaction `json:"redactions"`
}

// QuarantineGetOutput is the safe view of a blocked original.
type QuarantineGetOutput struct {
	OriginalExcerpt string             `json:"original_excerpt"`
	SanitizedText   string             `json:"sanitized_text"`
	Metadata        QuarantineMetadata `json:"metadata"`
	Reasons         []string           `json:"reasons"`
	RiskScore       float64            `json:"risk_score"`
}

// ApprovalRequest names a source needing approval.
type ApprovalRequest struct {
	Kind   string `json:"kind" jsonschema:"web_domain, repo_url, or upstream_mcp_server"`
	Target string `json:"target" jsonschema:"domain, canonical repo URL with ref, or server URL"`
}

// RequestApprovalInput wraps the request.
type RequestApprovalInput struct {
	Request ApprovalRequest `json:"request"`
}

// GetApprovalInput names one approval record.
type GetApprovalInput struct {
	ApprovalID string `json:"approval_id"`
}

// ListApprovalsInput filters the approval listing.
type ListApprovalsInput struct {
	Status string `json:"status,omitempty" jsonschema:"PENDING, APPROVED, or DENIED"`
	Kind   string `json:"kind,omitempty" jsonschema:"web_domain, repo_url, or upstream_mcp_server"`
	Limit  int    `json:"limit,omitempty"`
}

// ListApprovalsOutput is the filtered listing, newest first.
type ListApprovalsOutput struct {
	Approvals []approvals.Record `json:"approvals"`
}

// DecideApprovalInput resolves one pending approval.
type DecideApprovalInput struct {
	ApprovalID string `json:"approval_id"`
	Decision   string `json:"decision" jsonschema:"approve or deny"`
	Notes      string `json:"notes,omitempty"`
}

var validRepoID = regexp.MustCompile(`^r_[0-9a-f]{16}$`)

// --- Handlers ---

func (s *Server) handleReadFile(ctx context.Context, req *mcpsdk.CallToolRequest, in ReadFileInput) (*mcpsdk.CallToolResult, model.GuardResult, error) {
	snap := s.Snapshot()

	mode := in.Mode
	if mode == "" {
		mode = fetch.ModeRawText
	}
	if mode != fetch.ModeRawText && mode != fetch.ModeReadableText {
		return nil, model.GuardResult{}, fmt.Errorf("%s: invalid mode %q", model.CodeInvalidMode, in.Mode)
	}

	base := snap.Cfg.BaseDir
	if in.RepoID != "" {
		if !validRepoID.MatchString(in.RepoID) {
			return nil, model.GuardResult{}, fmt.Errorf("invalid repo id %q", in.RepoID)
		}
		base = filepath.Join(s.dataDir, "repos", in.RepoID, "files")
	} else if base == "" {
		base = "."
	}

	ff := fetch.FileFetcher{Base: base, MaxBytes: snap.Cfg.FileMaxBytes}
	data, src, err := ff.Fetch(in.Path)
	src.RepoID = in.RepoID
	if err != nil {
		if res, handled := s.refusal(snap, "bw_read_file", src, err); handled {
			return nil, res, nil
		}
		return nil, model.GuardResult{}, err
	}

	if mode == fetch.ModeReadableText {
		data = []byte(fetch.ExtractReadableText(data))
	}
	res := s.pipe.Scan(snap, pipeline.Request{Raw: data, Source: src, Tool: "bw_read_file"})
	return nil, res, nil
}

func (s *Server) handleWebFetch(ctx context.Context, req *mcpsdk.CallToolRequest, in WebFetchInput) (*mcpsdk.CallToolResult, model.GuardResult, error) {
	snap := s.Snapshot()
	src := model.Source{Kind: "web", URL: in.URL}

	mode := in.Mode
	if mode == "" {
		mode = fetch.ModeReadableText
	}
	if mode != fetch.ModeRawText && mode != fetch.ModeReadableText {
		return nil, model.GuardResult{}, fmt.Errorf("%s: invalid mode %q", model.CodeInvalidMode, in.Mode)
	}

	u, err := fetch.ParseWebURL(in.URL)
	if err != nil {
		if res, handled := s.refusal(snap, "bw_web_fetch", src, err); handled {
			return nil, res, nil
		}
		return nil, model.GuardResult{}, err
	}
	host := u.Hostname()
	src.Domain = host

	if !snap.Cfg.Network.Enabled {
		return nil, s.pipe.Refuse(snap, "bw_web_fetch", src, model.CodeNetworkDisabled), nil
	}

	// SSRF is checked before approvals: a loopback target is refused as
	// SSRF_BLOCKED, never turned into an approval request. Hostname targets
	// get the resolver-backed check inside the fetcher.
	if err := fetch.CheckHostLiteral(host); err != nil {
		res, _ := s.refusal(snap, "bw_web_fetch", src, err)
		return nil, res, nil
	}

	allow := append(append([]string{}, snap.Cfg.Approvals.AllowedWebDomains...),
		snap.Cfg.Network.AllowedWebHosts...)
	if !fetch.HostAllowed(host, allow) {
		if res, blocked := s.sourceGate(snap, "bw_web_fetch", src, approvals.KindWebDomain, host); blocked {
			return nil, res, nil
		}
	}

	if err := s.acquireFetch(ctx); err != nil {
		return nil, model.GuardResult{}, err
	}
	w := fetch.WebFetcher{Net: snap.Cfg.Network}
	data, src, err := w.Fetch(ctx, u, in.MaxBytes)
	s.releaseFetch()
	if err != nil {
		if res, handled := s.refusal(snap, "bw_web_fetch", src, err); handled {
			return nil, res, nil
		}
		return nil, model.GuardResult{}, err
	}

	if mode == fetch.ModeReadableText {
		data = []byte(fetch.ExtractReadableText(data))
	}
	res := s.pipe.Scan(snap, pipeline.Request{Raw: data, Source: src, Tool: "bw_web_fetch"})
	return nil, res, nil
}

func (s *Server) handleFetchRepo(ctx context.Context, req *mcpsdk.CallToolRequest, in FetchRepoInput) (*mcpsdk.CallToolResult, model.RepoScanResult, error) {
	snap := s.Snapshot()
	src := model.Source{Kind: "repo", URL: in.URL}

	rr, err := fetch.ParseRepoURL(in.URL, in.Ref)
	if err != nil {
		var ge *fetch.GuardError
		if errors.As(err, &ge) {
			return nil, s.refuseRepo(snap, src, "", ge.Code), nil
		}
		return nil, model.RepoScanResult{}, err
	}
	src.URL = rr.CanonicalURL
	src.RepoID = rr.ID()

	if !snap.Cfg.Network.Enabled {
		return nil, s.refuseRepo(snap, src, "", model.CodeNetworkDisabled), nil
	}

	if !repoAllowed(rr, snap) {
		gate, blocked := s.sourceGate(snap, "bw_fetch_repo", src, approvals.KindRepoURL, rr.Key())
		if blocked {
			return nil, s.repoFromRefusal(src, gate), nil
		}
	}

	if err := s.acquireFetch(ctx); err != nil {
		return nil, model.RepoScanResult{}, err
	}
	rf := fetch.RepoFetcher{Net: snap.Cfg.Network}
	files, err := rf.Fetch(ctx, rr, fetch.RepoOptions{
		IncludePaths: in.IncludePaths,
		ExcludePaths: in.ExcludePaths,
		Depth:        in.Depth,
	})
	s.releaseFetch()
	if err != nil {
		var ge *fetch.GuardError
		if errors.As(err, &ge) {
			return nil, s.refuseRepo(snap, src, "", ge.Code), nil
		}
		return nil, model.RepoScanResult{}, err
	}

	filesDir := filepath.Join(s.dataDir, "repos", rr.ID(), "files")
	out, err := s.pipe.ScanRepo(snap, rr, files, s.manifest, filesDir, in.BaselineRevision)
	if err != nil {
		var bi *fetch.BadInputError
		if errors.As(err, &bi) {
			return nil, model.RepoScanResult{}, err
		}
		// Manifest trouble fails closed rather than returning a partial scan.
		return nil, s.refuseRepo(snap, src, "", model.CodeInternalError), nil
	}
	return nil, out, nil
}

func (s *Server) handleQuarantineGet(ctx context.Context, req *mcpsdk.CallToolRequest, in QuarantineGetInput) (*mcpsdk.CallToolResult, QuarantineGetOutput, error) {
	rec, err := s.quarantine.Get(in.ID)
	if err != nil {
		return nil, QuarantineGetOutput{}, err
	}
	excerpt, err := s.quarantine.SafeView(in.ID)
	if err != nil {
		return nil, QuarantineGetOutput{}, err
	}
	reasons := policy.Reasons(rec.Findings)
	if reasons == nil {
		reasons = []string{}
	}
	return nil, QuarantineGetOutput{
		OriginalExcerpt: excerpt,
		SanitizedText:   rec.Sanitized,
		Metadata: QuarantineMetadata{
			Source:        rec.Source,
			CreatedAt:     rec.CreatedAt,
			Decision:      rec.Decision,
			ContentHash:   rec.ContentHash,
			PolicyVersion: rec.PolicyVersion,
			Redactions:    rec.Redactions,
		},
		Reasons:   reasons,
		RiskScore: rec.RiskScore,
	}, nil
}

func (s *Server) handleRequestApproval(ctx context.Context, req *mcpsdk.CallToolRequest, in RequestApprovalInput) (*mcpsdk.CallToolResult, approvals.Record, error) {
	if err := validKind(in.Request.Kind); err != nil {
		return nil, approvals.Record{}, err
	}
	if strings.TrimSpace(in.Request.Target) == "" {
		return nil, approvals.Record{}, fmt.Errorf("target is required")
	}
	rec, err := s.approvals.Request(in.Request.Kind, in.Request.Target)
	if err != nil {
		return nil, approvals.Record{}, err
	}
	return nil, rec, nil
}

func (s *Server) handleGetApproval(ctx context.Context, req *mcpsdk.CallToolRequest, in GetApprovalInput) (*mcpsdk.CallToolResult, approvals.Record, error) {
	rec, err := s.approvals.Get(in.ApprovalID)
	if err != nil {
		return nil, approvals.Record{}, err
	}
	return nil, rec, nil
}

func (s *Server) handleListApprovals(ctx context.Context, req *mcpsdk.CallToolRequest, in ListApprovalsInput) (*mcpsdk.CallToolResult, ListApprovalsOutput, error) {
	if in.Kind != "" {
		if err := validKind(in.Kind); err != nil {
			return nil, ListApprovalsOutput{}, err
		}
	}
	switch approvals.Status(in.Status) {
	case "", approvals.StatusPending, approvals.StatusApproved, approvals.StatusDenied:
	default:
		return nil, ListApprovalsOutput{}, fmt.Errorf("invalid status %q", in.Status)
	}

	recs, err := s.approvals.List(approvals.ListFilter{
		Status: approvals.Status(in.Status),
		Kind:   in.Kind,
		Limit:  in.Limit,
	})
	if err != nil {
		return nil, ListApprovalsOutput{}, err
	}
	if recs == nil {
		recs = []approvals.Record{}
	}
	return nil, ListApprovalsOutput{Approvals: recs}, nil
}

func (s *Server) handleDecideApproval(ctx context.Context, req *mcpsdk.CallToolRequest, in DecideApprovalInput) (*mcpsdk.CallToolResult, approvals.Record, error) {
	var approve bool
	switch strings.ToLower(in.Decision) {
	case "approve", "approved":
		approve = true
	case "deny", "denied":
	default:
		return nil, approvals.Record{}, fmt.Errorf("invalid decision %q, want approve or deny", in.Decision)
	}
	rec, err := s.approvals.Resolve(in.ApprovalID, approve, "mcp", in.Notes)
	if err != nil {
		return nil, approvals.Record{}, err
	}
	return nil, rec, nil
}

// acquireFetch takes a slot on the fetch semaphore, waiting in FIFO-ish
// order when all slots are busy.
func (s *Server) acquireFetch(ctx context.Context) error {
	select {
	case s.fetchSem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) releaseFetch() { <-s.fetchSem }

// --- Guard helpers ---

// refusal converts fetcher errors into policy refusals. Guard errors become
// a BLOCK GuardResult; anything else is reported as handled=false and goes
// back to the client as a JSON-RPC error.
func (s *Server) refusal(snap *policy.Snapshot, tool string, src model.Source, err error) (model.GuardResult, bool) {
	var ge *fetch.GuardError
	if errors.As(err, &ge) {
		return s.pipe.Refuse(snap, tool, src, ge.Code), true
	}
	return model.GuardResult{}, false
}

// sourceGate applies the approval workflow to a source that is not on any
// allowlist. blocked=false means the source is APPROVED and the fetch may
// proceed.
func (s *Server) sourceGate(snap *policy.Snapshot, tool string, src model.Source, kind, target string) (model.GuardResult, bool) {
	rec, found, err := s.approvals.Find(kind, target)
	if err != nil {
		s.log.Error("approval lookup failed", zap.Error(err))
		return s.pipe.Refuse(snap, tool, src, model.CodeInternalError), true
	}
	if found {
		switch rec.Status {
		case approvals.StatusApproved:
			return model.GuardResult{}, false
		case approvals.StatusDenied:
			return s.pipe.Refuse(snap, tool, src, model.CodeNetworkHostBlocked), true
		}
		// PENDING falls through to the refusal below with the existing id.
	}
	if !snap.Cfg.Approvals.RequireApproval {
		return model.GuardResult{}, false
	}
	if !found {
		rec, err = s.approvals.Request(kind, target)
		if err != nil {
			s.log.Error("approval request failed", zap.Error(err))
			return s.pipe.Refuse(snap, tool, src, model.CodeInternalError), true
		}
	}
	res := s.pipe.Refuse(snap, tool, src, model.CodeNewSourceApproval)
	res.ApprovalID = rec.ID
	return res, true
}

// refuseRepo is the repo-shaped analogue of Refuse: an audited BLOCK with
// no files inspected.
func (s *Server) refuseRepo(snap *policy.Snapshot, src model.Source, approvalID string, codes ...string) model.RepoScanResult {
	gr := s.pipe.Refuse(snap, "bw_fetch_repo", src, codes...)
	gr.ApprovalID = approvalID
	return s.repoFromRefusal(src, gr)
}

func (s *Server) repoFromRefusal(src model.Source, gr model.GuardResult) model.RepoScanResult {
	return model.RepoScanResult{
		RepoID:        src.RepoID,
		ChangedFiles:  []model.ChangedFile{},
		Findings:      []model.FileFinding{},
		QuarantineIDs: []string{},
		Reasons:       gr.Reasons,
		Source:        src,
		ApprovalID:    gr.ApprovalID,
	}
}

func repoAllowed(rr fetch.RepoRef, snap *policy.Snapshot) bool {
	for _, u := range snap.Cfg.Approvals.AllowedRepoURLs {
		u = strings.TrimSuffix(strings.TrimSpace(u), "/")
		if u == rr.CanonicalURL || u == rr.Key() {
			return true
		}
	}
	return fetch.HostAllowed(rr.Host, snap.Cfg.Network.AllowedRepoHosts)
}

func validKind(kind string) error {
	switch kind {
	case approvals.KindWebDomain, approvals.KindRepoURL, approvals.KindUpstreamMCP:
		return nil
	}
	return fmt.Errorf("invalid kind %q", kind)
}
