// Package mcp exposes the gateway tools over the Model Context Protocol on
// stdio. Every tool call resolves the policy snapshot once at entry, so a
// reload mid-call never mixes two policies in one scan.
package mcp

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/bridgewarden/bridgewarden/internal/approvals"
	"github.com/bridgewarden/bridgewarden/internal/audit"
	"github.com/bridgewarden/bridgewarden/internal/pipeline"
	"github.com/bridgewarden/bridgewarden/internal/policy"
	"github.com/bridgewarden/bridgewarden/internal/quarantine"
	"github.com/bridgewarden/bridgewarden/internal/repostore"
)

// maxConcurrentFetches bounds in-flight network fetches per process.
// Excess calls wait on the semaphore instead of being rejected.
const maxConcurrentFetches = 4

// Server wires the inspection pipeline and its stores to the MCP tools.
type Server struct {
	mcpServer  *mcpsdk.Server
	snap       atomic.Pointer[policy.Snapshot]
	pipe       *pipeline.Pipeline
	quarantine *quarantine.Store
	approvals  *approvals.Store
	manifest   *repostore.Store
	auditLog   *audit.Log
	fetchSem   chan struct{}
	dataDir    string
	log        *zap.Logger
}

// New opens the stores under the snapshot's data directory and registers
// the tools. The caller owns Close.
func New(snap *policy.Snapshot, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dataDir := snap.Cfg.DataDir

	auditLog, err := audit.Open(filepath.Join(dataDir, "logs", "audit.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("mcp: open audit log: %w", err)
	}
	manifest, err := repostore.Open(filepath.Join(dataDir, "repos", "manifest.db"))
	if err != nil {
		auditLog.Close()
		return nil, fmt.Errorf("mcp: open repo manifest: %w", err)
	}

	s := &Server{
		quarantine: quarantine.New(filepath.Join(dataDir, "quarantine")),
		approvals:  approvals.New(filepath.Join(dataDir, "approvals")),
		manifest:   manifest,
		auditLog:   auditLog,
		fetchSem:   make(chan struct{}, maxConcurrentFetches),
		dataDir:    dataDir,
		log:        log,
	}
	s.snap.Store(snap)
	s.pipe = pipeline.New(s.quarantine, auditLog, log)

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "bridgewarden",
			Version: "0.1.0",
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

// Run serves MCP over stdio until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// Close flushes and closes the underlying stores.
func (s *Server) Close() error {
	err := s.manifest.Close()
	if cerr := s.auditLog.Close(); err == nil {
		err = cerr
	}
	return err
}

// Swap installs a new policy snapshot. In-flight calls keep the old one.
func (s *Server) Swap(snap *policy.Snapshot) {
	old := s.snap.Swap(snap)
	s.log.Info("policy snapshot swapped",
		zap.String("old", old.Version),
		zap.String("new", snap.Version))
}

// Snapshot returns the current policy snapshot.
func (s *Server) Snapshot() *policy.Snapshot { return s.snap.Load() }

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "bw_read_file",
		Description: "Read a local file (or a file from a previously fetched repository) through the inspection pipeline. Returns a GuardResult with sanitized text.",
	}, s.handleReadFile)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "bw_web_fetch",
		Description: "Fetch a web page through SSRF, allowlist, and approval guards, then inspect it. Returns a GuardResult with sanitized text.",
	}, s.handleWebFetch)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "bw_fetch_repo",
		Description: "Fetch a repository archive, inspect every text file, and report per-file decisions with a baseline diff against a prior revision.",
	}, s.handleFetchRepo)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "bw_quarantine_get",
		Description: "Retrieve the safe view of a quarantined item: redacted original excerpt, sanitized text, reasons, and metadata. Never returns raw secrets.",
	}, s.handleQuarantineGet)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "bw_request_source_approval",
		Description: "Request approval for a new source (web domain, repository URL, or upstream MCP server).",
	}, s.handleRequestApproval)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "bw_get_source_approval",
		Description: "Look up one source approval by id.",
	}, s.handleGetApproval)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "bw_list_source_approvals",
		Description: "List source approvals, optionally filtered by status and kind.",
	}, s.handleListApprovals)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "bw_decide_source_approval",
		Description: "Approve or deny a pending source approval. Decisions are final.",
	}, s.handleDecideApproval)
}
