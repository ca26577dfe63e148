// Package approvals tracks which external sources a human has allowed.
// Fetching a web domain or repository URL that is neither allowlisted nor
// approved is refused until someone resolves the pending request.
package approvals

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status of an approval request. Transitions are one-way: PENDING resolves
// to APPROVED or DENIED exactly once.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusDenied   Status = "DENIED"
)

// Source kinds that require approval. Upstream MCP servers are reserved
// for the proxy feature; records of that kind are accepted but nothing
// fetches through them yet.
const (
	KindWebDomain   = "web_domain"
	KindRepoURL     = "repo_url"
	KindUpstreamMCP = "upstream_mcp_server"
)

// Record is one approval request.
type Record struct {
	ID        string `json:"approval_id"`
	Kind      string `json:"kind"`
	Value     string `json:"target"`
	Status    Status `json:"status"`
	CreatedAt string `json:"created_at"`
	DecidedAt string `json:"decided_at,omitempty"`
	DecidedBy string `json:"decided_by,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// Store keeps one JSON file per record under dir.
type Store struct {
	dir string
	mu  sync.Mutex
}

// New returns a store rooted at dir.
func New(dir string) *Store {
	return &Store{dir: dir}
}

var validID = regexp.MustCompile(`^a_[0-9a-f]{32}$`)

// Request returns the existing record for (kind, value) or creates a new
// PENDING one. A denied source stays denied; a fresh request does not
// resurrect it.
func (s *Store) Request(kind, value string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok, err := s.findLocked(kind, value); err != nil {
		return Record{}, err
	} else if ok {
		return rec, nil
	}

	rec := Record{
		ID:        "a_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Kind:      kind,
		Value:     value,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.writeLocked(rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Resolve moves a PENDING record to APPROVED or DENIED. Resolving a record
// that is not pending is an error; decisions are not revisited.
func (s *Store) Resolve(id string, approve bool, decidedBy, notes string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.readLocked(id)
	if err != nil {
		return Record{}, err
	}
	if rec.Status != StatusPending {
		return Record{}, fmt.Errorf("approvals: %s already resolved to %s", id, rec.Status)
	}
	if approve {
		rec.Status = StatusApproved
	} else {
		rec.Status = StatusDenied
	}
	rec.DecidedAt = time.Now().UTC().Format(time.RFC3339)
	rec.DecidedBy = decidedBy
	rec.Notes = notes
	if err := s.writeLocked(rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Get loads one record by id.
func (s *Store) Get(id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked(id)
}

// Find returns the record for (kind, value) if one exists.
func (s *Store) Find(kind, value string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findLocked(kind, value)
}

// IsApproved reports whether (kind, value) has an APPROVED record.
func (s *Store) IsApproved(kind, value string) (bool, string, error) {
	rec, ok, err := s.Find(kind, value)
	if err != nil || !ok {
		return false, "", err
	}
	return rec.Status == StatusApproved, rec.ID, nil
}

// ListFilter narrows List output. Zero values mean no filtering.
type ListFilter struct {
	Status Status
	Kind   string
	Limit  int
}

// List returns records newest first.
func (s *Store) List(f ListFilter) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.allLocked()
	if err != nil {
		return nil, err
	}
	out := recs[:0]
	for _, r := range recs {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.Kind != "" && r.Kind != f.Kind {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID > out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) allLocked() ([]Record, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("approvals: list: %w", err)
	}
	var recs []Record
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		rec, err := s.readLocked(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (s *Store) findLocked(kind, value string) (Record, bool, error) {
	recs, err := s.allLocked()
	if err != nil {
		return Record{}, false, err
	}
	for _, r := range recs {
		if r.Kind == kind && r.Value == value {
			return r, true, nil
		}
	}
	return Record{}, false, nil
}

func (s *Store) readLocked(id string) (Record, error) {
	var rec Record
	if !validID.MatchString(id) {
		return rec, fmt.Errorf("approvals: invalid id %q", id)
	}
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return rec, fmt.Errorf("approvals: %s not found", id)
		}
		return rec, fmt.Errorf("approvals: read: %w", err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("approvals: parse %s: %w", id, err)
	}
	return rec, nil
}

func (s *Store) writeLocked(rec Record) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("approvals: create directory: %w", err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("approvals: marshal: %w", err)
	}
	path := s.path(rec.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("approvals: write: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("approvals: rename: %w", err)
	}
	return nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}
