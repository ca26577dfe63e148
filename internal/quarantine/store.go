// Package quarantine stores blocked originals on disk, content-addressed,
// so a human can review exactly what was caught without the agent ever
// seeing it.
package quarantine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bridgewarden/bridgewarden/internal/model"
	"github.com/bridgewarden/bridgewarden/internal/redact"
)

// ExcerptBytes caps the safe view returned for review.
const ExcerptBytes = 4096

// Store is a directory of one JSON file per quarantined item. IDs derive
// from the content hash, so re-quarantining identical bytes dedupes.
type Store struct {
	dir string
	mu  sync.Mutex
}

// New returns a store rooted at dir. The directory is created on first Put.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// ID derives the quarantine id from a content hash: "q_" plus the first 16
// hex characters.
func ID(contentHash string) string {
	h := strings.TrimPrefix(contentHash, "sha256:")
	if len(h) > 16 {
		h = h[:16]
	}
	return "q_" + h
}

// Put stores a record. If an entry with the same content hash already
// exists the stored record wins and cacheHit is true. Writes go temp file,
// fsync, rename, so readers never see a partial record and a crash after
// Put cannot lose one.
func (s *Store) Put(rec model.QuarantineRecord) (id string, cacheHit bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.ID = ID(rec.ContentHash)
	if rec.CreatedAt == "" {
		rec.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	path := s.path(rec.ID)
	if _, err := os.Stat(path); err == nil {
		return rec.ID, true, nil
	}

	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return "", false, fmt.Errorf("quarantine: create directory: %w", err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", false, fmt.Errorf("quarantine: marshal: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return "", false, fmt.Errorf("quarantine: create: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", false, fmt.Errorf("quarantine: write: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", false, fmt.Errorf("quarantine: sync: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", false, fmt.Errorf("quarantine: close: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", false, fmt.Errorf("quarantine: rename: %w", err)
	}
	return rec.ID, false, nil
}

// Get loads one record by id.
func (s *Store) Get(id string) (model.QuarantineRecord, error) {
	var rec model.QuarantineRecord
	if !validID(id) {
		return rec, fmt.Errorf("quarantine: invalid id %q", id)
	}
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return rec, fmt.Errorf("quarantine: %s not found", id)
		}
		return rec, fmt.Errorf("quarantine: read: %w", err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("quarantine: parse %s: %w", id, err)
	}
	return rec, nil
}

// List returns up to limit records, newest first. limit <= 0 means all.
func (s *Store) List(limit int) ([]model.QuarantineRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("quarantine: list: %w", err)
	}

	var recs []model.QuarantineRecord
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "q_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		rec, err := s.Get(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue // skip unreadable entries rather than failing the list
		}
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].CreatedAt != recs[j].CreatedAt {
			return recs[i].CreatedAt > recs[j].CreatedAt
		}
		return recs[i].ID > recs[j].ID
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// SafeView returns a bounded excerpt of the original with secrets redacted.
// Raw secret bytes never leave the store through this path.
func (s *Store) SafeView(id string) (string, error) {
	rec, err := s.Get(id)
	if err != nil {
		return "", err
	}
	return truncateRunes(redact.Run(rec.Original).Text, ExcerptBytes), nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// validID guards against path traversal through crafted ids.
func validID(id string) bool {
	if !strings.HasPrefix(id, "q_") || len(id) != 18 {
		return false
	}
	for _, r := range id[2:] {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

// truncateRunes cuts s to at most n bytes without splitting a rune.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }
