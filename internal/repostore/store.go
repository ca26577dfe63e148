// Package repostore keeps the per-repository scan manifest in SQLite:
// which revisions were fetched, and the hash, decision, and score of every
// file in each revision. It powers baseline diffs and scan-result reuse.
package repostore

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS revisions (
	repo_id    TEXT NOT NULL,
	revision   TEXT NOT NULL,
	url        TEXT NOT NULL,
	ref        TEXT NOT NULL,
	created_at TEXT NOT NULL,
	PRIMARY KEY (repo_id, revision)
);
CREATE TABLE IF NOT EXISTS repo_files (
	repo_id      TEXT NOT NULL,
	revision     TEXT NOT NULL,
	path         TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	decision     TEXT NOT NULL,
	risk_score   REAL NOT NULL,
	reasons      TEXT NOT NULL,
	PRIMARY KEY (repo_id, revision, path)
);
CREATE INDEX IF NOT EXISTS idx_repo_files_hash ON repo_files (repo_id, content_hash);
`

// FileRow is the stored outcome for one file in one revision.
type FileRow struct {
	Path        string
	ContentHash string
	Decision    string
	RiskScore   float64
	Reasons     []string
}

// Store wraps the manifest database.
type Store struct {
	db *sql.DB
}

// Open creates or opens the manifest at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("repostore: create directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("repostore: open: %w", err)
	}
	// One writer at a time keeps modernc's file locking simple.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("repostore: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// RevisionID derives a deterministic revision id from the file set: the
// hash of all (path, content_hash) pairs in path order.
func RevisionID(files []FileRow) string {
	sorted := make([]FileRow, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	h := sha256.New()
	for _, f := range sorted {
		fmt.Fprintf(h, "%s\x00%s\n", f.Path, f.ContentHash)
	}
	return "rev_" + hex.EncodeToString(h.Sum(nil))[:16]
}

// SaveRevision records one fetched revision and its file outcomes in a
// single transaction. Saving the same revision twice is a no-op.
func (s *Store) SaveRevision(repoID, revision, url, ref string, files []FileRow) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("repostore: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT OR IGNORE INTO revisions (repo_id, revision, url, ref, created_at) VALUES (?, ?, ?, ?, ?)`,
		repoID, revision, url, ref, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("repostore: insert revision: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil // revision already recorded
	}

	stmt, err := tx.Prepare(
		`INSERT INTO repo_files (repo_id, revision, path, content_hash, decision, risk_score, reasons)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("repostore: prepare: %w", err)
	}
	defer stmt.Close()

	for _, f := range files {
		reasons, err := json.Marshal(f.Reasons)
		if err != nil {
			return fmt.Errorf("repostore: marshal reasons: %w", err)
		}
		if _, err := stmt.Exec(repoID, revision, f.Path, f.ContentHash, f.Decision, f.RiskScore, string(reasons)); err != nil {
			return fmt.Errorf("repostore: insert file %s: %w", f.Path, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("repostore: commit: %w", err)
	}
	return nil
}

// LatestRevision returns the most recently recorded revision for a repo.
func (s *Store) LatestRevision(repoID string) (string, bool, error) {
	var rev string
	err := s.db.QueryRow(
		`SELECT revision FROM revisions WHERE repo_id = ? ORDER BY created_at DESC, revision DESC LIMIT 1`,
		repoID).Scan(&rev)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("repostore: latest revision: %w", err)
	}
	return rev, true, nil
}

// HasRevision reports whether a revision is recorded for the repo.
func (s *Store) HasRevision(repoID, revision string) (bool, error) {
	var one int
	err := s.db.QueryRow(
		`SELECT 1 FROM revisions WHERE repo_id = ? AND revision = ?`,
		repoID, revision).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("repostore: has revision: %w", err)
	}
	return true, nil
}

// Files returns the file rows of one revision keyed by path.
func (s *Store) Files(repoID, revision string) (map[string]FileRow, error) {
	rows, err := s.db.Query(
		`SELECT path, content_hash, decision, risk_score, reasons
		 FROM repo_files WHERE repo_id = ? AND revision = ?`,
		repoID, revision)
	if err != nil {
		return nil, fmt.Errorf("repostore: files: %w", err)
	}
	defer rows.Close()

	out := make(map[string]FileRow)
	for rows.Next() {
		var (
			f       FileRow
			reasons string
		)
		if err := rows.Scan(&f.Path, &f.ContentHash, &f.Decision, &f.RiskScore, &reasons); err != nil {
			return nil, fmt.Errorf("repostore: scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(reasons), &f.Reasons); err != nil {
			return nil, fmt.Errorf("repostore: parse reasons for %s: %w", f.Path, err)
		}
		out[f.Path] = f
	}
	return out, rows.Err()
}

// LookupByHash finds a prior outcome for identical content anywhere in the
// repo's history, enabling scan reuse across revisions.
func (s *Store) LookupByHash(repoID, contentHash string) (FileRow, bool, error) {
	var (
		f       FileRow
		reasons string
	)
	err := s.db.QueryRow(
		`SELECT path, content_hash, decision, risk_score, reasons
		 FROM repo_files WHERE repo_id = ? AND content_hash = ? LIMIT 1`,
		repoID, contentHash).Scan(&f.Path, &f.ContentHash, &f.Decision, &f.RiskScore, &reasons)
	if err == sql.ErrNoRows {
		return FileRow{}, false, nil
	}
	if err != nil {
		return FileRow{}, false, fmt.Errorf("repostore: lookup: %w", err)
	}
	if err := json.Unmarshal([]byte(reasons), &f.Reasons); err != nil {
		return FileRow{}, false, fmt.Errorf("repostore: parse reasons: %w", err)
	}
	return f, true, nil
}
