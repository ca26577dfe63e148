package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/bridgewarden/bridgewarden/internal/fetch"
	"github.com/bridgewarden/bridgewarden/internal/model"
	"github.com/bridgewarden/bridgewarden/internal/policy"
	"github.com/bridgewarden/bridgewarden/internal/quarantine"
	"github.com/bridgewarden/bridgewarden/internal/repostore"
)

// ScanRepo inspects every fetched file of one repository revision, reusing
// prior verdicts for unchanged content, and records the new revision in the
// manifest. Sanitized copies of non-blocked files land under filesDir (empty
// disables persistence) so they can be re-read later without refetching.
// baseline selects the revision to diff against; empty means the latest
// recorded one.
func (p *Pipeline) ScanRepo(snap *policy.Snapshot, rr fetch.RepoRef, files []fetch.RepoFile,
	manifest *repostore.Store, filesDir, baseline string) (model.RepoScanResult, error) {

	repoID := rr.ID()
	result := model.RepoScanResult{
		RepoID:        repoID,
		ChangedFiles:  []model.ChangedFile{},
		Findings:      []model.FileFinding{},
		QuarantineIDs: []string{},
		Source:        model.Source{Kind: "repo", URL: rr.CanonicalURL, RepoID: repoID},
	}

	var baselineFiles map[string]repostore.FileRow
	if baseline == "" {
		latest, ok, err := manifest.LatestRevision(repoID)
		if err != nil {
			return result, fmt.Errorf("resolve baseline: %w", err)
		}
		if ok {
			baseline = latest
		}
	} else {
		ok, err := manifest.HasRevision(repoID, baseline)
		if err != nil {
			return result, fmt.Errorf("resolve baseline: %w", err)
		}
		if !ok {
			return result, &fetch.BadInputError{Msg: fmt.Sprintf("unknown baseline revision %q", baseline)}
		}
	}
	if baseline != "" {
		var err error
		baselineFiles, err = manifest.Files(repoID, baseline)
		if err != nil {
			return result, fmt.Errorf("load baseline: %w", err)
		}
	}

	sorted := make([]fetch.RepoFile, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	rows := make([]repostore.FileRow, 0, len(sorted))
	seenQuarantine := make(map[string]bool)

	for _, f := range sorted {
		var ff model.FileFinding

		switch {
		case f.TooLarge:
			ff = model.FileFinding{
				Path:      f.Path,
				Decision:  model.Block,
				RiskScore: 1,
				Reasons:   []string{model.CodeSizeExceeded},
			}

		default:
			hash := model.ContentHash(f.Data)
			if row, ok, err := manifest.LookupByHash(repoID, hash); err == nil && ok {
				result.Summary.CacheHits++
				reasons := row.Reasons
				if reasons == nil {
					reasons = []string{}
				}
				ff = model.FileFinding{
					Path:        f.Path,
					Decision:    model.Decision(row.Decision),
					RiskScore:   row.RiskScore,
					Reasons:     reasons,
					ContentHash: hash,
				}
				if ff.Decision == model.Block {
					// Quarantine ids derive from the content hash, so the
					// record written on first sight still resolves.
					qid := quarantine.ID(hash)
					if !seenQuarantine[qid] {
						seenQuarantine[qid] = true
						result.QuarantineIDs = append(result.QuarantineIDs, qid)
					}
				}
			} else {
				res := p.Scan(snap, Request{
					Raw: f.Data,
					Source: model.Source{
						Kind:   "repo_file",
						URL:    rr.CanonicalURL,
						RepoID: repoID,
						Path:   f.Path,
					},
					Tool: "bw_fetch_repo",
				})
				ff = model.FileFinding{
					Path:        f.Path,
					Decision:    res.Decision,
					RiskScore:   res.RiskScore,
					Reasons:     res.Reasons,
					ContentHash: res.ContentHash,
				}
				if res.QuarantineID != "" && !seenQuarantine[res.QuarantineID] {
					seenQuarantine[res.QuarantineID] = true
					result.QuarantineIDs = append(result.QuarantineIDs, res.QuarantineID)
				}
				if filesDir != "" && res.Decision != model.Block {
					if err := persistSanitized(filesDir, f.Path, res.SanitizedText); err != nil {
						p.log.Warn("persist sanitized repo file failed",
							zap.String("path", f.Path), zap.Error(err))
					}
				}
			}
		}

		result.Findings = append(result.Findings, ff)
		result.Summary.Total++
		switch ff.Decision {
		case model.Allow:
			result.Summary.Allowed++
		case model.Warn:
			result.Summary.Warned++
		case model.Block:
			result.Summary.Blocked++
		}

		status := "added"
		if prev, ok := baselineFiles[ff.Path]; ok {
			if prev.ContentHash == ff.ContentHash {
				status = "unchanged"
			} else {
				status = "modified"
			}
		}
		result.ChangedFiles = append(result.ChangedFiles, model.ChangedFile{Path: ff.Path, Status: status})

		rows = append(rows, repostore.FileRow{
			Path:        ff.Path,
			ContentHash: ff.ContentHash,
			Decision:    string(ff.Decision),
			RiskScore:   ff.RiskScore,
			Reasons:     ff.Reasons,
		})
	}

	result.NewRevision = repostore.RevisionID(rows)
	if err := manifest.SaveRevision(repoID, result.NewRevision, rr.CanonicalURL, rr.Ref, rows); err != nil {
		return result, fmt.Errorf("record revision: %w", err)
	}
	return result, nil
}

// persistSanitized writes one sanitized file under dir, refusing any path
// that would land outside it.
func persistSanitized(dir, rel, text string) error {
	if strings.Contains(rel, "..") || filepath.IsAbs(rel) {
		return fmt.Errorf("unsafe path %q", rel)
	}
	full := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0700); err != nil {
		return err
	}
	return os.WriteFile(full, []byte(text), 0600)
}
