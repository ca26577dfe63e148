package fetch

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/bridgewarden/bridgewarden/internal/config"
	"github.com/bridgewarden/bridgewarden/internal/model"
)

// RepoFile is one text file pulled out of a repository archive. Oversized
// files carry no data, only the flag.
type RepoFile struct {
	Path     string
	Data     []byte
	TooLarge bool
}

// RepoOptions narrow which archive entries are surfaced.
type RepoOptions struct {
	IncludePaths []string
	ExcludePaths []string
	// Depth limits directory depth; 0 means unlimited.
	Depth int
}

// RepoFetcher streams repository tarballs under the configured caps.
type RepoFetcher struct {
	Net config.Network
}

// Fetch streams the archive for rr and returns its text files, filtered by
// opts. Caps abort the whole fetch with SIZE_EXCEEDED: a partially
// inspected repository is worse than a refused one.
func (r RepoFetcher) Fetch(ctx context.Context, rr RepoRef, opts RepoOptions) ([]RepoFile, error) {
	archiveURL, err := ParseWebURL(rr.ArchiveURL)
	if err != nil {
		return nil, err
	}
	if err := CheckHost(ctx, archiveURL.Hostname()); err != nil {
		return nil, err
	}

	timeout := time.Duration(r.Net.TimeoutSeconds * float64(time.Second))
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{Timeout: timeout, Control: dialControl}).DialContext,
		},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rr.ArchiveURL, nil)
	if err != nil {
		return nil, badInput("build request: %v", err)
	}
	req.Header.Set("User-Agent", "bridgewarden/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, guard(model.CodeFetchFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, guard(model.CodeFetchFailed, fmt.Errorf("archive status %s", resp.Status))
	}

	// The total cap applies to compressed transfer, which bounds the worst
	// case even against decompression bombs together with per-file caps.
	counted := &countingReader{r: io.LimitReader(resp.Body, r.Net.RepoMaxBytes+1)}
	gz, err := gzip.NewReader(counted)
	if err != nil {
		return nil, guard(model.CodeFetchFailed, fmt.Errorf("archive is not gzip: %w", err))
	}
	defer gz.Close()

	var files []RepoFile
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if counted.n > r.Net.RepoMaxBytes {
				return nil, guard(model.CodeSizeExceeded,
					fmt.Errorf("archive exceeds %d bytes", r.Net.RepoMaxBytes))
			}
			return nil, guard(model.CodeFetchFailed, fmt.Errorf("read archive: %w", err))
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		rel := stripArchiveRoot(hdr.Name)
		if rel == "" || !opts.match(rel) {
			continue
		}
		if len(files) >= r.Net.RepoMaxFiles {
			return nil, guard(model.CodeSizeExceeded,
				fmt.Errorf("more than %d files", r.Net.RepoMaxFiles))
		}

		if hdr.Size > r.Net.RepoMaxFileBytes {
			files = append(files, RepoFile{Path: rel, TooLarge: true})
			continue
		}
		data, err := io.ReadAll(io.LimitReader(tr, r.Net.RepoMaxFileBytes+1))
		if err != nil {
			return nil, guard(model.CodeFetchFailed, fmt.Errorf("read %s: %w", rel, err))
		}
		if int64(len(data)) > r.Net.RepoMaxFileBytes {
			files = append(files, RepoFile{Path: rel, TooLarge: true})
			continue
		}
		if isBinary(data) {
			continue
		}
		files = append(files, RepoFile{Path: rel, Data: data})
	}
	if counted.n > r.Net.RepoMaxBytes {
		return nil, guard(model.CodeSizeExceeded,
			fmt.Errorf("archive exceeds %d bytes", r.Net.RepoMaxBytes))
	}
	return files, nil
}

// stripArchiveRoot removes the single top-level directory every forge
// tarball wraps the tree in.
func stripArchiveRoot(name string) string {
	name = path.Clean(strings.TrimPrefix(name, "./"))
	if i := strings.IndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return ""
}

func (o RepoOptions) match(rel string) bool {
	if strings.HasPrefix(rel, ".git/") {
		return false
	}
	if o.Depth > 0 && strings.Count(rel, "/") >= o.Depth {
		return false
	}
	for _, ex := range o.ExcludePaths {
		if pathMatches(rel, ex) {
			return false
		}
	}
	if len(o.IncludePaths) == 0 {
		return true
	}
	for _, in := range o.IncludePaths {
		if pathMatches(rel, in) {
			return true
		}
	}
	return false
}

// pathMatches treats the pattern as a glob against the full path or any
// basename, falling back to prefix match for directory-style patterns.
func pathMatches(rel, pattern string) bool {
	pattern = strings.TrimSuffix(pattern, "/")
	if pattern == "" {
		return false
	}
	if ok, _ := path.Match(pattern, rel); ok {
		return true
	}
	if ok, _ := path.Match(pattern, path.Base(rel)); ok {
		return true
	}
	return rel == pattern || strings.HasPrefix(rel, pattern+"/")
}

// isBinary applies the classic NUL-byte probe to the first 8 KiB.
func isBinary(data []byte) bool {
	probe := data
	if len(probe) > 8192 {
		probe = probe[:8192]
	}
	return bytes.IndexByte(probe, 0) >= 0
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
