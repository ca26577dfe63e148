package fetch

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/bridgewarden/bridgewarden/internal/model"
)

// RepoRef is a parsed repository reference: canonical URL, dedupe key, and
// the archive URL to stream.
type RepoRef struct {
	CanonicalURL string
	Host         string
	Owner        string
	Name         string
	Ref          string
	ArchiveURL   string
}

// Key is the dedupe key: canonical URL plus ref.
func (r RepoRef) Key() string { return r.CanonicalURL + "@" + r.Ref }

// ID derives the stable repo id from the canonical URL.
func (r RepoRef) ID() string {
	h := sha256.Sum256([]byte(r.CanonicalURL))
	return "r_" + hex.EncodeToString(h[:])[:16]
}

var validRef = regexp.MustCompile(`^[A-Za-z0-9._/-]+$`)

// ParseRepoURL validates an HTTPS repository URL on a known forge and
// resolves the tarball location. ref defaults to HEAD.
func ParseRepoURL(raw, ref string) (RepoRef, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return RepoRef{}, badInput("invalid repo url: %v", err)
	}
	if u.Scheme != "https" {
		return RepoRef{}, guard(model.CodeUnsupportedURLScheme,
			fmt.Errorf("repositories require https, got %q", u.Scheme))
	}

	if ref == "" {
		ref = "HEAD"
	}
	if !validRef.MatchString(ref) || strings.Contains(ref, "..") {
		return RepoRef{}, badInput("invalid ref %q", ref)
	}

	host := strings.ToLower(u.Hostname())
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return RepoRef{}, badInput("repo url must be https://<host>/<owner>/<name>")
	}
	owner := parts[0]
	name := strings.TrimSuffix(parts[1], ".git")

	rr := RepoRef{
		CanonicalURL: "https://" + host + "/" + owner + "/" + name,
		Host:         host,
		Owner:        owner,
		Name:         name,
		Ref:          ref,
	}

	switch host {
	case "github.com":
		rr.ArchiveURL = fmt.Sprintf("https://codeload.github.com/%s/%s/tar.gz/%s", owner, name, ref)
	case "gitlab.com":
		rr.ArchiveURL = fmt.Sprintf("https://gitlab.com/%s/%s/-/archive/%s/%s-%s.tar.gz",
			owner, name, ref, name, ref)
	case "bitbucket.org":
		rr.ArchiveURL = fmt.Sprintf("https://bitbucket.org/%s/%s/get/%s.tar.gz", owner, name, ref)
	default:
		return RepoRef{}, badInput("unsupported repository host %q", host)
	}
	return rr, nil
}
