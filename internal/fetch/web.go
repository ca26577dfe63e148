package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bridgewarden/bridgewarden/internal/config"
	"github.com/bridgewarden/bridgewarden/internal/model"
)

// Fetch modes for bw_web_fetch.
const (
	ModeReadableText = "readable_text"
	ModeRawText      = "raw_text"
)

const maxRedirects = 3

// WebFetcher retrieves a single page under the configured caps. Approval
// and allowlist checks happen in the caller; the fetcher owns transport
// guards: scheme, SSRF, redirects, size, timeout.
type WebFetcher struct {
	Net config.Network
}

// ParseWebURL validates the URL shape and scheme and returns the parsed
// form. Non-http(s) schemes are a guard refusal, not an I/O error.
func ParseWebURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, badInput("invalid url: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, guard(model.CodeUnsupportedURLScheme, fmt.Errorf("scheme %q", u.Scheme))
	}
	if u.Hostname() == "" {
		return nil, badInput("url has no host")
	}
	return u, nil
}

// Fetch retrieves the page body, capped at maxBytes (0 means the
// configured web cap). The URL must already have passed ParseWebURL and
// the caller's approval checks.
func (w WebFetcher) Fetch(ctx context.Context, u *url.URL, maxBytes int64) ([]byte, model.Source, error) {
	src := model.Source{Kind: "web", URL: u.String(), Domain: u.Hostname()}

	limit := w.Net.WebMaxBytes
	if maxBytes > 0 && maxBytes < limit {
		limit = maxBytes
	}

	if err := CheckHost(ctx, u.Hostname()); err != nil {
		return nil, src, err
	}

	timeout := time.Duration(w.Net.TimeoutSeconds * float64(time.Second))
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: timeout,
				Control: dialControl,
			}).DialContext,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return guard(model.CodeFetchFailed, fmt.Errorf("more than %d redirects", maxRedirects))
			}
			if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
				return guard(model.CodeUnsupportedURLScheme, fmt.Errorf("redirect to %q", req.URL.Scheme))
			}
			// Each hop gets the same SSRF treatment as the first.
			return CheckHost(req.Context(), req.URL.Hostname())
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, src, badInput("build request: %v", err)
	}
	req.Header.Set("User-Agent", "bridgewarden/1.0")
	req.Header.Set("Accept", "text/html, text/plain, text/markdown, application/json;q=0.9, */*;q=0.5")

	resp, err := client.Do(req)
	if err != nil {
		// Unwrap guard refusals surfaced through the redirect hook.
		var ge *GuardError
		if errors.As(err, &ge) {
			return nil, src, ge
		}
		return nil, src, guard(model.CodeFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, src, guard(model.CodeFetchFailed, fmt.Errorf("status %s", resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, src, guard(model.CodeFetchFailed, err)
	}
	if int64(len(body)) > limit {
		return nil, src, guard(model.CodeSizeExceeded, fmt.Errorf("body exceeds %d bytes", limit))
	}
	return body, src, nil
}

// HostAllowed reports whether host matches an allowlist entry, including
// subdomain matches ("docs.example.com" matches "example.com").
func HostAllowed(host string, allow []string) bool {
	host = strings.ToLower(host)
	for _, a := range allow {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" {
			continue
		}
		if host == a || strings.HasSuffix(host, "."+a) {
			return true
		}
	}
	return false
}
