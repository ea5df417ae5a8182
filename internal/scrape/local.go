package scrape

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sourcing-cli/internal/model"
)

// minPageChars is the least stripped text that counts as content.
const minPageChars = 50

// LocalFetcher fetches HTML directly over net/http with browser-like
// headers, detects anti-bot blocks and strips the page to text.
type LocalFetcher struct {
	client   *http.Client
	agents   *userAgents
	maxBody  int64
	maxChars int
}

// LocalOption configures a LocalFetcher.
type LocalOption func(*LocalFetcher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) LocalOption {
	return func(l *LocalFetcher) { l.client = hc }
}

// WithUserAgents replaces the desktop User-Agent pool.
func WithUserAgents(pool []string) LocalOption {
	return func(l *LocalFetcher) { l.agents = newUserAgents(pool) }
}

// NewLocalFetcher creates a LocalFetcher. maxBody caps the bytes read per
// response; maxChars caps the returned text.
func NewLocalFetcher(maxBody int64, maxChars int, opts ...LocalOption) *LocalFetcher {
	if maxBody <= 0 {
		maxBody = 5 << 20
	}
	transport, _ := NewTransport(TLSProfileGo)
	l := &LocalFetcher{
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		agents:   newUserAgents(nil),
		maxBody:  maxBody,
		maxChars: maxChars,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Name implements Fetcher.
func (l *LocalFetcher) Name() string { return "local_http" }

// Fetch implements Fetcher.
func (l *LocalFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, failure(rawURL, model.ScrapeConnection, 0, eris.Wrap(err, "local_http: create request").Error())
	}
	req.Header.Set("User-Agent", l.agents.pick())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, classify(rawURL, eris.Wrap(err, "local_http: fetch"))
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBody))
	if err != nil {
		return nil, classify(rawURL, eris.Wrap(err, "local_http: read body"))
	}

	if blocked, bt := DetectBlock(resp, body); blocked {
		return nil, failure(rawURL, model.ScrapeBlocked, resp.StatusCode, fmt.Sprintf("blocked (%s)", bt))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, failure(rawURL, model.ScrapeBadStatus, resp.StatusCode, fmt.Sprintf("status %d", resp.StatusCode))
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	if !isHTML(contentType) {
		return nil, failure(rawURL, model.ScrapeNonHTML, resp.StatusCode, "content type "+contentType)
	}

	title, text, err := ExtractContent(body, contentType, l.maxChars)
	if err != nil {
		return nil, failure(rawURL, model.ScrapeEmpty, resp.StatusCode, err.Error())
	}
	if len([]rune(text)) < minPageChars {
		return nil, failure(rawURL, model.ScrapeEmpty, resp.StatusCode, "empty page after stripping")
	}

	return &Page{
		FinalURL:   resp.Request.URL.String(),
		Title:      title,
		Text:       text,
		StatusCode: resp.StatusCode,
	}, nil
}

func isHTML(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return mt == "text/html" || mt == "application/xhtml+xml"
}
