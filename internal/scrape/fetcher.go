package scrape

import (
	"context"
	"errors"
	"net"

	"github.com/sells-group/sourcing-cli/internal/model"
)

// Page is the stripped text of one fetched URL.
type Page struct {
	FinalURL   string
	Title      string
	Text       string
	StatusCode int
}

// Fetcher retrieves one URL. Classified failures are returned as
// *model.ScrapeFailure; any other error is treated as a connection failure.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, rawURL string) (*Page, error)
}

// classify turns any fetch error into a typed failure.
func classify(rawURL string, err error) *model.ScrapeFailure {
	var sf *model.ScrapeFailure
	if errors.As(err, &sf) {
		return sf
	}
	kind := model.ScrapeConnection
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &ne) && ne.Timeout() {
		kind = model.ScrapeTimeout
	}
	return &model.ScrapeFailure{URL: rawURL, Kind: kind, Reason: err.Error()}
}

func failure(rawURL string, kind model.ScrapeFailureKind, status int, reason string) *model.ScrapeFailure {
	return &model.ScrapeFailure{URL: rawURL, Kind: kind, Reason: reason, StatusCode: status}
}
