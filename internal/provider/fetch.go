package provider

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"

	"tokgrab/internal/httputil"
	"tokgrab/internal/media"
)

// fetcher performs the HTTP side of a provider call.
type fetcher struct {
	client *http.Client
}

func (f fetcher) get(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	return httputil.Get(ctx, f.client, rawURL, header)
}

func (f fetcher) postForm(ctx context.Context, rawURL string, form url.Values, header http.Header) ([]byte, error) {
	return httputil.PostForm(ctx, f.client, rawURL, form, header)
}

// classify maps a transport error onto an outcome kind. Deadlines from
// either the context or the client timeout count as Timeout; everything
// else, including non-2xx statuses, is a NetworkError.
func classify(err error) media.OutcomeKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return media.Timeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return media.Timeout
	}
	return media.NetworkError
}
