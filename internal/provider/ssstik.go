package provider

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"tokgrab/internal/media"
)

// SsstikName identifies the ssstik HTML scraper.
const SsstikName = "ssstik"

const ssstikEndpoint = "https://ssstik.io/abc"

// Ssstik resolves links by posting to ssstik and scraping the result page.
type Ssstik struct {
	base
}

// NewSsstik creates a ssstik provider.
func NewSsstik(opts Options) (*Ssstik, error) {
	b, err := newBase(SsstikName, ssstikEndpoint, opts)
	if err != nil {
		return nil, err
	}
	return &Ssstik{base: b}, nil
}

// Resolve posts id=<link>&locale=en and returns the first .mp4 href.
func (s *Ssstik) Resolve(ctx context.Context, link string) media.Outcome {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	form := url.Values{"id": {link}, "locale": {"en"}}
	header := http.Header{"Accept": {"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"}}

	body, err := s.fetcher.postForm(ctx, s.endpoint, form, header)
	if err != nil {
		return s.failFetch(err)
	}

	href, err := parseSsstik(body)
	if err != nil {
		return s.fail(media.MalformedResponse, err)
	}
	if href == "" {
		return s.fail(media.EmptyResponse, errors.New("no .mp4 link in page"))
	}

	return s.succeed(href)
}
