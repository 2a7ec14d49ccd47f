package provider

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"tokgrab/internal/media"
)

// TiklydownName identifies the tiklydown AJAX endpoint.
const TiklydownName = "tiklydown"

const tiklydownEndpoint = "https://tiklydown.com/getAjax?"

// Tiklydown resolves links through tiklydown's XHR endpoint.
type Tiklydown struct {
	base
}

// NewTiklydown creates a tiklydown provider.
func NewTiklydown(opts Options) (*Tiklydown, error) {
	b, err := newBase(TiklydownName, tiklydownEndpoint, opts)
	if err != nil {
		return nil, err
	}
	return &Tiklydown{base: b}, nil
}

// Resolve posts url=<link> as an XHR and reads video_no_watermark.
func (t *Tiklydown) Resolve(ctx context.Context, link string) media.Outcome {
	ctx, cancel := t.bounded(ctx)
	defer cancel()

	header := http.Header{
		"Accept":           {"application/json"},
		"X-Requested-With": {"XMLHttpRequest"},
	}

	body, err := t.fetcher.postForm(ctx, t.endpoint, url.Values{"url": {link}}, header)
	if err != nil {
		return t.failFetch(err)
	}

	video, err := parseTiklydown(body)
	if err != nil {
		return t.fail(media.MalformedResponse, err)
	}
	if video == "" {
		return t.fail(media.EmptyResponse, errors.New("no video_no_watermark in response"))
	}

	return t.succeed(absolutize(t.endpoint, video))
}
