package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"tokgrab/internal/media"
)

// TikwmName identifies the tikwm query API.
const TikwmName = "tikwm"

const tikwmEndpoint = "https://tikwm.com/api/"

// Tikwm resolves links through the tikwm REST API with a single GET.
type Tikwm struct {
	base
}

// NewTikwm creates a tikwm provider.
func NewTikwm(opts Options) (*Tikwm, error) {
	b, err := newBase(TikwmName, tikwmEndpoint, opts)
	if err != nil {
		return nil, err
	}
	return &Tikwm{base: b}, nil
}

// Resolve issues GET <endpoint>?url=<link> and reads data.play.
func (t *Tikwm) Resolve(ctx context.Context, link string) media.Outcome {
	ctx, cancel := t.bounded(ctx)
	defer cancel()

	apiURL, err := withQuery(t.endpoint, "url", link)
	if err != nil {
		return t.fail(media.NetworkError, fmt.Errorf("building request URL: %w", err))
	}

	body, err := t.fetcher.get(ctx, apiURL, http.Header{"Accept": {"application/json"}})
	if err != nil {
		return t.failFetch(err)
	}

	play, msg, err := parseTikwm(body)
	if err != nil {
		return t.fail(media.MalformedResponse, err)
	}
	if play == "" {
		err := errors.New("no data.play in response")
		if msg != "" {
			err = fmt.Errorf("%w (msg %q)", err, msg)
		}
		return t.fail(media.EmptyResponse, err)
	}

	return t.succeed(absolutize(t.endpoint, play))
}

// withQuery sets key=value on rawURL's query string, keeping any existing parameters.
func withQuery(rawURL, key, value string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
