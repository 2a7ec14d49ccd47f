package provider

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// errMalformed marks a body that does not have the shape a provider promises.
var errMalformed = errors.New("malformed response")

// mp4HrefPattern matches an absolute HTTPS link to an .mp4 file.
var mp4HrefPattern = regexp.MustCompile(`^https://\S+?\.mp4$`)

// tikwmEnvelope is the JSON returned by the tikwm API:
// {"code":0,"msg":"success","data":{"play":"https://..."}}.
// On failure data is null or an empty array, so it is decoded lazily.
type tikwmEnvelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type tikwmData struct {
	Play string `json:"play"`
}

// parseTikwm extracts data.play. A well-formed envelope without a usable
// data object yields an empty URL and a nil error.
func parseTikwm(body []byte) (string, string, error) {
	var env tikwmEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", "", fmt.Errorf("%w: %v", errMalformed, err)
	}

	raw := bytes.TrimSpace(env.Data)
	if len(raw) == 0 || raw[0] != '{' {
		return "", env.Msg, nil
	}

	var data tikwmData
	if err := json.Unmarshal(raw, &data); err != nil {
		return "", "", fmt.Errorf("%w: data: %v", errMalformed, err)
	}

	return strings.TrimSpace(data.Play), env.Msg, nil
}

// parseSsstik finds the first href in document order pointing at an
// https .mp4 file.
func parseSsstik(body []byte) (string, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return "", fmt.Errorf("%w: empty body", errMalformed)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: parsing HTML: %v", errMalformed, err)
	}

	var found string
	doc.Find("[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if mp4HrefPattern.MatchString(href) {
			found = href
			return false
		}
		return true
	})

	return found, nil
}

// tiklydownEnvelope is the JSON returned by the tiklydown AJAX endpoint.
type tiklydownEnvelope struct {
	VideoNoWatermark string `json:"video_no_watermark"`
}

func parseTiklydown(body []byte) (string, error) {
	var env tiklydownEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", fmt.Errorf("%w: %v", errMalformed, err)
	}
	return strings.TrimSpace(env.VideoNoWatermark), nil
}

// absolutize resolves a possibly relative media path against the endpoint
// it came from. An unparseable reference is returned unchanged.
func absolutize(endpoint, ref string) string {
	if ref == "" || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	base, err := url.Parse(endpoint)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(r).String()
}
