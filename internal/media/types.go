// Package media defines shared types for the tokgrab application.
package media

import "time"

// OutcomeKind classifies the result of a single provider call.
type OutcomeKind int

const (
	Success OutcomeKind = iota
	EmptyResponse
	MalformedResponse
	NetworkError
	Timeout
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case EmptyResponse:
		return "empty_response"
	case MalformedResponse:
		return "malformed_response"
	case NetworkError:
		return "network_error"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Outcome is what a provider returns for one resolution attempt.
// URL is set only when Kind is Success; Err carries the failure detail otherwise.
type Outcome struct {
	Provider string
	Kind     OutcomeKind
	URL      string
	Err      error
}

// OK reports whether the outcome carries a usable media URL.
func (o Outcome) OK() bool {
	return o.Kind == Success && o.URL != ""
}

// FailureReason explains why a resolution produced no URL.
type FailureReason int

const (
	AllProvidersExhausted FailureReason = iota + 1
	Canceled
)

func (r FailureReason) String() string {
	switch r {
	case AllProvidersExhausted:
		return "all_providers_exhausted"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Result is the outcome of a full resolution: either a direct URL or a reason.
type Result struct {
	DirectURL string        // set when resolved
	Provider  string        // provider that produced DirectURL
	Reason    FailureReason // zero when resolved
	Attempts  []Outcome     // every provider attempt, in order
}

// Resolved builds a successful result.
func Resolved(url, provider string, attempts []Outcome) Result {
	return Result{DirectURL: url, Provider: provider, Attempts: attempts}
}

// Failed builds a failed result.
func Failed(reason FailureReason, attempts []Outcome) Result {
	return Result{Reason: reason, Attempts: attempts}
}

// OK reports whether the result carries a direct URL.
func (r Result) OK() bool {
	return r.Reason == 0 && r.DirectURL != ""
}

// User is a registered bot user.
type User struct {
	ID           int64
	Username     string
	FirstName    string
	LastName     string
	LanguageCode string
	JoinedAt     time.Time
}

// ItemKind is the content type of a broadcast item.
type ItemKind int

const (
	TextItem ItemKind = iota
	PhotoItem
	VideoItem
	DocumentItem
)

func (k ItemKind) String() string {
	switch k {
	case TextItem:
		return "text"
	case PhotoItem:
		return "photo"
	case VideoItem:
		return "video"
	case DocumentItem:
		return "document"
	default:
		return "unknown"
	}
}

// BroadcastItem is one message fanned out to every recipient.
type BroadcastItem struct {
	Kind    ItemKind
	Text    string // body for TextItem
	FileID  string // gateway file reference for media items
	Caption string
}

// DeliveryReport tallies a broadcast batch.
type DeliveryReport struct {
	Success int
	Failed  int
}
