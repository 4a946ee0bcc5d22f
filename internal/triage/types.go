package triage

import "context"

// WorkItem is one unprocessed email submitted to the pipeline.
// Items are immutable for the duration of a run.
type WorkItem struct {
	ID       string
	Sender   string
	Body     string
	ImageURL string
}

// Prompts holds the per-run instruction strings. They are passed explicitly
// so a run is a pure function of its inputs aside from the gateway call.
type Prompts struct {
	Categorization string
	Extraction     string
	AutoReply      string
}

// Result is the triage outcome for a single email.
type Result struct {
	Category    string   `json:"category"`
	ActionItems []string `json:"action_items"`
	Draft       string   `json:"generated_draft"`
	Summary     string   `json:"summary"`
}

// DefaultCategory is persisted for emails the model returned nothing for.
const DefaultCategory = "Uncategorized"

// DefaultResult returns the fixed fallback tuple applied to any email absent
// from the model response.
func DefaultResult() Result {
	return Result{
		Category:    DefaultCategory,
		ActionItems: []string{},
		Draft:       "",
		Summary:     "",
	}
}

// Part is one segment of a multimodal model request: either text or inline
// image bytes.
type Part struct {
	Text string

	Data     []byte
	MIMEType string
}

// Gateway invokes the generative-language backend with one multimodal
// request and returns the raw response text. Implementations must not retry
// implicitly; retry policy belongs to the caller.
type Gateway interface {
	Generate(ctx context.Context, parts []Part) (string, error)
}

// ResultStore persists the triage outcome for one email and marks it
// processed. The write must be an atomic upsert, idempotent under retry.
type ResultStore interface {
	UpdateResult(ctx context.Context, id string, res Result) error
}

// ImageFetcher retrieves an image referenced by an email. Implementations
// must bound the fetch with a timeout short relative to the model call.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (data []byte, mimeType string, err error)
}
