// Package gemini implements the model gateway on top of the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/inboxforge/email-triage/internal/triage"
)

type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides the Gemini API base URL. Useful for proxies/testing.
	BaseURL string

	// RateLimitRPS is a global request rate limit. Set to <=0 to disable.
	RateLimitRPS float64
}

// Gateway sends one multimodal request per batch and returns the raw
// response text. It performs no retries; a failed call surfaces to the
// pipeline, which degrades that batch to defaults.
type Gateway struct {
	client  *genai.Client
	model   string
	limiter *rate.Limiter
}

func New(ctx context.Context, cfg Config) (*Gateway, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("GEMINI_MODEL is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), 1)
	}

	return &Gateway{
		client:  client,
		model:   strings.TrimSpace(cfg.Model),
		limiter: limiter,
	}, nil
}

// Generate invokes the model once with the assembled parts.
func (g *Gateway) Generate(ctx context.Context, parts []triage.Part) (string, error) {
	if len(parts) == 0 {
		return "", errors.New("empty request")
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	content := genai.NewContentFromParts(convertParts(parts), genai.RoleUser)
	resp, err := g.client.Models.GenerateContent(
		ctx,
		g.model,
		[]*genai.Content{content},
		&genai.GenerateContentConfig{
			CandidateCount: 1,
			Temperature:    genai.Ptr[float32](0),
		},
	)
	if err != nil {
		return "", classifyErr(err)
	}
	return resp.Text(), nil
}

func convertParts(parts []triage.Part) []*genai.Part {
	out := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		if len(p.Data) > 0 {
			mimeType := p.MIMEType
			if mimeType == "" {
				mimeType = "image/jpeg"
			}
			out = append(out, &genai.Part{
				InlineData: &genai.Blob{MIMEType: mimeType, Data: p.Data},
			})
			continue
		}
		out = append(out, &genai.Part{Text: p.Text})
	}
	return out
}

// TransientError marks a failure that a later re-run could succeed on
// (rate limiting, server errors, network timeouts). The pipeline does not
// retry; re-selecting still-unprocessed emails on the next run covers it.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	if e == nil || e.Err == nil {
		return "transient error"
	}
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func classifyErr(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Code/100 == 5 {
			return &TransientError{Err: err}
		}
		return err
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &TransientError{Err: err}
	}
	return err
}
