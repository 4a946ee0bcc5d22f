package triage

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"
)

// ParseResults extracts the per-email result mapping from raw model text.
// The text may be wrapped in a markdown code fence (language-tagged or bare);
// one fence block is stripped if present. On any parse failure the whole
// batch degrades to an empty mapping so the pipeline keeps moving; this
// function never returns an error.
func ParseResults(raw string, log *zap.Logger) map[string]Result {
	text := stripFence(raw)

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &envelope); err != nil {
		log.Warn("model response is not a JSON object, dropping batch results", zap.Error(err))
		return map[string]Result{}
	}

	out := make(map[string]Result, len(envelope))
	for id, rawRes := range envelope {
		var res Result
		if err := json.Unmarshal(rawRes, &res); err != nil {
			// A present id with an unusable value is treated as missing
			// data; the pipeline substitutes defaults for it.
			log.Warn("unusable result entry in model response",
				zap.String("email_id", id),
				zap.Error(err))
			continue
		}
		out[id] = res
	}
	return out
}

// stripFence removes a single surrounding markdown code fence, preferring a
// ```json-tagged block over a bare one. Text without fence markers is
// returned as-is.
func stripFence(raw string) string {
	if _, after, ok := strings.Cut(raw, "```json"); ok {
		if inner, _, ok := strings.Cut(after, "```"); ok {
			return strings.TrimSpace(inner)
		}
		return strings.TrimSpace(after)
	}
	if _, after, ok := strings.Cut(raw, "```"); ok {
		if inner, _, ok := strings.Cut(after, "```"); ok {
			return strings.TrimSpace(inner)
		}
		return strings.TrimSpace(after)
	}
	return strings.TrimSpace(raw)
}
