package triage

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Chunk partitions items into contiguous, order-preserving slices of at most
// size elements. Only the last chunk may be shorter. The returned chunks
// alias the input slice.
func Chunk(items []WorkItem, size int) [][]WorkItem {
	if size <= 0 || len(items) == 0 {
		return nil
	}
	chunks := make([][]WorkItem, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

const instructionTemplate = `You are an intelligent email assistant. Process the following batch of emails.
Some emails may contain attached images. Use the image context to improve categorization and extraction (e.g., if it's a receipt or a screenshot of an error).

For EACH email, you must provide:
1. Category: %s
2. Action Items: %s (Return as a list of strings)
3. Draft Reply: %s (Return 'N/A' if Spam or no reply needed)
4. Summary: A concise 1-2 sentence summary of the email content.

RETURN ONLY JSON. The output must be a JSON object where keys are the Email IDs and values are objects containing 'category', 'action_items', 'generated_draft', and 'summary'.`

// BuildRequest assembles the multimodal request for one batch: a single
// instruction block, a text segment per email, and an inline image part for
// every item whose image could be fetched. Image fetch failures are logged
// and skipped; they never abort the batch. Callers are responsible for
// keeping len(items) within the configured batch size.
func BuildRequest(ctx context.Context, items []WorkItem, prompts Prompts, fetcher ImageFetcher, log *zap.Logger) []Part {
	parts := make([]Part, 0, len(items)+1)
	parts = append(parts, Part{
		Text: fmt.Sprintf(instructionTemplate, prompts.Categorization, prompts.Extraction, prompts.AutoReply),
	})

	for _, item := range items {
		var b strings.Builder
		b.WriteString("\n---\n")
		b.WriteString("Email ID: " + item.ID + "\n")
		b.WriteString("From: " + item.Sender + "\n")
		b.WriteString("Body:\n" + item.Body + "\n")
		parts = append(parts, Part{Text: b.String()})

		url := strings.TrimSpace(item.ImageURL)
		if url == "" || fetcher == nil {
			continue
		}
		if !strings.HasPrefix(url, "http") {
			continue
		}
		data, mimeType, err := fetcher.Fetch(ctx, url)
		if err != nil {
			log.Warn("image fetch failed, processing text-only",
				zap.String("email_id", item.ID),
				zap.String("url", url),
				zap.Error(err))
			continue
		}
		parts = append(parts, Part{Data: data, MIMEType: mimeType})
	}
	return parts
}
