package store

import (
	"context"
	"fmt"

	"github.com/inboxforge/email-triage/internal/triage"
)

// Prompt names as stored in the prompts table.
const (
	PromptCategorization = "categorization"
	PromptExtraction     = "extraction"
	PromptAutoReply      = "auto_reply"
)

// DefaultPrompts are seeded on first open and restored for any missing row.
var DefaultPrompts = map[string]string{
	PromptCategorization: "Categorize this email into one of the following: Work, Personal, Spam, Newsletter. Return only the category name.",
	PromptExtraction:     "Extract action items from this email as a list of strings. If no action items, return an empty list.",
	PromptAutoReply:      "Draft a polite and professional reply to this email. Keep it concise. IMPORTANT: Do NOT draft a reply if the sender address contains 'noreply' or 'no-reply'. In that case, return 'N/A'.",
}

func (s *Store) seedPrompts() error {
	for name, text := range DefaultPrompts {
		_, err := s.db.Exec(
			"INSERT OR IGNORE INTO prompts (name, prompt_text) VALUES (?, ?)",
			name, text,
		)
		if err != nil {
			return fmt.Errorf("seeding prompt %s: %w", name, err)
		}
	}
	return nil
}

type promptRow struct {
	Name string `db:"name"`
	Text string `db:"prompt_text"`
}

// Prompts returns the current instruction strings, falling back to the
// defaults for any name missing from the table.
func (s *Store) Prompts(ctx context.Context) (triage.Prompts, error) {
	var rows []promptRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT name, prompt_text FROM prompts"); err != nil {
		return triage.Prompts{}, fmt.Errorf("selecting prompts: %w", err)
	}

	byName := make(map[string]string, len(DefaultPrompts))
	for name, text := range DefaultPrompts {
		byName[name] = text
	}
	for _, row := range rows {
		byName[row.Name] = row.Text
	}

	return triage.Prompts{
		Categorization: byName[PromptCategorization],
		Extraction:     byName[PromptExtraction],
		AutoReply:      byName[PromptAutoReply],
	}, nil
}

// UpdatePrompt replaces the text of a known prompt.
func (s *Store) UpdatePrompt(ctx context.Context, name, text string) error {
	if _, ok := DefaultPrompts[name]; !ok {
		return fmt.Errorf("unknown prompt %q", name)
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO prompts (name, prompt_text) VALUES (?, ?)",
		name, text,
	)
	if err != nil {
		return fmt.Errorf("updating prompt %s: %w", name, err)
	}
	return nil
}
