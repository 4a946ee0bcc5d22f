// Package ingest loads inbox messages into the store, either from a mock
// inbox file or from an IMAP server.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/inboxforge/email-triage/internal/model"
	"github.com/inboxforge/email-triage/internal/store"
)

// mockEmail is one entry of a mock inbox JSON file. Only id, sender and body
// are meaningful to triage; everything else is defaulted when absent.
type mockEmail struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Timestamp string `json:"timestamp"`
	ImageURL  string `json:"image_url"`
}

// LoadMockInbox reads a JSON array of emails and saves them. Entries without
// an id get a generated one; entries without a timestamp are stamped with
// the current time. Returns the number of entries read.
func LoadMockInbox(ctx context.Context, s *store.Store, r io.Reader) (int, error) {
	var entries []mockEmail
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return 0, fmt.Errorf("decoding mock inbox: %w", err)
	}

	now := time.Now().UTC()
	emails := make([]model.Email, 0, len(entries))
	for _, entry := range entries {
		id := entry.ID
		if id == "" {
			id = uuid.NewString()
		}
		ts := now
		if entry.Timestamp != "" {
			parsed, err := time.Parse(time.RFC3339, entry.Timestamp)
			if err == nil {
				ts = parsed
			}
		}
		emails = append(emails, model.Email{
			ID:        id,
			Sender:    entry.Sender,
			Subject:   entry.Subject,
			Body:      entry.Body,
			Timestamp: ts,
			ImageURL:  entry.ImageURL,
		})
	}

	if err := s.SaveEmails(ctx, emails); err != nil {
		return 0, err
	}
	return len(emails), nil
}
