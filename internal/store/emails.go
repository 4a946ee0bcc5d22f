package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/inboxforge/email-triage/internal/model"
	"github.com/inboxforge/email-triage/internal/triage"
)

// SaveEmails inserts new emails, ignoring ids that already exist. Re-running
// an ingest never resets triage results.
func (s *Store) SaveEmails(ctx context.Context, emails []model.Email) error {
	if len(emails) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT OR IGNORE INTO emails (
			id, sender, subject, body, timestamp, image_url
		) VALUES (?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range emails {
		_, err = stmt.ExecContext(ctx,
			e.ID, e.Sender, e.Subject, e.Body, e.Timestamp.UTC(), e.ImageURL,
		)
		if err != nil {
			return fmt.Errorf("inserting email %s: %w", e.ID, err)
		}
	}

	return tx.Commit()
}

// Unprocessed returns emails that have not been triaged yet, in stable
// order.
func (s *Store) Unprocessed(ctx context.Context) ([]model.Email, error) {
	var emails []model.Email
	err := s.db.SelectContext(ctx, &emails,
		"SELECT * FROM emails WHERE is_processed = 0 ORDER BY timestamp ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("selecting unprocessed emails: %w", err)
	}
	return emails, nil
}

// All returns every stored email, newest first.
func (s *Store) All(ctx context.Context) ([]model.Email, error) {
	var emails []model.Email
	err := s.db.SelectContext(ctx, &emails,
		"SELECT * FROM emails ORDER BY timestamp DESC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("selecting emails: %w", err)
	}
	return emails, nil
}

// UpdateResult writes the triage outcome for one email and marks it
// processed. The write is a self-contained upsert keyed by id, so a repeat
// of the same update is harmless. The processed transition is one-way: the
// row leaves the Unprocessed read path and only Clear brings anything back.
func (s *Store) UpdateResult(ctx context.Context, id string, res triage.Result) error {
	items := res.ActionItems
	if items == nil {
		items = []string{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshaling action items for %s: %w", id, err)
	}

	const query = `
		UPDATE emails
		SET category = ?, action_items = ?, generated_draft = ?, summary = ?, is_processed = 1
		WHERE id = ?`

	_, err = s.db.ExecContext(ctx, query,
		res.Category, string(itemsJSON), res.Draft, res.Summary, id)
	if err != nil {
		return fmt.Errorf("updating result for %s: %w", id, err)
	}
	return nil
}

// Clear deletes all stored emails.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM emails"); err != nil {
		return fmt.Errorf("clearing emails: %w", err)
	}
	return nil
}

// ActionItems decodes the stored JSON action item list of an email row.
func ActionItems(e model.Email) []string {
	if e.ActionItems == "" {
		return []string{}
	}
	var items []string
	if err := json.Unmarshal([]byte(e.ActionItems), &items); err != nil {
		return []string{}
	}
	if items == nil {
		return []string{}
	}
	return items
}
