// Package export writes triaged emails as CSV for downstream consumption.
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/inboxforge/email-triage/internal/model"
)

// Header returns the stable CSV header for exported emails.
func Header() []string {
	return []string{
		"id",
		"sender",
		"subject",
		"timestamp",
		"category",
		"action_items",
		"generated_draft",
		"summary",
		"image_url",
		"processed",
	}
}

// WriteCSV writes emails as a CSV with the stable Header() ordering. Action
// items are emitted verbatim as their stored JSON array.
func WriteCSV(w io.Writer, emails []model.Email) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return err
	}
	for _, e := range emails {
		items := e.ActionItems
		if items == "" {
			items = "[]"
		}
		if err := cw.Write([]string{
			e.ID,
			e.Sender,
			e.Subject,
			e.Timestamp.UTC().Format(time.RFC3339),
			e.Category,
			items,
			e.Draft,
			e.Summary,
			e.ImageURL,
			strconv.FormatBool(e.Processed),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
