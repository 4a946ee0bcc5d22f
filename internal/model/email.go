package model

import "time"

// Email is a stored inbox message plus its triage outcome, if any.
type Email struct {
	ID        string    `db:"id"`
	Sender    string    `db:"sender"`
	Subject   string    `db:"subject"`
	Body      string    `db:"body"`
	Timestamp time.Time `db:"timestamp"`

	Category    string `db:"category"`
	ActionItems string `db:"action_items"` // JSON array of strings
	Draft       string `db:"generated_draft"`
	Summary     string `db:"summary"`

	ImageURL  string `db:"image_url"`
	Processed bool   `db:"is_processed"`
}
