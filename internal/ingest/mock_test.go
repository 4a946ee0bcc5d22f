package ingest_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxforge/email-triage/internal/ingest"
	"github.com/inboxforge/email-triage/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "triage.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestLoadMockInbox(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	inbox := `[
		{"id": "m1", "sender": "boss@example.com", "subject": "Standup", "body": "Move standup to 10am?", "timestamp": "2025-06-01T09:00:00Z"},
		{"sender": "shop@example.com", "body": "Your receipt", "image_url": "http://example.com/receipt.png"}
	]`

	count, err := ingest.LoadMockInbox(ctx, s, strings.NewReader(inbox))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	emails, err := s.Unprocessed(ctx)
	require.NoError(t, err)
	require.Len(t, emails, 2)

	byID := map[string]bool{}
	for _, e := range emails {
		byID[e.ID] = true
		assert.False(t, e.Processed)
	}
	assert.True(t, byID["m1"])

	for _, e := range emails {
		if e.ID == "m1" {
			assert.Equal(t, "boss@example.com", e.Sender)
			assert.Equal(t, 2025, e.Timestamp.UTC().Year())
			continue
		}
		// The entry without an id got a generated one.
		assert.NotEmpty(t, e.ID)
		assert.Equal(t, "http://example.com/receipt.png", e.ImageURL)
	}
}

func TestLoadMockInbox_BadJSON(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	_, err := ingest.LoadMockInbox(context.Background(), s, strings.NewReader("{not json"))
	require.Error(t, err)
}
