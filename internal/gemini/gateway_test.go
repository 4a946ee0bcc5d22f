package gemini

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/inboxforge/email-triage/internal/triage"
)

type timeoutNetErr struct{}

func (timeoutNetErr) Error() string   { return "timeout" }
func (timeoutNetErr) Timeout() bool   { return true }
func (timeoutNetErr) Temporary() bool { return false }

func TestClassifyErr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		in            error
		wantTransient bool
	}{
		{name: "nil", in: nil, wantTransient: false},
		{name: "api_429", in: genai.APIError{Code: 429}, wantTransient: true},
		{name: "api_503", in: genai.APIError{Code: 503}, wantTransient: true},
		{name: "api_400", in: genai.APIError{Code: 400}, wantTransient: false},
		{name: "net_timeout", in: timeoutNetErr{}, wantTransient: true},
		{name: "plain", in: errors.New("boom"), wantTransient: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyErr(tt.in)
			var te *TransientError
			assert.Equal(t, tt.wantTransient, errors.As(got, &te))
		})
	}
}

func TestConvertParts(t *testing.T) {
	t.Parallel()

	parts := convertParts([]triage.Part{
		{Text: "instructions"},
		{Data: []byte{1, 2, 3}, MIMEType: "image/png"},
		{Data: []byte{4}},
	})

	require.Len(t, parts, 3)
	assert.Equal(t, "instructions", parts[0].Text)

	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "image/png", parts[1].InlineData.MIMEType)
	assert.Equal(t, []byte{1, 2, 3}, parts[1].InlineData.Data)

	// Untyped image data falls back to jpeg, matching what senders most
	// commonly attach.
	require.NotNil(t, parts[2].InlineData)
	assert.Equal(t, "image/jpeg", parts[2].InlineData.MIMEType)
}

func TestNew_RequiresConfig(t *testing.T) {
	t.Parallel()

	_, err := New(t.Context(), Config{Model: "gemini-2.5-flash-lite"})
	require.Error(t, err)

	_, err = New(t.Context(), Config{APIKey: "k"})
	require.Error(t, err)
}
