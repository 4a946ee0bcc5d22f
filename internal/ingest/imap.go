package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"

	"github.com/inboxforge/email-triage/internal/model"
)

// IMAPConfig holds the connection settings for an IMAP mailbox.
type IMAPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	TLS      bool
}

// IMAPClient fetches recent inbox messages over IMAP.
type IMAPClient struct {
	cfg IMAPConfig
}

func NewIMAPClient(cfg IMAPConfig) *IMAPClient {
	return &IMAPClient{cfg: cfg}
}

func (c *IMAPClient) connect() (*imapclient.Client, error) {
	addr := c.cfg.Host + ":" + c.cfg.Port

	var client *imapclient.Client
	var err error
	if c.cfg.TLS {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(c.cfg.Username, c.cfg.Password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("authentication failed for %s: %w", c.cfg.Username, err)
	}

	return client, nil
}

// FetchInbox returns up to limit of the most recent INBOX messages from the
// last 30 days, normalized into email records. Messages are fetched with
// Peek so their unread flags are untouched.
func (c *IMAPClient) FetchInbox(_ context.Context, limit int) ([]model.Email, error) {
	client, err := c.connect()
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		return nil, fmt.Errorf("selecting INBOX: %w", err)
	}

	since := time.Now().AddDate(0, 0, -30)
	searchData, err := client.UIDSearch(&imap.SearchCriteria{Since: since}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}
	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	})
	defer fetchCmd.Close()

	var emails []model.Email
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			continue
		}
		emails = append(emails, emailFromBuffer(buf, bodySection))
	}

	if err := fetchCmd.Close(); err != nil {
		return emails, fmt.Errorf("fetching messages: %w", err)
	}
	return emails, nil
}

// emailFromBuffer converts a fetched message into an email record. The
// plain-text body is preferred; HTML is the fallback.
func emailFromBuffer(buf *imapclient.FetchMessageBuffer, section *imap.FetchItemBodySection) model.Email {
	e := model.Email{
		ID:        strconv.FormatUint(uint64(buf.UID), 10),
		Timestamp: time.Now().UTC(),
	}

	if buf.Envelope != nil {
		e.Subject = buf.Envelope.Subject
		if !buf.Envelope.Date.IsZero() {
			e.Timestamp = buf.Envelope.Date
		}
		if len(buf.Envelope.From) > 0 {
			e.Sender = buf.Envelope.From[0].Addr()
		}
	}

	if raw := buf.FindBodySection(section); raw != nil {
		text, html := parseBody(raw)
		if text != "" {
			e.Body = text
		} else {
			e.Body = html
		}
	}
	return e
}

// parseBody extracts the text/plain and text/html parts of a raw RFC 2822
// message. A message that fails MIME parsing is treated as plain text.
func parseBody(raw []byte) (textBody, htmlBody string) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return string(raw), ""
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain"):
			textBody = string(body)
		case strings.HasPrefix(contentType, "text/html"):
			htmlBody = string(body)
		}
	}

	return textBody, htmlBody
}
