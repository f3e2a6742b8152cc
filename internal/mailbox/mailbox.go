// Package mailbox reads newsletter emails over IMAP. Fetches always
// peek so that an email is only marked seen after its analysis
// completes.
package mailbox

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/sponsorscan/sponsorscan/internal/config"
)

// Email is a parsed newsletter message.
type Email struct {
	UID        uint32 // IMAP UID, used to mark the email read
	MessageID  string
	From       string
	FromName   string // Sender display name (e.g., "The Daily Brew")
	FromDomain string
	Subject    string
	Body       string
	HTMLBody   string
	ReceivedAt time.Time
}

// Client wraps an IMAP connection to the monitored inbox.
type Client struct {
	config config.InboxConfig
	client *client.Client
}

func New(cfg config.InboxConfig) *Client {
	return &Client{config: cfg}
}

// Connect establishes the IMAP connection and logs in.
func (c *Client) Connect(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", c.config.Server, c.config.Port)

	log.Printf("Connecting to IMAP server %s...", addr)

	cl, err := client.DialTLS(addr, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	if err := cl.Login(c.config.Email, c.config.Password); err != nil {
		cl.Logout()
		return fmt.Errorf("failed to login: %w", err)
	}

	c.client = cl
	log.Printf("Logged in as %s", c.config.Email)
	return nil
}

// Close logs out of the IMAP session.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Logout()
	}
	return nil
}

// FetchUnread returns up to limit unseen emails from the configured
// folder, oldest first. Fetching does not change any flags.
func (c *Client) FetchUnread(ctx context.Context, limit int) ([]Email, error) {
	if c.client == nil {
		return nil, fmt.Errorf("not connected to IMAP server")
	}

	mbox, err := c.client.Select(c.config.Folder, false)
	if err != nil {
		return nil, fmt.Errorf("failed to select mailbox %s: %w", c.config.Folder, err)
	}

	if mbox.Messages == 0 {
		return nil, nil
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}

	uids, err := c.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search emails: %w", err)
	}

	log.Printf("Found %d unread emails in %s", len(uids), c.config.Folder)

	if len(uids) == 0 {
		return nil, nil
	}
	if limit > 0 && len(uids) > limit {
		uids = uids[:limit]
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- c.client.UidFetch(seqSet, items, messages)
	}()

	var emails []Email
	for msg := range messages {
		email, err := parseMessage(msg, section)
		if err != nil {
			log.Printf("Warning: failed to parse message: %v", err)
			continue
		}
		if email != nil {
			emails = append(emails, *email)
		}
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	return emails, nil
}

// MarkRead sets the \Seen flag on a single email.
func (c *Client) MarkRead(uid uint32) error {
	if c.client == nil {
		return fmt.Errorf("not connected to IMAP server")
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.SeenFlag}
	if err := c.client.UidStore(seqSet, item, flags, nil); err != nil {
		return fmt.Errorf("failed to mark email as read: %w", err)
	}
	return nil
}

// parseMessage converts an IMAP message to our Email struct
func parseMessage(msg *imap.Message, section *imap.BodySectionName) (*Email, error) {
	if msg == nil || msg.Envelope == nil {
		return nil, nil
	}

	email := &Email{
		UID:        msg.Uid,
		Subject:    msg.Envelope.Subject,
		ReceivedAt: msg.Envelope.Date,
	}

	if msg.Envelope.MessageId != "" {
		email.MessageID = msg.Envelope.MessageId
	}

	if len(msg.Envelope.From) > 0 {
		from := msg.Envelope.From[0]
		email.From = from.Address()
		email.FromName = from.PersonalName
		if from.HostName != "" {
			email.FromDomain = strings.ToLower(from.HostName)
		}
	}

	r := msg.GetBody(section)
	if r == nil {
		return email, nil
	}

	mr, err := mail.CreateReader(r)
	if err != nil {
		return email, nil // Return without body on parse error
	}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			ct, _, _ := h.ContentType()
			body, _ := io.ReadAll(p.Body)

			if strings.HasPrefix(ct, "text/plain") && email.Body == "" {
				email.Body = string(body)
			} else if strings.HasPrefix(ct, "text/html") && email.HTMLBody == "" {
				email.HTMLBody = string(body)
			}
		}
	}

	return email, nil
}
