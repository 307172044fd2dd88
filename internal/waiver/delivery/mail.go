// Package delivery sends generated waivers by e-mail.
package delivery

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/wneessen/go-mail"

	werrors "github.com/a3tai/mcp-pdf-waiver/internal/waiver/errors"
)

// TLS policy names accepted in Config.TLS
const (
	TLSMandatory     = "mandatory"
	TLSOpportunistic = "opportunistic"
	TLSNone          = "none"
)

// Config holds SMTP settings
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Subject  string
	TLS      string
	Timeout  time.Duration
}

// Enabled reports whether delivery is configured at all
func (c Config) Enabled() bool {
	return c.Host != ""
}

// Validate checks the configuration of an enabled sender
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("smtp host cannot be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("smtp port must be between 1 and 65535, got %d", c.Port)
	}
	if c.From == "" {
		return fmt.Errorf("smtp sender address cannot be empty")
	}
	if _, err := tlsPolicy(c.TLS); err != nil {
		return err
	}
	return nil
}

// Message is a generated document addressed to one or more recipients
type Message struct {
	To         []string
	Subject    string
	Body       string
	Filename   string
	Attachment []byte
}

// Sender delivers messages
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Outgoing is a message captured instead of sent
type Outgoing struct {
	From       string
	To         []string
	Subject    string
	Body       string
	Filename   string
	Attachment []byte
}

// SMTPSender implements Sender over SMTP
type SMTPSender struct {
	config Config

	outboxOverride chan<- Outgoing // not nil in tests only
}

// NewSMTPSender creates a sender for an enabled configuration
func NewSMTPSender(config Config) (*SMTPSender, error) {
	if err := config.Validate(); err != nil {
		return nil, werrors.Wrap(werrors.ErrorTypeConfiguration, "invalid smtp configuration", err)
	}
	return &SMTPSender{config: config}, nil
}

// NewCapturingSender creates a sender that pushes every message to outbox instead of
// dialing the server
func NewCapturingSender(config Config, outbox chan<- Outgoing) *SMTPSender {
	return &SMTPSender{config: config, outboxOverride: outbox}
}

// Send implements Sender. Every failure is a delivery error.
func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	if len(m.To) == 0 {
		return werrors.NewFillError(werrors.ErrorTypeDelivery, "no recipients")
	}
	subject := m.Subject
	if subject == "" {
		subject = s.config.Subject
	}
	body := SanitizeBody(m.Body)

	msg := mail.NewMsg()
	msg.Subject(subject)
	if err := msg.From(s.config.From); err != nil {
		return werrors.Wrap(werrors.ErrorTypeDelivery, "invalid sender address", err)
	}
	if err := msg.To(m.To...); err != nil {
		return werrors.Wrap(werrors.ErrorTypeDelivery, "invalid recipient address", err)
	}
	msg.SetBodyString(mail.TypeTextHTML, body)
	msg.SetCharset(mail.CharsetUTF8)
	if len(m.Attachment) > 0 {
		msg.AttachReader(m.Filename, bytes.NewReader(m.Attachment))
	}

	log.Printf("send waiver %q from %q to %s", m.Filename, s.config.From, m.To)

	if s.outboxOverride != nil {
		out := Outgoing{
			From:       s.config.From,
			To:         append([]string(nil), m.To...),
			Subject:    subject,
			Body:       body,
			Filename:   m.Filename,
			Attachment: m.Attachment,
		}
		select {
		case s.outboxOverride <- out:
			return nil
		case <-ctx.Done():
			return werrors.Wrap(werrors.ErrorTypeDelivery, "send cancelled", ctx.Err())
		}
	}

	client, err := s.client()
	if err != nil {
		return werrors.Wrap(werrors.ErrorTypeDelivery, "failed to create smtp client", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return werrors.Wrap(werrors.ErrorTypeDelivery, "failed to send mail", err)
	}

	log.Printf("waiver %q sent to %s", m.Filename, m.To)
	return nil
}

func (s *SMTPSender) client() (*mail.Client, error) {
	policy, err := tlsPolicy(s.config.TLS)
	if err != nil {
		return nil, err
	}
	opts := []mail.Option{
		mail.WithPort(s.config.Port),
		mail.WithTLSPolicy(policy),
	}
	if s.config.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(s.config.Timeout))
	}
	if s.config.Username != "" {
		opts = append(opts,
			mail.WithUsername(s.config.Username),
			mail.WithPassword(s.config.Password),
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
		)
	}
	return mail.NewClient(s.config.Host, opts...)
}

func tlsPolicy(name string) (mail.TLSPolicy, error) {
	switch strings.ToLower(name) {
	case "", TLSMandatory:
		return mail.TLSMandatory, nil
	case TLSOpportunistic:
		return mail.TLSOpportunistic, nil
	case TLSNone:
		return mail.NoTLS, nil
	default:
		return mail.NoTLS, fmt.Errorf("unknown smtp tls policy %q", name)
	}
}

var (
	bodyPolicyOnce sync.Once
	bodyPolicy     *bluemonday.Policy
)

// SanitizeBody strips anything but basic formatting markup from an HTML body
func SanitizeBody(raw string) string {
	bodyPolicyOnce.Do(func() {
		bodyPolicy = bluemonday.UGCPolicy()
	})
	return strings.TrimSpace(bodyPolicy.Sanitize(raw))
}

// Body renders the default notification body for a generated waiver
func Body(title, signer string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<p>Attached is the completed <strong>%s</strong>", html.EscapeString(title))
	if signer != "" {
		fmt.Fprintf(&b, " signed by %s", html.EscapeString(signer))
	}
	b.WriteString(".</p>")
	return SanitizeBody(b.String())
}
