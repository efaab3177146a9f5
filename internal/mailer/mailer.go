// Package mailer delivers notification emails over SMTP. Delivery is always
// best-effort: callers record failures on the notification row instead of
// failing the triggering operation.
package mailer

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/url"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/wildsight/wildsight-go/internal/conf"
	"github.com/wildsight/wildsight-go/internal/errors"
	"github.com/wildsight/wildsight-go/internal/logging"
)

// ErrDisabled is returned by Send when mail delivery is not configured.
var ErrDisabled = errors.Newf("mail delivery is disabled").
	Component("mailer").
	Category(errors.CategoryEmail).
	Build()

// Mailer sends one rendered email to one recipient.
type Mailer interface {
	Send(to, subject, htmlBody string) error
	Enabled() bool
}

// SMTPMailer delivers mail through an SMTP relay.
type SMTPMailer struct {
	settings conf.MailSettings
	timeout  time.Duration
	logger   *slog.Logger
}

// New creates a mailer from the mail settings. A disabled configuration
// still yields a usable mailer whose Send reports ErrDisabled.
func New(settings conf.MailSettings) *SMTPMailer {
	return &SMTPMailer{
		settings: settings,
		timeout:  15 * time.Second,
		logger:   logging.ForService("mailer"),
	}
}

// Enabled reports whether delivery is configured.
func (m *SMTPMailer) Enabled() bool {
	return m.settings.Enabled && m.settings.Host != ""
}

// Send delivers one HTML email. The recipient varies per message, so the
// transport URL is rebuilt on each call.
func (m *SMTPMailer) Send(to, subject, htmlBody string) error {
	if !m.Enabled() {
		return ErrDisabled
	}
	if to == "" {
		return errors.Newf("recipient address is empty").
			Component("mailer").
			Category(errors.CategoryValidation).
			Build()
	}

	sender, err := shoutrrr.CreateSender(m.serviceURL(to))
	if err != nil {
		return errors.New(err).
			Component("mailer").
			Category(errors.CategoryEmail).
			Context("operation", "create_sender").
			Build()
	}
	sender.Timeout = m.timeout
	sender.SetLogger(log.New(io.Discard, "", 0))

	params := stypes.Params{}
	params.SetTitle(subject)

	if errs := sender.Send(m.renderBody(htmlBody), &params); len(errs) > 0 {
		for _, e := range errs {
			if e != nil {
				return errors.New(e).
					Component("mailer").
					Category(errors.CategoryEmail).
					Context("operation", "send").
					Build()
			}
		}
	}

	m.logger.Debug("email sent", "subject", subject)
	return nil
}

// renderBody picks the transport body: HTML as-is, or its text
// alternative when the relay is configured for plain-text delivery.
func (m *SMTPMailer) renderBody(htmlBody string) string {
	if m.settings.HTML {
		return htmlBody
	}
	return PlainText(htmlBody)
}

// serviceURL renders the shoutrrr SMTP transport URL for one recipient.
func (m *SMTPMailer) serviceURL(to string) string {
	query := url.Values{}
	query.Set("from", m.settings.From)
	query.Set("to", to)
	query.Set("subject", "")
	if m.settings.HTML {
		query.Set("useHTML", "yes")
	}
	if m.settings.Username == "" {
		query.Set("auth", "None")
	}

	return fmt.Sprintf("smtp://%s:%s@%s:%d/?%s",
		url.QueryEscape(m.settings.Username),
		url.QueryEscape(m.settings.Password),
		m.settings.Host,
		m.settings.Port,
		query.Encode())
}
