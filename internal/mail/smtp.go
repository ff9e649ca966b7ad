package mail

import (
	"context"
	"fmt"
	"net/mail"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"

	"briefing_agent/internal/model"
)

// SMTP sends briefings over plain SMTP with AUTH PLAIN.
type SMTP struct {
	host     string
	port     int
	username string
	password string
	from     string

	// sendMail is swappable for testing; defaults to smtp.SendMail.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTP creates an SMTP sender.
func NewSMTP(host string, port int, username, password, from string) *SMTP {
	return &SMTP{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		sendMail: smtp.SendMail,
	}
}

// Send delivers one HTML email and returns a receipt.
func (s *SMTP) Send(ctx context.Context, to, subject, htmlBody string) (*model.DeliveryReceipt, error) {
	if _, err := mail.ParseAddress(to); err != nil {
		return nil, &InvalidRecipientError{To: to, Reason: err.Error()}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	messageID := uuid.NewString()
	msg := buildMessage(s.from, to, subject, messageID, htmlBody)

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	if err := s.sendMail(addr, auth, s.from, []string{to}, msg); err != nil {
		if isPermanentSMTPFailure(err) {
			return nil, &InvalidRecipientError{To: to, Reason: err.Error()}
		}
		return nil, &ProviderError{Err: err}
	}

	return &model.DeliveryReceipt{
		MessageID: messageID,
		To:        to,
		SentAt:    time.Now().UTC(),
	}, nil
}

func buildMessage(from, to, subject, messageID, htmlBody string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Message-ID: <%s@briefing-agent>\r\n", messageID)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}

// 5xx SMTP replies on the recipient are permanent; everything else
// (connection refused, 4xx greylisting) may clear up on retry.
func isPermanentSMTPFailure(err error) bool {
	msg := err.Error()
	for _, code := range []string{"550", "551", "553"} {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return false
}
