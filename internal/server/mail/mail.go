// Package mail delivers the account emails: activation and password reset
// links. Backends are SMTP, a console writer, an in-memory outbox and an S3
// drop bucket.
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Message struct {
	Subject string
	Body    string
	From    string
	To      []string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

var ErrHeaderInjection = errors.New("mail: header contains a line break")

func (m Message) validate() error {
	if len(m.To) == 0 {
		return errors.New("mail: no recipients")
	}
	for _, h := range append([]string{m.Subject, m.From}, m.To...) {
		if strings.ContainsAny(h, "\r\n") {
			return ErrHeaderInjection
		}
	}
	return nil
}

// Bytes renders the message as RFC 822 text with CRLF line endings.
func (m Message) Bytes(date time.Time, messageID string) ([]byte, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", m.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(m.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", m.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", date.Format(time.RFC1123Z))
	if messageID != "" {
		fmt.Fprintf(&b, "Message-ID: <%s>\r\n", messageID)
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")

	body := strings.ReplaceAll(m.Body, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	if !strings.HasSuffix(body, "\n") {
		b.WriteString("\r\n")
	}

	return b.Bytes(), nil
}
