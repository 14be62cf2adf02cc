package mail

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// sendMail is a seam for testing smtp.SendMail.
var sendMail = smtp.SendMail

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
}

// SMTP relays through a mail server. PLAIN auth is used when a user is set.
type SMTP struct {
	addr string
	host string
	auth smtp.Auth
}

func NewSMTP(cfg SMTPConfig) *SMTP {
	s := &SMTP{
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		host: cfg.Host,
	}
	if cfg.User != "" {
		s.auth = smtp.PlainAuth("", cfg.User, cfg.Password, cfg.Host)
	}
	return s
}

func (s *SMTP) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := msg.Bytes(time.Now(), uuid.NewString()+"@"+s.host)
	if err != nil {
		return err
	}

	if err := sendMail(s.addr, s.auth, msg.From, msg.To, raw); err != nil {
		return fmt.Errorf("smtp %s: %w", s.addr, err)
	}
	return nil
}
