// Package smtp sends messages through an SMTP relay.
package smtp

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/notifier/pkg/transport"
)

const implicitTLSPort = 465

// Dialer is the part of gomail.Dialer the sender uses.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// DialerFactory builds a dialer for a server.
type DialerFactory func(server transport.Server) Dialer

type Sender struct {
	dial DialerFactory
}

func New() *Sender {
	return &Sender{dial: NewDialer}
}

func NewWithDialer(dial DialerFactory) *Sender {
	return &Sender{dial: dial}
}

// NewDialer uses implicit TLS on port 465 when TLS is enabled and requires
// STARTTLS on other ports. Without TLS gomail upgrades only when the server
// offers it.
func NewDialer(server transport.Server) Dialer {
	if server.TLS && server.Port != implicitTLSPort {
		return newStartTLSDialer(server)
	}
	d := gomail.NewDialer(server.Address, server.Port, server.UserName, server.Password)
	d.SSL = server.TLS
	return d
}

func (s *Sender) Send(ctx context.Context, server transport.Server, msg transport.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m, err := Build(server, msg)
	if err != nil {
		return err
	}
	if err := s.dial(server).DialAndSend(m); err != nil {
		return fmt.Errorf("smtp %s:%d: %w", server.Address, server.Port, err)
	}
	return nil
}

// Build assembles the MIME message. Reply-To recipients are not supported on
// this channel and are dropped.
func Build(server transport.Server, msg transport.Message) (*gomail.Message, error) {
	if server.From == "" {
		return nil, fmt.Errorf("smtp: sender address is not configured")
	}
	if len(msg.To)+len(msg.Cc)+len(msg.Bcc) == 0 {
		return nil, fmt.Errorf("smtp: message has no recipients")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", server.From)
	m.SetHeader("Sender", server.From)
	if len(msg.To) > 0 {
		m.SetHeader("To", msg.To...)
	}
	if len(msg.Cc) > 0 {
		m.SetHeader("Cc", msg.Cc...)
	}
	if len(msg.Bcc) > 0 {
		m.SetHeader("Bcc", msg.Bcc...)
	}
	m.SetHeader("Subject", msg.Subject)

	contentType := "text/plain"
	if msg.HTML {
		contentType = "text/html"
	}
	m.SetBody(contentType, msg.Body)
	return m, nil
}
