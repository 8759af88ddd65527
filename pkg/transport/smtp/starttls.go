package smtp

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/notifier/pkg/transport"
)

const dialTimeout = 10 * time.Second

// ErrStartTLSRequired is returned when TLS is configured but the server does
// not offer STARTTLS. Nothing is authenticated or sent in that case.
var ErrStartTLSRequired = errors.New("server does not offer STARTTLS")

// startTLSDialer refuses to continue over a plaintext connection. gomail only
// upgrades opportunistically.
type startTLSDialer struct {
	server    transport.Server
	tlsConfig *tls.Config
}

func newStartTLSDialer(server transport.Server) *startTLSDialer {
	return &startTLSDialer{
		server:    server,
		tlsConfig: &tls.Config{ServerName: server.Address},
	}
}

func (d *startTLSDialer) DialAndSend(msgs ...*gomail.Message) error {
	addr := net.JoinHostPort(d.server.Address, strconv.Itoa(d.server.Port))
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return err
	}

	c, err := smtp.NewClient(conn, d.server.Address)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); !ok {
		return ErrStartTLSRequired
	}
	if err := c.StartTLS(d.tlsConfig); err != nil {
		return fmt.Errorf("starttls: %w", err)
	}

	if d.server.UserName != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(smtp.PlainAuth("", d.server.UserName, d.server.Password, d.server.Address)); err != nil {
				return fmt.Errorf("auth: %w", err)
			}
		}
	}

	send := gomail.SendFunc(func(from string, to []string, msg io.WriterTo) error {
		if err := c.Mail(from); err != nil {
			return err
		}
		for _, rcpt := range to {
			if err := c.Rcpt(rcpt); err != nil {
				return err
			}
		}
		w, err := c.Data()
		if err != nil {
			return err
		}
		if _, err := msg.WriteTo(w); err != nil {
			w.Close()
			return err
		}
		return w.Close()
	})
	if err := gomail.Send(send, msgs...); err != nil {
		return err
	}
	return c.Quit()
}
