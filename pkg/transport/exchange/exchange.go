// Package exchange sends mail through Exchange Web Services.
package exchange

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Azure/go-ntlmssp"

	"github.com/jwalitptl/notifier/pkg/transport"
)

const (
	serverVersion = "Exchange2010_SP1"
	ewsPath       = "/EWS/Exchange.asmx"
	soapAction    = "http://schemas.microsoft.com/exchange/services/2006/messages/CreateItem"
)

type Sender struct {
	client *http.Client
}

type Option func(*Sender)

// WithHTTPClient replaces the default NTLM client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Sender) { s.client = c }
}

// New returns a sender whose client negotiates NTLM and accepts any server
// certificate. Exchange deployments commonly run on self-signed certificates.
func New(opts ...Option) *Sender {
	s := &Sender{client: NewClient(60 * time.Second)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func NewClient(timeout time.Duration) *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	return &http.Client{
		Timeout:   timeout,
		Transport: ntlmssp.Negotiator{RoundTripper: tr},
	}
}

// Send posts a CreateItem request. A message without To recipients is
// considered sent and no request is made.
func (s *Sender) Send(ctx context.Context, server transport.Server, msg transport.Message) error {
	if len(msg.To) == 0 {
		return nil
	}

	payload, err := xml.Marshal(newCreateItem(server, msg))
	if err != nil {
		return fmt.Errorf("exchange: failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, Endpoint(server), bytes.NewReader(append([]byte(xml.Header), payload...)))
	if err != nil {
		return fmt.Errorf("exchange: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", soapAction)
	if server.UserName != "" {
		req.SetBasicAuth(qualifiedUser(server), server.Password)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("exchange: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("exchange: failed to read response: %w", err)
	}
	return parseResponse(resp.StatusCode, body)
}

// Endpoint returns server.Address when it is already a URL, otherwise the
// default EWS path on that host.
func Endpoint(server transport.Server) string {
	addr := strings.TrimSpace(server.Address)
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	host := strings.TrimSuffix(addr, "/")
	if server.Port > 0 && !strings.Contains(host, ":") {
		host += ":" + strconv.Itoa(server.Port)
	}
	return "https://" + host + ewsPath
}

func qualifiedUser(server transport.Server) string {
	if server.Domain == "" || strings.ContainsAny(server.UserName, `\@`) {
		return server.UserName
	}
	return server.Domain + `\` + server.UserName
}

func parseResponse(status int, body []byte) error {
	var env responseEnvelope
	if err := xml.Unmarshal(body, &env); err != nil {
		if status >= http.StatusBadRequest {
			return fmt.Errorf("exchange: server returned %d", status)
		}
		return fmt.Errorf("exchange: failed to decode response: %w", err)
	}

	if env.Body.Fault != nil {
		return fmt.Errorf("exchange: soap fault: %s", env.Body.Fault.String)
	}
	if status >= http.StatusBadRequest {
		return fmt.Errorf("exchange: server returned %d", status)
	}

	msgs := env.Body.CreateItemResponse.Messages
	if len(msgs) == 0 {
		return fmt.Errorf("exchange: empty CreateItem response")
	}
	for _, m := range msgs {
		if m.ResponseClass != "Success" {
			return fmt.Errorf("exchange: %s: %s", m.ResponseCode, m.MessageText)
		}
	}
	return nil
}
