package exchange

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/notifier/pkg/transport"
)

const successResponse = `<?xml version="1.0" encoding="utf-8"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
  <s:Body>
    <m:CreateItemResponse xmlns:m="http://schemas.microsoft.com/exchange/services/2006/messages">
      <m:ResponseMessages>
        <m:CreateItemResponseMessage ResponseClass="Success">
          <m:ResponseCode>NoError</m:ResponseCode>
        </m:CreateItemResponseMessage>
      </m:ResponseMessages>
    </m:CreateItemResponse>
  </s:Body>
</s:Envelope>`

const errorResponse = `<?xml version="1.0" encoding="utf-8"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
  <s:Body>
    <m:CreateItemResponse xmlns:m="http://schemas.microsoft.com/exchange/services/2006/messages">
      <m:ResponseMessages>
        <m:CreateItemResponseMessage ResponseClass="Error">
          <m:MessageText>The send-as permission is missing.</m:MessageText>
          <m:ResponseCode>ErrorSendAsDenied</m:ResponseCode>
        </m:CreateItemResponseMessage>
      </m:ResponseMessages>
    </m:CreateItemResponse>
  </s:Body>
</s:Envelope>`

func newServer(t *testing.T, response string, requests *int32, captured *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(requests, 1)
		b, _ := io.ReadAll(r.Body)
		if captured != nil {
			*captured = string(b)
		}
		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSendPostsCreateItemAndTrustsSelfSignedCert(t *testing.T) {
	var requests int32
	var body string
	srv := newServer(t, successResponse, &requests, &body)

	s := New()
	err := s.Send(context.Background(), transport.Server{
		Address:  srv.URL + ewsPath,
		UserName: "svc",
		Domain:   "CORP",
		Password: "pw",
		From:     "crm@example.com",
	}, transport.Message{
		To:      []string{"ann@example.com"},
		Cc:      []string{"cc@example.com"},
		Subject: "Ticket is overdue",
		Body:    "<p>x</p>",
		HTML:    true,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&requests))

	assert.Contains(t, body, `MessageDisposition="SendOnly"`)
	assert.Contains(t, body, `<t:ToRecipients><t:Mailbox><t:EmailAddress>ann@example.com</t:EmailAddress></t:Mailbox></t:ToRecipients>`)
	assert.Contains(t, body, `<t:CcRecipients>`)
	assert.NotContains(t, body, `<t:BccRecipients>`)
	assert.Contains(t, body, `BodyType="HTML"`)
	assert.Contains(t, body, `&lt;p&gt;x&lt;/p&gt;`)
}

func TestSendWithoutToRecipientsMakesNoRequest(t *testing.T) {
	var requests int32
	srv := newServer(t, successResponse, &requests, nil)

	err := New().Send(context.Background(), transport.Server{Address: srv.URL}, transport.Message{
		Cc:  []string{"cc@example.com"},
		Bcc: []string{"bcc@example.com"},
	})
	require.NoError(t, err)
	assert.Zero(t, atomic.LoadInt32(&requests))
}

func TestSendSurfacesResponseErrors(t *testing.T) {
	var requests int32
	srv := newServer(t, errorResponse, &requests, nil)

	s := New(WithHTTPClient(NewClient(5 * time.Second)))
	err := s.Send(context.Background(), transport.Server{Address: srv.URL}, transport.Message{To: []string{"ann@example.com"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ErrorSendAsDenied")
	assert.Contains(t, err.Error(), "send-as permission")
}

func TestEndpoint(t *testing.T) {
	assert.Equal(t, "https://mail.corp.local/EWS/Exchange.asmx", Endpoint(transport.Server{Address: "mail.corp.local"}))
	assert.Equal(t, "https://mail.corp.local:8443/EWS/Exchange.asmx", Endpoint(transport.Server{Address: "mail.corp.local", Port: 8443}))
	assert.Equal(t, "https://x/ews", Endpoint(transport.Server{Address: "https://x/ews", Port: 443}))
	assert.True(t, strings.HasPrefix(qualifiedUser(transport.Server{UserName: "svc", Domain: "CORP"}), `CORP\`))
}
