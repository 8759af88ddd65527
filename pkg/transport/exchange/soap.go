package exchange

import (
	"encoding/xml"

	"github.com/jwalitptl/notifier/pkg/transport"
)

const (
	nsSoap     = "http://schemas.xmlsoap.org/soap/envelope/"
	nsTypes    = "http://schemas.microsoft.com/exchange/services/2006/types"
	nsMessages = "http://schemas.microsoft.com/exchange/services/2006/messages"
)

type requestEnvelope struct {
	XMLName    xml.Name      `xml:"soap:Envelope"`
	XmlnsSoap  string        `xml:"xmlns:soap,attr"`
	XmlnsTypes string        `xml:"xmlns:t,attr"`
	XmlnsMsgs  string        `xml:"xmlns:m,attr"`
	Header     requestHeader `xml:"soap:Header"`
	Body       requestBody   `xml:"soap:Body"`
}

type requestHeader struct {
	Version serverVersionHeader `xml:"t:RequestServerVersion"`
}

type serverVersionHeader struct {
	Version string `xml:"Version,attr"`
}

type requestBody struct {
	CreateItem createItem `xml:"m:CreateItem"`
}

type createItem struct {
	MessageDisposition string       `xml:"MessageDisposition,attr"`
	Messages           []ewsMessage `xml:"m:Items>t:Message"`
}

type ewsMessage struct {
	Subject string      `xml:"t:Subject"`
	Body    ewsBody     `xml:"t:Body"`
	To      *recipients `xml:"t:ToRecipients,omitempty"`
	Cc      *recipients `xml:"t:CcRecipients,omitempty"`
	Bcc     *recipients `xml:"t:BccRecipients,omitempty"`
	From    *singleBox  `xml:"t:From,omitempty"`
}

type ewsBody struct {
	Type string `xml:"BodyType,attr"`
	Text string `xml:",chardata"`
}

type recipients struct {
	Mailboxes []mailbox `xml:"t:Mailbox"`
}

type singleBox struct {
	Mailbox mailbox `xml:"t:Mailbox"`
}

type mailbox struct {
	EmailAddress string `xml:"t:EmailAddress"`
}

func newRecipients(addrs []string) *recipients {
	if len(addrs) == 0 {
		return nil
	}
	r := &recipients{}
	for _, a := range addrs {
		r.Mailboxes = append(r.Mailboxes, mailbox{EmailAddress: a})
	}
	return r
}

func newCreateItem(server transport.Server, msg transport.Message) requestEnvelope {
	bodyType := "Text"
	if msg.HTML {
		bodyType = "HTML"
	}

	m := ewsMessage{
		Subject: msg.Subject,
		Body:    ewsBody{Type: bodyType, Text: msg.Body},
		To:      newRecipients(msg.To),
		Cc:      newRecipients(msg.Cc),
		Bcc:     newRecipients(msg.Bcc),
	}
	if server.From != "" {
		m.From = &singleBox{Mailbox: mailbox{EmailAddress: server.From}}
	}

	return requestEnvelope{
		XmlnsSoap:  nsSoap,
		XmlnsTypes: nsTypes,
		XmlnsMsgs:  nsMessages,
		Header:     requestHeader{Version: serverVersionHeader{Version: serverVersion}},
		Body: requestBody{CreateItem: createItem{
			MessageDisposition: "SendOnly",
			Messages:           []ewsMessage{m},
		}},
	}
}

// Response elements are matched by local name; the prefixes vary by server.
type responseEnvelope struct {
	XMLName xml.Name     `xml:"Envelope"`
	Body    responseBody `xml:"Body"`
}

type responseBody struct {
	Fault              *soapFault         `xml:"Fault"`
	CreateItemResponse createItemResponse `xml:"CreateItemResponse"`
}

type soapFault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
}

type createItemResponse struct {
	Messages []responseMessage `xml:"ResponseMessages>CreateItemResponseMessage"`
}

type responseMessage struct {
	ResponseClass string `xml:"ResponseClass,attr"`
	ResponseCode  string `xml:"ResponseCode"`
	MessageText   string `xml:"MessageText"`
}
