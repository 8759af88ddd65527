// Package sms reserves the SMS channel. No gateway is integrated yet.
package sms

import (
	"context"

	"github.com/jwalitptl/notifier/pkg/transport"
)

type Sender struct{}

func New() *Sender { return &Sender{} }

func (*Sender) Send(context.Context, transport.Server, transport.Message) error {
	return transport.ErrNotImplemented
}
