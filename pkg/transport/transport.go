// Package transport defines the send contract shared by the delivery channels.
package transport

import (
	"context"
	"errors"
	"sync"
)

// ErrNotImplemented is reported by channels that exist only as placeholders.
var ErrNotImplemented = errors.New("Not Implemented")

// Server is the connection and identity a message is sent with.
type Server struct {
	Address  string
	Port     int
	UserName string
	Domain   string
	Password string
	TLS      bool
	From     string
}

// Message is a rendered outbound message. Recipient lists keep their order.
type Message struct {
	To      []string
	Cc      []string
	Bcc     []string
	ReplyTo []string
	Subject string
	Body    string
	HTML    bool
}

// Sender physically delivers a message. A returned error means nothing can
// be assumed about which recipients received it.
type Sender interface {
	Send(ctx context.Context, server Server, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, server Server, msg Message) error

func (f SenderFunc) Send(ctx context.Context, server Server, msg Message) error {
	return f(ctx, server, msg)
}

// Registry maps a system type name to its Sender.
type Registry struct {
	mu      sync.RWMutex
	senders map[string]Sender
}

func NewRegistry() *Registry {
	return &Registry{senders: make(map[string]Sender)}
}

func (r *Registry) Register(kind string, s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[kind] = s
}

func (r *Registry) Lookup(kind string) (Sender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.senders[kind]
	return s, ok
}
