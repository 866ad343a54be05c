// Package libbus is a thin messaging layer over NATS with an in-memory
// fallback for single-process deployments.
package libbus

import (
	"context"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
)

var (
	ErrConnectionClosed = errors.New("libbus: connection closed")
	ErrRequestTimeout   = errors.New("libbus: request timed out")
)

// Handler serves request-reply messages registered via Serve.
type Handler func(ctx context.Context, data []byte) ([]byte, error)

// Subscription is a handle for an active Stream or Serve registration.
type Subscription interface {
	Unsubscribe() error
}

// Messenger is the transport-facing surface: fire-and-forget publish,
// streaming subscriptions, and request-reply.
type Messenger interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Stream(ctx context.Context, subject string, ch chan<- []byte) (Subscription, error)
	Request(ctx context.Context, subject string, data []byte) ([]byte, error)
	Serve(ctx context.Context, subject string, handler Handler) (Subscription, error)
	Close() error
}

// Config holds NATS connection settings.
type Config struct {
	NATSURL      string
	NATSUser     string
	NATSPassword string
}

type natsMessenger struct {
	conn *nats.Conn
}

// NewPubSub connects to NATS using cfg. When cfg.NATSURL is empty an
// in-memory messenger is returned instead, so callers don't need to
// special-case local mode.
func NewPubSub(ctx context.Context, cfg *Config) (Messenger, error) {
	if cfg == nil || cfg.NATSURL == "" {
		return NewInMem(), nil
	}
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	if cfg.NATSUser != "" {
		opts = append(opts, nats.UserInfo(cfg.NATSUser, cfg.NATSPassword))
	}
	conn, err := nats.Connect(cfg.NATSURL, opts...)
	if err != nil {
		return nil, err
	}
	return &natsMessenger{conn: conn}, nil
}

func (m *natsMessenger) Publish(ctx context.Context, subject string, data []byte) error {
	if m.conn.IsClosed() {
		return ErrConnectionClosed
	}
	return m.conn.Publish(subject, data)
}

func (m *natsMessenger) Stream(ctx context.Context, subject string, ch chan<- []byte) (Subscription, error) {
	if m.conn.IsClosed() {
		return nil, ErrConnectionClosed
	}
	sub, err := m.conn.Subscribe(subject, func(msg *nats.Msg) {
		select {
		case ch <- msg.Data:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return nil, err
	}
	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
	}()
	return sub, nil
}

func (m *natsMessenger) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	if m.conn.IsClosed() {
		return nil, ErrConnectionClosed
	}
	msg, err := m.conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		if errors.Is(err, nats.ErrNoResponders) || errors.Is(err, nats.ErrTimeout) {
			return nil, ErrRequestTimeout
		}
		return nil, err
	}
	return msg.Data, nil
}

func (m *natsMessenger) Serve(ctx context.Context, subject string, handler Handler) (Subscription, error) {
	if m.conn.IsClosed() {
		return nil, ErrConnectionClosed
	}
	sub, err := m.conn.Subscribe(subject, func(msg *nats.Msg) {
		reply, err := handler(ctx, msg.Data)
		if err != nil {
			return
		}
		_ = msg.Respond(reply)
	})
	if err != nil {
		return nil, err
	}
	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
	}()
	return sub, nil
}

func (m *natsMessenger) Close() error {
	if m.conn.IsClosed() {
		return nil
	}
	m.conn.Close()
	return nil
}

var _ Messenger = (*natsMessenger)(nil)
