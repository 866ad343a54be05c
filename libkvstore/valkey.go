// Package libkvstore wraps valkey in a small KV interface with TTL and
// list support. Used for ephemeral caches, not durable state.
package libkvstore

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"time"

	"github.com/valkey-io/valkey-go"
)

var ErrNotFound = errors.New("libkvstore: key not found")

// Config holds valkey connection settings.
type Config struct {
	KVAddr     string
	KVPassword string
}

// KVExec is the operation surface handed out by the Manager.
type KVExec interface {
	Set(ctx context.Context, key string, value json.RawMessage) error
	SetWithTTL(ctx context.Context, key string, value json.RawMessage, ttl time.Duration) error
	Get(ctx context.Context, key string) (json.RawMessage, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Keys(ctx context.Context, pattern string) ([]string, error)
	ListPush(ctx context.Context, key string, value json.RawMessage) error
	ListRange(ctx context.Context, key string, start, stop int64) ([]json.RawMessage, error)
}

// KVManager owns the valkey client.
type KVManager interface {
	Executor(ctx context.Context) (KVExec, error)
	Close() error
}

type manager struct {
	client valkey.Client
}

// NewManager connects to valkey at cfg.KVAddr. connTimeout bounds the
// initial dial.
func NewManager(cfg Config, connTimeout time.Duration) (KVManager, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{cfg.KVAddr},
		Password:    cfg.KVPassword,
		Dialer: net.Dialer{Timeout: connTimeout},
	})
	if err != nil {
		return nil, err
	}
	return &manager{client: client}, nil
}

func (m *manager) Executor(ctx context.Context) (KVExec, error) {
	if err := m.client.Do(ctx, m.client.B().Ping().Build()).Error(); err != nil {
		return nil, err
	}
	return &kvExec{client: m.client}, nil
}

func (m *manager) Close() error {
	m.client.Close()
	return nil
}

type kvExec struct {
	client valkey.Client
}

func (e *kvExec) Set(ctx context.Context, key string, value json.RawMessage) error {
	return e.client.Do(ctx, e.client.B().Set().Key(key).Value(string(value)).Build()).Error()
}

func (e *kvExec) SetWithTTL(ctx context.Context, key string, value json.RawMessage, ttl time.Duration) error {
	return e.client.Do(ctx, e.client.B().Set().Key(key).Value(string(value)).Px(ttl).Build()).Error()
}

func (e *kvExec) Get(ctx context.Context, key string) (json.RawMessage, error) {
	resp := e.client.Do(ctx, e.client.B().Get().Key(key).Build())
	if err := resp.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s, err := resp.ToString()
	if err != nil {
		return nil, err
	}
	return json.RawMessage(s), nil
}

func (e *kvExec) Delete(ctx context.Context, key string) error {
	return e.client.Do(ctx, e.client.B().Del().Key(key).Build()).Error()
}

func (e *kvExec) Exists(ctx context.Context, key string) (bool, error) {
	n, err := e.client.Do(ctx, e.client.B().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (e *kvExec) Keys(ctx context.Context, pattern string) ([]string, error) {
	return e.client.Do(ctx, e.client.B().Keys().Pattern(pattern).Build()).AsStrSlice()
}

func (e *kvExec) ListPush(ctx context.Context, key string, value json.RawMessage) error {
	return e.client.Do(ctx, e.client.B().Lpush().Key(key).Element(string(value)).Build()).Error()
}

func (e *kvExec) ListRange(ctx context.Context, key string, start, stop int64) ([]json.RawMessage, error) {
	items, err := e.client.Do(ctx, e.client.B().Lrange().Key(key).Start(start).Stop(stop).Build()).AsStrSlice()
	if err != nil {
		return nil, err
	}
	out := make([]json.RawMessage, 0, len(items))
	for _, it := range items {
		out = append(out, json.RawMessage(it))
	}
	return out, nil
}

var _ KVExec = (*kvExec)(nil)
