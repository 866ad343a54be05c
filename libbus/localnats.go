package libbus

import (
	"context"
	"time"

	tcnats "github.com/testcontainers/testcontainers-go/modules/nats"
)

// NewTestPubSub starts a throwaway NATS container and returns a Messenger
// connected to it plus a cleanup function. Test-support only.
func NewTestPubSub() (Messenger, func(), error) {
	ctx := context.Background()
	cleanup := func() {}

	container, err := tcnats.Run(ctx, "docker.io/nats:2.10-alpine")
	if err != nil {
		return nil, cleanup, err
	}
	cleanup = func() {
		timeout := time.Second
		_ = container.Stop(context.Background(), &timeout)
	}

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		return nil, cleanup, err
	}
	ps, err := NewPubSub(ctx, &Config{NATSURL: uri})
	if err != nil {
		return nil, cleanup, err
	}
	return ps, cleanup, nil
}
