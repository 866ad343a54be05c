package libbus_test

import (
	"context"
	"testing"
	"time"

	libbus "github.com/hoofbeat/stableops/libbus"
	"github.com/stretchr/testify/require"
)

func TestSystem_Stream(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ps, cleanup, err := libbus.NewTestPubSub()
	defer cleanup()
	require.NoError(t, err)

	subject := "test.stream"
	message := []byte("streamed message")

	streamCh := make(chan []byte, 1)
	sub, err := ps.Stream(ctx, subject, streamCh)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	err = ps.Publish(ctx, subject, message)
	require.NoError(t, err)

	select {
	case received := <-streamCh:
		require.Equal(t, message, received)
	case <-ctx.Done():
		t.Fatal("timed out waiting for streamed message")
	}
}

func TestSystem_PublishWithClosedConnection(t *testing.T) {
	ctx := context.Background()

	ps, cleanup, err := libbus.NewTestPubSub()
	defer cleanup()
	require.NoError(t, err)

	err = ps.Close()
	require.NoError(t, err)

	err = ps.Publish(ctx, "test.closed", []byte("data"))
	require.Error(t, err)
	require.Equal(t, libbus.ErrConnectionClosed, err)
}

func TestSystem_RequestReply(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ps, cleanup, err := libbus.NewTestPubSub()
	require.NoError(t, err)
	defer cleanup()

	subject := "test.request.reply"
	requestMessage := []byte("hello worker")
	responseMessage := []byte("hello client")

	handler := func(ctx context.Context, data []byte) ([]byte, error) {
		require.Equal(t, requestMessage, data)
		return responseMessage, nil
	}

	serveSub, err := ps.Serve(ctx, subject, handler)
	require.NoError(t, err)
	defer serveSub.Unsubscribe()

	reply, err := ps.Request(ctx, subject, requestMessage)
	require.NoError(t, err)
	require.Equal(t, responseMessage, reply)
}

func TestUnit_InMemStreamAndRequest(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ps := libbus.NewInMem()
	defer ps.Close()

	streamCh := make(chan []byte, 1)
	sub, err := ps.Stream(ctx, "local.stream", streamCh)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, ps.Publish(ctx, "local.stream", []byte("ping")))
	select {
	case got := <-streamCh:
		require.Equal(t, []byte("ping"), got)
	case <-ctx.Done():
		t.Fatal("timed out waiting for in-memory message")
	}

	_, err = ps.Request(ctx, "local.noresponder", []byte("x"))
	require.ErrorIs(t, err, libbus.ErrRequestTimeout)
}
