package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	subject string
	data    []byte
	err     error
	closed  bool
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.subject = subject
	f.data = data
	return f.err
}

func (f *fakeConn) Close() { f.closed = true }

func TestNATSPublisher_Publish(t *testing.T) {
	conn := &fakeConn{}
	p := newNATSPublisher(conn, nil)

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	err := p.Publish(context.Background(), UserRegistered, UserRegisteredEvent{UserID: 7, Email: "u@x.com", RegisteredAt: at})
	require.NoError(t, err)
	assert.Equal(t, UserRegistered, conn.subject)

	var got UserRegisteredEvent
	require.NoError(t, json.Unmarshal(conn.data, &got))
	assert.Equal(t, int64(7), got.UserID)
	assert.Equal(t, "u@x.com", got.Email)
	assert.True(t, got.RegisteredAt.Equal(at))
}

func TestNATSPublisher_PublishError(t *testing.T) {
	conn := &fakeConn{err: errors.New("nats: connection closed")}
	p := newNATSPublisher(conn, nil)

	err := p.Publish(context.Background(), UserEmailVerified, UserEmailVerifiedEvent{UserID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), UserEmailVerified)
}

func TestNATSPublisher_CanceledContext(t *testing.T) {
	conn := &fakeConn{}
	p := newNATSPublisher(conn, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, p.Publish(ctx, UserRegistered, struct{}{}), context.Canceled)
	assert.Empty(t, conn.subject)
}

func TestNATSPublisher_Close(t *testing.T) {
	conn := &fakeConn{}
	require.NoError(t, newNATSPublisher(conn, nil).Close())
	assert.True(t, conn.closed)
}

func TestNoopPublisher(t *testing.T) {
	p := NewNoopPublisher()
	assert.NoError(t, p.Publish(context.Background(), UserRegistered, nil))
	assert.NoError(t, p.Close())
}
