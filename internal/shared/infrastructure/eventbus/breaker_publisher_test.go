package eventbus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyPublisher struct {
	err    error
	calls  int
	closed bool
}

func (p *flakyPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	p.calls++
	return p.err
}

func (p *flakyPublisher) Close() error {
	p.closed = true
	return nil
}

func TestBreakerPublisher_PassesThrough(t *testing.T) {
	inner := &flakyPublisher{}
	pub := NewBreakerPublisher(inner, DefaultBreakerConfig(), nil)

	err := pub.Publish(context.Background(), "heartbeat.task.at_risk", []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)

	require.NoError(t, pub.Close())
	assert.True(t, inner.closed)
}

func TestBreakerPublisher_OpensAfterConsecutiveFailures(t *testing.T) {
	brokerErr := errors.New("broker down")
	inner := &flakyPublisher{err: brokerErr}
	pub := NewBreakerPublisher(inner, BreakerConfig{FailureThreshold: 3, Timeout: time.Minute}, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := pub.Publish(ctx, "key", nil)
		assert.ErrorIs(t, err, brokerErr)
	}
	assert.Equal(t, 3, inner.calls)

	// Circuit is open now; the broker is no longer touched.
	err := pub.Publish(ctx, "key", nil)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, inner.calls)
}

func TestBreakerPublisher_RecoversAfterTimeout(t *testing.T) {
	brokerErr := errors.New("broker down")
	inner := &flakyPublisher{err: brokerErr}
	pub := NewBreakerPublisher(inner, BreakerConfig{FailureThreshold: 2, Timeout: 20 * time.Millisecond}, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = pub.Publish(ctx, "key", nil)
	}
	assert.ErrorIs(t, pub.Publish(ctx, "key", nil), gobreaker.ErrOpenState)

	// After the timeout a probe goes through; once it succeeds the circuit closes.
	inner.err = nil
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, pub.Publish(ctx, "key", nil))
	require.NoError(t, pub.Publish(ctx, "key", nil))
	assert.Equal(t, 4, inner.calls)
}
