package queue

import (
	"context"
	"encoding/json"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type refreshPayload struct {
	ProductKey string `json:"product_key"`
}

func TestNewMessageAndDecode(t *testing.T) {
	msg, err := NewMessage("refresh_product", refreshPayload{ProductKey: "milk"})
	require.NoError(t, err)
	_, err = uuid.Parse(msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "refresh_product", msg.Type)

	p, err := Decode[refreshPayload](msg.Payload)
	require.NoError(t, err)
	assert.Equal(t, "milk", p.ProductKey)

	_, err = Decode[refreshPayload](json.RawMessage(`[`))
	assert.Error(t, err)
}

func TestRedisQueue_Keys(t *testing.T) {
	q := NewRedisQueue(nil, Config{}, nil, WithKeyPrefix("pf:test"))
	assert.Equal(t, "pf:test:messages", q.queueKey())
	assert.Equal(t, "pf:test:retry", q.retryKey())
	assert.Equal(t, "pf:test:dlq", q.deadLetterKey())
}

// Runs against a live Redis when REDIS_ADDR is set.
func TestRedisQueue_RoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	prefix := "pf:test:" + uuid.NewString()
	q := NewRedisQueue(nil, Config{Workers: 1}, client, WithKeyPrefix(prefix))
	var handled atomic.Int32
	q.RegisterJob(JobFunc{MsgType: "refresh_product", Fn: func(_ context.Context, raw json.RawMessage) error {
		p, err := Decode[refreshPayload](raw)
		if err == nil && p.ProductKey == "milk" {
			handled.Add(1)
		}
		return err
	}})
	require.NoError(t, q.Start(context.Background()))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = q.Stop(ctx)
		client.Del(context.Background(), q.queueKey(), q.retryKey(), q.deadLetterKey())
	}()

	require.NoError(t, q.PublishMessage(context.Background(), "refresh_product", refreshPayload{ProductKey: "milk"}))
	require.Eventually(t, func() bool { return handled.Load() == 1 }, 5*time.Second, 20*time.Millisecond)
}
