package contextkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestID(ctx))

	ctx = WithRequestID(ctx, "req-1")
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, "request_id", RequestIDKey.String())
}

func TestClient(t *testing.T) {
	ctx := WithClient(context.Background(), "ip:10.0.0.1")
	assert.Equal(t, "ip:10.0.0.1", Client(ctx))
	assert.Empty(t, Client(context.Background()))
}
