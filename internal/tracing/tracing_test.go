package tracing

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateRequestID(t *testing.T) {
	first := GenerateRequestID()
	second := GenerateRequestID()

	assert.True(t, strings.HasPrefix(first, "req_"))
	assert.NotEqual(t, first, second)
}

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()

	ctx = WithRequestID(ctx, "req_abc")
	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithSpanID(ctx, "span-1")

	assert.Equal(t, "req_abc", GetRequestID(ctx))
	assert.Equal(t, "trace-1", GetTraceID(ctx))
	assert.Equal(t, "span-1", GetSpanID(ctx))

	info := GetRequestInfo(ctx)
	assert.Equal(t, "req_abc", info.RequestID)
}

func TestContextDefaults(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, GetRequestID(ctx))
	assert.Empty(t, GetTraceID(ctx))
	assert.True(t, GetStartTime(ctx).IsZero())
	assert.Zero(t, Duration(ctx))
}

func TestDuration(t *testing.T) {
	ctx := WithStartTime(context.Background(), time.Now().Add(-time.Second))
	assert.GreaterOrEqual(t, Duration(ctx), time.Second)
}
