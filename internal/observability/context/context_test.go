package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestAndUserRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), " req-1 ")
	ctx = WithUserID(ctx, "user-1")

	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Equal(t, "user-1", UserIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestJobRoundTrip(t *testing.T) {
	ctx := WithJob(context.Background(), "reconcile_pending")

	assert.Equal(t, "reconcile_pending", JobFromContext(ctx))
	assert.Empty(t, JobFromContext(context.Background()))
}
