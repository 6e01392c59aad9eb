package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	log, err := New("debug")
	require.NoError(t, err)
	assert.NotNil(t, log)

	_, err = New("chatty")
	assert.Error(t, err)
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()), "missing logger falls back to no-op")

	log := Nop().Named("test")
	ctx := WithLogger(context.Background(), log)
	assert.Same(t, log, FromContext(ctx))

	ctx = With(ctx, "pr", 42)
	assert.NotSame(t, log, FromContext(ctx))
}

func TestFromContextOr(t *testing.T) {
	fallback := Nop().Named("fallback")
	assert.Same(t, fallback, FromContextOr(context.Background(), fallback))

	log := Nop().Named("request")
	assert.Same(t, log, FromContextOr(WithLogger(context.Background(), log), fallback))
}
