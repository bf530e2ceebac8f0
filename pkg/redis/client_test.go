package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithoutURLIsDisabled(t *testing.T) {
	client, err := New(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(context.Background(), "not-a-redis-url")
	assert.ErrorContains(t, err, "parse redis URL")
}
