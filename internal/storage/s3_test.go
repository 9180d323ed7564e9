package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cfg "github.com/templui/sharebox/internal/config"
)

func TestNewWithoutBucketDisablesReplica(t *testing.T) {
	replica, err := New(context.Background(), &cfg.Config{})
	require.NoError(t, err)
	assert.Nil(t, replica)
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "team/a.txt", ObjectKey("/team/a.txt"))
	assert.Equal(t, "a.txt", ObjectKey("a.txt"))
}
