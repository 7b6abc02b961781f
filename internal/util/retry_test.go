package util

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoff_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	got, err := backoff.Retry(context.Background(), func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("not yet")
		}
		return "abc", nil
	}, Backoff{Initial: time.Millisecond}.Options()...)
	require.NoError(t, err)
	assert.Equal(t, "abc", got)
	assert.Equal(t, 3, calls)
}

func TestBackoff_MaxTries(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	_, err := backoff.Retry(context.Background(), func() (struct{}, error) {
		calls++
		return struct{}{}, boom
	}, Backoff{Initial: time.Millisecond, MaxTries: 4}.Options()...)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 4, calls)
}

func TestBackoff_PermanentStops(t *testing.T) {
	calls := 0
	bad := errors.New("bad request")
	_, err := backoff.Retry(context.Background(), func() (struct{}, error) {
		calls++
		return struct{}{}, backoff.Permanent(bad)
	}, Backoff{Initial: time.Millisecond, MaxTries: 5}.Options()...)
	require.ErrorIs(t, err, bad)
	assert.Equal(t, 1, calls)
}

func TestBackoff_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		calls++
		cancel()
		return struct{}{}, errors.New("transient")
	}, Backoff{Initial: time.Hour}.Options()...)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
