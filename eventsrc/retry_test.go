package eventsrc_test

import (
	"context"
	"errors"
	"testing"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0m3kk/eventsauce/eventsrc"
)

func TestRetry_RetriesConcurrencyErrors(t *testing.T) {
	attempts := 0

	res, err := eventsrc.Retry(context.Background(), func(context.Context) (int, error) {
		attempts++
		if attempts < 3 {
			return 0, eventsrc.ErrConcurrency{Msg: "duplicate key"}
		}
		return attempts, nil
	}, eventsrc.WithBackOff(&backoff.ZeroBackOff{}))

	require.NoError(t, err)
	assert.Equal(t, 3, res)
	assert.Equal(t, 3, attempts)
}

func TestRetry_StopsOnOtherErrors(t *testing.T) {
	attempts := 0
	boom := errors.New("boom")

	_, err := eventsrc.Retry(context.Background(), func(context.Context) (int, error) {
		attempts++
		return 0, boom
	}, eventsrc.WithBackOff(&backoff.ZeroBackOff{}))

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, attempts)
}

func TestRetry_GivesUpAfterMaxTries(t *testing.T) {
	attempts := 0

	_, err := eventsrc.Retry(context.Background(), func(context.Context) (string, error) {
		attempts++
		return "", eventsrc.ErrConcurrency{Msg: "serialization failure"}
	}, eventsrc.WithBackOff(&backoff.ZeroBackOff{}), eventsrc.WithMaxTries(4))

	var concurrency eventsrc.ErrConcurrency
	assert.ErrorAs(t, err, &concurrency)
	assert.Equal(t, 4, attempts)
}
