package queue_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/foreman/pkg/queue"
)

func TestAttemptCount_Increment(t *testing.T) {
	a := queue.Fresh()
	require.True(t, a.IsFresh())

	for k := uint(1); k <= 5; k++ {
		a = a.Increment()
		require.False(t, a.IsFresh())
		require.Equal(t, k, a.N())
	}
}

func TestAttemptCount_CeilingReached(t *testing.T) {
	require.False(t, queue.Fresh().CeilingReached(0))
	require.True(t, queue.Attempted(1).CeilingReached(0))
	require.False(t, queue.Attempted(2).CeilingReached(2))
	require.True(t, queue.Attempted(3).CeilingReached(2))
}

func TestAttemptCount_JSONRoundTrip(t *testing.T) {
	cases := []queue.AttemptCount{queue.Fresh(), queue.Attempted(1), queue.Attempted(42)}
	for _, c := range cases {
		raw, err := json.Marshal(c)
		require.NoError(t, err)

		var out queue.AttemptCount
		require.NoError(t, json.Unmarshal(raw, &out))
		require.Equal(t, c, out)
	}
}

func TestAttemptCount_WireFormat(t *testing.T) {
	raw, err := json.Marshal(queue.Fresh())
	require.NoError(t, err)
	require.JSONEq(t, `"Fresh"`, string(raw))

	raw, err = json.Marshal(queue.Attempted(3))
	require.NoError(t, err)
	require.JSONEq(t, `{"Attempted":3}`, string(raw))

	var a queue.AttemptCount
	require.NoError(t, json.Unmarshal([]byte(`"NeverRetried"`), &a))
	require.True(t, a.IsFresh())
}
