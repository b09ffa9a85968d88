package queue_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/foreman/pkg/queue"
)

type greetArgs struct {
	Name string `json:"name"`
}

func TestArgs_SerializeDeserialize(t *testing.T) {
	args, err := queue.SerializeArgs(greetArgs{Name: "ada"})
	require.NoError(t, err)

	var out greetArgs
	require.NoError(t, args.Deserialize(&out))
	require.Equal(t, "ada", out.Name)
}

func TestArgs_DeserializeMismatchErrors(t *testing.T) {
	args, err := queue.SerializeArgs(greetArgs{Name: "ada"})
	require.NoError(t, err)

	var out []int
	require.Error(t, args.Deserialize(&out))
}

func TestQueueID_String(t *testing.T) {
	require.Equal(t, "main", queue.Main.String())
	require.Equal(t, "retry", queue.Retry.String())
}

func TestJobEnvelope_WireShape(t *testing.T) {
	args, err := queue.SerializeArgs(greetArgs{Name: "ada"})
	require.NoError(t, err)

	env := queue.JobEnvelope{Name: "greet", Args: args, Attempts: queue.Fresh()}

	raw, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Contains(t, decoded, "name")
	require.Contains(t, decoded, "args")
	require.Contains(t, decoded, "attempts")
	require.JSONEq(t, `"Fresh"`, string(decoded["attempts"]))
}
