package queue_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/foreman/pkg/queue"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := queue.NewRegistry()
	require.NoError(t, r.RegisterFunc("echo", func(conn *queue.Connection, args queue.Args) error { return nil }))

	h, err := r.Lookup("echo")
	require.NoError(t, err)
	require.NotNil(t, h)
	require.Equal(t, 1, r.Len())
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	r := queue.NewRegistry()
	require.NoError(t, r.RegisterFunc("echo", func(conn *queue.Connection, args queue.Args) error { return nil }))

	err := r.RegisterFunc("echo", func(conn *queue.Connection, args queue.Args) error { return nil })
	require.ErrorIs(t, err, queue.ErrDuplicateRegistration)
}

func TestRegistry_UnknownJob(t *testing.T) {
	r := queue.NewRegistry()
	_, err := r.Lookup("missing")
	require.ErrorIs(t, err, queue.ErrUnknownJob)
}
