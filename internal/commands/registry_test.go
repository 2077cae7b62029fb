package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echo(ctx context.Context, inv Invocation) (*Reply, error) {
	return &Reply{Text: inv.SenderID + ":" + inv.Args}, nil
}

func TestRegistry_RegisterAndExecute(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&Command{Name: "/Echo", AcceptsArgs: true, Handler: echo}))

	cmd, ok := r.Get("echo")
	require.True(t, ok)
	assert.Equal(t, "echo", cmd.Name)

	reply, err := r.Execute(context.Background(), "/ECHO", Invocation{SenderID: "u1", Args: "  hi  "})
	require.NoError(t, err)
	assert.Equal(t, "u1:hi", reply.Text)
}

func TestRegistry_RegisterErrors(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&Command{Name: "halt", Handler: echo}))

	assert.ErrorIs(t, r.Register(&Command{Name: "/halt", Handler: echo}), ErrCommandExists)
	assert.ErrorIs(t, r.Register(&Command{Name: "x"}), ErrInvalidCommand)
	assert.ErrorIs(t, r.Register(&Command{Name: "two words", Handler: echo}), ErrInvalidCommand)
	assert.ErrorIs(t, r.Register(nil), ErrInvalidCommand)
}

func TestRegistry_ExecuteChecks(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&Command{Name: "halt", Handler: echo}))
	require.NoError(t, r.Register(&Command{Name: "admin", RequireAuth: true, Handler: echo}))
	require.NoError(t, r.Register(&Command{Name: "boom", Handler: func(context.Context, Invocation) (*Reply, error) {
		return nil, errors.New("kaput")
	}}))
	require.NoError(t, r.Register(&Command{Name: "quiet", Handler: func(context.Context, Invocation) (*Reply, error) {
		return nil, nil
	}}))

	ctx := context.Background()

	_, err := r.Execute(ctx, "missing", Invocation{})
	assert.ErrorIs(t, err, ErrCommandNotFound)

	_, err = r.Execute(ctx, "halt", Invocation{Args: "now"})
	assert.ErrorIs(t, err, ErrUnexpectedArgs)

	_, err = r.Execute(ctx, "admin", Invocation{SenderID: "u1"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	reply, err := r.Execute(ctx, "admin", Invocation{SenderID: "u1", Authorized: true})
	require.NoError(t, err)
	assert.Equal(t, "u1:", reply.Text)

	_, err = r.Execute(ctx, "boom", Invocation{})
	assert.ErrorContains(t, err, "kaput")

	reply, err = r.Execute(ctx, "quiet", Invocation{})
	require.NoError(t, err)
	assert.NotNil(t, reply)
}

func TestRegistry_ListAndUnregister(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&Command{Name: "unhalt", Handler: echo}))
	require.NoError(t, r.Register(&Command{Name: "halt", Handler: echo}))

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "halt", list[0].Name)
	assert.Equal(t, "unhalt", list[1].Name)

	assert.True(t, r.Unregister("/halt"))
	assert.False(t, r.Unregister("halt"))
	assert.Len(t, r.List(), 1)
}

func TestParseText(t *testing.T) {
	tests := []struct {
		in       string
		wantName string
		wantArgs string
		wantOK   bool
	}{
		{"/halt", "halt", "", true},
		{"  /Unhalt please now ", "unhalt", "please now", true},
		{"/", "", "", false},
		{"halt", "", "", false},
		{"", "", "", false},
	}

	for _, tt := range tests {
		name, args, ok := ParseText(tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
		assert.Equal(t, tt.wantName, name, tt.in)
		assert.Equal(t, tt.wantArgs, args, tt.in)
	}
}
