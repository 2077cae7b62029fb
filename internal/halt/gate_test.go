package halt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGate_HaltAndQuery(t *testing.T) {
	g := NewGate("", "")

	assert.False(t, g.IsHalted("u1"))
	assert.True(t, g.Halt("u1"))
	assert.True(t, g.IsHalted("u1"))
	assert.False(t, g.IsHalted("u2"), "halt is per recipient")

	assert.False(t, g.Halt("u1"), "second halt is a no-op")
	assert.True(t, g.IsHalted("u1"))

	_, ok := g.HaltedSince("u1")
	assert.True(t, ok)
	assert.Equal(t, []string{"u1"}, g.Halted())
}

func TestGate_UnhaltWhenRunning(t *testing.T) {
	g := NewGate("halt", "unhalt")

	assert.False(t, g.Unhalt("u1"))
	assert.False(t, g.IsHalted("u1"))
}

func TestGate_AutoResumeOnMessage(t *testing.T) {
	g := NewGate("halt", "unhalt")
	g.Halt("u1")

	assert.True(t, g.OnMessage("u1", "hello"))
	assert.False(t, g.IsHalted("u1"))
	assert.False(t, g.OnMessage("u1", "hello again"), "already running")
}

func TestGate_CommandMessagesDoNotResume(t *testing.T) {
	tests := []string{"/halt", "  /HALT  ", "/halt now", "/unhalt"}

	for _, content := range tests {
		t.Run(content, func(t *testing.T) {
			g := NewGate("halt", "unhalt")
			g.Halt("u1")

			assert.False(t, g.OnMessage("u1", content))
			assert.True(t, g.IsHalted("u1"))
		})
	}
}

func TestGate_OtherSlashCommandsResume(t *testing.T) {
	g := NewGate("halt", "unhalt")
	g.Halt("u1")

	assert.True(t, g.OnMessage("u1", "/status"))
	assert.False(t, g.IsHalted("u1"))
}

func TestGate_AlternateCommandNames(t *testing.T) {
	g := NewGate("/stop", "Resume")

	assert.Equal(t, "stop", g.HaltCommand())
	assert.Equal(t, "resume", g.ResumeCommand())
	assert.True(t, g.IsHaltCommand("/stop"))
	assert.True(t, g.IsResumeCommand("/resume"))
	assert.False(t, g.IsCommand("/halt"))
	assert.False(t, g.IsCommand("stop"), "commands need the slash")
	assert.False(t, g.IsCommand("/"))
}

func TestGate_EmptyRecipient(t *testing.T) {
	g := NewGate("", "")

	assert.False(t, g.Halt(""))
	assert.False(t, g.IsHalted(""))
	assert.False(t, g.OnMessage("", "hi"))
}
