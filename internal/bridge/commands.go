package bridge

import (
	"context"
	"fmt"

	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/commands"
)

// Commands returns the halt and resume commands bound to the bridge's gate.
func (b *Bridge) Commands() []*commands.Command {
	return []*commands.Command{
		{
			Name:        b.gate.HaltCommand(),
			Description: "Block tool execution until you resume or send another message",
			RequireAuth: true,
			Handler:     b.haltCommand,
		},
		{
			Name:        b.gate.ResumeCommand(),
			Description: "Allow tool execution again",
			RequireAuth: true,
			Handler:     b.resumeCommand,
		},
	}
}

func (b *Bridge) blockReason() string {
	return fmt.Sprintf("Tool execution is halted. Send /%s or any message to resume.", b.gate.ResumeCommand())
}

func (b *Bridge) haltCommand(_ context.Context, inv commands.Invocation) (*commands.Reply, error) {
	if inv.SenderID == "" {
		return &commands.Reply{Text: "Cannot halt: sender unknown."}, nil
	}
	if !b.gate.Halt(inv.SenderID) {
		return &commands.Reply{Text: fmt.Sprintf("Already halted. Send /%s to resume.", b.gate.ResumeCommand())}, nil
	}

	b.log.Info().Str("recipient", inv.SenderID).Str("channel", inv.Channel).Msg("halted")
	b.observe(Activity{Type: ActivityHalted, Recipient: inv.SenderID, Reason: "command"})
	return &commands.Reply{Text: fmt.Sprintf("Halted. Tool calls are blocked until you send /%s or any other message.", b.gate.ResumeCommand())}, nil
}

func (b *Bridge) resumeCommand(_ context.Context, inv commands.Invocation) (*commands.Reply, error) {
	if !b.gate.Unhalt(inv.SenderID) {
		return &commands.Reply{Text: "Not halted."}, nil
	}

	b.log.Info().Str("recipient", inv.SenderID).Str("channel", inv.Channel).Msg("resumed")
	b.observe(Activity{Type: ActivityResumed, Recipient: inv.SenderID, Reason: "command"})
	return &commands.Reply{Text: "Resumed. Tool calls are allowed again."}, nil
}
