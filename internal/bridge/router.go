package bridge

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/accounts"
	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/commands"
	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/format"
	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/hooks"
	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/sender"
)

const handlerSource = "toolchainposter"

// Posting targets, as reported in activity and logs.
const (
	TargetDirect       = "direct"
	TargetConversation = "conversation"
	TargetShared       = "shared"
)

// Register subscribes the bridge to the hook manager and, when the halt gate
// is enabled, adds the halt and resume commands to cmds.
func (b *Bridge) Register(manager *hooks.Manager, cmds *commands.Registry) error {
	handlers := []struct {
		hookType hooks.HookType
		fn       hooks.HandlerFunc
		desc     string
	}{
		{hooks.HookMessageReceived, b.OnMessageReceived, "Records chat senders and resumes halted users"},
		{hooks.HookBeforeToolCall, b.OnBeforeToolCall, "Posts tool calls and blocks them for halted users"},
		{hooks.HookToolResultPersist, b.OnToolResultPersist, "Posts tool results in the background"},
	}
	for _, h := range handlers {
		err := manager.Register(h.hookType, &hooks.Handler{
			ID:          handlerSource + ":" + string(h.hookType),
			Priority:    50,
			Source:      handlerSource,
			Description: h.desc,
			Enabled:     true,
			Handler:     h.fn,
		})
		if err != nil {
			return fmt.Errorf("register %s: %w", h.hookType, err)
		}
	}

	if !b.haltOn || cmds == nil {
		return nil
	}
	for _, cmd := range b.Commands() {
		if err := cmds.Register(cmd); err != nil {
			return fmt.Errorf("register command %s: %w", cmd.Name, err)
		}
	}
	return nil
}

// OnMessageReceived records the sender under the session, its normalized form
// and the account, then applies the halt gate's automatic resume.
func (b *Bridge) OnMessageReceived(_ context.Context, hookCtx *hooks.Context) (*hooks.Result, error) {
	msg := hookCtx.Message
	if msg == nil {
		return hooks.ContinueResult(), nil
	}
	recipient := msg.SenderID()
	if recipient == "" {
		return hooks.ContinueResult(), nil
	}

	sessionKey := msg.SessionKey()
	accountKey := accounts.DefaultKey
	conversationID := ""
	if s := hookCtx.Session; s != nil {
		if sessionKey == "" {
			sessionKey = s.Key
		}
		if s.AccountID != "" {
			accountKey = s.AccountID
		}
		conversationID = s.ConversationID
	}
	if acct, ok := b.accounts.Get(accountKey); ok {
		accountKey = acct.Key
	}

	b.resolver.Record(sessionKey, accountKey, recipient, conversationID, b.now())

	b.log.Debug().
		Str("recipient", recipient).
		Str("session_key", sessionKey).
		Str("account", accountKey).
		Msg("sender recorded")

	if b.haltOn && b.gate.OnMessage(recipient, msg.Content) {
		b.log.Info().Str("recipient", recipient).Msg("halt cleared by new message")
		b.observe(Activity{Type: ActivityResumed, Recipient: recipient, Reason: "message"})
	}
	return hooks.ContinueResult(), nil
}

// OnBeforeToolCall posts a "call started" summary, or blocks the call when
// the resolved recipient is halted. Posting failures never fail the call.
func (b *Bridge) OnBeforeToolCall(ctx context.Context, hookCtx *hooks.Context) (*hooks.Result, error) {
	call := hookCtx.ToolCall
	if call == nil || b.IsExcluded(call.ToolName) {
		return hooks.ContinueResult(), nil
	}

	var sessionKey, hint string
	if s := hookCtx.Session; s != nil {
		sessionKey = s.Key
		hint = s.AgentID
		if hint == "" {
			hint = s.AccountID
		}
	}
	b.setLastSeen(sessionKey, hint)

	now := b.now()
	acct, hasAcct := b.accounts.Resolve(hint)
	accountKey := accountKeyOf(acct, hasAcct)
	link, src := b.resolver.ResolveLink(sessionKey, accountKey, now)

	if b.haltOn && src != sender.SourceNone && b.gate.IsHalted(link.RecipientID) {
		reason := b.blockReason()
		b.log.Info().
			Str("tool_name", call.ToolName).
			Str("recipient", link.RecipientID).
			Str("session_key", sessionKey).
			Msg("tool call blocked by halt")
		b.observe(Activity{
			Type:       ActivityToolCallBlocked,
			ToolName:   call.ToolName,
			ToolCallID: call.ID,
			SessionKey: sessionKey,
			Account:    accountKey,
			Recipient:  link.RecipientID,
			Reason:     reason,
		})
		return hooks.BlockResult(reason), nil
	}

	n := b.settings()
	text := format.ToolCall(call.ToolName, call.Params, n.TruncateLength)

	d := delivery{
		kind:       ActivityToolCallPosted,
		toolName:   call.ToolName,
		toolCallID: call.ID,
		sessionKey: sessionKey,
		account:    acct,
		hasAccount: hasAcct,
		link:       link,
		source:     src,
		text:       text,
		toConv:     n.PostToConversation,
	}
	postID, _ := b.deliver(ctx, d)

	id := call.ID
	if id == "" {
		id = uuid.NewString()
	}
	b.pending.Add(PendingToolCall{
		ToolCallID: id,
		PostID:     postID,
		ToolName:   call.ToolName,
		StartedAt:  now,
	})
	return hooks.ContinueResult(), nil
}

// OnToolResultPersist queues a result post and returns at once. The recipient
// is resolved from the session seen by the last before_tool_call.
func (b *Bridge) OnToolResultPersist(_ context.Context, hookCtx *hooks.Context) (*hooks.Result, error) {
	res := hookCtx.ToolResult
	if res == nil {
		return hooks.ContinueResult(), nil
	}
	n := b.settings()
	if !n.IncludeResults || b.IsExcluded(res.ToolName) {
		return hooks.ContinueResult(), nil
	}

	if res.ToolCallID != "" {
		b.pending.Complete(res.ToolCallID)
	}

	last := b.lastSeen()
	acct, hasAcct := b.accounts.Resolve(last.AgentID)
	link, src := b.resolver.ResolveLink(last.SessionKey, accountKeyOf(acct, hasAcct), b.now())

	d := delivery{
		kind:       ActivityToolResultPosted,
		toolName:   res.ToolName,
		toolCallID: res.ToolCallID,
		sessionKey: last.SessionKey,
		account:    acct,
		hasAccount: hasAcct,
		link:       link,
		source:     src,
		text:       format.ToolResult(res, n.TruncateLength),
		toConv:     n.PostToConversation,
	}

	err := b.dispatcher.Submit("result:"+res.ToolName, func(ctx context.Context) {
		_, _ = b.deliver(ctx, d)
	})
	if err != nil {
		b.log.Warn().Err(err).Str("tool_name", res.ToolName).Msg("tool result post dropped")
		b.observe(Activity{
			Type:       ActivityPostFailed,
			ToolName:   res.ToolName,
			ToolCallID: res.ToolCallID,
			SessionKey: last.SessionKey,
			Error:      err.Error(),
		})
	}
	return hooks.ContinueResult(), nil
}

func accountKeyOf(acct accounts.Account, ok bool) string {
	if ok {
		return acct.Key
	}
	return accounts.DefaultKey
}

type delivery struct {
	kind       string
	toolName   string
	toolCallID string
	sessionKey string
	account    accounts.Account
	hasAccount bool
	link       sender.Link
	source     sender.Source
	text       string
	toConv     bool
}

// deliver posts d.text to the resolved recipient (or its conversation) and
// falls back to the shared channel once on failure. Errors are logged and
// reported to the observer only.
func (b *Bridge) deliver(ctx context.Context, d delivery) (string, error) {
	poster := b.posters(d.account, d.hasAccount)
	if poster == nil {
		return "", ErrConfigurationMissing
	}

	target := TargetShared
	var (
		postID string
		err    error
	)
	switch {
	case d.source != sender.SourceNone && d.toConv && d.link.ConversationID != "" && poster.HasDirectAPI():
		// Webhooks address channels by name, not id.
		target = TargetConversation
		postID, err = poster.PostToChannel(ctx, d.text, d.link.ConversationID)
	case d.source != sender.SourceNone && poster.HasDirectAPI():
		target = TargetDirect
		postID, err = poster.PostDirectMessage(ctx, d.link.RecipientID, d.text)
	default:
		postID, err = poster.PostToChannel(ctx, d.text, "")
	}

	log := b.log.With().
		Str("tool_name", d.toolName).
		Str("session_key", d.sessionKey).
		Str("account", accountKeyOf(d.account, d.hasAccount)).
		Str("recipient", d.link.RecipientID).
		Logger()

	if err == nil {
		log.Debug().Str("target", target).Str("post_id", postID).Msg("posted")
		b.observe(b.activity(d, target, postID, nil))
		return postID, nil
	}

	if target == TargetShared {
		log.Warn().Err(err).Str("target", target).Msg("post failed")
		b.observe(b.activity(d, target, "", err))
		return "", err
	}

	log.Warn().Err(err).Str("target", target).Msg("post failed, falling back to shared channel")
	postID, err = poster.PostToChannel(ctx, d.text, "")
	if err != nil {
		log.Warn().Err(err).Str("target", TargetShared).Msg("fallback post failed")
		b.observe(b.activity(d, TargetShared, "", err))
		return "", err
	}
	b.observe(b.activity(d, TargetShared, postID, nil))
	return postID, nil
}

func (b *Bridge) activity(d delivery, target, postID string, err error) Activity {
	a := Activity{
		Type:       d.kind,
		ToolName:   d.toolName,
		ToolCallID: d.toolCallID,
		SessionKey: d.sessionKey,
		Account:    accountKeyOf(d.account, d.hasAccount),
		Recipient:  d.link.RecipientID,
		Target:     target,
		PostID:     postID,
	}
	if err != nil {
		a.Type = ActivityPostFailed
		a.Error = err.Error()
	}
	return a
}
