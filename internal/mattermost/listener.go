package mattermost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/commands"
	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/hooks"
	"github.com/loganrenz/openclaw-mattermost-toolchainposter/pkg/logger"
)

const (
	// ChannelName identifies Mattermost in hook session contexts.
	ChannelName = "mattermost"

	// Direct channel type in Mattermost events.
	channelTypeDirect = "D"

	eventPosted        = "posted"
	eventHello         = "hello"
	actionAuthenticate = "authentication_challenge"

	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	writeWait      = 10 * time.Second
	maxMessageSize = 1 << 20

	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// wsEvent is a server-pushed websocket event.
type wsEvent struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	Broadcast struct {
		ChannelID string `json:"channel_id"`
		UserID    string `json:"user_id"`
	} `json:"broadcast"`
	Seq int64 `json:"seq"`

	// Replies to our own actions carry status and seq_reply instead.
	Status   string `json:"status,omitempty"`
	SeqReply int64  `json:"seq_reply,omitempty"`
}

type wsAction struct {
	Seq    int64          `json:"seq"`
	Action string         `json:"action"`
	Data   map[string]any `json:"data,omitempty"`
}

type postedData struct {
	ChannelType string `json:"channel_type"`
	ChannelName string `json:"channel_name"`
	SenderName  string `json:"sender_name"`
	Post        string `json:"post"` // JSON-encoded post
}

// InboundPost is a message a user posted where the bot can see it.
type InboundPost struct {
	PostID      string
	UserID      string
	ChannelID   string
	ChannelType string
	SenderName  string
	Message     string
	RootID      string
}

// IsDirect reports whether the post was made in a direct channel.
func (p InboundPost) IsDirect() bool { return p.ChannelType == channelTypeDirect }

// Listener follows a bot account's websocket event stream. Posted messages are
// fed to the hook manager as message_received events, and slash commands
// registered in the command registry are executed and answered in place.
type Listener struct {
	client     *Client
	accountKey string
	manager    *hooks.Manager
	commands   *commands.Registry
	dialer     *websocket.Dialer
	log        zerolog.Logger
	seq        atomic.Int64
}

// NewListener creates a listener for the account served by client.
func NewListener(client *Client, accountKey string, manager *hooks.Manager, cmds *commands.Registry) *Listener {
	return &Listener{
		client:     client,
		accountKey: accountKey,
		manager:    manager,
		commands:   cmds,
		dialer:     websocket.DefaultDialer,
		log:        logger.Component("mattermost").With().Str("account", accountKey).Logger(),
	}
}

// WebsocketURL derives the websocket endpoint from a server base URL.
func WebsocketURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported base url scheme %q", u.Scheme)
	}
	u.Path += apiPrefix + "/websocket"
	return u.String(), nil
}

// Run connects and processes events until ctx is done, reconnecting with
// exponential backoff after failures.
func (l *Listener) Run(ctx context.Context) error {
	if !l.client.HasDirectAPI() {
		return ErrNoDirectAPI
	}

	backoff := minBackoff
	for {
		connected, err := l.connectAndRun(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			backoff = minBackoff
		}
		if err != nil {
			l.log.Warn().Err(err).Dur("retry_in", backoff).Msg("mattermost websocket disconnected")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (l *Listener) connectAndRun(ctx context.Context) (bool, error) {
	wsURL, err := WebsocketURL(l.client.BaseURL())
	if err != nil {
		return false, err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+l.client.Token())
	conn, _, err := l.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	if err := l.writeJSON(conn, wsAction{
		Seq:    l.seq.Add(1),
		Action: actionAuthenticate,
		Data:   map[string]any{"token": l.client.Token()},
	}); err != nil {
		return false, fmt.Errorf("authenticate: %w", err)
	}

	botID, err := l.client.BotUserID(ctx)
	if err != nil {
		return false, err
	}

	l.log.Info().Str("url", wsURL).Msg("mattermost websocket connected")

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	pingCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go l.pingLoop(pingCtx, conn)

	go func() {
		<-pingCtx.Done()
		_ = conn.Close()
	}()

	for {
		var ev wsEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return true, nil
			}
			return true, fmt.Errorf("read: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		switch ev.Event {
		case eventHello:
			l.log.Debug().Msg("mattermost hello")
		case eventPosted:
			post, err := decodePosted(ev.Data)
			if err != nil {
				l.log.Warn().Err(err).Msg("bad posted event")
				continue
			}
			if post.UserID == botID {
				continue
			}
			l.HandlePost(ctx, post)
		case "":
			if ev.Status != "" && ev.Status != "OK" {
				l.log.Warn().Str("status", ev.Status).Int64("seq_reply", ev.SeqReply).Msg("websocket action rejected")
			}
		}
	}
}

func (l *Listener) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (l *Listener) writeJSON(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

func decodePosted(raw json.RawMessage) (InboundPost, error) {
	var data postedData
	if err := json.Unmarshal(raw, &data); err != nil {
		return InboundPost{}, err
	}
	var p post
	if err := json.Unmarshal([]byte(data.Post), &p); err != nil {
		return InboundPost{}, fmt.Errorf("decode post: %w", err)
	}
	if p.UserID == "" {
		return InboundPost{}, errors.New("post without user_id")
	}
	return InboundPost{
		PostID:      p.ID,
		UserID:      p.UserID,
		ChannelID:   p.ChannelID,
		ChannelType: data.ChannelType,
		SenderName:  strings.TrimPrefix(data.SenderName, "@"),
		Message:     p.Message,
		RootID:      p.RootID,
	}, nil
}

// HandlePost feeds one inbound post through the hook manager and, for
// registered slash commands, the command registry.
func (l *Listener) HandlePost(ctx context.Context, p InboundPost) {
	msg := &hooks.MessageContext{
		From:    ChannelName + ":" + p.UserID,
		Content: p.Message,
		Metadata: map[string]any{
			hooks.MetaSenderID: p.UserID,
			"senderName":       p.SenderName,
			"postId":           p.PostID,
		},
	}
	session := &hooks.SessionContext{
		AccountID:      l.accountKey,
		ConversationID: p.ChannelID,
		ChannelID:      ChannelName,
	}
	if _, err := l.manager.TriggerMessageReceived(ctx, msg, session); err != nil {
		l.log.Warn().Err(err).Msg("message_received hook failed")
	}

	if l.commands == nil {
		return
	}
	name, args, ok := commands.ParseText(p.Message)
	if !ok {
		return
	}
	if _, registered := l.commands.Get(name); !registered {
		return
	}

	reply, err := l.commands.Execute(ctx, name, commands.Invocation{
		SenderID:   p.UserID,
		Channel:    ChannelName,
		Args:       args,
		Authorized: p.IsDirect(),
	})
	text := ""
	if err != nil {
		l.log.Warn().Err(err).Str("command", name).Str("sender", p.UserID).Msg("command failed")
		text = "Command failed: " + err.Error()
	} else {
		text = reply.Text
	}
	if text == "" {
		return
	}
	if _, err := l.client.CreatePost(ctx, p.ChannelID, text); err != nil {
		l.log.Warn().Err(err).Str("command", name).Msg("failed to post command reply")
	}
}
