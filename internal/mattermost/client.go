// Package mattermost talks to a Mattermost server: REST posting, incoming
// webhooks and the websocket event stream.
package mattermost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/loganrenz/openclaw-mattermost-toolchainposter/pkg/logger"
)

const (
	apiPrefix      = "/api/v4"
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 4 * 1024
)

// Options configures a Client.
type Options struct {
	BaseURL     string
	Token       string
	WebhookURL  string
	ChannelID   string
	DisplayName string
	IconURL     string
	Timeout     time.Duration

	// RequestsPerSecond limits outbound calls; zero disables limiting.
	RequestsPerSecond float64
	Burst             int

	HTTPClient *http.Client
}

// Client posts to Mattermost using the REST API when a bot token is present,
// and the incoming webhook otherwise.
type Client struct {
	opts    Options
	http    *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger

	mu         sync.Mutex
	botUserID  string
	dmChannels map[string]string // recipient -> direct channel id
}

// NewClient creates a client.
func NewClient(opts Options) *Client {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return &Client{
		opts:       opts,
		http:       httpClient,
		limiter:    limiter,
		log:        logger.Component("mattermost"),
		dmChannels: make(map[string]string),
	}
}

// HasDirectAPI reports whether the client can use the REST API (and thus DMs).
func (c *Client) HasDirectAPI() bool {
	return c.opts.BaseURL != "" && c.opts.Token != ""
}

// HasSharedChannel reports whether PostToChannel has somewhere to post without an override.
func (c *Client) HasSharedChannel() bool {
	return c.opts.WebhookURL != "" || (c.HasDirectAPI() && c.opts.ChannelID != "")
}

// BaseURL returns the server URL without a trailing slash.
func (c *Client) BaseURL() string { return c.opts.BaseURL }

// Token returns the bot token.
func (c *Client) Token() string { return c.opts.Token }

type user struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type channel struct {
	ID string `json:"id"`
}

type post struct {
	ID            string         `json:"id,omitempty"`
	ChannelID     string         `json:"channel_id"`
	UserID        string         `json:"user_id,omitempty"`
	RootID        string         `json:"root_id,omitempty"`
	Message       string         `json:"message"`
	PendingPostID string         `json:"pending_post_id,omitempty"`
	Props         map[string]any `json:"props,omitempty"`
}

type webhookPayload struct {
	Text     string `json:"text"`
	Username string `json:"username,omitempty"`
	IconURL  string `json:"icon_url,omitempty"`
	Channel  string `json:"channel,omitempty"`
}

// BotUserID returns the user id behind the token, cached after the first call.
func (c *Client) BotUserID(ctx context.Context) (string, error) {
	c.mu.Lock()
	id := c.botUserID
	c.mu.Unlock()
	if id != "" {
		return id, nil
	}

	var me user
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, &me); err != nil {
		return "", fmt.Errorf("get bot user: %w", err)
	}

	c.mu.Lock()
	c.botUserID = me.ID
	c.mu.Unlock()
	return me.ID, nil
}

// DirectChannel returns the direct channel between the bot and userID,
// creating it if needed.
func (c *Client) DirectChannel(ctx context.Context, userID string) (string, error) {
	c.mu.Lock()
	id, ok := c.dmChannels[userID]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	botID, err := c.BotUserID(ctx)
	if err != nil {
		return "", err
	}

	var ch channel
	if err := c.do(ctx, http.MethodPost, "/channels/direct", []string{botID, userID}, &ch); err != nil {
		return "", fmt.Errorf("create direct channel: %w", err)
	}

	c.mu.Lock()
	c.dmChannels[userID] = ch.ID
	c.mu.Unlock()
	return ch.ID, nil
}

// CreatePost posts text to channelID through the REST API and returns the post id.
func (c *Client) CreatePost(ctx context.Context, channelID, text string) (string, error) {
	if !c.HasDirectAPI() {
		return "", ErrNoDirectAPI
	}

	p := post{
		ChannelID:     channelID,
		Message:       text,
		PendingPostID: uuid.NewString(),
		Props:         c.props(),
	}
	var created post
	if err := c.do(ctx, http.MethodPost, "/posts", p, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// PostDirectMessage posts text to the direct channel with recipientID.
func (c *Client) PostDirectMessage(ctx context.Context, recipientID, text string) (string, error) {
	if recipientID == "" {
		return "", ErrEmptyRecipient
	}
	if !c.HasDirectAPI() {
		return "", ErrNoDirectAPI
	}

	channelID, err := c.DirectChannel(ctx, recipientID)
	if err != nil {
		return "", err
	}
	return c.CreatePost(ctx, channelID, text)
}

// PostToChannel posts text to channelOverride, or to the shared channel when
// it is empty. The REST API is used when available; the webhook otherwise, in
// which case the returned post id is empty.
func (c *Client) PostToChannel(ctx context.Context, text, channelOverride string) (string, error) {
	channelID := channelOverride
	if channelID == "" {
		channelID = c.opts.ChannelID
	}

	if c.HasDirectAPI() && channelID != "" {
		return c.CreatePost(ctx, channelID, text)
	}
	if c.opts.WebhookURL != "" {
		return "", c.postWebhook(ctx, text, channelOverride)
	}
	return "", ErrNoSharedChannel
}

func (c *Client) props() map[string]any {
	props := map[string]any{}
	if c.opts.DisplayName != "" {
		props["override_username"] = c.opts.DisplayName
	}
	if c.opts.IconURL != "" {
		props["override_icon_url"] = c.opts.IconURL
	}
	if len(props) == 0 {
		return nil
	}
	return props
}

func (c *Client) postWebhook(ctx context.Context, text, channelName string) error {
	payload := webhookPayload{
		Text:     text,
		Username: c.opts.DisplayName,
		IconURL:  c.opts.IconURL,
		Channel:  channelName,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Method: http.MethodPost, Path: "webhook", StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// do performs an authenticated REST call. in is encoded as JSON when non-nil;
// out is decoded from the response when non-nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if !c.HasDirectAPI() {
		return ErrNoDirectAPI
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.opts.BaseURL+apiPrefix+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.log.Trace().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("mattermost request")

	if resp.StatusCode >= 300 {
		return decodeAPIError(method, path, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(method, path string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{Method: method, Path: path, StatusCode: resp.StatusCode}

	var body struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &body) == nil && body.Message != "" {
		apiErr.Message = body.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}
