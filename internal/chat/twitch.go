// Package chat connects the bot to a Twitch channel over IRC.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gempir/go-twitch-irc/v4"
	"go.uber.org/zap"

	"github.com/hyperjump/wikichat/internal/models"
)

const disconnectTimeout = 5 * time.Second

// DeliverFunc receives every chat message seen in the channel.
type DeliverFunc func(ctx context.Context, msg models.ChatMessage) error

// TwitchConfig holds the bot's Twitch identity and channel.
type TwitchConfig struct {
	Username string
	Token    string // with or without the "oauth:" prefix
	Channel  string
	// Address overrides the IRC server (host:port). Empty means Twitch's TLS endpoint.
	Address string
}

// Twitch is a chat transport backed by go-twitch-irc.
type Twitch struct {
	client  *twitch.Client
	channel string
	logger  *zap.Logger
}

// TwitchOption configures a Twitch transport.
type TwitchOption func(*Twitch)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) TwitchOption {
	return func(t *Twitch) { t.logger = l }
}

// NewTwitch creates a transport for cfg.Channel. It does not connect.
func NewTwitch(cfg TwitchConfig, opts ...TwitchOption) (*Twitch, error) {
	if cfg.Username == "" || cfg.Token == "" {
		return nil, fmt.Errorf("twitch username and token are required")
	}
	if cfg.Channel == "" {
		return nil, fmt.Errorf("twitch channel is required")
	}
	client := twitch.NewClient(cfg.Username, "oauth:"+strings.TrimPrefix(cfg.Token, "oauth:"))
	if cfg.Address != "" {
		client.IrcAddress = cfg.Address
		client.TLS = false
	}
	t := &Twitch{
		client:  client,
		channel: strings.ToLower(strings.TrimPrefix(cfg.Channel, "#")),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Channel returns the joined channel name.
func (t *Twitch) Channel() string {
	return t.channel
}

// Run connects, joins the channel and forwards private messages to deliver until ctx
// is cancelled or the connection fails.
func (t *Twitch) Run(ctx context.Context, deliver DeliverFunc) error {
	t.client.OnConnect(func() {
		t.logger.Info("connected to twitch", zap.String("channel", t.channel))
	})
	t.client.OnPrivateMessage(func(m twitch.PrivateMessage) {
		if err := deliver(ctx, toChatMessage(m)); err != nil {
			t.logger.Warn("message dropped", zap.String("id", m.ID), zap.Error(err))
		}
	})
	t.client.Join(t.channel)

	errCh := make(chan error, 1)
	go func() { errCh <- t.client.Connect() }()

	select {
	case <-ctx.Done():
		if err := t.client.Disconnect(); err != nil {
			t.logger.Debug("disconnect", zap.Error(err))
		}
		select {
		case <-errCh:
		case <-time.After(disconnectTimeout):
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, twitch.ErrClientDisconnected) {
			return nil
		}
		return fmt.Errorf("twitch connection: %w", err)
	}
}

// Say posts text to channel. Delivery is asynchronous; the client paces writes to stay
// under Twitch's rate limits.
func (t *Twitch) Say(ctx context.Context, channel, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if channel == "" {
		channel = t.channel
	}
	t.client.Say(channel, text)
	return nil
}

func toChatMessage(m twitch.PrivateMessage) models.ChatMessage {
	received := m.Time
	if received.IsZero() {
		received = time.Now()
	}
	return models.ChatMessage{
		ID:         m.ID,
		Channel:    m.Channel,
		Author:     m.User.Name,
		Text:       m.Message,
		ReceivedAt: received,
	}
}
