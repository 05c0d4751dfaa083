// Package bot turns chat messages into answered questions. Inbound messages are queued
// and handled one at a time, in arrival order, by a single consumer.
package bot

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/wikichat/internal/models"
	"github.com/hyperjump/wikichat/internal/responder"
)

// Answerer produces an answer for a chat question.
type Answerer interface {
	Answer(ctx context.Context, question string) (*models.Answer, error)
}

// Sender posts a message to a chat channel.
type Sender interface {
	Say(ctx context.Context, channel, text string) error
}

// Config holds bot settings.
type Config struct {
	Nick          string
	Prefix        string
	Command       string
	FallbackReply string
	QueueSize     int
}

// Bot dispatches chat commands to an Answerer.
type Bot struct {
	answerer Answerer
	sender   Sender
	cfg      Config
	queue    chan models.ChatMessage
	logger   *zap.Logger
}

// Option configures a Bot.
type Option func(*Bot)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bot) { b.logger = l }
}

// New creates a Bot. The queue holds QueueSize messages (64 when unset).
func New(answerer Answerer, sender Sender, cfg Config, opts ...Option) *Bot {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	b := &Bot{
		answerer: answerer,
		sender:   sender,
		cfg:      cfg,
		queue:    make(chan models.ChatMessage, cfg.QueueSize),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Trigger returns the command text that starts a question, e.g. "!ror2".
func (b *Bot) Trigger() string {
	return b.cfg.Prefix + b.cfg.Command
}

// Deliver enqueues msg for Run. It blocks while the queue is full.
func (b *Bot) Deliver(ctx context.Context, msg models.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now()
	}
	select {
	case b.queue <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run handles queued messages until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("bot started", zap.String("nick", b.cfg.Nick), zap.String("trigger", b.Trigger()))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-b.queue:
			b.Handle(ctx, msg)
		}
	}
}

// Handle processes one message to completion and reports whether a reply was sent.
func (b *Bot) Handle(ctx context.Context, msg models.ChatMessage) bool {
	if msg.Author == "" || strings.EqualFold(msg.Author, b.cfg.Nick) {
		return false
	}
	b.logger.Debug("message received",
		zap.String("id", msg.ID),
		zap.String("channel", msg.Channel),
		zap.String("author", msg.Author),
		zap.String("text", msg.Text))

	question, ok := ParseCommand(msg.Text, b.cfg.Prefix, b.cfg.Command)
	if !ok {
		return false
	}

	start := time.Now()
	answer, err := b.answerer.Answer(ctx, question)
	if errors.Is(err, responder.ErrOffTopic) {
		b.logger.Debug("question rejected by topic guard", zap.String("id", msg.ID))
		return false
	}
	if err != nil {
		b.logger.Error("failed to answer question",
			zap.String("id", msg.ID),
			zap.String("question", question),
			zap.Error(err))
		return b.fallback(ctx, msg)
	}

	if err := b.sender.Say(ctx, msg.Channel, answer.Reply); err != nil {
		b.logger.Error("failed to send reply", zap.String("id", msg.ID), zap.Error(err))
		return false
	}
	b.logger.Info("question answered",
		zap.String("id", msg.ID),
		zap.String("author", msg.Author),
		zap.Int("context_chunks", len(answer.Context)),
		zap.Int("reply_length", utf8.RuneCountInString(answer.Reply)),
		zap.Duration("took", time.Since(start)))
	return true
}

func (b *Bot) fallback(ctx context.Context, msg models.ChatMessage) bool {
	if b.cfg.FallbackReply == "" {
		return false
	}
	if err := b.sender.Say(ctx, msg.Channel, b.cfg.FallbackReply); err != nil {
		b.logger.Error("failed to send fallback reply", zap.String("id", msg.ID), zap.Error(err))
		return false
	}
	return true
}

// ParseCommand reports whether text starts with the prefix+command trigger as a whole
// word and returns the rest of the message, trimmed, as the question.
func ParseCommand(text, prefix, command string) (string, bool) {
	trigger := prefix + command
	if command == "" || !strings.HasPrefix(text, trigger) {
		return "", false
	}
	rest := text[len(trigger):]
	if r, _ := utf8.DecodeRuneInString(rest); rest != "" && !unicode.IsSpace(r) {
		return "", false
	}
	return strings.TrimSpace(rest), true
}
