// Package responder answers a question in two stages: retrieve wiki chunks, then ask
// the language model with those chunks as context.
package responder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/wikichat/internal/llm"
	"github.com/hyperjump/wikichat/internal/models"
	"github.com/hyperjump/wikichat/pkg/utils"
)

// ErrOffTopic is returned by Answer when the topic guard rejects a question.
var ErrOffTopic = errors.New("question is not about gameplay")

// Retriever returns the k chunks nearest to question in rank order.
type Retriever interface {
	Retrieve(ctx context.Context, question string, k int) ([]*models.SearchResult, error)
}

// Config holds answer settings.
type Config struct {
	SystemPrompt   string
	TopK           int
	MaxReplyLength int
	Completion     llm.Options
	TopicGuard     bool
	TopicKeywords  []string
}

// Responder runs retrieval and generation for one question at a time.
type Responder struct {
	retriever Retriever
	completer llm.Completer
	cfg       Config
	logger    *zap.Logger
}

// Option configures a Responder.
type Option func(*Responder)

// WithLogger logs each stage at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(r *Responder) { r.logger = l }
}

// New creates a Responder. Zero TopK and MaxReplyLength fall back to 3 and 400.
func New(retriever Retriever, completer llm.Completer, cfg Config, opts ...Option) *Responder {
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.MaxReplyLength <= 0 {
		cfg.MaxReplyLength = 400
	}
	r := &Responder{retriever: retriever, completer: completer, cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve returns the top-K chunks for question.
func (r *Responder) Retrieve(ctx context.Context, question string) ([]*models.SearchResult, error) {
	results, err := r.retriever.Retrieve(ctx, question, r.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}
	return results, nil
}

// Generate asks the model to answer question given wikiContext and returns the trimmed
// answer.
func (r *Responder) Generate(ctx context.Context, question, wikiContext string) (string, error) {
	answer, err := r.completer.Complete(ctx, BuildMessages(r.cfg.SystemPrompt, question, wikiContext), r.cfg.Completion)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

// Answer runs both stages and shapes the reply for chat.
func (r *Responder) Answer(ctx context.Context, question string) (*models.Answer, error) {
	if r.cfg.TopicGuard && !IsGameplayQuestion(question, r.cfg.TopicKeywords) {
		return nil, ErrOffTopic
	}
	results, err := r.Retrieve(ctx, question)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("context retrieved", zap.String("question", question), zap.Int("chunks", len(results)))

	answer, err := r.Generate(ctx, question, BuildContext(results))
	if err != nil {
		return nil, err
	}
	return &models.Answer{
		Question: question,
		Answer:   answer,
		Reply:    ShapeReply(answer, r.cfg.MaxReplyLength),
		Context:  results,
	}, nil
}

// BuildContext joins chunk texts with a blank line, in rank order.
func BuildContext(results []*models.SearchResult) string {
	texts := make([]string, 0, len(results))
	for _, res := range results {
		texts = append(texts, res.Chunk.Content)
	}
	return strings.Join(texts, "\n\n")
}

// BuildMessages returns the system instruction followed by the user turn carrying the
// question and retrieved context.
func BuildMessages(system, question, wikiContext string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Question: %s\n\nRelevant Wiki Context: %s\n\nAnswer:", question, wikiContext)},
	}
}

// ShapeReply cuts answer to max characters plus "..." when it is longer.
func ShapeReply(answer string, max int) string {
	return utils.Truncate(answer, max)
}

// IsGameplayQuestion reports whether question mentions any of keywords,
// case-insensitively and as a substring.
func IsGameplayQuestion(question string, keywords []string) bool {
	q := strings.ToLower(question)
	for _, k := range keywords {
		if k != "" && strings.Contains(q, strings.ToLower(k)) {
			return true
		}
	}
	return false
}
