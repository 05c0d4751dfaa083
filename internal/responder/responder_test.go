package responder

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/wikichat/internal/llm"
	"github.com/hyperjump/wikichat/internal/models"
)

type stubRetriever struct {
	results []*models.SearchResult
	err     error
	gotK    int
}

func (s *stubRetriever) Retrieve(_ context.Context, _ string, k int) ([]*models.SearchResult, error) {
	s.gotK = k
	return s.results, s.err
}

func result(content string, rank int) *models.SearchResult {
	return &models.SearchResult{Chunk: &models.Chunk{Content: content}, Rank: rank}
}

func TestBuildContext(t *testing.T) {
	assert.Equal(t, "", BuildContext(nil))
	assert.Equal(t, "one", BuildContext([]*models.SearchResult{result("one", 1)}))
	assert.Equal(t, "one\n\ntwo\n\nthree", BuildContext([]*models.SearchResult{
		result("one", 1), result("two", 2), result("three", 3),
	}))
}

func TestBuildMessages(t *testing.T) {
	msgs := BuildMessages("sys", "What is the best item?", "ctx a\n\nctx b")
	require.Len(t, msgs, 2)
	assert.Equal(t, llm.Message{Role: llm.RoleSystem, Content: "sys"}, msgs[0])
	assert.Equal(t, llm.RoleUser, msgs[1].Role)
	assert.Equal(t, "Question: What is the best item?\n\nRelevant Wiki Context: ctx a\n\nctx b\n\nAnswer:", msgs[1].Content)
}

func TestShapeReply(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantLen int
		suffix  bool
	}{
		{"short", "ok", 2, false},
		{"exactly max", strings.Repeat("a", 400), 400, false},
		{"one over", strings.Repeat("a", 401), 403, true},
		{"450 chars", strings.Repeat("b", 450), 403, true},
		{"multibyte", strings.Repeat("é", 450), 403, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShapeReply(tt.in, 400)
			assert.Equal(t, tt.wantLen, len([]rune(got)))
			assert.Equal(t, tt.suffix, strings.HasSuffix(got, "..."))
			if tt.suffix {
				assert.Equal(t, []rune(tt.in)[:400], []rune(got)[:400])
			}
		})
	}
}

func TestIsGameplayQuestion(t *testing.T) {
	kw := []string{"build", "items", "boss"}
	assert.True(t, IsGameplayQuestion("Best BUILD for Commando?", kw))
	assert.True(t, IsGameplayQuestion("which items stack", kw))
	assert.True(t, IsGameplayQuestion("bosses?", kw))
	assert.False(t, IsGameplayQuestion("what's for dinner", kw))
	assert.False(t, IsGameplayQuestion("anything", nil))
}

func TestAnswer(t *testing.T) {
	retriever := &stubRetriever{results: []*models.SearchResult{result("Syringe: +15% attack speed.", 1), result("Crowbar: +75% damage.", 2)}}
	var gotMsgs []llm.Message
	var gotOpts llm.Options
	completer := llm.CompleterFunc(func(_ context.Context, msgs []llm.Message, opts llm.Options) (string, error) {
		gotMsgs, gotOpts = msgs, opts
		return "  " + strings.Repeat("x", 450) + "\n", nil
	})
	r := New(retriever, completer, Config{
		SystemPrompt: "sys",
		Completion:   llm.Options{MaxTokens: 300, Temperature: 0.7},
	})

	ans, err := r.Answer(context.Background(), "What is the best item?")
	require.NoError(t, err)
	assert.Equal(t, 3, retriever.gotK)
	assert.Equal(t, 450, len(ans.Answer))
	assert.Equal(t, 403, len(ans.Reply))
	assert.Len(t, ans.Context, 2)
	assert.Equal(t, llm.Options{MaxTokens: 300, Temperature: 0.7}, gotOpts)
	require.Len(t, gotMsgs, 2)
	assert.Contains(t, gotMsgs[1].Content, "Syringe: +15% attack speed.\n\nCrowbar: +75% damage.")
}

func TestAnswer_NoContext(t *testing.T) {
	var userTurn string
	completer := llm.CompleterFunc(func(_ context.Context, msgs []llm.Message, _ llm.Options) (string, error) {
		userTurn = msgs[1].Content
		return "I don't know.", nil
	})
	r := New(&stubRetriever{}, completer, Config{})
	ans, err := r.Answer(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "I don't know.", ans.Reply)
	assert.Equal(t, "Question: q\n\nRelevant Wiki Context: \n\nAnswer:", userTurn)
}

func TestAnswer_Errors(t *testing.T) {
	ok := llm.CompleterFunc(func(context.Context, []llm.Message, llm.Options) (string, error) { return "fine", nil })
	fail := llm.CompleterFunc(func(context.Context, []llm.Message, llm.Options) (string, error) {
		return "", errors.New("rate limited")
	})

	_, err := New(&stubRetriever{err: errors.New("store down")}, ok, Config{}).Answer(context.Background(), "q")
	assert.ErrorContains(t, err, "store down")

	_, err = New(&stubRetriever{}, fail, Config{}).Answer(context.Background(), "q")
	assert.ErrorContains(t, err, "rate limited")
}

func TestAnswer_TopicGuard(t *testing.T) {
	called := false
	completer := llm.CompleterFunc(func(context.Context, []llm.Message, llm.Options) (string, error) {
		called = true
		return "a", nil
	})
	r := New(&stubRetriever{}, completer, Config{TopicGuard: true, TopicKeywords: []string{"boss"}})

	_, err := r.Answer(context.Background(), "favourite colour?")
	assert.ErrorIs(t, err, ErrOffTopic)
	assert.False(t, called)

	_, err = r.Answer(context.Background(), "how to beat the final boss")
	assert.NoError(t, err)
	assert.True(t, called)
}
