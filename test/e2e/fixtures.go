package e2e

import (
	"encoding/json"
	"hash/fnv"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"unicode"
)

// NewWikiServer serves the corpus. BrokenPath answers 500, unknown paths 404.
func NewWikiServer(c *Corpus) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == BrokenPath {
			http.Error(w, "upstream exploded", http.StatusInternalServerError)
			return
		}
		p, ok := c.Page(r.URL.Path)
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(p.HTML()))
	}))
}

// ChatRequest is a completion request received by FakeOpenAI.
type ChatRequest struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// FakeOpenAI answers /v1/embeddings with bag-of-words vectors and /v1/chat/completions
// with a fixed answer.
type FakeOpenAI struct {
	Dimensions int

	mu         sync.Mutex
	answer     string
	requests   []ChatRequest
	embeddings int
}

// NewFakeOpenAI returns a fake producing vectors of the given size.
func NewFakeOpenAI(dimensions int) *FakeOpenAI {
	return &FakeOpenAI{Dimensions: dimensions, answer: "It depends on the build."}
}

// SetAnswer changes the completion text.
func (f *FakeOpenAI) SetAnswer(a string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answer = a
}

// ChatRequests returns the completion requests received so far.
func (f *FakeOpenAI) ChatRequests() []ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ChatRequest(nil), f.requests...)
}

// EmbeddingCalls returns how many embedding requests were received.
func (f *FakeOpenAI) EmbeddingCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.embeddings
}

// Server starts an httptest server; its URL plus "/v1" is the API base URL.
func (f *FakeOpenAI) Server() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/embeddings", f.handleEmbeddings)
	mux.HandleFunc("/v1/chat/completions", f.handleChat)
	return httptest.NewServer(mux)
}

func (f *FakeOpenAI) handleEmbeddings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Input []string `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.embeddings++
	f.mu.Unlock()

	type datum struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	}
	data := make([]datum, len(req.Input))
	for i, text := range req.Input {
		data[i] = datum{Embedding: BagOfWords(text, f.Dimensions), Index: i}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
}

func (f *FakeOpenAI) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	answer := f.answer
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": "  " + answer + "\n"}, "finish_reason": "stop"},
		},
	})
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "what": true, "which": true,
	"how": true, "does": true, "do": true, "of": true, "to": true, "for": true,
	"in": true, "by": true, "per": true, "item": true, "give": true, "much": true,
}

// BagOfWords hashes the lowercase words of text into a unit vector of size dims.
// Texts sharing words end up close under inner product.
func BagOfWords(text string, dims int) []float64 {
	vec := make([]float64, dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if stopWords[w] {
			continue
		}
		w = stem(w)
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%uint32(dims)]++
	}
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

func stem(w string) string {
	for _, suffix := range []string{"ing", "es", "s"} {
		if len(w) > len(suffix)+3 && strings.HasSuffix(w, suffix) {
			return strings.TrimSuffix(w, suffix)
		}
	}
	return w
}
