package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/wikichat/internal/config"
	"github.com/hyperjump/wikichat/internal/embedding"
	"github.com/hyperjump/wikichat/internal/indexer"
	"github.com/hyperjump/wikichat/internal/keyword"
	"github.com/hyperjump/wikichat/internal/llm"
	"github.com/hyperjump/wikichat/internal/models"
	"github.com/hyperjump/wikichat/internal/pagefile"
	"github.com/hyperjump/wikichat/internal/responder"
	"github.com/hyperjump/wikichat/internal/search"
	"github.com/hyperjump/wikichat/internal/storage"
	"github.com/hyperjump/wikichat/internal/vector"
)

type testServer struct {
	srv     *Server
	handler http.Handler
	idx     *indexer.Indexer
	cfg     *config.Config
}

func newTestServer(t *testing.T, completer llm.Completer) *testServer {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.DatabasePath = filepath.Join(dir, "chunks.db")
	cfg.Storage.KeywordIndexPath = ""
	cfg.Storage.VectorIndexPath = filepath.Join(dir, "vectors")
	cfg.Wiki.OutputPath = filepath.Join(dir, "wiki_data.txt")

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	emb := embedding.NewMockEmbedder(8)
	vecIdx, err := vector.NewMemoryIndex(8)
	if err != nil {
		t.Fatal(err)
	}
	kwIdx, err := keyword.NewBleveIndex("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = kwIdx.Close() })

	collection := cfg.Index.Collection
	idx := indexer.NewIndexer(store, emb, vecIdx, collection, cfg.Index.ChunkSize,
		indexer.WithKeywordIndex(kwIdx), indexer.WithVectorPath(cfg.Storage.VectorIndexPath))
	engine := search.NewEngine(store, emb, vecIdx, collection, search.WithKeywordIndex(kwIdx))
	resp := responder.New(engine, completer, responder.Config{
		SystemPrompt:   cfg.Completion.SystemPrompt,
		TopK:           cfg.Chat.TopK,
		MaxReplyLength: cfg.Chat.MaxReplyLength,
	})
	srv := NewServer(engine, resp, idx, store, cfg, zap.NewNop())
	return &testServer{srv: srv, handler: srv.Routes(), idx: idx, cfg: cfg}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) seed(t *testing.T) {
	t.Helper()
	pages := []models.Page{
		{Identifier: "/wiki/Soldier's_Syringe", Text: "Increases attack speed by 15%."},
		{Identifier: "/wiki/Tougher_Times", Text: "Chance to block incoming damage."},
	}
	if err := pagefile.WriteFile(ts.cfg.Wiki.OutputPath, pages); err != nil {
		t.Fatal(err)
	}
	if _, err := ts.idx.IndexFile(context.Background(), ts.cfg.Wiki.OutputPath); err != nil {
		t.Fatal(err)
	}
}

func staticAnswer(answer string) llm.Completer {
	return llm.CompleterFunc(func(context.Context, []llm.Message, llm.Options) (string, error) {
		return answer, nil
	})
}

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(t, staticAnswer("x"))
	rec := ts.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestHandleAsk(t *testing.T) {
	ts := newTestServer(t, staticAnswer(strings.Repeat("a", 450)))
	ts.seed(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/ask", askRequest{Question: "What is the best item?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var ans models.Answer
	if err := json.Unmarshal(rec.Body.Bytes(), &ans); err != nil {
		t.Fatal(err)
	}
	if len(ans.Reply) != 403 || !strings.HasSuffix(ans.Reply, "...") {
		t.Errorf("reply length = %d", len(ans.Reply))
	}
	if len(ans.Answer) != 450 {
		t.Errorf("answer length = %d", len(ans.Answer))
	}
	if len(ans.Context) != 2 {
		t.Errorf("expected 2 context chunks, got %d", len(ans.Context))
	}
}

func TestHandleAsk_BadRequests(t *testing.T) {
	ts := newTestServer(t, staticAnswer("x"))
	if rec := ts.do(t, http.MethodPost, "/api/v1/ask", "{not json"); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid json: status = %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodPost, "/api/v1/ask", askRequest{Question: "   "}); rec.Code != http.StatusBadRequest {
		t.Errorf("blank question: status = %d", rec.Code)
	}
}

func TestHandleAsk_CompletionError(t *testing.T) {
	failing := llm.CompleterFunc(func(context.Context, []llm.Message, llm.Options) (string, error) {
		return "", errors.New("upstream 500")
	})
	ts := newTestServer(t, failing)
	rec := ts.do(t, http.MethodPost, "/api/v1/ask", askRequest{Question: "q"})
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHandleSearch(t *testing.T) {
	ts := newTestServer(t, staticAnswer("x"))
	ts.seed(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/search", models.SearchQuery{Query: "block damage", Mode: models.SearchModeKeyword})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp models.SearchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) == 0 || resp.Results[0].Chunk.Page != "/wiki/Tougher_Times" {
		t.Errorf("unexpected results: %+v", resp.Results)
	}

	if rec := ts.do(t, http.MethodPost, "/api/v1/search", models.SearchQuery{Query: "x", Mode: "regex"}); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown mode: status = %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodPost, "/api/v1/search", models.SearchQuery{}); rec.Code != http.StatusBadRequest {
		t.Errorf("empty query: status = %d", rec.Code)
	}
}

func TestHandleGetChunk(t *testing.T) {
	ts := newTestServer(t, staticAnswer("x"))
	ts.seed(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/chunks/doc_2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var chunk models.Chunk
	if err := json.Unmarshal(rec.Body.Bytes(), &chunk); err != nil {
		t.Fatal(err)
	}
	if chunk.Page != "/wiki/Tougher_Times" || chunk.Seq != 2 {
		t.Errorf("chunk = %+v", chunk)
	}

	if rec := ts.do(t, http.MethodGet, "/api/v1/chunks/doc_99", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing chunk: status = %d", rec.Code)
	}
}

func TestHandleIndex(t *testing.T) {
	ts := newTestServer(t, staticAnswer("x"))
	ts.seed(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/index", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	st, _ := ts.idx.Status(context.Background())
	if st.Chunks != 4 {
		t.Errorf("index without reset should duplicate, chunks = %d", st.Chunks)
	}

	rec = ts.do(t, http.MethodPost, "/api/v1/index", indexRequest{Reset: true})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	var build models.Build
	if err := json.Unmarshal(rec.Body.Bytes(), &build); err != nil {
		t.Fatal(err)
	}
	if build.Chunks != 2 || build.Pages != 2 {
		t.Errorf("build = %+v", build)
	}
	st, _ = ts.idx.Status(context.Background())
	if st.Chunks != 2 {
		t.Errorf("index with reset: chunks = %d", st.Chunks)
	}
}

func TestHandleIndex_MissingPageFile(t *testing.T) {
	ts := newTestServer(t, staticAnswer("x"))
	if rec := ts.do(t, http.MethodPost, "/api/v1/index", nil); rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	ts := newTestServer(t, staticAnswer("x"))
	ts.seed(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var st models.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if st.Collection != "ror2_wiki" || st.Chunks != 2 || st.Pages != 2 || st.Vectors != 2 {
		t.Errorf("status = %+v", st)
	}
	if st.LastBuild == nil || st.DiskUsageBytes == 0 {
		t.Errorf("expected last build and disk usage: %+v", st)
	}
	if st.EmbeddingModel != "text-embedding-ada-002" || st.ChatModel != "gpt-4o-mini" {
		t.Errorf("models = %s, %s", st.EmbeddingModel, st.ChatModel)
	}
}
