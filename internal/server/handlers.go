package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/wikichat/internal/models"
	"github.com/hyperjump/wikichat/internal/responder"
	"github.com/hyperjump/wikichat/internal/storage"
)

type askRequest struct {
	Question string `json:"question"`
}

type indexRequest struct {
	Reset bool `json:"reset"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		s.respondError(w, http.StatusBadRequest, "question is required")
		return
	}
	s.logger.Debug("ask request", zap.String("question", question))
	answer, err := s.responder.Answer(r.Context(), question)
	if errors.Is(err, responder.ErrOffTopic) {
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("ask failed", zap.Error(err))
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, answer)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := query.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("limit", query.Limit), zap.String("mode", query.Mode))
	response, err := s.engine.Search(r.Context(), &query)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleGetChunk(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	chunk, err := s.storage.GetChunk(r.Context(), s.indexer.Collection(), id)
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "chunk not found")
		return
	}
	if err != nil {
		s.logger.Error("get chunk failed", zap.String("id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, chunk)
}

// handleIndex rebuilds from the configured page file. The build is not tied to the
// request, so a client disconnect does not abort it halfway.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	path := s.config.Wiki.OutputPath
	s.logger.Info("index request", zap.String("path", path), zap.Bool("reset", req.Reset))
	build, err := s.indexer.Rebuild(context.WithoutCancel(r.Context()), path, req.Reset)
	if err != nil {
		s.logger.Error("indexing failed", zap.Error(err))
		s.respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": err.Error(),
			"build": build,
		})
		return
	}
	s.respondJSON(w, http.StatusCreated, build)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.indexer.Status(r.Context())
	if err != nil {
		s.logger.Error("status failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status.VectorType = s.config.Index.VectorType
	status.EmbeddingModel = s.config.Embedding.Model
	status.ChatModel = s.config.Completion.Model
	if bytes, err := storage.DiskUsageBytes(
		s.config.Storage.DatabasePath,
		s.config.Storage.KeywordIndexPath,
		s.config.Storage.VectorIndexPath,
	); err == nil {
		status.DiskUsageBytes = bytes
	}
	s.respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
