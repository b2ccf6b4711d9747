package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/recommendation-writer/internal/pipeline"
	"github.com/jonathan/recommendation-writer/internal/server/middleware"
	"github.com/jonathan/recommendation-writer/internal/types"
)

// maxBodyBytes bounds request bodies; inline facts are the largest payload.
const maxBodyBytes = 2 << 20

// HistoryResponse is the body of GET /subjects/{subject}/versions.
type HistoryResponse struct {
	SubjectID string          `json:"subject_id"`
	Versions  []types.Version `json:"versions"`
}

// RevertRequest is the optional body of the revert endpoint.
type RevertRequest struct {
	Reason string `json:"reason,omitempty"`
}

// StatsResponse is the body of GET /experiments/stats.
type StatsResponse struct {
	Strategies []pipeline.StrategyStats `json:"strategies"`
}

// protect wraps h with bearer-token auth when it is configured.
func (s *Server) protect(h http.HandlerFunc) http.Handler {
	if s.jwtService == nil {
		return h
	}
	return middleware.AuthMiddleware(s.jwtService.AsTokenValidator())(h)
}

// authorize checks that the caller's token is bound to subject.
func (s *Server) authorize(r *http.Request, subject string) error {
	if s.jwtService == nil {
		return nil
	}
	tokenSubject, err := middleware.GetSubject(r)
	if err != nil || tokenSubject != subject {
		return &ErrSubjectMismatch{Subject: subject}
	}
	return nil
}

// decode reads a JSON body into v. An empty body is an error unless
// optional is set.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	switch {
	case err == nil:
		return nil
	case optional && errors.Is(err, io.EOF):
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &ErrValidation{Field: "body", Message: "Request body is too large"}
	}
	return &ErrValidation{Field: "body", Message: "Invalid request body: " + err.Error()}
}

// writeError maps err to a status code and a caller-safe message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	} else {
		s.logger.Debug("request rejected", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	s.errorResponse(w, status, publicMessage(err))
}

// stream runs fn with an SSE sink. Failures reach the client as the
// terminal error event, so they are only logged here.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, fn func(send func(types.StageEvent)) error) {
	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}
	terminal := false
	send := func(ev types.StageEvent) {
		if ev.Status.Terminal() {
			terminal = true
		}
		if err := sse.WriteStage(ev); err != nil {
			s.logger.Debug("dropping stage event", zap.String("stage", ev.Stage), zap.Error(err))
		}
	}
	// The 200 is already on the wire, so a panic can only be reported as
	// the terminal event.
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("stream panicked", zap.String("path", r.URL.Path), zap.Any("panic", p))
			if !terminal {
				sse.WriteError(publicMessage(fmt.Errorf("stream panicked: %v", p)))
			}
		}
	}()
	if err := fn(send); err != nil {
		if r.Context().Err() != nil {
			s.logger.Info("stream cancelled by client", zap.String("path", r.URL.Path))
			return
		}
		s.logger.Warn("stream failed", zap.String("path", r.URL.Path), zap.Int("status", HTTPStatus(err)), zap.Error(err))
	}
}

// handleGenerate produces one gated recommendation and records it.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	if err := s.decode(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.authorize(r, req.SubjectID); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.svc.Generate(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, res)
}

// handleGenerateStream is handleGenerate with stage events over SSE.
func (s *Server) handleGenerateStream(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	if err := s.decode(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.authorize(r, req.SubjectID); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.stream(w, r, func(send func(types.StageEvent)) error {
		_, err := s.svc.GenerateStream(r.Context(), req, send)
		return err
	})
}

// handleOptions produces the three focus options without versioning them.
func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	if err := s.decode(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.authorize(r, req.SubjectID); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.svc.GenerateOptions(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, res)
}

// handleOptionsStream is handleOptions with stage events over SSE.
func (s *Server) handleOptionsStream(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	if err := s.decode(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.authorize(r, req.SubjectID); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.stream(w, r, func(send func(types.StageEvent)) error {
		_, err := s.svc.GenerateOptionsStream(r.Context(), req, send)
		return err
	})
}

// handleRefine revises a stored version under new instructions.
func (s *Server) handleRefine(w http.ResponseWriter, r *http.Request) {
	var req pipeline.RefineRequest
	if err := s.decode(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.authorize(r, req.SubjectID); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.svc.Refine(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, res)
}

// handleRegenerate rewrites a stored version with a new tone or length.
func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	var req pipeline.RegenerateRequest
	if err := s.decode(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.authorize(r, req.SubjectID); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.svc.Regenerate(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, res)
}

// handleHistory lists a subject's versions, oldest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	subject := r.PathValue("subject")
	if err := s.authorize(r, subject); err != nil {
		s.writeError(w, r, err)
		return
	}

	versions, err := s.svc.History(r.Context(), subject)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if versions == nil {
		versions = []types.Version{}
	}
	s.jsonResponse(w, http.StatusOK, HistoryResponse{SubjectID: subject, Versions: versions})
}

// handleCompare diffs versions a and b.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	subject := r.PathValue("subject")
	if err := s.authorize(r, subject); err != nil {
		s.writeError(w, r, err)
		return
	}

	a, err := positiveInt(r.URL.Query().Get("a"), "a")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	b, err := positiveInt(r.URL.Query().Get("b"), "b")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	diff, err := s.svc.Compare(r.Context(), subject, a, b)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, diff)
}

// handleRevert appends a copy of an earlier version as the new latest.
func (s *Server) handleRevert(w http.ResponseWriter, r *http.Request) {
	subject := r.PathValue("subject")
	if err := s.authorize(r, subject); err != nil {
		s.writeError(w, r, err)
		return
	}

	target, err := positiveInt(r.PathValue("version"), "version")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req RevertRequest
	if err := s.decode(w, r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}

	version, err := s.svc.Revert(r.Context(), subject, target, req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, version)
}

// handleSelect records the human choice among generated options.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, &ErrValidation{Field: "id", Message: "Invalid result ID format"})
		return
	}
	var req pipeline.SelectRequest
	if err := s.decode(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.ResultID = id
	if err := s.authorize(r, req.SubjectID); err != nil {
		s.writeError(w, r, err)
		return
	}

	version, err := s.svc.SelectOption(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, version)
}

// handleStats returns the per-strategy experiment statistics, from the
// configured store when there is one.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var stats []pipeline.StrategyStats
	if s.stats != nil {
		var err error
		stats, err = s.stats(r.Context())
		if err != nil {
			s.logger.Error("failed to load strategy stats", zap.Error(err))
			s.errorResponse(w, http.StatusInternalServerError, "Strategy statistics are unavailable right now.")
			return
		}
	} else {
		stats = s.svc.Stats()
	}
	if stats == nil {
		stats = []pipeline.StrategyStats{}
	}
	s.jsonResponse(w, http.StatusOK, StatsResponse{Strategies: stats})
}

func positiveInt(raw, field string) (int, error) {
	if raw == "" {
		return 0, &ErrValidation{Field: field, Message: field + " is required"}
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, &ErrValidation{Field: field, Message: field + " must be a positive integer"}
	}
	return n, nil
}
