package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/harsh7800/adofly/internal/creative"
	"github.com/harsh7800/adofly/internal/logging"
	"github.com/harsh7800/adofly/internal/runs"
	"github.com/harsh7800/adofly/internal/store"
)

// SubmitResponse is returned when a run is accepted.
type SubmitResponse struct {
	RunID string `json:"runId"`
}

// readRequest decodes and validates an AdRequest body, writing a 400
// response and returning false when it is invalid.
func (s *Server) readRequest(w http.ResponseWriter, r *http.Request) (creative.AdRequest, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "read body: "+err.Error(), nil)
		return creative.AdRequest{}, false
	}
	req, err := creative.ParseRequest(body)
	if err != nil {
		var verr *creative.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid ad request", verr.Violations)
		} else {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		}
		return creative.AdRequest{}, false
	}
	return req, true
}

func (s *Server) userRun(w http.ResponseWriter, r *http.Request) (*runs.Run, bool) {
	user, _ := UserFromContext(r.Context())
	run, err := s.registry.Get(user, r.PathValue("runId"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "run not found", nil)
		return nil, false
	}
	return run, true
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readRequest(w, r)
	if !ok {
		return
	}
	user, _ := UserFromContext(r.Context())
	run := s.registry.Start(logging.NewContext(r.Context(), s.logger), user, req, s.exec)

	w.Header().Set("Location", "/api/ad-generation/"+run.ID)
	writeJSON(w, http.StatusAccepted, SubmitResponse{RunID: run.ID})
}

// handleEvents streams a run's events from the beginning. Disconnecting
// does not stop the run; the client may subscribe again and replay.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	run, ok := s.userRun(w, r)
	if !ok {
		return
	}
	s.stream(w, r, run)
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request, run *runs.Run) {
	es := NewEventStream(w)
	es.Open()
	for ev := range run.Subscribe(r.Context()) {
		if err := es.Send(ev); err != nil {
			s.logger.Debug("sse client gone", slog.String("run_id", run.ID), slog.Any("error", err))
			return
		}
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	run, ok := s.userRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run.Snapshot())
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	id := r.PathValue("runId")
	if err := s.registry.Cancel(user, id); err != nil {
		writeError(w, http.StatusNotFound, "not_found", "run not found", nil)
		return
	}
	writeJSON(w, http.StatusAccepted, SubmitResponse{RunID: id})
}

// handleStream runs a request and streams its events on the same
// connection. The run is canceled if the client goes away first.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readRequest(w, r)
	if !ok {
		return
	}
	user, _ := UserFromContext(r.Context())
	run := s.registry.Start(logging.NewContext(r.Context(), s.logger), user, req, s.exec)
	w.Header().Set("X-Run-ID", run.ID)

	s.stream(w, r, run)
	if r.Context().Err() != nil && !run.Done() {
		_ = s.registry.Cancel(user, run.ID)
	}
}

// handleCreative runs a request synchronously and returns the creative.
func (s *Server) handleCreative(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readRequest(w, r)
	if !ok {
		return
	}
	user, _ := UserFromContext(r.Context())
	ctx := logging.NewContext(r.Context(), logging.ForRun(s.logger, "sync", user))

	c, err := s.exec(ctx, req, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "generation_failed", "Failed to generate ad. "+err.Error(), nil)
		return
	}

	rec := store.Record{ID: newRecordID(), UserID: user, Request: req, Creative: *c, CreatedAt: time.Now().UTC()}
	if err := s.store.Save(ctx, rec); err != nil {
		s.logger.Error("persist creative failed", slog.String("id", rec.ID), slog.Any("error", err))
	}
	writeJSON(w, http.StatusOK, c)
}

// ListResponse wraps the caller's saved creatives.
type ListResponse struct {
	Creatives []store.Record `json:"creatives"`
}

func (s *Server) handleListCreatives(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a non-negative integer", nil)
			return
		}
		limit = n
	}
	recs, err := s.store.ListByUser(r.Context(), user, limit)
	if err != nil {
		s.logger.Error("list creatives failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal", "could not list creatives", nil)
		return
	}
	if recs == nil {
		recs = []store.Record{}
	}
	writeJSON(w, http.StatusOK, ListResponse{Creatives: recs})
}
