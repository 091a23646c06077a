package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"coldmailer/internal/contact"
	"coldmailer/internal/mailer"
	"coldmailer/internal/metrics"
	"coldmailer/internal/session"
)

// BulkRequest is the request body for POST /api/v1/bulk
type BulkRequest struct {
	Template   string            `json:"template"`
	CustomVars map[string]string `json:"custom_vars,omitempty"`
	DryRun     bool              `json:"dry_run"`
}

// BulkStartResponse is the response for POST /api/v1/bulk
type BulkStartResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// ssePollInterval is how often the event stream samples session state.
const ssePollInterval = 500 * time.Millisecond

// handleBulkStart handles POST /api/v1/bulk
func (s *Server) handleBulkStart(w http.ResponseWriter, r *http.Request) {
	var req BulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	select {
	case s.bulkSlots <- struct{}{}:
	default:
		s.sendError(w, http.StatusConflict, "Too many bulk operations already running")
		return
	}

	id := s.sessions.Create()
	go s.runBulk(id, req)

	s.logger.Info("bulk operation started",
		"session_id", id,
		"template", req.Template,
		"dry_run", req.DryRun,
	)
	s.sendJSON(w, http.StatusAccepted, BulkStartResponse{
		SessionID: id,
		Status:    session.StatusPending,
	})
}

// runBulk drives one background bulk operation and mirrors its
// progress into the session registry.
func (s *Server) runBulk(id string, req BulkRequest) {
	defer func() { <-s.bulkSlots }()

	metrics.BulkOperationStarted()
	defer metrics.BulkOperationFinished()

	onProgress := func(current, total int, c *contact.Contact) {
		s.sessions.Update(id, func(sess *session.Session) {
			sess.Status = session.StatusInProgress
			sess.Current = current
			sess.Total = total
			sess.CurrentEmail = c.Email
		})
	}
	onUpdate := func(summary mailer.BulkResult) {
		s.sessions.Update(id, func(sess *session.Session) {
			sess.Sent = summary.Sent
			sess.Failed = summary.Failed
			sess.Skipped = summary.Skipped
			sess.Errors = summary.Errors
		})
	}

	result, err := s.mailer.SendToPending(context.Background(), req.Template,
		req.CustomVars, req.DryRun, onProgress, onUpdate)
	if err != nil {
		s.logger.Error("bulk operation failed", "session_id", id, "error", err)
		s.sessions.Update(id, func(sess *session.Session) {
			sess.Status = session.StatusError
			sess.Errors = append(sess.Errors, mailer.SendError{Error: err.Error()})
		})
		metrics.IncBulkOperations(session.StatusError)
		return
	}

	s.sessions.Update(id, func(sess *session.Session) {
		sess.Status = session.StatusCompleted
		sess.Total = result.Total
		sess.Current = result.Total
		sess.Sent = result.Sent
		sess.Failed = result.Failed
		sess.Skipped = result.Skipped
		sess.Errors = result.Errors
	})
	metrics.IncBulkOperations(session.StatusCompleted)

	s.logger.Info("bulk operation completed",
		"session_id", id,
		"total", result.Total,
		"sent", result.Sent,
		"failed", result.Failed,
		"skipped", result.Skipped,
	)
}

// handleBulkStatus handles GET /api/v1/bulk/{id}
func (s *Server) handleBulkStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		s.sendError(w, http.StatusNotFound, "Session not found")
		return
	}
	s.sendJSON(w, http.StatusOK, sess)
}

// handleBulkEvents handles GET /api/v1/bulk/{id}/events. It streams
// session snapshots as server-sent events until the session reaches a
// terminal state or the client disconnects.
func (s *Server) handleBulkEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.sessions.Get(id); !ok {
		s.sendError(w, http.StatusNotFound, "Session not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.sendError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ticker := time.NewTicker(ssePollInterval)
	defer ticker.Stop()

	for {
		sess, ok := s.sessions.Get(id)
		if !ok {
			return
		}
		if err := writeEvent(w, sess); err != nil {
			return
		}
		flusher.Flush()

		if sess.Status == session.StatusCompleted || sess.Status == session.StatusError {
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func writeEvent(w http.ResponseWriter, sess session.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err = w.Write([]byte("\n\n"))
	return err
}
