package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"coldmailer/internal/contact"
	"coldmailer/internal/ledger"
	"coldmailer/internal/mailer"
	"coldmailer/internal/ratelimit"
	"coldmailer/internal/template"
)

// StatsResponse is the response for GET /api/v1/stats
type StatsResponse struct {
	Contacts contact.Statistics `json:"contacts"`
	Rate     ratelimit.Stats    `json:"rate"`
}

// HistoryResponse is the response for GET /api/v1/history
type HistoryResponse struct {
	Records []ledger.Record `json:"records"`
	Total   int             `json:"total"`
}

// SendRequest is the request body for POST /api/v1/send
type SendRequest struct {
	ContactID    string            `json:"contact_id"`
	Email        string            `json:"email"`
	Template     string            `json:"template"`
	CustomVars   map[string]string `json:"custom_vars,omitempty"`
	AttachResume *bool             `json:"attach_resume,omitempty"`
	DryRun       bool              `json:"dry_run"`
}

// SendResponse is the response for POST /api/v1/send
type SendResponse struct {
	Status  string `json:"status"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Preview string `json:"preview,omitempty"`
	Warning string `json:"warning,omitempty"`
}

// HealthResponse is the response for GET /health
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// ErrorResponse is the error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Uptime: time.Since(s.startTime).String(),
	})
}

// handleStats handles GET /api/v1/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	contactStats, err := s.mailer.Store().GetStatistics()
	if err != nil {
		s.logger.Error("failed to get contact statistics", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to get statistics")
		return
	}

	s.sendJSON(w, http.StatusOK, StatsResponse{
		Contacts: contactStats,
		Rate:     s.mailer.Governor().Statistics(),
	})
}

// handleHistory handles GET /api/v1/history
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < -1 {
			s.sendError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	s.sendJSON(w, http.StatusOK, HistoryResponse{
		Records: s.mailer.Ledger().Recent(limit),
		Total:   s.mailer.Ledger().Total(),
	})
}

// handleHistoryClear handles DELETE /api/v1/history
func (s *Server) handleHistoryClear(w http.ResponseWriter, r *http.Request) {
	if err := s.mailer.Ledger().Clear(); err != nil {
		s.logger.Error("failed to clear history", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to clear history")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleContactList handles GET /api/v1/contacts
func (s *Server) handleContactList(w http.ResponseWriter, r *http.Request) {
	var (
		contacts []*contact.Contact
		err      error
	)
	if status := r.URL.Query().Get("status"); status != "" {
		st, verr := contact.ValidateStatus(status)
		if verr != nil {
			s.sendError(w, http.StatusBadRequest, verr.Error())
			return
		}
		contacts, err = s.mailer.Store().GetByStatus(st)
	} else {
		contacts, err = s.mailer.Store().GetAll()
	}
	if err != nil {
		s.logger.Error("failed to list contacts", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to list contacts")
		return
	}
	if contacts == nil {
		contacts = []*contact.Contact{}
	}

	s.sendJSON(w, http.StatusOK, map[string]any{
		"contacts": contacts,
		"total":    len(contacts),
	})
}

// handleContactCreate handles POST /api/v1/contacts
func (s *Server) handleContactCreate(w http.ResponseWriter, r *http.Request) {
	var params contact.AddParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	c, err := s.mailer.Store().Add(params)
	if err != nil {
		s.sendContactError(w, err)
		return
	}
	s.sendJSON(w, http.StatusCreated, c)
}

// handleContactGet handles GET /api/v1/contacts/{id}
func (s *Server) handleContactGet(w http.ResponseWriter, r *http.Request) {
	c, err := s.mailer.Store().GetByID(chi.URLParam(r, "id"))
	if err != nil {
		s.sendContactError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, c)
}

// handleContactUpdate handles PUT /api/v1/contacts/{id}
func (s *Server) handleContactUpdate(w http.ResponseWriter, r *http.Request) {
	var params contact.UpdateParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	c, err := s.mailer.Store().Update(chi.URLParam(r, "id"), params)
	if err != nil {
		s.sendContactError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, c)
}

// handleContactDelete handles DELETE /api/v1/contacts/{id}
func (s *Server) handleContactDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.mailer.Store().Delete(chi.URLParam(r, "id")); err != nil {
		s.sendContactError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTemplateList handles GET /api/v1/templates
func (s *Server) handleTemplateList(w http.ResponseWriter, r *http.Request) {
	names, err := s.mailer.Templates().List()
	if err != nil {
		s.logger.Error("failed to list templates", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to list templates")
		return
	}
	if names == nil {
		names = []string{}
	}
	s.sendJSON(w, http.StatusOK, map[string]any{"templates": names})
}

// handleTemplatePreview handles GET /api/v1/templates/{name}/preview
func (s *Server) handleTemplatePreview(w http.ResponseWriter, r *http.Request) {
	contactID := r.URL.Query().Get("contact_id")
	if contactID == "" {
		s.sendError(w, http.StatusBadRequest, "contact_id is required")
		return
	}

	c, err := s.mailer.Store().GetByID(contactID)
	if err != nil {
		s.sendContactError(w, err)
		return
	}

	name := chi.URLParam(r, "name")
	preview, err := s.mailer.Templates().Preview(name, c, nil)
	if err != nil {
		var nf *template.NotFoundError
		if errors.As(err, &nf) {
			s.sendError(w, http.StatusNotFound, nf.Error())
			return
		}
		s.sendError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.sendJSON(w, http.StatusOK, map[string]string{
		"template": name,
		"email":    c.Email,
		"preview":  preview,
	})
}

// handleSend handles POST /api/v1/send
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var (
		c   *contact.Contact
		err error
	)
	switch {
	case req.ContactID != "":
		c, err = s.mailer.Store().GetByID(req.ContactID)
	case req.Email != "":
		c, err = s.mailer.Store().GetByEmail(req.Email)
	default:
		s.sendError(w, http.StatusBadRequest, "contact_id or email is required")
		return
	}
	if err != nil {
		s.sendContactError(w, err)
		return
	}

	res, err := s.mailer.SendOne(r.Context(), c, req.Template, req.CustomVars, req.AttachResume, req.DryRun)
	if err != nil {
		s.sendSendError(w, err)
		return
	}

	status := "sent"
	if res.DryRun {
		status = "dry_run"
	}
	resp := SendResponse{
		Status:  status,
		Email:   c.Email,
		Subject: res.Subject,
		Preview: res.Preview,
	}
	if res.PersistenceErr != nil {
		resp.Warning = res.PersistenceErr.Error()
	}
	s.sendJSON(w, http.StatusOK, resp)
}

// handleSendTest handles POST /api/v1/send/test
func (s *Server) handleSendTest(w http.ResponseWriter, r *http.Request) {
	if err := s.mailer.TestConnection(r.Context()); err != nil {
		s.sendError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Connection and authentication successful",
	})
}

// sendContactError maps contact-store errors to HTTP statuses.
func (s *Server) sendContactError(w http.ResponseWriter, err error) {
	var verr *contact.ValidationError
	switch {
	case errors.Is(err, contact.ErrNotFound):
		s.sendError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, contact.ErrDuplicateEmail):
		s.sendError(w, http.StatusConflict, err.Error())
	case errors.As(err, &verr):
		s.sendError(w, http.StatusBadRequest, verr.Error())
	default:
		s.logger.Error("contact store error", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Internal error")
	}
}

// sendSendError maps dispatch errors to HTTP statuses.
func (s *Server) sendSendError(w http.ResponseWriter, err error) {
	var (
		rlErr   *ratelimit.RateLimitError
		nfErr   *template.NotFoundError
		authErr *mailer.AuthError
		rcptErr *mailer.RecipientError
	)
	switch {
	case errors.As(err, &rlErr):
		w.Header().Set("Retry-After",
			strconv.Itoa(int(s.mailer.Governor().WaitDuration().Seconds())))
		s.sendError(w, http.StatusTooManyRequests, rlErr.Reason)
	case errors.As(err, &nfErr):
		s.sendError(w, http.StatusNotFound, nfErr.Error())
	case errors.As(err, &authErr):
		s.sendError(w, http.StatusBadGateway, authErr.Error())
	case errors.As(err, &rcptErr):
		s.sendError(w, http.StatusBadGateway, rcptErr.Error())
	case mailer.IsTemporaryError(err):
		s.sendError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.sendError(w, http.StatusBadGateway, err.Error())
	}
}

// sendJSON sends a JSON response
func (s *Server) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// sendError sends an error response
func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, ErrorResponse{Error: message})
}
