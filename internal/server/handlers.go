package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	apperrors "github.com/ruralcare/carenav/internal/errors"
	"github.com/ruralcare/carenav/internal/finder"
	"github.com/ruralcare/carenav/internal/logger"
	"github.com/ruralcare/carenav/internal/recognition"
	"github.com/ruralcare/carenav/internal/session"
	"github.com/ruralcare/carenav/internal/validation"
)

const maxBodyBytes = 64 << 10

type Handlers struct {
	deps   Deps
	logger logger.Logger
}

func NewHandlers(deps Deps) *Handlers {
	if deps.ModelTimeout <= 0 {
		deps.ModelTimeout = 30 * time.Second
	}
	return &Handlers{
		deps:   deps,
		logger: deps.Logger.With(map[string]interface{}{"component": "http"}),
	}
}

// errorBody is the error half of every failed response.
type errorBody struct {
	Code    apperrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
	Notice  string              `json:"notice"`
	Details string              `json:"details,omitempty"`
}

// sessionResponse carries the session state, plus the error when the
// operation failed. Failed searches still return the state they left.
type sessionResponse struct {
	Session session.View `json:"session"`
	Error   *errorBody   `json:"error,omitempty"`
}

type zipRequest struct {
	Zip string `json:"zip"`
}

type selectRequest struct {
	ID string `json:"id"`
}

type scoresRequest struct {
	Scores []float64 `json:"scores"`
}

type scoresResponse struct {
	Delivered bool         `json:"delivered"`
	Session   session.View `json:"session"`
}

func (h *Handlers) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.deps.Sessions.Create(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.View())
}

func (h *Handlers) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

// HandleDeleteSession tears a session down, stopping its recognizer.
func (h *Handlers) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Sessions.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) HandleSetFilter(w http.ResponseWriter, r *http.Request) {
	var edit finder.FilterEdit
	if !h.decode(w, r, validation.FilterBody, &edit) {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Finder.SetFilter(edit)
	h.saveAndRespond(w, r, s, nil)
}

func (h *Handlers) HandleZipSearch(w http.ResponseWriter, r *http.Request) {
	var req zipRequest
	if !h.decode(w, r, validation.SearchBody, &req) {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	_, err := s.Finder.SubmitZipSearch(r.Context(), req.Zip)
	h.saveAndRespond(w, r, s, err)
}

func (h *Handlers) HandleApplyFilters(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	_, err := s.Finder.ApplyFilters(r.Context())
	h.saveAndRespond(w, r, s, err)
}

func (h *Handlers) HandleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if !h.decode(w, r, validation.SelectBody, &req) {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Finder.SelectFacility(req.ID)
	h.saveAndRespond(w, r, s, nil)
}

func (h *Handlers) HandleClearSelection(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Finder.ClearSelection()
	h.saveAndRespond(w, r, s, nil)
}

func (h *Handlers) HandleStartListening(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.deps.ModelTimeout)
	defer cancel()

	if err := s.StartListening(ctx); err != nil {
		h.respond(w, s, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: s.View()})
}

func (h *Handlers) HandleStopListening(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.StopListening(); err != nil {
		h.respond(w, s, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: s.View()})
}

func (h *Handlers) HandleScores(w http.ResponseWriter, r *http.Request) {
	var req scoresRequest
	if !h.decode(w, r, validation.ScoresBody, &req) {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	delivered, err := s.PushScores(req.Scores)
	if err != nil {
		h.respond(w, s, err)
		return
	}
	if delivered {
		if err := h.deps.Sessions.Save(r.Context(), s); err != nil {
			h.writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, scoresResponse{Delivered: delivered, Session: s.View()})
}

func (h *Handlers) HandleUI(w http.ResponseWriter, r *http.Request) {
	var edit session.UIEdit
	if !h.decode(w, r, validation.UIBody, &edit) {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.UpdateUI(edit)
	h.saveAndRespond(w, r, s, nil)
}

func (h *Handlers) HandleSpecialists(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"specialists": finder.Specialists,
		"distances":   finder.DistanceOptions,
	})
}

type modelResponse struct {
	recognition.ModelInfo
	Listen recognition.ListenConfig `json:"listenConfig"`
}

func (h *Handlers) HandleModel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.deps.ModelTimeout)
	defer cancel()

	info, err := h.deps.Model.Load(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, modelResponse{ModelInfo: info, Listen: h.deps.Listen})
}

type statusResponse struct {
	Environment  string `json:"environment"`
	SessionStore string `json:"sessionStore"`
	LiveSessions int    `json:"liveSessions"`
	ModelLoaded  bool   `json:"modelLoaded"`
}

func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	_, loaded := h.deps.Model.Loaded()
	writeJSON(w, http.StatusOK, statusResponse{
		Environment:  h.deps.Environment,
		SessionStore: h.deps.SessionStore,
		LiveSessions: h.deps.Sessions.Live(),
		ModelLoaded:  loaded,
	})
}

// session resolves the {id} path value, writing the error response when it
// cannot.
func (h *Handlers) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.deps.Sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	return s, true
}

// decode validates the body against its schema and unmarshals it into v.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, body validation.Body, v any) bool {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(w, apperrors.NewInvalidInputError("unreadable body: "+err.Error()))
		return false
	}
	if err := h.deps.Validator.Validate(body, data); err != nil {
		h.writeError(w, err)
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		h.writeError(w, apperrors.NewInvalidInputError(err.Error()))
		return false
	}
	return true
}

// saveAndRespond persists the session, then reports opErr (if any) along
// with the resulting state.
func (h *Handlers) saveAndRespond(w http.ResponseWriter, r *http.Request, s *session.Session, opErr error) {
	if err := h.deps.Sessions.Save(r.Context(), s); err != nil {
		h.writeError(w, err)
		return
	}
	if opErr != nil {
		h.respond(w, s, opErr)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: s.View()})
}

// respond writes a failed operation together with the session state.
func (h *Handlers) respond(w http.ResponseWriter, s *session.Session, err error) {
	if errors.Is(err, finder.ErrSuperseded) {
		writeJSON(w, http.StatusConflict, sessionResponse{
			Session: s.View(),
			Error: &errorBody{
				Code:    "SUPERSEDED",
				Message: err.Error(),
				Notice:  "A newer search replaced this one",
			},
		})
		return
	}
	status, body := h.errorBody(err)
	writeJSON(w, status, sessionResponse{Session: s.View(), Error: body})
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	status, body := h.errorBody(err)
	writeJSON(w, status, map[string]any{"error": body})
}

func (h *Handlers) errorBody(err error) (int, *errorBody) {
	code := apperrors.CodeOf(err)
	status := apperrors.HTTPStatus(code)
	body := &errorBody{Code: code, Notice: apperrors.Notice(code)}

	var stdErr *apperrors.StandardError
	if errors.As(err, &stdErr) {
		body.Message = stdErr.Message
		body.Details = stdErr.Details
	} else {
		body.Message = "internal error"
	}

	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).Error("request failed", map[string]interface{}{"code": string(code)})
	}
	return status, body
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
