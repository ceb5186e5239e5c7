package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/intervo-ai/intervo/internal/backend"
	"github.com/intervo-ai/intervo/internal/media"
	"github.com/intervo-ai/intervo/internal/observe"
	"github.com/intervo-ai/intervo/internal/session"
)

var (
	// ErrNoSession is returned by [Controller] operations when no interview
	// is running.
	ErrNoSession = errors.New("web: no active interview session")

	// ErrSessionBusy is returned by [Controller.Start] when an interview is
	// already running.
	ErrSessionBusy = errors.New("web: an interview session is already active")
)

// SessionStatus is the JSON shape served by the status endpoint.
type SessionStatus struct {
	SessionID string              `json:"sessionId"`
	State     session.State       `json:"state"`
	StartedAt time.Time           `json:"startedAt"`
	Mode      session.CaptureMode `json:"mode"`
}

// Controller is the session control surface driven by UI clients. The app's
// session manager implements it.
type Controller interface {
	// Start loads the interview and moves it into the device check.
	Start(ctx context.Context, sessionID string) error

	// GrantDevice acquires camera and microphone and begins the interview.
	GrantDevice(ctx context.Context) error

	// EnterText replaces the draft answer for the current question.
	EnterText(text string) error

	// Advance captures the current answer and moves on; on the last
	// question it submits the session.
	Advance(ctx context.Context) error

	// Stop tears the session down, releasing capture resources.
	Stop() error

	// Status reports the current session. ok is false when none started.
	Status() (status SessionStatus, ok bool)
}

// controlAPI serves the session control endpoints:
//
//	POST /session/start    {"sessionId": "..."}
//	POST /session/device
//	POST /session/answer   {"text": "..."}
//	POST /session/advance
//	POST /session/stop
//	GET  /session/status
type controlAPI struct {
	ctrl Controller
}

// register adds the control routes to mux.
func (c *controlAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /session/start", c.handleStart)
	mux.HandleFunc("POST /session/device", c.handleDevice)
	mux.HandleFunc("POST /session/answer", c.handleAnswer)
	mux.HandleFunc("POST /session/advance", c.handleAdvance)
	mux.HandleFunc("POST /session/stop", c.handleStop)
	mux.HandleFunc("GET /session/status", c.handleStatus)
}

type startRequest struct {
	SessionID string `json:"sessionId"`
}

func (c *controlAPI) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}
	c.finish(w, r, c.ctrl.Start(r.Context(), req.SessionID))
}

func (c *controlAPI) handleDevice(w http.ResponseWriter, r *http.Request) {
	c.finish(w, r, c.ctrl.GrantDevice(r.Context()))
}

type answerRequest struct {
	Text string `json:"text"`
}

func (c *controlAPI) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	c.finish(w, r, c.ctrl.EnterText(req.Text))
}

func (c *controlAPI) handleAdvance(w http.ResponseWriter, r *http.Request) {
	c.finish(w, r, c.ctrl.Advance(r.Context()))
}

func (c *controlAPI) handleStop(w http.ResponseWriter, r *http.Request) {
	c.finish(w, r, c.ctrl.Stop())
}

func (c *controlAPI) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, ok := c.ctrl.Status()
	if !ok {
		writeError(w, http.StatusNotFound, ErrNoSession.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(status)
}

// finish maps a controller error onto an HTTP status. Device errors answer
// with the user-facing message from the media taxonomy so a UI can show it
// verbatim.
func (c *controlAPI) finish(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	observe.Logger(r.Context()).Warn("control request failed",
		"path", r.URL.Path, "error", err)

	switch {
	case errors.Is(err, ErrSessionBusy), errors.Is(err, session.ErrBadState):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrNoSession):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrClosed):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, session.ErrSessionEmpty):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, backend.ErrSessionUnavailable):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, media.ErrPermissionDenied), errors.Is(err, media.ErrDeviceUnavailable):
		writeError(w, http.StatusServiceUnavailable, media.UserMessage(err))
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
