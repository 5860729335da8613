package httpcontroller

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/seamless-recorder/internal/logger"
	"github.com/tphakala/seamless-recorder/internal/recorder"
)

// Available control actions
const (
	ActionRecord = "record"
	ActionPause  = "pause"
	ActionStop   = "stop"
	ActionSignal = "signal"
)

// ControlResult is the response body of every control endpoint
type ControlResult struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Action    string          `json:"action"`
	Timestamp time.Time       `json:"timestamp"`
	Status    recorder.Status `json:"status"`
}

// ErrorResponse is returned for failed requests
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (s *Server) result(c echo.Context, code int, action, message string) error {
	return c.JSON(code, ControlResult{
		Success:   true,
		Message:   message,
		Action:    action,
		Timestamp: time.Now(),
		Status:    s.session.Status(),
	})
}

func (s *Server) handleError(c echo.Context, err error, message string, code int) error {
	s.log.Error(message,
		logger.String("path", c.Request().URL.Path),
		logger.Error(err))
	return c.JSON(code, ErrorResponse{Error: err.Error(), Message: message, Code: code})
}

// GetStatus handles GET /api/v1/status
func (s *Server) GetStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.session.Status())
}

// PostRecord handles POST /api/v1/record
func (s *Server) PostRecord(c echo.Context) error {
	if err := s.session.Record(); err != nil {
		return s.handleError(c, err, "Failed to start recording", http.StatusInternalServerError)
	}
	return s.result(c, http.StatusOK, ActionRecord, "Recording")
}

// PostPause handles POST /api/v1/pause?cause=call
func (s *Server) PostPause(c echo.Context) error {
	cause, err := recorder.ParseCause(c.QueryParam("cause"))
	if err != nil {
		return s.handleError(c, err, "Invalid pause cause", http.StatusBadRequest)
	}
	if err := s.session.Pause(cause); err != nil {
		return s.handleError(c, err, "Failed to pause recording", http.StatusInternalServerError)
	}
	return s.result(c, http.StatusOK, ActionPause, "Paused ("+cause.String()+")")
}

// PostStop handles POST /api/v1/stop. It waits for finalization, bounded by
// the finalize timeout; composition keeps running if the wait ends early.
func (s *Server) PostStop(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), s.stopTimeout)
	defer cancel()

	wasIdle := s.session.Status().State == recorder.StateIdle.String()
	if err := s.session.Stop(ctx); err != nil {
		code := http.StatusInternalServerError
		if ctx.Err() != nil {
			code = http.StatusAccepted
		}
		return s.handleError(c, err, "Recording was not finalized", code)
	}

	message := "Stopped"
	if out := s.session.Status().LastOutput; out != "" && !wasIdle {
		message = "Saved " + out
	}
	return s.result(c, http.StatusOK, ActionStop, message)
}

// PostSignal handles POST /api/v1/signals/:signal. Signals are applied
// synchronously but never fail; the response reports the resulting state.
func (s *Server) PostSignal(c echo.Context) error {
	sig, err := recorder.ParseSignal(c.Param("signal"))
	if err != nil {
		return s.handleError(c, err, "Unknown signal", http.StatusBadRequest)
	}
	s.session.HandleSignal(sig)
	return s.result(c, http.StatusAccepted, ActionSignal, sig.String())
}
