package http

import (
	"net/http"
	"time"

	"budgetblu/internal/notify"
)

type alertResponse struct {
	ID         string    `json:"id"`
	Severity   string    `json:"severity"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	Persistent bool      `json:"persistent"`
	CreatedAt  time.Time `json:"created_at"`
}

func toAlertResponse(a notify.Alert) alertResponse {
	return alertResponse{
		ID:         a.ID,
		Severity:   string(a.Severity),
		Title:      a.Title,
		Message:    a.Message,
		Persistent: a.Persistent,
		CreatedAt:  a.CreatedAt,
	}
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	alerts := s.deps.Alerts.List(user.ID)
	out := make([]alertResponse, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, toAlertResponse(a))
	}
	NewResponse().JSON(out).Write(w)
}

func (s *Server) handleDismissAlert(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	s.deps.Alerts.Dismiss(user.ID, r.PathValue("id"))
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleDismissAllAlerts(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	s.deps.Alerts.DismissAll(user.ID)
	NewResponse().Status(http.StatusNoContent).Write(w)
}

// Pause and resume freeze auto-dismissal, preserving each alert's
// remaining display time, mirroring hover behavior in the client.
func (s *Server) handlePauseAlerts(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	s.deps.Alerts.Pause(user.ID)
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleResumeAlerts(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	s.deps.Alerts.Resume(user.ID)
	NewResponse().Status(http.StatusNoContent).Write(w)
}
