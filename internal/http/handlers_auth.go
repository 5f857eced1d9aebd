package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"budgetblu/internal/auth"
	"budgetblu/internal/core"
	"budgetblu/internal/log"
)

type registerRequest struct {
	FullName        string `json:"full_name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Purpose         string `json:"purpose"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

type userResponse struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Purpose   string    `json:"purpose,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	LastLogin time.Time `json:"last_login"`
}

func toUserResponse(u core.User) userResponse {
	return userResponse{
		ID:        u.ID,
		FullName:  u.FullName,
		Email:     u.Email,
		Purpose:   u.Purpose,
		CreatedAt: u.CreatedAt,
		LastLogin: u.LastLogin,
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}

	userID, err := s.deps.Auth.Register(r.Context(), auth.RegisterInput{
		FullName:        req.FullName,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Purpose:         req.Purpose,
	})
	if err != nil {
		var verr *auth.ValidationError
		switch {
		case errors.As(err, &verr):
			ValidationErrorResponse("registration failed", verr.Issues).Write(w)
		case errors.Is(err, core.ErrDuplicateEmail):
			ErrorResponse(http.StatusConflict, core.ErrDuplicateEmail.Error()).Write(w)
		default:
			s.logger.ErrorContext(r.Context(), "Registration failed", log.FieldError, err)
			InternalServerError("registration failed").Write(w)
		}
		return
	}

	NewResponse().
		Status(http.StatusCreated).
		JSON(map[string]string{"id": userID}).
		Write(w)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}

	user, sess, err := s.deps.Auth.Login(r.Context(), req.Email, req.Password, req.Remember)
	if err != nil {
		if errors.Is(err, core.ErrInvalidCredentials) {
			ErrorResponse(http.StatusUnauthorized, core.ErrInvalidCredentials.Error()).Write(w)
			return
		}
		s.logger.ErrorContext(r.Context(), "Login failed", log.FieldError, err)
		InternalServerError("login failed").Write(w)
		return
	}

	s.setSessionCookie(w, sess)
	NewResponse().
		JSON(map[string]interface{}{
			"user":       toUserResponse(user),
			"session_id": sess.ID,
			"expires_at": sess.ExpiresAt,
		}).
		Write(w)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionIDFromRequest(r)
	if sessionID != "" {
		if err := s.deps.Sessions.Logout(r.Context(), sessionID); err != nil {
			s.logger.WarnContext(r.Context(), "Logout cleanup failed",
				log.FieldSessionID, sessionID, log.FieldError, err)
		}
	}
	s.clearSessionCookie(w)
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	NewResponse().JSON(toUserResponse(*user)).Write(w)
}

// handlePasswordStrength scores a candidate password without storing it,
// so signup forms can show live feedback.
func (s *Server) handlePasswordStrength(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}

	strength := core.ScorePassword(req.Password)
	NewResponse().JSON(map[string]interface{}{
		"score":    strength.Score,
		"level":    strength.Level,
		"feedback": strength.Feedback,
		"accepted": strength.Score >= core.MinRegistrationScore,
	}).Write(w)
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
