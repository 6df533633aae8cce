package auth

import (
	"encoding/json"
	"net/http"
	"regexp"

	apperrors "github.com/adgenie/backend/internal/errors"
	"github.com/adgenie/backend/internal/logger"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

type SignupRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type ResetRequest struct {
	Email string `json:"email"`
}

type ResetConfirmRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

type Handlers struct {
	service *Service
}

func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

func (h *Handlers) Signup(w http.ResponseWriter, r *http.Request) error {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}

	if !emailRegex.MatchString(NormalizeEmail(req.Email)) {
		return apperrors.ValidationError("invalid email address")
	}
	if req.Name == "" {
		return apperrors.ValidationError("name is required")
	}

	resp, err := h.service.Signup(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		return err
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusCreated, resp)
	return nil
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) error {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}

	resp, err := h.service.Login(r.Context(), req.Email, req.Password, logger.ClientIP(r))
	if err != nil {
		return err
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, resp)
	return nil
}

func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) error {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}
	if req.RefreshToken == "" {
		return apperrors.ValidationError("refresh_token is required")
	}

	resp, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		return err
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, resp)
	return nil
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) error {
	token, ok := BearerToken(r)
	if !ok {
		return apperrors.Unauthorized("missing authorization header")
	}

	if err := h.service.Logout(r.Context(), token); err != nil {
		return err
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK,
		map[string]string{"message": "logged out"})
	return nil
}

// RequestReset always answers with the same message, found or not.
func (h *Handlers) RequestReset(w http.ResponseWriter, r *http.Request) error {
	var req ResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}

	// The generated code is returned to the mail dispatcher, never to the
	// HTTP caller.
	if _, err := h.service.RequestPasswordReset(r.Context(), req.Email); err != nil {
		return err
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK,
		map[string]string{"message": "if the email is registered, a reset code has been sent"})
	return nil
}

func (h *Handlers) ConfirmReset(w http.ResponseWriter, r *http.Request) error {
	var req ResetConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}
	if req.Code == "" {
		return apperrors.ValidationError("code is required")
	}

	if err := h.service.ConfirmPasswordReset(r.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		return err
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK,
		map[string]string{"message": "password updated"})
	return nil
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) error {
	user := GetUserFromContext(r.Context())
	if user == nil {
		return apperrors.Unauthorized("authentication required")
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, user.View)
	return nil
}
