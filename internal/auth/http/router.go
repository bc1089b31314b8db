package http

import (
	"context"
	"net/http"
	"time"

	"github.com/pixfeed/pixfeed/backend/internal/auth/service"
	commonhttp "github.com/pixfeed/pixfeed/backend/internal/common/http"
	"github.com/pixfeed/pixfeed/backend/internal/common/logger"
)

type registerRequest struct {
	UserName string `json:"userName" validate:"required,min=3,max=30,alphanum"`
	FullName string `json:"fullName" validate:"required,min=1,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type loginRequest struct {
	UserName string `json:"userName" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type Handler struct {
	auth    service.Service
	timeout time.Duration
	log     *logger.Logger
}

func NewHandler(auth service.Service, timeout time.Duration, log *logger.Logger) http.Handler {
	h := &Handler{auth: auth, timeout: timeout, log: log}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/register", h.register)
	mux.HandleFunc("/api/auth/login", h.login)
	return mux
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		commonhttp.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req registerRequest
	if err := commonhttp.DecodeJSON(r, &req); err != nil {
		h.log.Warnf("register failed: invalid json: %v", err)
		commonhttp.WriteErrorEnvelope(w, http.StatusBadRequest, commonhttp.CodeInvalidJSON, "invalid json", nil, "")
		return
	}
	if details := commonhttp.ValidateStruct(req); details != nil {
		commonhttp.WriteValidationError(w, details)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	creds, err := h.auth.Register(ctx, req.UserName, req.FullName, req.Email, req.Password)
	if err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return
	}

	commonhttp.WriteJSON(w, http.StatusCreated, tokenResponse{Token: creds.Token})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		commonhttp.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req loginRequest
	if err := commonhttp.DecodeJSON(r, &req); err != nil {
		h.log.Warnf("login failed: invalid json: %v", err)
		commonhttp.WriteErrorEnvelope(w, http.StatusBadRequest, commonhttp.CodeInvalidJSON, "invalid json", nil, "")
		return
	}
	if details := commonhttp.ValidateStruct(req); details != nil {
		commonhttp.WriteValidationError(w, details)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	creds, err := h.auth.Login(ctx, req.UserName, req.Password)
	if err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, tokenResponse{Token: creds.Token})
}
