package password

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/FACorreiaa/go-blog-api/internal/api"
	"github.com/FACorreiaa/go-blog-api/internal/types"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	SendResetLink(w http.ResponseWriter, r *http.Request)
	CheckResetLink(w http.ResponseWriter, r *http.Request)
	ResetPassword(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	service Service
	logger  *slog.Logger
}

func NewHandlerImpl(service Service, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		service: service,
		logger:  logger,
	}
}

// SendResetLink handles POST /api/password/reset-password-link.
func (h *HandlerImpl) SendResetLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "SendResetLink"))

	var req ResetLinkRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request body", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	req.normalize()
	if !api.Validate(w, r, l, &req) {
		return
	}

	if err := h.service.SendResetLink(ctx, req.Email); err != nil {
		if errors.Is(err, types.ErrUserNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "User not found")
			return
		}
		l.ErrorContext(ctx, "Failed to send reset link", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{
		Success: true,
		Message: "Reset password link sent successfully",
	})
}

// CheckResetLink handles GET /api/password/reset-password/{userId}/{token}.
func (h *HandlerImpl) CheckResetLink(w http.ResponseWriter, r *http.Request) {
	userID, presented, ok := linkParams(w, r)
	if !ok {
		return
	}
	if err := h.service.CheckResetLink(r.Context(), userID, presented); err != nil {
		h.linkError(w, r, "CheckResetLink", err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{
		Success: true,
		Message: "Reset password link is valid",
	})
}

// ResetPassword handles POST /api/password/reset-password/{userId}/{token}.
func (h *HandlerImpl) ResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "ResetPassword"))

	userID, presented, ok := linkParams(w, r)
	if !ok {
		return
	}

	var req ResetPasswordRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request body", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	req.normalize()
	if !api.Validate(w, r, l, &req) {
		return
	}

	if err := h.service.ResetPassword(ctx, userID, presented, req.Password); err != nil {
		h.linkError(w, r, "ResetPassword", err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{
		Success: true,
		Message: "Password reset successfully, please log in",
	})
}

func linkParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, string, bool) {
	userID, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid link")
		return uuid.Nil, "", false
	}
	return userID, chi.URLParam(r, "token"), true
}

// linkError answers identically for a missing user and a bad token.
func (h *HandlerImpl) linkError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, types.ErrInvalidToken) || errors.Is(err, types.ErrUserNotFound) {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid link")
		return
	}
	h.logger.ErrorContext(r.Context(), "Reset link handling failed", slog.String("HandlerImpl", op), slog.Any("error", err))
	api.ErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
}
