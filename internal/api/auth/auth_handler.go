package auth

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
	Register(w http.ResponseWriter, r *http.Request)
	Login(w http.ResponseWriter, r *http.Request)
	VerifyAccount(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	authService AuthService
	logger      *slog.Logger
}

func NewAuthHandlerImpl(authService AuthService, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		authService: authService,
		logger:      logger,
	}
}

// Register handles POST /api/auth/register.
func (h *HandlerImpl) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "Register"))

	var req RegisterRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request body", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	req.normalize()
	if !api.Validate(w, r, l, &req) {
		return
	}

	_, err := h.authService.Register(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, types.ErrConflict) {
			api.ErrorResponse(w, r, http.StatusConflict, "User already exists")
			return
		}
		l.ErrorContext(ctx, "Registration failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, types.Response{
		Success: true,
		Message: "We sent you an email, please check your email address",
	})
}

// Login handles POST /api/auth/login.
func (h *HandlerImpl) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "Login"))

	var req LoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request body", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	req.normalize()
	if !api.Validate(w, r, l, &req) {
		return
	}

	res, err := h.authService.Login(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrUnauthenticated):
			api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid email or password")
		case errors.Is(err, types.ErrAccountNotVerified):
			api.ErrorResponse(w, r, http.StatusBadRequest, "Account not verified. Please verify your email.")
		default:
			l.ErrorContext(ctx, "Login failed", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, LoginResponse{
		ID:           res.User.ID,
		Username:     res.User.Username,
		IsAdmin:      res.User.IsAdmin,
		ProfilePhoto: res.User.ProfilePhotoURL,
		Token:        res.AccessToken,
	})
}

// VerifyAccount handles GET /api/auth/{userId}/verify/{token}.
func (h *HandlerImpl) VerifyAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "VerifyAccount"))

	userID, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid link")
		return
	}

	err = h.authService.VerifyAccount(ctx, userID, chi.URLParam(r, "token"))
	switch {
	case err == nil:
		api.WriteJSONResponse(w, r, http.StatusOK, types.Response{
			Success: true,
			Message: "Your account verified",
		})
	case errors.Is(err, types.ErrUserNotFound):
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid link")
	case errors.Is(err, types.ErrInvalidToken):
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid token")
	default:
		l.ErrorContext(ctx, "Verification failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
	}
}
