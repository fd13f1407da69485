package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"go-auth-api/common"
	"go-auth-api/logger"
	"go-auth-api/model"
	"go-auth-api/service"
)

// CookieConfig describes the refresh token cookie.
type CookieConfig struct {
	Name   string
	Domain string
	Path   string
	MaxAge time.Duration
}

type AuthHandler struct {
	sessions *service.SessionService
	users    *service.UserService
	cookie   CookieConfig
}

func NewAuthHandler(sessions *service.SessionService, users *service.UserService, cookie CookieConfig) *AuthHandler {
	if cookie.Path == "" {
		cookie.Path = "/"
	}
	return &AuthHandler{sessions: sessions, users: users, cookie: cookie}
}

// Register godoc
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      model.RegisterRequest  true  "Account details"
// @Success      201      {object}  model.MessageResponse
// @Failure      400      {object}  common.AppError
// @Failure      409      {object}  common.AppError
// @Router       /register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.RegisterRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	user, err := h.users.Register(r.Context(), req)
	if err != nil {
		return serviceError(err)
	}

	common.WriteJSON(w, http.StatusCreated, model.MessageResponse{
		Message: fmt.Sprintf("%s is created successfully", user.Username),
	})
	return nil
}

// Login godoc
// @Summary      Log in with email and password
// @Description  Returns an access token and sets the refresh token cookie.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      model.LoginRequest  true  "Credentials"
// @Success      200      {object}  model.AccessTokenResponse
// @Failure      400      {object}  common.AppError
// @Failure      401      {object}  common.AppError
// @Router       /login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.LoginRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	pair, err := h.sessions.Login(r.Context(), req, h.presentedToken(r))
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			return common.NewAppError(http.StatusUnauthorized, "Invalid email or password", nil)
		}
		return serviceError(err)
	}

	h.setRefreshCookie(w, pair.RefreshToken)
	common.WriteJSON(w, http.StatusOK, model.AccessTokenResponse{
		AccessToken: pair.AccessToken,
		Message:     "Login successful",
	})
	return nil
}

// Logout godoc
// @Summary      Log out
// @Description  Forgets the refresh token from the cookie and clears it.
// @Tags         auth
// @Success      204
// @Router       /logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) *common.AppError {
	presented := h.presentedToken(r)
	if presented == "" {
		w.WriteHeader(http.StatusNoContent)
		return nil
	}

	if err := h.sessions.Logout(r.Context(), presented); err != nil {
		return serviceError(err)
	}

	h.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// Refresh godoc
// @Summary      Rotate the refresh token
// @Description  Consumes the refresh token cookie and returns a new access token with a new cookie.
// @Tags         auth
// @Produce      json
// @Success      200  {object}  model.AccessTokenResponse
// @Failure      401  {object}  common.AppError
// @Failure      403  {object}  common.AppError
// @Router       /refresh [post]
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) *common.AppError {
	presented := h.presentedToken(r)
	pair, err := h.sessions.Refresh(r.Context(), presented)
	if err != nil {
		if presented == "" {
			return common.NewAppError(http.StatusUnauthorized, "Refresh token is required", err)
		}
		h.clearRefreshCookie(w)
		return serviceError(err)
	}

	h.setRefreshCookie(w, pair.RefreshToken)
	common.WriteJSON(w, http.StatusOK, model.AccessTokenResponse{AccessToken: pair.AccessToken})
	return nil
}

func (h *AuthHandler) presentedToken(r *http.Request) string {
	c, err := r.Cookie(h.cookie.Name)
	if err != nil {
		return ""
	}
	return c.Value
}

func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, h.newCookie(token, int(h.cookie.MaxAge/time.Second)))
}

func (h *AuthHandler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, h.newCookie("", -1))
	logger.Log.Debug("Refresh token cookie cleared")
}

func (h *AuthHandler) newCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     h.cookie.Name,
		Value:    value,
		Path:     h.cookie.Path,
		Domain:   h.cookie.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	}
}
