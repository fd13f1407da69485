package handler

import (
	"net/http"
	"strconv"

	"go-auth-api/common"
	"go-auth-api/logger"
	"go-auth-api/model"
	"go-auth-api/service"

	"github.com/sirupsen/logrus"
)

type UserHandler struct {
	service *service.UserService
}

func NewUserHandler(service *service.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// MeResponse is the caller's identity as carried by the access token.
type MeResponse struct {
	ID       int        `json:"id"`
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Role     model.Role `json:"role"`
}

// Me godoc
// @Summary      Current user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  handler.MeResponse
// @Failure      401  {object}  common.AppError
// @Router       /api/me [get]
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) *common.AppError {
	userID, ok := r.Context().Value(UserIDKey).(int)
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, "Invalid user ID in token", nil)
	}
	username, _ := r.Context().Value(UsernameKey).(string)
	email, _ := r.Context().Value(EmailKey).(string)
	role, _ := r.Context().Value(UserRoleKey).(model.Role)

	common.WriteJSON(w, http.StatusOK, MeResponse{ID: userID, Username: username, Email: email, Role: role})
	return nil
}

// ListUsers godoc
// @Summary      List all users
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   model.User
// @Failure      403  {object}  common.AppError
// @Router       /api/admin/users [get]
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) *common.AppError {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		return serviceError(err)
	}
	common.WriteJSON(w, http.StatusOK, users)
	return nil
}

// UpdateRole godoc
// @Summary      Change a user's role
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      int                          true  "User ID"
// @Param        request  body      model.UpdateUserRoleRequest  true  "New role"
// @Success      200      {object}  model.MessageResponse
// @Failure      400      {object}  common.AppError
// @Failure      404      {object}  common.AppError
// @Router       /api/admin/users/{id}/role [patch]
func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) *common.AppError {
	targetID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || targetID <= 0 {
		return common.NewAppError(http.StatusBadRequest, "Invalid user ID", err)
	}

	var req model.UpdateUserRoleRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	if err := h.service.UpdateUserRole(r.Context(), targetID, req.Role); err != nil {
		return serviceError(err)
	}

	adminID, _ := r.Context().Value(UserIDKey).(int)
	logger.Log.WithFields(logrus.Fields{
		"admin_id":  adminID,
		"target_id": targetID,
		"role":      req.Role,
	}).Info("User role updated")

	common.WriteJSON(w, http.StatusOK, model.MessageResponse{Message: "User role updated"})
	return nil
}
