package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "github.com/delivio/user-service/internal/application"
	"github.com/delivio/user-service/internal/interface/middleware"
	"github.com/delivio/user-service/pkg/response"
	"github.com/delivio/user-service/pkg/validation"
)

type UserHandler struct {
	Svc    *userapp.Service
	Logger *logrus.Logger
}

func NewUserHandler(svc *userapp.Service, logger *logrus.Logger) *UserHandler {
	return &UserHandler{Svc: svc, Logger: logger}
}

type createUserRequest struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	PhoneNumber string `json:"phone_number" binding:"required"`
	Role        string `json:"role"`
	Location    string `json:"location" binding:"required"`
}

type updatePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

type updateProfileRequest struct {
	Name        string `json:"name" binding:"required"`
	PhoneNumber string `json:"phone_number" binding:"required"`
	Location    string `json:"location" binding:"required"`
}

// CreateUser registers a user and echoes the request payload back, raw
// password included. The contract predates this service; see the design notes
// before changing it.
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWith(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	err := h.Svc.CreateUser(c.Request.Context(), userapp.CreateUserInput{
		Username:    req.Username,
		Password:    req.Password,
		Name:        req.Name,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Role:        req.Role,
		Location:    req.Location,
	})
	if err != nil {
		if errors.Is(err, userapp.ErrUserExists) {
			response.Error(c, http.StatusForbidden, "user already exists")
			return
		}
		h.Logger.WithError(err).Error("create user failed")
		response.Error(c, http.StatusInternalServerError, "internal server error")
		return
	}

	response.JSON(c, http.StatusOK, req)
}

func (h *UserHandler) GetUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid user id")
		return
	}

	view, err := h.Svc.GetUserByID(c.Request.Context(), id)
	if err != nil {
		h.renderReadError(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

func (h *UserHandler) GetUserByUsernamePassword(c *gin.Context) {
	username := c.Param("username")
	password := c.Param("password")

	view, err := h.Svc.GetUserByUsernamePassword(c.Request.Context(), username, password)
	if err != nil {
		if errors.Is(err, userapp.ErrPasswordMismatch) {
			response.Error(c, http.StatusForbidden, "password incorrect")
			return
		}
		h.renderReadError(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

func (h *UserHandler) GetUserByUsername(c *gin.Context) {
	view, err := h.Svc.GetUserByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		h.renderReadError(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

func (h *UserHandler) UpdatePassword(c *gin.Context) {
	cu, ok := middleware.UserFromCtx(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "could not validate credentials")
		return
	}

	var req updatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWith(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	if err := h.Svc.UpdatePassword(c.Request.Context(), cu.ID, req.OldPassword, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, userapp.ErrUserNotFound):
			response.Error(c, http.StatusNotFound, "user not found")
		case errors.Is(err, userapp.ErrPasswordMismatch):
			response.Error(c, http.StatusForbidden, "passwords didn't match")
		default:
			h.Logger.WithError(err).Error("update password failed")
			response.Error(c, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	response.JSON(c, http.StatusOK, response.Detail{Detail: "password updated successfully"})
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	cu, ok := middleware.UserFromCtx(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "could not validate credentials")
		return
	}

	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWith(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	profile, err := h.Svc.UpdateProfile(c.Request.Context(), cu.ID, userapp.UpdateProfileInput{
		Name:        req.Name,
		PhoneNumber: req.PhoneNumber,
		Location:    req.Location,
	})
	if err != nil {
		if errors.Is(err, userapp.ErrUserNotFound) {
			response.Error(c, http.StatusNotFound, "user not found")
			return
		}
		h.Logger.WithError(err).Error("update profile failed")
		response.Error(c, http.StatusInternalServerError, "internal server error")
		return
	}

	response.JSON(c, http.StatusOK, profile)
}

// SearchUsers queries the Elasticsearch projection populated on create and
// profile update.
func (h *UserHandler) SearchUsers(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		response.Error(c, http.StatusBadRequest, "query parameter q is required")
		return
	}
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))

	hits, err := h.Svc.SearchUsers(c.Request.Context(), q, size)
	if err != nil {
		h.Logger.WithError(err).Error("search users failed")
		response.Error(c, http.StatusInternalServerError, "internal server error")
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"hits": hits})
}

func (h *UserHandler) renderReadError(c *gin.Context, err error) {
	if errors.Is(err, userapp.ErrUserNotFound) {
		response.Error(c, http.StatusNotFound, "user not found")
		return
	}
	h.Logger.WithError(err).Error("user lookup failed")
	response.Error(c, http.StatusInternalServerError, "internal server error")
}
