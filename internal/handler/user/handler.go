package user

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/user"
)

type Handler struct {
	service *user.Service
	auth    *middleware.AuthMiddleware
}

func NewHandler(service *user.Service, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{service: service, auth: auth}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	users := r.Group("/users", h.auth.RequireOwner())
	{
		users.POST("", h.CreateUser)
		users.GET("", h.ListUsers)
		users.PUT("/:user_id", h.UpdateUser)
		users.DELETE("/:user_id", h.DeactivateUser)
	}
}

func (h *Handler) CreateUser(c *gin.Context) {
	var req model.CreateUserRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	created, err := h.service.CreateUser(c.Request.Context(), middleware.GetPrincipal(c), &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(created))
}

func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.service.ListUsers(c.Request.Context(), middleware.GetPrincipal(c))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(users))
}

func (h *Handler) UpdateUser(c *gin.Context) {
	id, ok := handler.ParamID(c, "user_id")
	if !ok {
		return
	}
	var req model.UpdateUserRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	updated, err := h.service.UpdateUser(c.Request.Context(), middleware.GetPrincipal(c), id, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	if !updated.IsActive {
		h.auth.Forget(updated.ID)
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(updated))
}

// DeactivateUser keeps the account but revokes access at once.
func (h *Handler) DeactivateUser(c *gin.Context) {
	id, ok := handler.ParamID(c, "user_id")
	if !ok {
		return
	}
	updated, err := h.service.DeactivateUser(c.Request.Context(), middleware.GetPrincipal(c), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	h.auth.Forget(updated.ID)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(updated))
}
