package permission

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/permission"
)

type Handler struct {
	service *permission.Service
	auth    *middleware.AuthMiddleware
}

func NewHandler(service *permission.Service, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{service: service, auth: auth}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	perms := r.Group("/permissions")
	{
		perms.GET("/me", h.auth.RequireMember(), h.GetMine)

		owner := h.auth.RequireOwner()
		perms.GET("/clinic-users", owner, h.ListClinicUsers)
		perms.GET("/:user_id", owner, h.GetPermissions)
		perms.PUT("/:user_id", owner, h.UpdatePermissions)
		perms.POST("/:user_id/reset", owner, h.ResetPermissions)
	}
}

func (h *Handler) GetMine(c *gin.Context) {
	view, err := h.service.Effective(c.Request.Context(), middleware.GetPrincipal(c))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(view))
}

func (h *Handler) ListClinicUsers(c *gin.Context) {
	users, err := h.service.ListClinicUsers(c.Request.Context(), middleware.GetPrincipal(c))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(users))
}

func (h *Handler) GetPermissions(c *gin.Context) {
	userID, ok := handler.ParamID(c, "user_id")
	if !ok {
		return
	}
	view, err := h.service.Get(c.Request.Context(), middleware.GetPrincipal(c), userID)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(view))
}

func (h *Handler) UpdatePermissions(c *gin.Context) {
	userID, ok := handler.ParamID(c, "user_id")
	if !ok {
		return
	}
	var req model.UpdatePermissionsRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	view, err := h.service.Update(c.Request.Context(), middleware.GetPrincipal(c), userID, req.Capabilities)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(view))
}

func (h *Handler) ResetPermissions(c *gin.Context) {
	userID, ok := handler.ParamID(c, "user_id")
	if !ok {
		return
	}
	view, err := h.service.Reset(c.Request.Context(), middleware.GetPrincipal(c), userID)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(view))
}
