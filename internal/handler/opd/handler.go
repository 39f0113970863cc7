package opd

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/queue"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type Handler struct {
	service *queue.Service
	auth    *middleware.AuthMiddleware
}

func NewHandler(service *queue.Service, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{service: service, auth: auth}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	opd := r.Group("/opd")
	{
		view := h.auth.RequireCapability(model.CanViewOPD)
		manage := h.auth.RequireCapability(model.CanManageOPD)

		opd.GET("/queue", view, h.GetQueue)
		opd.GET("/stats", view, h.GetStats)
		opd.POST("/appointments", manage, h.AddToQueue)
		opd.PUT("/appointments/:id/status", manage, h.UpdateStatus)
		opd.PUT("/appointments/:id/position", manage, h.UpdatePosition)
		opd.DELETE("/appointments/:id", manage, h.RemoveFromQueue)
	}
}

// date reads ?date=YYYY-MM-DD, defaulting to today.
func (h *Handler) date(c *gin.Context) (time.Time, bool) {
	raw := c.Query("date")
	if raw == "" {
		return h.service.Today(), true
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		handler.Fail(c, apperrors.BadRequest("date must be YYYY-MM-DD", err))
		return time.Time{}, false
	}
	return d, true
}

func (h *Handler) GetQueue(c *gin.Context) {
	date, ok := h.date(c)
	if !ok {
		return
	}
	entries, err := h.service.GetQueue(c.Request.Context(), middleware.GetPrincipal(c).Clinic(), date)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(entries))
}

func (h *Handler) GetStats(c *gin.Context) {
	date, ok := h.date(c)
	if !ok {
		return
	}
	stats, err := h.service.DailyStats(c.Request.Context(), middleware.GetPrincipal(c).Clinic(), date)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	if !h.auth.Allowed(c, model.CanViewCollections) {
		stats.Revenue = nil
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(stats))
}

func (h *Handler) AddToQueue(c *gin.Context) {
	var req model.AddToQueueRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	p := middleware.GetPrincipal(c)
	appointment, err := h.service.AddToQueue(c.Request.Context(), p.Clinic(), p.UserID, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(appointment))
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateStatusRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	appointment, err := h.service.TransitionStatus(c.Request.Context(), middleware.GetPrincipal(c).Clinic(), id, req.Status)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(appointment))
}

func (h *Handler) UpdatePosition(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.UpdatePositionRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	appointment, err := h.service.Reposition(c.Request.Context(), middleware.GetPrincipal(c).Clinic(), id, *req.NewPosition)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(appointment))
}

func (h *Handler) RemoveFromQueue(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Remove(c.Request.Context(), middleware.GetPrincipal(c).Clinic(), id); err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"id": id}))
}
