package visit

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/visit"
)

type Handler struct {
	service *visit.Service
	auth    *middleware.AuthMiddleware
}

func NewHandler(service *visit.Service, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{service: service, auth: auth}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	visits := r.Group("/visits")
	{
		visits.POST("", h.auth.RequireCapability(model.CanCreateVisits), h.CreateVisit)
		visits.GET("/:id", h.auth.RequireCapability(model.CanViewVisits), h.GetVisit)
		visits.PUT("/:id", h.auth.RequireCapability(model.CanEditVisits), h.UpdateVisit)
	}
	r.GET("/patients/:id/visits", h.auth.RequireCapability(model.CanViewVisits), h.ListPatientVisits)
}

func (h *Handler) CreateVisit(c *gin.Context) {
	var req model.CreateVisitRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	created, err := h.service.CreateVisit(c.Request.Context(), middleware.GetPrincipal(c), &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(created))
}

func (h *Handler) GetVisit(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	found, err := h.service.GetVisit(c.Request.Context(), middleware.GetPrincipal(c).Clinic(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(found))
}

func (h *Handler) UpdateVisit(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateVisitRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	updated, err := h.service.UpdateVisit(c.Request.Context(), middleware.GetPrincipal(c).Clinic(), id, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(updated))
}

func (h *Handler) ListPatientVisits(c *gin.Context) {
	patientID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	visits, err := h.service.ListPatientVisits(c.Request.Context(), middleware.GetPrincipal(c).Clinic(), patientID)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(visits))
}
