package patient

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/patient"
)

type Handler struct {
	service *patient.Service
	auth    *middleware.AuthMiddleware
}

func NewHandler(service *patient.Service, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{service: service, auth: auth}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.POST("", h.auth.RequireCapability(model.CanCreatePatients), h.CreatePatient)
		patients.GET("", h.auth.RequireCapability(model.CanViewPatients), h.ListPatients)
		patients.GET("/:id", h.auth.RequireCapability(model.CanViewPatients), h.GetPatient)
		patients.PUT("/:id", h.auth.RequireCapability(model.CanEditPatients), h.UpdatePatient)
		patients.DELETE("/:id", h.auth.RequireCapability(model.CanDeletePatients), h.DeletePatient)
	}
}

func (h *Handler) CreatePatient(c *gin.Context) {
	var req model.CreatePatientRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	p := middleware.GetPrincipal(c)
	created, err := h.service.CreatePatient(c.Request.Context(), p.Clinic(), p.UserID, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(created))
}

func (h *Handler) ListPatients(c *gin.Context) {
	var filter model.PatientFilter
	if !handler.BindQuery(c, &filter) {
		return
	}
	patients, err := h.service.ListPatients(c.Request.Context(), middleware.GetPrincipal(c).Clinic(), filter)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(patients))
}

func (h *Handler) GetPatient(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	found, err := h.service.GetPatient(c.Request.Context(), middleware.GetPrincipal(c).Clinic(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(found))
}

func (h *Handler) UpdatePatient(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.UpdatePatientRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	updated, err := h.service.UpdatePatient(c.Request.Context(), middleware.GetPrincipal(c).Clinic(), id, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(updated))
}

func (h *Handler) DeletePatient(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeletePatient(c.Request.Context(), middleware.GetPrincipal(c).Clinic(), id); err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"id": id}))
}
