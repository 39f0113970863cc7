package clinic

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/clinic"
)

// Handler serves the member view of a clinic and the admin management
// routes.
type Handler struct {
	service *clinic.Service
	auth    *middleware.AuthMiddleware
}

func NewHandler(service *clinic.Service, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{service: service, auth: auth}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/clinic", h.auth.RequireMember(), h.GetClinic)

	admin := r.Group("/admin/clinics", h.auth.RequireAdmin())
	{
		admin.POST("", h.CreateClinic)
		admin.GET("", h.ListClinics)
		admin.POST("/:id/doctors", h.AddDoctor)
		admin.PUT("/:id/owner", h.AssignOwner)
	}
}

func (h *Handler) GetClinic(c *gin.Context) {
	view, err := h.service.GetClinic(c.Request.Context(), middleware.GetPrincipal(c))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(view))
}

func (h *Handler) CreateClinic(c *gin.Context) {
	var req model.CreateClinicRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	created, err := h.service.CreateClinic(c.Request.Context(), middleware.GetPrincipal(c), &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(created))
}

func (h *Handler) ListClinics(c *gin.Context) {
	clinics, err := h.service.ListClinics(c.Request.Context(), middleware.GetPrincipal(c))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(clinics))
}

func (h *Handler) AddDoctor(c *gin.Context) {
	clinicID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.AddDoctorRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	account, err := h.service.AddDoctor(c.Request.Context(), middleware.GetPrincipal(c), clinicID, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(account))
}

func (h *Handler) AssignOwner(c *gin.Context) {
	clinicID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.AssignOwnerRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	updated, err := h.service.AssignOwner(c.Request.Context(), middleware.GetPrincipal(c), clinicID, req.DoctorID)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(updated))
}
