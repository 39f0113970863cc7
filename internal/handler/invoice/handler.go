package invoice

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/billing"
)

type Handler struct {
	service *billing.Service
	auth    *middleware.AuthMiddleware
}

func NewHandler(service *billing.Service, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{service: service, auth: auth}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	invoices := r.Group("/invoices")
	{
		invoices.POST("", h.auth.RequireCapability(model.CanCreateInvoices), h.CreateInvoice)
		invoices.GET("", h.auth.RequireCapability(model.CanViewInvoices), h.ListInvoices)
		invoices.GET("/:id", h.auth.RequireCapability(model.CanViewInvoices), h.GetInvoice)
		invoices.PUT("/:id", h.auth.RequireCapability(model.CanEditInvoices), h.UpdateInvoice)
	}
}

func (h *Handler) CreateInvoice(c *gin.Context) {
	var req model.CreateInvoiceRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	p := middleware.GetPrincipal(c)
	created, err := h.service.CreateInvoice(c.Request.Context(), p.Clinic(), p.UserID, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(created))
}

func (h *Handler) ListInvoices(c *gin.Context) {
	var filter model.InvoiceFilter
	if !handler.BindQuery(c, &filter) {
		return
	}
	invoices, err := h.service.ListInvoices(c.Request.Context(), middleware.GetPrincipal(c).Clinic(), filter)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(invoices))
}

func (h *Handler) GetInvoice(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	found, err := h.service.GetInvoice(c.Request.Context(), middleware.GetPrincipal(c).Clinic(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(found))
}

func (h *Handler) UpdateInvoice(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateInvoiceRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	updated, err := h.service.UpdatePayment(c.Request.Context(), middleware.GetPrincipal(c).Clinic(), id, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(updated))
}
