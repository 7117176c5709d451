package catalog

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/catalog"
	"github.com/jwalitptl/clinic-api/pkg/validator"
)

type Handler struct {
	service *catalog.Service
}

func NewHandler(service *catalog.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	services := r.Group("/services")
	{
		services.GET("", h.ListServices)
		services.POST("", h.CreateService)
		services.GET("/:id", h.GetService)
	}
}

func (h *Handler) CreateService(c *gin.Context) {
	var req model.CreateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BadRequest(c, validator.Describe(err))
		return
	}
	svc, err := h.service.Create(c.Request.Context(), handler.ClinicID(c), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Created(c, svc)
}

func (h *Handler) ListServices(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	services, err := h.service.List(c.Request.Context(), handler.ClinicID(c), activeOnly)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, services)
}

func (h *Handler) GetService(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	svc, err := h.service.Get(c.Request.Context(), handler.ClinicID(c), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, svc)
}
