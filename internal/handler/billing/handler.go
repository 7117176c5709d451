package billing

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/billing"
	"github.com/jwalitptl/clinic-api/pkg/validator"
)

// Handler serves one kind of bill under its own base path.
type Handler struct {
	service  *billing.Service
	basePath string
}

func NewHandler(service *billing.Service) *Handler {
	basePath := "/accounts-receivable"
	if service.Kind() == model.BillKindPayable {
		basePath = "/accounts-payable"
	}
	return &Handler{service: service, basePath: basePath}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	bills := r.Group(h.basePath)
	{
		bills.POST("", h.CreateBill)
		bills.GET("", h.ListBills)
		bills.GET("/statistics", h.Statistics)
		bills.GET("/:id", h.GetBill)
		bills.PUT("/:id", h.UpdateBill)
		bills.PATCH("/:id/status", h.UpdateBillStatus)
		bills.DELETE("/:id", h.DeleteBill)
	}
}

func (h *Handler) CreateBill(c *gin.Context) {
	var req model.CreateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BadRequest(c, validator.Describe(err))
		return
	}
	change, err := h.service.Create(c.Request.Context(), handler.ClinicID(c), &req)
	if err != nil {
		if change != nil {
			handler.RespondErrorWithData(c, err, change)
			return
		}
		handler.RespondError(c, err)
		return
	}
	handler.Created(c, change)
}

func amountQuery(c *gin.Context, key string) (*decimal.Decimal, bool) {
	v := c.Query(key)
	if v == "" {
		return nil, true
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		handler.BadRequest(c, key+" must be a number")
		return nil, false
	}
	return &d, true
}

func (h *Handler) ListBills(c *gin.Context) {
	filters := &model.BillFilters{
		ClinicID: handler.ClinicID(c),
		Status:   model.BillStatus(c.Query("status")),
		Category: c.Query("category"),
		Name:     c.Query("name"),
	}
	var ok bool
	if filters.MinAmount, ok = amountQuery(c, "min_amount"); !ok {
		return
	}
	if filters.MaxAmount, ok = amountQuery(c, "max_amount"); !ok {
		return
	}
	var err error
	filters.DateRange, err = handler.DateRangeQuery(c, nil)
	if err != nil {
		handler.BadRequest(c, err.Error())
		return
	}

	bills, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, bills)
}

func (h *Handler) Statistics(c *gin.Context) {
	stats, err := h.service.Statistics(c.Request.Context(), handler.ClinicID(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, stats)
}

func (h *Handler) GetBill(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	bill, err := h.service.Get(c.Request.Context(), handler.ClinicID(c), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, bill)
}

func (h *Handler) UpdateBill(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BadRequest(c, validator.Describe(err))
		return
	}
	change, err := h.service.Update(c.Request.Context(), handler.ClinicID(c), id, &req)
	if err != nil {
		if change != nil {
			handler.RespondErrorWithData(c, err, change)
			return
		}
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, change)
}

func (h *Handler) UpdateBillStatus(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateBillStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BadRequest(c, validator.Describe(err))
		return
	}
	change, err := h.service.SetStatus(c.Request.Context(), handler.ClinicID(c), id, &req)
	if err != nil {
		if change != nil {
			handler.RespondErrorWithData(c, err, change)
			return
		}
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, change)
}

func (h *Handler) DeleteBill(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), handler.ClinicID(c), id); err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, gin.H{"id": id})
}
