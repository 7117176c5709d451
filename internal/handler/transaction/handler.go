package transaction

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/ledger"
	"github.com/jwalitptl/clinic-api/pkg/validator"
)

const defaultHistoryMonths = 6

type Handler struct {
	service *ledger.Service
}

func NewHandler(service *ledger.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	txs := r.Group("/transactions")
	{
		txs.POST("", h.CreateTransaction)
		txs.GET("", h.ListTransactions)
		txs.GET("/summary", h.Summary)
		txs.GET("/history", h.History)
		txs.GET("/:id", h.GetTransaction)
		txs.PUT("/:id", h.UpdateTransaction)
		txs.DELETE("/:id", h.DeleteTransaction)
	}
}

func (h *Handler) CreateTransaction(c *gin.Context) {
	var req model.CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BadRequest(c, validator.Describe(err))
		return
	}
	tx, err := h.service.Create(c.Request.Context(), handler.ClinicID(c), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Created(c, tx)
}

func (h *Handler) ListTransactions(c *gin.Context) {
	filters := &model.TransactionFilters{
		ClinicID: handler.ClinicID(c),
		Type:     model.TransactionType(c.Query("type")),
		Origin:   model.TransactionOrigin(c.Query("origin")),
		Query:    c.Query("q"),
	}
	var err error
	filters.DateRange, err = handler.DateRangeQuery(c, nil)
	if err != nil {
		handler.BadRequest(c, err.Error())
		return
	}

	txs, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, txs)
}

func (h *Handler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context(), handler.ClinicID(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, summary)
}

func (h *Handler) History(c *gin.Context) {
	months := defaultHistoryMonths
	if v := c.Query("months"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			handler.BadRequest(c, "months must be a number")
			return
		}
		months = n
	}
	history, err := h.service.History(c.Request.Context(), handler.ClinicID(c), months)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, history)
}

func (h *Handler) GetTransaction(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	tx, err := h.service.Get(c.Request.Context(), handler.ClinicID(c), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, tx)
}

func (h *Handler) UpdateTransaction(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BadRequest(c, validator.Describe(err))
		return
	}
	tx, err := h.service.Update(c.Request.Context(), handler.ClinicID(c), id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, tx)
}

func (h *Handler) DeleteTransaction(c *gin.Context) {
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
