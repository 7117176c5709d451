package schedule

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/schedule"
	"github.com/jwalitptl/clinic-api/pkg/validator"
)

type Handler struct {
	service *schedule.Service
}

func NewHandler(service *schedule.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	schedules := r.Group("/schedules")
	{
		schedules.GET("", h.GetWeek)
		schedules.PUT("", h.UpsertWeek)
		schedules.GET("/:weekday", h.GetDay)
		schedules.PATCH("/:weekday", h.UpdateDay)
		schedules.DELETE("/:weekday", h.DeleteDay)
	}
}

type weekdayURI struct {
	Weekday string `uri:"weekday" binding:"required,weekday"`
}

func weekdayParam(c *gin.Context) (model.Weekday, bool) {
	var uri weekdayURI
	if err := c.ShouldBindUri(&uri); err != nil {
		handler.BadRequest(c, validator.Describe(err))
		return 0, false
	}
	w, err := model.ParseWeekday(uri.Weekday)
	if err != nil {
		handler.BadRequest(c, err.Error())
		return 0, false
	}
	return w, true
}

type upsertWeekRequest struct {
	Days []model.ScheduleDayInput `json:"days" binding:"required,min=1,max=7,dive"`
}

func (h *Handler) GetWeek(c *gin.Context) {
	days, err := h.service.GetWeek(c.Request.Context(), handler.ClinicID(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, days)
}

func (h *Handler) UpsertWeek(c *gin.Context) {
	var req upsertWeekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BadRequest(c, validator.Describe(err))
		return
	}

	days, err := h.service.UpsertWeek(c.Request.Context(), handler.ClinicID(c), req.Days)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, days)
}

func (h *Handler) GetDay(c *gin.Context) {
	weekday, ok := weekdayParam(c)
	if !ok {
		return
	}
	day, err := h.service.GetDay(c.Request.Context(), handler.ClinicID(c), weekday)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, day)
}

func (h *Handler) UpdateDay(c *gin.Context) {
	weekday, ok := weekdayParam(c)
	if !ok {
		return
	}
	var req model.UpdateScheduleDayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BadRequest(c, validator.Describe(err))
		return
	}

	day, err := h.service.UpdateDay(c.Request.Context(), handler.ClinicID(c), weekday, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, day)
}

func (h *Handler) DeleteDay(c *gin.Context) {
	weekday, ok := weekdayParam(c)
	if !ok {
		return
	}
	if err := h.service.DeleteDay(c.Request.Context(), handler.ClinicID(c), weekday); err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, gin.H{"weekday": weekday})
}
