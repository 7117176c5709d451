package appointment

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/appointment"
	"github.com/jwalitptl/clinic-api/internal/service/availability"
	"github.com/jwalitptl/clinic-api/pkg/validator"
)

type Handler struct {
	service *appointment.Service
	engine  *availability.Engine
}

func NewHandler(service *appointment.Service, engine *availability.Engine) *Handler {
	return &Handler{service: service, engine: engine}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.GET("/available-slots", h.AvailableSlots)
		appointments.GET("/conflicts", h.CheckConflicts)
		appointments.POST("", h.CreateAppointment)
		appointments.POST("/without-conflict-check", h.CreateAppointmentAllowingConflicts)
		appointments.GET("", h.ListAppointments)
		appointments.GET("/:id", h.GetAppointment)
		appointments.PUT("/:id", h.UpdateAppointment)
		appointments.PATCH("/:id/status", h.UpdateAppointmentStatus)
		appointments.DELETE("/:id", h.DeleteAppointment)
	}
}

type slotsQuery struct {
	Date      string `form:"date" binding:"required,civildate"`
	ServiceID string `form:"service_id" binding:"omitempty,uuid"`
}

func (h *Handler) AvailableSlots(c *gin.Context) {
	var q slotsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		handler.BadRequest(c, validator.Describe(err))
		return
	}
	serviceID, err := handler.OptionalUUIDQuery(c, "service_id")
	if err != nil {
		handler.BadRequest(c, err.Error())
		return
	}

	slots, err := h.engine.ComputeAvailableSlots(c.Request.Context(), handler.ClinicID(c), q.Date, serviceID)
	if err != nil {
		// Store failures arrive as *availability.Error and map to 500.
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, slots)
}

type conflictsQuery struct {
	StartTime time.Time `form:"start_time" binding:"required"`
	EndTime   time.Time `form:"end_time" binding:"required"`
	ExcludeID string    `form:"exclude_id" binding:"omitempty,uuid"`
}

func (h *Handler) CheckConflicts(c *gin.Context) {
	var q conflictsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		handler.BadRequest(c, validator.Describe(err))
		return
	}
	excludeID, err := handler.OptionalUUIDQuery(c, "exclude_id")
	if err != nil {
		handler.BadRequest(c, err.Error())
		return
	}

	conflicts, err := h.service.Conflicts(c.Request.Context(), handler.ClinicID(c), q.StartTime, q.EndTime, excludeID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	if conflicts == nil {
		conflicts = []*model.Appointment{}
	}
	handler.OK(c, gin.H{
		"has_conflicts": len(conflicts) > 0,
		"conflicts":     conflicts,
	})
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	var req model.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BadRequest(c, validator.Describe(err))
		return
	}

	apt, err := h.service.Create(c.Request.Context(), handler.ClinicID(c), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Created(c, apt)
}

func (h *Handler) CreateAppointmentAllowingConflicts(c *gin.Context) {
	var req model.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BadRequest(c, validator.Describe(err))
		return
	}

	apt, hasConflicts, err := h.service.CreateAllowingConflicts(c.Request.Context(), handler.ClinicID(c), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Created(c, gin.H{
		"appointment":   apt,
		"has_conflicts": hasConflicts,
	})
}

func (h *Handler) ListAppointments(c *gin.Context) {
	filters := &model.AppointmentFilters{
		ClinicID:   handler.ClinicID(c),
		Status:     model.AppointmentStatus(c.Query("status")),
		PatientCPF: c.Query("patient_cpf"),
	}

	serviceID, err := handler.OptionalUUIDQuery(c, "service_id")
	if err != nil {
		handler.BadRequest(c, err.Error())
		return
	}
	filters.ServiceID = serviceID

	filters.DateRange, err = handler.DateRangeQuery(c, h.engine.Location())
	if err != nil {
		handler.BadRequest(c, err.Error())
		return
	}

	appointments, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, appointments)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	apt, err := h.service.Get(c.Request.Context(), handler.ClinicID(c), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, apt)
}

func (h *Handler) UpdateAppointment(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BadRequest(c, validator.Describe(err))
		return
	}

	apt, info, err := h.service.Update(c.Request.Context(), handler.ClinicID(c), id, &req)
	if err != nil {
		if info != nil {
			handler.RespondErrorWithData(c, err, appointment.StatusChange{Appointment: apt, TransactionInfo: *info})
			return
		}
		handler.RespondError(c, err)
		return
	}
	if info != nil {
		handler.OK(c, appointment.StatusChange{Appointment: apt, TransactionInfo: *info})
		return
	}
	handler.OK(c, apt)
}

func (h *Handler) UpdateAppointmentStatus(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateAppointmentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BadRequest(c, validator.Describe(err))
		return
	}

	change, err := h.service.SetStatus(c.Request.Context(), handler.ClinicID(c), id, req.Status)
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

func (h *Handler) DeleteAppointment(c *gin.Context) {
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
