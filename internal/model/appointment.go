package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/clinic-api/pkg/timeslot"
)

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCanceled  AppointmentStatus = "canceled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
)

// Valid reports whether s is one of the four known statuses.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusPending, AppointmentStatusConfirmed,
		AppointmentStatusCanceled, AppointmentStatusCompleted:
		return true
	}
	return false
}

// IsRealized reports whether the visit financially happened.
func (s AppointmentStatus) IsRealized() bool {
	return s == AppointmentStatusCompleted
}

// OccupiesTime reports whether an appointment in this status blocks its slot.
func (s AppointmentStatus) OccupiesTime() bool {
	return s != AppointmentStatusCanceled
}

type Appointment struct {
	Base
	ClinicID     uuid.UUID         `db:"clinic_id" json:"clinic_id"`
	ServiceID    uuid.UUID         `db:"service_id" json:"service_id"`
	PatientCPF   string            `db:"patient_cpf" json:"patient_cpf"`
	PatientName  string            `db:"patient_name" json:"patient_name"`
	PatientPhone *string           `db:"patient_phone" json:"patient_phone,omitempty"`
	StartTime    time.Time         `db:"start_time" json:"start_time"`
	EndTime      time.Time         `db:"end_time" json:"end_time"`
	Status       AppointmentStatus `db:"status" json:"status"`

	Service *ServiceSummary `db:"-" json:"service,omitempty"`
}

// Interval returns the appointment's half-open time range.
func (a *Appointment) Interval() timeslot.Interval {
	return timeslot.Interval{Start: a.StartTime, End: a.EndTime}
}

// ServiceSummary is the part of a Service embedded in appointment reads.
type ServiceSummary struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	DurationMinutes int             `json:"duration_minutes"`
	Price           decimal.Decimal `json:"price"`
}

type CreateAppointmentRequest struct {
	ServiceID    uuid.UUID `json:"service_id" binding:"required"`
	PatientCPF   string    `json:"patient_cpf" binding:"required,max=14"`
	PatientName  string    `json:"patient_name" binding:"required,max=200"`
	PatientPhone *string   `json:"patient_phone" binding:"omitempty,max=30"`
	StartTime    time.Time `json:"start_time" binding:"required"`
	EndTime      time.Time `json:"end_time" binding:"required,gtfield=StartTime"`
}

type UpdateAppointmentRequest struct {
	ServiceID    *uuid.UUID         `json:"service_id"`
	PatientCPF   *string            `json:"patient_cpf" binding:"omitempty,max=14"`
	PatientName  *string            `json:"patient_name" binding:"omitempty,max=200"`
	PatientPhone *string            `json:"patient_phone" binding:"omitempty,max=30"`
	StartTime    *time.Time         `json:"start_time"`
	EndTime      *time.Time         `json:"end_time"`
	Status       *AppointmentStatus `json:"status"`
}

type UpdateAppointmentStatusRequest struct {
	Status AppointmentStatus `json:"status" binding:"required"`
}

// TimeSlot is a bookable window returned by the availability engine.
type TimeSlot = timeslot.Interval

type AppointmentFilters struct {
	ClinicID   uuid.UUID
	ServiceID  *uuid.UUID
	Status     AppointmentStatus
	PatientCPF string
	DateRange
}
