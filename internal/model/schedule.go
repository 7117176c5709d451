package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/pkg/timeslot"
)

// DefaultSlotIntervalMinutes is used when a schedule day has no interval set.
const DefaultSlotIntervalMinutes = 30

// weekdayNames are the stored day keys, indexed by time.Weekday.
var weekdayNames = [7]string{"domingo", "segunda", "terca", "quarta", "quinta", "sexta", "sabado"}

// Weekday is a day of the week, stored and serialized by its day name.
type Weekday time.Weekday

// ParseWeekday accepts a day name ("segunda") or a number 0-6 (0 = Sunday).
func ParseWeekday(s string) (Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > 6 {
			return 0, fmt.Errorf("invalid weekday %q", s)
		}
		return Weekday(n), nil
	}
	for i, name := range weekdayNames {
		if name == s {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("invalid weekday %q", s)
}

func (w Weekday) String() string {
	if w < 0 || int(w) >= len(weekdayNames) {
		return fmt.Sprintf("Weekday(%d)", int(w))
	}
	return weekdayNames[w]
}

func (w Weekday) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.String())
}

func (w *Weekday) UnmarshalJSON(b []byte) error {
	var raw interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case float64:
		s = strconv.Itoa(int(v))
	default:
		return fmt.Errorf("invalid weekday %s", string(b))
	}
	parsed, err := ParseWeekday(s)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

func (w Weekday) Value() (driver.Value, error) {
	return w.String(), nil
}

func (w *Weekday) Scan(src interface{}) error {
	var s string
	switch v := src.(type) {
	case []byte:
		s = string(v)
	case string:
		s = v
	default:
		return fmt.Errorf("cannot scan %T into Weekday", src)
	}
	parsed, err := ParseWeekday(s)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// ScheduleDay is one weekday of a clinic's recurring availability template.
type ScheduleDay struct {
	Base
	ClinicID            uuid.UUID           `db:"clinic_id" json:"clinic_id"`
	Weekday             Weekday             `db:"weekday" json:"weekday"`
	IsActive            bool                `db:"is_active" json:"is_active"`
	WorkStart           timeslot.TimeOfDay  `db:"work_start" json:"work_start"`
	WorkEnd             timeslot.TimeOfDay  `db:"work_end" json:"work_end"`
	HasLunchBreak       bool                `db:"has_lunch_break" json:"has_lunch_break"`
	LunchStart          *timeslot.TimeOfDay `db:"lunch_start" json:"lunch_start,omitempty"`
	LunchEnd            *timeslot.TimeOfDay `db:"lunch_end" json:"lunch_end,omitempty"`
	SlotIntervalMinutes int                 `db:"slot_interval_minutes" json:"slot_interval_minutes"`
}

// LunchWindow returns the lunch break when it is enabled and well formed:
// start before end and inside the work window.
func (d *ScheduleDay) LunchWindow() (timeslot.TimeOfDay, timeslot.TimeOfDay, bool) {
	if !d.HasLunchBreak || d.LunchStart == nil || d.LunchEnd == nil {
		return 0, 0, false
	}
	ls, le := *d.LunchStart, *d.LunchEnd
	if ls >= le || ls < d.WorkStart || le > d.WorkEnd {
		return 0, 0, false
	}
	return ls, le, true
}

// Validate checks the invariants enforced on write.
func (d *ScheduleDay) Validate() error {
	if d.WorkStart >= d.WorkEnd {
		return fmt.Errorf("%s: work_start must be before work_end", d.Weekday)
	}
	if d.SlotIntervalMinutes < 0 {
		return fmt.Errorf("%s: slot_interval_minutes must be positive", d.Weekday)
	}
	if d.HasLunchBreak {
		if d.LunchStart == nil || d.LunchEnd == nil {
			return fmt.Errorf("%s: lunch_start and lunch_end are required when has_lunch_break is set", d.Weekday)
		}
		if _, _, ok := d.LunchWindow(); !ok {
			return fmt.Errorf("%s: lunch break must be a non-empty window inside working hours", d.Weekday)
		}
	}
	return nil
}

// ScheduleDayInput is one element of the week upsert body.
type ScheduleDayInput struct {
	Weekday             Weekday             `json:"weekday"`
	IsActive            bool                `json:"is_active"`
	WorkStart           timeslot.TimeOfDay  `json:"work_start"`
	WorkEnd             timeslot.TimeOfDay  `json:"work_end"`
	HasLunchBreak       bool                `json:"has_lunch_break"`
	LunchStart          *timeslot.TimeOfDay `json:"lunch_start"`
	LunchEnd            *timeslot.TimeOfDay `json:"lunch_end"`
	SlotIntervalMinutes int                 `json:"slot_interval_minutes" binding:"omitempty,min=5,max=240"`
}

// UpdateScheduleDayRequest patches a single day; nil fields are left alone.
type UpdateScheduleDayRequest struct {
	IsActive            *bool               `json:"is_active"`
	WorkStart           *timeslot.TimeOfDay `json:"work_start"`
	WorkEnd             *timeslot.TimeOfDay `json:"work_end"`
	HasLunchBreak       *bool               `json:"has_lunch_break"`
	LunchStart          *timeslot.TimeOfDay `json:"lunch_start"`
	LunchEnd            *timeslot.TimeOfDay `json:"lunch_end"`
	SlotIntervalMinutes *int                `json:"slot_interval_minutes" binding:"omitempty,min=5,max=240"`
}
