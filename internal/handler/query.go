package handler

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/pkg/timeslot"
)

// DateRangeQuery reads start_date and end_date (YYYY-MM-DD). With a location
// the range is converted to instants covering whole days there, end day
// included, as [start midnight, day after end midnight). Without one the
// dates are returned as UTC calendar dates for inclusive date columns.
func DateRangeQuery(c *gin.Context, loc *time.Location) (model.DateRange, error) {
	var r model.DateRange
	parse := func(key string) (*time.Time, error) {
		v := c.Query(key)
		if v == "" {
			return nil, nil
		}
		l := loc
		if l == nil {
			l = time.UTC
		}
		t, err := timeslot.ParseDate(v, l)
		if err != nil {
			return nil, fmt.Errorf("%s must be YYYY-MM-DD", key)
		}
		return &t, nil
	}

	start, err := parse("start_date")
	if err != nil {
		return r, err
	}
	end, err := parse("end_date")
	if err != nil {
		return r, err
	}
	if start != nil && end != nil && end.Before(*start) {
		return r, fmt.Errorf("end_date must not be before start_date")
	}
	if end != nil && loc != nil {
		_, next := timeslot.DayBounds(*end)
		end = &next
	}
	r.StartDate, r.EndDate = start, end
	return r, nil
}

// OptionalUUIDQuery parses an optional UUID query parameter.
func OptionalUUIDQuery(c *gin.Context, key string) (*uuid.UUID, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, fmt.Errorf("%s must be a UUID", key)
	}
	return &id, nil
}
