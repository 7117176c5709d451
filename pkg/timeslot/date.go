package timeslot

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Date is a calendar date without a time of day. It is held as midnight UTC
// so that values compare by their Y/M/D alone.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseCivilDate accepts YYYY-MM-DD or an RFC 3339 timestamp.
func ParseCivilDate(s string) (Date, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return DateOf(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// AddMonths moves by whole months, normalizing the day like time.AddDate.
func (d Date) AddMonths(n int) Date {
	return Date{d.Time.AddDate(0, n, 0)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseCivilDate(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Value stores the date as a Postgres DATE literal.
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan reads a Postgres DATE column.
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		*d = DateOf(v)
		return nil
	case []byte:
		return d.scanString(string(v))
	case string:
		return d.scanString(v)
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

func (d *Date) scanString(s string) error {
	v, err := ParseCivilDate(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}
