// Package validator registers the API's custom binding tags with gin's
// validator and turns validation failures into readable messages.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/pkg/timeslot"
)

var messages = map[string]string{
	"required":  "is required",
	"uuid":      "must be a UUID",
	"civildate": "must be a date in YYYY-MM-DD format",
	"weekday":   "must be a weekday name (domingo..sabado) or a number 0-6",
	"hhmm":      "must be a time in HH:MM format",
	"oneof":     "must be one of: %s",
	"min":       "must be at least %s",
	"max":       "must be at most %s",
	"gtfield":   "must be after %s",
}

// Register installs the custom tags on gin's validator. It is safe to call
// more than once.
func Register() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin validator engine is not go-playground/validator")
	}
	return RegisterOn(v)
}

func RegisterOn(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form", "uri"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return fld.Name
	})

	custom := map[string]validator.Func{
		"civildate": func(fl validator.FieldLevel) bool {
			_, err := time.Parse(timeslot.DateLayout, fl.Field().String())
			return err == nil
		},
		"weekday": func(fl validator.FieldLevel) bool {
			_, err := model.ParseWeekday(fl.Field().String())
			return err == nil
		},
		"hhmm": func(fl validator.FieldLevel) bool {
			_, err := timeslot.ParseTimeOfDay(fl.Field().String())
			return err == nil
		},
	}
	for tag, fn := range custom {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s validator: %w", tag, err)
		}
	}
	return nil
}

// Describe renders a binding error for the response body. Validation
// failures list each field; anything else (bad JSON) is returned as is.
func Describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := messages[fe.Tag()]
		if !ok {
			msg = "is invalid (" + fe.Tag() + ")"
		} else if strings.Contains(msg, "%s") {
			msg = fmt.Sprintf(msg, fe.Param())
		}
		parts = append(parts, fe.Field()+" "+msg)
	}
	return strings.Join(parts, "; ")
}
