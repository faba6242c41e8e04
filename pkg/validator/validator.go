// Package validator registers the custom binding tags used by request DTOs
// and turns validation failures into field-level messages.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/clinic-api/internal/model"
)

// FieldError is one failed rule, keyed by the JSON field name.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var messages = map[string]string{
	"required": "is required",
	"email":    "must be a valid email",
	"uuid":     "must be a UUID",
	"isodate":  "must be a date in YYYY-MM-DD format",
	"roomtype": "must be one of general, surgery, xray, orthodontic",
	"doctag":   "must be one of xray, prescription, invoice, other",
	"apstate":  "must be one of requested, confirmed, completed, cancelled",
}

// Register adds the custom tags to v and makes errors report JSON field
// names instead of Go field names.
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	custom := map[string]validator.Func{
		"isodate": func(fl validator.FieldLevel) bool {
			_, err := time.Parse(model.DateLayout, fl.Field().String())
			return err == nil
		},
		"roomtype": func(fl validator.FieldLevel) bool {
			return model.RoomType(fl.Field().String()).Valid()
		},
		"doctag": func(fl validator.FieldLevel) bool {
			return model.DocumentTag(fl.Field().String()).Valid()
		},
		"apstate": func(fl validator.FieldLevel) bool {
			return model.AppointmentState(fl.Field().String()).Valid()
		},
	}
	for tag, fn := range custom {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s validator: %w", tag, err)
		}
	}
	return nil
}

// Describe flattens err into field messages. It returns nil when err does
// not carry validator.ValidationErrors.
func Describe(err error) []FieldError {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return nil
	}

	out := make([]FieldError, 0, len(errs))
	for _, e := range errs {
		msg, ok := messages[e.Tag()]
		switch {
		case ok:
		case e.Tag() == "min":
			msg = "must be at least " + e.Param()
		case e.Tag() == "max":
			msg = "must be at most " + e.Param()
		default:
			msg = "failed " + e.Tag() + " validation"
		}
		out = append(out, FieldError{Field: e.Field(), Message: msg})
	}
	return out
}
