// Package validator registers the domain binding rules with gin's
// validator/v10 engine.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/clinic-api/internal/model"
)

// Register installs the custom rules on gin's default validator and
// reports field names by their json tag.
func Register() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}
	return RegisterOn(v)
}

func RegisterOn(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("capability", validateCapability); err != nil {
		return fmt.Errorf("failed to register capability rule: %w", err)
	}
	if err := v.RegisterValidation("appointment_status", validateAppointmentStatus); err != nil {
		return fmt.Errorf("failed to register appointment_status rule: %w", err)
	}
	return nil
}

func validateCapability(fl validator.FieldLevel) bool {
	return model.Capability(fl.Field().String()).Valid()
}

func validateAppointmentStatus(fl validator.FieldLevel) bool {
	return model.AppointmentStatus(fl.Field().String()).Valid()
}

// Describe flattens validation errors into one readable message.
func Describe(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "capability":
			msgs = append(msgs, fmt.Sprintf("unknown capability %q", fe.Value()))
		case "appointment_status":
			msgs = append(msgs, fmt.Sprintf("unknown status %q", fe.Value()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
