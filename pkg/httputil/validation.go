package httputil

import (
	"context"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/genelab/lab-portal/pkg/errors"
	"github.com/genelab/lab-portal/pkg/i18n"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report json names so details line up with the form fields in the UI
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate validates a struct using go-playground/validator.
// Field messages use the default locale.
func Validate(v interface{}) error {
	return ValidateCtx(context.Background(), v)
}

// ValidateCtx validates a struct and localizes field messages for the request locale
func ValidateCtx(ctx context.Context, v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.BadRequest(err.Error())
	}

	localizer := i18n.LocalizerFromContext(ctx)
	details := make(map[string]string)
	for _, e := range validationErrors {
		details[e.Field()] = formatValidationError(localizer, e)
	}

	return errors.Validation(details)
}

func formatValidationError(l *i18n.Localizer, e validator.FieldError) string {
	params := map[string]string{"param": e.Param()}

	switch e.Tag() {
	case "required", "email", "min", "max", "uuid", "oneof",
		"full_name", "citizen_id", "phone", "past_date":
		return l.T("validation."+e.Tag(), params)
	default:
		return l.T("validation.invalid")
	}
}

// RegisterCustomValidation registers a custom validation function
func RegisterCustomValidation(tag string, fn validator.Func) error {
	return validate.RegisterValidation(tag, fn)
}
