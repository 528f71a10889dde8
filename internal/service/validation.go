package service

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/busca-ativa-api/internal/models"
	"github.com/noah-isme/busca-ativa-api/internal/process"
	appErrors "github.com/noah-isme/busca-ativa-api/pkg/errors"
)

// registerDomainValidations adds the action_type, severity and answer tags and
// makes field errors report JSON names.
func registerDomainValidations(v *validator.Validate) {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("action_type", func(fl validator.FieldLevel) bool {
		return models.AbsenceActionType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("severity", func(fl validator.FieldLevel) bool {
		return models.OccurrenceSeverity(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("answer", func(fl validator.FieldLevel) bool {
		_, err := models.ParseAnswer(fl.Field().String())
		return err == nil
	})
}

// validationError converts validator output into a VALIDATION_ERROR with a
// field -> rule map in the details.
func validationError(err error, message string) *appErrors.Error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
	}
	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		name := fe.Field()
		if name == "" {
			name = fe.Namespace()
		}
		fields[name] = fe.Tag()
	}
	wrapped := appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
	return appErrors.WithDetails(wrapped, map[string]interface{}{"fields": fields})
}

// missingFieldsError reports blank required fields by their JSON names.
func missingFieldsError(missing []process.Field) *appErrors.Error {
	names := make([]string, len(missing))
	for i, f := range missing {
		names[i] = string(f)
	}
	return appErrors.WithDetails(
		appErrors.Clone(appErrors.ErrValidation, "required fields missing: "+strings.Join(names, ", ")),
		map[string]interface{}{"missing_fields": names},
	)
}
