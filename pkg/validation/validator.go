package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"tattoo-app/pkg/apperr"
)

var (
	validate *validator.Validate
	once     sync.Once
)

func GetValidator() *validator.Validate {
	once.Do(initValidator)
	return validate
}

func initValidator() {
	validate = validator.New()
	// сообщения должны ссылаться на поля JSON, а не Go
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
}

// Struct validates v and returns an InvalidInput error listing every
// failed field.
func Struct(v any) error {
	err := GetValidator().Struct(v)
	if err == nil {
		return nil
	}
	return apperr.New(apperr.ErrInvalidInput, "%s", strings.Join(ParseErrors(err), "; "))
}

func ParseErrors(err error) []string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []string{"Unknown error"}
	}

	errs := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		errs = append(errs, prettyError(e))
	}
	return errs
}

func prettyError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " field is required"
	case "email":
		return e.Field() + " must be a valid email"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", e.Field(), strings.ReplaceAll(e.Param(), " ", ", "))
	case "min":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("%s length must be greater than or equal to %s", e.Field(), e.Param())
		}
		return fmt.Sprintf("%s must be greater than or equal to %s", e.Field(), e.Param())
	case "max":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("%s length must be less than or equal to %s", e.Field(), e.Param())
		}
		return fmt.Sprintf("%s must be less than or equal to %s", e.Field(), e.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", e.Field(), e.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", e.Field(), e.Param())
	default:
		return e.Error()
	}
}
