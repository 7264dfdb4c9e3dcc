package adapter

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	playground "github.com/go-playground/validator/v10"

	"contractapi/internal/apierror"
)

// validator applies struct-tag constraints to decoded models, naming
// fields by their json tag so violations match the wire names.
type validator struct {
	v *playground.Validate
}

func newValidator() *validator {
	v := playground.New(playground.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &validator{v: v}
}

func (v *validator) check(ptr any) error {
	rv := reflect.Indirect(reflect.ValueOf(ptr))
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct || rv.NumField() == 0 {
		return nil
	}

	err := v.v.Struct(rv.Interface())
	if err == nil {
		return nil
	}
	var fes playground.ValidationErrors
	if !errors.As(err, &fes) {
		return apierror.Unhandled(fmt.Errorf("validate: %w", err))
	}
	vs := make([]apierror.Violation, 0, len(fes))
	for _, fe := range fes {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		msg := fmt.Sprintf("failed on the %q constraint", fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("failed on the %q constraint (%s)", fe.Tag(), fe.Param())
		}
		vs = append(vs, apierror.Violation{Field: field, Constraint: fe.Tag(), Message: msg})
	}
	return apierror.ValidationOf(vs)
}
