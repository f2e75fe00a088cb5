package authsvc

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mkrupp/localauth/internal/domain"
)

//nolint:gochecknoglobals
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}

		return name
	})

	return v
}

// validateNewUser returns one reason per missing or malformed field of data.
func validateNewUser(data domain.NewUser) []string {
	var reasons []string

	var fieldErrs validator.ValidationErrors
	if err := validate.Struct(data); errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			reasons = append(reasons, fe.Field()+" is required")
		}
	}

	if data.Role != "" && !data.Role.Valid() {
		names := make([]string, 0, len(domain.Roles))
		for _, role := range domain.Roles {
			names = append(names, string(role))
		}

		reasons = append(reasons, "role must be one of "+strings.Join(names, ", "))
	}

	return reasons
}
