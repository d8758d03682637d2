package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// validatorInstance is shared so struct metadata is cached once.
var validatorInstance = validator.New(validator.WithRequiredStructEnabled())

func init() {
	_ = validatorInstance.RegisterValidation("notblank", validators.NotBlank)
}

// Validate checks v against its `validate` struct tags. Failures are wrapped in
// kind and list every offending field.
func Validate(kind error, v any) error {
	err := validatorInstance.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", kind, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fe.Namespace() + " failed " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("%w: %s", kind, strings.Join(msgs, "; "))
}
