package core

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance. Custom tags:
//
//	autonomy      an AutonomyLevel tier
//	session_type  a known SessionType
//	role          a known Role
var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("autonomy", func(fl validator.FieldLevel) bool {
		return AutonomyLevel(fl.Field().String()).Valid()
	})
	_ = validate.RegisterValidation("session_type", func(fl validator.FieldLevel) bool {
		return SessionType(fl.Field().String()).Valid()
	})
	_ = validate.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return Role(fl.Field().String()).Valid()
	})
}

// ValidateStruct checks v against its `validate` struct tags.
func ValidateStruct(v any) error {
	return validate.Struct(v)
}

// Validate checks the message and its pre-scored signals. Errors wrap
// ErrInvalidMessage.
func (m IngestedMessage) Validate() error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	return nil
}

// Validate checks the profile's thresholds and traits.
func (p AgentBehaviorProfile) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return nil
}
