package validation

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// Validate is the global validator instance
	Validate *validator.Validate

	ticketPriorities = []string{"low", "medium", "high", "urgent"}
	ticketStatuses   = []string{"open", "in_progress", "resolved", "closed"}
	messageTypes     = []string{"text", "image", "system"}
)

func init() {
	Validate = validator.New()

	// Register custom validators
	_ = Validate.RegisterValidation("ticket_priority", validateTicketPriority)
	_ = Validate.RegisterValidation("ticket_status", validateTicketStatus)
	_ = Validate.RegisterValidation("message_type", validateMessageType)
	_ = Validate.RegisterValidation("notblank", validateNotBlank)
}

// ValidationError collects field errors keyed by field name
type ValidationError struct {
	Errors map[string]string
}

// NewValidationError converts validator field errors
func NewValidationError(errs validator.ValidationErrors) *ValidationError {
	v := &ValidationError{Errors: make(map[string]string, len(errs))}
	for _, fe := range errs {
		v.AddError(strings.ToLower(fe.Field()), describe(fe))
	}
	return v
}

// AddError records a message for field
func (v *ValidationError) AddError(field, message string) {
	if v.Errors == nil {
		v.Errors = make(map[string]string)
	}
	v.Errors[field] = message
}

// HasErrors reports whether any field failed
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

func (v *ValidationError) Error() string {
	fields := make([]string, 0, len(v.Errors))
	for field := range v.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+v.Errors[field])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// IsValidationError reports whether err is a ValidationError
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// ValidateStruct validates a struct and returns a ValidationError if validation fails
func ValidateStruct(s interface{}) error {
	err := Validate.Struct(s)
	if err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return NewValidationError(validationErrors)
		}
		return err
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without", "notblank":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// validateTicketPriority checks if ticket priority is valid
func validateTicketPriority(fl validator.FieldLevel) bool {
	return contains(ticketPriorities, fl.Field().String())
}

// validateTicketStatus checks if ticket status is valid
func validateTicketStatus(fl validator.FieldLevel) bool {
	return contains(ticketStatuses, fl.Field().String())
}

// validateMessageType checks if message type is valid
func validateMessageType(fl validator.FieldLevel) bool {
	return contains(messageTypes, fl.Field().String())
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// contains checks if a string slice contains a specific string
func contains(slice []string, item string) bool {
	item = strings.ToLower(strings.TrimSpace(item))
	for _, s := range slice {
		if strings.ToLower(strings.TrimSpace(s)) == item {
			return true
		}
	}
	return false
}

// ValidateRating validates rating value (1-5)
func ValidateRating(rating int) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("rating must be between 1 and 5, got: %d", rating)
	}
	return nil
}

// ValidateStringLength validates string length
func ValidateStringLength(s string, min, max int) error {
	length := len(strings.TrimSpace(s))
	if length < min {
		return fmt.Errorf("string length must be at least %d characters, got: %d", min, length)
	}
	if max > 0 && length > max {
		return fmt.Errorf("string length must be at most %d characters, got: %d", max, length)
	}
	return nil
}
