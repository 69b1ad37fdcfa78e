package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	// Validation constants
	MaxNameLength = 64
	MinPort       = 1
	MaxPort       = 65535

	// Regular expressions
	namePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)
)

func init() {
	validate = validator.New()
}

// ExposeRequest represents a request to expose a service on a device
type ExposeRequest struct {
	Device   string `json:"device" validate:"required,min=1,max=64"`
	Protocol string `json:"protocol" validate:"required,min=1,max=64"`
	Port     int    `json:"port" validate:"required,min=1,max=65535"`
}

// RegisterRequest represents a request to register a gateway service
type RegisterRequest struct {
	Device   string `json:"device" validate:"required,min=1,max=64"`
	Network  string `json:"network" validate:"required,min=1,max=64"`
	Port     int    `json:"port" validate:"required,min=1,max=65535"`
	Protocol string `json:"protocol" validate:"required,min=1,max=64"`
}

// ValidateExposeRequest validates a service exposure request
func ValidateExposeRequest(req *ExposeRequest) error {
	if req == nil {
		return errors.New("expose request cannot be nil")
	}

	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}

	if err := ValidateName("device", req.Device); err != nil {
		return err
	}
	return ValidateName("protocol", req.Protocol)
}

// ValidateRegisterRequest validates a gateway registration request
func ValidateRegisterRequest(req *RegisterRequest) error {
	if req == nil {
		return errors.New("register request cannot be nil")
	}

	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}

	for _, field := range []struct{ name, value string }{
		{"device", req.Device},
		{"network", req.Network},
		{"protocol", req.Protocol},
	} {
		if err := ValidateName(field.name, field.value); err != nil {
			return err
		}
	}
	return nil
}

// ValidateName checks that a device/network/protocol name is well-formed
func ValidateName(field, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%s: name cannot be empty", field)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%s: name exceeds maximum length of %d characters", field, MaxNameLength)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%s: name %q contains invalid characters (alphanumeric, underscore, dot, hyphen allowed)", field, name)
	}
	return nil
}

// ValidatePort checks that a port is in the valid TCP range
func ValidatePort(port int) error {
	if port < MinPort || port > MaxPort {
		return fmt.Errorf("port %d out of range [%d, %d]", port, MinPort, MaxPort)
	}
	return nil
}

// formatValidationError converts validator errors into readable messages
func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		messages := make([]string, 0, len(validationErrors))
		for _, fieldErr := range validationErrors {
			switch fieldErr.Tag() {
			case "required":
				messages = append(messages, fmt.Sprintf("%s is required", fieldErr.Field()))
			case "min":
				messages = append(messages, fmt.Sprintf("%s must be at least %s", fieldErr.Field(), fieldErr.Param()))
			case "max":
				messages = append(messages, fmt.Sprintf("%s must be at most %s", fieldErr.Field(), fieldErr.Param()))
			default:
				messages = append(messages, fmt.Sprintf("%s failed %s validation", fieldErr.Field(), fieldErr.Tag()))
			}
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}
