package application

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/verilink/commerce-auth/internal/domain"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ()\-]{8,18}[0-9]$`)

var fieldLabels = map[string]string{
	"email":             "Email",
	"password":          "Password",
	"newPassword":       "Password",
	"firstName":         "First name",
	"lastName":          "Last name",
	"phone":             "Phone number",
	"verificationToken": "Verification code",
	"resetToken":        "Reset code",
	"businessName":      "Business name",
	"businessType":      "Business type",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration happens once at package init with static tags.
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return domain.ValidatePassword(fl.Field().String()) == nil
	})
	return v
}

// validateRequest checks req against its struct tags and reports every
// violated field at once.
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var violations validator.ValidationErrors
	if !errors.As(err, &violations) {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	out := &domain.ValidationError{Fields: make([]domain.FieldError, 0, len(violations))}
	for _, fe := range violations {
		out.Fields = append(out.Fields, domain.FieldError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
			Code:    fe.Tag(),
		})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	label := fieldLabels[fe.Field()]
	if label == "" {
		label = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "email":
		return "Invalid email address"
	case "phone":
		return "Invalid phone number"
	case "password":
		return fmt.Sprintf("%s must be between %d and %d characters", label, domain.MinPasswordLength, domain.MaxPasswordLength)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", label, fe.Param())
	case "numeric":
		return label + " must contain only digits"
	}
	return label + " is invalid"
}
