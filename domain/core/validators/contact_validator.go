package validators

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"contact-service/domain/core/entities"
)

// ValidationErrors is the ordered list of rule violations for one record.
// A nil value means the record is valid.
type ValidationErrors struct {
	Errors []string `json:"errors"`
}

// Error implements the error interface so violations can travel as errors.
func (v *ValidationErrors) Error() string {
	return strings.Join(v.Errors, "; ")
}

var phonePattern = regexp.MustCompile(`^\+?[0-9 ()\-]+$`)

// ContactValidator checks contact records against the field rules declared
// on entities.Contact.
type ContactValidator struct {
	validate *validator.Validate
	fields   []fieldRules
}

// fieldRules holds the rules of one struct field in declaration order.
type fieldRules struct {
	index     int
	name      string
	omitEmpty bool
	rules     []string
}

// NewContactValidator creates a validator with the contact rules registered.
func NewContactValidator() *ContactValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// The expression is fixed, so registration cannot fail
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})

	return &ContactValidator{
		validate: v,
		fields:   rulesOf(reflect.TypeOf(entities.Contact{})),
	}
}

func rulesOf(t reflect.Type) []fieldRules {
	var fields []fieldRules
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("validate")
		if tag == "" || tag == "-" {
			continue
		}

		fr := fieldRules{index: i, name: jsonName(field)}
		for _, rule := range strings.Split(tag, ",") {
			if rule == "omitempty" {
				fr.omitEmpty = true
				continue
			}
			fr.rules = append(fr.rules, rule)
		}
		fields = append(fields, fr)
	}
	return fields
}

// jsonName reports fields by their JSON names
func jsonName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return strings.ToLower(field.Name)
	}
	return name
}

// Validate returns every violation of contact, or nil when there are none.
// Each rule is checked on its own so a field can report several violations.
// A missing required value is reported alone. Messages follow field
// declaration order.
func (cv *ContactValidator) Validate(contact *entities.Contact) *ValidationErrors {
	if contact == nil {
		return &ValidationErrors{Errors: []string{"contact is required"}}
	}

	value := reflect.ValueOf(contact).Elem()
	var messages []string
	for _, fr := range cv.fields {
		field := value.Field(fr.index)
		if fr.omitEmpty && field.IsZero() {
			continue
		}

		for _, rule := range fr.rules {
			err := cv.validate.Var(field.Interface(), rule)
			if err == nil {
				continue
			}

			fieldErrors, ok := err.(validator.ValidationErrors)
			if !ok {
				messages = append(messages, fmt.Sprintf("%s: %v", fr.name, err))
				continue
			}
			for _, fe := range fieldErrors {
				messages = append(messages, formatFieldError(fr.name, fe))
			}
			if rule == "required" {
				break
			}
		}
	}

	if len(messages) == 0 {
		return nil
	}
	return &ValidationErrors{Errors: messages}
}

// formatFieldError formats a single field violation
func formatFieldError(field string, e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "phone":
		return fmt.Sprintf("%s may only contain digits, spaces, dashes, parentheses and a leading +", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
