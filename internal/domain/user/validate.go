package user

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/geocoder89/usershub/internal/apperr"
	"github.com/go-playground/validator/v10"
)

var phonePattern = regexp.MustCompile(`^[0-9+\-\s()]{10,15}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	err := v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})

	if err != nil {
		panic(err)
	}

	return v
}

type fieldRule struct {
	name  string
	tag   string
	lower bool
}

// Declared order decides which error wins.
var rules = [...]fieldRule{
	{name: "name", tag: "min=2,max=100"},
	{name: "phone", tag: "phone"},
	{name: "email", tag: "email,max=255", lower: true},
	{name: "address", tag: "min=10,max=500"},
	{name: "city", tag: "min=2,max=100"},
	{name: "employer", tag: "min=2,max=100"},
}

func (p Payload) values() [len(rules)]*string {
	return [len(rules)]*string{p.Name, p.Phone, p.Email, p.Address, p.City, p.Employer}
}

// ValidateCreate requires all six fields and returns the first failure in declared order.
// Unknown keys are reported only once every known field passes.
func ValidateCreate(p Payload) (CreateInput, error) {
	var clean [len(rules)]string

	for i, raw := range p.values() {
		r := rules[i]

		if raw == nil {
			return CreateInput{}, apperr.Validation(r.name, "required", fmt.Sprintf("%q is required", r.name))
		}

		v, err := checkField(r, *raw)
		if err != nil {
			return CreateInput{}, err
		}
		clean[i] = v
	}

	if err := p.checkUnknown(); err != nil {
		return CreateInput{}, err
	}

	return CreateInput{
		Name:     clean[0],
		Phone:    clean[1],
		Email:    clean[2],
		Address:  clean[3],
		City:     clean[4],
		Employer: clean[5],
	}, nil
}

// ValidateUpdate checks only the supplied fields. At least one must be present.
func ValidateUpdate(p Payload) (UpdateInput, error) {
	var clean [len(rules)]*string

	for i, raw := range p.values() {
		if raw == nil {
			continue
		}

		v, err := checkField(rules[i], *raw)
		if err != nil {
			return UpdateInput{}, err
		}
		clean[i] = &v
	}

	if err := p.checkUnknown(); err != nil {
		return UpdateInput{}, err
	}

	in := UpdateInput{
		Name:     clean[0],
		Phone:    clean[1],
		Email:    clean[2],
		Address:  clean[3],
		City:     clean[4],
		Employer: clean[5],
	}

	if in.Empty() {
		return UpdateInput{}, ErrNoFields
	}

	return in, nil
}

// checkUnknown runs after the field rules and before the empty-update check.
func (p Payload) checkUnknown() error {
	if len(p.Unknown) == 0 {
		return nil
	}

	key := p.Unknown[0]
	return apperr.Validation(key, "unknown", fmt.Sprintf("%q is not allowed", key))
}

func checkField(r fieldRule, raw string) (string, error) {
	v := strings.TrimSpace(raw)
	if r.lower {
		v = strings.ToLower(v)
	}

	if v == "" {
		return "", apperr.Validation(r.name, "required", fmt.Sprintf("%q is not allowed to be empty", r.name))
	}

	err := validate.Var(v, r.tag)
	if err == nil {
		return v, nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return "", apperr.Validation(r.name, fe.Tag(), ruleMessage(r.name, fe.Tag(), fe.Param()))
	}

	return "", apperr.Validation(r.name, "invalid", fmt.Sprintf("%q is invalid", r.name))
}

func ruleMessage(field, rule, param string) string {
	switch rule {
	case "min":
		return fmt.Sprintf("%q length must be at least %s characters long", field, param)
	case "max":
		return fmt.Sprintf("%q length must be less than or equal to %s characters long", field, param)
	case "email":
		return fmt.Sprintf("%q must be a valid email", field)
	case "phone":
		return fmt.Sprintf("%q must be a valid phone number format (10-15 characters: digits, spaces, +, -, parentheses)", field)
	default:
		return fmt.Sprintf("%q failed %s validation", field, rule)
	}
}
