// Package validation evaluates declarative per-field rule tables and
// produces the field→messages map the result envelope carries. The
// predicates delegate to go-playground/validator, so a rule is just a
// validator tag paired with the message shown when it fails.
package validation

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type Rule struct {
	Tag     string
	Message string
}

// Field pairs a field name with its ordered rule list. Evaluation
// collects every failing rule, it does not stop at the first.
type Field struct {
	Name  string
	Rules []Rule
}

type RuleSet []Field

func (rs RuleSet) Apply(values map[string]string) map[string][]string {
	errs := map[string][]string{}
	for _, f := range rs {
		v := values[f.Name]
		for _, r := range f.Rules {
			if err := validate.Var(v, r.Tag); err != nil {
				errs[f.Name] = append(errs[f.Name], r.Message)
			}
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

var (
	nameRe  = regexp.MustCompile(`^[a-zA-Z\s]+$`)
	lowerRe = regexp.MustCompile(`[a-z]`)
	upperRe = regexp.MustCompile(`[A-Z]`)
	digitRe = regexp.MustCompile(`[0-9]`)
)

func init() {
	// validator exposes custom predicates under tags like the built-ins,
	// which keeps the rule tables below declarative.
	must(validate.RegisterValidation("letters_spaces", matching(nameRe.MatchString)))
	must(validate.RegisterValidation("has_lower", matching(lowerRe.MatchString)))
	must(validate.RegisterValidation("has_upper", matching(upperRe.MatchString)))
	must(validate.RegisterValidation("has_digit", matching(digitRe.MatchString)))
}

func matching(pred func(string) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return pred(fl.Field().String())
	}
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

var SignUp = RuleSet{
	{Name: "name", Rules: []Rule{
		{Tag: "required", Message: "Name is required"},
		{Tag: "min=2", Message: "Name must be at least 2 characters"},
		{Tag: "max=50", Message: "Name must be less than 50 characters"},
		{Tag: "letters_spaces", Message: "Name can only contain letters and spaces"},
	}},
	{Name: "email", Rules: []Rule{
		{Tag: "required", Message: "Email is required"},
		{Tag: "email", Message: "Please enter a valid email address"},
		{Tag: "max=100", Message: "Email must be less than 100 characters"},
	}},
	{Name: "password", Rules: []Rule{
		{Tag: "required", Message: "Password is required"},
		{Tag: "min=8", Message: "Password must be at least 8 characters"},
		{Tag: "max=100", Message: "Password must be less than 100 characters"},
		{Tag: "has_lower", Message: "Password must contain at least one lowercase letter"},
		{Tag: "has_upper", Message: "Password must contain at least one uppercase letter"},
		{Tag: "has_digit", Message: "Password must contain at least one number"},
	}},
	{Name: "confirm_password", Rules: []Rule{
		{Tag: "required", Message: "Please confirm your password"},
	}},
}

var SignIn = RuleSet{
	{Name: "email", Rules: []Rule{
		{Tag: "required", Message: "Email is required"},
		{Tag: "email", Message: "Invalid email address"},
	}},
	{Name: "password", Rules: []Rule{
		{Tag: "required", Message: "Password is required"},
		{Tag: "min=6", Message: "Password must be at least 6 characters"},
	}},
}

var ShippingAddress = RuleSet{
	{Name: "full_name", Rules: []Rule{
		{Tag: "required", Message: "Full name is required"},
		{Tag: "min=3", Message: "Full name must be at least 3 characters"},
	}},
	{Name: "street", Rules: []Rule{
		{Tag: "required", Message: "Street address is required"},
		{Tag: "min=3", Message: "Street address must be at least 3 characters"},
	}},
	{Name: "city", Rules: []Rule{
		{Tag: "required", Message: "City is required"},
	}},
	{Name: "postal_code", Rules: []Rule{
		{Tag: "required", Message: "Postal code is required"},
	}},
	{Name: "country", Rules: []Rule{
		{Tag: "required", Message: "Country is required"},
	}},
}
