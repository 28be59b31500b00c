// CLAUDE:SUMMARY Structural validation of tour definitions and steps with aggregated, step-numbered errors.
// Package validate checks authored tour definitions before the engine acts
// on them. Every violation is collected; nothing stops at the first error.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/tourguide/tour"
)

// Error is one violation. Step is 1-based; 0 means the tour itself.
type Error struct {
	Step    int    `json:"step,omitempty"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e Error) Error() string {
	if e.Step > 0 {
		return fmt.Sprintf("step %d: %s: %s", e.Step, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Errors is an aggregated violation list.
type Errors []Error

func (es Errors) Error() string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

// Err returns es as an error, or nil when empty.
func (es Errors) Err() error {
	if len(es) == 0 {
		return nil
	}
	return es
}

// ForStep returns the violations attached to step n (1-based).
func (es Errors) ForStep(n int) Errors {
	var out Errors
	for _, e := range es {
		if e.Step == n {
			out = append(out, e)
		}
	}
	return out
}

var structs = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Selector reports whether s parses as a CSS selector group. It checks
// syntax only; the target may not exist in any document yet.
func Selector(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("empty selector")
	}
	if _, err := cascadia.Compile(s); err != nil {
		return err
	}
	return nil
}

// Step validates one step. Violations carry step number 0; Tour renumbers.
func Step(s tour.Step) Errors {
	return step(s, 0)
}

func step(s tour.Step, n int) Errors {
	var out Errors
	out = append(out, fieldErrors(structs.Struct(s), n)...)

	for field, v := range map[string]string{"id": s.ID, "title": s.Title, "content": s.Content} {
		if v != "" && strings.TrimSpace(v) == "" {
			out = append(out, Error{Step: n, Field: field, Message: "is blank"})
		}
	}
	if s.Target != "" {
		if err := Selector(s.Target); err != nil {
			out = append(out, Error{Step: n, Field: "target", Message: fmt.Sprintf("invalid selector %q: %v", s.Target, err)})
		}
	}
	slices.SortStableFunc(out, func(a, b Error) int { return strings.Compare(a.Field, b.Field) })
	return out
}

// Tour validates a definition and all its steps.
func Tour(d tour.Definition) Errors {
	var out Errors
	out = append(out, fieldErrors(structs.Struct(d), 0)...)

	seen := make(map[string]int, len(d.Steps))
	for i, s := range d.Steps {
		n := i + 1
		out = append(out, step(s, n)...)
		if s.ID == "" {
			continue
		}
		if first, dup := seen[s.ID]; dup {
			out = append(out, Error{Step: n, Field: "id", Message: fmt.Sprintf("duplicates step %d", first)})
			continue
		}
		seen[s.ID] = n
	}
	return out
}

// Decode parses an authored YAML or JSON definition and validates it. A
// parse failure is returned as error; structural problems as Errors.
func Decode(data []byte) (*tour.Definition, Errors, error) {
	var d tour.Definition
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, nil, fmt.Errorf("validate: decode: %w", err)
	}
	return &d, Tour(d), nil
}

func fieldErrors(err error, n int) Errors {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Errors{{Step: n, Field: "-", Message: err.Error()}}
	}
	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, Error{Step: n, Field: fe.Field(), Message: describe(fe)})
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must contain at least " + fe.Param() + " item(s)"
	case "oneof":
		return fmt.Sprintf("%q is not one of %s", fe.Value(), fe.Param())
	default:
		return "failed " + fe.Tag()
	}
}
