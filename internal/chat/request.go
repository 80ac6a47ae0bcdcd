package chat

import (
	"reflect"
	"strings"

	errors "github.com/Laisky/errors/v2"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	ProjectID   string   `json:"projectId" validate:"required,max=26"`
	Message     string   `json:"message" validate:"required"`
	Model       string   `json:"model" validate:"omitempty,max=64"`
	Temperature *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens   *int     `json:"maxTokens,omitempty" validate:"omitempty,gt=0"`
}

type RegenerateRequest struct {
	ProjectID   string   `json:"projectId" validate:"required,max=26"`
	MessageID   uint64   `json:"messageId" validate:"required"`
	Model       string   `json:"model" validate:"omitempty,max=64"`
	Temperature *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens   *int     `json:"maxTokens,omitempty" validate:"omitempty,gt=0"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

var ruleMessages = map[string]string{
	"required": "is required",
	"gt":       "must be greater than %s",
	"gte":      "must be at least %s",
	"lte":      "must be at most %s",
	"max":      "must be at most %s characters",
}

// Validate checks req and returns a *ValidationError listing every bad field.
func (s *Service) Validate(req any) error {
	var verr *ValidationError
	if err := s.validate.Struct(req); err != nil {
		verr = toValidationError(err)
	}
	if r, ok := req.(*Request); ok && r.Message != "" && strings.TrimSpace(r.Message) == "" {
		if verr == nil {
			verr = &ValidationError{}
		}
		verr.Fields = append(verr.Fields, FieldError{Field: "message", Rule: "required", Message: "must not be blank"})
	}
	if verr == nil {
		return nil
	}
	return verr
}

func toValidationError(err error) *ValidationError {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return &ValidationError{Fields: []FieldError{{Field: "", Rule: "invalid", Message: err.Error()}}}
	}
	out := &ValidationError{}
	for _, fe := range ves {
		msg, ok := ruleMessages[fe.Tag()]
		if !ok {
			msg = "failed " + fe.Tag()
		} else if strings.Contains(msg, "%s") {
			msg = strings.Replace(msg, "%s", fe.Param(), 1)
		}
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Rule: fe.Tag(), Message: msg})
	}
	return out
}
