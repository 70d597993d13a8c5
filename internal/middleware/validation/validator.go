package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var xssPattern = regexp.MustCompile(`(?i)(<script|<iframe|javascript:|onerror=|onload=|onclick=)`)

var ErrInvalidBody = errors.New("invalid JSON format")

// FieldError describes a single rejected field by its JSON name.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+":"+f.Rule)
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

type Config struct {
	MaxQueryLength      int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

type Validator struct {
	validate *validator.Validate
	cfg      Config
}

func New(cfg Config) *Validator {
	if cfg.MaxQueryLength == 0 {
		cfg.MaxQueryLength = 5000
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json"}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	bounded := func(s string) bool {
		return utf8.RuneCountInString(s) <= cfg.MaxQueryLength && !xssPattern.MatchString(s)
	}
	rules := map[string]validator.Func{
		// querytext: non-blank, bounded, free of markup injection.
		"querytext": func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return strings.TrimSpace(s) != "" && bounded(s)
		},
		// querybound: like querytext but may be empty.
		"querybound": func(fl validator.FieldLevel) bool {
			return bounded(fl.Field().String())
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("failed to register %s validation: %v", tag, err))
		}
	}

	return &Validator{validate: v, cfg: cfg}
}

// Middleware rejects write requests whose content type is not allowed.
func (v *Validator) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodPost || c.Method() == fiber.MethodPut {
			contentType := c.Get(fiber.HeaderContentType)
			if contentType != "" && !v.allowedContentType(contentType) {
				return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
					"error": "Unsupported content type",
				})
			}
		}
		return c.Next()
	}
}

func (v *Validator) allowedContentType(contentType string) bool {
	for _, allowed := range v.cfg.AllowedContentTypes {
		if strings.Contains(contentType, allowed) {
			return true
		}
	}
	return false
}

// Bind parses the JSON body into out and runs its validate tags.
func (v *Validator) Bind(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	return v.Struct(out)
}

func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate request: %w", err)
	}

	out := &Error{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Rule: fe.Tag(), Param: fe.Param()})
	}
	return out
}

// Reject writes a 400 response for an error returned by Bind.
func (v *Validator) Reject(c *fiber.Ctx, err error) error {
	var verr *Error
	if errors.As(err, &verr) {
		for _, f := range verr.Fields {
			if f.Rule == "querytext" || f.Rule == "querybound" {
				v.cfg.Logger.Warn("Rejected query text",
					zap.String("ip", c.IP()),
					zap.String("path", c.Path()),
				)
				break
			}
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "Invalid request",
			"fields": verr.Fields,
		})
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func SanitizeString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.ReplaceAll(input, "\x00", "")
	return input
}
