package shared

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type Response[T interface{}] struct {
	Message string `json:"message"`
	Data    T      `json:"data"`
	Errors  any    `json:"errors"`
}

type FailedValidationError struct {
	Fields map[string]string
}

func (e *FailedValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidator returns a validator that reports fields by their json names.
func NewValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return validate
}

func NewFailedValidationError(errs validator.ValidationErrors) error {
	fields := make(map[string]string, len(errs))
	for _, fe := range errs {
		fields[fe.Field()] = DescribeFieldError(fe)
	}
	return &FailedValidationError{Fields: fields}
}

func DescribeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte", "min":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte", "max":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "url":
		return "must be a valid URL"
	default:
		return fmt.Sprintf("failed on the '%s' rule", fe.Tag())
	}
}

func ErrorHandler(ctx *fiber.Ctx, err error) error {
	var validationErr *FailedValidationError
	if errors.As(err, &validationErr) {
		return ctx.Status(fiber.StatusBadRequest).JSON(Response[any]{
			Message: "Validation failed",
			Data:    nil,
			Errors:  validationErr.Fields,
		})
	}

	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
		message = fiberErr.Message
	} else {
		slog.Error("Unhandled error", "path", ctx.Path(), "err", err)
	}

	return ctx.Status(code).JSON(Response[any]{
		Message: message,
		Data:    nil,
		Errors:  nil,
	})
}
