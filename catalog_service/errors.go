package main

import (
	"errors"

	"github.com/akmmp241/catalog-gateway/shared"
	"github.com/gofiber/fiber/v2"
)

var (
	ErrNotFound            = errors.New("element not found")
	ErrPersistence         = errors.New("persistence failure")
	ErrUpstreamUnavailable = errors.New("catalog upstream unavailable")
	ErrCredential          = errors.New("could not obtain catalog access token")
	ErrInsertion           = errors.New("write rejected by store")
	ErrValidation          = errors.New("invalid input")
)

// toFiberError maps a domain error to the status the handlers answer with.
// Validation errors are returned untouched so the shared handler can list
// the failing fields.
func toFiberError(err error, message string) error {
	var validationErr *shared.FailedValidationError
	if errors.As(err, &validationErr) {
		return err
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, message)
	case errors.Is(err, ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInsertion):
		return fiber.NewError(fiber.StatusConflict, message)
	case errors.Is(err, ErrCredential):
		return fiber.NewError(fiber.StatusInternalServerError, message)
	case errors.Is(err, ErrUpstreamUnavailable):
		return fiber.NewError(fiber.StatusBadGateway, message)
	case errors.Is(err, ErrPersistence):
		return fiber.NewError(fiber.StatusServiceUnavailable, message)
	default:
		return err
	}
}
