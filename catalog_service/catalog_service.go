package main

import (
	"errors"
	"log/slog"
	"time"

	"github.com/akmmp241/catalog-gateway/shared"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

const defaultDevTokenTTL = 60 * time.Minute

type CatalogService struct {
	Gateway          Gateway
	Validate         *validator.Validate
	ServiceJWTSecret []byte
	AppEnv           string
}

func NewCatalogService(gateway Gateway, validate *validator.Validate, serviceJWTSecret []byte, appEnv string) *CatalogService {
	return &CatalogService{
		Gateway:          gateway,
		Validate:         validate,
		ServiceJWTSecret: serviceJWTSecret,
		AppEnv:           appEnv,
	}
}

func (s *CatalogService) RegisterRoutes(route fiber.Router) {
	guard := s.writeGuard()

	route.Get("/products", s.handleSearchProducts)
	route.Get("/products/:id", s.handleGetProduct)
	route.Post("/products", guard, s.handleCreateProduct)

	route.Get("/services", s.handleSearchServicesByName)
	route.Get("/services/description", s.handleSearchServicesByDescription)
	route.Get("/services/:id", s.handleGetService)
	route.Post("/services", guard, s.handleCreateService)
	route.Patch("/services/:id", guard, s.handleModifyService)

	route.Post("/dev/token", shared.DevOnlyMiddleware(s.AppEnv), s.handleDevToken)
}

// writeGuard requires a service token on mutations once a secret is configured.
func (s *CatalogService) writeGuard() fiber.Handler {
	if len(s.ServiceJWTSecret) == 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return shared.NewJWTServiceMiddleware(s.ServiceJWTSecret)
}

func requiredQuery(c *fiber.Ctx, key string) (string, error) {
	if !c.Context().QueryArgs().Has(key) {
		return "", &shared.FailedValidationError{Fields: map[string]string{key: "is required"}}
	}
	return c.Query(key), nil
}

func (s *CatalogService) validateBody(body interface{}) error {
	err := s.Validate.Struct(body)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		slog.Error("Validation Error", "err", err)
		return shared.NewFailedValidationError(verrs)
	}
	return err
}

func (s *CatalogService) handleSearchProducts(c *fiber.Ctx) error {
	term, err := requiredQuery(c, "product_name")
	if err != nil {
		return err
	}

	products, err := s.Gateway.SearchProducts(c.UserContext(), term)
	if err != nil {
		slog.Error("Could not get data from third party endpoint", "term", term, "err", err)
		return toFiberError(err, "Could not search the product")
	}

	return c.Status(fiber.StatusOK).JSON(shared.Response[[]Product]{
		Message: "Products retrieved successfully",
		Data:    products,
		Errors:  nil,
	})
}

func (s *CatalogService) handleGetProduct(c *fiber.Ctx) error {
	product, err := s.Gateway.GetProduct(c.UserContext(), c.Params("id"))
	if err != nil {
		slog.Error("Could not find the product", "id", c.Params("id"), "err", err)
		return toFiberError(err, "Could not find the product")
	}

	return c.Status(fiber.StatusOK).JSON(shared.Response[*Product]{
		Message: "Product retrieved successfully",
		Data:    product,
		Errors:  nil,
	})
}

func (s *CatalogService) handleCreateProduct(c *fiber.Ctx) error {
	product := new(Product)
	if err := c.BodyParser(product); err != nil {
		slog.Error("Error occurred while parsing request body", "err", err)
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request")
	}

	if err := s.validateBody(product); err != nil {
		return err
	}

	created, err := s.Gateway.CreateProduct(c.UserContext(), *product)
	if err != nil {
		slog.Error("Could not create the product", "err", err)
		return toFiberError(err, "Could not create the product")
	}

	return c.Status(fiber.StatusCreated).JSON(shared.Response[*Product]{
		Message: "Product created successfully",
		Data:    created,
		Errors:  nil,
	})
}

func (s *CatalogService) handleSearchServicesByName(c *fiber.Ctx) error {
	term, err := requiredQuery(c, "service_name")
	if err != nil {
		return err
	}

	services, err := s.Gateway.SearchServicesByName(c.UserContext(), term)
	if err != nil {
		slog.Error("Could not search the service", "term", term, "err", err)
		return toFiberError(err, "Could not search the service")
	}

	return c.Status(fiber.StatusOK).JSON(shared.Response[[]Service]{
		Message: "Services retrieved successfully",
		Data:    services,
		Errors:  nil,
	})
}

func (s *CatalogService) handleSearchServicesByDescription(c *fiber.Ctx) error {
	term, err := requiredQuery(c, "service_description")
	if err != nil {
		return err
	}

	services, err := s.Gateway.SearchServicesByDescription(c.UserContext(), term)
	if err != nil {
		slog.Error("Could not search the service", "term", term, "err", err)
		return toFiberError(err, "Could not search the service")
	}

	return c.Status(fiber.StatusOK).JSON(shared.Response[[]Service]{
		Message: "Services retrieved successfully",
		Data:    services,
		Errors:  nil,
	})
}

func (s *CatalogService) handleGetService(c *fiber.Ctx) error {
	service, err := s.Gateway.GetService(c.UserContext(), c.Params("id"))
	if err != nil {
		slog.Error("Could not find the service", "id", c.Params("id"), "err", err)
		return toFiberError(err, "Could not find the service")
	}

	return c.Status(fiber.StatusOK).JSON(shared.Response[*Service]{
		Message: "Service retrieved successfully",
		Data:    service,
		Errors:  nil,
	})
}

func (s *CatalogService) handleCreateService(c *fiber.Ctx) error {
	service := new(Service)
	if err := c.BodyParser(service); err != nil {
		slog.Error("Error occurred while parsing request body", "err", err)
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request")
	}

	if err := s.validateBody(service); err != nil {
		return err
	}

	created, err := s.Gateway.CreateService(c.UserContext(), *service)
	if err != nil {
		slog.Error("Could not create the service", "err", err)
		return toFiberError(err, "Could not create the service")
	}

	return c.Status(fiber.StatusCreated).JSON(shared.Response[*Service]{
		Message: "Service created successfully",
		Data:    created,
		Errors:  nil,
	})
}

func (s *CatalogService) handleModifyService(c *fiber.Ctx) error {
	var update ServiceUpdate
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&update); err != nil {
			slog.Error("Error occurred while parsing request body", "err", err)
			if errors.Is(err, errNullField) {
				return fiber.NewError(fiber.StatusBadRequest, "Fields cannot be null")
			}
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request")
		}
	}

	if err := update.Validate(s.Validate); err != nil {
		slog.Error("Validation Error", "err", err)
		return err
	}

	service, err := s.Gateway.ModifyService(c.UserContext(), c.Params("id"), update)
	if err != nil {
		slog.Error("Could not update the service", "id", c.Params("id"), "err", err)
		return toFiberError(err, "Could not update the service")
	}

	return c.Status(fiber.StatusCreated).JSON(shared.Response[*Service]{
		Message: "Service updated successfully",
		Data:    service,
		Errors:  nil,
	})
}

func (s *CatalogService) handleDevToken(c *fiber.Ctx) error {
	if len(s.ServiceJWTSecret) == 0 {
		return fiber.NewError(fiber.StatusServiceUnavailable, "Service tokens are disabled")
	}

	request := new(devTokenRequest)
	if err := c.BodyParser(request); err != nil {
		slog.Error("Error occurred while parsing request body", "err", err)
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request")
	}

	if err := s.validateBody(request); err != nil {
		return err
	}

	ttl := defaultDevTokenTTL
	if request.TTLMin > 0 {
		ttl = time.Duration(request.TTLMin) * time.Minute
	}

	token, err := shared.GenerateJWTForService(request.Service, s.ServiceJWTSecret, ttl)
	if err != nil {
		slog.Error("Error occurred while generating service token", "err", err)
		return err
	}

	return c.Status(fiber.StatusOK).JSON(shared.Response[devTokenResponse]{
		Message: "Token generated successfully",
		Data:    devTokenResponse{Token: token, ExpiresAt: time.Now().Add(ttl).UTC()},
		Errors:  nil,
	})
}
