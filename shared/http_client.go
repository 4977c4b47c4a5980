package shared

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

type HttpClientRes struct {
	StatusCode int
	Body       []byte
	Errs       []error
}

// OK reports whether the call reached the remote side and got a 2xx back.
func (r *HttpClientRes) OK() bool {
	return len(r.Errs) == 0 && r.StatusCode >= 200 && r.StatusCode < 300
}

type RequestOption func(agent *fiber.Agent)

func WithBearer(token string) RequestOption {
	return func(agent *fiber.Agent) {
		agent.Set(fiber.HeaderAuthorization, fmt.Sprintf("Bearer %s", token))
	}
}

func WithForm(values map[string]string) RequestOption {
	return func(agent *fiber.Agent) {
		args := fiber.AcquireArgs()
		defer fiber.ReleaseArgs(args)
		for k, v := range values {
			args.Set(k, v)
		}
		agent.Form(args)
	}
}

func WithTimeout(timeout time.Duration) RequestOption {
	return func(agent *fiber.Agent) {
		if timeout > 0 {
			agent.Timeout(timeout)
		}
	}
}

// CallService performs a single request without retries. Transport failures
// are reported through HttpClientRes.Errs, not the returned error.
func CallService(method string, url string, opts ...RequestOption) (*HttpClientRes, error) {
	var agent *fiber.Agent

	switch method {
	case fiber.MethodGet:
		agent = fiber.Get(url)
	case fiber.MethodPost:
		agent = fiber.Post(url)
	case fiber.MethodPut:
		agent = fiber.Put(url)
	case fiber.MethodDelete:
		agent = fiber.Delete(url)
	case fiber.MethodPatch:
		agent = fiber.Patch(url)
	default:
		return nil, fmt.Errorf("unsupported HTTP method: %s", method)
	}

	agent.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	for _, opt := range opts {
		opt(agent)
	}

	statusCode, respBody, errs := agent.Bytes()

	return &HttpClientRes{
		StatusCode: statusCode,
		Body:       respBody,
		Errs:       errs,
	}, nil
}
