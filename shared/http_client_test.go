package shared

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestCallService(t *testing.T) {
	var gotAuth, gotContentType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	res, err := CallService(fiber.MethodPost, srv.URL+"/token",
		WithBearer("abc"),
		WithForm(map[string]string{"grant_type": "client_credentials"}),
		WithTimeout(time.Second),
	)
	require.NoError(t, err)
	require.Empty(t, res.Errs)
	require.True(t, res.OK())
	require.Equal(t, http.StatusAccepted, res.StatusCode)
	require.JSONEq(t, `{"ok":true}`, string(res.Body))
	require.Equal(t, "Bearer abc", gotAuth)
	require.Equal(t, fiber.MIMEApplicationForm, gotContentType)
	require.Equal(t, "grant_type=client_credentials", gotBody)
}

func TestCallServiceUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	res, err := CallService(fiber.MethodGet, url, WithTimeout(500*time.Millisecond))
	require.NoError(t, err)
	require.NotEmpty(t, res.Errs)
	require.False(t, res.OK())
}

func TestCallServiceUnsupportedMethod(t *testing.T) {
	_, err := CallService("TRACE", "http://localhost")
	require.Error(t, err)
}
