package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	calendarapi "google.golang.org/api/calendar/v3"

	"github.com/teemow/calbridge/internal/calendar"
	"github.com/teemow/calbridge/internal/connection"
	"github.com/teemow/calbridge/internal/engine"
	"github.com/teemow/calbridge/internal/logging"
	"github.com/teemow/calbridge/internal/retry"
)

func newTestServerContext(t *testing.T) (*ServerContext, *connection.Manager[*calendarapi.Service]) {
	t.Helper()
	conn := connection.NewManager[*calendarapi.Service]("api", func(context.Context) (*calendarapi.Service, error) {
		return &calendarapi.Service{}, nil
	}, connection.WithLogger[*calendarapi.Service](logging.Discard()))

	eng := engine.New(calendar.NewAPIGateway(conn), retry.New(conn), engine.WithLogger(logging.Discard()))
	sc, err := NewServerContext(context.Background(), eng, WithLogger(logging.Discard()))
	require.NoError(t, err)
	return sc, conn
}

func getHealth(t *testing.T, h http.Handler) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestLivenessHandler(t *testing.T) {
	sc, _ := newTestServerContext(t)
	code, body := getHealth(t, NewHealthChecker(sc).LivenessHandler())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestReadinessHandler_FollowsProviderConnection(t *testing.T) {
	sc, conn := newTestServerContext(t)
	h := NewHealthChecker(sc)

	code, body := getHealth(t, h.ReadinessHandler())
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not connected", body["checks"].(map[string]any)["provider"])

	require.NoError(t, conn.Connect(context.Background()))

	code, body = getHealth(t, h.ReadinessHandler())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestReadinessHandler_NotReadyAndShutdown(t *testing.T) {
	sc, conn := newTestServerContext(t)
	require.NoError(t, conn.Connect(context.Background()))
	h := NewHealthChecker(sc)

	h.SetReady(false)
	code, _ := getHealth(t, h.ReadinessHandler())
	assert.Equal(t, http.StatusServiceUnavailable, code)

	h.SetReady(true)
	require.NoError(t, sc.Shutdown(context.Background()))
	code, body := getHealth(t, h.ReadinessHandler())
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "shutting down", body["checks"].(map[string]any)["shutdown"])
}

func TestDetailedHealthHandler(t *testing.T) {
	sc, conn := newTestServerContext(t)
	h := NewHealthChecker(sc)

	code, body := getHealth(t, h.DetailedHealthHandler())
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "api", body["gateway"])
	assert.Equal(t, "not connected", body["provider"])

	require.NoError(t, conn.Connect(context.Background()))
	code, body = getHealth(t, h.DetailedHealthHandler())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestNilServerContextIsReady(t *testing.T) {
	code, _ := getHealth(t, NewHealthChecker(nil).ReadinessHandler())
	assert.Equal(t, http.StatusOK, code)
}

func TestServerContext_ShutdownHooksRunOnceInReverse(t *testing.T) {
	var order []string
	conn := connection.NewManager[*calendarapi.Service]("api", func(context.Context) (*calendarapi.Service, error) {
		return &calendarapi.Service{}, nil
	})
	eng := engine.New(calendar.NewAPIGateway(conn), retry.New(conn))

	sc, err := NewServerContext(context.Background(), eng,
		WithShutdownHook(func(context.Context) error { order = append(order, "first"); return nil }),
		WithShutdownHook(func(context.Context) error { order = append(order, "second"); return nil }),
	)
	require.NoError(t, err)

	require.NoError(t, sc.Shutdown(context.Background()))
	require.NoError(t, sc.Shutdown(context.Background()))

	assert.Equal(t, []string{"second", "first"}, order)
	assert.True(t, sc.IsShutdown())
	assert.Error(t, sc.Context().Err())
}

func TestNewServerContext_RequiresEngine(t *testing.T) {
	_, err := NewServerContext(context.Background(), nil)
	assert.Error(t, err)
}
