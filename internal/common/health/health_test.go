package health

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestMultiChecker(t *testing.T) {
	startup := NewStartupCompleteChecker()
	listener := FuncChecker(func() error { return errors.New("listener disconnected") })
	mc := NewMultiChecker(startup)

	assert.EqualError(t, mc.Check(), "startup is not complete")
	startup.MarkComplete()
	assert.NoError(t, mc.Check())

	mc.Add(listener)
	assert.EqualError(t, mc.Check(), "listener disconnected")
}

func TestHealthHandler(t *testing.T) {
	startup := NewStartupCompleteChecker()
	mux := http.NewServeMux()
	SetupHttpMux(mux, startup)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "startup is not complete", rec.Body.String())

	startup.MarkComplete()
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
