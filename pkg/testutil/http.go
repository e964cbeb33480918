// Package testutil holds helpers shared by handler and integration tests.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// Serve runs one request against handler and returns the recorder.
func Serve(handler http.Handler, method, path string, body io.Reader) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(method, path, body))
	return rr
}

// Get is Serve for a bodiless GET.
func Get(handler http.Handler, path string) *httptest.ResponseRecorder {
	return Serve(handler, http.MethodGet, path, nil)
}

// DecodeJSON unmarshals the response body, failing the test on error.
func DecodeJSON[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), "decode response: %s", rr.Body.String())
	return out
}
