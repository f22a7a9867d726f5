// Package testutil holds shared helpers for handler and store tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dunning/pkg/platform/httputil"
)

// NewJSONRequest marshals body and builds a request the way a voice agent tool call arrives.
func NewJSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err, "marshal request body")
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func NewRequest(t *testing.T, method, path string) *http.Request {
	t.Helper()
	return httptest.NewRequest(method, path, nil)
}

// NewRequestWithBody sends body verbatim, for malformed or signed payloads.
func NewRequestWithBody(t *testing.T, method, path, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func DoRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// ReadBody returns the response body without draining the recorder, so
// several assertions can inspect the same response.
func ReadBody(t *testing.T, rr *httptest.ResponseRecorder) []byte {
	t.Helper()
	return rr.Body.Bytes()
}

func UnmarshalResponse[T any](t *testing.T, rr *httptest.ResponseRecorder) *T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(ReadBody(t, rr), &out), "decode response: %s", rr.Body.String())
	return &out
}

// ErrorBody decodes the body written by httputil.WriteError.
func ErrorBody(t *testing.T, rr *httptest.ResponseRecorder) httputil.ErrorResponse {
	t.Helper()
	return *UnmarshalResponse[httputil.ErrorResponse](t, rr)
}

// AssertStatusAndError checks the status and the error code of a failed request.
func AssertStatusAndError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	assert.Equal(t, status, rr.Code, "unexpected status, body: %s", rr.Body.String())
	assert.Equal(t, code, ErrorBody(t, rr).Error, "unexpected error code")
}

// AssertJSONContains checks a single top-level field of a JSON object response.
func AssertJSONContains(t *testing.T, rr *httptest.ResponseRecorder, key string, want any) {
	t.Helper()
	var fields map[string]any
	require.NoError(t, json.Unmarshal(ReadBody(t, rr), &fields), "decode response")
	assert.Equal(t, want, fields[key], "unexpected value for %q", key)
}
