package providers

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	dErrors "dunning/pkg/domain-errors"
)

func TestFromStatus(t *testing.T) {
	cases := []struct {
		status    int
		category  ErrorCategory
		retryable bool
	}{
		{http.StatusUnauthorized, ErrorAuthentication, false},
		{http.StatusForbidden, ErrorAuthentication, false},
		{http.StatusNotFound, ErrorNotFound, false},
		{http.StatusTooManyRequests, ErrorRateLimited, true},
		{http.StatusGatewayTimeout, ErrorTimeout, true},
		{http.StatusBadGateway, ErrorProviderOutage, true},
		{http.StatusBadRequest, ErrorRejected, false},
		{http.StatusUnprocessableEntity, ErrorRejected, false},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.status), func(t *testing.T) {
			pe := FromStatus("vapi", "initiate_call", tc.status, `{"message":"nope"}`)
			assert.Equal(t, tc.category, pe.Category)
			assert.Equal(t, tc.retryable, pe.Retryable)
			assert.Equal(t, tc.status, pe.StatusCode)
			assert.Contains(t, pe.Error(), `{"message":"nope"}`)
		})
	}
}

func TestFromTransport(t *testing.T) {
	assert.Equal(t, ErrorTimeout, FromTransport("retell", "get_call", context.DeadlineExceeded).Category)
	assert.Equal(t, ErrorProviderOutage, FromTransport("retell", "get_call", assert.AnError).Category)
}

func TestToDomain(t *testing.T) {
	assert.Nil(t, ToDomain(nil, "x"))

	err := ToDomain(fmt.Errorf("wrapped: %w", FromStatus("twilio", "send_sms", 400, "bad number")), "sms provider rejected the request")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeProvider))
	assert.Equal(t, ErrorRejected, GetCategory(err))

	err = ToDomain(FromTransport("google", "list_events", context.DeadlineExceeded), "calendar timed out")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
	assert.True(t, IsRetryable(err))
}

func TestGetCategory_UnknownIsInternal(t *testing.T) {
	assert.Equal(t, ErrorInternal, GetCategory(assert.AnError))
	assert.False(t, IsRetryable(assert.AnError))
}
