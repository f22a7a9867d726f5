package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuditEvent_Category(t *testing.T) {
	assert.Equal(t, CategoryCompliance, EventComplianceRejected.Category())
	assert.Equal(t, CategorySecurity, EventWebhookRejected.Category())
	assert.Equal(t, CategoryOperations, EventWebhookReceived.Category())
	assert.Equal(t, CategoryOperations, AuditEvent("something_new").Category())
}

func TestSubjectHash(t *testing.T) {
	h := SubjectHash("600999")
	assert.Len(t, h, 64)
	assert.NotContains(t, h, "600999")
}
