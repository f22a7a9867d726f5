package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchema_DeclaresUniquenessKeys(t *testing.T) {
	ddl := Schema()
	assert.Contains(t, ddl, "call_id       TEXT PRIMARY KEY")
	assert.Contains(t, ddl, "event_hash  TEXT NOT NULL UNIQUE")
	assert.Contains(t, ddl, "resident_id        TEXT PRIMARY KEY")
	assert.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS audit_events")
}
