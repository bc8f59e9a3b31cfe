package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchemaIsIdempotentDDL(t *testing.T) {
	s := Schema()
	for _, table := range []string{"products", "carts", "cart_items", "orders", "order_items", "saga_logs", "outbox_events", "submissions", "notifications"} {
		assert.Contains(t, s, "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
	assert.Contains(t, s, "CHECK (stock >= 0)")
	assert.NotContains(t, strings.ToUpper(s), "DROP ")
}
