package admin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReconcileReport(t *testing.T) {
	assert.Equal(t, "✅ All reaction counters match the ledger", ReconcileReport(0))
	assert.Equal(t, "🔧 Repaired counters on 1 material", ReconcileReport(1))
	assert.Equal(t, "🔧 Repaired counters on 3 materials", ReconcileReport(3))
}
