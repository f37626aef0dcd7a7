package billing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// The scheduler writes line totals to delivery_items.total_amount; the
// period aggregation must read that same column.
func TestDeliveredTotalsReadsItemTotalAmount(t *testing.T) {
	require.Contains(t, deliveredTotalsQuery, "SUM(di.total_amount)")
}
