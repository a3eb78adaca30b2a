package fixture

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"proctor/internal/models"
)

// Store tests need a local Postgres; set PROCTOR_TEST_DB=1 to enable them.
func testStore(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("PROCTOR_TEST_DB") == "" {
		t.Skip("set PROCTOR_TEST_DB=1 to run store tests against a local Postgres")
	}

	ctx := context.Background()
	cfg := Config{Database: "proctor_store_test", Password: os.Getenv("PGPASSWORD")}

	require.NoError(t, CreateStore(ctx, cfg))
	store, err := Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	require.NoError(t, store.CreateSchema(ctx))
	return store
}

func testBaseline() []OrderRecord {
	requested := "Requested"
	return []OrderRecord{
		{CustomerID: 1001, OrderID: 2001, ProductName: "Wireless Mouse", OrderDate: "2025-01-15", Quantity: 1, OrderAmount: 29.99, OrderStatus: "Delivered"},
		{CustomerID: 1001, OrderID: 2002, ProductName: "USB-C Hub", OrderDate: "2025-02-03", Quantity: 2, OrderAmount: 89.98, OrderStatus: "Delivered", ReturnStatus: &requested},
		{CustomerID: 1002, OrderID: 2003, ProductName: "Laptop Stand", OrderDate: "2025-03-01", Quantity: 1, OrderAmount: 45.00, OrderStatus: "Shipped"},
	}
}

func TestResetToBaselineIdempotent(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	store.SetBaseline(testBaseline())

	// N resets leave exactly the same state as one.
	for range 3 {
		require.NoError(t, store.ResetToBaseline(ctx))
		count, err := store.CountRecords(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 3, count)
	}

	record, err := store.GetOrder(ctx, models.OrderKey{CustomerID: "1001", OrderID: 2002})
	require.NoError(t, err)
	require.NotNil(t, record)
	require.Equal(t, "USB-C Hub", record.ProductName)
	require.Equal(t, "Requested", *record.ReturnStatus)
}

func TestResetRestoresMutations(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	store.SetBaseline(testBaseline())
	require.NoError(t, store.ResetToBaseline(ctx))

	_, err := store.pool.Exec(ctx,
		"UPDATE customer_data SET return_status = 'Completed' WHERE customer_id = 1001 AND order_id = 2002")
	require.NoError(t, err)

	require.NoError(t, store.ResetToBaseline(ctx))

	record, err := store.GetOrder(ctx, models.OrderKey{CustomerID: "1001", OrderID: 2002})
	require.NoError(t, err)
	require.Equal(t, "Requested", *record.ReturnStatus)
}

func TestGetOrderMissing(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	store.SetBaseline(testBaseline())
	require.NoError(t, store.ResetToBaseline(ctx))

	record, err := store.GetOrder(ctx, models.OrderKey{CustomerID: "1001", OrderID: 9999})
	require.NoError(t, err)
	require.Nil(t, record)
}

func TestResetWithoutBaseline(t *testing.T) {
	store := &Store{}
	err := store.ResetToBaseline(context.Background())
	require.ErrorIs(t, err, ErrNoBaseline)
}

func TestCustomerSummaryAndProductSearch(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	store.SetBaseline(testBaseline())
	require.NoError(t, store.ResetToBaseline(ctx))

	summary, err := store.GetCustomerSummary(ctx, "1001")
	require.NoError(t, err)
	require.Equal(t, 2, summary.TotalOrders)
	require.Equal(t, 1, summary.ReturnStatuses["Requested"])

	matches, err := store.GetOrdersByProduct(ctx, "1001", "usb-c")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.EqualValues(t, 2002, matches[0].OrderID)

	check, err := store.VerifyReturnStatus(ctx, models.OrderKey{CustomerID: "1001", OrderID: 2002}, "requested")
	require.NoError(t, err)
	require.True(t, check.Passed)
}
