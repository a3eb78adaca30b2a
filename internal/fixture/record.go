// Package fixture owns the isolated data store used for evaluation: a
// Postgres database that can be reset to a known baseline dataset before
// every task, plus the read-only lookups the verifier needs.
package fixture

// Store column names, in insert order. The baseline CSV headers map onto
// these via csvColumns.
var storeColumns = []string{
	"customer_id",
	"order_id",
	"product_name",
	"product_description",
	"order_date",
	"quantity",
	"order_amount",
	"order_status",
	"return_status",
	"return_start_date",
	"return_received_date",
	"return_completed_date",
	"return_reason",
	"notes",
}

// csvColumns maps baseline CSV headers to store column names.
var csvColumns = map[string]string{
	"CID":                 "customer_id",
	"OrderID":             "order_id",
	"product_name":        "product_name",
	"product_description": "product_description",
	"OrderDate":           "order_date",
	"Quantity":            "quantity",
	"OrderAmount":         "order_amount",
	"OrderStatus":         "order_status",
	"ReturnStatus":        "return_status",
	"ReturnStartDate":     "return_start_date",
	"ReturnReceivedDate":  "return_received_date",
	"ReturnCompletedDate": "return_completed_date",
	"ReturnReason":        "return_reason",
	"Notes":               "notes",
}

// OrderRecord is one order/return row. Pointer fields are nullable in the
// store; empty or placeholder-empty CSV cells normalize to nil.
type OrderRecord struct {
	CustomerID          int64   `json:"customer_id"`
	OrderID             int64   `json:"order_id"`
	ProductName         string  `json:"product_name"`
	ProductDescription  string  `json:"product_description"`
	OrderDate           string  `json:"order_date"`
	Quantity            int64   `json:"quantity"`
	OrderAmount         float64 `json:"order_amount"`
	OrderStatus         string  `json:"order_status"`
	ReturnStatus        *string `json:"return_status"`
	ReturnStartDate     *string `json:"return_start_date"`
	ReturnReceivedDate  *string `json:"return_received_date"`
	ReturnCompletedDate *string `json:"return_completed_date"`
	ReturnReason        *string `json:"return_reason"`
	Notes               *string `json:"notes"`
}

// AsMap returns the record keyed by store column name, with nullable fields
// flattened (nil for unset). Used by the verifier to compare expected field
// values by name.
func (r *OrderRecord) AsMap() map[string]any {
	return map[string]any{
		"customer_id":           r.CustomerID,
		"order_id":              r.OrderID,
		"product_name":          r.ProductName,
		"product_description":   r.ProductDescription,
		"order_date":            r.OrderDate,
		"quantity":              r.Quantity,
		"order_amount":          r.OrderAmount,
		"order_status":          r.OrderStatus,
		"return_status":         deref(r.ReturnStatus),
		"return_start_date":     deref(r.ReturnStartDate),
		"return_received_date":  deref(r.ReturnReceivedDate),
		"return_completed_date": deref(r.ReturnCompletedDate),
		"return_reason":         deref(r.ReturnReason),
		"notes":                 deref(r.Notes),
	}
}

func deref(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// insertArgs returns the record's values in storeColumns order.
func (r *OrderRecord) insertArgs() []any {
	return []any{
		r.CustomerID,
		r.OrderID,
		r.ProductName,
		r.ProductDescription,
		r.OrderDate,
		r.Quantity,
		r.OrderAmount,
		r.OrderStatus,
		r.ReturnStatus,
		r.ReturnStartDate,
		r.ReturnReceivedDate,
		r.ReturnCompletedDate,
		r.ReturnReason,
		r.Notes,
	}
}
