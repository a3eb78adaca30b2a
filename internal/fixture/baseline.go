package fixture

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LoadBaseline parses the canonical orders CSV into memory. The parsed
// records are reused for every reset; the file is never re-read. Returns a
// not-found error (errors.Is with fs.ErrNotExist) if the source is absent,
// and fails loudly on any malformed row.
func LoadBaseline(path string) ([]OrderRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("baseline: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("baseline: parse %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("baseline: %s is empty (no header row)", path)
	}

	headers := rows[0]
	records := make([]OrderRecord, 0, len(rows)-1)

	for i, row := range rows[1:] {
		if len(row) != len(headers) {
			return nil, fmt.Errorf("baseline: row %d has %d columns, expected %d", i+2, len(row), len(headers))
		}

		fields := make(map[string]*string, len(headers))
		for j, h := range headers {
			col, known := csvColumns[h]
			if !known {
				continue
			}
			fields[col] = normalizeCell(row[j])
		}

		record, err := recordFromFields(fields)
		if err != nil {
			return nil, fmt.Errorf("baseline: row %d: %w", i+2, err)
		}
		records = append(records, record)
	}

	return records, nil
}

// normalizeCell maps empty and placeholder-empty cell values to nil.
func normalizeCell(value string) *string {
	v := strings.TrimSpace(value)
	if v == "" || v == `""` {
		return nil
	}
	return &v
}

func recordFromFields(fields map[string]*string) (OrderRecord, error) {
	var r OrderRecord
	var err error

	if r.CustomerID, err = requiredInt(fields, "customer_id"); err != nil {
		return r, err
	}
	if r.OrderID, err = requiredInt(fields, "order_id"); err != nil {
		return r, err
	}
	if v := fields["product_name"]; v == nil {
		return r, fmt.Errorf("product_name is empty")
	} else {
		r.ProductName = *v
	}

	r.ProductDescription = stringOrEmpty(fields["product_description"])
	r.OrderDate = stringOrEmpty(fields["order_date"])
	r.OrderStatus = stringOrEmpty(fields["order_status"])

	if v := fields["quantity"]; v != nil {
		if r.Quantity, err = strconv.ParseInt(*v, 10, 64); err != nil {
			return r, fmt.Errorf("quantity %q: %w", *v, err)
		}
	}
	if v := fields["order_amount"]; v != nil {
		if r.OrderAmount, err = strconv.ParseFloat(*v, 64); err != nil {
			return r, fmt.Errorf("order_amount %q: %w", *v, err)
		}
	}

	r.ReturnStatus = fields["return_status"]
	r.ReturnStartDate = fields["return_start_date"]
	r.ReturnReceivedDate = fields["return_received_date"]
	r.ReturnCompletedDate = fields["return_completed_date"]
	r.ReturnReason = fields["return_reason"]
	r.Notes = fields["notes"]

	return r, nil
}

func requiredInt(fields map[string]*string, col string) (int64, error) {
	v := fields[col]
	if v == nil {
		return 0, fmt.Errorf("%s is empty", col)
	}
	n, err := strconv.ParseInt(*v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", col, *v, err)
	}
	return n, nil
}

func stringOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
