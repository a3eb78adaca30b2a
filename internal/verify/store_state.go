package verify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"proctor/internal/fixture"
	"proctor/internal/models"
)

// StoreReader is the read-only slice of the fixture store the verifier
// needs. Reads observe committed state only.
type StoreReader interface {
	GetOrder(ctx context.Context, key models.OrderKey) (*fixture.OrderRecord, error)
}

// StoreState compares an expected subset of order fields against the
// record's committed state. String comparison is case-insensitive. A
// missing record is its own distinct failure, separate from any field
// mismatch. Lookup errors (connectivity) are returned to the caller,
// not folded into the result.
func StoreState(ctx context.Context, store StoreReader, key models.OrderKey, expected map[string]any) (models.VerificationResult, error) {
	record, err := store.GetOrder(ctx, key)
	if err != nil {
		return models.VerificationResult{}, err
	}

	if record == nil {
		return models.VerificationResult{
			Name:   "db_state",
			Passed: false,
			Details: map[string]any{
				"expected": expected,
			},
			Error: fmt.Sprintf("order not found: customer_id=%s, order_id=%d", key.CustomerID, key.OrderID),
		}, nil
	}

	actual := record.AsMap()
	mismatches := map[string]any{}
	for field, want := range expected {
		if field == "customer_id" || field == "order_id" {
			continue // key fields already matched by the lookup
		}
		got, known := actual[field]
		if !known {
			mismatches[field] = map[string]any{"expected": want, "actual": nil}
			continue
		}
		if !storeValueEqual(want, got) {
			mismatches[field] = map[string]any{"expected": want, "actual": got}
		}
	}

	result := models.VerificationResult{
		Name:   "db_state",
		Passed: len(mismatches) == 0,
		Details: map[string]any{
			"expected":   expected,
			"mismatches": mismatches,
		},
	}
	if !result.Passed {
		fields := make([]string, 0, len(mismatches))
		for f := range mismatches {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		result.Error = fmt.Sprintf("field mismatches: %s", strings.Join(fields, ", "))
	}
	return result, nil
}

// storeValueEqual compares an expected field value against the stored one.
// Strings compare case-insensitively; nil matches nil or the empty string.
func storeValueEqual(want, got any) bool {
	if want == nil {
		return got == nil || got == ""
	}
	if got == nil {
		return false
	}

	ws, wok := want.(string)
	gs, gok := got.(string)
	if wok && gok {
		return strings.EqualFold(strings.TrimSpace(ws), strings.TrimSpace(gs))
	}

	return looselyEqual(want, got)
}
