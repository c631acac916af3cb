package importer

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/smartkubik/import-api/internal/models"
)

// ExecuteRows calls fn for each row in order. fn records its outcome in res. When a row fails
// and SkipErrors is off, the rest of the batch is marked skipped and not run. Only context
// cancellation is returned as an error.
func ExecuteRows(ctx context.Context, rows []ValidatedRow, ictx Context, res *BatchResult, fn func(ValidatedRow)) error {
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		before := res.Failed
		fn(row)
		if res.Failed > before && !ictx.Options.SkipErrors {
			for _, rest := range rows[i+1:] {
				res.Skip(rest, "", fmt.Sprintf("not processed: batch stopped after row %d failed", row.RowIndex))
			}
			return nil
		}
	}
	return nil
}

// Note attaches a message to a row without changing any counter.
func (r *BatchResult) Note(row ValidatedRow, field, msg string) {
	r.Errors = append(r.Errors, models.ImportError{
		RowIndex: row.RowIndex,
		Field:    field,
		Message:  msg,
		RawValue: row.Raw[field],
	})
}

// Changes compares the fields the row actually carried against the record's current values.
// It returns the new values to write and the previous values to snapshot. Fields filled only
// by a default are left alone so updates never reset columns absent from the file.
func Changes(row ValidatedRow, current map[string]interface{}) (next, previous map[string]interface{}) {
	next = make(map[string]interface{})
	previous = make(map[string]interface{})
	for key, cur := range current {
		val, ok := row.Data[key]
		if !ok || strings.TrimSpace(row.Raw[key]) == "" {
			continue
		}
		if sameValue(cur, val) {
			continue
		}
		next[key] = val
		previous[key] = cur
	}
	return next, previous
}

func sameValue(a, b interface{}) bool {
	switch av := a.(type) {
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	case int:
		if bv, ok := b.(float64); ok {
			return float64(av) == bv
		}
	case []string:
		bv, ok := b.([]string)
		if ok && len(av) == 0 && len(bv) == 0 {
			return true
		}
	}
	return reflect.DeepEqual(a, b)
}
