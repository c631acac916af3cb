package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
)

type columnKind int

const (
	kindText columnKind = iota
	kindFloat
	kindInt
	kindBool
	kindTextArray
	kindTimestamp
)

type column struct {
	name string
	kind columnKind
}

// updatable maps import field keys to the columns an import may write.
type updatable map[string]column

// buildUpdate renders a tenant-scoped UPDATE for the given fields. $1 is the tenant and $2 the
// record id; columns follow in key order.
func (u updatable) buildUpdate(table string, tenantID, id string, fields map[string]interface{}) (string, []interface{}, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sets := make([]string, 0, len(keys)+1)
	args := []interface{}{tenantID, id}
	for _, k := range keys {
		col, ok := u[k]
		if !ok {
			return "", nil, errors.Errorf("%s: field %q is not updatable", table, k)
		}
		v, err := col.coerce(fields[k])
		if err != nil {
			return "", nil, errors.Wrapf(err, "%s.%s", table, col.name)
		}
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col.name, len(args)))
	}
	sets = append(sets, "updated_at = NOW()")
	query := fmt.Sprintf("UPDATE %s SET %s WHERE tenant_id = $1 AND id = $2", table, strings.Join(sets, ", "))
	return query, args, nil
}

// coerce converts values coming from a validated row or from a JSON decoded snapshot into
// the column's driver type.
func (c column) coerce(v interface{}) (interface{}, error) {
	switch c.kind {
	case kindText:
		if v == nil {
			return "", nil
		}
		if s, ok := v.(string); ok {
			return s, nil
		}
		return fmt.Sprint(v), nil
	case kindFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		case json.Number:
			return n.Float64()
		case nil:
			return 0.0, nil
		}
	case kindInt:
		switch n := v.(type) {
		case int:
			return n, nil
		case float64:
			return int(n), nil
		case nil:
			return 0, nil
		}
	case kindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case kindTextArray:
		switch l := v.(type) {
		case nil:
			return pq.StringArray{}, nil
		case []string:
			return pq.StringArray(l), nil
		case []interface{}:
			out := make(pq.StringArray, 0, len(l))
			for _, item := range l {
				out = append(out, fmt.Sprint(item))
			}
			return out, nil
		}
	case kindTimestamp:
		switch t := v.(type) {
		case nil:
			return sql.NullTime{}, nil
		case time.Time:
			return t, nil
		case string:
			parsed, err := time.Parse(time.RFC3339Nano, t)
			if err != nil {
				return nil, err
			}
			return parsed, nil
		}
	}
	return nil, errors.Errorf("unsupported value %T", v)
}

// jsonArg encodes v for a JSONB parameter. Empty values are stored as NULL.
func jsonArg(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if s := string(b); s != "null" {
		return s, nil
	}
	return nil, nil
}

func decodeJSON(raw []byte, dst interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func timeArg(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}
