package importer

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/smartkubik/import-api/internal/importer/normalize"
)

// minSubstringMatch keeps short aliases like "id" from matching inside unrelated headers.
const minSubstringMatch = 3

// AutoMap assigns headers to fields. Exact matches against key, label and aliases are taken
// first for every field, then substring matches; each header is used at most once and the
// first header that matches a field wins. The result maps source header to field key.
func AutoMap(defs []FieldDefinition, headers []string) map[string]string {
	mapping := make(map[string]string)
	compact := make([]string, len(headers))
	for i, h := range headers {
		compact[i] = normalize.Compact(h)
	}
	used := make([]bool, len(headers))
	mapped := make(map[string]bool, len(defs))

	match := func(exact bool) {
		for _, def := range defs {
			if mapped[def.Key] {
				continue
			}
			candidates := candidatesFor(def)
		headers:
			for i, h := range headers {
				if used[i] || compact[i] == "" {
					continue
				}
				for _, c := range candidates {
					hit := compact[i] == c
					if !exact {
						hit = len(c) >= minSubstringMatch && strings.Contains(compact[i], c)
					}
					if hit {
						mapping[h] = def.Key
						used[i] = true
						mapped[def.Key] = true
						break headers
					}
				}
			}
		}
	}
	match(true)
	match(false)
	return mapping
}

func candidatesFor(def FieldDefinition) []string {
	out := make([]string, 0, len(def.Aliases)+2)
	seen := make(map[string]bool)
	for _, raw := range append([]string{def.Key, def.Label}, def.Aliases...) {
		c := normalize.Compact(raw)
		if c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// CheckMapping rejects targets that are not fields of the entity.
func CheckMapping(defs []FieldDefinition, mapping map[string]string) error {
	known := make(map[string]bool, len(defs))
	for _, d := range defs {
		known[d.Key] = true
	}
	for src, target := range mapping {
		if target == "" {
			continue
		}
		if !known[target] {
			return Preconditionf("column %q is mapped to unknown field %q", src, target)
		}
	}
	return nil
}

// MissingRequired lists required fields no column maps to and that have no default.
func MissingRequired(defs []FieldDefinition, mapping map[string]string) []FieldDefinition {
	targets := make(map[string]bool, len(mapping))
	for _, t := range mapping {
		targets[t] = true
	}
	var missing []FieldDefinition
	for _, d := range defs {
		if d.Required && d.DefaultValue == nil && !targets[d.Key] {
			missing = append(missing, d)
		}
	}
	return missing
}

// ApplyMapping rewrites a source row to field keys. When several columns feed the same
// field the first non-empty one, in header order, wins.
func ApplyMapping(mapping map[string]string, headers []string, row map[string]string, rowIndex int) MappedRow {
	out := MappedRow{RowIndex: rowIndex, Values: make(map[string]string, len(mapping))}
	order := headers
	if len(order) == 0 {
		order = make([]string, 0, len(mapping))
		for src := range mapping {
			order = append(order, src)
		}
		sort.Strings(order)
	}
	for _, src := range order {
		field, ok := mapping[src]
		if !ok || field == "" {
			continue
		}
		v := strings.TrimSpace(row[src])
		if prev, exists := out.Values[field]; exists && prev != "" {
			continue
		}
		out.Values[field] = v
	}
	return out
}

// ValidateFields applies defaults and types every field of a mapped row. Rows with no value in
// any field come back skipped. Entity rules are layered on top by each handler.
func ValidateFields(defs []FieldDefinition, row MappedRow) ValidatedRow {
	vr := NewValidatedRow(row.RowIndex, row.Values)

	empty := true
	for _, v := range row.Values {
		if strings.TrimSpace(v) != "" {
			empty = false
			break
		}
	}
	if empty {
		vr.Status = RowSkipped
		return vr
	}

	for _, def := range defs {
		raw := strings.TrimSpace(row.Values[def.Key])
		if raw == "" {
			if def.DefaultValue != nil {
				vr.Data[def.Key] = def.DefaultValue
			} else if def.Required {
				vr.AddError(def.Key, fmt.Sprintf("%s is required", def.Label))
			}
			continue
		}

		switch def.Type {
		case FieldString:
			if s := normalize.SanitizeString(raw); s != "" {
				vr.Data[def.Key] = s
			} else if def.Required {
				vr.AddError(def.Key, fmt.Sprintf("%s is required", def.Label))
			}
		case FieldNumber:
			if !hasDigit(raw) {
				vr.AddError(def.Key, fmt.Sprintf("%s must be a number", def.Label))
				continue
			}
			if def.Money {
				vr.Data[def.Key] = normalize.Amount(raw)
			} else if v, ok := normalize.Number(raw); ok && !looksLocalized(raw) {
				vr.Data[def.Key] = v
			} else {
				vr.Data[def.Key] = normalize.Amount(raw)
			}
		case FieldBoolean:
			v, ok := normalize.Boolean(raw)
			switch {
			case ok:
				vr.Data[def.Key] = v
			case def.DefaultValue != nil:
				vr.Data[def.Key] = def.DefaultValue
				vr.AddWarning(def.Key, fmt.Sprintf("%s value %q not recognised, using default", def.Label, raw))
			default:
				vr.AddError(def.Key, fmt.Sprintf("%s must be yes or no", def.Label))
			}
		case FieldDate:
			if t, ok := normalize.Date(raw); ok {
				vr.Data[def.Key] = t
			} else {
				vr.AddError(def.Key, fmt.Sprintf("%s is not a valid date", def.Label))
			}
		case FieldArray:
			if items := normalize.Array(raw, def.ArraySeparator); len(items) > 0 {
				for i := range items {
					items[i] = normalize.SanitizeString(items[i])
				}
				vr.Data[def.Key] = items
			}
		case FieldEnum:
			if v, ok := matchEnum(def.EnumValues, raw); ok {
				vr.Data[def.Key] = v
			} else {
				vr.AddError(def.Key, fmt.Sprintf("%s must be one of: %s", def.Label, strings.Join(def.EnumValues, ", ")))
			}
		}
	}
	return vr
}

func matchEnum(values []string, raw string) (string, bool) {
	want := normalize.Compact(raw)
	for _, v := range values {
		if normalize.Compact(v) == want {
			return v, true
		}
	}
	return "", false
}

func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// looksLocalized reports amounts such as "1.234,50", "$ 10" or "(5)" that need the locale
// aware parser.
func looksLocalized(s string) bool {
	if strings.Count(s, ".")+strings.Count(s, ",") > 1 {
		return true
	}
	return strings.ContainsAny(s, "()$€ ") || strings.HasSuffix(s, "Bs")
}

// KeyOf is the comparison form of a business key.
func KeyOf(raw string) string {
	return strings.ToUpper(normalize.SanitizeString(raw))
}

// DuplicateKeys flags every row whose key repeats an earlier row of the same file.
func DuplicateKeys(rows []MappedRow, field, label string, keyOf func(string) string) (warnings []string, issues []RowIssueAt) {
	if keyOf == nil {
		keyOf = KeyOf
	}
	first := make(map[string]int)
	for _, r := range rows {
		k := keyOf(r.Values[field])
		if k == "" {
			continue
		}
		firstRow, seen := first[k]
		if !seen {
			first[k] = r.RowIndex
			continue
		}
		msg := fmt.Sprintf("duplicate %s %q in file, first seen in row %d", label, r.Values[field], firstRow)
		warnings = append(warnings, fmt.Sprintf("row %d: %s", r.RowIndex, msg))
		issues = append(issues, RowIssueAt{
			RowIndex: r.RowIndex,
			RowIssue: RowIssue{Field: field, Message: msg, Severity: SeverityWarning},
		})
	}
	return warnings, issues
}
