package importer

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

type RowStatus string

const (
	RowValid   RowStatus = "valid"
	RowWarning RowStatus = "warning"
	RowError   RowStatus = "error"
	RowSkipped RowStatus = "skipped"
)

type RowIssue struct {
	Field    string   `json:"field,omitempty"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// ValidatedRow is the typed view of one source row. Data only holds fields that had a value
// or a default, so updates never blank out columns the file did not carry.
type ValidatedRow struct {
	RowIndex         int                    `json:"row_index"`
	Data             map[string]interface{} `json:"data"`
	Raw              map[string]string      `json:"-"`
	Errors           []RowIssue             `json:"errors"`
	Status           RowStatus              `json:"status"`
	ExistingRecordID string                 `json:"existing_record_id,omitempty"`
}

func NewValidatedRow(rowIndex int, raw map[string]string) ValidatedRow {
	return ValidatedRow{
		RowIndex: rowIndex,
		Data:     make(map[string]interface{}),
		Raw:      raw,
		Errors:   []RowIssue{},
	}
}

func (r *ValidatedRow) AddError(field, msg string) {
	r.Errors = append(r.Errors, RowIssue{Field: field, Message: msg, Severity: SeverityError})
}

func (r *ValidatedRow) AddWarning(field, msg string) {
	r.Errors = append(r.Errors, RowIssue{Field: field, Message: msg, Severity: SeverityWarning})
}

// Finalize derives Status from the accumulated issues. Skipped rows stay skipped.
func (r *ValidatedRow) Finalize() {
	if r.Status == RowSkipped {
		return
	}
	r.Status = RowValid
	for _, issue := range r.Errors {
		switch issue.Severity {
		case SeverityError:
			r.Status = RowError
			return
		case SeverityWarning:
			r.Status = RowWarning
		}
	}
}

// Executable reports whether the row may be written.
func (r *ValidatedRow) Executable() bool {
	return r.Status == RowValid || r.Status == RowWarning
}

func (r *ValidatedRow) String(key string) string {
	s, _ := r.Data[key].(string)
	return s
}

func (r *ValidatedRow) Float(key string) (float64, bool) {
	f, ok := r.Data[key].(float64)
	return f, ok
}

func (r *ValidatedRow) Bool(key string) (bool, bool) {
	b, ok := r.Data[key].(bool)
	return b, ok
}

func (r *ValidatedRow) Strings(key string) []string {
	s, _ := r.Data[key].([]string)
	return s
}

func (r *ValidatedRow) Has(key string) bool {
	_, ok := r.Data[key]
	return ok
}

// MergeRowIssues attaches batch-level issues to their rows and refreshes each touched row's
// status. Skipped rows are left alone.
func MergeRowIssues(rows []ValidatedRow, issues []RowIssueAt) {
	if len(issues) == 0 {
		return
	}
	byIndex := make(map[int]int, len(rows))
	for i, r := range rows {
		byIndex[r.RowIndex] = i
	}
	for _, issue := range issues {
		i, ok := byIndex[issue.RowIndex]
		if !ok || rows[i].Status == RowSkipped {
			continue
		}
		rows[i].Errors = append(rows[i].Errors, issue.RowIssue)
		rows[i].Finalize()
	}
}
