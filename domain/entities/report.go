package entities

import (
	"strings"
)

// Report field names. These keys are part of the wire contract and must not
// be renamed.
const (
	FieldCustomer       = "customer"
	FieldProject        = "project"
	FieldBudget         = "budget"
	FieldSchedule       = "schedule"
	FieldNextAction     = "next_action"
	FieldParticipants   = "participants"
	FieldLocation       = "location"
	FieldIssues         = "issues"
	FieldDecisionMakers = "decision_makers"
	FieldConcerns       = "concerns"
	FieldCompetition    = "competition"
)

// SingularFields are write-once-if-empty: a later extraction never
// overwrites a non-empty value except through an explicit Correction.
var SingularFields = []string{
	FieldCustomer,
	FieldProject,
	FieldBudget,
	FieldSchedule,
	FieldLocation,
	FieldDecisionMakers,
}

// CumulativeFields accumulate values as a deduplicated ordered set.
var CumulativeFields = []string{
	FieldParticipants,
	FieldIssues,
	FieldNextAction,
	FieldConcerns,
	FieldCompetition,
}

// ReportFieldOrder is the stable key order used when serializing a report.
var ReportFieldOrder = []string{
	FieldCustomer,
	FieldProject,
	FieldBudget,
	FieldSchedule,
	FieldNextAction,
	FieldParticipants,
	FieldLocation,
	FieldIssues,
	FieldDecisionMakers,
	FieldConcerns,
	FieldCompetition,
}

var cumulativeSet = func() map[string]bool {
	m := make(map[string]bool, len(CumulativeFields))
	for _, f := range CumulativeFields {
		m[f] = true
	}
	return m
}()

var knownFieldSet = func() map[string]bool {
	m := make(map[string]bool, len(ReportFieldOrder))
	for _, f := range ReportFieldOrder {
		m[f] = true
	}
	return m
}()

// IsCumulativeField reports whether the field accumulates values.
func IsCumulativeField(field string) bool {
	return cumulativeSet[field]
}

// IsKnownField reports whether the field belongs to the report schema.
func IsKnownField(field string) bool {
	return knownFieldSet[field]
}

// Correction is an explicit instruction from the user's speech to replace a
// field's value wholesale, overriding the normal merge rules.
type Correction struct {
	Field    string `json:"field"`
	OldValue string `json:"old_value,omitempty"`
	NewValue string `json:"new_value"`
}

// Report is the structured visit report assembled over a session. Singular
// fields hold a scalar, cumulative fields a deduplicated ordered set. A
// Report is not safe for concurrent use; the owning session serializes
// access.
type Report struct {
	singular   map[string]string
	cumulative map[string][]string
}

// NewReport creates an empty report.
func NewReport() *Report {
	return &Report{
		singular:   make(map[string]string),
		cumulative: make(map[string][]string),
	}
}

// Singular returns the value of a singular field, empty if unset.
func (r *Report) Singular(field string) string {
	return r.singular[field]
}

// Cumulative returns a copy of a cumulative field's values.
func (r *Report) Cumulative(field string) []string {
	src := r.cumulative[field]
	if len(src) == 0 {
		return nil
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// IsEmpty reports whether the field holds no value yet.
func (r *Report) IsEmpty(field string) bool {
	if IsCumulativeField(field) {
		return len(r.cumulative[field]) == 0
	}
	return strings.TrimSpace(r.singular[field]) == ""
}

// ApplyCorrection replaces the named field's value wholesale. Cumulative
// fields are rebuilt from the delimited NewValue, singular fields assigned
// directly. Unknown fields are ignored.
func (r *Report) ApplyCorrection(c Correction) {
	if !IsKnownField(c.Field) {
		return
	}
	value := strings.TrimSpace(c.NewValue)
	if IsCumulativeField(c.Field) {
		if value == "" {
			delete(r.cumulative, c.Field)
			return
		}
		r.cumulative[c.Field] = SplitListValue(value)
		return
	}
	r.singular[c.Field] = value
}

// MergeValue merges one extracted value into the report following the field
// classification rules. skip marks fields already corrected in the same
// turn; those are left untouched. Returns true when the report changed.
func (r *Report) MergeValue(field string, value interface{}, skip map[string]bool) bool {
	if !IsKnownField(field) || skip[field] {
		return false
	}
	items := normalizeValue(value)
	if len(items) == 0 {
		return false
	}
	if IsCumulativeField(field) {
		return r.unionCumulative(field, items)
	}
	if strings.TrimSpace(r.singular[field]) != "" {
		// Write-once: an extraction never displaces an existing value.
		return false
	}
	r.singular[field] = strings.Join(items, "、")
	return true
}

// MergeExtracted merges a full extraction result, honoring the per-turn
// corrected-field skip set.
func (r *Report) MergeExtracted(slots map[string]interface{}, corrected map[string]bool) bool {
	changed := false
	for _, field := range ReportFieldOrder {
		value, ok := slots[field]
		if !ok {
			continue
		}
		if r.MergeValue(field, value, corrected) {
			changed = true
		}
	}
	return changed
}

func (r *Report) unionCumulative(field string, items []string) bool {
	seen := make(map[string]bool, len(r.cumulative[field]))
	for _, existing := range r.cumulative[field] {
		seen[existing] = true
	}
	changed := false
	for _, item := range items {
		if seen[item] {
			continue
		}
		seen[item] = true
		r.cumulative[field] = append(r.cumulative[field], item)
		changed = true
	}
	return changed
}

// EmptyFields returns the report fields still lacking a value, in the
// given priority order.
func (r *Report) EmptyFields(priority []string) []string {
	var empty []string
	for _, field := range priority {
		if r.IsEmpty(field) {
			empty = append(empty, field)
		}
	}
	return empty
}

// Snapshot serializes the report for the wire: singular fields as scalar or
// nil, cumulative fields always as arrays.
func (r *Report) Snapshot() map[string]interface{} {
	snap := make(map[string]interface{}, len(ReportFieldOrder))
	for _, field := range ReportFieldOrder {
		if IsCumulativeField(field) {
			values := r.cumulative[field]
			if values == nil {
				values = []string{}
			}
			out := make([]string, len(values))
			copy(out, values)
			snap[field] = out
			continue
		}
		if v := r.singular[field]; v != "" {
			snap[field] = v
		} else {
			snap[field] = nil
		}
	}
	return snap
}

// SplitListValue converts a comma or Japanese-comma delimited string into a
// deduplicated list preserving first-seen order.
func SplitListValue(value string) []string {
	parts := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == '、' || r == '，'
	})
	seen := make(map[string]bool, len(parts))
	var out []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" || seen[part] {
			continue
		}
		seen[part] = true
		out = append(out, part)
	}
	return out
}

// normalizeValue flattens an extracted slot value into a list of strings.
// The model may return a scalar, a delimited string, or an array.
func normalizeValue(value interface{}) []string {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		return SplitListValue(v)
	case []string:
		var out []string
		for _, item := range v {
			out = append(out, SplitListValue(item)...)
		}
		return dedupe(out)
	case []interface{}:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, SplitListValue(s)...)
			}
		}
		return dedupe(out)
	default:
		return nil
	}
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, item := range items {
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}
