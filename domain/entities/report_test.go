package entities

import (
	"reflect"
	"testing"
)

func TestMergeValueSingularWriteOnce(t *testing.T) {
	r := NewReport()

	if !r.MergeValue(FieldCustomer, "田中建設", nil) {
		t.Fatal("Expected first merge to change the report")
	}
	if r.MergeValue(FieldCustomer, "佐藤工務店", nil) {
		t.Error("Expected second merge on a filled singular field to be a no-op")
	}
	if got := r.Singular(FieldCustomer); got != "田中建設" {
		t.Errorf("Expected customer to stay 田中建設, got %q", got)
	}
}

func TestMergeValueCumulativeUnion(t *testing.T) {
	r := NewReport()

	r.MergeValue(FieldParticipants, "田中様、鈴木様", nil)
	r.MergeValue(FieldParticipants, []interface{}{"鈴木様", "山本様"}, nil)

	want := []string{"田中様", "鈴木様", "山本様"}
	if got := r.Cumulative(FieldParticipants); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected union %v, got %v", want, got)
	}

	// Merge order changes ordering but never the membership.
	r2 := NewReport()
	r2.MergeValue(FieldParticipants, []interface{}{"鈴木様", "山本様"}, nil)
	r2.MergeValue(FieldParticipants, "田中様、鈴木様", nil)
	if got := len(r2.Cumulative(FieldParticipants)); got != 3 {
		t.Errorf("Expected 3 participants regardless of merge order, got %d", got)
	}
}

func TestMergeValueSkipsCorrectedFields(t *testing.T) {
	r := NewReport()
	r.ApplyCorrection(Correction{Field: FieldCustomer, NewValue: "佐藤工務店"})

	corrected := map[string]bool{FieldCustomer: true}
	if r.MergeValue(FieldCustomer, "田中建設", corrected) {
		t.Error("Expected merge to skip a field corrected in the same turn")
	}
	if got := r.Singular(FieldCustomer); got != "佐藤工務店" {
		t.Errorf("Expected corrected value to survive the merge, got %q", got)
	}
}

func TestApplyCorrectionReplacesWholesale(t *testing.T) {
	r := NewReport()
	r.MergeValue(FieldCustomer, "田中建設", nil)
	r.MergeValue(FieldIssues, "予算超過、納期遅延", nil)

	r.ApplyCorrection(Correction{Field: FieldCustomer, OldValue: "田中建設", NewValue: "田中工業"})
	if got := r.Singular(FieldCustomer); got != "田中工業" {
		t.Errorf("Expected customer replaced, got %q", got)
	}

	r.ApplyCorrection(Correction{Field: FieldIssues, NewValue: "人員不足"})
	want := []string{"人員不足"}
	if got := r.Cumulative(FieldIssues); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected cumulative field rebuilt from correction, got %v", got)
	}

	// Unknown fields are ignored rather than invented.
	r.ApplyCorrection(Correction{Field: "weather", NewValue: "晴れ"})
	if _, ok := r.Snapshot()["weather"]; ok {
		t.Error("Expected unknown correction field to be ignored")
	}
}

func TestMergeExtracted(t *testing.T) {
	r := NewReport()
	changed := r.MergeExtracted(map[string]interface{}{
		FieldCustomer:     "田中建設",
		FieldParticipants: []interface{}{"田中様"},
		"unknown_field":   "ignored",
	}, nil)

	if !changed {
		t.Fatal("Expected merge to report a change")
	}
	if r.IsEmpty(FieldCustomer) || r.IsEmpty(FieldParticipants) {
		t.Error("Expected both fields filled")
	}
	if changed := r.MergeExtracted(map[string]interface{}{FieldCustomer: "別の会社"}, nil); changed {
		t.Error("Expected redundant merge to report no change")
	}
}

func TestEmptyFieldsFollowsPriority(t *testing.T) {
	r := NewReport()
	r.MergeValue(FieldCustomer, "田中建設", nil)

	priority := []string{FieldCustomer, FieldProject, FieldNextAction}
	want := []string{FieldProject, FieldNextAction}
	if got := r.EmptyFields(priority); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected empty fields %v, got %v", want, got)
	}
}

func TestSnapshotShape(t *testing.T) {
	r := NewReport()
	r.MergeValue(FieldCustomer, "田中建設", nil)
	r.MergeValue(FieldIssues, "予算超過", nil)

	snap := r.Snapshot()
	if len(snap) != len(ReportFieldOrder) {
		t.Fatalf("Expected %d keys, got %d", len(ReportFieldOrder), len(snap))
	}
	if snap[FieldCustomer] != "田中建設" {
		t.Errorf("Expected customer scalar, got %v", snap[FieldCustomer])
	}
	if snap[FieldProject] != nil {
		t.Errorf("Expected empty singular field to be nil, got %v", snap[FieldProject])
	}
	if values, ok := snap[FieldParticipants].([]string); !ok || len(values) != 0 {
		t.Errorf("Expected empty cumulative field to be an empty array, got %v", snap[FieldParticipants])
	}
	if values, ok := snap[FieldIssues].([]string); !ok || len(values) != 1 {
		t.Errorf("Expected issues as single-element array, got %v", snap[FieldIssues])
	}

	// The snapshot is detached from the report.
	snap[FieldCustomer] = "改ざん"
	if got := r.Singular(FieldCustomer); got != "田中建設" {
		t.Errorf("Expected snapshot mutation not to touch the report, got %q", got)
	}
}

func TestSplitListValue(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"ascii comma", "a, b, c", []string{"a", "b", "c"}},
		{"japanese comma", "田中様、鈴木様", []string{"田中様", "鈴木様"}},
		{"fullwidth comma", "a，b", []string{"a", "b"}},
		{"dedup and trim", " a ,a, ,b", []string{"a", "b"}},
		{"empty", "  ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SplitListValue(tt.input); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitListValue(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
