package errors

import (
	"strings"
	"testing"
)

// 同一行只保留首条诊断
func TestReporterFirstErrorPerLine(t *testing.T) {
	r := NewReporter()
	r.Report("test.obs", 10, "Undefined variable: 'x'")
	r.Report("test.obs", 10, "Invalid cast with classes: Int and System.Bool")

	if r.Count() != 1 {
		t.Fatalf("count = %d, want 1", r.Count())
	}
	d := r.DiagnosticAt(10)
	if d == nil || !strings.Contains(d.Message, "Undefined variable") {
		t.Errorf("first error not preserved: %v", d)
	}
}

// 渲染按行号排序
func TestReporterSortedRendering(t *testing.T) {
	r := NewReporter()
	r.Report("test.obs", 30, "third")
	r.Report("test.obs", 10, "first")
	r.Report("test.obs", 20, "second")

	diagnostics := r.Diagnostics()
	if len(diagnostics) != 3 {
		t.Fatalf("count = %d", len(diagnostics))
	}
	for i, want := range []int{10, 20, 30} {
		if diagnostics[i].Line != want {
			t.Errorf("diagnostics[%d].Line = %d, want %d", i, diagnostics[i].Line, want)
		}
	}

	var sb strings.Builder
	r.Render(&sb)
	rendered := sb.String()
	if strings.Index(rendered, "first") > strings.Index(rendered, "second") {
		t.Error("rendering not sorted by line")
	}
}

func TestReporterFormat(t *testing.T) {
	r := NewReporter()
	r.Report("test.obs", 5, "Parent call required")

	if got := r.Diagnostics()[0].String(); got != "test.obs:5: Parent call required" {
		t.Errorf("String() = %q", got)
	}
}

func TestInferCode(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"Undefined class: 'Foo'", E0100},
		{"Undefined variable: 'x'", E0102},
		{"Invalid cast with classes: Int and System.Bool", E0400},
		{"Not all methods have been implemented for the interface: Iter", E0501},
		{"Parent call required", E0503},
		{"Concrete class: 'String' is incompatible with backing class/interface 'Comparable'", E0602},
		{"All method/function paths must return a value", E0700},
		{"Breaks are only allowed in loops.", E0701},
		{"something unexpected", E0001},
	}
	for _, tt := range tests {
		if got := InferCode(tt.message); got != tt.want {
			t.Errorf("InferCode(%q) = %s, want %s", tt.message, got, tt.want)
		}
	}
}
