package output

import (
	"bytes"
	"math"
	"strings"
	"testing"
)

type row struct {
	Kind  string   `json:"kind"`
	Count int      `json:"count"`
	First *float64 `json:"first,omitempty"`
	Path  string   `json:"path" table:"wide"`
	Raw   []int    `json:"-" table:"-"`
}

func ptr(f float64) *float64 { return &f }

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{" yaml ", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
			}
		})
	}
}

func TestNewFormatter(t *testing.T) {
	if _, ok := NewFormatter(FormatJSON, false).(*JSONFormatter); !ok {
		t.Error("json: wrong formatter")
	}
	if _, ok := NewFormatter(FormatYAML, false).(*YAMLFormatter); !ok {
		t.Error("yaml: wrong formatter")
	}
	tf, ok := NewFormatter("unknown", true).(*TableFormatter)
	if !ok || !tf.Wide {
		t.Error("default should be a wide table formatter")
	}
}

func TestTableFormatter_Slice(t *testing.T) {
	data := []row{
		{Kind: "slices", Count: 3, First: ptr(0.5), Path: "/r/slices"},
		{Kind: "spectra", Count: 0},
	}

	var buf bytes.Buffer
	if err := (&TableFormatter{}).Format(&buf, data); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if fields := strings.Fields(lines[0]); strings.Join(fields, " ") != "KIND COUNT FIRST" {
		t.Errorf("headers = %v", fields)
	}
	if fields := strings.Fields(lines[1]); strings.Join(fields, " ") != "slices 3 0.5" {
		t.Errorf("row 1 = %v", fields)
	}
	if fields := strings.Fields(lines[2]); strings.Join(fields, " ") != "spectra 0 -" {
		t.Errorf("row 2 = %v", fields)
	}

	buf.Reset()
	if err := (&TableFormatter{Wide: true, NoHeaders: true}).Format(&buf, data); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if strings.Contains(buf.String(), "KIND") || !strings.Contains(buf.String(), "/r/slices") {
		t.Errorf("wide no-header output:\n%s", buf.String())
	}
}

func TestTableFormatter_StructAndMap(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TableFormatter{}).Format(&buf, &row{Kind: "full_box", Count: 2}); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "FIELD") || !strings.Contains(out, "full_box") {
		t.Errorf("struct output:\n%s", out)
	}

	buf.Reset()
	if err := (&TableFormatter{}).Format(&buf, map[string]int{"b": 2, "a": 1}); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[1], "a") || !strings.HasPrefix(lines[2], "b") {
		t.Errorf("map rows not sorted:\n%s", buf.String())
	}
}

func TestTableFormatter_Table(t *testing.T) {
	tbl := &Table{}
	tbl.SetHeaders("NAME", "SHAPE")
	tbl.AddRow("phi", "4x4")

	var buf bytes.Buffer
	if err := (&TableFormatter{}).Format(&buf, tbl); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if !strings.Contains(buf.String(), "NAME") || !strings.Contains(buf.String(), "4x4") {
		t.Errorf("output:\n%s", buf.String())
	}

	buf.Reset()
	if err := (&TableFormatter{}).Format(&buf, nil); err != nil || buf.Len() != 0 {
		t.Errorf("Format(nil) = %q, %v", buf.String(), err)
	}
}

func TestTableFormatter_ScalarFallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TableFormatter{}).Format(&buf, 42); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if strings.TrimSpace(buf.String()) != "42" {
		t.Errorf("output = %q", buf.String())
	}
}

func TestFormatValue_Cells(t *testing.T) {
	tbl, err := toTable([]struct {
		Shape []int   `json:"shape"`
		Min   float64 `json:"min"`
		Tiny  float32 `json:"tiny"`
	}{{Shape: []int{2, 3, 4}, Min: math.NaN(), Tiny: 0.25}}, false)
	if err != nil {
		t.Fatalf("toTable() error = %v", err)
	}
	got := strings.Join(tbl.Rows[0], " ")
	if got != "2x3x4 nan 0.25" {
		t.Errorf("row = %q", got)
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONFormatter{}).Format(&buf, row{Kind: "slices", Count: 1}); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"kind": "slices"`) || strings.Contains(out, "first") {
		t.Errorf("output:\n%s", out)
	}
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	data := []row{{Kind: "slices", Count: 3, First: ptr(0.5), Path: "007"}}
	if err := (&YAMLFormatter{}).Format(&buf, data); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	want := "- kind: slices\n  count: 3\n  first: 0.5\n  path: \"007\"\n"
	if buf.String() != want {
		t.Errorf("output =\n%s\nwant\n%s", buf.String(), want)
	}

	buf.Reset()
	if err := (&YAMLFormatter{}).Format(&buf, nil); err != nil {
		t.Fatalf("Format(nil) error = %v", err)
	}
	if strings.TrimSpace(buf.String()) != "null" {
		t.Errorf("Format(nil) = %q", buf.String())
	}
}
