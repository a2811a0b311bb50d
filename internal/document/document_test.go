/**
 * Document Type Tests
 *
 * Validates geometry helpers, the label vocabulary and the JSON shape of
 * results.
 */

package document

import (
	"encoding/json"
	"strings"
	"testing"
)

// TestBoundingBox verifies validity, extent and union computations.
func TestBoundingBox(t *testing.T) {
	testCases := []struct {
		name  string
		box   BoundingBox
		valid bool
	}{
		{name: "normal box", box: BoundingBox{X1: 10, Y1: 20, X2: 110, Y2: 70}, valid: true},
		{name: "zero width", box: BoundingBox{X1: 10, Y1: 20, X2: 10, Y2: 70}, valid: false},
		{name: "zero height", box: BoundingBox{X1: 10, Y1: 20, X2: 110, Y2: 20}, valid: false},
		{name: "inverted", box: BoundingBox{X1: 110, Y1: 70, X2: 10, Y2: 20}, valid: false},
		{name: "empty", box: BoundingBox{}, valid: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.box.Valid(); got != tc.valid {
				t.Errorf("Valid: got %v, want %v", got, tc.valid)
			}
		})
	}

	box := BoundingBox{X1: 10, Y1: 20, X2: 110, Y2: 70}
	if box.Width() != 100 || box.Height() != 50 {
		t.Errorf("Extent: got %dx%d, want 100x50", box.Width(), box.Height())
	}

	other := BoundingBox{X1: 100, Y1: 5, X2: 200, Y2: 60}
	want := BoundingBox{X1: 10, Y1: 5, X2: 200, Y2: 70}
	if got := box.Union(other); got != want {
		t.Errorf("Union: got %+v, want %+v", got, want)
	}
	// Union is symmetric.
	if got := other.Union(box); got != want {
		t.Errorf("Reversed union: got %+v, want %+v", got, want)
	}
}

// TestLabelVocabulary verifies the fixed id-to-tag table and out-of-range
// handling.
func TestLabelVocabulary(t *testing.T) {
	testCases := []struct {
		id             int
		wantName       string
		wantSimplified string
	}{
		{id: 0, wantName: "O", wantSimplified: "O"},
		{id: 1, wantName: "B-HEADER", wantSimplified: "HEADER"},
		{id: 2, wantName: "I-HEADER", wantSimplified: "HEADER"},
		{id: 3, wantName: "B-QUESTION", wantSimplified: "QUESTION"},
		{id: 4, wantName: "I-QUESTION", wantSimplified: "QUESTION"},
		{id: 5, wantName: "B-ANSWER", wantSimplified: "ANSWER"},
		{id: 6, wantName: "I-ANSWER", wantSimplified: "ANSWER"},
		{id: 7, wantName: "O", wantSimplified: "O"},
		{id: -1, wantName: "O", wantSimplified: "O"},
		{id: 99, wantName: "O", wantSimplified: "O"},
	}

	for _, tc := range testCases {
		label := Label(tc.id)
		if got := label.Name(); got != tc.wantName {
			t.Errorf("Label(%d).Name: got %q, want %q", tc.id, got, tc.wantName)
		}
		if got := label.Simplified(); got != tc.wantSimplified {
			t.Errorf("Label(%d).Simplified: got %q, want %q", tc.id, got, tc.wantSimplified)
		}
		wantBackground := tc.wantName == "O"
		if got := label.IsBackground(); got != wantBackground {
			t.Errorf("Label(%d).IsBackground: got %v, want %v", tc.id, got, wantBackground)
		}
	}
}

// TestSimplifyLabel verifies prefix stripping on raw tag names.
func TestSimplifyLabel(t *testing.T) {
	testCases := []struct {
		input string
		want  string
	}{
		{input: "B-HEADER", want: "HEADER"},
		{input: "I-ANSWER", want: "ANSWER"},
		{input: "O", want: "O"},
		{input: "QUESTION", want: "QUESTION"},
	}

	for _, tc := range testCases {
		if got := SimplifyLabel(tc.input); got != tc.want {
			t.Errorf("SimplifyLabel(%q): got %q, want %q", tc.input, got, tc.want)
		}
	}
}

// TestRounding verifies the presentation rounding helpers.
func TestRounding(t *testing.T) {
	confCases := []struct {
		in   float64
		want float64
	}{
		{in: 0.93456, want: 0.935},
		{in: 0.9344, want: 0.934},
		{in: 1.0, want: 1.0},
		{in: 0.0005, want: 0.001},
	}
	for _, tc := range confCases {
		if got := RoundConfidence(tc.in); got != tc.want {
			t.Errorf("RoundConfidence(%g): got %g, want %g", tc.in, got, tc.want)
		}
	}

	msCases := []struct {
		in   float64
		want float64
	}{
		{in: 123.456, want: 123.46},
		{in: 123.454, want: 123.45},
		{in: 0.004, want: 0.0},
	}
	for _, tc := range msCases {
		if got := RoundMillis(tc.in); got != tc.want {
			t.Errorf("RoundMillis(%g): got %g, want %g", tc.in, got, tc.want)
		}
	}
}

// TestEntityCount verifies counting across pages.
func TestEntityCount(t *testing.T) {
	result := &ProcessingResult{
		Results: []PageResult{
			{Page: 1, Entities: []Entity{{Text: "a"}, {Text: "b"}}},
			{Page: 2, Entities: []Entity{}},
			{Page: 3, Entities: []Entity{{Text: "c"}}},
		},
	}
	if got := result.EntityCount(); got != 3 {
		t.Errorf("EntityCount: got %d, want 3", got)
	}

	empty := &ProcessingResult{}
	if got := empty.EntityCount(); got != 0 {
		t.Errorf("Empty EntityCount: got %d, want 0", got)
	}
}

// TestResultJSONShape verifies the wire keys of success and error results.
func TestResultJSONShape(t *testing.T) {
	success := &ProcessingResult{
		Status:           "success",
		ProcessingTimeMS: 42.5,
		Results: []PageResult{{
			Page: 1,
			Entities: []Entity{{
				Text: "John Doe", Label: "ANSWER", Confidence: 0.93,
				BBox: BoundingBox{X1: 130, Y1: 50, X2: 230, Y2: 70},
			}},
		}},
		Metadata: &Metadata{ModelVersion: ModelVersion, OCREngine: "tesseract", ImageSize: []int{800, 600}},
	}

	data, err := json.Marshal(success)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	for _, key := range []string{
		`"status":"success"`, `"processing_time_ms":42.5`, `"page":1`,
		`"text":"John Doe"`, `"label":"ANSWER"`, `"confidence":0.93`,
		`"bbox":{"x1":130,"y1":50,"x2":230,"y2":70}`,
		`"model_version":"` + ModelVersion + `"`, `"image_size":[800,600]`,
	} {
		if !strings.Contains(string(data), key) {
			t.Errorf("Success JSON missing %s in %s", key, data)
		}
	}
	if strings.Contains(string(data), "total_pages") {
		t.Error("Single-image result carries total_pages")
	}

	failed := &ProcessingResult{Status: "error", Error: "PIPELINE_FAILED: boom"}
	data, err = json.Marshal(failed)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	for _, absent := range []string{"results", "metadata", "filename"} {
		if strings.Contains(string(data), absent) {
			t.Errorf("Error JSON carries %q: %s", absent, data)
		}
	}
	if !strings.Contains(string(data), `"error":"PIPELINE_FAILED: boom"`) {
		t.Errorf("Error JSON missing error field: %s", data)
	}
}
