/**
 * Prediction Postprocessing Tests
 *
 * Validates the token-to-entity decode and the horizontal aggregation:
 * - First subword token decides a word's label and confidence
 * - Background and below-threshold predictions are dropped
 * - Same-label neighbors within the merge gap collapse into one entity
 * - Aggregation is idempotent
 */

package processor

import (
	"reflect"
	"testing"

	"github.com/formlens/docextract/internal/document"
	"github.com/formlens/docextract/internal/model"
)

// TestDecodeEntitiesFirstTokenWins verifies that only the first token of
// each word contributes, even when later tokens disagree.
func TestDecodeEntitiesFirstTokenWins(t *testing.T) {
	inf := &model.InferenceResult{
		// [CLS], "Name:" x2 subwords, "John", [SEP]
		Predictions: []int{0, int(document.LabelBQuestion), int(document.LabelBAnswer), int(document.LabelBAnswer), 0},
		Confidences: []float64{0.99, 0.91, 0.40, 0.95, 0.99},
		WordIDs:     []int{model.NoWord, 0, 0, 1, model.NoWord},
		Words:       []string{"Name:", "John"},
		Boxes: []document.BoundingBox{
			{X1: 10, Y1: 50, X2: 60, Y2: 70},
			{X1: 130, Y1: 50, X2: 180, Y2: 70},
		},
	}

	entities := DecodeEntities(inf, 0.5)

	if len(entities) != 2 {
		t.Fatalf("Entity count mismatch: got %d, want 2", len(entities))
	}
	if entities[0].Label != "QUESTION" {
		t.Errorf("First word label: got %q, want QUESTION (first token decides)", entities[0].Label)
	}
	if entities[0].Confidence != 0.91 {
		t.Errorf("First word confidence: got %g, want 0.91", entities[0].Confidence)
	}
	if entities[1].Text != "John" || entities[1].Label != "ANSWER" {
		t.Errorf("Second entity: got %q/%q, want John/ANSWER", entities[1].Text, entities[1].Label)
	}
}

// TestDecodeEntitiesConsumedBeforeFilter verifies that a word whose first
// token is filtered out stays gone: later tokens never resurrect it.
func TestDecodeEntitiesConsumedBeforeFilter(t *testing.T) {
	testCases := []struct {
		name        string
		predictions []int
		confidences []float64
	}{
		{
			name:        "first token is background",
			predictions: []int{0, int(document.LabelBAnswer)},
			confidences: []float64{0.99, 0.99},
		},
		{
			name:        "first token below threshold",
			predictions: []int{int(document.LabelBAnswer), int(document.LabelBAnswer)},
			confidences: []float64{0.10, 0.99},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			inf := &model.InferenceResult{
				Predictions: tc.predictions,
				Confidences: tc.confidences,
				WordIDs:     []int{0, 0}, // both tokens belong to the same word
				Words:       []string{"hello"},
				Boxes:       []document.BoundingBox{{X1: 0, Y1: 0, X2: 10, Y2: 10}},
			}

			entities := DecodeEntities(inf, 0.5)
			if len(entities) != 0 {
				t.Errorf("Entity count: got %d, want 0 (second token must not revive the word)", len(entities))
			}
		})
	}
}

// TestDecodeEntitiesThreshold verifies the strict comparison: equal
// confidence passes, anything below does not.
func TestDecodeEntitiesThreshold(t *testing.T) {
	inf := &model.InferenceResult{
		Predictions: []int{int(document.LabelBHeader), int(document.LabelBQuestion), int(document.LabelBAnswer)},
		Confidences: []float64{0.50, 0.49, 0.51},
		WordIDs:     []int{0, 1, 2},
		Words:       []string{"Invoice", "Date:", "2024-01-01"},
		Boxes: []document.BoundingBox{
			{X1: 0, Y1: 0, X2: 80, Y2: 20},
			{X1: 0, Y1: 30, X2: 40, Y2: 50},
			{X1: 50, Y1: 30, X2: 140, Y2: 50},
		},
	}

	testCases := []struct {
		name      string
		threshold float64
		wantTexts []string
	}{
		{name: "exact confidence passes", threshold: 0.5, wantTexts: []string{"Invoice", "2024-01-01"}},
		{name: "zero threshold keeps all", threshold: 0.0, wantTexts: []string{"Invoice", "Date:", "2024-01-01"}},
		{name: "threshold above one drops all", threshold: 1.01, wantTexts: []string{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			entities := DecodeEntities(inf, tc.threshold)

			texts := make([]string, 0, len(entities))
			for _, e := range entities {
				texts = append(texts, e.Text)
			}
			if !reflect.DeepEqual(texts, tc.wantTexts) {
				t.Errorf("Kept words: got %v, want %v", texts, tc.wantTexts)
			}
		})
	}
}

// TestDecodeEntitiesBackgroundAndUnknown verifies that background and
// out-of-vocabulary predictions never become entities.
func TestDecodeEntitiesBackgroundAndUnknown(t *testing.T) {
	inf := &model.InferenceResult{
		Predictions: []int{0, 99, -3, int(document.LabelIAnswer)},
		Confidences: []float64{0.9, 0.9, 0.9, 0.9},
		WordIDs:     []int{0, 1, 2, 3},
		Words:       []string{"a", "b", "c", "d"},
		Boxes: []document.BoundingBox{
			{X1: 0, Y1: 0, X2: 5, Y2: 5},
			{X1: 10, Y1: 0, X2: 15, Y2: 5},
			{X1: 20, Y1: 0, X2: 25, Y2: 5},
			{X1: 30, Y1: 0, X2: 35, Y2: 5},
		},
	}

	entities := DecodeEntities(inf, 0.5)
	if len(entities) != 1 {
		t.Fatalf("Entity count: got %d, want 1", len(entities))
	}
	if entities[0].Text != "d" || entities[0].Label != "ANSWER" {
		t.Errorf("Surviving entity: got %q/%q, want d/ANSWER (I- prefix stripped)", entities[0].Text, entities[0].Label)
	}
}

// TestDecodeEntitiesRaggedInput verifies tolerance for misaligned or
// out-of-range token data.
func TestDecodeEntitiesRaggedInput(t *testing.T) {
	inf := &model.InferenceResult{
		// Second prediction has no word id entry, third points past Words.
		Predictions: []int{int(document.LabelBAnswer), int(document.LabelBAnswer), int(document.LabelBAnswer)},
		Confidences: []float64{0.9},
		WordIDs:     []int{0, 5},
		Words:       []string{"only"},
		Boxes:       []document.BoundingBox{{X1: 0, Y1: 0, X2: 10, Y2: 10}},
	}

	entities := DecodeEntities(inf, 0.0)
	if len(entities) != 1 {
		t.Fatalf("Entity count: got %d, want 1", len(entities))
	}
	if entities[0].Text != "only" || entities[0].Confidence != 0.9 {
		t.Errorf("Entity: got %q conf %g, want only conf 0.9", entities[0].Text, entities[0].Confidence)
	}
}

// TestDecodeEntitiesEmpty verifies that empty input yields an empty,
// non-nil slice.
func TestDecodeEntitiesEmpty(t *testing.T) {
	entities := DecodeEntities(&model.InferenceResult{}, 0.5)
	if entities == nil {
		t.Fatal("Expected empty slice, got nil")
	}
	if len(entities) != 0 {
		t.Errorf("Entity count: got %d, want 0", len(entities))
	}
}

// TestAggregateEntitiesMerge verifies the question/answer form scenario:
// adjacent ANSWER words merge, the nearby QUESTION does not join them.
func TestAggregateEntitiesMerge(t *testing.T) {
	entities := []document.Entity{
		{Text: "Name:", Label: "QUESTION", Confidence: 0.98, BBox: document.BoundingBox{X1: 10, Y1: 50, X2: 60, Y2: 70}},
		{Text: "John", Label: "ANSWER", Confidence: 0.95, BBox: document.BoundingBox{X1: 130, Y1: 50, X2: 180, Y2: 70}},
		{Text: "Doe", Label: "ANSWER", Confidence: 0.93, BBox: document.BoundingBox{X1: 185, Y1: 50, X2: 230, Y2: 70}},
	}

	aggregated := AggregateEntities(entities)

	if len(aggregated) != 2 {
		t.Fatalf("Aggregated count: got %d, want 2", len(aggregated))
	}

	question := aggregated[0]
	if question.Text != "Name:" || question.Label != "QUESTION" {
		t.Errorf("Question entity: got %q/%q, want Name:/QUESTION", question.Text, question.Label)
	}

	answer := aggregated[1]
	if answer.Text != "John Doe" {
		t.Errorf("Merged text: got %q, want %q", answer.Text, "John Doe")
	}
	if answer.Confidence != 0.93 {
		t.Errorf("Merged confidence: got %g, want 0.93 (minimum of parts)", answer.Confidence)
	}
	wantBox := document.BoundingBox{X1: 130, Y1: 50, X2: 230, Y2: 70}
	if answer.BBox != wantBox {
		t.Errorf("Merged bbox: got %+v, want %+v", answer.BBox, wantBox)
	}
	t.Logf("✅ Merged %q with confidence %.2f", answer.Text, answer.Confidence)
}

// TestAggregateEntitiesGap verifies the merge distance boundary: strictly
// under the gap merges, at or over it does not.
func TestAggregateEntitiesGap(t *testing.T) {
	testCases := []struct {
		name      string
		secondX1  int
		wantCount int
	}{
		{name: "gap below limit merges", secondX1: 149, wantCount: 1},
		{name: "gap at limit stays split", secondX1: 150, wantCount: 2},
		{name: "gap above limit stays split", secondX1: 200, wantCount: 2},
		{name: "overlapping boxes merge", secondX1: 90, wantCount: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			entities := []document.Entity{
				{Text: "first", Label: "ANSWER", Confidence: 0.9, BBox: document.BoundingBox{X1: 0, Y1: 0, X2: 100, Y2: 20}},
				{Text: "second", Label: "ANSWER", Confidence: 0.9, BBox: document.BoundingBox{X1: tc.secondX1, Y1: 0, X2: tc.secondX1 + 50, Y2: 20}},
			}

			aggregated := AggregateEntities(entities)
			if len(aggregated) != tc.wantCount {
				t.Errorf("Aggregated count: got %d, want %d", len(aggregated), tc.wantCount)
			}
		})
	}
}

// TestAggregateEntitiesLabelBoundary verifies that label changes always
// break a run, regardless of distance.
func TestAggregateEntitiesLabelBoundary(t *testing.T) {
	entities := []document.Entity{
		{Text: "Date:", Label: "QUESTION", Confidence: 0.9, BBox: document.BoundingBox{X1: 0, Y1: 0, X2: 40, Y2: 20}},
		{Text: "2024", Label: "ANSWER", Confidence: 0.9, BBox: document.BoundingBox{X1: 45, Y1: 0, X2: 85, Y2: 20}},
		{Text: "Total", Label: "HEADER", Confidence: 0.9, BBox: document.BoundingBox{X1: 90, Y1: 0, X2: 130, Y2: 20}},
	}

	aggregated := AggregateEntities(entities)
	if len(aggregated) != 3 {
		t.Fatalf("Aggregated count: got %d, want 3 (no cross-label merges)", len(aggregated))
	}
	for i, want := range []string{"QUESTION", "ANSWER", "HEADER"} {
		if aggregated[i].Label != want {
			t.Errorf("Entity %d label: got %q, want %q", i, aggregated[i].Label, want)
		}
	}
}

// TestAggregateEntitiesChain verifies that a run of close words collapses
// into a single span with the union box.
func TestAggregateEntitiesChain(t *testing.T) {
	entities := []document.Entity{
		{Text: "123", Label: "ANSWER", Confidence: 0.99, BBox: document.BoundingBox{X1: 0, Y1: 5, X2: 30, Y2: 25}},
		{Text: "Main", Label: "ANSWER", Confidence: 0.97, BBox: document.BoundingBox{X1: 35, Y1: 0, X2: 75, Y2: 20}},
		{Text: "Street", Label: "ANSWER", Confidence: 0.98, BBox: document.BoundingBox{X1: 80, Y1: 5, X2: 130, Y2: 25}},
	}

	aggregated := AggregateEntities(entities)
	if len(aggregated) != 1 {
		t.Fatalf("Aggregated count: got %d, want 1", len(aggregated))
	}

	merged := aggregated[0]
	if merged.Text != "123 Main Street" {
		t.Errorf("Merged text: got %q, want %q", merged.Text, "123 Main Street")
	}
	if merged.Confidence != 0.97 {
		t.Errorf("Merged confidence: got %g, want 0.97", merged.Confidence)
	}
	wantBox := document.BoundingBox{X1: 0, Y1: 0, X2: 130, Y2: 25}
	if merged.BBox != wantBox {
		t.Errorf("Merged bbox: got %+v, want %+v (union of parts)", merged.BBox, wantBox)
	}
}

// TestAggregateEntitiesIdempotent verifies that aggregating an already
// aggregated list changes nothing.
func TestAggregateEntitiesIdempotent(t *testing.T) {
	entities := []document.Entity{
		{Text: "Invoice", Label: "HEADER", Confidence: 0.99, BBox: document.BoundingBox{X1: 0, Y1: 0, X2: 70, Y2: 20}},
		{Text: "Name:", Label: "QUESTION", Confidence: 0.98, BBox: document.BoundingBox{X1: 0, Y1: 40, X2: 50, Y2: 60}},
		{Text: "John", Label: "ANSWER", Confidence: 0.95, BBox: document.BoundingBox{X1: 60, Y1: 40, X2: 100, Y2: 60}},
		{Text: "Doe", Label: "ANSWER", Confidence: 0.93, BBox: document.BoundingBox{X1: 105, Y1: 40, X2: 140, Y2: 60}},
	}

	once := AggregateEntities(entities)
	twice := AggregateEntities(once)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("Aggregation not idempotent:\n once: %+v\ntwice: %+v", once, twice)
	}
}

// TestAggregateEntitiesEdgeCases covers empty and single-entity input.
func TestAggregateEntitiesEdgeCases(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		aggregated := AggregateEntities([]document.Entity{})
		if aggregated == nil || len(aggregated) != 0 {
			t.Errorf("Empty input: got %v, want empty slice", aggregated)
		}
	})

	t.Run("single entity unchanged", func(t *testing.T) {
		entity := document.Entity{Text: "solo", Label: "ANSWER", Confidence: 0.8, BBox: document.BoundingBox{X1: 1, Y1: 2, X2: 3, Y2: 4}}
		aggregated := AggregateEntities([]document.Entity{entity})
		if len(aggregated) != 1 || aggregated[0] != entity {
			t.Errorf("Single entity: got %+v, want %+v", aggregated, entity)
		}
	})
}
