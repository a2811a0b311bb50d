/**
 * Prediction Postprocessing
 *
 * Turns per-token model output into labeled entities. Subword tokens are
 * collapsed word-by-word: the first token seen for a word decides that
 * word's label and confidence, and later tokens of the same word are
 * ignored even when the first one was filtered out.
 */

package processor

import (
	"github.com/formlens/docextract/internal/document"
	"github.com/formlens/docextract/internal/model"
)

// MergeGapPx is the horizontal distance under which two same-label
// entities are considered parts of one span.
const MergeGapPx = 50

// DecodeEntities maps token predictions to word-level entities, dropping
// background tokens and predictions below threshold. The threshold is
// strict: a confidence exactly equal to it passes.
func DecodeEntities(inf *model.InferenceResult, threshold float64) []document.Entity {
	entities := []document.Entity{}
	consumed := make(map[int]bool)

	for i, pred := range inf.Predictions {
		wordID := model.NoWord
		if i < len(inf.WordIDs) {
			wordID = inf.WordIDs[i]
		}

		// Special tokens carry no word; later tokens of a consumed word
		// never override the first.
		if wordID == model.NoWord || consumed[wordID] {
			continue
		}
		consumed[wordID] = true

		conf := 0.0
		if i < len(inf.Confidences) {
			conf = inf.Confidences[i]
		}

		labelName := document.Label(pred).Name()
		if labelName == document.BackgroundLabel || conf < threshold {
			continue
		}

		if wordID >= len(inf.Words) {
			continue
		}

		entities = append(entities, document.Entity{
			Text:       inf.Words[wordID],
			Label:      document.SimplifyLabel(labelName),
			Confidence: conf,
			BBox:       inf.Boxes[wordID],
		})
	}

	return entities
}

// AggregateEntities merges runs of same-label entities whose boxes sit
// within MergeGapPx of each other horizontally. One greedy left-to-right
// pass: merged text joins with a space, confidence takes the minimum, the
// box becomes the union. Running it again on its own output changes
// nothing.
func AggregateEntities(entities []document.Entity) []document.Entity {
	if len(entities) == 0 {
		return []document.Entity{}
	}

	aggregated := make([]document.Entity, 0, len(entities))
	current := entities[0]

	for _, entity := range entities[1:] {
		if entity.Label == current.Label && absInt(entity.BBox.X1-current.BBox.X2) < MergeGapPx {
			current = document.Entity{
				Text:       current.Text + " " + entity.Text,
				Label:      current.Label,
				Confidence: min(current.Confidence, entity.Confidence),
				BBox:       current.BBox.Union(entity.BBox),
			}
		} else {
			aggregated = append(aggregated, current)
			current = entity
		}
	}

	return append(aggregated, current)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
