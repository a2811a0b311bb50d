/**
 * Label Vocabulary - FUNSD token classification labels
 *
 * Closed BIO vocabulary of the fine-tuned model. Prediction ids outside the
 * table map to the background label rather than failing.
 */

package document

import "strings"

// Label is a token classification id produced by the model.
type Label int

// The FUNSD label table. Ids are fixed by the model head and must not be
// reordered.
const (
	LabelO Label = iota
	LabelBHeader
	LabelIHeader
	LabelBQuestion
	LabelIQuestion
	LabelBAnswer
	LabelIAnswer
)

// BackgroundLabel is the name assigned to tokens that carry no entity.
const BackgroundLabel = "O"

// Name returns the BIO tag for the label; ids outside the vocabulary map to
// the background label.
func (l Label) Name() string {
	switch l {
	case LabelO:
		return BackgroundLabel
	case LabelBHeader:
		return "B-HEADER"
	case LabelIHeader:
		return "I-HEADER"
	case LabelBQuestion:
		return "B-QUESTION"
	case LabelIQuestion:
		return "I-QUESTION"
	case LabelBAnswer:
		return "B-ANSWER"
	case LabelIAnswer:
		return "I-ANSWER"
	default:
		return BackgroundLabel
	}
}

// Simplified returns the entity category with the B-/I- prefix removed, e.g.
// "B-QUESTION" becomes "QUESTION". The background label is returned as-is.
func (l Label) Simplified() string {
	return SimplifyLabel(l.Name())
}

// IsBackground reports whether the label carries no entity.
func (l Label) IsBackground() bool {
	return l.Name() == BackgroundLabel
}

// SimplifyLabel strips the BIO prefix from a tag name.
func SimplifyLabel(name string) string {
	if i := strings.LastIndex(name, "-"); i >= 0 {
		return name[i+1:]
	}
	return name
}
