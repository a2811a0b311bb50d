/**
 * Result Exporters
 *
 * Serializes a ProcessingResult as JSON, CSV or XML. JSON is the lossless
 * interchange format: exporting, importing and exporting again yields
 * byte-identical output. CSV flattens entities to one row per entity; XML
 * mirrors the result tree for downstream systems that want markup.
 */

package export

import (
	"encoding/csv"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/formlens/docextract/internal/document"
	"github.com/formlens/docextract/internal/errors"
)

// CSVHeader is the first line of every CSV export.
const CSVHeader = "page,text,label,confidence,x1,y1,x2,y2"

// SupportedFormats lists the accepted export format names.
var SupportedFormats = []string{"csv", "json", "xml"}

// Export renders the result in the requested format (case-insensitive).
// Unknown formats yield an export error naming the supported set.
func Export(r *document.ProcessingResult, format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return toJSON(r)
	case "csv":
		return toCSV(r)
	case "xml":
		return toXML(r)
	default:
		return "", errors.NewExportFailedError(format, SupportedFormats)
	}
}

// Import parses a JSON export back into a ProcessingResult.
func Import(data []byte) (*document.ProcessingResult, error) {
	var r document.ProcessingResult
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.New(errors.ErrorExportFailed, "failed to parse result JSON", err)
	}
	return &r, nil
}

func toJSON(r *document.ProcessingResult) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", errors.New(errors.ErrorExportFailed, "failed to encode result as JSON", err)
	}
	return string(data), nil
}

func toCSV(r *document.ProcessingResult) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	if err := w.Write(strings.Split(CSVHeader, ",")); err != nil {
		return "", errors.New(errors.ErrorExportFailed, "failed to write CSV header", err)
	}

	for _, page := range r.Results {
		for _, e := range page.Entities {
			row := []string{
				strconv.Itoa(page.Page),
				e.Text,
				e.Label,
				formatFloat(e.Confidence),
				strconv.Itoa(e.BBox.X1),
				strconv.Itoa(e.BBox.Y1),
				strconv.Itoa(e.BBox.X2),
				strconv.Itoa(e.BBox.Y2),
			}
			if err := w.Write(row); err != nil {
				return "", errors.New(errors.ErrorExportFailed, "failed to write CSV row", err)
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", errors.New(errors.ErrorExportFailed, "failed to flush CSV", err)
	}
	return sb.String(), nil
}

// formatFloat renders a float in its shortest exact form ("0.95", not
// "0.950000").
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
