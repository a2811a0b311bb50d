/**
 * XML Export Shape
 *
 * Dedicated marshal structures keep the XML layout stable regardless of
 * how the JSON-facing types evolve. Numbers are rendered in their shortest
 * form to match the other exporters.
 */

package export

import (
	"encoding/xml"
	"fmt"

	"github.com/formlens/docextract/internal/document"
	"github.com/formlens/docextract/internal/errors"
)

type xmlDocument struct {
	XMLName          xml.Name    `xml:"document"`
	Metadata         xmlMetadata `xml:"metadata"`
	Status           string      `xml:"status"`
	ProcessingTimeMS string      `xml:"processing_time_ms"`
	Results          xmlResults  `xml:"results"`
}

type xmlMetadata struct {
	ModelVersion string `xml:"model_version"`
	OCREngine    string `xml:"ocr_engine"`
	ImageSize    string `xml:"image_size,omitempty"`
	TotalPages   string `xml:"total_pages,omitempty"`
}

type xmlResults struct {
	Pages []xmlPage `xml:"page"`
}

type xmlPage struct {
	Number   int         `xml:"number,attr"`
	Entities []xmlEntity `xml:"entity"`
}

type xmlEntity struct {
	Text       string  `xml:"text"`
	Label      string  `xml:"label"`
	Confidence string  `xml:"confidence"`
	BBox       xmlBBox `xml:"bbox"`
}

type xmlBBox struct {
	X1 int `xml:"x1,attr"`
	Y1 int `xml:"y1,attr"`
	X2 int `xml:"x2,attr"`
	Y2 int `xml:"y2,attr"`
}

func toXML(r *document.ProcessingResult) (string, error) {
	doc := xmlDocument{
		Status:           r.Status,
		ProcessingTimeMS: formatFloat(r.ProcessingTimeMS),
	}

	if r.Metadata != nil {
		doc.Metadata.ModelVersion = r.Metadata.ModelVersion
		doc.Metadata.OCREngine = r.Metadata.OCREngine
		if len(r.Metadata.ImageSize) == 2 {
			doc.Metadata.ImageSize = fmt.Sprintf("%d,%d", r.Metadata.ImageSize[0], r.Metadata.ImageSize[1])
		}
		if r.Metadata.TotalPages > 0 {
			doc.Metadata.TotalPages = fmt.Sprintf("%d", r.Metadata.TotalPages)
		}
	}

	for _, page := range r.Results {
		xp := xmlPage{Number: page.Page, Entities: []xmlEntity{}}
		for _, e := range page.Entities {
			xp.Entities = append(xp.Entities, xmlEntity{
				Text:       e.Text,
				Label:      e.Label,
				Confidence: formatFloat(e.Confidence),
				BBox: xmlBBox{
					X1: e.BBox.X1,
					Y1: e.BBox.Y1,
					X2: e.BBox.X2,
					Y2: e.BBox.Y2,
				},
			})
		}
		doc.Results.Pages = append(doc.Results.Pages, xp)
	}

	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", errors.New(errors.ErrorExportFailed, "failed to encode result as XML", err)
	}
	return xml.Header + string(data) + "\n", nil
}
