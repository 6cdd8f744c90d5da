// Package kml extracts cadastral field values from geospatial annotation
// files (KML-style placemark markup).
package kml

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"

	"github.com/ktimacloud/report-engine/internal/template"
)

// ExtractionError reports an unparsable annotation source. A well-formed
// file with zero recognized fields is not an error.
type ExtractionError struct {
	Err error
}

// Error implements the error interface
func (e *ExtractionError) Error() string {
	return fmt.Sprintf("geo annotation extraction failed: %v", e.Err)
}

// Unwrap returns the underlying error
func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// kmlRoot represents the top-level <kml> element.
type kmlRoot struct {
	XMLName    xml.Name       `xml:"kml"`
	Document   *containerXML  `xml:"Document"`
	Folders    []containerXML `xml:"Folder"`
	Placemarks []placemarkXML `xml:"Placemark"`
}

// containerXML represents a nestable Document/Folder container.
type containerXML struct {
	Placemarks []placemarkXML `xml:"Placemark"`
	Folders    []containerXML `xml:"Folder"`
	Documents  []containerXML `xml:"Document"`
}

// placemarkXML represents a single placemark record.
type placemarkXML struct {
	Name         string          `xml:"name"`
	Description  string          `xml:"description"`
	ExtendedData extendedDataXML `xml:"ExtendedData"`
	Polygon      *polygonXML     `xml:"Polygon"`
	Point        *pointXML       `xml:"Point"`
}

// extendedDataXML represents structured placemark attributes.
type extendedDataXML struct {
	Data       []dataXML       `xml:"Data"`
	SchemaData []schemaDataXML `xml:"SchemaData"`
}

// dataXML represents a <Data name="..."><value>...</value></Data> entry.
type dataXML struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value"`
}

// schemaDataXML represents schema-bound attribute values.
type schemaDataXML struct {
	SimpleData []simpleDataXML `xml:"SimpleData"`
}

// simpleDataXML represents a single schema attribute value.
type simpleDataXML struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

// polygonXML carries the outer boundary coordinates of a polygon.
type polygonXML struct {
	Coordinates string `xml:"outerBoundaryIs>LinearRing>coordinates"`
}

// pointXML carries point coordinates.
type pointXML struct {
	Coordinates string `xml:"coordinates"`
}

var (
	htmlBreakRe = regexp.MustCompile(`(?i)<br\s*/?>`)
	htmlTagRe   = regexp.MustCompile(`<[^>]*>`)
)

// Extract parses placemark records and returns a mapping from the fixed
// geo-field vocabulary to raw string values. Fields absent in the source are
// omitted, never defaulted. Malformed XML fails with ExtractionError.
func Extract(data []byte) (map[template.GeoField]string, error) {
	root := &kmlRoot{}
	if err := xml.Unmarshal(data, root); err != nil {
		return nil, &ExtractionError{Err: fmt.Errorf("unmarshaling annotation XML: %w", err)}
	}

	fields := make(map[template.GeoField]string)
	for _, pm := range collectPlacemarks(root) {
		extractPlacemark(pm, fields)
	}
	return fields, nil
}

// collectPlacemarks flattens the nestable container hierarchy.
func collectPlacemarks(root *kmlRoot) []placemarkXML {
	var placemarks []placemarkXML
	placemarks = append(placemarks, root.Placemarks...)
	if root.Document != nil {
		placemarks = append(placemarks, collectFromContainer(*root.Document)...)
	}
	for _, folder := range root.Folders {
		placemarks = append(placemarks, collectFromContainer(folder)...)
	}
	return placemarks
}

func collectFromContainer(c containerXML) []placemarkXML {
	placemarks := append([]placemarkXML(nil), c.Placemarks...)
	for _, folder := range c.Folders {
		placemarks = append(placemarks, collectFromContainer(folder)...)
	}
	for _, doc := range c.Documents {
		placemarks = append(placemarks, collectFromContainer(doc)...)
	}
	return placemarks
}

// extractPlacemark pulls recognized fields from one record. The first
// occurrence of a field wins.
func extractPlacemark(pm placemarkXML, fields map[template.GeoField]string) {
	// Structured attributes take the same path as description labels.
	for _, d := range pm.ExtendedData.Data {
		setField(fields, d.Name, d.Value)
	}
	for _, sd := range pm.ExtendedData.SchemaData {
		for _, simple := range sd.SimpleData {
			setField(fields, simple.Name, simple.Value)
		}
	}

	for _, line := range descriptionLines(pm.Description) {
		label, value, ok := splitLabelValue(line)
		if !ok {
			continue
		}
		setField(fields, label, value)
	}

	// Geometry coordinates satisfy the coordinates field when no labeled
	// value provided one.
	if _, ok := fields[template.GeoCoordinates]; !ok {
		if coords := geometryCoordinates(pm); coords != "" {
			fields[template.GeoCoordinates] = coords
		}
	}
}

// setField records a value for a recognized label unless the field is
// already populated.
func setField(fields map[template.GeoField]string, label, value string) {
	field, ok := matchLabel(label)
	if !ok {
		return
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	if _, exists := fields[field]; exists {
		return
	}
	fields[field] = value
}

// descriptionLines turns a description payload (frequently HTML inside
// CDATA) into scannable text lines.
func descriptionLines(desc string) []string {
	if desc == "" {
		return nil
	}
	text := htmlBreakRe.ReplaceAllString(desc, "\n")
	text = htmlTagRe.ReplaceAllString(text, "\n")
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// splitLabelValue splits a "Label: value" shaped line.
func splitLabelValue(line string) (label, value string, ok bool) {
	for _, sep := range []string{":", "="} {
		if idx := strings.Index(line, sep); idx > 0 {
			return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+len(sep):]), true
		}
	}
	return "", "", false
}

// geometryCoordinates returns raw coordinate text from the record geometry.
func geometryCoordinates(pm placemarkXML) string {
	if pm.Polygon != nil {
		return strings.TrimSpace(pm.Polygon.Coordinates)
	}
	if pm.Point != nil {
		return strings.TrimSpace(pm.Point.Coordinates)
	}
	return ""
}
