// Package docx parses DOCX (Office Open XML) containers into an ordered
// sequence of paragraph and drawing-anchor nodes.
package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	partContentTypes  = "[Content_Types].xml"
	partDocument      = "word/document.xml"
	partStyles        = "word/styles.xml"
	partRelationships = "word/_rels/document.xml.rels"
)

// Run is a contiguous span of text with uniform formatting.
type Run struct {
	Text   string
	Bold   bool
	Italic bool
}

// Paragraph is a block-level text node with resolved style information.
type Paragraph struct {
	StyleID   string
	StyleName string
	IsHeading bool
	Level     int // heading level (1-9) or 0 for non-headings
	Runs      []Run
}

// Text returns the concatenated run text of the paragraph.
func (p *Paragraph) Text() string {
	var b strings.Builder
	for _, r := range p.Runs {
		b.WriteString(r.Text)
	}
	return b.String()
}

// Drawing is an embedded image anchor referencing a media relationship
// plus its declared display extent in EMUs.
type Drawing struct {
	RelID    string
	Name     string
	ExtentCX int64
	ExtentCY int64
}

// Node is a block-level document node; exactly one field is non-nil.
type Node struct {
	Paragraph *Paragraph
	Drawing   *Drawing
}

// Document is the parsed structure of a DOCX container: ordered nodes plus
// the relationship graph used to resolve image targets.
type Document struct {
	Nodes         []Node
	Relationships map[string]string // relationship ID -> target path
}

// ResolveRelationship returns the target for a relationship ID.
func (d *Document) ResolveRelationship(relID string) (string, bool) {
	target, ok := d.Relationships[relID]
	return target, ok
}

// Parse reads a DOCX container from raw bytes. It is a pure transform: the
// input is never mutated and no I/O is performed.
func Parse(data []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, newFormatError(FormatErrorBadArchive, "", fmt.Errorf("opening ZIP archive: %w", err))
	}

	p := &parser{zr: zr}
	if err := p.validate(); err != nil {
		return nil, err
	}
	if err := p.parseRelationships(); err != nil {
		return nil, err
	}
	if err := p.parseStyles(); err != nil {
		return nil, err
	}
	return p.parseDocument()
}

type parser struct {
	zr     *zip.Reader
	rels   map[string]string
	styles *stylesXML
}

// validate checks that required container parts exist.
func (p *parser) validate() error {
	present := make(map[string]bool, len(p.zr.File))
	for _, f := range p.zr.File {
		present[f.Name] = true
	}
	for _, name := range []string{partContentTypes, partDocument} {
		if !present[name] {
			return newFormatError(FormatErrorMissingPart, name, fmt.Errorf("required part is absent"))
		}
	}
	return nil
}

// partContent reads a single part from the archive.
func (p *parser) partContent(name string) ([]byte, bool, error) {
	for _, f := range p.zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, true, err
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		return data, true, err
	}
	return nil, false, nil
}

// parseRelationships parses the document relationship graph. The part is
// optional; a present but unparsable part is a distinct failure mode.
func (p *parser) parseRelationships() error {
	p.rels = make(map[string]string)

	data, found, err := p.partContent(partRelationships)
	if !found {
		return nil
	}
	if err != nil {
		return newFormatError(FormatErrorBadRelationships, partRelationships, err)
	}

	rels := &relationshipsXML{}
	if err := xml.Unmarshal(data, rels); err != nil {
		return newFormatError(FormatErrorBadRelationships, partRelationships, err)
	}
	for _, rel := range rels.Relationships {
		p.rels[rel.ID] = rel.Target
	}
	return nil
}

// parseStyles parses the optional styles part.
func (p *parser) parseStyles() error {
	data, found, err := p.partContent(partStyles)
	if !found || err != nil {
		// Styles are optional - continue without them.
		return nil
	}

	styles := &stylesXML{}
	if err := xml.Unmarshal(data, styles); err != nil {
		// A damaged styles part only degrades heading detection.
		return nil
	}
	p.styles = styles
	return nil
}

// parseDocument parses the main body part into ordered nodes.
func (p *parser) parseDocument() (*Document, error) {
	data, found, err := p.partContent(partDocument)
	if !found {
		return nil, newFormatError(FormatErrorMissingPart, partDocument, fmt.Errorf("required part is absent"))
	}
	if err != nil {
		return nil, newFormatError(FormatErrorMalformedXML, partDocument, err)
	}

	doc := &documentXML{}
	if err := xml.Unmarshal(data, doc); err != nil {
		return nil, newFormatError(FormatErrorMalformedXML, partDocument, err)
	}
	if doc.Body == nil {
		return nil, newFormatError(FormatErrorMalformedXML, partDocument, fmt.Errorf("document has no body element"))
	}

	out := &Document{Relationships: p.rels}
	for _, para := range doc.Body.Paragraphs {
		parsed, drawings := p.processParagraph(para)
		out.Nodes = append(out.Nodes, Node{Paragraph: parsed})
		for _, d := range drawings {
			out.Nodes = append(out.Nodes, Node{Drawing: d})
		}
	}
	return out, nil
}

// processParagraph converts one paragraph element, returning the paragraph
// node plus any drawing anchors found in its runs (in run order).
func (p *parser) processParagraph(para paragraphXML) (*Paragraph, []*Drawing) {
	parsed := &Paragraph{StyleID: para.Properties.Style.Val}

	var drawings []*Drawing
	for _, run := range para.Runs {
		text := extractRunText(run)
		if text != "" {
			parsed.Runs = append(parsed.Runs, Run{
				Text:   text,
				Bold:   run.Properties.Bold.XMLName.Local != "" && run.Properties.Bold.Val != "false",
				Italic: run.Properties.Italic.XMLName.Local != "" && run.Properties.Italic.Val != "false",
			})
		}
		for _, d := range run.Drawings {
			if drawing := convertDrawing(d); drawing != nil {
				drawings = append(drawings, drawing)
			}
		}
	}

	if parsed.StyleID != "" {
		parsed.IsHeading, parsed.Level = p.isHeadingStyle(parsed.StyleID)
		parsed.StyleName = p.styleName(parsed.StyleID)
	}
	return parsed, drawings
}

// extractRunText extracts literal text from a run element, preserving the
// document order of text, tab and break children.
func extractRunText(run runXML) string {
	var b strings.Builder
	for _, c := range run.Content {
		switch {
		case c.Text != nil:
			b.WriteString(c.Text.Value)
		case c.Tab:
			b.WriteString("\t")
		case c.Break != nil:
			if c.Break.Type == "page" {
				b.WriteString("\n\n")
			} else {
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

// convertDrawing extracts the media reference and extent from a drawing.
// Drawings without a blip reference carry no substitutable image and are skipped.
func convertDrawing(d drawingXML) *Drawing {
	var extent extentXML
	var docPr docPrXML
	var blip *blipXML

	switch {
	case d.Inline != nil:
		extent, docPr, blip = d.Inline.Extent, d.Inline.DocPr, d.Inline.Blip
	case d.Anchor != nil:
		extent, docPr, blip = d.Anchor.Extent, d.Anchor.DocPr, d.Anchor.Blip
	default:
		return nil
	}
	if blip == nil || blip.Embed == "" {
		return nil
	}

	cx, _ := strconv.ParseInt(extent.CX, 10, 64)
	cy, _ := strconv.ParseInt(extent.CY, 10, 64)
	return &Drawing{
		RelID:    blip.Embed,
		Name:     docPr.Name,
		ExtentCX: cx,
		ExtentCY: cy,
	}
}

// styleName resolves a style ID to its display name.
func (p *parser) styleName(styleID string) string {
	if p.styles == nil {
		return ""
	}
	for _, s := range p.styles.Styles {
		if s.StyleID == styleID {
			return s.Name.Val
		}
	}
	return ""
}

// isHeadingStyle determines if a style ID represents a heading.
func (p *parser) isHeadingStyle(styleID string) (bool, int) {
	lowered := strings.ToLower(styleID)

	// Standard Word heading style IDs
	headingMap := map[string]int{
		"heading1": 1, "heading2": 2, "heading3": 3,
		"heading4": 4, "heading5": 5, "heading6": 6,
		"heading7": 7, "heading8": 8, "heading9": 9,
		"title": 1,
	}
	if level, ok := headingMap[lowered]; ok {
		return true, level
	}

	// Check style definitions for outline level
	if p.styles != nil {
		for _, style := range p.styles.Styles {
			if !strings.EqualFold(style.StyleID, styleID) {
				continue
			}
			if style.PPr.OutlineLvl.Val != "" {
				// OutlineLvl is 0-based in OOXML
				if level, err := strconv.Atoi(style.PPr.OutlineLvl.Val); err == nil && level >= 0 && level <= 8 {
					return true, level + 1
				}
			}
			if strings.Contains(strings.ToLower(style.Name.Val), "heading") {
				return true, 1
			}
		}
	}
	return false, 0
}
