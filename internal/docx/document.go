package docx

import "encoding/xml"

// documentXML represents the structure of word/document.xml
type documentXML struct {
	XMLName xml.Name `xml:"document"`
	Body    *bodyXML `xml:"body"`
}

// bodyXML represents the document body.
type bodyXML struct {
	Paragraphs []paragraphXML `xml:"p"`
}

// paragraphXML represents a paragraph element (<w:p>).
type paragraphXML struct {
	XMLName    xml.Name          `xml:"p"`
	Properties paragraphPropsXML `xml:"pPr"`
	Runs       []runXML          `xml:"r"`
}

// paragraphPropsXML represents paragraph properties (<w:pPr>).
type paragraphPropsXML struct {
	Style      styleRefXML   `xml:"pStyle"`
	OutlineLvl outlineLvlXML `xml:"outlineLvl"`
}

// styleRefXML represents a style reference.
type styleRefXML struct {
	Val string `xml:"val,attr"`
}

// outlineLvlXML represents outline level.
type outlineLvlXML struct {
	Val string `xml:"val,attr"`
}

// runXML represents a text run (<w:r>). Content children are decoded in
// document order; a run may interleave text, tabs and breaks.
type runXML struct {
	Properties runPropsXML
	Content    []runContentXML
	Drawings   []drawingXML
}

// runContentXML is one ordered content child of a run; exactly one field is set.
type runContentXML struct {
	Text  *textXML
	Tab   bool
	Break *breakXML
}

// UnmarshalXML decodes run children token by token so their document order
// survives into Content.
func (r *runXML) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "rPr":
				if err := d.DecodeElement(&r.Properties, &t); err != nil {
					return err
				}
			case "t":
				text := &textXML{}
				if err := d.DecodeElement(text, &t); err != nil {
					return err
				}
				r.Content = append(r.Content, runContentXML{Text: text})
			case "tab":
				if err := d.Skip(); err != nil {
					return err
				}
				r.Content = append(r.Content, runContentXML{Tab: true})
			case "br":
				br := &breakXML{}
				if err := d.DecodeElement(br, &t); err != nil {
					return err
				}
				r.Content = append(r.Content, runContentXML{Break: br})
			case "drawing":
				drawing := drawingXML{}
				if err := d.DecodeElement(&drawing, &t); err != nil {
					return err
				}
				r.Drawings = append(r.Drawings, drawing)
			default:
				if err := d.Skip(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			if t.Name == start.Name {
				return nil
			}
		}
	}
}

// runPropsXML represents run properties (<w:rPr>).
type runPropsXML struct {
	Bold   boolXML `xml:"b"`
	Italic boolXML `xml:"i"`
}

// boolXML represents a boolean run property element.
type boolXML struct {
	XMLName xml.Name
	Val     string `xml:"val,attr"`
}

// textXML represents text content (<w:t>).
type textXML struct {
	XMLName xml.Name `xml:"t"`
	Space   string   `xml:"space,attr"`
	Value   string   `xml:",chardata"`
}

// breakXML represents a break (line or page).
type breakXML struct {
	XMLName xml.Name `xml:"br"`
	Type    string   `xml:"type,attr"`
}

// drawingXML represents an embedded drawing/image.
type drawingXML struct {
	XMLName xml.Name   `xml:"drawing"`
	Inline  *inlineXML `xml:"inline"`
	Anchor  *anchorXML `xml:"anchor"`
}

// inlineXML represents an inline image.
type inlineXML struct {
	Extent extentXML `xml:"extent"`
	DocPr  docPrXML  `xml:"docPr"`
	Blip   *blipXML  `xml:"graphic>graphicData>pic>blipFill>blip"`
}

// anchorXML represents an anchored (floating) image.
type anchorXML struct {
	Extent extentXML `xml:"extent"`
	DocPr  docPrXML  `xml:"docPr"`
	Blip   *blipXML  `xml:"graphic>graphicData>pic>blipFill>blip"`
}

// extentXML represents image dimensions in EMUs (914400 per inch).
type extentXML struct {
	CX string `xml:"cx,attr"`
	CY string `xml:"cy,attr"`
}

// docPrXML represents document properties of an image.
type docPrXML struct {
	ID    string `xml:"id,attr"`
	Name  string `xml:"name,attr"`
	Descr string `xml:"descr,attr"`
}

// blipXML represents an image reference by relationship ID.
type blipXML struct {
	Embed string `xml:"embed,attr"`
}

// stylesXML represents the structure of word/styles.xml
type stylesXML struct {
	XMLName xml.Name   `xml:"styles"`
	Styles  []styleXML `xml:"style"`
}

// styleXML represents a single style definition.
type styleXML struct {
	Type    string       `xml:"type,attr"`
	StyleID string       `xml:"styleId,attr"`
	Name    styleNameXML `xml:"name"`
	PPr     stylePPrXML  `xml:"pPr"`
}

// styleNameXML represents a style's display name.
type styleNameXML struct {
	Val string `xml:"val,attr"`
}

// stylePPrXML represents paragraph properties inside a style definition.
type stylePPrXML struct {
	OutlineLvl outlineLvlXML `xml:"outlineLvl"`
}

// relationshipsXML represents word/_rels/document.xml.rels
type relationshipsXML struct {
	XMLName       xml.Name          `xml:"Relationships"`
	Relationships []relationshipXML `xml:"Relationship"`
}

// relationshipXML represents a single relationship entry.
type relationshipXML struct {
	ID     string `xml:"Id,attr"`
	Type   string `xml:"Type,attr"`
	Target string `xml:"Target,attr"`
}
