package template

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ktimacloud/report-engine/internal/docx"
)

// BuildOptions carries template metadata supplied by the importer.
type BuildOptions struct {
	Name           string
	Description    string
	CreatedBy      string
	SourceDocxPath string
}

// Build walks a parsed document structure and emits the canonical template:
// heading-derived sections, typed variable blocks, and anchor-indexed image
// variables. It fails closed: any malformed placeholder aborts the whole
// build with the offending source fragment.
func Build(doc *docx.Document, opts BuildOptions) (*Template, error) {
	b := &builder{
		doc: doc,
		tpl: &Template{
			ID:             uuid.NewString(),
			Name:           opts.Name,
			Description:    opts.Description,
			CreatedBy:      opts.CreatedBy,
			SourceDocxPath: opts.SourceDocxPath,
			CreatedAt:      time.Now().UTC(),
			UpdatedAt:      time.Now().UTC(),
			IsActive:       true,
		},
		variableTypes: make(map[string]VariableType),
	}
	if err := b.run(); err != nil {
		return nil, err
	}
	if err := b.tpl.Validate(); err != nil {
		return nil, err
	}
	return b.tpl, nil
}

type builder struct {
	doc           *docx.Document
	tpl           *Template
	variableTypes map[string]VariableType // inferred type per placeholder name
	current       *TemplateSection
	anchorCount   int
}

func (b *builder) run() error {
	for _, node := range b.doc.Nodes {
		switch {
		case node.Paragraph != nil:
			if err := b.addParagraph(node.Paragraph); err != nil {
				return err
			}
		case node.Drawing != nil:
			if err := b.addDrawing(node.Drawing); err != nil {
				return err
			}
		}
	}
	b.flushSection()
	b.tpl.RequiresKML = b.tpl.usesGeo()
	return nil
}

// addParagraph appends the paragraph's blocks to the current section,
// starting a new section when the paragraph carries a heading style.
func (b *builder) addParagraph(p *docx.Paragraph) error {
	if p.IsHeading {
		b.flushSection()
		b.current = &TemplateSection{
			ID:      uuid.NewString(),
			Heading: p.Text(),
			Order:   len(b.tpl.Sections),
		}
		return nil
	}

	text := p.Text()
	if text == "" {
		return nil
	}
	blocks, err := b.splitPlaceholders(text)
	if err != nil {
		return err
	}

	if b.current == nil {
		// Content before any heading; a document with no heading styles
		// yields exactly this one section.
		b.current = &TemplateSection{ID: uuid.NewString(), Order: 0}
	}
	if len(b.current.Blocks) > 0 {
		b.appendText("\n")
	}
	b.current.Blocks = append(b.current.Blocks, blocks...)
	return nil
}

// appendText merges a literal span into the current section, extending the
// trailing text block when possible.
func (b *builder) appendText(s string) {
	n := len(b.current.Blocks)
	if n > 0 && b.current.Blocks[n-1].Kind == BlockText {
		b.current.Blocks[n-1].Content += s
		return
	}
	b.current.Blocks = append(b.current.Blocks, ContentBlock{Kind: BlockText, Content: s})
}

// flushSection commits the section under construction, skipping empty ones
// so section orders stay dense.
func (b *builder) flushSection() {
	if b.current == nil {
		return
	}
	if len(b.current.Blocks) > 0 || b.current.Heading != "" {
		b.current.Order = len(b.tpl.Sections)
		b.tpl.Sections = append(b.tpl.Sections, *b.current)
	}
	b.current = nil
}

const geoPrefix = "geo:"

// splitPlaceholders splits paragraph text on the {{name}} grammar. A literal
// `$` immediately preceding a placeholder stays ordinary text and marks the
// placeholder as currency-typed.
func (b *builder) splitPlaceholders(text string) ([]ContentBlock, error) {
	var blocks []ContentBlock
	rest := text
	for {
		open := strings.Index(rest, "{{")
		if open < 0 {
			break
		}
		closing := strings.Index(rest[open:], "}}")
		if closing < 0 {
			return nil, newBuildError(rest[open:], "unterminated placeholder")
		}
		closing += open

		literal := rest[:open]
		raw := rest[open : closing+2]
		name := rest[open+2 : closing]
		currencyContext := strings.HasSuffix(literal, "$")

		if literal != "" {
			blocks = appendTextBlock(blocks, literal)
		}

		block, err := b.placeholderBlock(name, raw, currencyContext)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
		rest = rest[closing+2:]
	}
	if rest != "" {
		blocks = appendTextBlock(blocks, rest)
	}
	return blocks, nil
}

func appendTextBlock(blocks []ContentBlock, s string) []ContentBlock {
	n := len(blocks)
	if n > 0 && blocks[n-1].Kind == BlockText {
		blocks[n-1].Content += s
		return blocks
	}
	return append(blocks, ContentBlock{Kind: BlockText, Content: s})
}

// placeholderBlock converts one placeholder occurrence into a typed block,
// registering its imported variable on first sight.
func (b *builder) placeholderBlock(name, raw string, currencyContext bool) (ContentBlock, error) {
	if strings.HasPrefix(name, geoPrefix) {
		fieldName := strings.TrimPrefix(name, geoPrefix)
		field, ok := ParseGeoField(fieldName)
		if !ok {
			return ContentBlock{}, newBuildError(raw, fmt.Sprintf("unknown geo field %q", fieldName))
		}
		b.registerVariable(name, ImportedGeo, raw)
		return ContentBlock{
			Kind:     BlockGeoVariable,
			Content:  raw,
			GeoField: field,
		}, nil
	}

	if err := validateIdentifier(name, raw); err != nil {
		return ContentBlock{}, err
	}

	varType := inferVariableType(name, currencyContext)
	if previous, seen := b.variableTypes[name]; seen {
		if previous != varType {
			return ContentBlock{}, newBuildError(raw,
				fmt.Sprintf("placeholder %q collides with an earlier %s-typed declaration", name, previous))
		}
	} else {
		b.variableTypes[name] = varType
	}

	importedType := ImportedText
	if varType == VariableDate {
		importedType = ImportedDate
	}
	b.registerVariable(name, importedType, raw)

	return ContentBlock{
		Kind:         BlockVariable,
		Content:      raw,
		VariableName: name,
		VariableType: varType,
	}, nil
}

// registerVariable records an imported variable the first time its name is seen.
func (b *builder) registerVariable(name string, kind ImportedVariableType, sourceText string) {
	if _, ok := b.tpl.Variable(name); ok {
		return
	}
	b.tpl.Variables = append(b.tpl.Variables, ImportedVariable{
		Name:       name,
		Type:       kind,
		SourceText: sourceText,
	})
}

// addDrawing records an embedded image as an image-typed imported variable,
// bound to its anchor position by index for later regeneration. Images are
// never emitted as inline content blocks.
func (b *builder) addDrawing(d *docx.Drawing) error {
	target, ok := b.doc.ResolveRelationship(d.RelID)
	if !ok {
		return newBuildError(d.RelID, fmt.Sprintf("drawing references unknown relationship %q", d.RelID))
	}

	b.anchorCount++
	b.tpl.Variables = append(b.tpl.Variables, ImportedVariable{
		Name:        fmt.Sprintf("image_%d", b.anchorCount),
		Type:        ImportedImage,
		SourceText:  d.Name,
		ImageTarget: target,
		ImageExtent: Extent{CX: d.ExtentCX, CY: d.ExtentCY},
		AnchorIndex: b.anchorCount - 1,
	})
	return nil
}

// validateIdentifier enforces the placeholder name grammar. Names outside a
// simple identifier set are a build error, not a sanitization target.
func validateIdentifier(name, raw string) error {
	if name == "" {
		return newBuildError(raw, "empty placeholder name")
	}
	for i, r := range name {
		if i == 0 && !isIdentStart(r) {
			return newBuildError(raw, fmt.Sprintf("placeholder name %q must start with a letter or underscore", name))
		}
		if !isIdentPart(r) {
			return newBuildError(raw, fmt.Sprintf("placeholder name %q contains invalid character %q", name, string(r)))
		}
	}
	return nil
}

// inferVariableType infers the block value type from the placeholder name
// and its surrounding context.
func inferVariableType(name string, currencyContext bool) VariableType {
	if currencyContext {
		return VariableCurrency
	}
	lowered := strings.ToLower(name)
	if strings.Contains(lowered, "date") {
		return VariableDate
	}
	for _, hint := range []string{"number", "count", "area", "value", "amount", "total", "coefficient"} {
		if strings.Contains(lowered, hint) {
			return VariableNumber
		}
	}
	return VariableString
}
