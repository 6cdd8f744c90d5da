package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ktimacloud/report-engine/internal/template"
)

// RenderedSection is one section of rendered output in final order.
type RenderedSection struct {
	Heading string `json:"heading,omitempty"`
	Order   int    `json:"order"`
	Text    string `json:"text"`
}

// PlacedImage is an image asset substituted at its original anchor position.
type PlacedImage struct {
	VariableName string          `json:"variableName"`
	AnchorIndex  int             `json:"anchorIndex"`
	Target       string          `json:"target"`
	AssetPath    string          `json:"assetPath,omitempty"`
	Extent       template.Extent `json:"extent"`
}

// RenderedDocument is the result of one fill operation.
type RenderedDocument struct {
	TemplateID   string            `json:"templateId"`
	TemplateName string            `json:"templateName"`
	Sections     []RenderedSection `json:"sections"`
	Images       []PlacedImage     `json:"images,omitempty"`
}

// Text concatenates the rendered sections in order.
func (d *RenderedDocument) Text() string {
	var b strings.Builder
	for i, s := range d.Sections {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if s.Heading != "" {
			b.WriteString(s.Heading)
			b.WriteString("\n")
		}
		b.WriteString(s.Text)
	}
	return b.String()
}

// Renderer resolves templates against value sets. It holds no state and is
// safe for concurrent use.
type Renderer struct{}

// NewRenderer creates a new Renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render produces a fully rendered document from a template and a value set.
// It performs no I/O and is idempotent: identical inputs produce identical
// output, and the caller's value set is never modified. Any unresolved or
// invalid binding aborts the whole render.
func (r *Renderer) Render(tpl *template.Template, vs *ValueSet) (*RenderedDocument, error) {
	if vs == nil {
		vs = NewValueSet()
	} else {
		// Computed bindings are evaluated into a private copy.
		vs = vs.clone()
	}

	if err := r.evaluateCalculated(tpl, vs); err != nil {
		return nil, err
	}
	if err := r.checkRequired(tpl, vs); err != nil {
		return nil, err
	}

	doc := &RenderedDocument{
		TemplateID:   tpl.ID,
		TemplateName: tpl.Name,
	}

	for _, section := range tpl.SortedSections() {
		rendered, err := r.renderSection(section, vs)
		if err != nil {
			return nil, err
		}
		doc.Sections = append(doc.Sections, rendered)
	}

	images, err := r.placeImages(tpl, vs)
	if err != nil {
		return nil, err
	}
	doc.Images = images

	return doc, nil
}

// evaluateCalculated resolves calculated variables in dependency order and
// binds the results with computed provenance, so explicit bindings for the
// same names keep precedence.
func (r *Renderer) evaluateCalculated(tpl *template.Template, vs *ValueSet) error {
	type calc struct {
		name string
		expr *template.Expression
		deps []string
	}

	var pending []*calc
	isCalculated := make(map[string]bool)
	for _, v := range tpl.Variables {
		if v.Type != template.ImportedCalculated {
			continue
		}
		expr, err := template.ParseExpression(v.Expression)
		if err != nil {
			return newBindError(BindErrorExpression, v.Name, err.Error())
		}
		pending = append(pending, &calc{name: v.Name, expr: expr, deps: expr.Identifiers()})
		isCalculated[v.Name] = true
	}
	if len(pending) == 0 {
		return nil
	}

	evaluated := make(map[string]bool)
	for len(pending) > 0 {
		progressed := false
		var next []*calc
		for _, c := range pending {
			ready := true
			for _, dep := range c.deps {
				if isCalculated[dep] && !evaluated[dep] {
					ready = false
					break
				}
			}
			if !ready {
				next = append(next, c)
				continue
			}

			// Dependencies are read through the merged value set, so an
			// explicit binding shadowing a calculated name feeds downstream
			// expressions.
			env := make(map[string]float64, len(c.deps))
			for _, dep := range c.deps {
				bound, ok := vs.Get(dep)
				if !ok {
					return newBindError(BindErrorExpression, c.name,
						fmt.Sprintf("expression references unbound variable %q", dep))
				}
				f, err := numeric(bound)
				if err != nil {
					return newBindError(BindErrorCoercion, dep, err.Error())
				}
				env[dep] = f
			}

			val, err := c.expr.Eval(env)
			if err != nil {
				return newBindError(BindErrorExpression, c.name, err.Error())
			}
			evaluated[c.name] = true
			vs.Set(c.name, NumberValue{Val: val}, SourceComputed)
			progressed = true
		}
		if !progressed {
			names := make([]string, 0, len(next))
			for _, c := range next {
				names = append(names, c.name)
			}
			return newBindError(BindErrorCycle, strings.Join(names, ", "),
				"calculated variables form an expression cycle")
		}
		pending = next
	}
	return nil
}

// checkRequired verifies every required variable has a bound value after all
// sources are merged.
func (r *Renderer) checkRequired(tpl *template.Template, vs *ValueSet) error {
	for _, v := range tpl.Variables {
		if !v.IsRequired {
			continue
		}
		if _, ok := vs.Get(v.Name); !ok {
			return newBindError(BindErrorMissingVariable, v.Name, "required variable has no bound value")
		}
	}
	return nil
}

// renderSection resolves every block of one section to concrete text.
func (r *Renderer) renderSection(section template.TemplateSection, vs *ValueSet) (RenderedSection, error) {
	var b strings.Builder
	for _, block := range section.Blocks {
		text, err := r.renderBlock(block, vs)
		if err != nil {
			return RenderedSection{}, err
		}
		b.WriteString(text)
	}
	return RenderedSection{
		Heading: section.Heading,
		Order:   section.Order,
		Text:    b.String(),
	}, nil
}

// renderBlock resolves a single content block.
func (r *Renderer) renderBlock(block template.ContentBlock, vs *ValueSet) (string, error) {
	switch block.Kind {
	case template.BlockText:
		return r.literalText(block, vs), nil

	case template.BlockVariable:
		bound, ok := vs.Get(block.VariableName)
		if !ok {
			// Missing optional variables render as empty string.
			return "", nil
		}
		text, err := formatValue(bound, block.VariableType)
		if err != nil {
			return "", newBindError(BindErrorCoercion, block.VariableName, err.Error())
		}
		return text, nil

	case template.BlockGeoVariable:
		bound, ok := vs.Get(string(block.GeoField))
		if !ok {
			return "", nil
		}
		text, err := formatValue(bound, template.VariableString)
		if err != nil {
			return "", newBindError(BindErrorCoercion, string(block.GeoField), err.Error())
		}
		return text, nil

	default:
		return "", newBindError(BindErrorUnknown, "", fmt.Sprintf("unsupported block kind %q", block.Kind))
	}
}

// literalText returns a text block's content, honoring an alternate phrasing
// selection when the block belongs to a group.
func (r *Renderer) literalText(block template.ContentBlock, vs *ValueSet) string {
	if len(block.TextTemplates) == 0 || block.GroupID == "" {
		return block.Content
	}
	idx, ok := vs.phrasing(block.GroupID)
	if !ok || idx < 0 || idx >= len(block.TextTemplates) {
		return block.Content
	}
	return block.TextTemplates[idx]
}

// placeImages resolves image-typed variables at their recorded anchor
// positions, preserving the imported extent unless an override is bound.
func (r *Renderer) placeImages(tpl *template.Template, vs *ValueSet) ([]PlacedImage, error) {
	var images []PlacedImage
	for _, v := range tpl.Variables {
		if v.Type != template.ImportedImage {
			continue
		}
		placed := PlacedImage{
			VariableName: v.Name,
			AnchorIndex:  v.AnchorIndex,
			Target:       v.ImageTarget,
			Extent:       v.ImageExtent,
		}
		if bound, ok := vs.Get(v.Name); ok {
			ref, isRef := bound.(ImageAssetRef)
			if !isRef {
				return nil, newBindError(BindErrorCoercion, v.Name, "bound value is not an image asset")
			}
			placed.AssetPath = ref.AssetPath
			if ref.Extent != nil {
				placed.Extent = *ref.Extent
			}
		}
		images = append(images, placed)
	}
	return images, nil
}

// dateLayouts are accepted when coercing string values to dates.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2.1.2006",
	"02-01-2006",
}

// formatValue renders a bound value according to the block's variable type.
func formatValue(v Value, vt template.VariableType) (string, error) {
	switch vt {
	case template.VariableString:
		return formatAsString(v)
	case template.VariableNumber:
		return formatAsNumber(v)
	case template.VariableCurrency:
		return formatAsCurrency(v)
	case template.VariableDate:
		return formatAsDate(v)
	default:
		return "", fmt.Errorf("unsupported variable type %q", vt)
	}
}

func formatAsString(v Value) (string, error) {
	switch val := v.(type) {
	case StringValue:
		return val.Val, nil
	case NumberValue:
		if val.Raw != "" {
			return val.Raw, nil
		}
		return strconv.FormatFloat(val.Val, 'f', -1, 64), nil
	case CurrencyValue:
		if val.Raw != "" {
			return val.Raw, nil
		}
		return strconv.FormatFloat(val.Val, 'f', 2, 64), nil
	case DateValue:
		return val.Val.Format("2006-01-02"), nil
	default:
		return "", fmt.Errorf("image asset bound to a string variable")
	}
}

// formatAsNumber renders locale-free decimals, preserving the source's
// significant digits when the value arrived as text.
func formatAsNumber(v Value) (string, error) {
	switch val := v.(type) {
	case NumberValue:
		if val.Raw != "" {
			return val.Raw, nil
		}
		return strconv.FormatFloat(val.Val, 'f', -1, 64), nil
	case CurrencyValue:
		if val.Raw != "" {
			return val.Raw, nil
		}
		return strconv.FormatFloat(val.Val, 'f', -1, 64), nil
	case StringValue:
		trimmed := strings.TrimSpace(val.Val)
		if _, err := strconv.ParseFloat(trimmed, 64); err != nil {
			return "", fmt.Errorf("value %q is not numeric", val.Val)
		}
		return trimmed, nil
	default:
		return "", fmt.Errorf("value cannot be coerced to a number")
	}
}

// formatAsCurrency renders a plain decimal amount; any currency symbol lives
// in the surrounding literal text.
func formatAsCurrency(v Value) (string, error) {
	switch val := v.(type) {
	case CurrencyValue:
		if val.Raw != "" {
			return val.Raw, nil
		}
		return strconv.FormatFloat(val.Val, 'f', 2, 64), nil
	case NumberValue:
		if val.Raw != "" {
			return val.Raw, nil
		}
		return strconv.FormatFloat(val.Val, 'f', 2, 64), nil
	case StringValue:
		trimmed := strings.TrimSpace(val.Val)
		if _, err := strconv.ParseFloat(trimmed, 64); err != nil {
			return "", fmt.Errorf("value %q is not numeric", val.Val)
		}
		return trimmed, nil
	default:
		return "", fmt.Errorf("value cannot be coerced to a currency amount")
	}
}

func formatAsDate(v Value) (string, error) {
	switch val := v.(type) {
	case DateValue:
		return val.Val.Format("2006-01-02"), nil
	case StringValue:
		trimmed := strings.TrimSpace(val.Val)
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, trimmed); err == nil {
				return parsed.Format("2006-01-02"), nil
			}
		}
		return "", fmt.Errorf("value %q is not a recognizable date", val.Val)
	default:
		return "", fmt.Errorf("value cannot be coerced to a date")
	}
}
