package render

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ktimacloud/report-engine/internal/template"
)

func ownerTemplate() *template.Template {
	return &template.Template{
		ID:   "t-1",
		Name: "survey",
		Sections: []template.TemplateSection{
			{ID: "s-1", Order: 0, Blocks: []template.ContentBlock{
				{Kind: template.BlockText, Content: "Owned by "},
				{Kind: template.BlockVariable, Content: "{{owner_name}}",
					VariableName: "owner_name", VariableType: template.VariableString},
				{Kind: template.BlockText, Content: "."},
			}},
		},
		Variables: []template.ImportedVariable{
			{Name: "owner_name", Type: template.ImportedText},
		},
		IsActive: true,
	}
}

func TestRenderSubstitutesValues(t *testing.T) {
	vs := NewValueSet()
	vs.Set("owner_name", StringValue{Val: "K. Papadopoulos"}, SourceUser)

	doc, err := NewRenderer().Render(ownerTemplate(), vs)
	require.NoError(t, err)
	require.Len(t, doc.Sections, 1)
	assert.Equal(t, "Owned by K. Papadopoulos.", doc.Sections[0].Text)
}

func TestRenderIsIdempotent(t *testing.T) {
	tpl := ownerTemplate()
	vs := NewValueSet()
	vs.Set("owner_name", StringValue{Val: "A. Georgiou"}, SourceUser)

	r := NewRenderer()
	first, err := r.Render(tpl, vs)
	require.NoError(t, err)
	second, err := r.Render(tpl, vs)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, first.Text(), second.Text())
}

func TestRenderMissingOptionalIsEmpty(t *testing.T) {
	doc, err := NewRenderer().Render(ownerTemplate(), NewValueSet())
	require.NoError(t, err)
	assert.Equal(t, "Owned by .", doc.Sections[0].Text)
}

func TestRenderMissingRequiredFails(t *testing.T) {
	tpl := ownerTemplate()
	tpl.Variables[0].IsRequired = true

	_, err := NewRenderer().Render(tpl, NewValueSet())
	require.Error(t, err)

	var bindErr *BindError
	require.True(t, errors.As(err, &bindErr))
	assert.Equal(t, BindErrorMissingVariable, bindErr.Kind)
	assert.Equal(t, "owner_name", bindErr.Variable)
}

func TestValueSetPrecedence(t *testing.T) {
	vs := NewValueSet()
	vs.Set("plot_number", StringValue{Val: "42"}, SourceGeo)
	vs.Set("plot_number", StringValue{Val: "99"}, SourceUser)
	// A later lower-precedence binding must not replace the user's value.
	vs.Set("plot_number", StringValue{Val: "17"}, SourceGeo)

	v, ok := vs.Get("plot_number")
	require.True(t, ok)
	assert.Equal(t, StringValue{Val: "99"}, v)

	src, ok := vs.SourceOf("plot_number")
	require.True(t, ok)
	assert.Equal(t, SourceUser, src)
}

func TestValueSetEqualPrecedenceReplaces(t *testing.T) {
	vs := NewValueSet()
	vs.Set("note", StringValue{Val: "first"}, SourceUser)
	vs.Set("note", StringValue{Val: "second"}, SourceUser)

	v, _ := vs.Get("note")
	assert.Equal(t, StringValue{Val: "second"}, v)
}

func TestRenderGeoBlocks(t *testing.T) {
	tpl := &template.Template{
		ID: "t-2", Name: "geo", RequiresKML: true,
		Sections: []template.TemplateSection{
			{Order: 0, Blocks: []template.ContentBlock{
				{Kind: template.BlockText, Content: "Plot "},
				{Kind: template.BlockGeoVariable, Content: "{{geo:plot_number}}", GeoField: template.GeoPlotNumber},
				{Kind: template.BlockText, Content: " in "},
				{Kind: template.BlockGeoVariable, Content: "{{geo:zone}}", GeoField: template.GeoZone},
			}},
		},
	}

	vs := NewValueSet()
	vs.Set(string(template.GeoPlotNumber), StringValue{Val: "42"}, SourceGeo)
	// Unbound geo fields render empty.

	doc, err := NewRenderer().Render(tpl, vs)
	require.NoError(t, err)
	assert.Equal(t, "Plot 42 in ", doc.Sections[0].Text)
}

func TestRenderCalculatedVariables(t *testing.T) {
	tpl := &template.Template{
		ID: "t-3", Name: "calc",
		Sections: []template.TemplateSection{
			{Order: 0, Blocks: []template.ContentBlock{
				{Kind: template.BlockVariable, Content: "{{buildable_area}}",
					VariableName: "buildable_area", VariableType: template.VariableNumber},
			}},
		},
		Variables: []template.ImportedVariable{
			{Name: "plot_area", Type: template.ImportedText},
			{Name: "buildable_area", Type: template.ImportedCalculated, Expression: "plot_area * 0.8"},
		},
	}

	vs := NewValueSet()
	vs.Set("plot_area", NumberValue{Val: 250}, SourceUser)

	doc, err := NewRenderer().Render(tpl, vs)
	require.NoError(t, err)
	assert.Equal(t, "200", doc.Sections[0].Text)

	// The computed result stays inside the render; the caller's set only
	// carries what it bound itself.
	_, ok := vs.Get("buildable_area")
	assert.False(t, ok)
}

func TestRenderCalculatedChain(t *testing.T) {
	tpl := &template.Template{
		ID: "t-4", Name: "chain",
		Sections: []template.TemplateSection{
			{Order: 0, Blocks: []template.ContentBlock{
				{Kind: template.BlockVariable, Content: "{{per_floor}}",
					VariableName: "per_floor", VariableType: template.VariableNumber},
			}},
		},
		Variables: []template.ImportedVariable{
			{Name: "plot_area", Type: template.ImportedText},
			{Name: "buildable", Type: template.ImportedCalculated, Expression: "plot_area * 0.8"},
			{Name: "per_floor", Type: template.ImportedCalculated, Expression: "buildable / 2"},
		},
	}

	vs := NewValueSet()
	vs.Set("plot_area", NumberValue{Val: 100}, SourceUser)

	doc, err := NewRenderer().Render(tpl, vs)
	require.NoError(t, err)
	assert.Equal(t, "40", doc.Sections[0].Text)
}

func TestRenderUserValueBeatsComputed(t *testing.T) {
	tpl := &template.Template{
		ID: "t-5", Name: "override",
		Sections: []template.TemplateSection{
			{Order: 0, Blocks: []template.ContentBlock{
				{Kind: template.BlockVariable, Content: "{{derived}}",
					VariableName: "derived", VariableType: template.VariableNumber},
			}},
		},
		Variables: []template.ImportedVariable{
			{Name: "base", Type: template.ImportedText},
			{Name: "derived", Type: template.ImportedCalculated, Expression: "base * 2"},
		},
	}

	vs := NewValueSet()
	vs.Set("base", NumberValue{Val: 10}, SourceUser)
	vs.Set("derived", NumberValue{Val: 999}, SourceUser)

	doc, err := NewRenderer().Render(tpl, vs)
	require.NoError(t, err)
	assert.Equal(t, "999", doc.Sections[0].Text)
}

func TestRenderOverriddenCalculatedFeedsDependents(t *testing.T) {
	tpl := &template.Template{
		ID: "t-5b", Name: "override-chain",
		Sections: []template.TemplateSection{
			{Order: 0, Blocks: []template.ContentBlock{
				{Kind: template.BlockVariable, Content: "{{base}}",
					VariableName: "base", VariableType: template.VariableNumber},
				{Kind: template.BlockText, Content: " / "},
				{Kind: template.BlockVariable, Content: "{{double}}",
					VariableName: "double", VariableType: template.VariableNumber},
			}},
		},
		Variables: []template.ImportedVariable{
			{Name: "x", Type: template.ImportedText},
			{Name: "base", Type: template.ImportedCalculated, Expression: "x + 1"},
			{Name: "double", Type: template.ImportedCalculated, Expression: "base * 2"},
		},
	}

	vs := NewValueSet()
	vs.Set("x", NumberValue{Val: 1}, SourceUser)
	vs.Set("base", NumberValue{Val: 10}, SourceUser)

	// An explicit binding shadowing a calculated name must feed expressions
	// that depend on it, not just its own placeholder.
	doc, err := NewRenderer().Render(tpl, vs)
	require.NoError(t, err)
	assert.Equal(t, "10 / 20", doc.Sections[0].Text)
}

func TestRenderLeavesValueSetUntouched(t *testing.T) {
	tpl := &template.Template{
		ID: "t-5c", Name: "purity",
		Sections: []template.TemplateSection{
			{Order: 0, Blocks: []template.ContentBlock{
				{Kind: template.BlockVariable, Content: "{{derived}}",
					VariableName: "derived", VariableType: template.VariableNumber},
			}},
		},
		Variables: []template.ImportedVariable{
			{Name: "base", Type: template.ImportedText},
			{Name: "derived", Type: template.ImportedCalculated, Expression: "base * 2"},
		},
	}

	vs := NewValueSet()
	vs.Set("base", NumberValue{Val: 10}, SourceUser)

	_, err := NewRenderer().Render(tpl, vs)
	require.NoError(t, err)

	_, ok := vs.Get("derived")
	assert.False(t, ok)

	src, ok := vs.SourceOf("base")
	require.True(t, ok)
	assert.Equal(t, SourceUser, src)
}

func TestRenderExpressionCycleAtBindTime(t *testing.T) {
	tpl := &template.Template{
		ID: "t-6", Name: "cycle",
		Variables: []template.ImportedVariable{
			{Name: "a", Type: template.ImportedCalculated, Expression: "b + 1"},
			{Name: "b", Type: template.ImportedCalculated, Expression: "a + 1"},
		},
	}

	_, err := NewRenderer().Render(tpl, NewValueSet())
	require.Error(t, err)

	var bindErr *BindError
	require.True(t, errors.As(err, &bindErr))
	assert.Equal(t, BindErrorCycle, bindErr.Kind)
}

func TestRenderExpressionUnboundDependency(t *testing.T) {
	tpl := &template.Template{
		ID: "t-7", Name: "unbound",
		Variables: []template.ImportedVariable{
			{Name: "derived", Type: template.ImportedCalculated, Expression: "base * 2"},
		},
	}

	_, err := NewRenderer().Render(tpl, NewValueSet())
	require.Error(t, err)

	var bindErr *BindError
	require.True(t, errors.As(err, &bindErr))
	assert.Equal(t, BindErrorExpression, bindErr.Kind)
}

func TestRenderExpressionNonNumericDependency(t *testing.T) {
	tpl := &template.Template{
		ID: "t-8", Name: "coerce",
		Variables: []template.ImportedVariable{
			{Name: "base", Type: template.ImportedText},
			{Name: "derived", Type: template.ImportedCalculated, Expression: "base * 2"},
		},
	}

	vs := NewValueSet()
	vs.Set("base", StringValue{Val: "not a number"}, SourceUser)

	_, err := NewRenderer().Render(tpl, vs)
	require.Error(t, err)

	var bindErr *BindError
	require.True(t, errors.As(err, &bindErr))
	assert.Equal(t, BindErrorCoercion, bindErr.Kind)
	assert.Equal(t, "base", bindErr.Variable)
}

func TestFormatValueTypes(t *testing.T) {
	tests := []struct {
		name     string
		value    Value
		varType  template.VariableType
		expected string
	}{
		{"string plain", StringValue{Val: "hello"}, template.VariableString, "hello"},
		{"number raw preserved", NumberValue{Raw: "250.00", Val: 250}, template.VariableNumber, "250.00"},
		{"number formatted", NumberValue{Val: 2.5}, template.VariableNumber, "2.5"},
		{"number from string", StringValue{Val: " 120.5 "}, template.VariableNumber, "120.5"},
		{"currency two decimals", CurrencyValue{Val: 85000}, template.VariableCurrency, "85000.00"},
		{"currency raw preserved", CurrencyValue{Raw: "85,000.00", Val: 85000}, template.VariableCurrency, "85,000.00"},
		{"date value", DateValue{Val: time.Date(2021, 3, 15, 0, 0, 0, 0, time.UTC)}, template.VariableDate, "2021-03-15"},
		{"date iso string", StringValue{Val: "2021-03-15"}, template.VariableDate, "2021-03-15"},
		{"date slash string", StringValue{Val: "15/03/2021"}, template.VariableDate, "2021-03-15"},
		{"date dotted string", StringValue{Val: "15.3.2021"}, template.VariableDate, "2021-03-15"},
		{"number as string", NumberValue{Val: 42}, template.VariableString, "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatValue(tt.value, tt.varType)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestFormatValueCoercionFailures(t *testing.T) {
	tests := []struct {
		name    string
		value   Value
		varType template.VariableType
	}{
		{"text to number", StringValue{Val: "abc"}, template.VariableNumber},
		{"text to date", StringValue{Val: "not a date"}, template.VariableDate},
		{"image to string", ImageAssetRef{AssetPath: "/x.png"}, template.VariableString},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := formatValue(tt.value, tt.varType)
			assert.Error(t, err)
		})
	}
}

func TestRenderPhrasingSelection(t *testing.T) {
	tpl := &template.Template{
		ID: "t-9", Name: "phrasing",
		VariableGroups: []template.VariableGroup{{ID: "g-1", Name: "ownership", Order: 0}},
		Sections: []template.TemplateSection{
			{Order: 0, Blocks: []template.ContentBlock{
				{Kind: template.BlockText, Content: "The owner holds full title.",
					GroupID:       "g-1",
					TextTemplates: []string{"The owner holds full title.", "Title is held jointly."}},
			}},
		},
	}

	r := NewRenderer()

	// Default phrasing without a selection.
	doc, err := r.Render(tpl, NewValueSet())
	require.NoError(t, err)
	assert.Equal(t, "The owner holds full title.", doc.Sections[0].Text)

	// Alternate phrasing.
	vs := NewValueSet()
	vs.SelectPhrasing("g-1", 1)
	doc, err = r.Render(tpl, vs)
	require.NoError(t, err)
	assert.Equal(t, "Title is held jointly.", doc.Sections[0].Text)

	// Out-of-range selection falls back to the default.
	vs = NewValueSet()
	vs.SelectPhrasing("g-1", 7)
	doc, err = r.Render(tpl, vs)
	require.NoError(t, err)
	assert.Equal(t, "The owner holds full title.", doc.Sections[0].Text)
}

func TestRenderPlacesImages(t *testing.T) {
	tpl := &template.Template{
		ID: "t-10", Name: "images",
		Variables: []template.ImportedVariable{
			{Name: "image_1", Type: template.ImportedImage, ImageTarget: "media/image1.png",
				ImageExtent: template.Extent{CX: 914400, CY: 457200}, AnchorIndex: 0},
			{Name: "image_2", Type: template.ImportedImage, ImageTarget: "media/image2.png",
				ImageExtent: template.Extent{CX: 100, CY: 100}, AnchorIndex: 1},
		},
	}

	vs := NewValueSet()
	vs.Set("image_1", ImageAssetRef{
		AssetPath: "/assets/site.png",
		Extent:    &template.Extent{CX: 500, CY: 500},
	}, SourceUser)

	doc, err := NewRenderer().Render(tpl, vs)
	require.NoError(t, err)
	require.Len(t, doc.Images, 2)

	first := doc.Images[0]
	assert.Equal(t, "/assets/site.png", first.AssetPath)
	assert.Equal(t, template.Extent{CX: 500, CY: 500}, first.Extent) // override wins

	second := doc.Images[1]
	assert.Equal(t, "", second.AssetPath)
	assert.Equal(t, template.Extent{CX: 100, CY: 100}, second.Extent) // import extent kept
}

func TestRenderImageBoundToNonImageValue(t *testing.T) {
	tpl := &template.Template{
		ID: "t-11", Name: "bad-image",
		Variables: []template.ImportedVariable{
			{Name: "image_1", Type: template.ImportedImage, ImageTarget: "media/image1.png"},
		},
	}

	vs := NewValueSet()
	vs.Set("image_1", StringValue{Val: "/not/an/asset"}, SourceUser)

	_, err := NewRenderer().Render(tpl, vs)
	require.Error(t, err)

	var bindErr *BindError
	require.True(t, errors.As(err, &bindErr))
	assert.Equal(t, BindErrorCoercion, bindErr.Kind)
}

func TestRenderedDocumentText(t *testing.T) {
	doc := &RenderedDocument{
		Sections: []RenderedSection{
			{Heading: "Intro", Order: 0, Text: "first"},
			{Order: 1, Text: "second"},
		},
	}
	assert.Equal(t, "Intro\nfirst\n\nsecond", doc.Text())
}

func TestRenderSectionsSortedByOrder(t *testing.T) {
	tpl := &template.Template{
		ID: "t-12", Name: "order",
		Sections: []template.TemplateSection{
			{Order: 1, Blocks: []template.ContentBlock{{Kind: template.BlockText, Content: "late"}}},
			{Order: 0, Blocks: []template.ContentBlock{{Kind: template.BlockText, Content: "early"}}},
		},
	}

	doc, err := NewRenderer().Render(tpl, NewValueSet())
	require.NoError(t, err)
	require.Len(t, doc.Sections, 2)
	assert.Equal(t, "early", doc.Sections[0].Text)
	assert.Equal(t, "late", doc.Sections[1].Text)
}
