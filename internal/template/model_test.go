package template

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTemplate() *Template {
	return &Template{
		ID:   "t-1",
		Name: "test",
		Sections: []TemplateSection{
			{ID: "s-1", Order: 0, Blocks: []ContentBlock{
				{Kind: BlockText, Content: "hello "},
				{Kind: BlockVariable, Content: "{{owner_name}}", VariableName: "owner_name", VariableType: VariableString},
			}},
		},
		Variables: []ImportedVariable{
			{Name: "owner_name", Type: ImportedText},
		},
		IsActive: true,
	}
}

func TestValidateOK(t *testing.T) {
	require.NoError(t, validTemplate().Validate())
}

func TestValidateDanglingGroup(t *testing.T) {
	tpl := validTemplate()
	tpl.Sections[0].Blocks[0].GroupID = "missing-group"

	err := tpl.Validate()
	require.Error(t, err)

	var buildErr *BuildError
	require.True(t, errors.As(err, &buildErr))
	assert.Contains(t, buildErr.Reason, "missing-group")
}

func TestValidateGroupReferenceOK(t *testing.T) {
	tpl := validTemplate()
	tpl.VariableGroups = []VariableGroup{{ID: "g-1", Name: "ownership", Order: 0}}
	tpl.Sections[0].Blocks[0].GroupID = "g-1"
	require.NoError(t, tpl.Validate())
}

func TestValidateGeoRequiresKML(t *testing.T) {
	tpl := validTemplate()
	tpl.Sections[0].Blocks = append(tpl.Sections[0].Blocks, ContentBlock{
		Kind:     BlockGeoVariable,
		Content:  "{{geo:zone}}",
		GeoField: GeoZone,
	})

	err := tpl.Validate()
	require.Error(t, err)

	tpl.RequiresKML = true
	require.NoError(t, tpl.Validate())
}

func TestValidateExpressionUnknownReference(t *testing.T) {
	tpl := validTemplate()
	tpl.Variables = append(tpl.Variables, ImportedVariable{
		Name:       "derived",
		Type:       ImportedCalculated,
		Expression: "owner_name + missing_var",
	})

	err := tpl.Validate()
	require.Error(t, err)

	var buildErr *BuildError
	require.True(t, errors.As(err, &buildErr))
	assert.Contains(t, buildErr.Reason, "missing_var")
}

func TestValidateExpressionCycle(t *testing.T) {
	tpl := validTemplate()
	tpl.Variables = append(tpl.Variables,
		ImportedVariable{Name: "a", Type: ImportedCalculated, Expression: "b + 1"},
		ImportedVariable{Name: "b", Type: ImportedCalculated, Expression: "a * 2"},
	)

	err := tpl.Validate()
	require.Error(t, err)

	var buildErr *BuildError
	require.True(t, errors.As(err, &buildErr))
	assert.Contains(t, buildErr.Reason, "cycle")
}

func TestValidateExpressionChainOK(t *testing.T) {
	tpl := validTemplate()
	tpl.Variables = append(tpl.Variables,
		ImportedVariable{Name: "plot_area", Type: ImportedText},
		ImportedVariable{Name: "buildable", Type: ImportedCalculated, Expression: "plot_area * 0.8"},
		ImportedVariable{Name: "per_floor", Type: ImportedCalculated, Expression: "buildable / 2"},
	)
	require.NoError(t, tpl.Validate())
}

func TestSortedSections(t *testing.T) {
	tpl := &Template{Sections: []TemplateSection{
		{ID: "c", Order: 2},
		{ID: "a", Order: 0},
		{ID: "b", Order: 1},
	}}

	sorted := tpl.SortedSections()
	require.Len(t, sorted, 3)
	assert.Equal(t, "a", sorted[0].ID)
	assert.Equal(t, "b", sorted[1].ID)
	assert.Equal(t, "c", sorted[2].ID)

	// Original slice untouched.
	assert.Equal(t, "c", tpl.Sections[0].ID)
}

func TestParseGeoField(t *testing.T) {
	f, ok := ParseGeoField("plot_number")
	require.True(t, ok)
	assert.Equal(t, GeoPlotNumber, f)

	_, ok = ParseGeoField("not_a_field")
	assert.False(t, ok)

	// Every published field round-trips.
	for _, field := range AllGeoFields() {
		parsed, ok := ParseGeoField(string(field))
		require.True(t, ok, "field %s", field)
		assert.Equal(t, field, parsed)
	}
}
