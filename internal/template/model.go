// Package template defines the canonical report template model and the
// builder that derives it from a parsed document structure.
package template

import (
	"fmt"
	"sort"
	"time"
)

// BlockKind identifies the kind of a content block.
type BlockKind string

const (
	BlockText        BlockKind = "text"
	BlockVariable    BlockKind = "variable"
	BlockGeoVariable BlockKind = "geo_variable"
)

// VariableType is the value type of an inline variable reference.
type VariableType string

const (
	VariableString   VariableType = "string"
	VariableNumber   VariableType = "number"
	VariableDate     VariableType = "date"
	VariableCurrency VariableType = "currency"
)

// ImportedVariableType is the richer type of an import-discovered variable.
type ImportedVariableType string

const (
	ImportedText       ImportedVariableType = "text"
	ImportedGeo        ImportedVariableType = "geo"
	ImportedImage      ImportedVariableType = "image"
	ImportedSelect     ImportedVariableType = "select"
	ImportedDate       ImportedVariableType = "date"
	ImportedCalculated ImportedVariableType = "calculated"
)

// ContentBlock is the atomic unit of a section. Kind determines which of the
// optional fields are meaningful.
type ContentBlock struct {
	Kind          BlockKind    `json:"kind"`
	Content       string       `json:"content"`
	VariableName  string       `json:"variableName,omitempty"`
	VariableType  VariableType `json:"variableType,omitempty"`
	GeoField      GeoField     `json:"geoField,omitempty"`
	TextTemplates []string     `json:"textTemplates,omitempty"`
	GroupID       string       `json:"groupId,omitempty"`
}

// TemplateSection is an ordered container of content blocks. Order is a dense
// zero-based rank defining render sequence.
type TemplateSection struct {
	ID      string         `json:"id"`
	Heading string         `json:"heading"`
	Order   int            `json:"order"`
	Blocks  []ContentBlock `json:"blocks"`
}

// Extent is a display width/height in EMUs (914400 per inch).
type Extent struct {
	CX int64 `json:"cx"`
	CY int64 `json:"cy"`
}

// ImportedVariable is a variable discovered during import, richer than an
// inline block reference.
type ImportedVariable struct {
	Name        string               `json:"name"`
	Type        ImportedVariableType `json:"type"`
	Options     []string             `json:"options,omitempty"`
	Expression  string               `json:"expression,omitempty"`
	SourceText  string               `json:"sourceText,omitempty"`
	IsRequired  bool                 `json:"isRequired"`
	ImageTarget string               `json:"imageTarget,omitempty"`
	ImageExtent Extent               `json:"imageExtent,omitempty"`
	AnchorIndex int                  `json:"anchorIndex,omitempty"`
}

// VariableGroup is a named cluster of variables filled and rendered together.
type VariableGroup struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// Template is the aggregate root. It owns its sections and blocks;
// VariableGroups and ImportedVariables are referenced from blocks by
// identifier only, never by back-pointer.
type Template struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Description    string             `json:"description,omitempty"`
	Sections       []TemplateSection  `json:"sections"`
	Variables      []ImportedVariable `json:"variables,omitempty"`
	VariableGroups []VariableGroup    `json:"variableGroups,omitempty"`
	SourceDocxPath string             `json:"sourceDocxPath,omitempty"`
	PreviewPDFPath string             `json:"previewPdfPath,omitempty"`
	RequiresKML    bool               `json:"requiresKml"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
	CreatedBy      string             `json:"createdBy,omitempty"`
	IsActive       bool               `json:"isActive"`
}

// Variable looks up an imported variable by name.
func (t *Template) Variable(name string) (*ImportedVariable, bool) {
	for i := range t.Variables {
		if t.Variables[i].Name == name {
			return &t.Variables[i], true
		}
	}
	return nil, false
}

// Group looks up a variable group by ID.
func (t *Template) Group(id string) (*VariableGroup, bool) {
	for i := range t.VariableGroups {
		if t.VariableGroups[i].ID == id {
			return &t.VariableGroups[i], true
		}
	}
	return nil, false
}

// SortedSections returns sections in ascending render order regardless of
// discovery order.
func (t *Template) SortedSections() []TemplateSection {
	sections := make([]TemplateSection, len(t.Sections))
	copy(sections, t.Sections)
	sort.SliceStable(sections, func(i, j int) bool {
		return sections[i].Order < sections[j].Order
	})
	return sections
}

// usesGeo reports whether any block or variable is geo-bound.
func (t *Template) usesGeo() bool {
	for _, s := range t.Sections {
		for _, b := range s.Blocks {
			if b.Kind == BlockGeoVariable {
				return true
			}
		}
	}
	for _, v := range t.Variables {
		if v.Type == ImportedGeo {
			return true
		}
	}
	return false
}

// Validate checks the structural invariants of a template: non-dangling
// group references, well-formed expression graphs, and the RequiresKML
// derivation. Violations are BuildErrors, never silent nulls.
func (t *Template) Validate() error {
	for _, s := range t.Sections {
		for _, b := range s.Blocks {
			if b.GroupID == "" {
				continue
			}
			if _, ok := t.Group(b.GroupID); !ok {
				return newBuildError(b.Content, fmt.Sprintf("block references unknown variable group %q", b.GroupID))
			}
		}
	}

	if t.usesGeo() && !t.RequiresKML {
		return newBuildError("", "template uses geo variables but RequiresKML is false")
	}

	return t.validateExpressions()
}

// validateExpressions verifies that calculated variables reference only
// existing variable names and that the dependency graph is acyclic.
func (t *Template) validateExpressions() error {
	calculated := make(map[string][]string)
	for _, v := range t.Variables {
		if v.Type != ImportedCalculated {
			continue
		}
		refs, err := ExpressionIdentifiers(v.Expression)
		if err != nil {
			return newBuildError(v.Expression, fmt.Sprintf("variable %q has an invalid expression: %v", v.Name, err))
		}
		for _, ref := range refs {
			if _, ok := t.Variable(ref); !ok {
				return newBuildError(v.Expression, fmt.Sprintf("variable %q references unknown variable %q", v.Name, ref))
			}
		}
		calculated[v.Name] = refs
	}

	// Kahn's algorithm over calculated-to-calculated edges only; references
	// to plain variables cannot form cycles.
	indegree := make(map[string]int, len(calculated))
	for name := range calculated {
		indegree[name] = 0
	}
	for name, refs := range calculated {
		for _, ref := range refs {
			if _, ok := calculated[ref]; ok {
				indegree[name]++
			}
		}
	}

	queue := make([]string, 0, len(calculated))
	for name, deg := range indegree {
		if deg == 0 {
			queue = append(queue, name)
		}
	}
	visited := 0
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		visited++
		for name, refs := range calculated {
			for _, ref := range refs {
				if ref == current {
					indegree[name]--
					if indegree[name] == 0 {
						queue = append(queue, name)
					}
				}
			}
		}
	}
	if visited != len(calculated) {
		return newBuildError("", "calculated variables form an expression cycle")
	}
	return nil
}
