// Package engine exposes the template import and fill contract over the
// leaf components and the registry boundary.
package engine

import (
	"context"
	"fmt"

	"github.com/ktimacloud/report-engine/internal/docx"
	"github.com/ktimacloud/report-engine/internal/instructions"
	"github.com/ktimacloud/report-engine/internal/kml"
	"github.com/ktimacloud/report-engine/internal/registry"
	"github.com/ktimacloud/report-engine/internal/render"
	"github.com/ktimacloud/report-engine/internal/template"
)

// Service orchestrates parsing, building, extraction and rendering. Each
// call is an independent unit of work; the service holds no per-call state.
type Service struct {
	maxFileSize  int64
	registry     registry.Registry
	instructions *instructions.Extractor
	renderer     *render.Renderer
}

// NewService creates an engine service over the given registry.
func NewService(maxFileSize int64, reg registry.Registry) *Service {
	return &Service{
		maxFileSize:  maxFileSize,
		registry:     reg,
		instructions: instructions.NewExtractor(nil),
		renderer:     render.NewRenderer(),
	}
}

// BuildTemplateRequest carries a source document and importer metadata.
type BuildTemplateRequest struct {
	Name        string
	Description string
	CreatedBy   string
	SourcePath  string
	Raw         []byte
}

// BuildTemplate parses a source document and derives its template.
func (s *Service) BuildTemplate(req BuildTemplateRequest) (*template.Template, error) {
	if err := s.checkSize(len(req.Raw)); err != nil {
		return nil, err
	}
	doc, err := docx.Parse(req.Raw)
	if err != nil {
		return nil, err
	}
	return template.Build(doc, template.BuildOptions{
		Name:           req.Name,
		Description:    req.Description,
		CreatedBy:      req.CreatedBy,
		SourceDocxPath: req.SourcePath,
	})
}

// SaveTemplate persists a template via the registry.
func (s *Service) SaveTemplate(ctx context.Context, t *template.Template) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	return s.registry.Save(ctx, t)
}

// LoadTemplate fetches a template by ID.
func (s *Service) LoadTemplate(ctx context.Context, id string) (*template.Template, error) {
	return s.registry.Load(ctx, id)
}

// ListTemplates returns template summaries matching the filter.
func (s *Service) ListTemplates(ctx context.Context, f registry.Filter) ([]registry.Summary, error) {
	return s.registry.List(ctx, f)
}

// ExtractGeo parses a geospatial annotation file into geo-field values.
func (s *Service) ExtractGeo(raw []byte) (map[template.GeoField]string, error) {
	if err := s.checkSize(len(raw)); err != nil {
		return nil, err
	}
	return kml.Extract(raw)
}

// ExtractInstructions scans an instruction document for labeled values.
func (s *Service) ExtractInstructions(raw []byte) (map[string]string, error) {
	if err := s.checkSize(len(raw)); err != nil {
		return nil, err
	}
	return s.instructions.Extract(raw)
}

// StartInstructionExtraction runs instruction extraction asynchronously,
// returning a job whose status drives a progress indicator.
func (s *Service) StartInstructionExtraction(raw []byte) (*instructions.Job, error) {
	if err := s.checkSize(len(raw)); err != nil {
		return nil, err
	}
	return s.instructions.Start(raw), nil
}

// FillRequest assembles one fill operation. The value sources merge in
// ascending precedence: computed, geo extraction, pdf extraction, user input.
type FillRequest struct {
	TemplateID        string
	UserValues        map[string]string
	GeoValues         map[template.GeoField]string
	InstructionValues map[string]string
	Images            map[string]render.ImageAssetRef
	Phrasings         map[string]int // variable group ID -> alternate index
}

// Fill loads a template, merges the value sources and renders the document.
func (s *Service) Fill(ctx context.Context, req FillRequest) (*render.RenderedDocument, error) {
	tpl, err := s.registry.Load(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}
	return s.FillTemplate(tpl, req)
}

// FillTemplate renders an already-loaded template. Pure: no I/O, idempotent
// for identical inputs.
func (s *Service) FillTemplate(tpl *template.Template, req FillRequest) (*render.RenderedDocument, error) {
	vs := render.NewValueSet()

	for field, value := range req.GeoValues {
		vs.Set(string(field), render.StringValue{Val: value}, render.SourceGeo)
	}
	for label, value := range req.InstructionValues {
		vs.Set(label, render.StringValue{Val: value}, render.SourcePDF)
	}
	for name, value := range req.UserValues {
		vs.Set(name, render.StringValue{Val: value}, render.SourceUser)
	}
	for name, ref := range req.Images {
		vs.Set(name, ref, render.SourceUser)
	}
	for groupID, index := range req.Phrasings {
		vs.SelectPhrasing(groupID, index)
	}

	return s.renderer.Render(tpl, vs)
}

// MaxFileSize returns the configured input size limit.
func (s *Service) MaxFileSize() int64 {
	return s.maxFileSize
}

func (s *Service) checkSize(n int) error {
	if s.maxFileSize > 0 && int64(n) > s.maxFileSize {
		return fmt.Errorf("input too large: %d bytes (max: %d bytes)", n, s.maxFileSize)
	}
	return nil
}
