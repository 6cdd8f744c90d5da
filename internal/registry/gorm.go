package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ktimacloud/report-engine/internal/template"
)

// templateRecord is the durable row shape. The full template definition is
// stored as a JSON document; listing columns are denormalized for filtering.
type templateRecord struct {
	ID          string `gorm:"primaryKey"`
	Name        string `gorm:"not null;index"`
	Description string
	Definition  string `gorm:"type:jsonb;not null"`
	RequiresKML bool   `gorm:"column:requires_kml"`
	IsActive    bool   `gorm:"default:true;index"`
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName specifies the table name for GORM.
func (templateRecord) TableName() string {
	return "report_templates"
}

// GormRegistry is a Postgres-backed Registry.
type GormRegistry struct {
	db *gorm.DB
}

// NewGormRegistry connects to Postgres and migrates the template table.
func NewGormRegistry(dsn string) (*GormRegistry, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := db.AutoMigrate(&templateRecord{}); err != nil {
		return nil, fmt.Errorf("migrating template table: %w", err)
	}
	return &GormRegistry{db: db}, nil
}

// NewGormRegistryWithDB wraps an existing connection (used by tests).
func NewGormRegistryWithDB(db *gorm.DB) *GormRegistry {
	return &GormRegistry{db: db}
}

// Load fetches and decodes one template.
func (r *GormRegistry) Load(ctx context.Context, id string) (*template.Template, error) {
	var record templateRecord
	err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading template %s: %w", id, err)
	}

	t := &template.Template{}
	if err := json.Unmarshal([]byte(record.Definition), t); err != nil {
		return nil, fmt.Errorf("decoding template %s: %w", id, err)
	}
	return t, nil
}

// Save upserts a template, assigning an ID when absent.
func (r *GormRegistry) Save(ctx context.Context, t *template.Template) (string, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	definition, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("encoding template: %w", err)
	}

	record := templateRecord{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Definition:  string(definition),
		RequiresKML: t.RequiresKML,
		IsActive:    t.IsActive,
		CreatedBy:   t.CreatedBy,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if err := r.db.WithContext(ctx).Save(&record).Error; err != nil {
		return "", fmt.Errorf("saving template: %w", err)
	}
	return t.ID, nil
}

// List returns matching template summaries, most recently updated first.
func (r *GormRegistry) List(ctx context.Context, f Filter) ([]Summary, error) {
	query := r.db.WithContext(ctx).Model(&templateRecord{})
	if f.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	if f.NameContains != "" {
		query = query.Where("lower(name) LIKE ?", "%"+strings.ToLower(f.NameContains)+"%")
	}

	var records []templateRecord
	if err := query.Order("updated_at DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}

	summaries := make([]Summary, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, Summary{
			ID:          record.ID,
			Name:        record.Name,
			Description: record.Description,
			RequiresKML: record.RequiresKML,
			IsActive:    record.IsActive,
			CreatedAt:   record.CreatedAt,
			UpdatedAt:   record.UpdatedAt,
		})
	}
	return summaries, nil
}
