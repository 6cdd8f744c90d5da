// Package registry defines the persistence boundary for templates. The
// engine only depends on the Load/Save/List contract, never on a storage
// technology.
package registry

import (
	"context"
	"errors"
	"time"

	"github.com/ktimacloud/report-engine/internal/template"
)

// ErrNotFound is returned when no template exists for an ID.
var ErrNotFound = errors.New("template not found")

// Filter narrows a listing.
type Filter struct {
	ActiveOnly   bool
	NameContains string
}

// Summary is the listing projection of a template.
type Summary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	RequiresKML bool      `json:"requiresKml"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Registry is the template persistence contract.
type Registry interface {
	Load(ctx context.Context, id string) (*template.Template, error)
	Save(ctx context.Context, t *template.Template) (string, error)
	List(ctx context.Context, f Filter) ([]Summary, error)
}
