package registry

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ktimacloud/report-engine/internal/template"
)

// MemoryRegistry is an in-process Registry used in stdio mode and tests.
type MemoryRegistry struct {
	mu        sync.RWMutex
	templates map[string]*template.Template
}

// NewMemoryRegistry creates an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{templates: make(map[string]*template.Template)}
}

// Load returns a copy of the stored template.
func (r *MemoryRegistry) Load(_ context.Context, id string) (*template.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.templates[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneTemplate(stored)
}

// Save stores a copy of the template, assigning an ID when absent and
// maintaining lifecycle timestamps.
func (r *MemoryRegistry) Save(_ context.Context, t *template.Template) (string, error) {
	clone, err := cloneTemplate(t)
	if err != nil {
		return "", err
	}
	if clone.ID == "" {
		clone.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = now
	}
	clone.UpdatedAt = now

	r.mu.Lock()
	r.templates[clone.ID] = clone
	r.mu.Unlock()
	return clone.ID, nil
}

// List returns matching template summaries, most recently updated first.
func (r *MemoryRegistry) List(_ context.Context, f Filter) ([]Summary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summaries := make([]Summary, 0, len(r.templates))
	for _, t := range r.templates {
		if f.ActiveOnly && !t.IsActive {
			continue
		}
		if f.NameContains != "" && !strings.Contains(strings.ToLower(t.Name), strings.ToLower(f.NameContains)) {
			continue
		}
		summaries = append(summaries, Summary{
			ID:          t.ID,
			Name:        t.Name,
			Description: t.Description,
			RequiresKML: t.RequiresKML,
			IsActive:    t.IsActive,
			CreatedAt:   t.CreatedAt,
			UpdatedAt:   t.UpdatedAt,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

// cloneTemplate deep-copies a template so callers never share state with
// the store.
func cloneTemplate(t *template.Template) (*template.Template, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	clone := &template.Template{}
	if err := json.Unmarshal(data, clone); err != nil {
		return nil, err
	}
	return clone, nil
}
