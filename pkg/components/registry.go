package components

import (
	"fmt"
	"sort"
	"sync"
)

// Known component IDs
const (
	ComponentQuestionEditor  = "question-editor"
	ComponentTournamentBoard = "tournament-board"
	ComponentReports         = "reports"
)

// Registry maps component IDs to the feature IDs they expose
type Registry struct {
	mu       sync.RWMutex
	features map[string][]string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{features: make(map[string][]string)}
}

// DefaultRegistry returns the registry for the built-in admin console
// components
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(ComponentQuestionEditor, "rich-text", "bulk-import", "category-manager")
	r.Register(ComponentTournamentBoard, "live-scores", "bracket-edit", "seeding")
	r.Register(ComponentReports, "export-csv", "export-pdf")
	return r
}

// Register sets the feature list for a component, replacing any prior
// registration
func (r *Registry) Register(componentID string, features ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.features[componentID] = append([]string(nil), features...)
}

// FeaturesFor returns the features a component exposes. Unknown
// components have no features.
func (r *Registry) FeaturesFor(componentID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.features[componentID]...)
}

// Has reports whether the component exposes the given feature
func (r *Registry) Has(componentID, featureID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range r.features[componentID] {
		if f == featureID {
			return true
		}
	}
	return false
}

// Components returns all registered component IDs, sorted
func (r *Registry) Components() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.features))
	for id := range r.features {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// QualifiedFeature formats a component feature as component:feature,
// the form the role catalog stores
func QualifiedFeature(componentID, featureID string) string {
	return fmt.Sprintf("%s:%s", componentID, featureID)
}
