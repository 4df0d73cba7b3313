package rbac

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/quizdeck/quizdeck/pkg/components"
	"github.com/quizdeck/quizdeck/pkg/observability"
)

// DefaultRoles returns the built-in role catalog used when no seed file
// is configured.
func DefaultRoles() []*Role {
	return []*Role{
		{
			ID:                RoleSuperAdmin,
			Name:              "Super Admin",
			Permissions:       NewSet(Wildcard),
			Pages:             NewSet(Wildcard),
			ComponentFeatures: NewSet(Wildcard),
			IsSystemRole:      true,
		},
		{
			ID:                RoleOrgAdmin,
			Name:              "Organization Admin",
			Permissions:       NewSet(Wildcard),
			Pages:             NewSet(Wildcard),
			ComponentFeatures: NewSet(Wildcard),
			IsSystemRole:      true,
		},
		{
			ID:   RoleQuestionManager,
			Name: "Question Manager",
			Permissions: NewSet(
				"questions.read",
				"questions.create",
				"questions.update",
			),
			Pages: NewSet(
				"dashboard",
				"questions",
				"categories",
			),
			ComponentFeatures: NewSet(
				"rich-text",
				"bulk-import",
				"category-manager",
			),
		},
		{
			ID:   RoleInspector,
			Name: "Inspector",
			Permissions: NewSet(
				"questions.read",
				"tournaments.read",
				"reports.read",
			),
			Pages: NewSet(
				"dashboard",
				"questions",
				"tournaments",
				"reports",
			),
			ComponentFeatures: NewSet(
				"live-scores",
				"export-csv",
			),
		},
	}
}

// seedFile is the on-disk YAML shape of the role catalog
type seedFile struct {
	Roles []seedRole `yaml:"roles"`
}

type seedRole struct {
	ID                string   `yaml:"id"`
	Name              string   `yaml:"name"`
	Permissions       []string `yaml:"permissions"`
	Pages             []string `yaml:"pages"`
	ComponentFeatures []string `yaml:"component_features"`
	System            bool     `yaml:"system"`
}

// LoadSeedFile parses and validates a role catalog seed file
func LoadSeedFile(path string) ([]*Role, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	if len(file.Roles) == 0 {
		return nil, fmt.Errorf("seed file %s defines no roles", path)
	}

	seen := make(map[string]bool, len(file.Roles))
	roles := make([]*Role, 0, len(file.Roles))
	for i, sr := range file.Roles {
		id := NormalizeRoleID(sr.ID)
		if id == "" {
			return nil, fmt.Errorf("seed role %d has no id", i)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate role id in seed file: %s", id)
		}
		seen[id] = true

		roles = append(roles, &Role{
			ID:                id,
			Name:              sr.Name,
			Permissions:       NewSet(sr.Permissions...),
			Pages:             NewSet(sr.Pages...),
			ComponentFeatures: NewSet(sr.ComponentFeatures...),
			IsSystemRole:      sr.System,
		})
	}
	return roles, nil
}

// Seeder loads the role catalog from its seed source and supports the
// administrative re-seed path.
type Seeder struct {
	catalog  *Catalog
	path     string // empty means built-in defaults
	registry *components.Registry
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewSeeder creates a seeder for the catalog. An empty path seeds from
// the built-in defaults.
func NewSeeder(catalog *Catalog, path string, registry *components.Registry, logger *observability.Logger, metrics *observability.Metrics) *Seeder {
	return &Seeder{
		catalog:  catalog,
		path:     path,
		registry: registry,
		logger:   logger,
		metrics:  metrics,
	}
}

// load reads roles from the seed source without touching the catalog
func (s *Seeder) load() ([]*Role, error) {
	if s.path == "" {
		return DefaultRoles(), nil
	}
	roles, err := LoadSeedFile(s.path)
	if err != nil {
		return nil, err
	}
	s.warnUnknownFeatures(roles)
	return roles, nil
}

// warnUnknownFeatures flags seed features outside the component
// registry's vocabulary. A typo here silently denies access, so it is
// worth a log line even though it is not an error.
func (s *Seeder) warnUnknownFeatures(roles []*Role) {
	if s.registry == nil {
		return
	}

	known := make(map[string]bool)
	for _, componentID := range s.registry.Components() {
		for _, f := range s.registry.FeaturesFor(componentID) {
			known[f] = true
		}
	}

	for _, role := range roles {
		for feature := range role.ComponentFeatures {
			if feature != Wildcard && !known[feature] {
				s.logger.WithFields(map[string]interface{}{
					"role":    role.ID,
					"feature": feature,
				}).Warn("Seed grants a component feature no registry component exposes")
			}
		}
	}
}

// Seed performs the initial catalog load
func (s *Seeder) Seed() error {
	roles, err := s.load()
	if err != nil {
		return fmt.Errorf("failed to seed role catalog: %w", err)
	}
	s.catalog.Replace(roles)
	s.logger.WithFields(map[string]interface{}{
		"roles":   len(roles),
		"version": s.catalog.Version(),
	}).Info("Role catalog seeded")
	return nil
}

// Reseed re-runs the seed load to repair bad catalog data. It is the
// only mutation path after startup and is admin-triggered.
func (s *Seeder) Reseed() error {
	if err := s.Seed(); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.CatalogReseedTotal.Inc()
	}
	return nil
}

// Watch reloads the catalog whenever the seed file changes on disk.
// Close the returned watcher to stop. No-op when seeding from defaults.
func (s *Seeder) Watch() (*fsnotify.Watcher, error) {
	if s.path == "" {
		return nil, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create seed watcher: %w", err)
	}

	// Watch the directory: editors typically replace the file, which
	// drops a watch registered on the file itself.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch seed directory: %w", err)
	}

	target := filepath.Clean(s.path)
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := s.Reseed(); err != nil {
					s.logger.WithError(err).Error("Seed file changed but reload failed; keeping previous catalog")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.WithError(err).Error("Seed watcher error")
			}
		}
	}()

	return watcher, nil
}
