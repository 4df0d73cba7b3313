package rbac

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quizdeck/quizdeck/pkg/components"
)

const testSeedYAML = `roles:
  - id: Org_Admin
    name: Organization Admin
    permissions: ["*"]
    pages: ["*"]
    component_features: ["*"]
    system: true
  - id: scorekeeper
    name: Scorekeeper
    permissions:
      - tournaments.read
      - tournaments.score
    pages:
      - dashboard
      - tournaments
    component_features:
      - live-scores
`

func writeSeedFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roles.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write seed file: %v", err)
	}
	return path
}

func TestLoadSeedFile(t *testing.T) {
	roles, err := LoadSeedFile(writeSeedFile(t, testSeedYAML))
	if err != nil {
		t.Fatalf("LoadSeedFile() error = %v", err)
	}
	if len(roles) != 2 {
		t.Fatalf("len(roles) = %d, want 2", len(roles))
	}

	if roles[0].ID != "org_admin" {
		t.Errorf("role IDs must be normalized on load, got %q", roles[0].ID)
	}
	if !roles[0].IsSystemRole {
		t.Error("system flag lost")
	}
	if !roles[0].Permissions.HasWildcard() {
		t.Error("wildcard permission lost")
	}
	if !roles[1].Permissions.Contains("tournaments.score") {
		t.Error("permission list lost")
	}
}

func TestLoadSeedFileRejectsDuplicates(t *testing.T) {
	seed := `roles:
  - id: inspector
    name: First
  - id: Inspector
    name: Second
`
	if _, err := LoadSeedFile(writeSeedFile(t, seed)); err == nil {
		t.Error("duplicate normalized IDs must be rejected")
	}
}

func TestLoadSeedFileRejectsEmpty(t *testing.T) {
	if _, err := LoadSeedFile(writeSeedFile(t, "roles: []\n")); err == nil {
		t.Error("empty role list must be rejected")
	}
	if _, err := LoadSeedFile(writeSeedFile(t, "roles:\n  - name: no id\n")); err == nil {
		t.Error("role without an id must be rejected")
	}
}

func TestSeederDefaults(t *testing.T) {
	catalog := NewCatalog(nil)
	seeder := NewSeeder(catalog, "", components.DefaultRegistry(), NewTestLogger(t), nil)

	if err := seeder.Seed(); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if len(catalog.Roles()) != 4 {
		t.Errorf("default seed produced %d roles, want 4", len(catalog.Roles()))
	}
	if _, err := catalog.Get("super_admin"); err != nil {
		t.Errorf("default catalog missing super_admin: %v", err)
	}
}

func TestSeederReseedReplacesCatalog(t *testing.T) {
	path := writeSeedFile(t, testSeedYAML)
	catalog := NewCatalog(DefaultRoles())
	seeder := NewSeeder(catalog, path, components.DefaultRegistry(), NewTestLogger(t), nil)
	before := catalog.Version()

	if err := seeder.Reseed(); err != nil {
		t.Fatalf("Reseed() error = %v", err)
	}

	if catalog.Version() != before+1 {
		t.Errorf("Version() = %d, want %d", catalog.Version(), before+1)
	}
	if _, err := catalog.Get("scorekeeper"); err != nil {
		t.Errorf("reseeded catalog missing scorekeeper: %v", err)
	}
	if _, err := catalog.Get("question_manager"); !IsRoleNotFound(err) {
		t.Error("reseed should replace, not merge")
	}
}

func TestSeederReseedKeepsCatalogOnFailure(t *testing.T) {
	path := writeSeedFile(t, testSeedYAML)
	catalog := NewCatalog(nil)
	seeder := NewSeeder(catalog, path, nil, NewTestLogger(t), nil)
	if err := seeder.Seed(); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	version := catalog.Version()

	if err := os.WriteFile(path, []byte("roles: []\n"), 0o644); err != nil {
		t.Fatalf("failed to corrupt seed file: %v", err)
	}
	if err := seeder.Reseed(); err == nil {
		t.Fatal("reseed from an empty file must fail")
	}

	if catalog.Version() != version {
		t.Error("failed reseed must not touch the catalog")
	}
	if _, err := catalog.Get("scorekeeper"); err != nil {
		t.Errorf("previous catalog lost after failed reseed: %v", err)
	}
}

func TestSeederWatchReloadsOnChange(t *testing.T) {
	path := writeSeedFile(t, testSeedYAML)
	catalog := NewCatalog(nil)
	seeder := NewSeeder(catalog, path, nil, NewTestLogger(t), nil)
	if err := seeder.Seed(); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	watcher, err := seeder.Watch()
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer watcher.Close()

	updated := testSeedYAML + `  - id: announcer
    name: Announcer
    permissions:
      - tournaments.read
`
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("failed to update seed file: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for {
		if _, err := catalog.Get("announcer"); err == nil {
			return
		}
		select {
		case <-deadline:
			t.Fatal("catalog not reloaded after seed file change")
		case <-time.After(20 * time.Millisecond):
		}
	}
}
