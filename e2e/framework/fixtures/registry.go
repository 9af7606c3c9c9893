package fixtures

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Fixture defines an RDF document used as test input or expected output.
type Fixture struct {
	Name        string            `json:"name" yaml:"name"`
	File        string            `json:"file" yaml:"file"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Graph       string            `json:"graph,omitempty" yaml:"graph,omitempty"`
	Format      string            `json:"format,omitempty" yaml:"format,omitempty"`
	Source      string            `json:"source,omitempty" yaml:"source,omitempty"`
	Bucket      string            `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	SHA256      string            `json:"sha256,omitempty" yaml:"sha256,omitempty"`
	Settings    map[string]string `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// IsLocal reports whether the fixture is read from the local file system.
func (f Fixture) IsLocal() bool {
	switch strings.ToLower(strings.TrimSpace(f.Source)) {
	case "", "local", "file":
		return true
	default:
		return false
	}
}

// Registry holds fixtures keyed by name.
type Registry struct {
	Fixtures map[string]Fixture `json:"fixtures" yaml:"fixtures"`
	// Dir anchors relative local fixture paths.
	Dir string `json:"-" yaml:"-"`
}

// LoadRegistry reads a registry YAML file. Local fixture paths are resolved
// relative to the registry file.
func LoadRegistry(path string) (*Registry, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read fixture registry")
	}
	var reg Registry
	if err := yaml.Unmarshal(payload, &reg); err != nil {
		return nil, errors.Wrapf(err, "parse fixture registry %s", path)
	}
	reg.Dir = filepath.Dir(path)
	if reg.Fixtures == nil {
		reg.Fixtures = make(map[string]Fixture)
	}
	for key, fixture := range reg.Fixtures {
		fixture = expandFixture(fixture)
		if fixture.Name == "" {
			fixture.Name = key
		}
		if strings.TrimSpace(fixture.File) == "" {
			return nil, errors.Errorf("fixture %q has no file", key)
		}
		if fixture.IsLocal() && !filepath.IsAbs(fixture.File) {
			fixture.File = filepath.Join(reg.Dir, fixture.File)
		}
		reg.Fixtures[key] = fixture
	}
	return &reg, nil
}

// NewRegistry builds an in-memory registry.
func NewRegistry(fixtures ...Fixture) *Registry {
	reg := &Registry{Fixtures: make(map[string]Fixture, len(fixtures))}
	for _, fixture := range fixtures {
		reg.Fixtures[fixture.Name] = fixture
	}
	return reg
}

func expandFixture(fixture Fixture) Fixture {
	fixture.Name = os.ExpandEnv(fixture.Name)
	fixture.File = os.ExpandEnv(fixture.File)
	fixture.Graph = os.ExpandEnv(fixture.Graph)
	fixture.Source = os.ExpandEnv(fixture.Source)
	fixture.Bucket = os.ExpandEnv(fixture.Bucket)
	if fixture.Settings != nil {
		for key, value := range fixture.Settings {
			fixture.Settings[key] = os.ExpandEnv(value)
		}
	}
	return fixture
}

// Get returns a fixture by name.
func (r *Registry) Get(name string) (Fixture, bool) {
	if r == nil {
		return Fixture{}, false
	}
	fixture, ok := r.Fixtures[name]
	return fixture, ok
}

// Names lists registered fixtures in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.Fixtures))
	for name := range r.Fixtures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
