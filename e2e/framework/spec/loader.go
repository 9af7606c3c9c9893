package spec

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/rdf"
)

// pathParams lists step parameters naming input files. They are resolved
// against the directory of the spec that declares them. "path" applies to
// every action.
var pathParams = map[string][]string{
	"sparql.update":      {"file"},
	"objectstore.upload": {"local_path"},
}

// Loader reads test specs and checks them against the actions and fixtures
// the harness knows about. A zero Loader accepts any action and fixture.
type Loader struct {
	knownAction  func(action string) bool
	knownFixture func(name string) bool
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithActions rejects steps whose action, or assertions whose "assert."
// action, is unknown.
func WithActions(known func(action string) bool) LoaderOption {
	return func(l *Loader) { l.knownAction = known }
}

// WithFixtures rejects references to fixtures missing from the registry.
func WithFixtures(known func(name string) bool) LoaderOption {
	return func(l *Loader) { l.knownFixture = known }
}

// NewLoader returns a Loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadSpecs reads every spec below root without registry checks.
func LoadSpecs(root string) ([]TestSpec, error) {
	return NewLoader().Load(root)
}

// Load reads all spec files below root, expands variants and rejects
// duplicate test names.
func (l *Loader) Load(root string) ([]TestSpec, error) {
	var specs []TestSpec
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !isSpecFile(path) {
			return err
		}
		loaded, err := l.LoadFile(path)
		if err != nil {
			return err
		}
		specs = append(specs, loaded...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]string, len(specs))
	for _, s := range specs {
		if prev, ok := seen[s.Metadata.Name]; ok {
			return nil, fmt.Errorf("duplicate test name %q in %s and %s", s.Metadata.Name, prev, s.Source)
		}
		seen[s.Metadata.Name] = s.Source
	}
	return specs, nil
}

// LoadFile reads one YAML stream, which may hold several documents.
func (l *Loader) LoadFile(path string) ([]TestSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var specs []TestSpec
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var doc TestSpec
		if err := decoder.Decode(&doc); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if doc.Metadata.Name == "" && doc.Kind == "" && doc.APIVersion == "" && len(doc.Steps) == 0 {
			continue
		}
		if doc.Metadata.Name == "" {
			doc.Metadata.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		doc.Source = path
		resolvePaths(&doc, filepath.Dir(path))

		expanded := []TestSpec{doc}
		if len(doc.Variants) > 0 {
			expanded = expandVariants(doc)
		}
		for _, s := range expanded {
			if err := l.check(s); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
		}
		specs = append(specs, expanded...)
	}
	return specs, nil
}

func isSpecFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// check validates the structure, then the RDF content and registry
// references of a single expanded spec.
func (l *Loader) check(s TestSpec) error {
	if err := s.Validate(); err != nil {
		return err
	}
	aliases := make(map[string]bool, len(s.Fixtures))
	for _, ref := range s.Fixtures {
		aliases[ref.Alias()] = true
		if ref.File != "" {
			if _, err := os.Stat(ref.File); err != nil {
				return fmt.Errorf("spec %q fixture %q: %w", s.Metadata.Name, ref.Alias(), err)
			}
			continue
		}
		if l.knownFixture != nil && !l.knownFixture(ref.Name) {
			return fmt.Errorf("spec %q references unknown fixture %q", s.Metadata.Name, ref.Name)
		}
	}
	for _, step := range s.Steps {
		if err := l.checkStep(s.Metadata.Name, step, aliases); err != nil {
			return err
		}
	}
	for _, assertion := range s.Assertions {
		step := StepSpec{Name: assertion.Name, Action: "assert." + assertion.Type, With: assertion.With}
		if err := l.checkStep(s.Metadata.Name, step, aliases); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) checkStep(specName string, step StepSpec, aliases map[string]bool) error {
	if l.knownAction != nil && !l.knownAction(step.Action) {
		return fmt.Errorf("spec %q step %q uses unknown action %q", specName, step.Name, step.Action)
	}
	if name, ok := step.With["fixture"].(string); ok && l.knownFixture != nil && !deferred(name) && !aliases[name] && !l.knownFixture(name) {
		return fmt.Errorf("spec %q step %q references unknown fixture %q", specName, step.Name, name)
	}
	if body, ok := step.With["turtle"].(string); ok && !deferred(body) {
		if _, err := rdf.ParseString(body, rdf.MimeTurtle, ""); err != nil {
			return fmt.Errorf("spec %q step %q: inline turtle: %w", specName, step.Name, err)
		}
	}
	return nil
}

// deferred reports whether a value holds variables expanded at run time.
func deferred(value string) bool {
	return strings.Contains(value, "${")
}

func resolvePaths(s *TestSpec, dir string) {
	resolve := func(value string) string {
		if value == "" || filepath.IsAbs(value) || deferred(value) {
			return value
		}
		return filepath.Join(dir, value)
	}
	for i := range s.Fixtures {
		s.Fixtures[i].File = resolve(s.Fixtures[i].File)
	}
	resolveSteps := func(steps []StepSpec) {
		for _, step := range steps {
			keys := append([]string{"path"}, pathParams[strings.ToLower(step.Action)]...)
			for _, key := range keys {
				if value, ok := step.With[key].(string); ok {
					step.With[key] = resolve(value)
				}
			}
		}
	}
	resolveSteps(s.Steps)
	for _, variant := range s.Variants {
		for _, override := range variant.StepOverrides {
			resolveSteps([]StepSpec{{Action: override.Action, With: override.With}})
		}
	}
}

// expandVariants turns a spec with variants into one spec per variant. The
// base spec itself is not run.
func expandVariants(base TestSpec) []TestSpec {
	out := make([]TestSpec, 0, len(base.Variants))
	for i, variant := range base.Variants {
		out = append(out, variant.apply(base, i))
	}
	return out
}

func (v VariantSpec) apply(base TestSpec, index int) TestSpec {
	s := base
	s.Variants = nil
	s.Metadata.Name = v.name(base.Metadata.Name, index)
	s.Metadata.Tags = mergeTags(base.Metadata.Tags, v.Tags)
	s.Fixtures = append([]FixtureRef(nil), base.Fixtures...)
	s.Params = nil
	for key, value := range base.Params {
		s.setParam(key, value)
	}
	for key, value := range v.Params {
		if strings.TrimSpace(value) != "" {
			s.setParam(key, value)
		}
	}
	s.Steps = make([]StepSpec, len(base.Steps))
	for i, step := range base.Steps {
		s.Steps[i] = StepSpec{Name: step.Name, Action: step.Action, With: cloneWith(step.With)}
	}
	for _, override := range v.StepOverrides {
		s.Steps = override.applyTo(s.Steps)
	}
	return s
}

func (s *TestSpec) setParam(key, value string) {
	if s.Params == nil {
		s.Params = make(map[string]string)
	}
	s.Params[key] = value
}

func (v VariantSpec) name(base string, index int) string {
	if name := strings.TrimSpace(v.Name); name != "" {
		return name
	}
	if suffix := strings.TrimSpace(v.NameSuffix); suffix != "" {
		return base + "-" + suffix
	}
	return fmt.Sprintf("%s-%d", base, index+1)
}

// applyTo patches the step named o.Name, appending it when absent. A nil
// value in With removes that parameter.
func (o StepOverride) applyTo(steps []StepSpec) []StepSpec {
	name := strings.TrimSpace(o.Name)
	if name == "" {
		return steps
	}
	for i := range steps {
		if !strings.EqualFold(steps[i].Name, name) {
			continue
		}
		if o.Replace {
			steps[i] = StepSpec{Name: name, Action: o.Action, With: cloneWith(o.With)}
			return steps
		}
		if o.Action != "" {
			steps[i].Action = o.Action
		}
		for key, value := range o.With {
			if steps[i].With == nil {
				steps[i].With = make(map[string]interface{}, len(o.With))
			}
			if value == nil {
				delete(steps[i].With, key)
				continue
			}
			steps[i].With[key] = value
		}
		return steps
	}
	return append(steps, StepSpec{Name: name, Action: o.Action, With: cloneWith(o.With)})
}

func mergeTags(base, extra []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, tag := range append(append([]string(nil), base...), extra...) {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[strings.ToLower(tag)] {
			continue
		}
		seen[strings.ToLower(tag)] = true
		out = append(out, tag)
	}
	return out
}

func cloneWith(input map[string]interface{}) map[string]interface{} {
	if len(input) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(input))
	for key, value := range input {
		out[key] = value
	}
	return out
}
