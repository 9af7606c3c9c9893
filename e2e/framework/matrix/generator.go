package matrix

import (
	"fmt"
	"sort"
	"strings"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/spec"
)

// Matrix defines a fixture round-trip matrix.
type Matrix struct {
	Name        string       `yaml:"name" json:"name"`
	Description string       `yaml:"description,omitempty" json:"description,omitempty"`
	Fixtures    []string     `yaml:"fixtures" json:"fixtures"`
	InsertModes []string     `yaml:"insert_modes,omitempty" json:"insert_modes,omitempty"`
	Scenarios   []Scenario   `yaml:"scenarios" json:"scenarios"`
	Constraints []Constraint `yaml:"constraints,omitempty" json:"constraints,omitempty"`
	Tags        []string     `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// Scenario defines a test scenario template. Steps and assertions may use
// ${fixture}, ${mode} and ${scenario}.
type Scenario struct {
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Tags        []string          `yaml:"tags" json:"tags"`
	Steps       []spec.StepSpec   `yaml:"steps" json:"steps"`
	Assertions  []spec.AssertSpec `yaml:"assertions,omitempty" json:"assertions,omitempty"`
	Params      map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
	Timeout     string            `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// Constraint defines constraints for test combinations
type Constraint struct {
	Type      string                 `yaml:"type" json:"type"` // "exclude" or "require"
	Condition map[string]interface{} `yaml:"condition" json:"condition"`
	Reason    string                 `yaml:"reason,omitempty" json:"reason,omitempty"`
}

// Combination represents a single test combination
type Combination struct {
	Fixture  string
	Mode     string
	Scenario Scenario
}

// Generator generates test specs from a matrix
type Generator struct {
	matrix *Matrix
}

// NewGenerator creates a new matrix generator
func NewGenerator(matrix *Matrix) *Generator {
	return &Generator{matrix: matrix}
}

// Validate checks that the matrix can generate specs.
func (m *Matrix) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("matrix name is required")
	}
	if len(m.Fixtures) == 0 {
		return fmt.Errorf("at least one fixture is required")
	}
	if len(m.Scenarios) == 0 {
		return fmt.Errorf("at least one scenario is required")
	}
	for i, scenario := range m.Scenarios {
		if scenario.Name == "" {
			return fmt.Errorf("scenario %d: name is required", i)
		}
		if len(scenario.Steps) == 0 {
			return fmt.Errorf("scenario %s: at least one step is required", scenario.Name)
		}
	}
	for i, constraint := range m.Constraints {
		if constraint.Type != "exclude" && constraint.Type != "require" {
			return fmt.Errorf("constraint %d: unknown type %q", i, constraint.Type)
		}
	}
	return nil
}

// Generate generates all test specs from the matrix
func (g *Generator) Generate() ([]spec.TestSpec, error) {
	if err := g.matrix.Validate(); err != nil {
		return nil, err
	}
	var specs []spec.TestSpec
	for _, combo := range g.applyConstraints(g.generateCombinations()) {
		testSpec := g.createTestSpec(combo)
		if err := testSpec.Validate(); err != nil {
			return nil, err
		}
		specs = append(specs, testSpec)
	}
	return specs, nil
}

func (g *Generator) modes() []string {
	if len(g.matrix.InsertModes) == 0 {
		return []string{"bulk"}
	}
	return g.matrix.InsertModes
}

// generateCombinations generates the cartesian product of all dimensions
func (g *Generator) generateCombinations() []Combination {
	var combinations []Combination
	for _, fixture := range g.matrix.Fixtures {
		for _, mode := range g.modes() {
			for _, scenario := range g.matrix.Scenarios {
				combinations = append(combinations, Combination{Fixture: fixture, Mode: mode, Scenario: scenario})
			}
		}
	}
	return combinations
}

// applyConstraints filters combinations based on constraints
func (g *Generator) applyConstraints(combinations []Combination) []Combination {
	var filtered []Combination
	for _, combo := range combinations {
		if g.shouldInclude(combo) {
			filtered = append(filtered, combo)
		}
	}
	return filtered
}

func (g *Generator) shouldInclude(combo Combination) bool {
	for _, constraint := range g.matrix.Constraints {
		switch constraint.Type {
		case "exclude":
			if matchesCondition(combo, constraint.Condition) {
				return false
			}
		case "require":
			if !matchesCondition(combo, constraint.Condition) {
				return false
			}
		}
	}
	return true
}

// matchesCondition reports whether every key of the condition matches.
// Values may be a string or a list of strings.
func matchesCondition(combo Combination, condition map[string]interface{}) bool {
	for key, value := range condition {
		var comboValues []string
		switch key {
		case "fixture":
			comboValues = []string{combo.Fixture}
		case "mode":
			comboValues = []string{combo.Mode}
		case "scenario":
			comboValues = []string{combo.Scenario.Name}
		case "scenario_tag":
			comboValues = combo.Scenario.Tags
		default:
			continue
		}
		if !anyMatch(comboValues, value) {
			return false
		}
	}
	return true
}

func anyMatch(have []string, value interface{}) bool {
	var want []string
	switch v := value.(type) {
	case string:
		want = []string{v}
	case []string:
		want = v
	case []interface{}:
		for _, item := range v {
			if str, ok := item.(string); ok {
				want = append(want, str)
			}
		}
	}
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}

// createTestSpec creates a test spec from a combination. The fixture is
// preloaded as "expected".
func (g *Generator) createTestSpec(combo Combination) spec.TestSpec {
	testName := fmt.Sprintf("%s_%s_%s_%s",
		g.matrix.Name,
		combo.Scenario.Name,
		sanitizeName(combo.Fixture),
		sanitizeName(combo.Mode),
	)
	description := strings.TrimSpace(fmt.Sprintf("%s (%s, %s insert)", combo.Scenario.Description, combo.Fixture, combo.Mode))

	tags := append([]string{}, g.matrix.Tags...)
	tags = append(tags, combo.Scenario.Tags...)
	tags = append(tags, combo.Mode, "matrix-generated")

	vars := map[string]string{
		"${fixture}":  combo.Fixture,
		"${mode}":     combo.Mode,
		"${scenario}": combo.Scenario.Name,
	}
	steps := make([]spec.StepSpec, len(combo.Scenario.Steps))
	for i, step := range combo.Scenario.Steps {
		steps[i] = spec.StepSpec{Name: replaceVars(step.Name, vars), Action: step.Action, With: processWith(step.With, vars)}
	}
	assertions := make([]spec.AssertSpec, len(combo.Scenario.Assertions))
	for i, assertion := range combo.Scenario.Assertions {
		assertions[i] = spec.AssertSpec{Name: replaceVars(assertion.Name, vars), Type: assertion.Type, With: processWith(assertion.With, vars)}
	}

	var params map[string]string
	if len(combo.Scenario.Params) > 0 {
		params = make(map[string]string, len(combo.Scenario.Params))
		for k, v := range combo.Scenario.Params {
			params[k] = replaceVars(v, vars)
		}
	}

	return spec.TestSpec{
		APIVersion: "e2e.fdk.digdir.no/v1",
		Kind:       "Test",
		Metadata: spec.Metadata{
			Name:        testName,
			Description: description,
			Component:   g.matrix.Name,
			Tags:        tags,
		},
		Params:     params,
		Fixtures:   []spec.FixtureRef{{Name: combo.Fixture, As: "expected"}},
		Steps:      steps,
		Assertions: assertions,
		Timeout:    combo.Scenario.Timeout,
	}
}

func processWith(with map[string]interface{}, vars map[string]string) map[string]interface{} {
	if with == nil {
		return nil
	}
	out := make(map[string]interface{}, len(with))
	for key, value := range with {
		if str, ok := value.(string); ok {
			out[key] = replaceVars(str, vars)
			continue
		}
		out[key] = value
	}
	return out
}

// replaceVars replaces variables in a string
func replaceVars(input string, vars map[string]string) string {
	result := input
	for key, value := range vars {
		result = strings.ReplaceAll(result, key, value)
	}
	return result
}

// sanitizeName sanitizes a name for use in test identifiers
func sanitizeName(name string) string {
	replacer := strings.NewReplacer(".", "_", "-", "_", "/", "_", ":", "_")
	return strings.ToLower(replacer.Replace(name))
}

// GenerateReport generates a summary report of the matrix
func (g *Generator) GenerateReport() string {
	combinations := g.generateCombinations()
	filtered := g.applyConstraints(combinations)

	var b strings.Builder
	fmt.Fprintf(&b, "Matrix: %s\n", g.matrix.Name)
	fmt.Fprintf(&b, "Description: %s\n\n", g.matrix.Description)
	b.WriteString("Dimensions:\n")
	fmt.Fprintf(&b, "  Fixtures: %v\n", g.matrix.Fixtures)
	fmt.Fprintf(&b, "  Insert modes: %v\n", g.modes())
	fmt.Fprintf(&b, "  Scenarios: %d\n", len(g.matrix.Scenarios))
	fmt.Fprintf(&b, "\nTotal Combinations: %d\n", len(combinations))
	fmt.Fprintf(&b, "After Constraints: %d\n", len(filtered))

	byFixture := make(map[string]int)
	for _, combo := range filtered {
		byFixture[combo.Fixture]++
	}
	names := make([]string, 0, len(byFixture))
	for name := range byFixture {
		names = append(names, name)
	}
	sort.Strings(names)
	b.WriteString("\nTests by Fixture:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "  %s: %d tests\n", name, byFixture[name])
	}
	return b.String()
}
