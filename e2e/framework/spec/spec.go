package spec

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// TestSpec describes a single E2E test case.
type TestSpec struct {
	APIVersion string            `json:"apiVersion" yaml:"apiVersion"`
	Kind       string            `json:"kind" yaml:"kind"`
	Metadata   Metadata          `json:"metadata" yaml:"metadata"`
	Params     map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
	Fixtures   []FixtureRef      `json:"fixtures,omitempty" yaml:"fixtures,omitempty"`
	Steps      []StepSpec        `json:"steps" yaml:"steps"`
	Assertions []AssertSpec      `json:"assertions,omitempty" yaml:"assertions,omitempty"`
	Timeout    string            `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Pending    string            `json:"pending,omitempty" yaml:"pending,omitempty"`
	Variants   []VariantSpec     `json:"variants,omitempty" yaml:"variants,omitempty"`

	// Source is the file the spec was read from.
	Source string `json:"-" yaml:"-"`
}

// Metadata captures human-readable test metadata.
type Metadata struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Owner       string   `json:"owner,omitempty" yaml:"owner,omitempty"`
	Component   string   `json:"component,omitempty" yaml:"component,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// FixtureRef preloads a graph into the test context under As. The graph is
// the registry fixture Name, or the RDF document File when set; a relative
// File is resolved against the spec file.
type FixtureRef struct {
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	File  string `json:"file,omitempty" yaml:"file,omitempty"`
	As    string `json:"as,omitempty" yaml:"as,omitempty"`
	Graph string `json:"graph,omitempty" yaml:"graph,omitempty"`
}

// Alias is the name the fixture is bound to in the test context: As, then
// Name, then the base name of File without its extension.
func (f FixtureRef) Alias() string {
	if alias := strings.TrimSpace(f.As); alias != "" {
		return alias
	}
	if f.Name != "" {
		return f.Name
	}
	base := filepath.Base(f.File)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// StepSpec defines a test step.
type StepSpec struct {
	Name   string                 `json:"name" yaml:"name"`
	Action string                 `json:"action" yaml:"action"`
	With   map[string]interface{} `json:"with,omitempty" yaml:"with,omitempty"`
}

// AssertSpec defines a test assertion.
type AssertSpec struct {
	Name string                 `json:"name" yaml:"name"`
	Type string                 `json:"type" yaml:"type"`
	With map[string]interface{} `json:"with,omitempty" yaml:"with,omitempty"`
}

// VariantSpec defines a test variant derived from a base spec.
type VariantSpec struct {
	Name          string            `json:"name,omitempty" yaml:"name,omitempty"`
	NameSuffix    string            `json:"name_suffix,omitempty" yaml:"name_suffix,omitempty"`
	Tags          []string          `json:"tags,omitempty" yaml:"tags,omitempty"`
	Params        map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
	StepOverrides []StepOverride    `json:"step_overrides,omitempty" yaml:"step_overrides,omitempty"`
}

// StepOverride updates a single step in a variant.
type StepOverride struct {
	Name    string                 `json:"name" yaml:"name"`
	Action  string                 `json:"action,omitempty" yaml:"action,omitempty"`
	With    map[string]interface{} `json:"with,omitempty" yaml:"with,omitempty"`
	Replace bool                   `json:"replace,omitempty" yaml:"replace,omitempty"`
}

// MatchesTags returns true if the test is allowed by include/exclude tags.
func (s TestSpec) MatchesTags(include []string, exclude []string) bool {
	if len(include) == 0 && len(exclude) == 0 {
		return true
	}
	for _, tag := range exclude {
		for _, existing := range s.Metadata.Tags {
			if strings.EqualFold(tag, existing) {
				return false
			}
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, tag := range include {
		for _, existing := range s.Metadata.Tags {
			if strings.EqualFold(tag, existing) {
				return true
			}
		}
	}
	return false
}

// IsPending reports whether the test is expected to fail and should be
// recorded without being run.
func (s TestSpec) IsPending() bool {
	return strings.TrimSpace(s.Pending) != ""
}

// TimeoutOr parses Timeout, falling back to def when it is unset.
func (s TestSpec) TimeoutOr(def time.Duration) (time.Duration, error) {
	if strings.TrimSpace(s.Timeout) == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", s.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("timeout must be positive, got %s", s.Timeout)
	}
	return d, nil
}

// Validate checks that steps and fixtures are well formed.
func (s TestSpec) Validate() error {
	if len(s.Steps) == 0 && len(s.Assertions) == 0 && !s.IsPending() {
		return fmt.Errorf("spec %q has no steps", s.Metadata.Name)
	}
	for i, step := range s.Steps {
		if strings.TrimSpace(step.Action) == "" {
			return fmt.Errorf("spec %q step %d (%s) has no action", s.Metadata.Name, i+1, step.Name)
		}
	}
	for i, assertion := range s.Assertions {
		if strings.TrimSpace(assertion.Type) == "" {
			return fmt.Errorf("spec %q assertion %d has no type", s.Metadata.Name, i+1)
		}
	}
	for _, ref := range s.Fixtures {
		if strings.TrimSpace(ref.Name) == "" && strings.TrimSpace(ref.File) == "" {
			return fmt.Errorf("spec %q has a fixture without a name or file", s.Metadata.Name)
		}
	}
	if _, err := s.TimeoutOr(time.Minute); err != nil {
		return fmt.Errorf("spec %q: %w", s.Metadata.Name, err)
	}
	return nil
}
