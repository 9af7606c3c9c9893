package steps

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/artifacts"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/compare"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/rdf"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/spec"
)

// RegisterAssertHandlers registers graph assertions. Assertion types map to
// actions with an "assert." prefix.
func RegisterAssertHandlers(reg *Registry) {
	reg.Register("assert.graph.isomorphic", handleAssertIsomorphic)
	reg.Register("assert.graph.size", handleAssertSize)
	reg.Register("assert.graph.contains", handleAssertContains)
}

// handleAssertIsomorphic fails when the two graphs differ beyond blank node
// labels. The three-way diff is written as an artifact.
func handleAssertIsomorphic(ctx context.Context, exec *Context, step spec.StepSpec) (map[string]string, error) {
	_ = ctx
	expected, expectedName, err := boundGraph(exec, step.With, "expected")
	if err != nil {
		return nil, err
	}
	actual, actualName, err := boundGraph(exec, step.With, "actual")
	if err != nil {
		return nil, err
	}

	isomorphic := compare.IsIsomorphic(expected, actual)
	if exec.Metrics != nil {
		exec.Metrics.ObserveComparison(isomorphic)
	}
	metadata := map[string]string{
		"expected":         expectedName,
		"actual":           actualName,
		"expected_triples": strconv.Itoa(expected.Len()),
		"actual_triples":   strconv.Itoa(actual.Len()),
		"isomorphic":       strconv.FormatBool(isomorphic),
	}
	if isomorphic {
		return metadata, nil
	}

	diff := compare.Diff(expected, actual)
	report := diff.Report()
	metadata["only_expected"] = strconv.Itoa(diff.OnlyInFirst.Len())
	metadata["only_actual"] = strconv.Itoa(diff.OnlyInSecond.Len())
	if exec.Artifacts != nil {
		if path, err := exec.Artifacts.WriteText("diff-"+artifacts.SafeName(step.Name)+".ttl", report); err == nil {
			metadata["diff"] = path
		}
	}
	exec.Logger.Info("graphs differ",
		zap.String("test", exec.TestName),
		zap.String("expected", expectedName),
		zap.String("actual", actualName),
		zap.Int("in_both", diff.InBoth.Len()),
		zap.Int("only_expected", diff.OnlyInFirst.Len()),
		zap.Int("only_actual", diff.OnlyInSecond.Len()),
	)
	return metadata, fmt.Errorf("graph %q is not isomorphic to %q: %d statements only in expected, %d only in actual",
		actualName, expectedName, diff.OnlyInFirst.Len(), diff.OnlyInSecond.Len())
}

func handleAssertSize(ctx context.Context, exec *Context, step spec.StepSpec) (map[string]string, error) {
	_ = ctx
	g, name, err := boundGraph(exec, step.With, "graph")
	if err != nil {
		return nil, err
	}
	var want int
	switch {
	case getString(step.With, "count", "") != "":
		want = getInt(step.With, "count", -1)
	case getString(step.With, "same_as", "") != "":
		other, _, err := boundGraph(exec, step.With, "same_as")
		if err != nil {
			return nil, err
		}
		want = other.Len()
	default:
		return nil, fmt.Errorf("count or same_as is required")
	}
	metadata := map[string]string{"graph": name, "triples": strconv.Itoa(g.Len()), "expected": strconv.Itoa(want)}
	if g.Len() != want {
		return metadata, fmt.Errorf("graph %q has %d statements, expected %d", name, g.Len(), want)
	}
	return metadata, nil
}

// handleAssertContains checks that every ground statement of a Turtle
// snippet, or a single subject/predicate/object pattern, is in the graph.
// Omitted pattern positions match anything.
func handleAssertContains(ctx context.Context, exec *Context, step spec.StepSpec) (map[string]string, error) {
	_ = ctx
	g, name, err := boundGraph(exec, step.With, "graph")
	if err != nil {
		return nil, err
	}
	metadata := map[string]string{"graph": name}

	if body := getString(step.With, "turtle", ""); body != "" {
		want, err := rdf.ParseString(exec.Expand(body), rdf.MimeTurtle, "")
		if err != nil {
			return nil, err
		}
		missing := 0
		for _, triple := range want.Triples() {
			if triple.HasBlank() {
				return nil, fmt.Errorf("contains does not support blank nodes: %s", triple)
			}
			if !g.Has(triple) {
				missing++
				exec.Logger.Info("statement missing", zap.String("graph", name), zap.String("triple", triple.String()))
			}
		}
		metadata["checked"] = strconv.Itoa(want.Len())
		metadata["missing"] = strconv.Itoa(missing)
		if missing > 0 {
			return metadata, fmt.Errorf("graph %q is missing %d of %d statements", name, missing, want.Len())
		}
		return metadata, nil
	}

	subject := iriParam(exec, step.With, "subject")
	predicate := iriParam(exec, step.With, "predicate")
	object := objectParam(exec, step.With)
	if subject == nil && predicate == nil && object == nil {
		return nil, fmt.Errorf("turtle or at least one of subject, predicate, object is required")
	}
	matches := len(g.All(subject, predicate, object))
	metadata["matches"] = strconv.Itoa(matches)
	if matches == 0 {
		return metadata, fmt.Errorf("graph %q has no statement matching %s %s %s", name, patternString(subject), patternString(predicate), patternString(object))
	}
	return metadata, nil
}

func iriParam(exec *Context, params map[string]interface{}, key string) rdf.Term {
	value := param(exec, params, key, "")
	if value == "" {
		return nil
	}
	return rdf.NewResource(value)
}

// objectParam reads the object as an IRI (object) or a literal (literal,
// with optional lang or datatype).
func objectParam(exec *Context, params map[string]interface{}) rdf.Term {
	if iri := iriParam(exec, params, "object"); iri != nil {
		return iri
	}
	value, ok := params["literal"]
	if !ok || value == nil {
		return nil
	}
	text := exec.Expand(fmt.Sprintf("%v", value))
	if lang := param(exec, params, "lang", ""); lang != "" {
		return rdf.NewLiteralWithLanguage(text, lang)
	}
	if datatype := param(exec, params, "datatype", ""); datatype != "" {
		return rdf.NewLiteralWithDatatype(text, rdf.NewResource(datatype))
	}
	return rdf.NewLiteral(text)
}

func patternString(term rdf.Term) string {
	if term == nil {
		return "?"
	}
	return term.String()
}
