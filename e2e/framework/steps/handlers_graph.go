package steps

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/rdf"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/spec"
)

// RegisterGraphHandlers registers steps that build and save local graphs.
func RegisterGraphHandlers(reg *Registry) {
	reg.Register("graph.load", handleGraphLoad)
	reg.Register("graph.parse", handleGraphParse)
	reg.Register("graph.write", handleGraphWrite)
}

// LoadFixtures binds the fixtures a spec declares to the context.
func LoadFixtures(ctx context.Context, exec *Context) error {
	if exec.Spec == nil || len(exec.Spec.Fixtures) == 0 {
		return nil
	}
	for _, ref := range exec.Spec.Fixtures {
		var (
			g   *rdf.Graph
			err error
		)
		switch {
		case ref.File != "":
			g, err = rdf.ParseFile(exec.Expand(ref.File), "")
		case exec.Fixtures == nil:
			err = fmt.Errorf("fixture registry not configured")
		default:
			g, err = exec.Fixtures.Graph(ctx, ref.Name)
		}
		if err != nil {
			return err
		}
		if ref.Graph != "" {
			g = g.WithName(exec.Expand(ref.Graph))
		}
		exec.SetGraph(ref.Alias(), g)
	}
	return nil
}

// sourceGraph resolves the graph a step operates on, from one of: a graph
// already bound to the context (graph_ref), a registry fixture, a file, or
// inline Turtle.
func sourceGraph(ctx context.Context, exec *Context, params map[string]interface{}) (*rdf.Graph, error) {
	if ref := param(exec, params, "graph_ref", ""); ref != "" {
		g, ok := exec.Graph(ref)
		if !ok {
			return nil, fmt.Errorf("no graph bound to %q", ref)
		}
		return g, nil
	}
	if name := param(exec, params, "fixture", ""); name != "" {
		if g, ok := exec.Graph(name); ok {
			return g, nil
		}
		if exec.Fixtures == nil {
			return nil, fmt.Errorf("fixture registry not configured")
		}
		return exec.Fixtures.Graph(ctx, name)
	}
	if path := param(exec, params, "path", ""); path != "" {
		format, err := readFormat(exec, params, path)
		if err != nil {
			return nil, err
		}
		body, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return rdf.ParseBytes(body, format, "")
	}
	if body := getString(params, "turtle", ""); body != "" {
		return rdf.ParseString(exec.Expand(body), rdf.MimeTurtle, "")
	}
	if body := getString(params, "body", ""); body != "" {
		format := param(exec, params, "format", rdf.MimeTurtle)
		if !rdf.CanParse(format) {
			return nil, fmt.Errorf("cannot parse RDF as %q", format)
		}
		return rdf.ParseString(exec.Expand(body), format, "")
	}
	return nil, fmt.Errorf("one of graph_ref, fixture, path, turtle or body is required")
}

func handleGraphLoad(ctx context.Context, exec *Context, step spec.StepSpec) (map[string]string, error) {
	if getString(step.With, "fixture", "") == "" && getString(step.With, "path", "") == "" {
		return nil, fmt.Errorf("fixture or path is required")
	}
	return bindSource(ctx, exec, step)
}

func handleGraphParse(ctx context.Context, exec *Context, step spec.StepSpec) (map[string]string, error) {
	if getString(step.With, "turtle", "") == "" && getString(step.With, "body", "") == "" {
		return nil, fmt.Errorf("turtle or body is required")
	}
	return bindSource(ctx, exec, step)
}

func bindSource(ctx context.Context, exec *Context, step spec.StepSpec) (map[string]string, error) {
	alias, err := requireParam(exec, step.With, "as")
	if err != nil {
		return nil, err
	}
	g, err := sourceGraph(ctx, exec, step.With)
	if err != nil {
		return nil, err
	}
	if name := param(exec, step.With, "graph", ""); name != "" {
		g = g.WithName(name)
	}
	exec.SetGraph(alias, g)
	return map[string]string{"as": alias, "triples": strconv.Itoa(g.Len())}, nil
}

func handleGraphWrite(ctx context.Context, exec *Context, step spec.StepSpec) (map[string]string, error) {
	_ = ctx
	if exec.Artifacts == nil {
		return nil, fmt.Errorf("artifact writer not configured")
	}
	g, ref, err := boundGraph(exec, step.With, "graph_ref")
	if err != nil {
		return nil, err
	}
	file := param(exec, step.With, "file", ref+".ttl")
	format, err := writeFormat(exec, step.With, file)
	if err != nil {
		return nil, err
	}
	path, err := exec.Artifacts.WriteGraph(file, g, format)
	if err != nil {
		return nil, err
	}
	return map[string]string{"path": path, "triples": strconv.Itoa(g.Len())}, nil
}
