package steps

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/artifacts"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/rdf"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/spec"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/sparql"
)

// RegisterSPARQLHandlers registers steps that talk to the store.
func RegisterSPARQLHandlers(reg *Registry) {
	reg.Register("sparql.update", handleUpdate)
	reg.Register("sparql.insert", handleInsert)
	reg.Register("sparql.construct", handleConstruct)
	reg.Register("sparql.describe", handleDescribe)
	reg.Register("sparql.query", handleQuery)
	reg.Register("sparql.drop", handleDrop)
}

func requireClient(exec *Context) (*sparql.Client, error) {
	if exec.SPARQL == nil {
		return nil, fmt.Errorf("sparql client not configured")
	}
	return exec.SPARQL, nil
}

func handleUpdate(ctx context.Context, exec *Context, step spec.StepSpec) (map[string]string, error) {
	client, err := requireClient(exec)
	if err != nil {
		return nil, err
	}
	update := getString(step.With, "update", "")
	if update == "" {
		path := param(exec, step.With, "file", "")
		if path == "" {
			return nil, fmt.Errorf("update or file is required")
		}
		payload, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		update = string(payload)
	}
	update = exec.Expand(update)
	if err := client.Update(ctx, update); err != nil {
		return nil, err
	}
	graph := param(exec, step.With, "graph", "")
	exec.Touch(graph)
	return map[string]string{"graph": graph, "bytes": strconv.Itoa(len(update))}, nil
}

// handleInsert writes a graph into a named graph. Mode bulk sends one
// INSERT DATA; per_triple sends one update per statement, except that
// statements sharing a blank node travel together because blank node
// labels are scoped to a single request.
func handleInsert(ctx context.Context, exec *Context, step spec.StepSpec) (map[string]string, error) {
	client, err := requireClient(exec)
	if err != nil {
		return nil, err
	}
	source, err := sourceGraph(ctx, exec, step.With)
	if err != nil {
		return nil, err
	}
	target := param(exec, step.With, "graph", exec.TestGraph())
	mode := strings.ToLower(param(exec, step.With, "mode", "bulk"))

	var batches [][]*rdf.Triple
	switch mode {
	case "bulk":
		batches = [][]*rdf.Triple{source.Triples()}
	case "per_triple", "per-triple":
		batches = source.Partition()
	default:
		return nil, fmt.Errorf("unsupported insert mode %q", mode)
	}

	exec.Touch(target)
	for _, batch := range batches {
		update, err := exec.Builder.InsertData(target, batch)
		if err != nil {
			return nil, err
		}
		if err := client.Update(ctx, update); err != nil {
			return nil, err
		}
	}
	if alias := param(exec, step.With, "as", ""); alias != "" {
		exec.SetGraph(alias, source.WithName(target))
	}
	exec.Logger.Debug("inserted graph", zap.String("graph", target), zap.Int("triples", source.Len()), zap.String("mode", mode))
	return map[string]string{
		"graph":   target,
		"triples": strconv.Itoa(source.Len()),
		"updates": strconv.Itoa(len(batches)),
		"mode":    mode,
	}, nil
}

func handleConstruct(ctx context.Context, exec *Context, step spec.StepSpec) (map[string]string, error) {
	var (
		query string
		err   error
	)
	switch {
	case getString(step.With, "query", "") != "":
		query = param(exec, step.With, "query", "")
	case getString(step.With, "type", "") != "":
		var graphs []string
		for _, graph := range getStringList(step.With, "graphs") {
			graphs = append(graphs, exec.Expand(graph))
		}
		query, err = exec.Builder.ConstructTypedIn(param(exec, step.With, "type", ""), graphs)
	default:
		query, err = exec.Builder.ConstructGraph(param(exec, step.With, "graph", exec.TestGraph()))
	}
	if err != nil {
		return nil, err
	}
	return queryGraph(ctx, exec, step, query, "constructed")
}

func handleDescribe(ctx context.Context, exec *Context, step spec.StepSpec) (map[string]string, error) {
	iri, err := requireParam(exec, step.With, "iri")
	if err != nil {
		return nil, err
	}
	query, err := exec.Builder.Describe(iri)
	if err != nil {
		return nil, err
	}
	return queryGraph(ctx, exec, step, query, "described")
}

func queryGraph(ctx context.Context, exec *Context, step spec.StepSpec, query string, fallbackAlias string) (map[string]string, error) {
	client, err := requireClient(exec)
	if err != nil {
		return nil, err
	}
	g, err := client.QueryGraph(ctx, query)
	if err != nil {
		return nil, err
	}
	alias := param(exec, step.With, "as", fallbackAlias)
	exec.SetGraph(alias, g)
	return map[string]string{"as": alias, "triples": strconv.Itoa(g.Len())}, nil
}

// handleQuery sends a raw query and checks the status and content type
// of the response without parsing it.
func handleQuery(ctx context.Context, exec *Context, step spec.StepSpec) (map[string]string, error) {
	client, err := requireClient(exec)
	if err != nil {
		return nil, err
	}
	query, err := requireParam(exec, step.With, "query")
	if err != nil {
		return nil, err
	}
	accept := param(exec, step.With, "accept", rdf.MimeTurtle)
	wantStatus := getInt(step.With, "expect_status", http.StatusOK)

	resp, err := client.Query(ctx, query, accept)
	if err != nil {
		return nil, err
	}
	metadata := map[string]string{
		"status":       strconv.Itoa(resp.StatusCode),
		"content_type": resp.ContentType,
		"bytes":        strconv.Itoa(len(resp.Body)),
	}
	if exec.Artifacts != nil {
		if path, err := exec.Artifacts.WriteBytes(artifacts.SafeName(step.Name)+"-response.txt", resp.Body); err == nil {
			metadata["artifact"] = path
		}
	}
	if resp.StatusCode != wantStatus {
		return metadata, fmt.Errorf("query returned status %d, expected %d", resp.StatusCode, wantStatus)
	}
	if want := param(exec, step.With, "expect_content_type", ""); want != "" && !strings.EqualFold(resp.ContentType, want) {
		return metadata, fmt.Errorf("query returned content type %q, expected %q", resp.ContentType, want)
	}
	return metadata, nil
}

func handleDrop(ctx context.Context, exec *Context, step spec.StepSpec) (map[string]string, error) {
	client, err := requireClient(exec)
	if err != nil {
		return nil, err
	}
	graph := param(exec, step.With, "graph", exec.TestGraph())
	silent := getBool(step.With, "silent", true)
	update, err := exec.Builder.DropGraph(graph, silent)
	if err != nil {
		return nil, err
	}
	if err := client.Update(ctx, update); err != nil {
		return nil, err
	}
	exec.Forget(graph)
	return map[string]string{"graph": graph}, nil
}

// DropTouchedGraphs removes every named graph the test wrote to. It keeps
// going after a failure and returns the first error.
func DropTouchedGraphs(ctx context.Context, exec *Context) error {
	if exec.SPARQL == nil {
		return nil
	}
	var first error
	for _, graph := range exec.TouchedGraphs() {
		update, err := exec.Builder.DropGraph(graph, true)
		if err == nil {
			err = exec.SPARQL.Update(ctx, update)
		}
		if err != nil {
			exec.Logger.Warn("failed to drop test graph", zap.String("graph", graph), zap.Error(err))
			if first == nil {
				first = err
			}
			continue
		}
		exec.Forget(graph)
	}
	return first
}
