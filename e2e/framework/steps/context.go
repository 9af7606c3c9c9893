package steps

import (
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/artifacts"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/config"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/fixtures"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/metrics"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/rdf"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/spec"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/sparql"
)

// DefaultGraphNamespace prefixes per-test named graphs when the config sets none.
const DefaultGraphNamespace = "http://example.com/e2e/"

// Context holds shared state for step execution.
type Context struct {
	RunID     string
	TestName  string
	Logger    *zap.Logger
	Artifacts *artifacts.Writer
	Fixtures  *fixtures.Loader
	Config    *config.Config
	SPARQL    *sparql.Client
	Builder   *sparql.Builder
	Metrics   *metrics.Collector
	Spec      *spec.TestSpec
	Vars      map[string]string
	Graphs    map[string]*rdf.Graph
	// OpenStore opens object stores for objectstore.* steps; nil means objectstore.Open.
	OpenStore fixtures.Opener

	touched []string
}

// NewContext creates a new execution context for a test. The context gets a
// unique named graph, exposed as ${test_graph}, so parallel tests never
// write to the same graph.
func NewContext(runID string, testName string, logger *zap.Logger, writer *artifacts.Writer, loader *fixtures.Loader, cfg *config.Config, client *sparql.Client, testSpec *spec.TestSpec) *Context {
	namespace := DefaultGraphNamespace
	vars := make(map[string]string)
	if cfg != nil {
		if cfg.GraphNamespace != "" {
			namespace = cfg.GraphNamespace
		}
		if cfg.Dataset != "" {
			vars["dataset"] = cfg.Dataset
		}
	}
	if !strings.HasSuffix(namespace, "/") && !strings.HasSuffix(namespace, "#") {
		namespace += "/"
	}
	if client != nil {
		vars["store_url"] = client.Endpoint.BaseURL
	}
	if testSpec != nil {
		for key, value := range testSpec.Params {
			vars[key] = value
		}
	}
	vars["run_id"] = runID
	vars["test_name"] = testName
	vars["test_graph"] = namespace + uuid.NewString()

	if logger == nil {
		logger = zap.NewNop()
	}
	return &Context{
		RunID:     runID,
		TestName:  testName,
		Logger:    logger,
		Artifacts: writer,
		Fixtures:  loader,
		Config:    cfg,
		SPARQL:    client,
		Builder:   sparql.NewBuilder(nil),
		Spec:      testSpec,
		Vars:      vars,
		Graphs:    make(map[string]*rdf.Graph),
	}
}

// TestGraph returns the named graph reserved for this test.
func (c *Context) TestGraph() string {
	return c.Vars["test_graph"]
}

// Expand substitutes ${var} references from the context variables, falling
// back to the process environment.
func (c *Context) Expand(value string) string {
	return expandVars(value, c.Vars)
}

// Graph returns a graph bound to the context under name.
func (c *Context) Graph(name string) (*rdf.Graph, bool) {
	g, ok := c.Graphs[name]
	return g, ok
}

// SetGraph binds a graph under name.
func (c *Context) SetGraph(name string, g *rdf.Graph) {
	c.Graphs[name] = g
}

// Touch records a named graph written by the test for teardown.
func (c *Context) Touch(graphIRI string) {
	if graphIRI == "" {
		return
	}
	for _, existing := range c.touched {
		if existing == graphIRI {
			return
		}
	}
	c.touched = append(c.touched, graphIRI)
}

// TouchedGraphs lists the named graphs written by the test, in write order.
func (c *Context) TouchedGraphs() []string {
	return append([]string(nil), c.touched...)
}

// Forget removes a named graph from the teardown list after it was dropped.
func (c *Context) Forget(graphIRI string) {
	out := c.touched[:0]
	for _, existing := range c.touched {
		if existing != graphIRI {
			out = append(out, existing)
		}
	}
	c.touched = out
}
