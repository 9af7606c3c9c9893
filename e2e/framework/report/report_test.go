package report

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/artifacts"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/compare"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/rdf"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/results"
)

func sampleRun() *results.RunResult {
	end := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &results.RunResult{
		RunID:     "run 1",
		StoreURL:  "http://localhost:3030",
		Readiness: &results.Readiness{URL: "http://localhost:3030", Ready: true, Attempts: 21, Elapsed: 5 * time.Second},
		Tests: []results.TestResult{
			{Name: "insert-construct", Status: results.StatusPassed, EndTime: end},
			{
				Name:    "construct-catalog",
				Status:  results.StatusFailed,
				EndTime: end,
				Assertions: []results.AssertionResult{{
					Name:   "isomorphic",
					Status: results.StatusFailed,
					Error:  `graph "constructed" is not isomorphic to "catalog_1": 1 statements only in expected, 0 only in actual`,
				}},
				Artifacts: map[string]string{"diff": "tests/construct-catalog/diff-isomorphic.ttl"},
			},
			{Name: "bulk-upload", Status: results.StatusPending},
			{Name: "filtered", Status: results.StatusSkipped, Metadata: map[string]string{"skip_reason": "tag filtered"}},
		},
	}
}

func TestBuildOutcomes(t *testing.T) {
	g := Build(sampleRun(), "")
	outcome := earl.Get("outcome")

	for name, want := range map[string]string{
		"insert-construct":  "passed",
		"construct-catalog": "failed",
		"bulk-upload":       "untested",
		"filtered":          "inapplicable",
	} {
		assertion := rdf.NewResource(RunIRI("run 1") + "/" + name)
		link := g.One(assertion, earl.Get("result"), nil)
		require.NotNil(t, link, name)
		assert.NotNil(t, g.One(link.Object, outcome, earl.Get(want)), name)
		assert.NotNil(t, g.One(assertion, earl.Get("subject"), rdf.NewResource("http://localhost:3030")), name)
	}

	failed := g.All(nil, dct.Get("type"), rdf.NewLiteral(CategoryNotIsomorphic))
	assert.Len(t, failed, 1)
	assert.Len(t, g.All(nil, earl.Get("pointer"), nil), 1)
	assert.Equal(t, "urn:e2e:run:run_1", g.Name())
}

func TestWriteRoundTrips(t *testing.T) {
	writer, err := artifacts.NewWriter(t.TempDir())
	require.NoError(t, err)
	run := sampleRun()

	path, err := Write(writer, run, "")
	require.NoError(t, err)
	body, err := os.ReadFile(path)
	require.NoError(t, err)

	parsed, err := rdf.ParseBytes(body, rdf.MimeTurtle, "")
	require.NoError(t, err)
	assert.True(t, compare.IsIsomorphic(Build(run, ""), parsed))
}

func TestCategorizeError(t *testing.T) {
	cases := []struct {
		msg  string
		want string
	}{
		{"store at http://localhost:3030 not ready after 1s (10 attempts)", CategoryNotReady},
		{`graph "a" has 17 statements, expected 18`, CategorySize},
		{`graph "a" is missing 2 of 5 statements`, CategoryMissing},
		{"sparql update failed: status=401 url=http://x body=", CategoryHTTPStatus},
		{`sparql query returned content type "text/plain", expected "text/turtle"`, CategoryContentType},
		{"dial tcp 127.0.0.1:3030: connect: connection refused", CategoryNetwork},
		{"context deadline exceeded", CategoryTimeout},
		{`read fixture "catalog_1": no such file`, CategoryFixture},
		{"parse text/turtle: unexpected token", CategoryParse},
		{"something else", CategoryUnknown},
		{"", CategoryUnknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CategorizeError(tc.msg), tc.msg)
	}
}
