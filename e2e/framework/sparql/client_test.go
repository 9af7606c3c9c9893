package sparql_test

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/compare"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/rdf"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/sparql"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/sparql/sparqltest"
)

const (
	publisher1 = "http://example.com/publisher/1"
	publisher2 = "http://example.com/publisher/2"
	catalog1   = "http://example.com/publisher/1/catalogs/1"
)

func fixture(t *testing.T, name, graph string) *rdf.Graph {
	t.Helper()
	g, err := rdf.ParseFile(filepath.Join("..", "..", "fixtures", name), graph)
	require.NoError(t, err)
	return g
}

func newStore(t *testing.T) (*sparqltest.Store, *sparql.Client) {
	t.Helper()
	store := sparqltest.NewStore("ds", "admin", "secret")
	t.Cleanup(store.Close)
	return store, sparql.NewClient(store.Endpoint())
}

func insert(t *testing.T, client *sparql.Client, g *rdf.Graph) {
	t.Helper()
	update, err := sparql.NewBuilder(nil).InsertGraph(g)
	require.NoError(t, err)
	require.NoError(t, client.Update(context.Background(), update))
}

func TestInsertAndConstructNamedGraph(t *testing.T) {
	store, client := newStore(t)
	src := fixture(t, "publisher_2.ttl", publisher2)
	require.Equal(t, 18, src.Len())
	insert(t, client, src)
	assert.Equal(t, 1, store.Updates())

	query, err := sparql.NewBuilder(nil).ConstructGraph(publisher2)
	require.NoError(t, err)
	got, err := client.QueryGraph(context.Background(), query)
	require.NoError(t, err)
	assert.Equal(t, 18, got.Len())
	assert.True(t, compare.IsIsomorphic(src, got))
}

func TestInsertPerTripleAndDescribe(t *testing.T) {
	_, client := newStore(t)
	src := fixture(t, "catalog_1.ttl", publisher1)
	builder := sparql.NewBuilder(nil)
	for _, triple := range src.Triples() {
		update, err := builder.InsertData(publisher1, []*rdf.Triple{triple})
		require.NoError(t, err)
		require.NoError(t, client.Update(context.Background(), update))
	}

	query, err := builder.Describe(catalog1)
	require.NoError(t, err)
	got, err := client.QueryGraph(context.Background(), query)
	require.NoError(t, err)

	want := fixture(t, "catalog_1_describe.ttl", "")
	assert.Equal(t, 5, got.Len())
	assert.True(t, compare.IsIsomorphic(want, got), compare.Diff(want, got).Report())
}

func TestConstructTypedAcrossGraphs(t *testing.T) {
	_, client := newStore(t)
	insert(t, client, fixture(t, "catalog_1.ttl", publisher1))
	insert(t, client, fixture(t, "publisher_2.ttl", publisher2))

	query, err := sparql.NewBuilder(nil).ConstructTyped(rdf.NS("dcat").IRI("Catalog"))
	require.NoError(t, err)
	got, err := client.QueryGraph(context.Background(), query)
	require.NoError(t, err)
	assert.True(t, compare.IsIsomorphic(fixture(t, "all_catalogs.ttl", ""), got))
}

func TestConstructTypedInSelectedGraphs(t *testing.T) {
	_, client := newStore(t)
	insert(t, client, fixture(t, "catalog_1.ttl", publisher1))
	insert(t, client, fixture(t, "publisher_2.ttl", publisher2))

	query, err := sparql.NewBuilder(nil).ConstructTypedIn(rdf.NS("dcat").IRI("Catalog"), []string{publisher2})
	require.NoError(t, err)
	got, err := client.QueryGraph(context.Background(), query)
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	assert.NotNil(t, got.One(rdf.NewResource("http://example.com/publisher/2/catalogs/1"), nil, nil))
}

func TestDropGraph(t *testing.T) {
	store, client := newStore(t)
	insert(t, client, fixture(t, "catalog_1.ttl", publisher1))
	require.NotNil(t, store.Graph(publisher1))

	drop, err := sparql.NewBuilder(nil).DropGraph(publisher1, true)
	require.NoError(t, err)
	require.NoError(t, client.Update(context.Background(), drop))
	assert.Nil(t, store.Graph(publisher1))
}

func TestUpdateRejectsWrongCredentials(t *testing.T) {
	store := sparqltest.NewStore("ds", "admin", "secret")
	defer store.Close()
	client := sparql.NewClient(sparql.NewEndpoint(store.URL(), "ds").WithCredentials("admin", "wrong"))

	err := client.Update(context.Background(), "INSERT DATA {\n}")
	var statusErr *sparql.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Equal(t, "update", statusErr.Op)
}

func TestQueryGraphChecksContentType(t *testing.T) {
	store, client := newStore(t)
	store.SetContentType("text/turtle")

	query, err := sparql.NewBuilder(nil).ConstructGraph(publisher1)
	require.NoError(t, err)
	_, err = client.QueryGraph(context.Background(), query)
	var ctErr *sparql.ContentTypeError
	require.True(t, errors.As(err, &ctErr))
	assert.Equal(t, "text/turtle", ctErr.Got)

	lenient := sparql.NewClient(store.Endpoint(), sparql.WithExpectedContentType(""))
	g, err := lenient.QueryGraph(context.Background(), query)
	require.NoError(t, err)
	assert.Zero(t, g.Len())
}

func TestQueryGraphReportsStatus(t *testing.T) {
	_, client := newStore(t)
	_, err := client.QueryGraph(context.Background(), "SELECT * WHERE { ?s ?p ?o }")
	var statusErr *sparql.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
}

func TestQueryMethodSelection(t *testing.T) {
	store, client := newStore(t)
	query, err := sparql.NewBuilder(nil).ConstructGraph(publisher1)
	require.NoError(t, err)

	_, err = client.QueryGraph(context.Background(), query)
	require.NoError(t, err)
	post := sparql.NewClient(store.Endpoint(), sparql.WithMaxGetQueryLength(0))
	_, err = post.QueryGraph(context.Background(), query)
	require.NoError(t, err)

	assert.Equal(t, []string{http.MethodGet, http.MethodPost}, store.QueryMethods())
}

func TestQueryConnectionError(t *testing.T) {
	store := sparqltest.NewStore("ds", "admin", "secret")
	store.Close()
	client := sparql.NewClient(store.Endpoint())
	_, err := client.Query(context.Background(), "DESCRIBE <http://example.com/a>", rdf.MimeTurtle)
	assert.Error(t, err)
}

func TestEndpointURLs(t *testing.T) {
	ep := sparql.NewEndpoint("http://localhost:3030/", "/ds/")
	assert.Equal(t, "http://localhost:3030/ds/query", ep.QueryURL())
	assert.Equal(t, "http://localhost:3030/ds/update", ep.UpdateURL())
	assert.False(t, ep.HasCredentials())

	authed := ep.WithCredentials("admin", "pw")
	assert.True(t, authed.HasCredentials())
	assert.False(t, ep.HasCredentials())
	assert.NotContains(t, authed.String(), "pw")
}

func TestBlankNodesScopedToOneUpdate(t *testing.T) {
	_, client := newStore(t)
	src, err := rdf.ParseString(`@prefix dct: <http://purl.org/dc/terms/> .
<http://example.com/publisher/1/catalogs/1> dct:publisher _:agent .
_:agent dct:title "Agent" .
`, rdf.MimeTurtle, publisher1)
	require.NoError(t, err)
	require.Len(t, src.BlankNodes(), 1)

	builder := sparql.NewBuilder(nil)
	for _, triple := range src.Triples() {
		update, err := builder.InsertData(publisher1, []*rdf.Triple{triple})
		require.NoError(t, err)
		require.NoError(t, client.Update(context.Background(), update))
	}
	query, err := builder.ConstructGraph(publisher1)
	require.NoError(t, err)
	split, err := client.QueryGraph(context.Background(), query)
	require.NoError(t, err)
	assert.Len(t, split.BlankNodes(), 2)
	assert.False(t, compare.IsIsomorphic(src, split))

	_, client = newStore(t)
	for _, batch := range src.Partition() {
		update, err := builder.InsertData(publisher1, batch)
		require.NoError(t, err)
		require.NoError(t, client.Update(context.Background(), update))
	}
	joined, err := client.QueryGraph(context.Background(), query)
	require.NoError(t, err)
	assert.True(t, compare.IsIsomorphic(src, joined))
}
