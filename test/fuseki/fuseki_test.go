//go:build integration

package fuseki

import (
	"context"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/compare"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/rdf"
)

const (
	publisher1  = "http://example.com/publisher/1"
	publisher2  = "http://example.com/publisher/2"
	catalog1    = "http://example.com/publisher/1/catalogs/1"
	dcatCatalog = "http://www.w3.org/ns/dcat#Catalog"
)

func fixture(ctx context.Context, name string) *rdf.Graph {
	g, err := loader.Graph(ctx, name)
	Expect(err).NotTo(HaveOccurred(), "fixture %s", name)
	return g
}

func dropGraphs(ctx context.Context) {
	for _, graph := range []string{publisher1, publisher2} {
		drop, err := builder.DropGraph(graph, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(client.Update(ctx, drop)).To(Succeed())
	}
}

func constructGraph(ctx context.Context, graph string) *rdf.Graph {
	query, err := builder.ConstructGraph(graph)
	Expect(err).NotTo(HaveOccurred())
	g, err := client.QueryGraph(ctx, query)
	Expect(err).NotTo(HaveOccurred())
	return g
}

func expectIsomorphic(actual, expected *rdf.Graph) {
	Expect(compare.IsIsomorphic(actual, expected)).To(BeTrue(), func() string {
		return compare.Diff(expected, actual).Report()
	})
}

var _ = Describe("Fuseki triplestore", Ordered, func() {

	BeforeAll(func(ctx SpecContext) {
		dropGraphs(ctx)
	})

	AfterAll(func(ctx SpecContext) {
		if !cfg.KeepGraphs {
			dropGraphs(ctx)
		}
	})

	It("insert, construct: INSERT DATA into a named graph is returned by CONSTRUCT", func(ctx SpecContext) {
		expected := fixture(ctx, "publisher_2")
		update, err := builder.InsertData(publisher2, expected.Triples())
		Expect(err).NotTo(HaveOccurred())
		Expect(client.Update(ctx, update)).To(Succeed())

		query, err := builder.ConstructGraph(publisher2)
		Expect(err).NotTo(HaveOccurred())
		resp, err := client.Query(ctx, query, rdf.MimeTurtle)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(resp.ContentType).To(Equal("text/turtle; charset=utf-8"))

		actual, err := rdf.ParseBytes(resp.Body, resp.ContentType, publisher2)
		Expect(err).NotTo(HaveOccurred())
		Expect(actual.Len()).To(Equal(18))
		expectIsomorphic(actual, expected)
	})

	It("insert, construct: per-statement inserts keep blank nodes together", func(ctx SpecContext) {
		expected := fixture(ctx, "catalog_1")
		for _, batch := range expected.Partition() {
			update, err := builder.InsertData(publisher1, batch)
			Expect(err).NotTo(HaveOccurred())
			Expect(client.Update(ctx, update)).To(Succeed())
		}

		actual := constructGraph(ctx, publisher1)
		Expect(actual.Len()).To(Equal(expected.Len()))
		expectIsomorphic(actual, expected)
	})

	It("describe: DESCRIBE of a catalog matches the hand-built description", func(ctx SpecContext) {
		query, err := builder.Describe(catalog1)
		Expect(err).NotTo(HaveOccurred())
		actual, err := client.QueryGraph(ctx, query)
		Expect(err).NotTo(HaveOccurred())

		Expect(actual.Len()).To(Equal(5))
		expectIsomorphic(actual, fixture(ctx, "catalog_1_describe"))
	})

	It("construct: CONSTRUCT of the publisher graph matches the source document", func(ctx SpecContext) {
		expectIsomorphic(constructGraph(ctx, publisher1), fixture(ctx, "catalog_1"))
	})

	PIt("upload: bulk graph upload through the graph store protocol", func(ctx SpecContext) {
		// Fails upstream; kept to record the scenario.
		expected := fixture(ctx, "catalog_1")
		update, err := builder.InsertGraph(expected.WithName(publisher1))
		Expect(err).NotTo(HaveOccurred())
		Expect(client.Update(ctx, update)).To(Succeed())
		expectIsomorphic(constructGraph(ctx, publisher1), expected)
	})

	It("construct: every dcat:Catalog across the publisher graphs", func(ctx SpecContext) {
		query, err := builder.ConstructTypedIn(dcatCatalog, []string{publisher1, publisher2})
		Expect(err).NotTo(HaveOccurred())
		actual, err := client.QueryGraph(ctx, query)
		Expect(err).NotTo(HaveOccurred())
		expectIsomorphic(actual, fixture(ctx, "all_catalogs"))
	})
})
