package sparql

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/rdf"
)

func TestFormatIRI(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "http://example.com/a", want: "<http://example.com/a>"},
		{in: "https://example.com/a?b=c#d", want: "<https://example.com/a?b=c#d>"},
		{in: "", wantErr: true},
		{in: "http://example.com/a> DROP ALL", wantErr: true},
		{in: "http://example.com/a b", wantErr: true},
		{in: "http://example.com/{x}", wantErr: true},
	}
	for _, tt := range tests {
		got, err := FormatIRI(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestFormatTerm(t *testing.T) {
	tests := []struct {
		name    string
		term    rdf.Term
		want    string
		wantErr bool
	}{
		{name: "language", term: rdf.NewLiteralWithLanguage("Eksempel \"AS\"", "nb"), want: `"Eksempel \"AS\""@nb`},
		{name: "typed", term: rdf.NewLiteralWithDatatype("2", rdf.NS("xsd").Get("integer")), want: `"2"^^<http://www.w3.org/2001/XMLSchema#integer>`},
		{name: "plain", term: rdf.NewLiteral("a\nb"), want: `"a\nb"`},
		{name: "blank", term: rdf.NewBlankNode("b0"), want: "_:b0"},
		{name: "bad blank", term: rdf.NewBlankNode("b 0"), wantErr: true},
		{name: "bad language", term: &rdf.Literal{Value: "x", Language: "nb\"} DROP"}, wantErr: true},
		{name: "nil", term: nil, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatTerm(tt.term)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrefixesKeepInsertionOrder(t *testing.T) {
	p := DefaultPrefixes()
	assert.Equal(t, 9, p.Len())
	lines := strings.Split(strings.TrimSpace(p.String()), "\n")
	require.Len(t, lines, 9)
	assert.Equal(t, "PREFIX dct: <http://purl.org/dc/terms/>", lines[0])
	assert.Equal(t, "PREFIX dc: <http://purl.org/dc/elements/1.1/>", lines[8])

	p.Add("dct", "http://purl.org/dc/terms/")
	p.Add("ex", "http://example.com/")
	lines = strings.Split(strings.TrimSpace(p.String()), "\n")
	assert.Equal(t, "PREFIX dct: <http://purl.org/dc/terms/>", lines[0])
	assert.Equal(t, "PREFIX ex: <http://example.com/>", lines[9])
	iri, ok := p.Lookup("ex")
	assert.True(t, ok)
	assert.Equal(t, "http://example.com/", iri)
}

func TestBuilderQueries(t *testing.T) {
	b := NewBuilder(NewPrefixes())
	triple := rdf.NewTriple(rdf.NewResource("http://example.com/s"), rdf.NewResource(rdf.RDFType), rdf.NS("dcat").Get("Catalog"))

	insert, err := b.InsertData("http://example.com/g", []*rdf.Triple{triple})
	require.NoError(t, err)
	assert.Equal(t, "INSERT DATA { GRAPH <http://example.com/g> {\n    <http://example.com/s> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <http://www.w3.org/ns/dcat#Catalog> .\n} }\n", insert)

	insert, err = b.InsertData("", []*rdf.Triple{triple})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(insert, "INSERT DATA {\n"))

	construct, err := b.ConstructGraph("http://example.com/g")
	require.NoError(t, err)
	assert.Contains(t, construct, "GRAPH <http://example.com/g> { ?s ?p ?o }")

	typed, err := b.ConstructTyped(rdf.NS("dcat").IRI("Catalog"))
	require.NoError(t, err)
	assert.Contains(t, typed, "WHERE { GRAPH ?g { ?s a <http://www.w3.org/ns/dcat#Catalog> . } }")

	restricted, err := b.ConstructTypedIn(rdf.NS("dcat").IRI("Catalog"), []string{"http://example.com/a", "http://example.com/b"})
	require.NoError(t, err)
	assert.Contains(t, restricted, "VALUES ?g { <http://example.com/a> <http://example.com/b> }")
	unrestricted, err := b.ConstructTypedIn(rdf.NS("dcat").IRI("Catalog"), nil)
	require.NoError(t, err)
	assert.Equal(t, typed, unrestricted)

	describe, err := b.Describe("http://example.com/s")
	require.NoError(t, err)
	assert.Equal(t, "DESCRIBE <http://example.com/s>", describe)

	drop, err := b.DropGraph("http://example.com/g", false)
	require.NoError(t, err)
	assert.Equal(t, "DROP GRAPH <http://example.com/g>", drop)

	_, err = b.Describe("http://example.com/<bad>")
	assert.Error(t, err)
	_, err = b.InsertData("http://example.com/g", []*rdf.Triple{rdf.NewTriple(nil, nil, nil)})
	assert.Error(t, err)
}
