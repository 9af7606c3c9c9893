package rdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTermString(t *testing.T) {
	tests := []struct {
		name string
		term Term
		want string
	}{
		{"resource", NewResource("http://example.com/a"), "<http://example.com/a>"},
		{"blank", NewBlankNode("_:b0"), "_:b0"},
		{"plain literal", NewLiteral("hei"), `"hei"`},
		{"language literal", NewLiteralWithLanguage("hei", "NB"), `"hei"@nb`},
		{"typed literal", NewLiteralWithDatatype("1", NS("xsd").Get("integer")), `"1"^^<http://www.w3.org/2001/XMLSchema#integer>`},
		{"escaped literal", NewLiteral("a \"b\"\n"), `"a \"b\"\n"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.term.String())
		})
	}
}

func TestTermEqual(t *testing.T) {
	xsdString := NewResource(XSDString)

	assert.True(t, NewLiteral("a").Equal(NewLiteralWithDatatype("a", xsdString)))
	assert.True(t, NewLiteralWithLanguage("a", "nb").Equal(NewLiteralWithLanguageAndDatatype("a", "nb", NewResource(RDFLangString))))
	assert.False(t, NewLiteral("a").Equal(NewLiteralWithLanguage("a", "nb")))
	assert.False(t, NewLiteralWithLanguage("a", "nb").Equal(NewLiteralWithLanguage("a", "en")))
	assert.False(t, NewLiteral("1").Equal(NewLiteralWithDatatype("1", NS("xsd").Get("integer"))))
	assert.False(t, NewResource("http://example.com/a").Equal(NewLiteral("http://example.com/a")))
	assert.True(t, NewBlankNode("x").Equal(NewBlankNode("_:x")))
	assert.False(t, NewBlankNode("x").Equal(NewResource("x")))
}

func TestTripleString(t *testing.T) {
	triple := NewTriple(NewResource("http://example.com/s"), NewResource(RDFType), NewBlankNode("o"))
	assert.Equal(t, "<http://example.com/s> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> _:o .", triple.String())
	assert.True(t, triple.HasBlank())
	assert.True(t, triple.Equal(NewTriple(NewResource("http://example.com/s"), NewResource(RDFType), NewBlankNode("o"))))
	assert.False(t, triple.Equal(nil))
	assert.Equal(t, "nil nil nil .", NewTriple(nil, nil, nil).String())
}

func TestNamespace(t *testing.T) {
	assert.Equal(t, "http://www.w3.org/ns/dcat#Catalog", NS("dcat").IRI("Catalog"))
	assert.Equal(t, "<http://purl.org/dc/terms/title>", NS("dct").Get("title").String())
	assert.Contains(t, TurtlePrefixes(), "@prefix vcard: <http://www.w3.org/2006/vcard/ns#> .\n")
}
