package rdf

import (
	"fmt"
	"strings"
)

// Term is the value of a subject, predicate or object: an IRI, a blank node or a literal.
type Term interface {
	// String returns the N-Triples representation of the term.
	String() string

	// Equal reports whether the term is equal to another.
	Equal(Term) bool
}

// Resource is an IRI reference.
type Resource struct {
	URI string
}

// NewResource returns a new resource term.
func NewResource(uri string) Term {
	return &Resource{URI: uri}
}

func (term *Resource) String() string {
	return "<" + term.URI + ">"
}

// Equal reports whether other is a resource with the same IRI.
func (term *Resource) Equal(other Term) bool {
	if res, ok := other.(*Resource); ok {
		return term.URI == res.URI
	}
	return false
}

// Literal is a textual value with an optional language tag or datatype.
type Literal struct {
	Value    string
	Language string
	Datatype Term
}

// NewLiteral returns a plain literal.
func NewLiteral(value string) Term {
	return &Literal{Value: value}
}

// NewLiteralWithLanguage returns a language-tagged literal.
func NewLiteralWithLanguage(value string, language string) Term {
	return &Literal{Value: value, Language: strings.ToLower(language)}
}

// NewLiteralWithDatatype returns a typed literal. An xsd:string datatype is
// dropped so that "a" and "a"^^xsd:string compare equal.
func NewLiteralWithDatatype(value string, datatype Term) Term {
	return &Literal{Value: value, Datatype: normalizeDatatype(datatype, "")}
}

// NewLiteralWithLanguageAndDatatype returns a literal from parser output, where
// the language tag wins over the datatype.
func NewLiteralWithLanguageAndDatatype(value string, language string, datatype Term) Term {
	lit := &Literal{Value: value, Language: strings.ToLower(language)}
	lit.Datatype = normalizeDatatype(datatype, lit.Language)
	return lit
}

func normalizeDatatype(datatype Term, language string) Term {
	if datatype == nil || language != "" {
		return nil
	}
	res, ok := datatype.(*Resource)
	if !ok {
		return nil
	}
	switch res.URI {
	case "", XSDString, RDFLangString:
		return nil
	}
	return datatype
}

func (term *Literal) String() string {
	str := fmt.Sprintf("\"%s\"", EscapeString(term.Value))
	if term.Language != "" {
		str += "@" + term.Language
	} else if term.Datatype != nil {
		str += "^^" + term.Datatype.String()
	}
	return str
}

// Equal reports whether other is a literal with the same value, language and datatype.
func (term *Literal) Equal(other Term) bool {
	lit, ok := other.(*Literal)
	if !ok {
		return false
	}
	if term.Value != lit.Value || term.Language != lit.Language {
		return false
	}
	if term.Datatype == nil || lit.Datatype == nil {
		return term.Datatype == nil && lit.Datatype == nil
	}
	return term.Datatype.Equal(lit.Datatype)
}

// BlankNode is an anonymous node whose identifier is local to one graph.
type BlankNode struct {
	ID string
}

// NewBlankNode returns a blank node with the given identifier.
func NewBlankNode(id string) Term {
	return &BlankNode{ID: strings.TrimPrefix(id, "_:")}
}

func (term *BlankNode) String() string {
	return "_:" + term.ID
}

// Equal compares identifiers. Identifiers only carry meaning inside one graph.
func (term *BlankNode) Equal(other Term) bool {
	if node, ok := other.(*BlankNode); ok {
		return term.ID == node.ID
	}
	return false
}

// IsBlank reports whether term is a blank node.
func IsBlank(term Term) bool {
	_, ok := term.(*BlankNode)
	return ok
}

// EscapeString escapes a literal lexical form for N-Triples, Turtle and SPARQL.
func EscapeString(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
