package sparql

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/rdf"
)

// Prefixes is an insertion-ordered prefix table rendered as PREFIX lines.
type Prefixes struct {
	table *orderedmap.OrderedMap[string, string]
}

// NewPrefixes returns an empty table.
func NewPrefixes() *Prefixes {
	return &Prefixes{table: orderedmap.New[string, string]()}
}

// DefaultPrefixes returns the prefixes used by catalog queries.
func DefaultPrefixes() *Prefixes {
	p := NewPrefixes()
	for _, prefix := range []string{"dct", "rdf", "owl", "xml", "xsd", "rdfs", "vcard", "dcat", "dc"} {
		p.Add(prefix, string(rdf.NS(prefix)))
	}
	return p
}

// Add sets a prefix, keeping its original position when redefined.
func (p *Prefixes) Add(prefix, iri string) *Prefixes {
	p.table.Set(prefix, iri)
	return p
}

// Lookup returns the namespace IRI of prefix.
func (p *Prefixes) Lookup(prefix string) (string, bool) {
	return p.table.Get(prefix)
}

// Len returns the number of prefixes.
func (p *Prefixes) Len() int {
	return p.table.Len()
}

// String renders the table as a SPARQL prologue.
func (p *Prefixes) String() string {
	var b strings.Builder
	for pair := p.table.Oldest(); pair != nil; pair = pair.Next() {
		fmt.Fprintf(&b, "PREFIX %s: <%s>\n", pair.Key, pair.Value)
	}
	return b.String()
}

// FormatIRI renders an IRI reference, rejecting characters that cannot
// appear between angle brackets.
func FormatIRI(iri string) (string, error) {
	if iri == "" {
		return "", errors.New("empty IRI")
	}
	for _, r := range iri {
		if unicode.IsControl(r) || unicode.IsSpace(r) || strings.ContainsRune("<>\"{}|^`\\", r) {
			return "", errors.Errorf("illegal character %q in IRI %q", r, iri)
		}
	}
	return "<" + iri + ">", nil
}

// FormatLiteral renders a literal with escaped lexical form.
func FormatLiteral(lit *rdf.Literal) (string, error) {
	out := `"` + rdf.EscapeString(lit.Value) + `"`
	switch {
	case lit.Language != "":
		for _, r := range lit.Language {
			if !(r == '-' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
				return "", errors.Errorf("illegal language tag %q", lit.Language)
			}
		}
		out += "@" + lit.Language
	case lit.Datatype != nil:
		res, ok := lit.Datatype.(*rdf.Resource)
		if !ok {
			return "", errors.Errorf("datatype of %s is not an IRI", lit)
		}
		dt, err := FormatIRI(res.URI)
		if err != nil {
			return "", err
		}
		out += "^^" + dt
	}
	return out, nil
}

// FormatTerm renders any term for use in a query.
func FormatTerm(term rdf.Term) (string, error) {
	switch t := term.(type) {
	case *rdf.Resource:
		return FormatIRI(t.URI)
	case *rdf.Literal:
		return FormatLiteral(t)
	case *rdf.BlankNode:
		for _, r := range t.ID {
			if !(r == '_' || r == '-' || r == '.' || unicode.IsLetter(r) || unicode.IsDigit(r)) {
				return "", errors.Errorf("illegal blank node label %q", t.ID)
			}
		}
		return "_:" + t.ID, nil
	case nil:
		return "", errors.New("missing term")
	}
	return "", errors.Errorf("unsupported term %T", term)
}

// FormatTriple renders a triple pattern terminated by " .".
func FormatTriple(triple *rdf.Triple) (string, error) {
	parts := make([]string, 0, 3)
	for _, term := range []rdf.Term{triple.Subject, triple.Predicate, triple.Object} {
		s, err := FormatTerm(term)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ") + " .", nil
}

// Builder renders parameterized queries and updates.
type Builder struct {
	Prefixes *Prefixes
}

// NewBuilder returns a builder; nil prefixes means DefaultPrefixes.
func NewBuilder(prefixes *Prefixes) *Builder {
	if prefixes == nil {
		prefixes = DefaultPrefixes()
	}
	return &Builder{Prefixes: prefixes}
}

// InsertData renders INSERT DATA for triples, inside GRAPH graphIRI unless
// graphIRI is empty.
func (b *Builder) InsertData(graphIRI string, triples []*rdf.Triple) (string, error) {
	var body strings.Builder
	for _, triple := range triples {
		line, err := FormatTriple(triple)
		if err != nil {
			return "", errors.Wrap(err, "format triple")
		}
		body.WriteString("    " + line + "\n")
	}
	if graphIRI == "" {
		return b.Prefixes.String() + "INSERT DATA {\n" + body.String() + "}\n", nil
	}
	graph, err := FormatIRI(graphIRI)
	if err != nil {
		return "", err
	}
	return b.Prefixes.String() + "INSERT DATA { GRAPH " + graph + " {\n" + body.String() + "} }\n", nil
}

// InsertGraph renders INSERT DATA for all triples of g into its named graph.
func (b *Builder) InsertGraph(g *rdf.Graph) (string, error) {
	return b.InsertData(g.Name(), g.Triples())
}

// ConstructGraph renders a CONSTRUCT of every triple in a named graph.
func (b *Builder) ConstructGraph(graphIRI string) (string, error) {
	graph, err := FormatIRI(graphIRI)
	if err != nil {
		return "", err
	}
	return "CONSTRUCT { ?s ?p ?o }\nWHERE {\n  GRAPH " + graph + " { ?s ?p ?o }\n}\n", nil
}

// ConstructTyped renders a CONSTRUCT of every resource of the given type
// across all named graphs.
func (b *Builder) ConstructTyped(typeIRI string) (string, error) {
	typ, err := FormatIRI(typeIRI)
	if err != nil {
		return "", err
	}
	return b.Prefixes.String() + "CONSTRUCT { ?s a " + typ + " . }\nWHERE { GRAPH ?g { ?s a " + typ + " . } }\n", nil
}

// ConstructTypedIn is ConstructTyped restricted to the given named graphs.
// An empty list means all named graphs.
func (b *Builder) ConstructTypedIn(typeIRI string, graphIRIs []string) (string, error) {
	if len(graphIRIs) == 0 {
		return b.ConstructTyped(typeIRI)
	}
	typ, err := FormatIRI(typeIRI)
	if err != nil {
		return "", err
	}
	graphs := make([]string, 0, len(graphIRIs))
	for _, iri := range graphIRIs {
		graph, err := FormatIRI(iri)
		if err != nil {
			return "", err
		}
		graphs = append(graphs, graph)
	}
	return b.Prefixes.String() + "CONSTRUCT { ?s a " + typ + " . }\nWHERE {\n  VALUES ?g { " + strings.Join(graphs, " ") + " }\n  GRAPH ?g { ?s a " + typ + " . }\n}\n", nil
}

// Describe renders DESCRIBE for a resource.
func (b *Builder) Describe(iri string) (string, error) {
	target, err := FormatIRI(iri)
	if err != nil {
		return "", err
	}
	return "DESCRIBE " + target, nil
}

// DropGraph renders DROP GRAPH, optionally SILENT.
func (b *Builder) DropGraph(graphIRI string, silent bool) (string, error) {
	graph, err := FormatIRI(graphIRI)
	if err != nil {
		return "", err
	}
	if silent {
		return "DROP SILENT GRAPH " + graph, nil
	}
	return "DROP GRAPH " + graph, nil
}
