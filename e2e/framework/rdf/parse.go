package rdf

import (
	"bytes"
	"io"
	"os"
	"strings"

	krdf "github.com/knakk/rdf"
	"github.com/pkg/errors"
)

// Parse reads RDF in the given syntax and adds its triples to the graph.
func (g *Graph) Parse(r io.Reader, contentType string) error {
	format, ok := mimeParser[MediaType(contentType)]
	if !ok {
		return errors.Errorf("unsupported RDF syntax %q", contentType)
	}
	triples, err := krdf.NewTripleDecoder(r, format).DecodeAll()
	if err != nil {
		return errors.Wrapf(err, "parse %s", MediaType(contentType))
	}
	for _, tr := range triples {
		triple, err := fromKnakk(tr)
		if err != nil {
			return err
		}
		g.Add(triple)
	}
	return nil
}

// ParseString parses a document into a new graph named name.
func ParseString(body string, contentType string, name string) (*Graph, error) {
	g := NewGraph(name)
	if err := g.Parse(strings.NewReader(body), contentType); err != nil {
		return nil, err
	}
	return g, nil
}

// ParseBytes parses a document into a new graph named name.
func ParseBytes(body []byte, contentType string, name string) (*Graph, error) {
	g := NewGraph(name)
	if err := g.Parse(bytes.NewReader(body), contentType); err != nil {
		return nil, err
	}
	return g, nil
}

// ParseFile parses a file, choosing the syntax from its extension.
func ParseFile(path string, name string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open rdf file")
	}
	defer f.Close()
	g := NewGraph(name)
	if err := g.Parse(f, MimeForPath(path)); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return g, nil
}

func fromKnakk(tr krdf.Triple) (*Triple, error) {
	s, err := termFromKnakk(tr.Subj)
	if err != nil {
		return nil, err
	}
	p, err := termFromKnakk(tr.Pred)
	if err != nil {
		return nil, err
	}
	o, err := termFromKnakk(tr.Obj)
	if err != nil {
		return nil, err
	}
	return NewTriple(s, p, o), nil
}

func termFromKnakk(term krdf.Term) (Term, error) {
	switch t := term.(type) {
	case krdf.IRI:
		return NewResource(t.String()), nil
	case krdf.Blank:
		return NewBlankNode(t.String()), nil
	case krdf.Literal:
		var datatype Term
		if dt := t.DataType.String(); dt != "" {
			datatype = NewResource(dt)
		}
		return NewLiteralWithLanguageAndDatatype(t.String(), t.Lang(), datatype), nil
	}
	return nil, errors.Errorf("unsupported term %T", term)
}
