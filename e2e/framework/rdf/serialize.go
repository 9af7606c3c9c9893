package rdf

import (
	"bytes"
	"io"

	krdf "github.com/knakk/rdf"
	"github.com/pkg/errors"
)

// Serialize renders the graph in the given syntax. Triples are written in
// the order of Triples(), so output is stable for equal graphs.
func (g *Graph) Serialize(contentType string) (string, error) {
	var buf bytes.Buffer
	if err := g.Write(&buf, contentType); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Write serializes the graph to w.
func (g *Graph) Write(w io.Writer, contentType string) error {
	format, ok := mimeSerializer[MediaType(contentType)]
	if !ok {
		return errors.Errorf("unsupported RDF serialization %q", contentType)
	}
	triples := make([]krdf.Triple, 0, g.Len())
	for _, triple := range g.Triples() {
		tr, err := toKnakk(triple)
		if err != nil {
			return errors.Wrapf(err, "serialize %s", triple)
		}
		triples = append(triples, tr)
	}
	enc := krdf.NewTripleEncoder(w, format)
	if err := enc.EncodeAll(triples); err != nil {
		return errors.Wrap(err, "encode triples")
	}
	return errors.Wrap(enc.Close(), "flush encoder")
}

func toKnakk(triple *Triple) (krdf.Triple, error) {
	var out krdf.Triple
	s, err := termToKnakk(triple.Subject)
	if err != nil {
		return out, err
	}
	p, err := termToKnakk(triple.Predicate)
	if err != nil {
		return out, err
	}
	o, err := termToKnakk(triple.Object)
	if err != nil {
		return out, err
	}
	subj, ok := s.(krdf.Subject)
	if !ok {
		return out, errors.Errorf("%s cannot be a subject", triple.Subject)
	}
	pred, ok := p.(krdf.Predicate)
	if !ok {
		return out, errors.Errorf("%s cannot be a predicate", triple.Predicate)
	}
	obj, ok := o.(krdf.Object)
	if !ok {
		return out, errors.Errorf("%s cannot be an object", triple.Object)
	}
	out.Subj, out.Pred, out.Obj = subj, pred, obj
	return out, nil
}

func termToKnakk(term Term) (krdf.Term, error) {
	switch t := term.(type) {
	case *Resource:
		return krdf.NewIRI(t.URI)
	case *BlankNode:
		return krdf.NewBlank(t.ID)
	case *Literal:
		if t.Language != "" {
			return krdf.NewLangLiteral(t.Value, t.Language)
		}
		datatype := XSDString
		if res, ok := t.Datatype.(*Resource); ok {
			datatype = res.URI
		}
		dt, err := krdf.NewIRI(datatype)
		if err != nil {
			return nil, err
		}
		return krdf.NewTypedLiteral(t.Value, dt), nil
	case nil:
		return nil, errors.New("missing term")
	}
	return nil, errors.Errorf("unsupported term %T", term)
}
