package rdf

import "fmt"

// Triple contains a subject, a predicate and an object term.
type Triple struct {
	Subject   Term
	Predicate Term
	Object    Term
}

// NewTriple returns a new triple with the given subject, predicate and object.
func NewTriple(subject Term, predicate Term, object Term) *Triple {
	return &Triple{
		Subject:   subject,
		Predicate: predicate,
		Object:    object,
	}
}

// String returns the N-Triples representation of this triple.
func (triple Triple) String() string {
	return fmt.Sprintf("%s %s %s .", termString(triple.Subject), termString(triple.Predicate), termString(triple.Object))
}

// Equal reports whether the triple is equivalent to the argument.
func (triple Triple) Equal(other *Triple) bool {
	if other == nil {
		return false
	}
	return termEqual(triple.Subject, other.Subject) &&
		termEqual(triple.Predicate, other.Predicate) &&
		termEqual(triple.Object, other.Object)
}

// HasBlank reports whether the subject or object is a blank node.
func (triple Triple) HasBlank() bool {
	return IsBlank(triple.Subject) || IsBlank(triple.Object)
}

func termString(term Term) string {
	if term == nil {
		return "nil"
	}
	return term.String()
}

func termEqual(a, b Term) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}
