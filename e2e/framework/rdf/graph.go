package rdf

import "sort"

// Graph is a set of triples, optionally scoped to a named-graph IRI.
// Duplicate triples collapse; order is irrelevant.
type Graph struct {
	name    string
	triples map[string]*Triple
}

// NewGraph returns an empty graph. name may be empty for the default graph.
func NewGraph(name string) *Graph {
	return &Graph{
		name:    name,
		triples: make(map[string]*Triple),
	}
}

// Name returns the named-graph IRI, or "" for an unnamed graph.
func (g *Graph) Name() string {
	return g.name
}

// Term returns the named-graph IRI as a resource, or nil for an unnamed graph.
func (g *Graph) Term() Term {
	if g.name == "" {
		return nil
	}
	return NewResource(g.name)
}

// Len returns the number of distinct triples.
func (g *Graph) Len() int {
	return len(g.triples)
}

// Add inserts a triple and reports whether it was new.
func (g *Graph) Add(triple *Triple) bool {
	key := triple.String()
	if _, ok := g.triples[key]; ok {
		return false
	}
	g.triples[key] = triple
	return true
}

// AddTriple builds and inserts a triple.
func (g *Graph) AddTriple(subject Term, predicate Term, object Term) bool {
	return g.Add(NewTriple(subject, predicate, object))
}

// Remove deletes a triple and reports whether it was present.
func (g *Graph) Remove(triple *Triple) bool {
	key := triple.String()
	if _, ok := g.triples[key]; !ok {
		return false
	}
	delete(g.triples, key)
	return true
}

// Has reports whether the triple is in the graph, comparing blank nodes by identifier.
func (g *Graph) Has(triple *Triple) bool {
	_, ok := g.triples[triple.String()]
	return ok
}

// Triples returns all triples ordered by their N-Triples form.
func (g *Graph) Triples() []*Triple {
	keys := make([]string, 0, len(g.triples))
	for key := range g.triples {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]*Triple, 0, len(keys))
	for _, key := range keys {
		out = append(out, g.triples[key])
	}
	return out
}

// All returns the triples matching a pattern; nil terms match anything.
func (g *Graph) All(subject Term, predicate Term, object Term) []*Triple {
	var out []*Triple
	for _, triple := range g.Triples() {
		if subject != nil && !subject.Equal(triple.Subject) {
			continue
		}
		if predicate != nil && !predicate.Equal(triple.Predicate) {
			continue
		}
		if object != nil && !object.Equal(triple.Object) {
			continue
		}
		out = append(out, triple)
	}
	return out
}

// One returns the first triple matching a pattern, or nil.
func (g *Graph) One(subject Term, predicate Term, object Term) *Triple {
	matches := g.All(subject, predicate, object)
	if len(matches) == 0 {
		return nil
	}
	return matches[0]
}

// BlankNodes returns the distinct blank node identifiers, sorted.
func (g *Graph) BlankNodes() []string {
	seen := make(map[string]bool)
	for _, triple := range g.triples {
		for _, term := range []Term{triple.Subject, triple.Object} {
			if node, ok := term.(*BlankNode); ok {
				seen[node.ID] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Clone returns a shallow copy sharing the immutable triples.
func (g *Graph) Clone() *Graph {
	out := NewGraph(g.name)
	for key, triple := range g.triples {
		out.triples[key] = triple
	}
	return out
}

// WithName returns a copy of the graph under another named-graph IRI.
func (g *Graph) WithName(name string) *Graph {
	out := g.Clone()
	out.name = name
	return out
}

// Partition splits the graph into the smallest groups of triples that keep
// every blank node inside one group. Ground triples stand alone. Groups
// follow the order of Triples.
func (g *Graph) Partition() [][]*Triple {
	triples := g.Triples()
	parent := make([]int, len(triples))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}

	owner := make(map[string]int)
	for i, triple := range triples {
		for _, term := range []Term{triple.Subject, triple.Object} {
			node, ok := term.(*BlankNode)
			if !ok {
				continue
			}
			if j, seen := owner[node.ID]; seen {
				a, b := find(i), find(j)
				if a < b {
					a, b = b, a
				}
				parent[a] = b
				continue
			}
			owner[node.ID] = i
		}
	}

	index := make(map[int]int)
	var groups [][]*Triple
	for i, triple := range triples {
		root := find(i)
		pos, ok := index[root]
		if !ok {
			pos = len(groups)
			index[root] = pos
			groups = append(groups, nil)
		}
		groups[pos] = append(groups[pos], triple)
	}
	return groups
}
