package compare

import (
	"sort"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/rdf"
)

// IsIsomorphic reports whether some bijection between the blank nodes of g1
// and g2 maps the statements of g1 exactly onto the statements of g2.
func IsIsomorphic(g1, g2 *rdf.Graph) bool {
	_, ok := FindBijection(g1, g2)
	return ok
}

// FindBijection returns a blank node mapping from g1 identifiers to g2
// identifiers under which the graphs are equal. Ground graphs yield an empty
// mapping.
func FindBijection(g1, g2 *rdf.Graph) (map[string]string, bool) {
	if g1.Len() != g2.Len() {
		return nil, false
	}
	p1, p2 := newPartition(g1), newPartition(g2)
	if len(p1.ground) != len(p2.ground) || len(p1.nodes) != len(p2.nodes) {
		return nil, false
	}
	for key := range p1.ground {
		if _, ok := p2.ground[key]; !ok {
			return nil, false
		}
	}
	if len(p1.nodes) == 0 {
		return map[string]string{}, true
	}

	colours := refine(p1, p2)
	if !sameHistogram(colours[0], colours[1]) {
		return nil, false
	}
	m := newMatcher(p1, p2, colours[0], colours[1])
	if !m.search(0) {
		return nil, false
	}
	return m.mapping, true
}

type matcher struct {
	from, to   *partition
	order      []string
	candidates map[string][]string
	colour     colouring
	mapping    map[string]string
	used       map[string]bool
}

func newMatcher(from, to *partition, c1, c2 colouring) *matcher {
	m := &matcher{
		from:       from,
		to:         to,
		candidates: make(map[string][]string),
		colour:     c1,
		mapping:    make(map[string]string, len(from.nodes)),
		used:       make(map[string]bool, len(to.nodes)),
	}
	for _, id := range to.nodes {
		m.candidates[c2[id]] = append(m.candidates[c2[id]], id)
	}
	// Smallest colour classes first, then most constrained.
	m.order = append([]string(nil), from.nodes...)
	sort.SliceStable(m.order, func(i, j int) bool {
		a, b := m.order[i], m.order[j]
		na, nb := len(m.candidates[c1[a]]), len(m.candidates[c1[b]])
		if na != nb {
			return na < nb
		}
		if c1[a] != c1[b] {
			return c1[a] < c1[b]
		}
		return a < b
	})
	return m
}

func (m *matcher) search(i int) bool {
	if i == len(m.order) {
		return true
	}
	node := m.order[i]
	for _, candidate := range m.candidates[m.colour[node]] {
		if m.used[candidate] {
			continue
		}
		m.mapping[node] = candidate
		m.used[candidate] = true
		if m.consistent(node) && m.search(i+1) {
			return true
		}
		delete(m.mapping, node)
		delete(m.used, candidate)
	}
	return false
}

// consistent checks every triple of node whose blank nodes are all mapped.
func (m *matcher) consistent(node string) bool {
	for _, triple := range m.from.incident[node] {
		image, ok := m.image(triple)
		if !ok {
			continue
		}
		if _, found := m.to.blank[image.String()]; !found {
			return false
		}
	}
	return true
}

func (m *matcher) image(triple *rdf.Triple) (*rdf.Triple, bool) {
	terms := [3]rdf.Term{triple.Subject, triple.Predicate, triple.Object}
	for i, term := range terms {
		node, ok := term.(*rdf.BlankNode)
		if !ok {
			continue
		}
		target, mapped := m.mapping[node.ID]
		if !mapped {
			return nil, false
		}
		terms[i] = rdf.NewBlankNode(target)
	}
	return rdf.NewTriple(terms[0], terms[1], terms[2]), true
}
