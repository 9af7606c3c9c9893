package compare

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/rdf"
)

// colouring maps a blank node identifier to its refined colour.
type colouring map[string]string

// partition splits a graph into ground triples and the triples touching at
// least one blank node, indexed by the blank nodes they touch.
type partition struct {
	ground   map[string]*rdf.Triple
	blank    map[string]*rdf.Triple
	nodes    []string
	incident map[string][]*rdf.Triple
}

func newPartition(g *rdf.Graph) *partition {
	p := &partition{
		ground:   make(map[string]*rdf.Triple),
		blank:    make(map[string]*rdf.Triple),
		incident: make(map[string][]*rdf.Triple),
	}
	for _, triple := range g.Triples() {
		key := triple.String()
		if !triple.HasBlank() {
			p.ground[key] = triple
			continue
		}
		p.blank[key] = triple
		for _, id := range blankIDs(triple) {
			p.incident[id] = append(p.incident[id], triple)
		}
	}
	p.nodes = make([]string, 0, len(p.incident))
	for id := range p.incident {
		p.nodes = append(p.nodes, id)
	}
	sort.Strings(p.nodes)
	return p
}

// blankIDs returns the distinct blank identifiers of a triple.
func blankIDs(triple *rdf.Triple) []string {
	var ids []string
	for _, term := range []rdf.Term{triple.Subject, triple.Predicate, triple.Object} {
		node, ok := term.(*rdf.BlankNode)
		if !ok {
			continue
		}
		dup := false
		for _, id := range ids {
			if id == node.ID {
				dup = true
			}
		}
		if !dup {
			ids = append(ids, node.ID)
		}
	}
	return ids
}

func hashOf(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\n")))
	return hex.EncodeToString(sum[:])
}

var initialColour = hashOf("blank")

// step computes one refinement round: a node's new colour hashes its old
// colour with the sorted descriptions of its incident triples.
func (p *partition) step(current colouring) colouring {
	next := make(colouring, len(p.nodes))
	for _, id := range p.nodes {
		tuples := make([]string, 0, len(p.incident[id]))
		for _, triple := range p.incident[id] {
			tuples = append(tuples, describe(triple, id, current))
		}
		sort.Strings(tuples)
		next[id] = hashOf(append([]string{current[id]}, tuples...)...)
	}
	return next
}

// describe renders a triple from the point of view of one blank node: its
// position, the predicate, and the other terms with blank nodes replaced by colour.
func describe(triple *rdf.Triple, id string, current colouring) string {
	terms := []rdf.Term{triple.Subject, triple.Predicate, triple.Object}
	var b strings.Builder
	for i, term := range terms {
		if i > 0 {
			b.WriteByte(' ')
		}
		node, ok := term.(*rdf.BlankNode)
		switch {
		case ok && node.ID == id:
			b.WriteString("@")
		case ok:
			b.WriteString("_:" + current[node.ID])
		default:
			b.WriteString(term.String())
		}
	}
	return b.String()
}

func classes(c colouring) int {
	seen := make(map[string]struct{}, len(c))
	for _, colour := range c {
		seen[colour] = struct{}{}
	}
	return len(seen)
}

// refine runs colour refinement over several graphs in lockstep, so colours
// are comparable across them, until no partition splits further.
func refine(parts ...*partition) []colouring {
	current := make([]colouring, len(parts))
	rounds := 1
	for i, p := range parts {
		current[i] = make(colouring, len(p.nodes))
		for _, id := range p.nodes {
			current[i][id] = initialColour
		}
		if len(p.nodes) >= rounds {
			rounds = len(p.nodes) + 1
		}
	}
	for round := 0; round < rounds; round++ {
		next := make([]colouring, len(parts))
		stable := true
		for i, p := range parts {
			next[i] = p.step(current[i])
			if classes(next[i]) != classes(current[i]) {
				stable = false
			}
		}
		current = next
		if stable {
			break
		}
	}
	return current
}

// histogram counts nodes per colour.
func histogram(c colouring) map[string]int {
	out := make(map[string]int, len(c))
	for _, colour := range c {
		out[colour]++
	}
	return out
}

func sameHistogram(a, b colouring) bool {
	ha, hb := histogram(a), histogram(b)
	if len(ha) != len(hb) {
		return false
	}
	for colour, n := range ha {
		if hb[colour] != n {
			return false
		}
	}
	return true
}
