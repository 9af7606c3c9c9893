package compare

import (
	"fmt"
	"sort"
	"strings"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/rdf"
)

// DiffResult is a three-way split of two graphs.
type DiffResult struct {
	InBoth       *rdf.Graph
	OnlyInFirst  *rdf.Graph
	OnlyInSecond *rdf.Graph
}

// Equal reports whether nothing is exclusive to either side.
func (d DiffResult) Equal() bool {
	return d.OnlyInFirst.Len() == 0 && d.OnlyInSecond.Len() == 0
}

// Report renders the three sections as Turtle for logs and artifacts.
func (d DiffResult) Report() string {
	var b strings.Builder
	for _, section := range []struct {
		title string
		graph *rdf.Graph
	}{
		{"in both", d.InBoth},
		{"in first", d.OnlyInFirst},
		{"in second", d.OnlyInSecond},
	} {
		fmt.Fprintf(&b, "# %s: %d\n", section.title, section.graph.Len())
		b.WriteString(render(section.graph))
		b.WriteString("\n")
	}
	return b.String()
}

func render(g *rdf.Graph) string {
	if g.Len() == 0 {
		return ""
	}
	out, err := g.Serialize(rdf.MimeTurtle)
	if err == nil {
		return out
	}
	var b strings.Builder
	for _, triple := range g.Triples() {
		b.WriteString(triple.String() + "\n")
	}
	return b.String()
}

// Diff splits g1 and g2 into shared and exclusive triples. Isomorphic graphs
// are entirely shared. Otherwise blank nodes on both sides are relabeled from
// their refined colours so that structurally matching triples still line up.
func Diff(g1, g2 *rdf.Graph) DiffResult {
	if mapping, ok := FindBijection(g1, g2); ok {
		inverse := make(map[string]string, len(mapping))
		for from, to := range mapping {
			inverse[to] = from
		}
		return split(g1, relabel(g2, inverse))
	}
	p1, p2 := newPartition(g1), newPartition(g2)
	colours := refine(p1, p2)
	return split(
		relabel(g1, canonicalLabels(p1.nodes, colours[0])),
		relabel(g2, canonicalLabels(p2.nodes, colours[1])),
	)
}

// Canonicalize returns a copy of g whose blank nodes are labeled from their
// refined colours. Isomorphic graphs without automorphic ties get identical labels.
func Canonicalize(g *rdf.Graph) *rdf.Graph {
	p := newPartition(g)
	colours := refine(p)
	return relabel(g, canonicalLabels(p.nodes, colours[0]))
}

func split(g1, g2 *rdf.Graph) DiffResult {
	d := DiffResult{
		InBoth:       rdf.NewGraph(""),
		OnlyInFirst:  rdf.NewGraph(""),
		OnlyInSecond: rdf.NewGraph(""),
	}
	for _, triple := range g1.Triples() {
		if g2.Has(triple) {
			d.InBoth.Add(triple)
		} else {
			d.OnlyInFirst.Add(triple)
		}
	}
	for _, triple := range g2.Triples() {
		if !g1.Has(triple) {
			d.OnlyInSecond.Add(triple)
		}
	}
	return d
}

// canonicalLabels names each node cb<colour prefix>, adding an index when
// several nodes share a colour.
func canonicalLabels(nodes []string, c colouring) map[string]string {
	groups := make(map[string][]string)
	for _, id := range nodes {
		groups[c[id]] = append(groups[c[id]], id)
	}
	labels := make(map[string]string, len(nodes))
	for colour, ids := range groups {
		sort.Strings(ids)
		prefix := "cb" + colour[:16]
		if len(ids) == 1 {
			labels[ids[0]] = prefix
			continue
		}
		for i, id := range ids {
			labels[id] = fmt.Sprintf("%s_%d", prefix, i)
		}
	}
	return labels
}

func relabel(g *rdf.Graph, labels map[string]string) *rdf.Graph {
	out := rdf.NewGraph(g.Name())
	for _, triple := range g.Triples() {
		if !triple.HasBlank() {
			out.Add(triple)
			continue
		}
		terms := [3]rdf.Term{triple.Subject, triple.Predicate, triple.Object}
		for i, term := range terms {
			if node, ok := term.(*rdf.BlankNode); ok {
				if label, found := labels[node.ID]; found {
					terms[i] = rdf.NewBlankNode(label)
				}
			}
		}
		out.Add(rdf.NewTriple(terms[0], terms[1], terms[2]))
	}
	return out
}
