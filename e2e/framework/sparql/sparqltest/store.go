// Package sparqltest provides an in-memory SPARQL protocol server that
// understands the queries and updates rendered by sparql.Builder.
package sparqltest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/rdf"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/sparql"
)

var (
	insertNamed   = regexp.MustCompile(`(?s)^INSERT DATA \{ GRAPH <([^>]+)> \{\n(.*)\} \}\s*$`)
	insertDefault = regexp.MustCompile(`(?s)^INSERT DATA \{\n(.*)\}\s*$`)
	dropGraph     = regexp.MustCompile(`^DROP (SILENT )?GRAPH <([^>]+)>$`)
	constructAll  = regexp.MustCompile(`GRAPH <([^>]+)> \{ \?s \?p \?o \}`)
	constructType = regexp.MustCompile(`CONSTRUCT \{ \?s a <([^>]+)> \. \}`)
	valuesGraphs  = regexp.MustCompile(`VALUES \?g \{ ([^}]*) \}`)
	describe      = regexp.MustCompile(`^DESCRIBE <([^>]+)>$`)
)

// Store is a fake triplestore serving /$/ping, /{dataset}/query and
// /{dataset}/update.
type Store struct {
	Server   *httptest.Server
	Dataset  string
	Username string
	Password string

	mu          sync.Mutex
	graphs      map[string]*rdf.Graph
	contentType string
	pingStatus  int
	methods     []string
	updates     int
}

// NewStore starts a fake store. The caller must Close it.
func NewStore(dataset, username, password string) *Store {
	s := &Store{
		Dataset:     dataset,
		Username:    username,
		Password:    password,
		graphs:      make(map[string]*rdf.Graph),
		contentType: sparql.DefaultGraphContentType,
		pingStatus:  http.StatusOK,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// URL returns the server base URL.
func (s *Store) URL() string {
	return s.Server.URL
}

// Endpoint returns a credentialed endpoint for the store.
func (s *Store) Endpoint() sparql.Endpoint {
	return sparql.NewEndpoint(s.Server.URL, s.Dataset).WithCredentials(s.Username, s.Password)
}

// Close shuts the server down.
func (s *Store) Close() {
	s.Server.Close()
}

// SetContentType changes the content type of graph results.
func (s *Store) SetContentType(contentType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contentType = contentType
}

// SetPingStatus changes the health endpoint status.
func (s *Store) SetPingStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pingStatus = status
}

// Graph returns a copy of a named graph, or nil.
func (s *Store) Graph(name string) *rdf.Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.graphs[name]
	if !ok {
		return nil
	}
	return g.Clone()
}

// GraphNames lists the named graphs currently holding statements.
func (s *Store) GraphNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.graphs))
	for name, g := range s.graphs {
		if name != "" && g.Len() > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Updates returns the number of applied updates.
func (s *Store) Updates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates
}

// QueryMethods returns the HTTP methods of the queries received so far.
func (s *Store) QueryMethods() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.methods...)
}

func (s *Store) serve(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/$/ping":
		s.mu.Lock()
		status := s.pingStatus
		s.mu.Unlock()
		w.WriteHeader(status)
	case "/" + s.Dataset + "/update":
		s.serveUpdate(w, r)
	case "/" + s.Dataset + "/query":
		s.serveQuery(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Store) serveUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if user, pass, ok := r.BasicAuth(); !ok || user != s.Username || pass != s.Password {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	update := stripPrologue(r.PostForm.Get("update"))

	s.mu.Lock()
	defer s.mu.Unlock()
	if m := dropGraph.FindStringSubmatch(update); m != nil {
		if _, ok := s.graphs[m[2]]; !ok && m[1] == "" {
			http.Error(w, "no such graph", http.StatusNotFound)
			return
		}
		delete(s.graphs, m[2])
		s.updates++
		w.WriteHeader(http.StatusOK)
		return
	}
	name, body := "", ""
	if m := insertNamed.FindStringSubmatch(update); m != nil {
		name, body = m[1], m[2]
	} else if m := insertDefault.FindStringSubmatch(update); m != nil {
		body = m[1]
	} else {
		http.Error(w, "unsupported update", http.StatusBadRequest)
		return
	}
	parsed, err := rdf.ParseString(trimLines(body), rdf.MimeNTriples, name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	target, ok := s.graphs[name]
	if !ok {
		target = rdf.NewGraph(name)
		s.graphs[name] = target
	}
	s.updates++
	for _, triple := range parsed.Triples() {
		target.Add(scopeBlankNodes(triple, s.updates))
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Store) serveQuery(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !strings.Contains(r.Header.Get("Accept"), rdf.MimeTurtle) {
		w.WriteHeader(http.StatusNotAcceptable)
		return
	}
	query := stripPrologue(r.Form.Get("query"))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.methods = append(s.methods, r.Method)

	result := rdf.NewGraph("")
	switch {
	case constructAll.MatchString(query):
		if g, ok := s.graphs[constructAll.FindStringSubmatch(query)[1]]; ok {
			result = g.Clone()
		}
	case constructType.MatchString(query):
		typ := rdf.NewResource(constructType.FindStringSubmatch(query)[1])
		allowed := graphFilter(query)
		for name, g := range s.graphs {
			if name == "" || (allowed != nil && !allowed[name]) {
				continue
			}
			for _, triple := range g.All(nil, rdf.NewResource(rdf.RDFType), typ) {
				result.Add(triple)
			}
		}
	case describe.MatchString(query):
		subject := rdf.NewResource(describe.FindStringSubmatch(query)[1])
		for _, g := range s.graphs {
			for _, triple := range g.All(subject, nil, nil) {
				result.Add(triple)
			}
		}
	default:
		http.Error(w, "unsupported query", http.StatusBadRequest)
		return
	}
	out, err := result.Serialize(rdf.MimeTurtle)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", s.contentType)
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, out)
}

// scopeBlankNodes relabels blank nodes per request, the way a real store
// allocates fresh nodes for each INSERT DATA.
func scopeBlankNodes(triple *rdf.Triple, request int) *rdf.Triple {
	relabel := func(term rdf.Term) rdf.Term {
		if node, ok := term.(*rdf.BlankNode); ok {
			return rdf.NewBlankNode(fmt.Sprintf("u%d_%s", request, node.ID))
		}
		return term
	}
	return rdf.NewTriple(relabel(triple.Subject), triple.Predicate, relabel(triple.Object))
}

// graphFilter returns the graphs listed in a VALUES ?g clause, or nil.
func graphFilter(query string) map[string]bool {
	m := valuesGraphs.FindStringSubmatch(query)
	if m == nil {
		return nil
	}
	allowed := make(map[string]bool)
	for _, field := range strings.Fields(m[1]) {
		allowed[strings.Trim(field, "<>")] = true
	}
	return allowed
}

func stripPrologue(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "PREFIX ") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func trimLines(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.Join(lines, "\n")
}
