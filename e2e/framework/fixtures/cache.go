package fixtures

import (
	"context"
	"os"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/objectstore"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/rdf"
)

// DefaultCacheSize bounds the number of parsed fixtures kept in memory.
const DefaultCacheSize = 64

// Loader resolves fixtures by name and keeps parsed graphs in an LRU cache.
// Callers always receive a copy, so cached graphs are never mutated.
type Loader struct {
	registry *Registry
	cacheDir string
	store    objectstore.Config
	open     Opener

	mu     sync.Mutex
	graphs *lru.Cache[string, *rdf.Graph]
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithObjectStore sets the base object store settings for remote fixtures.
func WithObjectStore(cfg objectstore.Config) LoaderOption {
	return func(l *Loader) { l.store = cfg }
}

// WithOpener replaces the object store constructor.
func WithOpener(open Opener) LoaderOption {
	return func(l *Loader) { l.open = open }
}

// NewLoader creates a loader for the registry.
func NewLoader(registry *Registry, cacheDir string, size int, opts ...LoaderOption) (*Loader, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	graphs, err := lru.New[string, *rdf.Graph](size)
	if err != nil {
		return nil, errors.Wrap(err, "create fixture cache")
	}
	if registry == nil {
		registry = NewRegistry()
	}
	l := &Loader{registry: registry, cacheDir: cacheDir, open: objectstore.Open, graphs: graphs}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Registry returns the underlying registry.
func (l *Loader) Registry() *Registry {
	return l.registry
}

// Path returns the local path of a fixture, downloading it if needed.
func (l *Loader) Path(ctx context.Context, name string) (string, error) {
	fixture, ok := l.registry.Get(name)
	if !ok {
		return "", errors.Errorf("unknown fixture %q", name)
	}
	return Fetch(ctx, fixture, l.cacheDir, l.store, l.open)
}

// Graph returns a parsed copy of the fixture. The copy is named after the
// fixture's graph IRI when the registry sets one.
func (l *Loader) Graph(ctx context.Context, name string) (*rdf.Graph, error) {
	if g, ok := l.graphs.Get(name); ok {
		return g.Clone(), nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if g, ok := l.graphs.Get(name); ok {
		return g.Clone(), nil
	}

	fixture, ok := l.registry.Get(name)
	if !ok {
		return nil, errors.Errorf("unknown fixture %q", name)
	}
	path, err := Fetch(ctx, fixture, l.cacheDir, l.store, l.open)
	if err != nil {
		return nil, err
	}
	g, err := parseFixture(path, fixture)
	if err != nil {
		return nil, err
	}
	l.graphs.Add(name, g)
	return g.Clone(), nil
}

// Cached reports how many parsed fixtures are held in memory.
func (l *Loader) Cached() int {
	return l.graphs.Len()
}

// Purge drops all parsed fixtures.
func (l *Loader) Purge() {
	l.graphs.Purge()
}

func parseFixture(path string, fixture Fixture) (*rdf.Graph, error) {
	if fixture.Format == "" {
		return rdf.ParseFile(path, fixture.Graph)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read fixture %q", fixture.Name)
	}
	g, err := rdf.ParseBytes(body, fixture.Format, fixture.Graph)
	if err != nil {
		return nil, errors.Wrapf(err, "parse fixture %q", fixture.Name)
	}
	return g, nil
}
