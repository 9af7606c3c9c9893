package fixtures

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/objectstore"
)

const catalogTurtle = `@prefix dcat: <http://www.w3.org/ns/dcat#> .
<http://example.com/publisher/1/catalogs/1> a dcat:Catalog .
`

// fakeStore serves downloads from a map of key to body.
type fakeStore struct {
	objects   map[string]string
	downloads int
	cfg       objectstore.Config
}

func (f *fakeStore) opener(_ context.Context, cfg objectstore.Config) (objectstore.Store, error) {
	f.cfg = cfg
	return f, nil
}

func (f *fakeStore) Download(_ context.Context, key string, localPath string) (objectstore.ObjectInfo, error) {
	body, ok := f.objects[key]
	if !ok {
		return objectstore.ObjectInfo{}, errors.New("no such key")
	}
	f.downloads++
	return objectstore.ObjectInfo{Key: key, Size: int64(len(body))}, os.WriteFile(localPath, []byte(body), 0o600)
}

func (f *fakeStore) Upload(context.Context, string, string) (objectstore.ObjectInfo, error) {
	return objectstore.ObjectInfo{}, errors.New("read only")
}

func (f *fakeStore) Close() error { return nil }

func TestLoadRegistryFromRepo(t *testing.T) {
	reg, err := LoadRegistry("../../fixtures/registry.yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{"all_catalogs", "catalog_1", "catalog_1_describe", "publisher_2"}, reg.Names())

	fixture, ok := reg.Get("catalog_1")
	require.True(t, ok)
	assert.Equal(t, "catalog_1", fixture.Name)
	assert.Equal(t, "http://example.com/publisher/1", fixture.Graph)
	assert.Equal(t, filepath.Join("..", "..", "fixtures", "catalog_1.ttl"), fixture.File)
	assert.True(t, fixture.IsLocal())
}

func TestLoadRegistryExpandsEnv(t *testing.T) {
	t.Setenv("FIXTURE_BUCKET", "e2e-fixtures")
	path := filepath.Join(t.TempDir(), "registry.yaml")
	body := "fixtures:\n  remote:\n    file: catalogs/c.ttl\n    source: minio\n    bucket: ${FIXTURE_BUCKET}\n  broken:\n    source: local\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	_, err := LoadRegistry(path)
	assert.ErrorContains(t, err, `fixture "broken" has no file`)

	require.NoError(t, os.WriteFile(path, []byte("fixtures:\n  remote:\n    file: catalogs/c.ttl\n    source: minio\n    bucket: ${FIXTURE_BUCKET}\n"), 0o600))
	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	fixture, _ := reg.Get("remote")
	assert.Equal(t, "e2e-fixtures", fixture.Bucket)
	assert.Equal(t, "catalogs/c.ttl", fixture.File, "remote keys are not anchored to the registry")
}

func TestLoaderCachesParsedGraphs(t *testing.T) {
	reg, err := LoadRegistry("../../fixtures/registry.yaml")
	require.NoError(t, err)
	loader, err := NewLoader(reg, t.TempDir(), 2)
	require.NoError(t, err)

	g, err := loader.Graph(context.Background(), "catalog_1")
	require.NoError(t, err)
	assert.Equal(t, 18, g.Len())
	assert.Equal(t, "http://example.com/publisher/1", g.Name())
	assert.Equal(t, 1, loader.Cached())

	for _, triple := range g.Triples() {
		g.Remove(triple)
	}
	again, err := loader.Graph(context.Background(), "catalog_1")
	require.NoError(t, err)
	assert.Equal(t, 18, again.Len(), "callers get copies")

	_, err = loader.Graph(context.Background(), "catalog_1_describe")
	require.NoError(t, err)
	_, err = loader.Graph(context.Background(), "all_catalogs")
	require.NoError(t, err)
	assert.Equal(t, 2, loader.Cached(), "cache is bounded")

	loader.Purge()
	assert.Zero(t, loader.Cached())

	_, err = loader.Graph(context.Background(), "missing")
	assert.ErrorContains(t, err, "unknown fixture")
}

func TestFetchRemoteFixture(t *testing.T) {
	store := &fakeStore{objects: map[string]string{"fixtures/catalog.ttl": catalogTurtle}}
	reg := NewRegistry(Fixture{
		Name:     "catalog",
		File:     "fixtures/catalog.ttl",
		Source:   "objectstore",
		Settings: map[string]string{"endpoint": "http://minio:9000", "prefix": "fixtures"},
	})
	loader, err := NewLoader(reg, t.TempDir(), 0,
		WithObjectStore(objectstore.Config{Provider: "minio", Bucket: "e2e"}),
		WithOpener(store.opener),
	)
	require.NoError(t, err)

	path, err := loader.Path(context.Background(), "catalog")
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Equal(t, "minio", store.cfg.Provider)
	assert.Equal(t, "http://minio:9000", store.cfg.Endpoint)
	assert.Empty(t, store.cfg.Prefix, "prefix already present in the key is not applied twice")

	g, err := loader.Graph(context.Background(), "catalog")
	require.NoError(t, err)
	assert.Equal(t, 1, g.Len())
	assert.Equal(t, 1, store.downloads, "second fetch is served from the cache dir")
}

func TestFetchChecksum(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.ttl")
	require.NoError(t, os.WriteFile(path, []byte(catalogTurtle), 0o600))
	sum, err := fileChecksum(path)
	require.NoError(t, err)

	got, err := Fetch(context.Background(), Fixture{Name: "c", File: path, SHA256: sum}, dir, objectstore.Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	_, err = Fetch(context.Background(), Fixture{Name: "c", File: path, SHA256: "00"}, dir, objectstore.Config{}, nil)
	assert.ErrorContains(t, err, "checksum mismatch")
}

func TestFetchRemoteRequiresBucket(t *testing.T) {
	store := &fakeStore{}
	_, err := Fetch(context.Background(), Fixture{Name: "c", File: "c.ttl", Source: "s3"}, t.TempDir(), objectstore.Config{}, store.opener)
	assert.ErrorContains(t, err, "needs a bucket")

	_, err = Fetch(context.Background(), Fixture{Name: "c", File: "c.ttl", Source: "objectstore"}, t.TempDir(), objectstore.Config{}, store.opener)
	assert.ErrorContains(t, err, "unsupported fixture source")
}
