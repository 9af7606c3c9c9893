package steps

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/objectstore"
)

// dirStore keeps objects as files below root.
type dirStore struct {
	root string
	cfg  objectstore.Config
}

func (d *dirStore) Upload(_ context.Context, key string, localPath string) (objectstore.ObjectInfo, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return objectstore.ObjectInfo{}, err
	}
	remote := objectstore.ResolveKey(d.cfg.Prefix, key)
	target := filepath.Join(d.root, filepath.FromSlash(remote))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return objectstore.ObjectInfo{}, err
	}
	return objectstore.ObjectInfo{Key: remote, Size: int64(len(data))}, os.WriteFile(target, data, 0o644)
}

func (d *dirStore) Download(_ context.Context, key string, localPath string) (objectstore.ObjectInfo, error) {
	remote := objectstore.ResolveKey(d.cfg.Prefix, key)
	data, err := os.ReadFile(filepath.Join(d.root, filepath.FromSlash(remote)))
	if err != nil {
		return objectstore.ObjectInfo{}, err
	}
	return objectstore.ObjectInfo{Key: remote, Size: int64(len(data))}, os.WriteFile(localPath, data, 0o644)
}

func (d *dirStore) Close() error { return nil }

func TestObjectstoreUploadThenDownload(t *testing.T) {
	h := newHarness(t, nil)
	root := t.TempDir()
	var opened []objectstore.Config
	h.exec.Config.ObjectStoreProvider = "minio"
	h.exec.Config.ObjectStoreBucket = "fixtures"
	h.exec.OpenStore = func(_ context.Context, cfg objectstore.Config) (objectstore.Store, error) {
		opened = append(opened, cfg)
		return &dirStore{root: root, cfg: cfg}, nil
	}

	h.must(t, "graph.load", map[string]interface{}{"fixture": "catalog_1", "as": "source"})
	up := h.must(t, "objectstore.upload", map[string]interface{}{"graph_ref": "source", "file": "catalog.nt", "base_prefix": "e2e"})
	assert.Equal(t, "e2e/run-1/test/catalog.nt", up["key"])
	assert.FileExists(t, filepath.Join(root, "e2e", "run-1", "test", "catalog.nt"))

	down := h.must(t, "objectstore.download", map[string]interface{}{"key": "run-1/test/catalog.nt", "base_prefix": "e2e", "as": "fetched"})
	assert.Equal(t, "18", down["triples"])
	assert.FileExists(t, down["path"])
	h.must(t, "assert.graph.isomorphic", map[string]interface{}{"expected": "source", "actual": "fetched"})

	require.Len(t, opened, 2)
	assert.Equal(t, "minio", opened[0].Provider)
	assert.Equal(t, "fixtures", opened[1].Bucket)
	assert.Equal(t, "e2e", opened[1].Prefix)
}

func TestObjectstoreStepErrors(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.run(t, "objectstore.download", map[string]interface{}{})
	assert.ErrorContains(t, err, "key is required")

	_, err = h.run(t, "objectstore.upload", map[string]interface{}{})
	assert.ErrorContains(t, err, "graph_ref or local_path is required")

	_, err = h.run(t, "objectstore.upload", map[string]interface{}{"local_path": "/nope.ttl"})
	assert.ErrorContains(t, err, "provider is required")
}
