package artifacts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/rdf"
)

func TestWriterLayout(t *testing.T) {
	w, err := NewWriter(filepath.Join(t.TempDir(), "run-1"))
	require.NoError(t, err)

	_, err = w.WriteJSON("summary.json", map[string]int{"passed": 2})
	require.NoError(t, err)

	tw, err := w.ForTest("describe catalog/1")
	require.NoError(t, err)
	g := rdf.NewGraph("")
	g.AddTriple(rdf.NewResource("http://example.com/s"), rdf.NewResource("http://example.com/p"), rdf.NewLiteral("o"))
	path, err := tw.WriteGraph("actual.nt", g, rdf.MimeNTriples)
	require.NoError(t, err)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "<http://example.com/s> <http://example.com/p>")

	files, err := w.Files()
	require.NoError(t, err)
	assert.Equal(t, []string{"summary.json", "tests/describe_catalog_1/actual.nt"}, files)
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "insert-construct", SafeName("insert-construct"))
	assert.Equal(t, "a_b", SafeName(" a / b "))
	assert.Equal(t, "unnamed", SafeName("///"))
}
