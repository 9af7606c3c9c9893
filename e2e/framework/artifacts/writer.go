package artifacts

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/rdf"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Writer manages artifacts for a single test run.
type Writer struct {
	RunDir string
}

// NewWriter creates the run directory.
func NewWriter(runDir string) (*Writer, error) {
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, err
	}
	return &Writer{RunDir: runDir}, nil
}

// ForTest returns a writer rooted at a per-test subdirectory.
func (w *Writer) ForTest(testName string) (*Writer, error) {
	return NewWriter(filepath.Join(w.RunDir, "tests", SafeName(testName)))
}

// SafeName maps a test or step name to a file-system safe name.
func SafeName(name string) string {
	cleaned := strings.Trim(unsafeName.ReplaceAllString(strings.TrimSpace(name), "_"), "_")
	if cleaned == "" {
		return "unnamed"
	}
	return cleaned
}

// WriteJSON writes an object to a JSON file under the run directory.
func (w *Writer) WriteJSON(name string, value any) (string, error) {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return "", err
	}
	return w.WriteBytes(name, payload)
}

// WriteText writes a string to a file under the run directory.
func (w *Writer) WriteText(name string, data string) (string, error) {
	return w.WriteBytes(name, []byte(data))
}

// WriteBytes writes bytes to a file under the run directory.
func (w *Writer) WriteBytes(name string, data []byte) (string, error) {
	path := filepath.Join(w.RunDir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// WriteGraph serializes a graph in the given media type.
func (w *Writer) WriteGraph(name string, g *rdf.Graph, contentType string) (string, error) {
	body, err := g.Serialize(contentType)
	if err != nil {
		return "", err
	}
	return w.WriteText(name, body)
}

// Files lists all artifacts under the run directory, relative to it.
func (w *Writer) Files() ([]string, error) {
	var files []string
	err := filepath.WalkDir(w.RunDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(w.RunDir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
