package steps

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/rdf"
)

// lookup returns a present, non-nil parameter.
func lookup(params map[string]interface{}, key string) (interface{}, bool) {
	value, ok := params[key]
	return value, ok && value != nil
}

// getString reads a parameter as text. YAML scalars such as numbers and
// booleans are formatted; an empty string yields fallback.
func getString(params map[string]interface{}, key string, fallback string) string {
	value, ok := lookup(params, key)
	if !ok {
		return fallback
	}
	if text := fmt.Sprint(value); text != "" {
		return text
	}
	return fallback
}

func getInt(params map[string]interface{}, key string, fallback int) int {
	value, ok := lookup(params, key)
	if !ok {
		return fallback
	}
	switch typed := value.(type) {
	case int:
		return typed
	case int64:
		return int(typed)
	case float64:
		return int(typed)
	case string:
		if parsed, err := strconv.Atoi(strings.TrimSpace(typed)); err == nil {
			return parsed
		}
	}
	return fallback
}

// getDuration accepts Go duration strings or a number of seconds.
func getDuration(params map[string]interface{}, key string, fallback time.Duration) time.Duration {
	value, ok := lookup(params, key)
	if !ok {
		return fallback
	}
	switch typed := value.(type) {
	case time.Duration:
		return typed
	case int:
		return time.Duration(typed) * time.Second
	case float64:
		return time.Duration(typed * float64(time.Second))
	case string:
		if parsed, err := time.ParseDuration(strings.TrimSpace(typed)); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(params map[string]interface{}, key string, fallback bool) bool {
	value, ok := lookup(params, key)
	if !ok {
		return fallback
	}
	switch typed := value.(type) {
	case bool:
		return typed
	case string:
		switch strings.ToLower(strings.TrimSpace(typed)) {
		case "true", "yes", "y", "1":
			return true
		case "false", "no", "n", "0":
			return false
		}
	}
	return fallback
}

func getStringList(params map[string]interface{}, key string) []string {
	value, _ := lookup(params, key)
	switch typed := value.(type) {
	case []string:
		return typed
	case []interface{}:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		if strings.TrimSpace(typed) != "" {
			return []string{typed}
		}
	}
	return nil
}

// expandVars substitutes ${name} from vars, then from the environment.
func expandVars(value string, vars map[string]string) string {
	if value == "" || vars == nil {
		return value
	}
	return os.Expand(value, func(key string) string {
		if replacement, ok := vars[key]; ok {
			return replacement
		}
		return os.Getenv(key)
	})
}

// param reads a string step parameter with ${var} expansion.
func param(exec *Context, params map[string]interface{}, key string, fallback string) string {
	return exec.Expand(getString(params, key, fallback))
}

// requireParam reads a non-empty string step parameter with ${var} expansion.
func requireParam(exec *Context, params map[string]interface{}, key string) (string, error) {
	value := strings.TrimSpace(param(exec, params, key, ""))
	if value == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return value, nil
}

// boundGraph resolves the graph alias named by params[key].
func boundGraph(exec *Context, params map[string]interface{}, key string) (*rdf.Graph, string, error) {
	name, err := requireParam(exec, params, key)
	if err != nil {
		return nil, "", err
	}
	g, ok := exec.Graph(name)
	if !ok {
		return nil, name, fmt.Errorf("no graph bound to %q", name)
	}
	return g, name, nil
}

// readFormat returns the RDF syntax to parse a document in: the "format"
// parameter, else the syntax implied by path.
func readFormat(exec *Context, params map[string]interface{}, path string) (string, error) {
	format := param(exec, params, "format", rdf.MimeForPath(path))
	if !rdf.CanParse(format) {
		return "", fmt.Errorf("cannot parse RDF as %q", format)
	}
	return format, nil
}

// writeFormat is readFormat for serialization.
func writeFormat(exec *Context, params map[string]interface{}, path string) (string, error) {
	format := param(exec, params, "format", rdf.MimeForPath(path))
	if !rdf.CanSerialize(format) {
		return "", fmt.Errorf("cannot serialize RDF as %q", format)
	}
	return format, nil
}
