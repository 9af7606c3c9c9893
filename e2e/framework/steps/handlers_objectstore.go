package steps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/artifacts"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/objectstore"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/rdf"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/spec"
)

// RegisterObjectstoreHandlers registers steps that move RDF documents
// between the object store and the test.
func RegisterObjectstoreHandlers(reg *Registry) {
	reg.Register("objectstore.download", handleObjectstoreDownload)
	reg.Register("objectstore.upload", handleObjectstoreUpload)
}

// handleObjectstoreDownload fetches key into the test's artifact directory
// and, when as is set, parses it into a graph bound under that alias.
func handleObjectstoreDownload(ctx context.Context, exec *Context, step spec.StepSpec) (map[string]string, error) {
	key, err := requireParam(exec, step.With, "key")
	if err != nil {
		return nil, err
	}
	store, err := openObjectstore(ctx, exec, step.With)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	localPath := param(exec, step.With, "local_path", "")
	if localPath == "" {
		if exec.Artifacts == nil {
			return nil, fmt.Errorf("local_path is required without an artifact writer")
		}
		localPath = filepath.Join(exec.Artifacts.RunDir, "objectstore", artifacts.SafeName(filepath.Base(key)))
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return nil, err
	}
	info, err := store.Download(ctx, key, localPath)
	if err != nil {
		return nil, err
	}
	exec.Vars["last_objectstore_key"] = info.Key
	exec.Vars["last_objectstore_path"] = localPath

	out := map[string]string{"key": info.Key, "path": localPath, "size": strconv.FormatInt(info.Size, 10)}
	if alias := param(exec, step.With, "as", ""); alias != "" {
		body, err := os.ReadFile(localPath)
		if err != nil {
			return nil, err
		}
		format, err := readFormat(exec, step.With, key)
		if err != nil {
			return nil, err
		}
		g, err := rdf.ParseBytes(body, format, param(exec, step.With, "graph", ""))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", key, err)
		}
		exec.SetGraph(alias, g)
		out["as"] = alias
		out["triples"] = strconv.Itoa(g.Len())
	}
	exec.Logger.Debug("downloaded object", zap.String("key", info.Key), zap.String("path", localPath))
	return out, nil
}

// handleObjectstoreUpload stores a bound graph (serialized into the artifact
// directory first) or a local file under key.
func handleObjectstoreUpload(ctx context.Context, exec *Context, step spec.StepSpec) (map[string]string, error) {
	localPath := param(exec, step.With, "local_path", "")
	if ref := param(exec, step.With, "graph_ref", ""); ref != "" {
		if exec.Artifacts == nil {
			return nil, fmt.Errorf("artifact writer not configured")
		}
		g, _, err := boundGraph(exec, step.With, "graph_ref")
		if err != nil {
			return nil, err
		}
		file := param(exec, step.With, "file", ref+".ttl")
		format, err := writeFormat(exec, step.With, file)
		if err != nil {
			return nil, err
		}
		path, err := exec.Artifacts.WriteGraph(file, g, format)
		if err != nil {
			return nil, err
		}
		localPath = path
	}
	if localPath == "" {
		return nil, fmt.Errorf("graph_ref or local_path is required")
	}
	key := param(exec, step.With, "key", "")
	if key == "" {
		key = objectstore.ResolveKey(exec.RunID+"/"+artifacts.SafeName(exec.TestName), filepath.Base(localPath))
	}

	store, err := openObjectstore(ctx, exec, step.With)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	info, err := store.Upload(ctx, key, localPath)
	if err != nil {
		return nil, err
	}
	exec.Vars["last_objectstore_key"] = info.Key
	return map[string]string{"key": info.Key, "path": localPath, "size": strconv.FormatInt(info.Size, 10)}, nil
}

// openObjectstore opens the run's object store with per-step overrides.
func openObjectstore(ctx context.Context, exec *Context, params map[string]interface{}) (objectstore.Store, error) {
	base := objectstore.Config{}
	if exec.Config != nil {
		base = objectstore.FromRunConfig(exec.Config)
	}
	cfg := base
	cfg.Provider = param(exec, params, "provider", base.Provider)
	cfg.Bucket = param(exec, params, "bucket", base.Bucket)
	cfg.Prefix = param(exec, params, "base_prefix", base.Prefix)
	cfg.Region = param(exec, params, "region", base.Region)
	cfg.Endpoint = param(exec, params, "endpoint", base.Endpoint)
	cfg.S3PathStyle = getBool(params, "s3_path_style", base.S3PathStyle)

	open := exec.OpenStore
	if open == nil {
		open = objectstore.Open
	}
	return open(ctx, cfg)
}
