package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/config"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/rdf"
)

// Config describes how to connect to an object store provider.
type Config struct {
	Provider           string
	Bucket             string
	Prefix             string
	Region             string
	Endpoint           string
	AccessKey          string
	SecretKey          string
	SessionToken       string
	S3PathStyle        bool
	GCPProject         string
	GCPCredentialsFile string
	GCPCredentialsJSON string
	AzureAccount       string
	AzureKey           string
	AzureEndpoint      string
	AzureSASToken      string
}

// FromRunConfig extracts the object store settings of a run.
func FromRunConfig(cfg *config.Config) Config {
	return Config{
		Provider:           cfg.ObjectStoreProvider,
		Bucket:             cfg.ObjectStoreBucket,
		Prefix:             cfg.ObjectStorePrefix,
		Region:             cfg.ObjectStoreRegion,
		Endpoint:           cfg.ObjectStoreEndpoint,
		AccessKey:          cfg.ObjectStoreAccessKey,
		SecretKey:          cfg.ObjectStoreSecretKey,
		SessionToken:       cfg.ObjectStoreSessionToken,
		S3PathStyle:        cfg.ObjectStoreS3PathStyle,
		GCPProject:         cfg.ObjectStoreGCPProject,
		GCPCredentialsFile: cfg.ObjectStoreGCPCredentialsFile,
		GCPCredentialsJSON: cfg.ObjectStoreGCPCredentialsJSON,
		AzureAccount:       cfg.ObjectStoreAzureAccount,
		AzureKey:           cfg.ObjectStoreAzureKey,
		AzureEndpoint:      cfg.ObjectStoreAzureEndpoint,
		AzureSASToken:      cfg.ObjectStoreAzureSASToken,
	}
}

// ObjectInfo captures metadata about a remote object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
}

// Downloader fetches a remote object into a local file.
type Downloader interface {
	Download(ctx context.Context, key string, localPath string) (ObjectInfo, error)
}

// Uploader stores a local file under a remote key.
type Uploader interface {
	Upload(ctx context.Context, key string, localPath string) (ObjectInfo, error)
}

// Store is a generic object store client used for fixtures and run artifacts.
type Store interface {
	Downloader
	Uploader
	Close() error
}

// Open creates a store client based on config.
func Open(ctx context.Context, cfg Config) (Store, error) {
	provider := NormalizeProvider(cfg.Provider)
	if provider == "" {
		return nil, fmt.Errorf("objectstore provider is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("objectstore bucket is required")
	}
	cfg.Provider = provider
	var (
		b   bucket
		err error
	)
	switch provider {
	case "s3":
		b, err = newS3Bucket(ctx, cfg)
	case "minio":
		b, err = newMinioBucket(cfg)
	case "gcs":
		b, err = newGCSBucket(ctx, cfg)
	case "azure":
		b, err = newAzureBucket(cfg)
	default:
		return nil, fmt.Errorf("unsupported objectstore provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return &store{prefix: cfg.Prefix, bucket: b}, nil
}

// bucket moves raw object bodies for one provider. Keys are fully resolved.
type bucket interface {
	put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (ObjectInfo, error)
	get(ctx context.Context, key string, w io.Writer) (ObjectInfo, error)
	close() error
}

// store adds local files, key prefixes and media type checks to a bucket.
type store struct {
	prefix string
	bucket bucket
}

func (s *store) Upload(ctx context.Context, key string, localPath string) (ObjectInfo, error) {
	remoteKey := ResolveKey(s.prefix, key)
	file, err := os.Open(localPath)
	if err != nil {
		return ObjectInfo{}, err
	}
	defer file.Close()
	stat, err := file.Stat()
	if err != nil {
		return ObjectInfo{}, err
	}
	contentType := ContentTypeFor(localPath)
	info, err := s.bucket.put(ctx, remoteKey, file, stat.Size(), contentType)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("put %s: %w", remoteKey, err)
	}
	info.Key = remoteKey
	info.Size = stat.Size()
	info.ContentType = contentType
	return info, nil
}

// Download writes the object to localPath. An RDF document stored under a
// media type of another syntax is rejected and nothing is left on disk.
func (s *store) Download(ctx context.Context, key string, localPath string) (ObjectInfo, error) {
	remoteKey := ResolveKey(s.prefix, key)
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return ObjectInfo{}, err
	}
	file, err := os.Create(localPath)
	if err != nil {
		return ObjectInfo{}, err
	}
	info, err := s.bucket.get(ctx, remoteKey, file)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = CheckMediaType(remoteKey, info.ContentType)
	}
	if err != nil {
		_ = os.Remove(localPath)
		return ObjectInfo{}, fmt.Errorf("get %s: %w", remoteKey, err)
	}
	info.Key = remoteKey
	return info, nil
}

func (s *store) Close() error {
	return s.bucket.close()
}

// ErrMediaType marks an RDF object whose stored media type disagrees with
// its key.
var ErrMediaType = errors.New("unexpected media type")

// CheckMediaType accepts any object that is not an RDF document by
// extension, and RDF documents whose content type is unset, generic binary
// or the syntax rdf.MimeForPath implies for key.
func CheckMediaType(key string, contentType string) error {
	if !rdf.IsDocumentPath(key) {
		return nil
	}
	switch rdf.MediaType(contentType) {
	case "", "application/octet-stream", "binary/octet-stream":
		return nil
	}
	want := rdf.MimeForPath(key)
	if rdf.SameSyntax(contentType, want) {
		return nil
	}
	return fmt.Errorf("%w: %s is %q, want %s", ErrMediaType, key, contentType, want)
}

var artifactContentTypes = map[string]string{
	".prom": "text/plain; version=0.0.4",
	".diff": "text/plain; charset=utf-8",
}

// ContentTypeFor is the content type an uploaded file is stored under. RDF
// documents get the syntax rdf.MimeForPath implies.
func ContentTypeFor(path string) string {
	if rdf.IsDocumentPath(path) {
		return rdf.MimeForPath(path) + "; charset=utf-8"
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ct, ok := artifactContentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// NormalizeProvider maps known aliases to provider names.
func NormalizeProvider(value string) string {
	provider := strings.ToLower(strings.TrimSpace(value))
	switch provider {
	case "aws", "s3":
		return "s3"
	case "minio":
		return "minio"
	case "gcp", "gcs":
		return "gcs"
	case "azure", "blob":
		return "azure"
	default:
		return provider
	}
}

// ResolveKey joins a base prefix with a key without introducing double slashes.
func ResolveKey(prefix string, key string) string {
	cleanPrefix := strings.TrimPrefix(prefix, "/")
	cleanKey := strings.TrimPrefix(key, "/")
	if cleanPrefix == "" {
		return cleanKey
	}
	if cleanKey == "" {
		return cleanPrefix
	}
	if strings.HasSuffix(cleanPrefix, "/") {
		return cleanPrefix + cleanKey
	}
	return cleanPrefix + "/" + cleanKey
}

// UploadDir uploads every file below dir, keyed by prefix plus the path relative to dir.
func UploadDir(ctx context.Context, up Uploader, dir string, prefix string) ([]ObjectInfo, error) {
	var uploaded []ObjectInfo
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		info, err := up.Upload(ctx, ResolveKey(prefix, filepath.ToSlash(rel)), path)
		if err != nil {
			return fmt.Errorf("upload %s: %w", rel, err)
		}
		uploaded = append(uploaded, info)
		return nil
	})
	return uploaded, err
}
