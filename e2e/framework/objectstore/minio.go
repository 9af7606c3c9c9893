package objectstore

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type minioBucket struct {
	name   string
	client *minio.Client
}

func newMinioBucket(cfg Config) (bucket, error) {
	host, secure, err := minioEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, cfg.SessionToken),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}
	return &minioBucket{name: cfg.Bucket, client: client}, nil
}

// minioEndpoint splits an endpoint URL into the host minio.New expects and
// whether TLS is used.
func minioEndpoint(endpoint string) (string, bool, error) {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	switch {
	case endpoint == "":
		return "", false, fmt.Errorf("minio endpoint is required")
	case strings.HasPrefix(endpoint, "http://"):
		return strings.TrimPrefix(endpoint, "http://"), false, nil
	case strings.HasPrefix(endpoint, "https://"):
		return strings.TrimPrefix(endpoint, "https://"), true, nil
	default:
		return "", false, fmt.Errorf("unsupported minio endpoint %q: scheme must be http or https", endpoint)
	}
}

func (m *minioBucket) put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (ObjectInfo, error) {
	info, err := m.client.PutObject(ctx, m.name, key, body, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{ETag: info.ETag, LastModified: info.LastModified}, nil
}

func (m *minioBucket) get(ctx context.Context, key string, w io.Writer) (ObjectInfo, error) {
	obj, err := m.client.GetObject(ctx, m.name, key, minio.GetObjectOptions{})
	if err != nil {
		return ObjectInfo{}, err
	}
	defer obj.Close()
	stat, err := obj.Stat()
	if err != nil {
		return ObjectInfo{}, err
	}
	written, err := io.Copy(w, obj)
	if err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{Size: written, ETag: stat.ETag, ContentType: stat.ContentType, LastModified: stat.LastModified}, nil
}

func (m *minioBucket) close() error {
	return nil
}
