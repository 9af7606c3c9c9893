package objectstore

import (
	"context"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

type gcsBucket struct {
	client *storage.Client
	bucket *storage.BucketHandle
}

func newGCSBucket(ctx context.Context, cfg Config) (bucket, error) {
	var options []option.ClientOption
	switch {
	case strings.TrimSpace(cfg.GCPCredentialsJSON) != "":
		options = append(options, option.WithCredentialsJSON([]byte(cfg.GCPCredentialsJSON)))
	case strings.TrimSpace(cfg.GCPCredentialsFile) != "":
		options = append(options, option.WithCredentialsFile(cfg.GCPCredentialsFile))
	}
	if project := strings.TrimSpace(cfg.GCPProject); project != "" {
		options = append(options, option.WithQuotaProject(project))
	}
	if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
		options = append(options, option.WithEndpoint(endpoint))
	}
	client, err := storage.NewClient(ctx, options...)
	if err != nil {
		return nil, err
	}
	return &gcsBucket{client: client, bucket: client.Bucket(cfg.Bucket)}, nil
}

func (g *gcsBucket) put(ctx context.Context, key string, body io.Reader, _ int64, contentType string) (ObjectInfo, error) {
	w := g.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return ObjectInfo{}, err
	}
	if err := w.Close(); err != nil {
		return ObjectInfo{}, err
	}
	attrs := w.Attrs()
	return ObjectInfo{ETag: attrs.Etag, LastModified: attrs.Updated}, nil
}

func (g *gcsBucket) get(ctx context.Context, key string, w io.Writer) (ObjectInfo, error) {
	r, err := g.bucket.Object(key).NewReader(ctx)
	if err != nil {
		return ObjectInfo{}, err
	}
	defer r.Close()
	written, err := io.Copy(w, r)
	if err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{Size: written, ContentType: r.Attrs.ContentType, LastModified: r.Attrs.LastModified}, nil
}

func (g *gcsBucket) close() error {
	return g.client.Close()
}
