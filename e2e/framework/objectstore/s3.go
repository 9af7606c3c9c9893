package objectstore

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// defaultS3Region is used when neither the config nor the environment names one.
const defaultS3Region = "eu-north-1"

type s3Bucket struct {
	name     string
	client   *s3.Client
	uploader *manager.Uploader
}

func newS3Bucket(ctx context.Context, cfg Config) (bucket, error) {
	options := []func(*config.LoadOptions) error{config.WithRegion(s3Region(cfg.Region))}
	if cfg.AccessKey != "" || cfg.SecretKey != "" || cfg.SessionToken != "" {
		options = append(options, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, cfg.SessionToken),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = cfg.S3PathStyle
	})
	return &s3Bucket{name: cfg.Bucket, client: client, uploader: manager.NewUploader(client)}, nil
}

func s3Region(region string) string {
	candidates := []string{region, os.Getenv("S3_REGION"), os.Getenv("AWS_REGION"), os.Getenv("AWS_DEFAULT_REGION")}
	for _, candidate := range candidates {
		if candidate = strings.TrimSpace(candidate); candidate != "" {
			return candidate
		}
	}
	return defaultS3Region
}

func (b *s3Bucket) put(ctx context.Context, key string, body io.Reader, _ int64, contentType string) (ObjectInfo, error) {
	out, err := b.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.name),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{ETag: aws.ToString(out.ETag)}, nil
}

func (b *s3Bucket) get(ctx context.Context, key string, w io.Writer) (ObjectInfo, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.name),
		Key:    aws.String(key),
	})
	if err != nil {
		return ObjectInfo{}, err
	}
	defer out.Body.Close()
	written, err := io.Copy(w, out.Body)
	if err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{
		Size:         written,
		ETag:         aws.ToString(out.ETag),
		ContentType:  aws.ToString(out.ContentType),
		LastModified: aws.ToTime(out.LastModified),
	}, nil
}

func (b *s3Bucket) close() error {
	return nil
}
