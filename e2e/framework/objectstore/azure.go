package objectstore

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
)

type azureBucket struct {
	client *container.Client
}

func newAzureBucket(cfg Config) (bucket, error) {
	containerURL, err := buildAzureContainerURL(cfg)
	if err != nil {
		return nil, err
	}
	var client *container.Client
	switch {
	case strings.TrimSpace(cfg.AzureSASToken) != "":
		client, err = container.NewClientWithNoCredential(containerURL, nil)
	case strings.TrimSpace(cfg.AzureKey) != "":
		if strings.TrimSpace(cfg.AzureAccount) == "" {
			return nil, fmt.Errorf("azure account name is required for shared key auth")
		}
		var credential *azblob.SharedKeyCredential
		if credential, err = azblob.NewSharedKeyCredential(cfg.AzureAccount, cfg.AzureKey); err == nil {
			client, err = container.NewClientWithSharedKeyCredential(containerURL, credential, nil)
		}
	default:
		var credential *azidentity.DefaultAzureCredential
		if credential, err = azidentity.NewDefaultAzureCredential(nil); err == nil {
			client, err = container.NewClient(containerURL, credential, nil)
		}
	}
	if err != nil {
		return nil, err
	}
	return &azureBucket{client: client}, nil
}

// buildAzureContainerURL addresses the container named by cfg.Bucket, with
// the SAS token as its query when one is set.
func buildAzureContainerURL(cfg Config) (string, error) {
	serviceURL := strings.TrimRight(strings.TrimSpace(cfg.AzureEndpoint), "/")
	if serviceURL == "" {
		if strings.TrimSpace(cfg.AzureAccount) == "" {
			return "", fmt.Errorf("azure endpoint or account name is required")
		}
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AzureAccount)
	}
	containerURL := serviceURL + "/" + cfg.Bucket
	if token := strings.TrimPrefix(strings.TrimSpace(cfg.AzureSASToken), "?"); token != "" {
		containerURL += "?" + token
	}
	return containerURL, nil
}

func (a *azureBucket) put(ctx context.Context, key string, body io.Reader, _ int64, contentType string) (ObjectInfo, error) {
	resp, err := a.client.NewBlockBlobClient(key).UploadStream(ctx, body, &blockblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return ObjectInfo{}, err
	}
	info := ObjectInfo{}
	if resp.ETag != nil {
		info.ETag = string(*resp.ETag)
	}
	if resp.LastModified != nil {
		info.LastModified = *resp.LastModified
	}
	return info, nil
}

func (a *azureBucket) get(ctx context.Context, key string, w io.Writer) (ObjectInfo, error) {
	resp, err := a.client.NewBlobClient(key).DownloadStream(ctx, nil)
	if err != nil {
		return ObjectInfo{}, err
	}
	defer resp.Body.Close()
	written, err := io.Copy(w, resp.Body)
	if err != nil {
		return ObjectInfo{}, err
	}
	info := ObjectInfo{Size: written}
	if resp.ContentType != nil {
		info.ContentType = *resp.ContentType
	}
	if resp.ETag != nil {
		info.ETag = string(*resp.ETag)
	}
	if resp.LastModified != nil {
		info.LastModified = *resp.LastModified
	}
	return info, nil
}

func (a *azureBucket) close() error {
	return nil
}
