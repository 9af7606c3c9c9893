package fixtures

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/objectstore"
)

// Opener creates an object store client; objectstore.Open in production.
type Opener func(ctx context.Context, cfg objectstore.Config) (objectstore.Store, error)

// Fetch ensures a fixture file is available locally and returns its path.
// Remote fixtures are downloaded once into cacheDir.
func Fetch(ctx context.Context, fixture Fixture, cacheDir string, baseCfg objectstore.Config, open Opener) (string, error) {
	if fixture.IsLocal() {
		if err := verifyChecksum(fixture.File, fixture.SHA256); err != nil {
			return "", err
		}
		return fixture.File, nil
	}

	source := strings.ToLower(strings.TrimSpace(fixture.Source))
	provider := objectstore.NormalizeProvider(source)
	if source == "objectstore" || source == "auto" {
		provider = objectstore.NormalizeProvider(baseCfg.Provider)
	}
	if provider == "" {
		return "", errors.Errorf("unsupported fixture source: %s", fixture.Source)
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", err
	}

	localPath := filepath.Join(cacheDir, fmt.Sprintf("%s-%s", fixture.Name, filepath.Base(fixture.File)))
	if _, err := os.Stat(localPath); err == nil {
		if verifyChecksum(localPath, fixture.SHA256) == nil {
			return localPath, nil
		}
		_ = os.Remove(localPath)
	}

	cfg := remoteConfig(fixture, baseCfg)
	cfg.Provider = provider
	if cfg.Bucket == "" {
		return "", errors.Errorf("fixture %q needs a bucket for source %s", fixture.Name, source)
	}

	key := strings.TrimLeft(fixture.File, "/")
	if prefix := strings.Trim(cfg.Prefix, "/"); prefix != "" {
		if key == prefix || strings.HasPrefix(key, prefix+"/") {
			cfg.Prefix = ""
		}
	}

	if open == nil {
		open = objectstore.Open
	}
	store, err := open(ctx, cfg)
	if err != nil {
		return "", errors.Wrapf(err, "open %s store for fixture %q", provider, fixture.Name)
	}
	defer store.Close()

	if _, err := store.Download(ctx, key, localPath); err != nil {
		_ = os.Remove(localPath)
		return "", errors.Wrapf(err, "download fixture %q", fixture.Name)
	}
	if err := verifyChecksum(localPath, fixture.SHA256); err != nil {
		_ = os.Remove(localPath)
		return "", err
	}
	return localPath, nil
}

func remoteConfig(fixture Fixture, baseCfg objectstore.Config) objectstore.Config {
	cfg := baseCfg
	if bucket := strings.TrimSpace(fixture.Bucket); bucket != "" {
		cfg.Bucket = bucket
	} else if bucket := getSetting(fixture.Settings, "bucket"); bucket != "" {
		cfg.Bucket = bucket
	}
	settings := []struct {
		key    string
		target *string
	}{
		{"region", &cfg.Region},
		{"endpoint", &cfg.Endpoint},
		{"access_key", &cfg.AccessKey},
		{"secret_key", &cfg.SecretKey},
		{"session_token", &cfg.SessionToken},
		{"prefix", &cfg.Prefix},
		{"gcp_project", &cfg.GCPProject},
		{"gcp_credentials_file", &cfg.GCPCredentialsFile},
		{"gcp_credentials_json", &cfg.GCPCredentialsJSON},
		{"azure_account", &cfg.AzureAccount},
		{"azure_key", &cfg.AzureKey},
		{"azure_endpoint", &cfg.AzureEndpoint},
		{"azure_sas_token", &cfg.AzureSASToken},
	}
	for _, s := range settings {
		if value := getSetting(fixture.Settings, s.key); value != "" {
			*s.target = value
		}
	}
	if raw := getSetting(fixture.Settings, "s3_path_style"); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			cfg.S3PathStyle = value
		}
	}
	return cfg
}

func getSetting(settings map[string]string, key string) string {
	if len(settings) == 0 {
		return ""
	}
	if value := strings.TrimSpace(settings[key]); value != "" {
		return value
	}
	return strings.TrimSpace(settings["objectstore_"+key])
}

func verifyChecksum(path string, want string) error {
	want = strings.ToLower(strings.TrimSpace(want))
	if want == "" {
		return nil
	}
	got, err := fileChecksum(path)
	if err != nil {
		return err
	}
	if got != want {
		return errors.Errorf("checksum mismatch for %s: got %s, want %s", path, got, want)
	}
	return nil
}

func fileChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
