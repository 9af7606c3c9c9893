package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig represents the structured YAML configuration.
type FileConfig struct {
	Run         *RunFileConfig         `yaml:"run"`
	Store       *StoreFileConfig       `yaml:"store"`
	Readiness   *ReadinessFileConfig   `yaml:"readiness"`
	Logging     *LoggingFileConfig     `yaml:"logging"`
	Metrics     *MetricsFileConfig     `yaml:"metrics"`
	Report      *ReportFileConfig      `yaml:"report"`
	Objectstore *ObjectstoreFileConfig `yaml:"objectstore"`
	OTel        *OTelFileConfig        `yaml:"otel"`
}

type RunFileConfig struct {
	ID              *string     `yaml:"id"`
	SpecDir         *string     `yaml:"spec_dir"`
	FixtureRegistry *string     `yaml:"fixture_registry"`
	FixtureCache    *string     `yaml:"fixture_cache"`
	ArtifactDir     *string     `yaml:"artifact_dir"`
	IncludeTags     *StringList `yaml:"include_tags"`
	ExcludeTags     *StringList `yaml:"exclude_tags"`
	Parallel        *int        `yaml:"parallel"`
	DefaultTimeout  *string     `yaml:"default_timeout"`
	GraphNamespace  *string     `yaml:"graph_namespace"`
	KeepGraphs      *bool       `yaml:"keep_graphs"`
}

type StoreFileConfig struct {
	URL              *string `yaml:"url"`
	Host             *string `yaml:"host"`
	Port             *int    `yaml:"port"`
	Dataset          *string `yaml:"dataset"`
	User             *string `yaml:"user"`
	Password         *string `yaml:"password"`
	GraphContentType *string `yaml:"graph_content_type"`
	DockerIP         *string `yaml:"docker_ip"`
	ComposeFile      *string `yaml:"compose_file"`
	ComposeProject   *string `yaml:"compose_project"`
	ComposeUp        *bool   `yaml:"compose_up"`
	ComposeDown      *bool   `yaml:"compose_down"`
}

type ReadinessFileConfig struct {
	HealthPath *string `yaml:"health_path"`
	Timeout    *string `yaml:"timeout"`
	Interval   *string `yaml:"interval"`
	Settle     *string `yaml:"settle"`
}

type LoggingFileConfig struct {
	Format *string `yaml:"format"`
	Level  *string `yaml:"level"`
}

type MetricsFileConfig struct {
	Enabled *bool   `yaml:"enabled"`
	Path    *string `yaml:"path"`
}

type ReportFileConfig struct {
	Enabled         *bool `yaml:"enabled"`
	UploadArtifacts *bool `yaml:"upload_artifacts"`
}

type ObjectstoreFileConfig struct {
	Provider           *string `yaml:"provider"`
	Bucket             *string `yaml:"bucket"`
	Prefix             *string `yaml:"prefix"`
	Region             *string `yaml:"region"`
	Endpoint           *string `yaml:"endpoint"`
	AccessKey          *string `yaml:"access_key"`
	SecretKey          *string `yaml:"secret_key"`
	SessionToken       *string `yaml:"session_token"`
	S3PathStyle        *bool   `yaml:"s3_path_style"`
	GCPProject         *string `yaml:"gcp_project"`
	GCPCredentialsFile *string `yaml:"gcp_credentials_file"`
	GCPCredentialsJSON *string `yaml:"gcp_credentials_json"`
	AzureAccount       *string `yaml:"azure_account"`
	AzureKey           *string `yaml:"azure_key"`
	AzureEndpoint      *string `yaml:"azure_endpoint"`
	AzureSASToken      *string `yaml:"azure_sas_token"`
}

type OTelFileConfig struct {
	Enabled       *bool   `yaml:"enabled"`
	Endpoint      *string `yaml:"endpoint"`
	Headers       *string `yaml:"headers"`
	Insecure      *bool   `yaml:"insecure"`
	ServiceName   *string `yaml:"service_name"`
	ResourceAttrs *string `yaml:"resource_attrs"`
}

// StringList supports string or list YAML values.
type StringList []string

func (s *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*s = splitCSV(value.Value)
		return nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(value.Content))
		for _, node := range value.Content {
			if node.Kind != yaml.ScalarNode {
				return fmt.Errorf("string list must contain only scalars")
			}
			item := strings.TrimSpace(node.Value)
			if item != "" {
				out = append(out, item)
			}
		}
		*s = out
		return nil
	default:
		return fmt.Errorf("string list must be a string or list")
	}
}

func loadFileConfig(path string) (*FileConfig, error) {
	expanded := expandPath(path)
	if expanded == "" {
		return nil, nil
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, err
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// fileApplier copies file values into Config unless the matching flag was
// given on the command line.
type fileApplier struct {
	explicit map[string]bool
	err      error
}

func (a *fileApplier) str(flagName string, src *string, dst *string) {
	if src != nil && !a.explicit[flagName] {
		*dst = strings.TrimSpace(*src)
	}
}

func (a *fileApplier) path(flagName string, src *string, dst *string) {
	if src != nil && !a.explicit[flagName] {
		*dst = expandPath(*src)
	}
}

func (a *fileApplier) boolean(flagName string, src *bool, dst *bool) {
	if src != nil && !a.explicit[flagName] {
		*dst = *src
	}
}

func (a *fileApplier) integer(flagName string, src *int, dst *int) {
	if src != nil && !a.explicit[flagName] {
		*dst = *src
	}
}

func (a *fileApplier) list(flagName string, src *StringList, dst *[]string) {
	if src != nil && !a.explicit[flagName] {
		*dst = append([]string(nil), (*src)...)
	}
}

func (a *fileApplier) duration(flagName, key string, src *string, dst *time.Duration) {
	if src == nil || a.explicit[flagName] || a.err != nil {
		return
	}
	duration, err := time.ParseDuration(strings.TrimSpace(*src))
	if err != nil {
		a.err = fmt.Errorf("invalid %s: %w", key, err)
		return
	}
	*dst = duration
}

func applyFileConfig(cfg *Config, fileCfg *FileConfig, explicit map[string]bool) error {
	if cfg == nil || fileCfg == nil {
		return nil
	}
	a := &fileApplier{explicit: explicit}
	if run := fileCfg.Run; run != nil {
		a.str("run-id", run.ID, &cfg.RunID)
		a.path("spec-dir", run.SpecDir, &cfg.SpecDir)
		a.path("fixture-registry", run.FixtureRegistry, &cfg.FixtureRegistry)
		a.path("fixture-cache", run.FixtureCache, &cfg.FixtureCacheDir)
		a.path("artifact-dir", run.ArtifactDir, &cfg.ArtifactDir)
		a.list("include-tags", run.IncludeTags, &cfg.IncludeTags)
		a.list("exclude-tags", run.ExcludeTags, &cfg.ExcludeTags)
		a.integer("parallel", run.Parallel, &cfg.Parallelism)
		a.duration("default-timeout", "run.default_timeout", run.DefaultTimeout, &cfg.DefaultTimeout)
		a.str("graph-namespace", run.GraphNamespace, &cfg.GraphNamespace)
		a.boolean("keep-graphs", run.KeepGraphs, &cfg.KeepGraphs)
	}
	if store := fileCfg.Store; store != nil {
		a.str("store-url", store.URL, &cfg.StoreURL)
		a.str("store-host", store.Host, &cfg.StoreHost)
		a.integer("store-port", store.Port, &cfg.StorePort)
		a.str("dataset", store.Dataset, &cfg.Dataset)
		a.str("store-user", store.User, &cfg.StoreUser)
		a.str("store-password", store.Password, &cfg.StorePassword)
		a.str("graph-content-type", store.GraphContentType, &cfg.GraphContentType)
		a.str("docker-ip", store.DockerIP, &cfg.DockerIP)
		a.path("compose-file", store.ComposeFile, &cfg.ComposeFile)
		a.str("compose-project", store.ComposeProject, &cfg.ComposeProject)
		a.boolean("compose-up", store.ComposeUp, &cfg.ComposeUp)
		a.boolean("compose-down", store.ComposeDown, &cfg.ComposeDown)
	}
	if ready := fileCfg.Readiness; ready != nil {
		a.str("health-path", ready.HealthPath, &cfg.HealthPath)
		a.duration("ready-timeout", "readiness.timeout", ready.Timeout, &cfg.ReadyTimeout)
		a.duration("ready-interval", "readiness.interval", ready.Interval, &cfg.ReadyInterval)
		a.duration("ready-settle", "readiness.settle", ready.Settle, &cfg.ReadySettle)
	}
	if logging := fileCfg.Logging; logging != nil {
		a.str("log-format", logging.Format, &cfg.LogFormat)
		a.str("log-level", logging.Level, &cfg.LogLevel)
	}
	if metrics := fileCfg.Metrics; metrics != nil {
		a.boolean("metrics", metrics.Enabled, &cfg.MetricsEnabled)
		a.path("metrics-path", metrics.Path, &cfg.MetricsPath)
	}
	if report := fileCfg.Report; report != nil {
		a.boolean("report", report.Enabled, &cfg.ReportEnabled)
		a.boolean("upload-artifacts", report.UploadArtifacts, &cfg.UploadArtifacts)
	}
	if obj := fileCfg.Objectstore; obj != nil {
		a.str("objectstore-provider", obj.Provider, &cfg.ObjectStoreProvider)
		a.str("objectstore-bucket", obj.Bucket, &cfg.ObjectStoreBucket)
		a.str("objectstore-prefix", obj.Prefix, &cfg.ObjectStorePrefix)
		a.str("objectstore-region", obj.Region, &cfg.ObjectStoreRegion)
		a.str("objectstore-endpoint", obj.Endpoint, &cfg.ObjectStoreEndpoint)
		a.str("objectstore-access-key", obj.AccessKey, &cfg.ObjectStoreAccessKey)
		a.str("objectstore-secret-key", obj.SecretKey, &cfg.ObjectStoreSecretKey)
		a.str("objectstore-session-token", obj.SessionToken, &cfg.ObjectStoreSessionToken)
		a.boolean("objectstore-s3-path-style", obj.S3PathStyle, &cfg.ObjectStoreS3PathStyle)
		a.str("objectstore-gcp-project", obj.GCPProject, &cfg.ObjectStoreGCPProject)
		a.path("objectstore-gcp-credentials-file", obj.GCPCredentialsFile, &cfg.ObjectStoreGCPCredentialsFile)
		a.str("objectstore-gcp-credentials-json", obj.GCPCredentialsJSON, &cfg.ObjectStoreGCPCredentialsJSON)
		a.str("objectstore-azure-account", obj.AzureAccount, &cfg.ObjectStoreAzureAccount)
		a.str("objectstore-azure-key", obj.AzureKey, &cfg.ObjectStoreAzureKey)
		a.str("objectstore-azure-endpoint", obj.AzureEndpoint, &cfg.ObjectStoreAzureEndpoint)
		a.str("objectstore-azure-sas-token", obj.AzureSASToken, &cfg.ObjectStoreAzureSASToken)
	}
	if otel := fileCfg.OTel; otel != nil {
		a.boolean("otel", otel.Enabled, &cfg.OTelEnabled)
		a.str("otel-endpoint", otel.Endpoint, &cfg.OTelEndpoint)
		a.str("otel-headers", otel.Headers, &cfg.OTelHeaders)
		a.boolean("otel-insecure", otel.Insecure, &cfg.OTelInsecure)
		a.str("otel-service-name", otel.ServiceName, &cfg.OTelServiceName)
		a.str("otel-resource-attrs", otel.ResourceAttrs, &cfg.OTelResourceAttrs)
	}
	return a.err
}

func expandPath(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return trimmed
	}
	expanded := os.ExpandEnv(trimmed)
	if strings.HasPrefix(expanded, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			expanded = filepath.Join(home, strings.TrimPrefix(expanded, "~"))
		}
	}
	return expanded
}
