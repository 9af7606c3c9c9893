package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config controls the E2E runner behavior.
type Config struct {
	RunID           string
	SpecDir         string
	FixtureRegistry string
	FixtureCacheDir string
	ArtifactDir     string
	IncludeTags     []string
	ExcludeTags     []string
	Parallelism     int
	DefaultTimeout  time.Duration
	GraphNamespace  string
	KeepGraphs      bool

	StoreURL         string
	StoreHost        string
	StorePort        int
	Dataset          string
	StoreUser        string
	StorePassword    string
	GraphContentType string
	DockerIP         string
	ComposeFile      string
	ComposeProject   string
	ComposeUp        bool
	ComposeDown      bool

	HealthPath    string
	ReadyTimeout  time.Duration
	ReadyInterval time.Duration
	ReadySettle   time.Duration

	LogFormat       string
	LogLevel        string
	MetricsEnabled  bool
	MetricsPath     string
	ReportEnabled   bool
	UploadArtifacts bool

	ObjectStoreProvider           string
	ObjectStoreBucket             string
	ObjectStorePrefix             string
	ObjectStoreRegion             string
	ObjectStoreEndpoint           string
	ObjectStoreAccessKey          string
	ObjectStoreSecretKey          string
	ObjectStoreSessionToken       string
	ObjectStoreS3PathStyle        bool
	ObjectStoreGCPProject         string
	ObjectStoreGCPCredentialsFile string
	ObjectStoreGCPCredentialsJSON string
	ObjectStoreAzureAccount       string
	ObjectStoreAzureKey           string
	ObjectStoreAzureEndpoint      string
	ObjectStoreAzureSASToken      string

	OTelEnabled       bool
	OTelEndpoint      string
	OTelHeaders       string
	OTelInsecure      bool
	OTelServiceName   string
	OTelResourceAttrs string

	// DotEnvPath is the .env file that was loaded, if any.
	DotEnvPath string
}

// Load reads .env, environment variables, an optional YAML config file and
// command-line flags into Config, in increasing order of precedence.
func Load() (*Config, error) {
	return LoadFrom(flag.CommandLine, os.Args[1:])
}

// LoadFrom is Load with an explicit flag set and arguments.
func LoadFrom(fs *flag.FlagSet, args []string) (*Config, error) {
	dotenv, err := LoadDotEnv()
	if err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cwd, _ := os.Getwd()
	defaultRunID := time.Now().UTC().Format("20060102T150405Z")
	defaultArtifacts := filepath.Join(cwd, "e2e", "artifacts", defaultRunID)
	defaultMetrics := filepath.Join(defaultArtifacts, "metrics.prom")

	cfg := &Config{DotEnvPath: dotenv}
	var configPath string
	fs.StringVar(&configPath, "config", envOrDefault("E2E_CONFIG", ""), "path to YAML config file")
	fs.StringVar(&cfg.RunID, "run-id", envOrDefault("E2E_RUN_ID", defaultRunID), "unique run identifier")
	fs.StringVar(&cfg.SpecDir, "spec-dir", envOrDefault("E2E_SPEC_DIR", filepath.Join(cwd, "e2e", "specs")), "directory containing test specs")
	fs.StringVar(&cfg.FixtureRegistry, "fixture-registry", envOrDefault("E2E_FIXTURE_REGISTRY", filepath.Join(cwd, "e2e", "fixtures", "registry.yaml")), "path to fixture registry YAML")
	fs.StringVar(&cfg.FixtureCacheDir, "fixture-cache", envOrDefault("E2E_FIXTURE_CACHE", filepath.Join(os.TempDir(), "fuseki-e2e-fixtures")), "cache directory for remote fixtures")
	fs.StringVar(&cfg.ArtifactDir, "artifact-dir", envOrDefault("E2E_ARTIFACT_DIR", defaultArtifacts), "directory for artifacts")
	fs.IntVar(&cfg.Parallelism, "parallel", envOrDefaultInt("E2E_PARALLEL", 1), "max parallel tests")
	fs.DurationVar(&cfg.DefaultTimeout, "default-timeout", envOrDefaultDuration("E2E_DEFAULT_TIMEOUT", 5*time.Minute), "default test timeout")
	fs.StringVar(&cfg.GraphNamespace, "graph-namespace", envOrDefault("E2E_GRAPH_NAMESPACE", "http://example.com/e2e/"), "base IRI for per-test named graphs")
	fs.BoolVar(&cfg.KeepGraphs, "keep-graphs", envOrDefaultBool("E2E_KEEP_GRAPHS", false), "do not drop per-test named graphs after a test")

	fs.StringVar(&cfg.StoreURL, "store-url", envOrDefault("E2E_STORE_URL", ""), "store base URL; overrides host/port resolution")
	fs.StringVar(&cfg.StoreHost, "store-host", envOrDefault("HOST", "fdk-fuseki-service"), "store compose service name")
	fs.IntVar(&cfg.StorePort, "store-port", envOrDefaultInt("PORT", 3030), "store container port")
	fs.StringVar(&cfg.Dataset, "dataset", envOrDefault("DATASET_1", "ds"), "dataset name")
	fs.StringVar(&cfg.StoreUser, "store-user", envOrDefault("E2E_STORE_USER", "admin"), "user for update requests")
	fs.StringVar(&cfg.StorePassword, "store-password", envOrDefault("PASSWORD", ""), "password for update requests")
	fs.StringVar(&cfg.GraphContentType, "graph-content-type", envOrDefault("E2E_GRAPH_CONTENT_TYPE", "text/turtle; charset=utf-8"), "content type required on graph results")
	fs.StringVar(&cfg.DockerIP, "docker-ip", envOrDefault("E2E_DOCKER_IP", "127.0.0.1"), "address of published container ports")
	fs.StringVar(&cfg.ComposeFile, "compose-file", envOrDefault("E2E_COMPOSE_FILE", filepath.Join(cwd, "docker-compose.yml")), "docker compose file")
	fs.StringVar(&cfg.ComposeProject, "compose-project", envOrDefault("E2E_COMPOSE_PROJECT", ""), "docker compose project name")
	fs.BoolVar(&cfg.ComposeUp, "compose-up", envOrDefaultBool("E2E_COMPOSE_UP", false), "run docker compose up before the session")
	fs.BoolVar(&cfg.ComposeDown, "compose-down", envOrDefaultBool("E2E_COMPOSE_DOWN", false), "run docker compose down after the session")

	fs.StringVar(&cfg.HealthPath, "health-path", envOrDefault("E2E_HEALTH_PATH", "/$/ping"), "store health endpoint path")
	fs.DurationVar(&cfg.ReadyTimeout, "ready-timeout", envOrDefaultDuration("E2E_READY_TIMEOUT", 30*time.Second), "readiness timeout")
	fs.DurationVar(&cfg.ReadyInterval, "ready-interval", envOrDefaultDuration("E2E_READY_INTERVAL", 100*time.Millisecond), "readiness poll interval")
	fs.DurationVar(&cfg.ReadySettle, "ready-settle", envOrDefaultDuration("E2E_READY_SETTLE", 3*time.Second), "delay after the store first answers")

	fs.StringVar(&cfg.LogFormat, "log-format", envOrDefault("E2E_LOG_FORMAT", "json"), "log format: json|console")
	fs.StringVar(&cfg.LogLevel, "log-level", envOrDefault("E2E_LOG_LEVEL", "info"), "log level: debug|info|warn|error")
	fs.BoolVar(&cfg.MetricsEnabled, "metrics", envOrDefaultBool("E2E_METRICS", true), "enable metrics output")
	fs.StringVar(&cfg.MetricsPath, "metrics-path", envOrDefault("E2E_METRICS_PATH", defaultMetrics), "metrics output path")
	fs.BoolVar(&cfg.ReportEnabled, "report", envOrDefaultBool("E2E_REPORT", true), "write an EARL report")
	fs.BoolVar(&cfg.UploadArtifacts, "upload-artifacts", envOrDefaultBool("E2E_UPLOAD_ARTIFACTS", false), "upload artifacts to the object store")

	fs.StringVar(&cfg.ObjectStoreProvider, "objectstore-provider", envOrDefault("E2E_OBJECTSTORE_PROVIDER", ""), "object store provider: s3|gcs|azure|minio")
	fs.StringVar(&cfg.ObjectStoreBucket, "objectstore-bucket", envOrDefault("E2E_OBJECTSTORE_BUCKET", ""), "object store bucket/container")
	fs.StringVar(&cfg.ObjectStorePrefix, "objectstore-prefix", envOrDefault("E2E_OBJECTSTORE_PREFIX", ""), "object store prefix")
	fs.StringVar(&cfg.ObjectStoreRegion, "objectstore-region", envOrDefault("E2E_OBJECTSTORE_REGION", ""), "object store region")
	fs.StringVar(&cfg.ObjectStoreEndpoint, "objectstore-endpoint", envOrDefault("E2E_OBJECTSTORE_ENDPOINT", ""), "object store endpoint override")
	fs.StringVar(&cfg.ObjectStoreAccessKey, "objectstore-access-key", envOrDefault("E2E_OBJECTSTORE_ACCESS_KEY", ""), "object store access key")
	fs.StringVar(&cfg.ObjectStoreSecretKey, "objectstore-secret-key", envOrDefault("E2E_OBJECTSTORE_SECRET_KEY", ""), "object store secret key")
	fs.StringVar(&cfg.ObjectStoreSessionToken, "objectstore-session-token", envOrDefault("E2E_OBJECTSTORE_SESSION_TOKEN", ""), "object store session token")
	fs.BoolVar(&cfg.ObjectStoreS3PathStyle, "objectstore-s3-path-style", envOrDefaultBool("E2E_OBJECTSTORE_S3_PATH_STYLE", false), "use S3 path-style addressing")
	fs.StringVar(&cfg.ObjectStoreGCPProject, "objectstore-gcp-project", envOrDefault("E2E_OBJECTSTORE_GCP_PROJECT", ""), "GCP project ID")
	fs.StringVar(&cfg.ObjectStoreGCPCredentialsFile, "objectstore-gcp-credentials-file", envOrDefault("E2E_OBJECTSTORE_GCP_CREDENTIALS_FILE", ""), "GCP credentials file path")
	fs.StringVar(&cfg.ObjectStoreGCPCredentialsJSON, "objectstore-gcp-credentials-json", envOrDefault("E2E_OBJECTSTORE_GCP_CREDENTIALS_JSON", ""), "GCP credentials JSON")
	fs.StringVar(&cfg.ObjectStoreAzureAccount, "objectstore-azure-account", envOrDefault("E2E_OBJECTSTORE_AZURE_ACCOUNT", ""), "Azure storage account name")
	fs.StringVar(&cfg.ObjectStoreAzureKey, "objectstore-azure-key", envOrDefault("E2E_OBJECTSTORE_AZURE_KEY", ""), "Azure storage account key")
	fs.StringVar(&cfg.ObjectStoreAzureEndpoint, "objectstore-azure-endpoint", envOrDefault("E2E_OBJECTSTORE_AZURE_ENDPOINT", ""), "Azure blob endpoint override")
	fs.StringVar(&cfg.ObjectStoreAzureSASToken, "objectstore-azure-sas-token", envOrDefault("E2E_OBJECTSTORE_AZURE_SAS_TOKEN", ""), "Azure SAS token")

	fs.BoolVar(&cfg.OTelEnabled, "otel", envOrDefaultBool("E2E_OTEL_ENABLED", false), "enable OpenTelemetry tracing")
	fs.StringVar(&cfg.OTelEndpoint, "otel-endpoint", envOrDefault("E2E_OTEL_ENDPOINT", ""), "OTLP endpoint (host:port)")
	fs.StringVar(&cfg.OTelHeaders, "otel-headers", envOrDefault("E2E_OTEL_HEADERS", ""), "OTLP headers as comma-separated key=value pairs")
	fs.BoolVar(&cfg.OTelInsecure, "otel-insecure", envOrDefaultBool("E2E_OTEL_INSECURE", true), "disable TLS for OTLP endpoint")
	fs.StringVar(&cfg.OTelServiceName, "otel-service-name", envOrDefault("E2E_OTEL_SERVICE_NAME", "fdk-fuseki-e2e"), "OTel service name")
	fs.StringVar(&cfg.OTelResourceAttrs, "otel-resource-attrs", envOrDefault("E2E_OTEL_RESOURCE_ATTRS", ""), "extra OTel resource attributes key=value pairs")

	includeTags := fs.String("include-tags", envOrDefault("E2E_INCLUDE_TAGS", ""), "comma-separated tag allowlist")
	excludeTags := fs.String("exclude-tags", envOrDefault("E2E_EXCLUDE_TAGS", ""), "comma-separated tag denylist")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.IncludeTags = splitCSV(*includeTags)
	cfg.ExcludeTags = splitCSV(*excludeTags)

	if configPath != "" {
		fileCfg, err := loadFileConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configPath, err)
		}
		explicit := map[string]bool{}
		fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
		if err := applyFileConfig(cfg, fileCfg, explicit); err != nil {
			return nil, err
		}
	}

	if cfg.MetricsPath == defaultMetrics {
		cfg.MetricsPath = filepath.Join(cfg.ArtifactDir, "metrics.prom")
	}
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	if !strings.HasSuffix(cfg.GraphNamespace, "/") && !strings.HasSuffix(cfg.GraphNamespace, "#") {
		cfg.GraphNamespace += "/"
	}
	return cfg, nil
}

// Validate reports settings that would make a run meaningless.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.StorePassword) == "" {
		problems = append(problems, "PASSWORD is required for update requests")
	}
	if strings.TrimSpace(c.Dataset) == "" {
		problems = append(problems, "DATASET_1 must not be empty")
	}
	if c.StoreURL == "" && (c.StorePort <= 0 || c.StorePort > 65535) {
		problems = append(problems, fmt.Sprintf("PORT %d is out of range", c.StorePort))
	}
	if c.ReadyTimeout <= 0 {
		problems = append(problems, "ready timeout must be positive")
	}
	if c.ReadyInterval <= 0 || c.ReadyInterval > c.ReadyTimeout {
		problems = append(problems, fmt.Sprintf("ready interval %s must be positive and not exceed the timeout %s", c.ReadyInterval, c.ReadyTimeout))
	}
	if c.ReadySettle < 0 {
		problems = append(problems, "ready settle must not be negative")
	}
	if c.UploadArtifacts && c.ObjectStoreProvider == "" {
		problems = append(problems, "artifact upload requires an object store provider")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// LoadDotEnv loads the nearest .env file found walking up from the working
// directory. Variables already set in the environment win. It returns the
// loaded path, or "" when there is none.
func LoadDotEnv() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	path := FindDotEnv(dir)
	if path == "" {
		return "", nil
	}
	return path, godotenv.Load(path)
}

// FindDotEnv returns the first .env in dir or one of its parents.
func FindDotEnv(dir string) string {
	for {
		envFile := filepath.Join(dir, ".env")
		if info, err := os.Stat(envFile); err == nil && !info.IsDir() {
			return envFile
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func envOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	switch strings.ToLower(value) {
	case "1", "true", "yes", "y":
		return true
	case "0", "false", "no", "n":
		return false
	default:
		return fallback
	}
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return duration
}

func splitCSV(value string) []string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	parts := strings.Split(trimmed, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
