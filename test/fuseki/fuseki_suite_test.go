//go:build integration

package fuseki

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"go.uber.org/zap"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/compose"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/config"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/fixtures"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/logging"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/readiness"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/sparql"
)

var (
	cfg     *config.Config
	logger  *zap.Logger
	project *compose.Project
	client  *sparql.Client
	builder *sparql.Builder
	loader  *fixtures.Loader
)

// TestFuseki is the main entry point
func TestFuseki(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Fuseki triplestore suite")
}

// repoRoot walks up from the working directory to the directory holding go.mod.
func repoRoot() string {
	dir, err := os.Getwd()
	Expect(err).NotTo(HaveOccurred())
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		Expect(parent).NotTo(Equal(dir), "go.mod not found above working directory")
		dir = parent
	}
}

var _ = BeforeSuite(func(ctx SpecContext) {
	var err error
	// LoadFrom reads the nearest .env through godotenv.
	cfg, err = config.LoadFrom(flag.NewFlagSet("fuseki", flag.ContinueOnError), nil)
	Expect(err).NotTo(HaveOccurred())
	Expect(cfg.Validate()).To(Succeed())

	root := repoRoot()
	if os.Getenv("E2E_COMPOSE_FILE") == "" {
		cfg.ComposeFile = filepath.Join(root, "docker-compose.yml")
	}
	if os.Getenv("E2E_FIXTURE_REGISTRY") == "" {
		cfg.FixtureRegistry = filepath.Join(root, "e2e", "fixtures", "registry.yaml")
	}

	logger, err = logging.NewLogger(cfg)
	Expect(err).NotTo(HaveOccurred())

	project = compose.NewProject(cfg.ComposeFile, cfg.ComposeProject, logger)
	if cfg.ComposeUp {
		Expect(project.Up(ctx)).To(Succeed())
	}

	baseURL, err := compose.BaseURL(ctx, cfg, project)
	Expect(err).NotTo(HaveOccurred())

	res, err := readiness.WaitUntilReady(ctx, baseURL, readiness.Options{
		HealthPath:   cfg.HealthPath,
		Timeout:      cfg.ReadyTimeout,
		PollInterval: cfg.ReadyInterval,
		Settle:       cfg.ReadySettle,
		Logger:       logging.Logr(logger),
	})
	Expect(err).NotTo(HaveOccurred())
	Expect(res.Err()).NotTo(HaveOccurred())

	endpoint := sparql.NewEndpoint(baseURL, cfg.Dataset).WithCredentials(cfg.StoreUser, cfg.StorePassword)
	client = sparql.NewClient(endpoint, sparql.WithLogger(logging.Logr(logger)), sparql.WithExpectedContentType(cfg.GraphContentType))
	builder = sparql.NewBuilder(sparql.DefaultPrefixes())

	registry, err := fixtures.LoadRegistry(cfg.FixtureRegistry)
	Expect(err).NotTo(HaveOccurred())
	loader, err = fixtures.NewLoader(registry, cfg.FixtureCacheDir, 0)
	Expect(err).NotTo(HaveOccurred())
}, NodeTimeout(5*time.Minute))

var _ = AfterSuite(func() {
	if cfg != nil && cfg.ComposeDown && project != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		Expect(project.Down(ctx)).To(Succeed())
	}
	if logger != nil {
		_ = logger.Sync()
	}
})
