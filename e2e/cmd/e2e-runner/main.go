package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/compose"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/config"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/fixtures"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/logging"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/objectstore"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/runner"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/sparql"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/spec"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/steps"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/telemetry"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 2
	}
	logger, err := logging.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		return 2
	}
	defer logger.Sync()
	if cfg.DotEnvPath != "" {
		logger.Info("loaded .env", zap.String("path", cfg.DotEnvPath))
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return 2
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryClient, shutdownTelemetry, err := telemetry.Init(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize telemetry", zap.Error(err))
		return 2
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logger.Warn("failed to shutdown telemetry", zap.Error(err))
		}
	}()

	project := compose.NewProject(cfg.ComposeFile, cfg.ComposeProject, logger)
	if cfg.ComposeUp {
		if err := project.Up(ctx); err != nil {
			logger.Error("failed to start store", zap.Error(err))
			return 1
		}
	}
	if cfg.ComposeDown {
		defer func() {
			if err := project.Down(context.Background()); err != nil {
				logger.Warn("failed to stop store", zap.Error(err))
			}
		}()
	}

	baseURL, err := compose.BaseURL(ctx, cfg, project)
	if err != nil {
		logger.Error("failed to resolve store url", zap.Error(err))
		return 1
	}
	endpoint := sparql.NewEndpoint(baseURL, cfg.Dataset).WithCredentials(cfg.StoreUser, cfg.StorePassword)
	client := sparql.NewClient(endpoint,
		sparql.WithLogger(logging.Logr(logger)),
		sparql.WithExpectedContentType(cfg.GraphContentType),
	)
	logger.Info("store resolved", zap.String("endpoint", endpoint.String()))

	registry, err := fixtures.LoadRegistry(cfg.FixtureRegistry)
	if err != nil {
		logger.Error("failed to load fixture registry", zap.Error(err))
		return 2
	}
	loader, err := fixtures.NewLoader(registry, cfg.FixtureCacheDir, fixtures.DefaultCacheSize,
		fixtures.WithObjectStore(objectstore.FromRunConfig(cfg)))
	if err != nil {
		logger.Error("failed to create fixture loader", zap.Error(err))
		return 2
	}

	stepRegistry := steps.DefaultRegistry()
	specLoader := spec.NewLoader(
		spec.WithActions(stepRegistry.Has),
		spec.WithFixtures(func(name string) bool {
			_, ok := registry.Get(name)
			return ok
		}),
	)
	specs, err := specLoader.Load(cfg.SpecDir)
	if err != nil {
		logger.Error("failed to load specs", zap.Error(err))
		return 2
	}

	var opts []runner.Option
	if cfg.UploadArtifacts {
		store, err := objectstore.Open(ctx, objectstore.FromRunConfig(cfg))
		if err != nil {
			logger.Error("failed to open artifact store", zap.Error(err))
			return 2
		}
		defer store.Close()
		opts = append(opts, runner.WithUploader(store))
	}

	r, err := runner.NewRunner(cfg, logger, stepRegistry, loader, client, telemetryClient, opts...)
	if err != nil {
		logger.Error("failed to initialize runner", zap.Error(err))
		return 2
	}

	start := time.Now().UTC()
	result, runErr := r.RunAll(ctx, specs)
	if result != nil {
		if err := r.FlushArtifacts(ctx, result); err != nil {
			logger.Error("failed to write artifacts", zap.Error(err))
		}
	}
	if runErr != nil {
		logger.Error("run failed", zap.Error(runErr))
		return 1
	}

	summary := result.Summarize()
	logger.Info("run complete", zap.Any("summary", summary), zap.Duration("duration", time.Since(start)))
	fmt.Printf("tests: %d passed=%d failed=%d skipped=%d pending=%d\n",
		summary.Total, summary.Passed, summary.Failed, summary.Skipped, summary.Pending)
	if result.Failed() {
		return 1
	}
	return 0
}
