package compose

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/config"
)

// CommandRunner runs an external command and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Project drives `docker compose` for one compose file.
type Project struct {
	File   string
	Name   string
	Logger *zap.Logger
	Run    CommandRunner
}

// NewProject returns a project for the compose file and optional project name.
func NewProject(file, name string, logger *zap.Logger) *Project {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Project{File: file, Name: name, Logger: logger, Run: execRunner}
}

func (p *Project) args(extra ...string) []string {
	args := []string{"compose", "-f", p.File}
	if p.Name != "" {
		args = append(args, "-p", p.Name)
	}
	return append(args, extra...)
}

func (p *Project) docker(ctx context.Context, extra ...string) (string, error) {
	args := p.args(extra...)
	p.Logger.Debug("running docker", zap.Strings("args", args))
	out, err := p.Run(ctx, "docker", args...)
	if err != nil {
		return string(out), errors.Wrapf(err, "docker %s: %s", strings.Join(extra, " "), strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// Up starts the services in the background.
func (p *Project) Up(ctx context.Context) error {
	p.Logger.Info("starting compose project", zap.String("file", p.File), zap.String("project", p.Name))
	_, err := p.docker(ctx, "up", "-d")
	return err
}

// Down stops the services and removes their volumes.
func (p *Project) Down(ctx context.Context) error {
	p.Logger.Info("stopping compose project", zap.String("file", p.File), zap.String("project", p.Name))
	_, err := p.docker(ctx, "down", "-v")
	return err
}

// Port asks the engine which host port a service's container port is
// published on.
func (p *Project) Port(ctx context.Context, service string, target int) (int, error) {
	out, err := p.docker(ctx, "port", service, strconv.Itoa(target))
	if err != nil {
		return 0, err
	}
	line := strings.TrimSpace(strings.SplitN(strings.TrimSpace(out), "\n", 2)[0])
	_, port, err := net.SplitHostPort(line)
	if err != nil {
		return 0, errors.Wrapf(err, "unexpected port output %q", line)
	}
	return portNumber(port)
}

// BaseURL resolves the store base URL. An explicit StoreURL wins. Otherwise
// the published port of the store service is read from the compose file,
// falling back to the engine when the host port is not fixed, and to the
// container port when there is no compose file.
func BaseURL(ctx context.Context, cfg *config.Config, project *Project) (string, error) {
	if url := strings.TrimSpace(cfg.StoreURL); url != "" {
		return strings.TrimRight(url, "/"), nil
	}
	host := cfg.DockerIP
	if host == "" {
		host = "127.0.0.1"
	}
	file, err := Load(cfg.ComposeFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return hostURL(host, cfg.StorePort), nil
		}
		return "", err
	}
	port, ok, err := file.PublishedPort(cfg.StoreHost, cfg.StorePort)
	if err != nil {
		return "", err
	}
	if !ok {
		if project == nil {
			return "", fmt.Errorf("service %q has no fixed host port for %d", cfg.StoreHost, cfg.StorePort)
		}
		if port, err = project.Port(ctx, cfg.StoreHost, cfg.StorePort); err != nil {
			return "", err
		}
	}
	return hostURL(host, port), nil
}

func hostURL(host string, port int) string {
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port))
}
