package compose

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/config"
)

const composeFile = `
services:
  fdk-fuseki-service:
    image: eu.gcr.io/digdir-fdk-infra/fdk-fuseki-service:test
    ports:
      - "${PORT:-3030}:3030"
  ephemeral:
    image: store
    ports:
      - "3030"
  long:
    image: store
    ports:
      - target: 3030
        published: "8080"
        host_ip: 127.0.0.1
`

func writeCompose(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docker-compose.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestParsePort(t *testing.T) {
	cases := []struct {
		raw  string
		want Port
	}{
		{"3030:3030", Port{Published: 3030, Target: 3030, Protocol: "tcp"}},
		{"127.0.0.1:8080:3030/udp", Port{HostIP: "127.0.0.1", Published: 8080, Target: 3030, Protocol: "udp"}},
		{"127.0.0.1::3030", Port{HostIP: "127.0.0.1", Target: 3030, Protocol: "tcp"}},
		{"3030", Port{Target: 3030, Protocol: "tcp"}},
	}
	for _, tc := range cases {
		got, err := ParsePort(tc.raw)
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}

	_, err := ParsePort("a:b")
	assert.Error(t, err)
	_, err = ParsePort("1:2:3:4")
	assert.Error(t, err)
	_, err = ParsePort("70000:3030")
	assert.ErrorContains(t, err, "out of range")
}

func TestPublishedPort(t *testing.T) {
	t.Setenv("PORT", "3131")
	file, err := Load(writeCompose(t, composeFile))
	require.NoError(t, err)

	port, ok, err := file.PublishedPort("fdk-fuseki-service", 3030)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3131, port)

	port, ok, err = file.PublishedPort("long", 3030)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 8080, port)

	_, ok, err = file.PublishedPort("ephemeral", 3030)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = file.PublishedPort("missing", 3030)
	assert.ErrorContains(t, err, `service "missing" not found`)
	_, _, err = file.PublishedPort("long", 9999)
	assert.ErrorContains(t, err, "does not publish port 9999")
}

func TestPublishedPortDefault(t *testing.T) {
	t.Setenv("PORT", "")
	file, err := Parse([]byte(composeFile))
	require.NoError(t, err)
	port, ok, err := file.PublishedPort("fdk-fuseki-service", 3030)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3030, port)
}

type fakeDocker struct {
	calls  [][]string
	output string
	err    error
}

func (f *fakeDocker) run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	return []byte(f.output), f.err
}

func TestProjectCommands(t *testing.T) {
	docker := &fakeDocker{output: "0.0.0.0:49153\n[::]:49153\n"}
	project := NewProject("docker-compose.yml", "e2e", nil)
	project.Run = docker.run

	require.NoError(t, project.Up(context.Background()))
	require.NoError(t, project.Down(context.Background()))
	port, err := project.Port(context.Background(), "ephemeral", 3030)
	require.NoError(t, err)
	assert.Equal(t, 49153, port)

	assert.Equal(t, [][]string{
		{"docker", "compose", "-f", "docker-compose.yml", "-p", "e2e", "up", "-d"},
		{"docker", "compose", "-f", "docker-compose.yml", "-p", "e2e", "down", "-v"},
		{"docker", "compose", "-f", "docker-compose.yml", "-p", "e2e", "port", "ephemeral", "3030"},
	}, docker.calls)

	docker.err = errors.New("exit status 1")
	docker.output = "no such service"
	err = project.Up(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "no such service"))
}

func TestBaseURL(t *testing.T) {
	t.Setenv("PORT", "")
	path := writeCompose(t, composeFile)
	ctx := context.Background()

	url, err := BaseURL(ctx, &config.Config{StoreURL: "http://store:3030/"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://store:3030", url)

	cfg := &config.Config{ComposeFile: path, StoreHost: "fdk-fuseki-service", StorePort: 3030, DockerIP: "10.0.0.5"}
	url, err = BaseURL(ctx, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:3030", url)

	cfg.StoreHost = "ephemeral"
	_, err = BaseURL(ctx, cfg, nil)
	assert.ErrorContains(t, err, "no fixed host port")

	project := NewProject(path, "", nil)
	project.Run = (&fakeDocker{output: "0.0.0.0:49200"}).run
	url, err = BaseURL(ctx, cfg, project)
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:49200", url)

	cfg.ComposeFile = filepath.Join(t.TempDir(), "absent.yml")
	url, err = BaseURL(ctx, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:3030", url)
}
