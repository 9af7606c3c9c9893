// Package compose reads the container orchestration file that starts the
// store and resolves where its ports are published on the host.
package compose

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// File is the subset of a docker compose file the harness needs.
type File struct {
	Name     string             `yaml:"name,omitempty"`
	Services map[string]Service `yaml:"services"`
}

// Service is a compose service.
type Service struct {
	Image string `yaml:"image,omitempty"`
	Ports []Port `yaml:"ports,omitempty"`
}

// Port is a published port. Published is 0 when the host port is assigned
// by the container engine.
type Port struct {
	HostIP    string
	Published int
	Target    int
	Protocol  string
}

type longPort struct {
	Target    interface{} `yaml:"target"`
	Published interface{} `yaml:"published"`
	HostIP    string      `yaml:"host_ip"`
	Protocol  string      `yaml:"protocol"`
}

// UnmarshalYAML accepts both the short "[ip:]host:container[/proto]" form
// and the long mapping form.
func (p *Port) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		parsed, err := ParsePort(value.Value)
		if err != nil {
			return err
		}
		*p = parsed
		return nil
	case yaml.MappingNode:
		var long longPort
		if err := value.Decode(&long); err != nil {
			return err
		}
		target, err := portNumber(fmt.Sprint(long.Target))
		if err != nil {
			return errors.Wrap(err, "target")
		}
		p.Target = target
		p.HostIP = long.HostIP
		p.Protocol = defaultString(long.Protocol, "tcp")
		if long.Published != nil {
			published, err := portNumber(fmt.Sprint(long.Published))
			if err != nil {
				return errors.Wrap(err, "published")
			}
			p.Published = published
		}
		return nil
	default:
		return fmt.Errorf("unsupported port syntax at line %d", value.Line)
	}
}

// ParsePort parses the short port syntax after variable expansion.
func ParsePort(raw string) (Port, error) {
	spec := strings.Trim(strings.TrimSpace(expand(raw)), `"'`)
	port := Port{Protocol: "tcp"}
	if i := strings.LastIndex(spec, "/"); i >= 0 {
		port.Protocol = spec[i+1:]
		spec = spec[:i]
	}
	parts := strings.Split(spec, ":")
	var err error
	switch len(parts) {
	case 1:
		port.Target, err = portNumber(parts[0])
	case 2:
		if port.Published, err = portNumber(parts[0]); err == nil {
			port.Target, err = portNumber(parts[1])
		}
	case 3:
		port.HostIP = parts[0]
		if parts[1] != "" {
			port.Published, err = portNumber(parts[1])
		}
		if err == nil {
			port.Target, err = portNumber(parts[2])
		}
	default:
		err = fmt.Errorf("too many fields")
	}
	if err != nil {
		return Port{}, errors.Wrapf(err, "invalid port %q", raw)
	}
	return port, nil
}

// Load parses a compose file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read compose file")
	}
	return Parse(data)
}

// Parse decodes compose file content.
func Parse(data []byte) (*File, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "parse compose file")
	}
	return &file, nil
}

// PublishedPort returns the host port mapped to the container port of a
// service. ok is false when the service does not publish that port or the
// engine assigns the host port.
func (f *File) PublishedPort(service string, target int) (int, bool, error) {
	svc, found := f.Services[service]
	if !found {
		return 0, false, fmt.Errorf("service %q not found in compose file", service)
	}
	for _, port := range svc.Ports {
		if port.Target != target {
			continue
		}
		if port.Published == 0 {
			return 0, false, nil
		}
		return port.Published, true, nil
	}
	return 0, false, fmt.Errorf("service %q does not publish port %d", service, target)
}

func portNumber(value string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, err
	}
	if n <= 0 || n > 65535 {
		return 0, fmt.Errorf("port %d out of range", n)
	}
	return n, nil
}

// expand substitutes ${VAR}, ${VAR:-default} and $VAR from the environment.
func expand(value string) string {
	return os.Expand(value, func(key string) string {
		name, fallback, hasDefault := strings.Cut(key, ":-")
		if v, ok := os.LookupEnv(name); ok && (v != "" || !hasDefault) {
			return v
		}
		return fallback
	})
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
