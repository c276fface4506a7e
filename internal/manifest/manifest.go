// Package manifest reads the packages to deploy from command-line tokens
// and YAML manifest files.
package manifest

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/orlo-deployer/pkg/models"
)

// Manifest describes a deployment read from a YAML file:
//
//	note: weekly web tier update
//	metadata:
//	  change: CHG-1234
//	packages:
//	  - name: nginx
//	    version: "1.2"
type Manifest struct {
	Note     string              `yaml:"note"`
	Metadata map[string]string   `yaml:"metadata"`
	Packages []models.Deployable `yaml:"packages"`
}

// ParseArgs parses name=version tokens, preserving order.
func ParseArgs(args []string) ([]models.Deployable, error) {
	out := make([]models.Deployable, 0, len(args))
	for _, arg := range args {
		d, err := models.ParseDeployable(arg)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Load reads a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(data)
}

// Parse decodes manifest YAML and validates its packages.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	for i, p := range m.Packages {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("manifest package %d: %w", i+1, err)
		}
	}
	return &m, nil
}

// Resolve combines command-line tokens with an optional manifest file.
// Manifest packages follow the command-line ones.
func Resolve(args []string, manifestPath string) ([]models.Deployable, *Manifest, error) {
	deployables, err := ParseArgs(args)
	if err != nil {
		return nil, nil, err
	}
	if manifestPath == "" {
		return deployables, &Manifest{}, nil
	}
	m, err := Load(manifestPath)
	if err != nil {
		return nil, nil, err
	}
	return append(deployables, m.Packages...), m, nil
}
