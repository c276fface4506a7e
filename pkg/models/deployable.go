package models

import (
	"fmt"
	"strings"
)

// Deployable is a package name and version to install.
type Deployable struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
}

// String renders the deployable in the name=version form used on the command line.
func (d Deployable) String() string {
	return d.Name + "=" + d.Version
}

// Validate checks that the deployable has a name.
func (d Deployable) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("package name is empty")
	}
	return nil
}

// ParseDeployable parses a name=version token. The version may be empty
// but the separator must be present.
func ParseDeployable(token string) (Deployable, error) {
	name, version, ok := strings.Cut(token, "=")
	if !ok {
		return Deployable{}, fmt.Errorf("invalid package %q: expected name=version", token)
	}
	d := Deployable{Name: strings.TrimSpace(name), Version: strings.TrimSpace(version)}
	if err := d.Validate(); err != nil {
		return Deployable{}, fmt.Errorf("invalid package %q: %w", token, err)
	}
	return d, nil
}
