package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ID is an opaque orchestrator identifier. Orlo hands out UUID strings,
// but older servers and test doubles use plain numbers, so both decode.
type ID string

// UnmarshalJSON accepts a JSON string or number.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode id: %w", err)
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// String returns the identifier as it appears in request paths.
func (id ID) String() string {
	return string(id)
}

// Empty reports whether the orchestrator assigned no identifier.
func (id ID) Empty() bool {
	return id == ""
}

// Package is a deployable registered (or to be registered) against a release.
type Package struct {
	// ID is assigned by the orchestrator on registration.
	ID ID `json:"id,omitempty"`
	// Name is the package name.
	Name string `json:"name"`
	// Version is the package version to install.
	Version string `json:"version"`
	// Status is the orchestrator's view of the package, if reported.
	Status string `json:"status,omitempty"`
}

// Deployable returns the name/version pair of the package.
func (p Package) Deployable() Deployable {
	return Deployable{Name: p.Name, Version: p.Version}
}

// Release groups the package installs of one deployment event.
type Release struct {
	// ID is the orchestrator's release identifier.
	ID ID `json:"id"`
	// Packages lists the packages attached to the release.
	Packages []Package `json:"packages,omitempty"`
	// User is the user performing the release.
	User string `json:"user,omitempty"`
	// Team is the team responsible for the release.
	Team string `json:"team,omitempty"`
	// Platforms lists the platforms receiving the release.
	Platforms []string `json:"platforms,omitempty"`
	// References lists external references, e.g. ticket ids.
	References []string `json:"references,omitempty"`
}

// Deployables returns the release's packages as name/version pairs, in order.
func (r *Release) Deployables() []Deployable {
	out := make([]Deployable, 0, len(r.Packages))
	for _, p := range r.Packages {
		out = append(out, p.Deployable())
	}
	return out
}
