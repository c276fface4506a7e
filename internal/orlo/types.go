package orlo

import (
	"context"
	"time"

	"github.com/ShayCichocki/orlo-deployer/pkg/models"
)

// Client is the set of orchestrator calls the deployer makes.
type Client interface {
	// GetRelease fetches an existing release and its packages.
	GetRelease(ctx context.Context, id models.ID) (*models.Release, error)
	// CreateRelease starts a new release. A nil release with a nil error
	// means the orchestrator answered without a body.
	CreateRelease(ctx context.Context, req CreateReleaseRequest) (*models.Release, error)
	// AddPackage registers a package under a release and returns its id.
	AddPackage(ctx context.Context, releaseID models.ID, req AddPackageRequest) (models.ID, error)
	// StartPackage marks a package install as starting.
	StartPackage(ctx context.Context, releaseID, packageID models.ID) error
	// StopPackage marks a package install as finished.
	StopPackage(ctx context.Context, releaseID, packageID models.ID, success bool) error
	// PackageResults stores free-form install output against a package.
	PackageResults(ctx context.Context, releaseID, packageID models.ID, content string) error
	// StopRelease marks the whole release as finished.
	StopRelease(ctx context.Context, releaseID models.ID) error
}

// CreateReleaseRequest is the body of POST /releases.
type CreateReleaseRequest struct {
	User       string            `json:"user"`
	Team       string            `json:"team"`
	Platforms  []string          `json:"platforms"`
	References []string          `json:"references"`
	Note       string            `json:"note,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// AddPackageRequest is the body of POST /releases/{rid}/packages.
type AddPackageRequest struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	Rollback bool   `json:"rollback"`
}

type stopPackageRequest struct {
	Success bool `json:"success"`
}

type resultsRequest struct {
	Content string `json:"content"`
}

type releasesResponse struct {
	Releases []models.Release `json:"releases"`
}

type idResponse struct {
	ID models.ID `json:"id"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Call describes one completed orchestrator request.
type Call struct {
	Method string
	// Path is the request path relative to the base URL.
	Path string
	// URL is the full request URL.
	URL        string
	StatusCode int
	Duration   time.Duration
	// Err is set when the call failed at the transport or protocol level.
	Err error
}

// Observer is notified after every orchestrator request.
type Observer func(Call)
