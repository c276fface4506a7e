// Package orlo is a client for the Orlo release-coordination API.
package orlo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ShayCichocki/orlo-deployer/internal/version"
	"github.com/ShayCichocki/orlo-deployer/pkg/models"
)

// DefaultTimeout bounds a single orchestrator request.
const DefaultTimeout = 30 * time.Second

// maxBodySize caps how much of a response body is read.
const maxBodySize = 4 << 20

// Config holds the settings for an HTTPClient.
type Config struct {
	// BaseURL is the orchestrator root, e.g. "http://orlo:8080".
	BaseURL string
	// Username and Password enable basic authentication when Username is set.
	Username string
	Password string
	// Token is sent as X-Auth-Token when set.
	Token string
	// Timeout bounds each request. Zero means DefaultTimeout.
	Timeout time.Duration
	// HTTPClient overrides the underlying transport, mainly for tests.
	HTTPClient *http.Client
	// Observers are called after every request, in order.
	Observers []Observer
}

// HTTPClient talks JSON over HTTP to an Orlo server.
type HTTPClient struct {
	baseURL    string
	username   string
	password   string
	token      string
	httpClient *http.Client
	observers  []Observer
	log        *zap.SugaredLogger
}

// NewClient creates an HTTPClient. The base URL must be absolute.
func NewClient(cfg Config, log *zap.SugaredLogger) (*HTTPClient, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse orchestrator url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("orchestrator url %q: scheme must be http or https", cfg.BaseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("orchestrator url %q: missing host", cfg.BaseURL)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{
			Timeout: timeout,
			// A redirect is a non-2xx answer, and following one would
			// replay a POST as a GET against another location.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &HTTPClient{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		token:      cfg.Token,
		httpClient: hc,
		observers:  cfg.Observers,
		log:        log.Named("orlo"),
	}, nil
}

// BaseURL returns the orchestrator root the client sends requests to.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// GetRelease fetches a release by id.
func (c *HTTPClient) GetRelease(ctx context.Context, id models.ID) (*models.Release, error) {
	path := "/releases/" + url.PathEscape(id.String())
	data, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("release %s: no release data: %w", id, ErrReleaseNotFound)
	}
	var resp releasesResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode GET %s response: %w", path, err)
	}
	if len(resp.Releases) == 0 {
		return nil, fmt.Errorf("release %s: %w", id, ErrReleaseNotFound)
	}
	release := resp.Releases[0]
	return &release, nil
}

// CreateRelease starts a new release.
func (c *HTTPClient) CreateRelease(ctx context.Context, req CreateReleaseRequest) (*models.Release, error) {
	var resp idResponse
	ok, err := c.do(ctx, http.MethodPost, "/releases", req, &resp)
	if err != nil {
		return nil, err
	}
	if !ok || resp.ID.Empty() {
		return nil, nil
	}
	return &models.Release{
		ID:         resp.ID,
		User:       req.User,
		Team:       req.Team,
		Platforms:  req.Platforms,
		References: req.References,
	}, nil
}

// AddPackage registers a package under a release.
func (c *HTTPClient) AddPackage(ctx context.Context, releaseID models.ID, req AddPackageRequest) (models.ID, error) {
	var resp idResponse
	ok, err := c.do(ctx, http.MethodPost, releasePath(releaseID, "packages"), req, &resp)
	if err != nil {
		return "", err
	}
	if !ok || resp.ID.Empty() {
		return "", fmt.Errorf("add package %s to release %s: %w", req.Name, releaseID, ErrNoPackageID)
	}
	return resp.ID, nil
}

// StartPackage marks a package install as starting.
func (c *HTTPClient) StartPackage(ctx context.Context, releaseID, packageID models.ID) error {
	_, err := c.do(ctx, http.MethodPost, packagePath(releaseID, packageID, "start"), nil, nil)
	return err
}

// StopPackage marks a package install as finished.
func (c *HTTPClient) StopPackage(ctx context.Context, releaseID, packageID models.ID, success bool) error {
	_, err := c.do(ctx, http.MethodPost, packagePath(releaseID, packageID, "stop"), stopPackageRequest{Success: success}, nil)
	return err
}

// PackageResults stores install output against a package.
func (c *HTTPClient) PackageResults(ctx context.Context, releaseID, packageID models.ID, content string) error {
	_, err := c.do(ctx, http.MethodPost, packagePath(releaseID, packageID, "results"), resultsRequest{Content: content}, nil)
	return err
}

// StopRelease marks a release as finished.
func (c *HTTPClient) StopRelease(ctx context.Context, releaseID models.ID) error {
	_, err := c.do(ctx, http.MethodPost, releasePath(releaseID, "stop"), nil, nil)
	return err
}

func releasePath(releaseID models.ID, suffix string) string {
	return "/releases/" + url.PathEscape(releaseID.String()) + "/" + suffix
}

func packagePath(releaseID, packageID models.ID, action string) string {
	return releasePath(releaseID, "packages/"+url.PathEscape(packageID.String())+"/"+action)
}

// do sends one request. It reports whether a response body was decoded
// into out; an empty or malformed body is "no data", not an error.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) (bool, error) {
	data, err := c.send(ctx, method, path, body)
	if err != nil {
		return false, err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.log.Warnw("ignoring malformed orchestrator response", "method", method, "path", path, "error", err)
		return false, nil
	}
	return true, nil
}

// send performs one request and returns the 2xx response body. Any other
// status is a *StatusError.
func (c *HTTPClient) send(ctx context.Context, method, path string, body any) ([]byte, error) {
	reqURL := c.baseURL + path
	call := Call{Method: method, Path: path, URL: reqURL}
	start := time.Now()
	defer func() {
		call.Duration = time.Since(start)
		for _, o := range c.observers {
			o(call)
		}
	}()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			call.Err = fmt.Errorf("encode %s %s body: %w", method, path, err)
			return nil, call.Err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		call.Err = fmt.Errorf("create request %s %s: %w", method, path, err)
		return nil, call.Err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	if c.token != "" {
		req.Header.Set("X-Auth-Token", c.token)
	}

	c.log.Debugw("orchestrator request", "method", method, "url", reqURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		call.Err = fmt.Errorf("%s %s: %w", method, path, err)
		return nil, call.Err
	}
	defer resp.Body.Close()
	call.StatusCode = resp.StatusCode

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		call.Err = fmt.Errorf("read %s %s response: %w", method, path, err)
		return nil, call.Err
	}

	c.log.Debugw("orchestrator response", "method", method, "path", path, "status", resp.StatusCode, "bytes", len(data))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		call.Err = &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(data),
		}
		return nil, call.Err
	}
	return data, nil
}

// errorMessage extracts Orlo's {"message": ...} error body, if present.
func errorMessage(data []byte) string {
	var er errorResponse
	if err := json.Unmarshal(data, &er); err != nil {
		return ""
	}
	return er.Message
}

// Verify HTTPClient implements Client at compile time.
var _ Client = (*HTTPClient)(nil)
