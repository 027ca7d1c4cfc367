package gitlab

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/matzehuels/depmap/pkg/cache"
	"github.com/matzehuels/depmap/pkg/deps"
	"github.com/matzehuels/depmap/pkg/deps/apkbuild"
	deperrors "github.com/matzehuels/depmap/pkg/errors"
	"github.com/matzehuels/depmap/pkg/integrations"
)

// Defaults for the upstream aports project.
const (
	DefaultBaseURL = "https://gitlab.alpinelinux.org"
	DefaultProject = "alpine/aports"
	DefaultRef     = "master"
	DefaultTTL     = time.Hour
)

// Options configures a Client. Zero values select the defaults.
type Options struct {
	BaseURL string
	Project string
	Token   string // personal access token, for private mirrors
	TTL     time.Duration
}

// Client reads descriptors from a GitLab-hosted aports project.
//
// All methods are safe for concurrent use.
type Client struct {
	*integrations.Client
	baseURL string
	project string
}

// NewClient creates a client caching raw descriptors in backend.
func NewClient(backend cache.Cache, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Project == "" {
		opts.Project = DefaultProject
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	var headers map[string]string
	if opts.Token != "" {
		headers = map[string]string{"PRIVATE-TOKEN": opts.Token}
	}
	return &Client{
		Client:  integrations.NewClient(backend, "gitlab", opts.TTL, headers),
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		project: strings.Trim(opts.Project, "/"),
	}
}

// RawURL returns the raw file URL of repo/name/APKBUILD at ref.
func (c *Client) RawURL(repo, name, ref string) string {
	if ref == "" {
		ref = DefaultRef
	}
	return c.baseURL + "/" + c.project + "/-/raw/" + url.PathEscape(ref) + "/" +
		url.PathEscape(repo) + "/" + url.PathEscape(name) + "/" + apkbuild.Filename
}

// FetchAPKBUILD downloads the descriptor text. refresh bypasses the cache.
func (c *Client) FetchAPKBUILD(ctx context.Context, repo, name, ref string, refresh bool) (string, error) {
	if err := deperrors.ValidatePackageName(name); err != nil {
		return "", err
	}
	if err := deperrors.ValidateRepository(repo); err != nil {
		return "", err
	}
	u := c.RawURL(repo, name, ref)
	data, err := c.Cached(ctx, u, refresh, func() ([]byte, error) {
		return c.Get(ctx, u)
	})
	switch {
	case errors.Is(err, integrations.ErrNotFound):
		return "", deperrors.New(deperrors.ErrCodePackageNotFound, "%s/%s not found at %s", repo, name, c.baseURL)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "", deperrors.Canceled(err)
	case err != nil:
		return "", deperrors.Wrap(deperrors.ErrCodeInternal, err, "fetch %s", u)
	}
	return string(data), nil
}

// FetchPackages downloads and parses repo/name. The returned packages carry
// repo as their repository and "repo/name/APKBUILD" as their path.
func (c *Client) FetchPackages(ctx context.Context, repo, name, ref string, refresh bool) ([]deps.Package, error) {
	text, err := c.FetchAPKBUILD(ctx, repo, name, ref, refresh)
	if err != nil {
		return nil, err
	}
	return apkbuild.Parse(text, apkbuild.Context{
		Path:       repo + "/" + name + "/" + apkbuild.Filename,
		Repository: repo,
	})
}

// SplitRef splits "repo/name" into its parts.
func SplitRef(ref string) (repo, name string, err error) {
	repo, name, ok := strings.Cut(strings.Trim(ref, "/"), "/")
	if !ok || repo == "" || name == "" || strings.Contains(name, "/") {
		return "", "", deperrors.New(deperrors.ErrCodeInvalidInput, "want repo/package, got %q", ref)
	}
	return repo, name, nil
}
