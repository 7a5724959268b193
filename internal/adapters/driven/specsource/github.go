package specsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/specfrag-cli/internal/core/domain"
	"github.com/custodia-labs/specfrag-cli/internal/core/ports/driven"
)

// GitHubScheme prefixes repository locations.
const GitHubScheme = "github://"

// Ensure GitHubFetcher implements the interface.
var _ driven.SpecFetcher = (*GitHubFetcher)(nil)

// GitHubLocation identifies a file in a repository.
type GitHubLocation struct {
	Owner string
	Repo  string
	Path  string
	Ref   string
}

// ParseGitHubLocation parses github://owner/repo/path/to/spec.yaml@ref.
// The ref is optional and defaults to the repository's default branch.
func ParseGitHubLocation(location string) (GitHubLocation, error) {
	rest, ok := strings.CutPrefix(location, GitHubScheme)
	if !ok {
		return GitHubLocation{}, fmt.Errorf("%w: %q is not a github location", domain.ErrInvalidInput, location)
	}

	var loc GitHubLocation
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		loc.Ref = rest[at+1:]
		rest = rest[:at]
	}

	parts := strings.SplitN(rest, "/", 3)
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" || strings.Trim(parts[2], "/") == "" {
		return GitHubLocation{}, fmt.Errorf("%w: want github://owner/repo/path[@ref], got %q", domain.ErrInvalidInput, location)
	}
	loc.Owner = parts[0]
	loc.Repo = parts[1]
	loc.Path = strings.Trim(parts[2], "/")
	return loc, nil
}

// String renders the location back to its github:// form.
func (l GitHubLocation) String() string {
	s := GitHubScheme + l.Owner + "/" + l.Repo + "/" + l.Path
	if l.Ref != "" {
		s += "@" + l.Ref
	}
	return s
}

// GitHubFetcher reads specifications from repository contents. The blob
// SHA serves as the ETag.
type GitHubFetcher struct {
	gh          *gh.Client
	rateLimiter *RateLimiter
	now         func() time.Time
}

// NewGitHubFetcher creates a fetcher. An empty token uses anonymous access,
// which GitHub limits to 60 requests per hour.
func NewGitHubFetcher(ctx context.Context, token string) *GitHubFetcher {
	if token == "" {
		return NewGitHubFetcherWithClient(gh.NewClient(&http.Client{Timeout: DefaultTimeout}))
	}
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)
	tc.Timeout = DefaultTimeout
	return NewGitHubFetcherWithClient(gh.NewClient(tc))
}

// NewGitHubFetcherWithClient wraps an existing go-github client.
func NewGitHubFetcherWithClient(client *gh.Client) *GitHubFetcher {
	return &GitHubFetcher{
		gh:          client,
		rateLimiter: NewRateLimiter(),
		now:         time.Now,
	}
}

// Supports accepts github:// locations.
func (f *GitHubFetcher) Supports(location string) bool {
	return strings.HasPrefix(location, GitHubScheme)
}

// Fetch reads the file through the contents API. Files over 1MB come back
// without inline content and are downloaded instead.
func (f *GitHubFetcher) Fetch(ctx context.Context, location, etag string) (*driven.FetchedSpec, error) {
	loc, err := ParseGitHubLocation(location)
	if err != nil {
		return nil, err
	}

	if err := f.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	opts := &gh.RepositoryContentGetOptions{Ref: loc.Ref}
	file, dir, resp, err := f.gh.Repositories.GetContents(ctx, loc.Owner, loc.Repo, loc.Path, opts)
	f.updateRateLimitFromResponse(resp)
	if err != nil {
		return nil, f.wrapError(err, "get contents")
	}
	if file == nil || dir != nil {
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrSpecUnavailable, loc)
	}

	sha := file.GetSHA()
	if etag != "" && etag == sha {
		return nil, domain.ErrNotModified
	}

	data, err := f.fileBytes(ctx, loc, file)
	if err != nil {
		return nil, err
	}

	doc, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", loc, err)
	}

	return &driven.FetchedSpec{
		Location:  location,
		Document:  doc,
		ETag:      sha,
		FetchedAt: f.now(),
	}, nil
}

func (f *GitHubFetcher) fileBytes(ctx context.Context, loc GitHubLocation, file *gh.RepositoryContent) ([]byte, error) {
	if file.GetEncoding() != "none" && file.Content != nil {
		content, err := file.GetContent()
		if err != nil {
			return nil, fmt.Errorf("%w: decode content: %w", domain.ErrInvalidSpec, err)
		}
		return []byte(content), nil
	}

	if err := f.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	opts := &gh.RepositoryContentGetOptions{Ref: loc.Ref}
	rc, resp, err := f.gh.Repositories.DownloadContents(ctx, loc.Owner, loc.Repo, loc.Path, opts)
	f.updateRateLimitFromResponse(resp)
	if err != nil {
		return nil, f.wrapError(err, "download contents")
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading download: %w", domain.ErrSpecUnavailable, err)
	}
	if len(data) > MaxDocumentSize {
		return nil, fmt.Errorf("%w: document exceeds %d bytes", domain.ErrInvalidSpec, MaxDocumentSize)
	}
	return data, nil
}

func (f *GitHubFetcher) updateRateLimitFromResponse(resp *gh.Response) {
	if resp == nil || resp.Response == nil {
		return
	}
	f.rateLimiter.UpdateFromResponse(resp.Response)
}

// wrapError maps go-github errors onto domain sentinels.
func (f *GitHubFetcher) wrapError(err error, operation string) error {
	var rateLimitErr *gh.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return fmt.Errorf("%w: github rate limit exceeded, resets at %s",
			domain.ErrSpecUnavailable, f.rateLimiter.ResetTime().Format(time.RFC3339))
	}

	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return fmt.Errorf("%w: github %s: %d %s",
			domain.ErrSpecUnavailable, operation, ghErr.Response.StatusCode, ghErr.Message)
	}

	return fmt.Errorf("%w: github %s: %w", domain.ErrSpecUnavailable, operation, err)
}
