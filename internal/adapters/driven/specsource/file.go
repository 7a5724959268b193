package specsource

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/custodia-labs/specfrag-cli/internal/core/domain"
	"github.com/custodia-labs/specfrag-cli/internal/core/ports/driven"
)

// Ensure FileFetcher implements the interface.
var _ driven.SpecFetcher = (*FileFetcher)(nil)

// FileFetcher reads specifications from the local filesystem. The ETag is a
// content hash, so an unchanged file is reported as not modified.
type FileFetcher struct {
	now func() time.Time
}

// NewFileFetcher creates a file fetcher.
func NewFileFetcher() *FileFetcher {
	return &FileFetcher{now: time.Now}
}

// Supports accepts anything that is not a URL. A file:// prefix is allowed.
func (f *FileFetcher) Supports(location string) bool {
	if strings.HasPrefix(location, "file://") {
		return true
	}
	return location != "" && !strings.Contains(location, "://")
}

// Fetch reads and decodes the file at location.
func (f *FileFetcher) Fetch(_ context.Context, location, etag string) (*driven.FetchedSpec, error) {
	path := filepath.Clean(strings.TrimPrefix(location, "file://"))

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s does not exist", domain.ErrSpecUnavailable, path)
		}
		return nil, fmt.Errorf("%w: reading %s: %w", domain.ErrSpecUnavailable, path, err)
	}

	sum := sha256.Sum256(data)
	tag := "sha256:" + hex.EncodeToString(sum[:])
	if etag != "" && etag == tag {
		return nil, domain.ErrNotModified
	}

	doc, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	return &driven.FetchedSpec{
		Location:  location,
		Document:  doc,
		ETag:      tag,
		FetchedAt: f.now(),
	}, nil
}
