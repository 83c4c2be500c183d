package repository

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/yarmol/bnd/pkg/capability"
	"github.com/yarmol/bnd/pkg/errors"
	"github.com/yarmol/bnd/pkg/observability"
	"github.com/yarmol/bnd/pkg/version"
)

// IndexRepository is an in-memory repository built from an index. Provider
// queries scan resources in index order. The repository is immutable after
// construction and safe for concurrent use.
type IndexRepository struct {
	name      string
	resources []*capability.Resource
	locations map[*capability.Resource]string
	baseDir   string
}

// NewIndexRepository builds a repository from a parsed index. baseDir
// anchors relative content locations for Fetch; it may be empty when
// content fetching is not needed.
func NewIndexRepository(idx *Index, baseDir string) (*IndexRepository, error) {
	r := &IndexRepository{
		name:      idx.Name,
		locations: make(map[*capability.Resource]string),
		baseDir:   baseDir,
	}
	for i, ir := range idx.Resources {
		res, err := ir.Build()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidIndex, err, "resource %d in index %q", i, idx.Name)
		}
		r.resources = append(r.resources, res)
		if ir.Location != "" {
			r.locations[res] = ir.Location
		}
	}
	return r, nil
}

// NewStaticRepository builds a repository directly from model resources,
// bypassing the index format. Content fetching is unavailable.
func NewStaticRepository(name string, resources ...*capability.Resource) *IndexRepository {
	return &IndexRepository{
		name:      name,
		resources: resources,
		locations: make(map[*capability.Resource]string),
	}
}

// LoadIndexFile reads a JSON index from disk.
func LoadIndexFile(path string) (*IndexRepository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "read index %s", path)
	}
	idx, err := ParseIndex(data)
	if err != nil {
		return nil, err
	}
	return NewIndexRepository(idx, filepath.Dir(path))
}

// Name returns the repository name.
func (r *IndexRepository) Name() string { return r.name }

// Resources returns all indexed resources in index order.
func (r *IndexRepository) Resources() []*capability.Resource { return r.resources }

// Find scans the index for capabilities matching each requirement.
func (r *IndexRepository) Find(ctx context.Context, reqs []*capability.Requirement) (map[*capability.Requirement][]*capability.Capability, error) {
	start := time.Now()
	out := make(map[*capability.Requirement][]*capability.Capability)
	providers := 0
	for _, req := range reqs {
		for _, res := range r.resources {
			for _, cap := range res.Capabilities(req.Namespace()) {
				if req.Matches(cap) {
					out[req] = append(out[req], cap)
					providers++
				}
			}
		}
	}
	observability.Repository().OnFind(ctx, r.name, len(reqs), providers, time.Since(start))
	return out, nil
}

// Fetch opens the content file of the identified resource.
func (r *IndexRepository) Fetch(ctx context.Context, identity string, v version.Version) (io.ReadCloser, error) {
	start := time.Now()
	rc, err := r.open(identity, v)
	observability.Repository().OnFetch(ctx, r.name, identity, time.Since(start), err)
	return rc, err
}

func (r *IndexRepository) open(identity string, v version.Version) (io.ReadCloser, error) {
	res := r.lookup(identity, v)
	if res == nil {
		return nil, errors.New(errors.ErrCodeResourceNotFound, "resource %s/%s not in repository %q", identity, v, r.name)
	}
	loc, ok := r.locations[res]
	if !ok {
		return nil, errors.New(errors.ErrCodeUnsupported, "resource %s/%s has no content location", identity, v)
	}
	if !filepath.IsAbs(loc) {
		loc = filepath.Join(r.baseDir, loc)
	}
	f, err := os.Open(loc)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "open %s", loc)
	}
	return f, nil
}

func (r *IndexRepository) lookup(identity string, v version.Version) *capability.Resource {
	for _, res := range r.resources {
		if res.IdentityName() == identity && res.IdentityVersion().Compare(v) == 0 {
			return res
		}
	}
	return nil
}

func (r *IndexRepository) String() string {
	return fmt.Sprintf("%s (%d resources)", r.name, len(r.resources))
}

// Ensure IndexRepository implements Repository.
var _ Repository = (*IndexRepository)(nil)
