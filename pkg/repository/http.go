package repository

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/yarmol/bnd/pkg/cache"
	"github.com/yarmol/bnd/pkg/capability"
	"github.com/yarmol/bnd/pkg/errors"
	"github.com/yarmol/bnd/pkg/httputil"
	"github.com/yarmol/bnd/pkg/version"
)

// DefaultIndexTTL is how long a fetched index stays cached.
const DefaultIndexTTL = 24 * time.Hour

// HTTPRepository serves an index fetched over HTTP. The index is loaded on
// first use and kept for the lifetime of the repository; the raw document
// is cached across processes with the configured cache.
type HTTPRepository struct {
	name     string
	indexURL string
	client   *http.Client
	cache    cache.Cache
	ttl      time.Duration

	mu    sync.Mutex
	local *IndexRepository
}

// HTTPOption configures an HTTPRepository.
type HTTPOption func(*HTTPRepository)

// WithHTTPClient sets the HTTP client used for index and content fetches.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(r *HTTPRepository) { r.client = c }
}

// WithCache sets the cache for fetched index documents.
func WithCache(c cache.Cache) HTTPOption {
	return func(r *HTTPRepository) { r.cache = c }
}

// WithIndexTTL overrides DefaultIndexTTL.
func WithIndexTTL(ttl time.Duration) HTTPOption {
	return func(r *HTTPRepository) { r.ttl = ttl }
}

// NewHTTPRepository creates a repository backed by the index at indexURL.
func NewHTTPRepository(name, indexURL string, opts ...HTTPOption) *HTTPRepository {
	r := &HTTPRepository{
		name:     name,
		indexURL: indexURL,
		client:   http.DefaultClient,
		cache:    cache.NewNullCache(),
		ttl:      DefaultIndexTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name returns the repository name.
func (r *HTTPRepository) Name() string { return r.name }

// Find loads the index if needed and scans it for providers.
func (r *HTTPRepository) Find(ctx context.Context, reqs []*capability.Requirement) (map[*capability.Requirement][]*capability.Capability, error) {
	local, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	return local.Find(ctx, reqs)
}

// Fetch downloads the content of the identified resource.
func (r *HTTPRepository) Fetch(ctx context.Context, identity string, v version.Version) (io.ReadCloser, error) {
	local, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	res := local.lookup(identity, v)
	if res == nil {
		return nil, errors.New(errors.ErrCodeResourceNotFound, "resource %s/%s not in repository %q", identity, v, r.name)
	}
	loc, ok := local.locations[res]
	if !ok {
		return nil, errors.New(errors.ErrCodeUnsupported, "resource %s/%s has no content location", identity, v)
	}
	contentURL, err := r.resolveURL(loc)
	if err != nil {
		return nil, err
	}

	var data []byte
	err = httputil.RetryWithBackoff(ctx, func() error {
		var gerr error
		data, gerr = httputil.GetBytes(ctx, r.client, contentURL)
		return gerr
	})
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// load fetches and parses the index once, consulting the cache first.
func (r *HTTPRepository) load(ctx context.Context) (*IndexRepository, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.local != nil {
		return r.local, nil
	}

	key := cache.Key("index", r.indexURL)
	data, hit, err := r.cache.Get(ctx, key)
	if err != nil || !hit {
		err = httputil.RetryWithBackoff(ctx, func() error {
			var gerr error
			data, gerr = httputil.GetBytes(ctx, r.client, r.indexURL)
			return gerr
		})
		if err != nil {
			return nil, err
		}
		_ = r.cache.Set(ctx, key, data, r.ttl)
	}

	idx, err := ParseIndex(data)
	if err != nil {
		return nil, err
	}
	if idx.Name == "" {
		idx.Name = r.name
	}
	local, err := NewIndexRepository(idx, "")
	if err != nil {
		return nil, err
	}
	local.name = r.name
	r.local = local
	return local, nil
}

// resolveURL resolves a content location against the index URL.
func (r *HTTPRepository) resolveURL(loc string) (string, error) {
	base, err := url.Parse(r.indexURL)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidInput, err, "parse index url %q", r.indexURL)
	}
	ref, err := url.Parse(loc)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidIndex, err, "parse location %q", loc)
	}
	return base.ResolveReference(ref).String(), nil
}

// Ensure HTTPRepository implements Repository.
var _ Repository = (*HTTPRepository)(nil)
