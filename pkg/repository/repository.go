package repository

import (
	"context"
	"io"

	"github.com/yarmol/bnd/pkg/capability"
	"github.com/yarmol/bnd/pkg/version"
)

// Repository answers provider queries against an indexed set of resources.
type Repository interface {
	// Name identifies the repository in configuration and logs.
	Name() string

	// Find returns, for each requirement, the capabilities satisfying it
	// in index order. Requirements with no providers are absent from the
	// result map.
	Find(ctx context.Context, reqs []*capability.Requirement) (map[*capability.Requirement][]*capability.Capability, error)

	// Fetch opens the content of the resource with the given identity.
	// Implementations without content storage return ErrCodeUnsupported.
	Fetch(ctx context.Context, identity string, v version.Version) (io.ReadCloser, error)
}
