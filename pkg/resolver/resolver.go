package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/yarmol/bnd/pkg/capability"
)

// Wiring maps each resolved resource to the wires satisfying its
// requirements. Keys cover the whole closure; a resource with no effective
// requirements maps to an empty slice.
type Wiring map[*capability.Resource][]capability.Wire

// ResolveContext is the solver's view of a resolution: which resources must
// resolve, and which capabilities may satisfy a requirement. FindProviders
// returns candidates in preference order; the solver tries them first to
// last.
type ResolveContext interface {
	// FindProviders returns candidates for a mandatory effective
	// requirement, best first. Optional and non-effective requirements
	// yield no candidates.
	FindProviders(req *capability.Requirement) []*capability.Capability

	// MandatoryResources lists the resources that must resolve.
	MandatoryResources() []*capability.Resource

	// IsMandatory reports whether res is one of the mandatory resources.
	IsMandatory(res *capability.Resource) bool

	// IsEffective reports whether req participates in this resolution.
	IsEffective(req *capability.Requirement) bool
}

// Solver computes a consistent wiring for a resolve context, or a
// *ResolutionError when no wiring exists.
type Solver interface {
	Solve(ctx context.Context, rc ResolveContext) (Wiring, error)
}

// ResolutionError reports a failed resolution with the requirements that
// could not be satisfied.
type ResolutionError struct {
	Unresolved []*capability.Requirement
	Cause      error
}

func (e *ResolutionError) Error() string {
	if len(e.Unresolved) == 0 {
		if e.Cause != nil {
			return fmt.Sprintf("resolution failed: %v", e.Cause)
		}
		return "resolution failed"
	}
	parts := make([]string, len(e.Unresolved))
	for i, req := range e.Unresolved {
		parts[i] = describeRequirement(req)
	}
	return fmt.Sprintf("resolution failed, unable to satisfy: %s", strings.Join(parts, "; "))
}

func (e *ResolutionError) Unwrap() error { return e.Cause }

// describeRequirement renders a requirement with its owner for messages.
func describeRequirement(req *capability.Requirement) string {
	owner := "<standalone>"
	if res := req.Resource(); res != nil {
		owner = res.String()
	}
	return fmt.Sprintf("%v (required by %s)", req, owner)
}
