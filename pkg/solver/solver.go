// Package solver provides a reference backtracking solver over the
// resolver's candidate policy. It tries providers in the order the context
// returns them, depth first, and is deterministic for a fixed context.
// Production callers may substitute any conformant resolver.Solver.
package solver

import (
	"context"

	"github.com/yarmol/bnd/pkg/capability"
	"github.com/yarmol/bnd/pkg/resolver"
)

type status int

const (
	unknown status = iota
	resolving
	ok
	failed
)

// Solver is a deterministic depth-first solver. The zero value is not
// usable; construct with New. A Solver is stateless across Solve calls and
// safe for concurrent use.
type Solver struct{}

// New creates a Solver.
func New() *Solver { return &Solver{} }

// Solve resolves the context's mandatory resources to a wiring covering
// their transitive closure, or fails with a *resolver.ResolutionError
// naming the unsatisfiable requirements.
func (s *Solver) Solve(ctx context.Context, rc resolver.ResolveContext) (resolver.Wiring, error) {
	run := &solve{
		ctx:    ctx,
		rc:     rc,
		status: make(map[*capability.Resource]status),
		cause:  make(map[*capability.Resource]*capability.Requirement),
		wiring: make(resolver.Wiring),
	}
	// Resolve every mandatory resource so the failure names every gap.
	var unresolved []*capability.Requirement
	for _, m := range rc.MandatoryResources() {
		if !run.resolve(m) {
			if req := run.cause[m]; req != nil {
				unresolved = append(unresolved, req)
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(unresolved) > 0 {
		return nil, &resolver.ResolutionError{Unresolved: unresolved}
	}
	run.prune()
	return run.wiring, nil
}

type solve struct {
	ctx    context.Context
	rc     resolver.ResolveContext
	status map[*capability.Resource]status
	// cause records the requirement that made a resource unresolvable.
	// Failures of abandoned candidates stay here and never surface unless
	// the resource was mandatory.
	cause  map[*capability.Resource]*capability.Requirement
	wiring resolver.Wiring
}

// resolve satisfies every mandatory effective requirement of res, trying
// candidates in context order. Resources currently being resolved count as
// satisfiable so dependency cycles close.
func (s *solve) resolve(res *capability.Resource) bool {
	switch s.status[res] {
	case ok, resolving:
		return true
	case failed:
		return false
	}
	if s.ctx.Err() != nil {
		return false
	}
	s.status[res] = resolving

	var wires []capability.Wire
	for _, req := range res.Requirements("") {
		caps := s.rc.FindProviders(req)
		if len(caps) == 0 {
			if req.Optional() || !s.rc.IsEffective(req) {
				continue
			}
			s.status[res] = failed
			s.cause[res] = req
			return false
		}

		wired := false
		for _, cap := range caps {
			provider := cap.Resource()
			if provider == nil || s.resolve(provider) {
				wires = append(wires, capability.NewWire(req, cap))
				wired = true
				break
			}
		}
		if !wired {
			s.status[res] = failed
			s.cause[res] = req
			return false
		}
	}

	s.status[res] = ok
	s.wiring[res] = wires
	return true
}

// prune drops wiring entries not reachable from the mandatory resources.
// A candidate abandoned partway through leaves its already-resolved subtree
// in the wiring; pruning on abandonment would invalidate the ok-status
// memoization, so the sweep runs once after the mandatory loop.
func (s *solve) prune() {
	keep := make(map[*capability.Resource]bool)
	var stack []*capability.Resource
	mark := func(res *capability.Resource) {
		if _, wired := s.wiring[res]; wired && !keep[res] {
			keep[res] = true
			stack = append(stack, res)
		}
	}

	for _, m := range s.rc.MandatoryResources() {
		mark(m)
	}
	for len(stack) > 0 {
		res := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, w := range s.wiring[res] {
			if p := w.Provider(); p != nil {
				mark(p)
			}
		}
	}

	for res := range s.wiring {
		if !keep[res] {
			delete(s.wiring, res)
		}
	}
}
