package resolver

import (
	"time"

	"github.com/yarmol/bnd/pkg/capability"
)

// DefaultDiagnosisTimeout bounds the post-failure root-cause search. The
// deadline is cooperative: checked at the start of every recursive step, it
// aborts diagnosis only, never the resolution outcome.
const DefaultDiagnosisTimeout = time.Second

// augment replaces each unresolved requirement with the deeper requirement
// that actually cannot be satisfied, found by walking candidate chains. When
// the deadline expires or nothing deeper is found, the original error is
// returned verbatim.
func augment(rc ResolveContext, rerr *ResolutionError, timeout time.Duration) (*ResolutionError, bool) {
	deadline := time.Now().Add(timeout)
	visited := make(map[*capability.Resource]bool)

	augmented := make([]*capability.Requirement, 0, len(rerr.Unresolved))
	changed := false
	for _, req := range rerr.Unresolved {
		deeper, timedOut := missing(rc, req, visited, deadline)
		if timedOut {
			return rerr, true
		}
		if deeper != nil && deeper != req {
			augmented = append(augmented, deeper)
			changed = true
		} else {
			augmented = append(augmented, req)
		}
	}
	if !changed {
		return rerr, false
	}
	return &ResolutionError{Unresolved: augmented, Cause: rerr}, false
}

// missing finds the requirement that makes req unsatisfiable, or nil when
// some candidate chain fully resolves. Optional and non-effective
// sub-requirements cannot fail a resolution and are skipped.
func missing(rc ResolveContext, req *capability.Requirement, visited map[*capability.Resource]bool, deadline time.Time) (*capability.Requirement, bool) {
	if time.Now().After(deadline) {
		return nil, true
	}

	caps := rc.FindProviders(req)
	if len(caps) == 0 {
		return req, false
	}

	// First level: a candidate qualifies when every mandatory effective
	// requirement of its resource has at least one provider. The first
	// sub-requirement failing this check is the fallback root cause.
	var initialMissing *capability.Requirement
	var candidates []*capability.Resource
	for _, cap := range caps {
		res := cap.Resource()
		if res == nil {
			continue
		}
		qualified := true
		for _, sub := range res.Requirements("") {
			if sub.Optional() || !rc.IsEffective(sub) {
				continue
			}
			if time.Now().After(deadline) {
				return nil, true
			}
			if len(rc.FindProviders(sub)) == 0 {
				if initialMissing == nil {
					initialMissing = sub
				}
				qualified = false
				break
			}
		}
		if qualified {
			candidates = append(candidates, res)
		}
	}
	if len(candidates) == 0 {
		if initialMissing != nil {
			return initialMissing, false
		}
		return req, false
	}

	// Recurse: one fully resolvable candidate clears the requirement.
	var firstMissing *capability.Requirement
	sawVisited := false
	for _, res := range candidates {
		if visited[res] {
			sawVisited = true
			continue
		}
		visited[res] = true

		resolved := true
		for _, sub := range res.Requirements("") {
			if sub.Optional() || !rc.IsEffective(sub) {
				continue
			}
			deeper, timedOut := missing(rc, sub, visited, deadline)
			if timedOut {
				return nil, true
			}
			if deeper != nil {
				if firstMissing == nil {
					firstMissing = deeper
				}
				resolved = false
				break
			}
		}
		if resolved {
			return nil, false
		}
	}
	if firstMissing == nil && sawVisited {
		// Every remaining candidate is on the current chain; treat the
		// cycle as satisfiable rather than inventing a root cause.
		return nil, false
	}
	if firstMissing != nil {
		return firstMissing, false
	}
	return initialMissing, false
}
