package resolver

import (
	"context"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/yarmol/bnd/pkg/capability"
	"github.com/yarmol/bnd/pkg/errors"
	"github.com/yarmol/bnd/pkg/observability"
)

// Process drives a solver through the two-pass resolution and post-processes
// the wiring into a Result. A Process is reusable across invocations; each
// call owns its Contexts exclusively.
type Process struct {
	solver  Solver
	log     *log.Logger
	timeout time.Duration
}

// ProcessOption configures a Process.
type ProcessOption func(*Process)

// WithProcessLogger sets the logger. Defaults to the package-level default.
func WithProcessLogger(l *log.Logger) ProcessOption {
	return func(p *Process) { p.log = l }
}

// WithDiagnosisTimeout overrides DefaultDiagnosisTimeout.
func WithDiagnosisTimeout(d time.Duration) ProcessOption {
	return func(p *Process) { p.timeout = d }
}

// NewProcess creates a Process over the given solver.
func NewProcess(solver Solver, opts ...ProcessOption) *Process {
	p := &Process{
		solver:  solver,
		log:     log.Default(),
		timeout: DefaultDiagnosisTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Resolve runs both passes against rc and returns the reason-indexed result.
// A failed pass is diagnosed before the error is returned.
func (p *Process) Resolve(ctx context.Context, rc *Context) (*Result, error) {
	if err := rc.Init(ctx); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	logger := rc.log.With("resolve", id)
	start := time.Now()
	observability.Resolver().OnResolveStart(ctx, id, len(rc.MandatoryResources()))

	result, err := p.resolve(ctx, id, logger, rc)
	observability.Resolver().OnResolveComplete(ctx, id, result.requiredCount(), result.optionalCount(), time.Since(start), err)
	if err != nil {
		return nil, err
	}
	logger.Debug("resolution complete",
		"required", result.requiredCount(),
		"optional", result.optionalCount(),
		"elapsed", time.Since(start))
	return result, nil
}

func (p *Process) resolve(ctx context.Context, id string, logger *log.Logger, rc *Context) (*Result, error) {
	// Pass 1: resolve the input and framework to a seed wiring.
	seed, err := p.solver.Solve(ctx, rc)
	if err != nil {
		return nil, p.fail(ctx, id, logger, rc, err)
	}
	initialInput := seed[rc.input]
	roots := rootSet(rc, seed)
	logger.Debug("seed pass complete", "resources", len(seed), "roots", len(roots))

	// Pass 2: every root is mandatory; optional requirements probe the
	// repositories on the side without entering the wiring.
	disc := newDiscoveryContext(rc.fork(), roots)
	wiring, err := p.solver.Solve(ctx, disc)
	if err != nil {
		return nil, p.fail(ctx, id, logger, disc, err)
	}
	wiring[rc.input] = initialInput

	required, err := invertWirings(wiring, rc)
	if err != nil {
		return nil, err
	}

	optional := tidyUpOptional(logger, wiring, required, disc)
	return &Result{required: required, optional: optional}, nil
}

// fail augments a solver failure with root-cause diagnosis.
func (p *Process) fail(ctx context.Context, id string, logger *log.Logger, rc ResolveContext, err error) error {
	rerr, ok := err.(*ResolutionError)
	if !ok {
		return err
	}
	observability.Resolver().OnDiagnoseStart(ctx, id)
	start := time.Now()
	augmented, timedOut := augment(rc, rerr, p.timeout)
	observability.Resolver().OnDiagnoseComplete(ctx, id, time.Since(start), timedOut)
	if timedOut {
		logger.Warn("diagnosis deadline exceeded, returning original failure")
	}
	return augmented
}

// rootSet computes the resources that must be mandatory in pass 2: every
// pass-1 resource providing a capability that matches one of the input's
// requirements, wired or not, extended transitively through host wires so
// fragment hosts resolve with their fragments.
func rootSet(rc *Context, wiring Wiring) []*capability.Resource {
	seen := make(map[*capability.Resource]bool)
	var roots []*capability.Resource
	add := func(res *capability.Resource) {
		if res == nil || seen[res] || rc.IsSystemResource(res) {
			return
		}
		seen[res] = true
		roots = append(roots, res)
	}

	resolved := sortedResources(wiring)
	for _, req := range rc.InputResource().Requirements("") {
		for _, res := range resolved {
			for _, cap := range res.Capabilities(req.Namespace()) {
				if req.Matches(cap) {
					add(res)
					break
				}
			}
		}
	}

	// Fragments are not independently resolvable; pull in their hosts.
	for i := 0; i < len(roots); i++ {
		for _, w := range wiring[roots[i]] {
			if w.Requirement().Namespace() == capability.NamespaceHost {
				add(w.Capability().Resource())
			}
		}
	}
	return roots
}

// discoveryContext is the pass-2 view: the root set is mandatory, and
// unsatisfied effective optional requirements probe the repositories with
// each match recorded as a candidate wire.
type discoveryContext struct {
	*Context
	roots    []*capability.Resource
	rootSet  map[*capability.Resource]bool
	found    map[*capability.Resource][]capability.Wire
	sequence []*capability.Resource
}

func newDiscoveryContext(c *Context, roots []*capability.Resource) *discoveryContext {
	set := make(map[*capability.Resource]bool, len(roots))
	for _, r := range roots {
		set[r] = true
	}
	return &discoveryContext{
		Context: c,
		roots:   roots,
		rootSet: set,
		found:   make(map[*capability.Resource][]capability.Wire),
	}
}

func (d *discoveryContext) MandatoryResources() []*capability.Resource { return d.roots }

func (d *discoveryContext) IsMandatory(res *capability.Resource) bool { return d.rootSet[res] }

func (d *discoveryContext) FindProviders(req *capability.Requirement) []*capability.Capability {
	caps := d.Context.FindProviders(req)
	if len(caps) > 0 {
		return caps
	}
	if req.Optional() && d.Context.IsEffective(req) {
		for _, cap := range d.Context.findProviders(req) {
			provider := cap.Resource()
			if provider == nil || d.Context.IsSystemResource(provider) {
				continue
			}
			// The solver may probe the same requirement repeatedly;
			// record each candidate wire once.
			candidate := capability.NewWire(req, cap)
			wires, tracked := d.found[provider]
			if containsWire(wires, candidate) {
				continue
			}
			if !tracked {
				d.sequence = append(d.sequence, provider)
			}
			d.found[provider] = append(wires, candidate)
		}
	}
	return caps
}

// invertWirings turns the requirer-keyed wiring into a provider-keyed reason
// map. Self-wires are dropped, and the input and framework bookkeeping nodes
// never become keys. A wire whose provider cannot be attributed to any
// resolved resource violates the solver contract.
func invertWirings(wiring Wiring, rc *Context) (map[*capability.Resource][]capability.Wire, error) {
	requirers := sortedResources(wiring)
	required := make(map[*capability.Resource][]capability.Wire)
	for _, requirer := range requirers {
		for _, wire := range wiring[requirer] {
			provider := wire.Capability().Resource()
			if provider == requirer || rc.IsSystemResource(provider) {
				continue
			}
			if _, resolved := wiring[provider]; !resolved {
				provider = findResolvedProvider(wiring, requirers, wire)
				if provider == nil {
					return nil, errors.New(errors.ErrCodeInternal,
						"wire %v has no resolved provider", wire)
				}
			}
			required[provider] = append(required[provider], wire)
		}
	}
	return required, nil
}

// findResolvedProvider locates the resolved resource exposing a capability
// satisfying the wire's requirement, attributing host-provided capabilities
// to the host.
func findResolvedProvider(wiring Wiring, resolved []*capability.Resource, wire capability.Wire) *capability.Resource {
	req := wire.Requirement()
	for _, res := range resolved {
		for _, cap := range res.Capabilities(req.Namespace()) {
			if req.Matches(cap) {
				return res
			}
		}
	}
	return nil
}

// tidyUpOptional reconciles the discovery side table against the required
// set: required resources and their identity twins drop out, wires must
// originate from a required resource and not duplicate a resolved wire, and
// one resource per identity survives.
func tidyUpOptional(logger *log.Logger, wiring Wiring, required map[*capability.Resource][]capability.Wire, disc *discoveryContext) map[*capability.Resource][]capability.Wire {
	requiredIdentity := make(map[string]bool, len(required))
	for res := range required {
		if id, ok := res.Identity(); ok {
			requiredIdentity[capability.IdentityKey(id)] = true
		} else {
			logger.Warn("resource without a unique identity excluded from identity checks", "resource", res)
		}
	}

	optional := make(map[*capability.Resource][]capability.Wire)
	seenIdentity := make(map[string]*capability.Resource)
	for _, provider := range disc.sequence {
		if _, isRequired := required[provider]; isRequired {
			continue
		}
		idKey := ""
		if id, ok := provider.Identity(); ok {
			idKey = capability.IdentityKey(id)
		} else {
			logger.Warn("optional resource without a unique identity", "resource", provider)
		}
		if idKey != "" && requiredIdentity[idKey] {
			continue
		}

		var valid []capability.Wire
		for _, w := range disc.found[provider] {
			requirer := w.Requirer()
			if requirer == nil {
				continue
			}
			if _, ok := required[requirer]; !ok {
				continue
			}
			if hasWireFor(wiring[requirer], w.Requirement()) {
				continue
			}
			valid = append(valid, w)
		}
		if len(valid) == 0 {
			continue
		}

		if idKey != "" {
			if kept, dup := seenIdentity[idKey]; dup {
				logger.Info("discarding duplicate optional resource",
					"discarded", provider, "kept", kept)
				continue
			}
			seenIdentity[idKey] = provider
		}
		optional[provider] = valid
	}
	return optional
}

// containsWire reports whether w is already recorded in wires.
func containsWire(wires []capability.Wire, w capability.Wire) bool {
	for _, existing := range wires {
		if existing == w {
			return true
		}
	}
	return false
}

// hasWireFor reports whether wires already satisfies req.
func hasWireFor(wires []capability.Wire, req *capability.Requirement) bool {
	for _, w := range wires {
		if w.Requirement() == req {
			return true
		}
	}
	return false
}

// Result is the read-only outcome of a resolution: the required closure and
// the discovered optional resources, each mapped to the incoming wires that
// explain its presence.
type Result struct {
	required map[*capability.Resource][]capability.Wire
	optional map[*capability.Resource][]capability.Wire
}

// RequiredResources lists the required resources in a stable order.
func (r *Result) RequiredResources() []*capability.Resource {
	return sortedResources(r.required)
}

// OptionalResources lists the discovered optional resources in a stable
// order.
func (r *Result) OptionalResources() []*capability.Resource {
	return sortedResources(r.optional)
}

// RequiredReasons returns the wires that pulled res into the required set.
func (r *Result) RequiredReasons(res *capability.Resource) []capability.Wire {
	return r.required[res]
}

// OptionalReasons returns the candidate wires recorded for an optional
// resource.
func (r *Result) OptionalReasons(res *capability.Resource) []capability.Wire {
	return r.optional[res]
}

func (r *Result) requiredCount() int {
	if r == nil {
		return 0
	}
	return len(r.required)
}

func (r *Result) optionalCount() int {
	if r == nil {
		return 0
	}
	return len(r.optional)
}

// sortedResources returns the map's keys ordered by identity string.
func sortedResources(m map[*capability.Resource][]capability.Wire) []*capability.Resource {
	out := make([]*capability.Resource, 0, len(m))
	for res := range m {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
