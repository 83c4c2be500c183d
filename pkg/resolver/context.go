package resolver

import (
	"context"
	"path"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/yarmol/bnd/pkg/capability"
	"github.com/yarmol/bnd/pkg/errors"
	"github.com/yarmol/bnd/pkg/repository"
	"github.com/yarmol/bnd/pkg/version"
)

// CandidateFilter is a registered hook that may remove candidates for a
// requirement. Filters run in registration order; candidates owned by the
// framework resource are reinstated afterwards and cannot be removed.
type CandidateFilter func(req *capability.Requirement, candidates *[]*capability.Capability)

// Context couples the candidate-selection policy with a run model and its
// repositories. It is the object the solver queries. A Context serves one
// resolve invocation and is not safe for concurrent use.
type Context struct {
	model *RunModel
	repos []repository.Repository
	log   *log.Logger
	hooks []CandidateFilter

	// set by Init
	ctx             context.Context
	input           *capability.Resource
	framework       *capability.Resource
	frameworkSource *capability.Resource
	mandatory       []*capability.Resource
	blacklist       []*capability.Requirement
	effective       map[string]map[string]bool // tag -> skipped namespaces

	blacklistCache map[*capability.Resource]bool
	initialized    bool
}

// Option configures a Context.
type Option func(*Context)

// WithLogger sets the logger. Defaults to the package-level default.
func WithLogger(l *log.Logger) Option {
	return func(c *Context) { c.log = l }
}

// WithCandidateFilter registers a candidate filter hook. Hooks run in
// registration order.
func WithCandidateFilter(f CandidateFilter) Option {
	return func(c *Context) { c.hooks = append(c.hooks, f) }
}

// NewContext creates a Context over the model and repositories. Repositories
// are consulted in slice order. Call Init before handing the Context to a
// solver.
func NewContext(model *RunModel, repos []repository.Repository, opts ...Option) *Context {
	c := &Context{
		model:          model,
		repos:          repos,
		log:            log.Default(),
		blacklistCache: make(map[*capability.Resource]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Init validates the model, builds the synthetic input resource, selects the
// framework resource and assembles the mandatory set. ctx is retained for
// repository lookups issued during candidate queries.
func (c *Context) Init(ctx context.Context) error {
	if c.initialized {
		return nil
	}
	if err := c.model.Validate(); err != nil {
		return err
	}
	c.ctx = ctx

	for _, spec := range c.model.Blacklist {
		c.blacklist = append(c.blacklist, spec.Requirement())
	}

	c.effective = make(map[string]map[string]bool, len(c.model.EffectiveTags))
	for _, tag := range c.model.EffectiveTags {
		skip := make(map[string]bool, len(tag.Skip))
		for _, ns := range tag.Skip {
			skip[ns] = true
		}
		c.effective[tag.Tag] = skip
	}

	// The input resource carries the top-level requirements and nothing
	// else. It seeds the solver and never appears in results.
	ib := capability.NewBuilder()
	for _, spec := range c.model.Requires {
		dirs := make(map[string]string)
		if spec.Filter != "" {
			dirs[capability.DirectiveFilter] = spec.Filter
		}
		if spec.Resolution != "" {
			dirs[capability.DirectiveResolution] = spec.Resolution
		}
		if spec.Effective != "" {
			dirs[capability.DirectiveEffective] = spec.Effective
		}
		ib.AddRequirement(spec.Namespace, dirs)
	}
	c.input = ib.Build()
	c.mandatory = []*capability.Resource{c.input}

	if c.model.Framework != nil {
		if err := c.selectFramework(); err != nil {
			return err
		}
		c.mandatory = append(c.mandatory, c.framework)
	}

	c.initialized = true
	return nil
}

// selectFramework picks the highest-version resource matching the framework
// identity and range across the repositories, blacklist respected, first
// repository winning version ties. The chosen resource's capabilities are
// copied onto a fresh framework resource together with the configured system
// grants; the source itself is excluded from candidate queries.
func (c *Context) selectFramework() error {
	spec := c.model.Framework
	rng, err := version.ParseRange(spec.Range)
	if err != nil {
		return err
	}

	req := capability.NewRequirement(capability.NamespaceIdentity, map[string]string{
		capability.DirectiveFilter: "(" + capability.NamespaceIdentity + "=" + spec.Identity + ")",
	})

	var best *capability.Resource
	for _, repo := range c.repos {
		found, err := repo.Find(c.ctx, []*capability.Requirement{req})
		if err != nil {
			c.log.Warn("repository query failed", "repository", repo.Name(), "error", err)
			continue
		}
		for _, cap := range found[req] {
			res := cap.Resource()
			if res == nil {
				continue
			}
			v := res.IdentityVersion()
			if !rng.Includes(v) && !(spec.Range == "" && v.IsZero()) {
				continue
			}
			if c.isBlacklisted(res) {
				continue
			}
			if best == nil || v.Compare(best.IdentityVersion()) > 0 {
				best = res
			}
		}
	}
	if best == nil {
		return errors.New(errors.ErrCodeResourceNotFound,
			"no framework matching %s %s in any repository", spec.Identity, spec.Range)
	}
	c.frameworkSource = best

	fb := capability.NewBuilder()
	for _, cap := range best.Capabilities("") {
		fb.AddCapability(cap.Namespace(), cap.Attributes(), cap.Directives())
	}
	for _, env := range c.model.Environment {
		name, v, err := parseEnvironmentGrant(env)
		if err != nil {
			return err
		}
		attrs := map[string]any{capability.NamespaceEnvironment: name}
		if !v.IsZero() {
			attrs[capability.AttrVersion] = v
		}
		fb.AddCapability(capability.NamespaceEnvironment, attrs, nil)
	}
	for _, sp := range c.model.SystemPackages {
		attrs := map[string]any{capability.NamespacePackage: sp.Name}
		if sp.Version != "" {
			attrs[capability.AttrVersion] = version.MustParse(sp.Version)
		}
		fb.AddCapability(capability.NamespacePackage, attrs, nil)
	}
	for _, sc := range c.model.SystemCapabilities {
		attrs, err := typedAttributes(sc.Attributes)
		if err != nil {
			return err
		}
		fb.AddCapability(sc.Namespace, attrs, sc.Directives)
	}
	c.framework = fb.Build()

	c.log.Debug("selected framework",
		"identity", best.IdentityName(),
		"version", best.IdentityVersion().String())
	return nil
}

// typedAttributes parses a string version attribute into its typed form.
func typedAttributes(attrs map[string]any) (map[string]any, error) {
	if attrs == nil {
		return nil, nil
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		if k == capability.AttrVersion {
			if s, ok := v.(string); ok {
				pv, err := version.Parse(s)
				if err != nil {
					return nil, err
				}
				out[k] = pv
				continue
			}
		}
		out[k] = v
	}
	return out, nil
}

// InputResource returns the synthetic resource carrying the top-level
// requirements.
func (c *Context) InputResource() *capability.Resource { return c.input }

// FrameworkResource returns the framework resource, or nil when the model
// declares none.
func (c *Context) FrameworkResource() *capability.Resource { return c.framework }

// IsSystemResource reports whether res is the input or framework resource,
// which never appear in results.
func (c *Context) IsSystemResource(res *capability.Resource) bool {
	return res == c.input || (c.framework != nil && res == c.framework)
}

// MandatoryResources lists the resources the solver must satisfy.
func (c *Context) MandatoryResources() []*capability.Resource { return c.mandatory }

// IsMandatory reports whether res is in the mandatory set.
func (c *Context) IsMandatory(res *capability.Resource) bool {
	for _, m := range c.mandatory {
		if m == res {
			return true
		}
	}
	return false
}

// IsEffective reports whether req participates in this resolution. The
// default resolve tag always passes; configured tags pass unless skipped for
// the requirement's namespace.
func (c *Context) IsEffective(req *capability.Requirement) bool {
	eff := req.Effective()
	if eff == "" || eff == capability.EffectiveResolve {
		return true
	}
	skip, ok := c.effective[eff]
	if !ok {
		return false
	}
	return !skip[req.Namespace()]
}

// FindProviders implements the solver-visible lookup: candidates for
// mandatory effective requirements only, best first.
func (c *Context) FindProviders(req *capability.Requirement) []*capability.Capability {
	if !c.IsEffective(req) || req.Optional() {
		return nil
	}
	return c.findProviders(req)
}

// candidateMeta carries the ordering keys of one candidate.
type candidateMeta struct {
	fwRank int // 0 framework, 1 repository
	pref   int // preference bucket, lower first
	caps   int
	reqs   int
}

// findProviders runs the full selection pipeline: namespace/filter match
// across the framework and repositories, blacklist and compile-only
// exclusion, hook filtering with framework reinstatement, preference and
// tie-break ordering, self-preference.
func (c *Context) findProviders(req *capability.Requirement) []*capability.Capability {
	var candidates []*capability.Capability
	meta := make(map[*capability.Capability]candidateMeta)

	// Framework capabilities rank as a zero-th, always-first repository.
	if c.framework != nil {
		for _, cap := range c.framework.Capabilities(req.Namespace()) {
			if req.Matches(cap) {
				candidates = append(candidates, cap)
				meta[cap] = candidateMeta{fwRank: 0}
			}
		}
	}

	for _, repo := range c.repos {
		found, err := repo.Find(c.ctx, []*capability.Requirement{req})
		if err != nil {
			c.log.Warn("repository query failed", "repository", repo.Name(), "error", err)
			continue
		}
		for _, cap := range found[req] {
			res := cap.Resource()
			if res == nil || res == c.frameworkSource {
				continue
			}
			if res.IsCompileOnly() {
				continue
			}
			if !req.Matches(cap) {
				continue
			}
			if c.isBlacklisted(res) {
				continue
			}
			candidates = append(candidates, cap)
			meta[cap] = candidateMeta{
				fwRank: 1,
				pref:   c.preferenceBucket(res),
				caps:   len(res.Capabilities("")),
				reqs:   len(res.Requirements("")),
			}
		}
	}

	if len(c.hooks) > 0 && len(candidates) > 0 {
		candidates = c.applyHooks(req, candidates, meta)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := meta[candidates[i]], meta[candidates[j]]
		if a.fwRank != b.fwRank {
			return a.fwRank < b.fwRank
		}
		if a.pref != b.pref {
			return a.pref < b.pref
		}
		if a.caps != b.caps {
			return a.caps > b.caps
		}
		return a.reqs < b.reqs
	})

	// A matching capability on the requiring resource itself goes first.
	if owner := req.Resource(); owner != nil {
		var self, rest []*capability.Capability
		for _, cap := range candidates {
			if cap.Resource() == owner {
				self = append(self, cap)
			} else {
				rest = append(rest, cap)
			}
		}
		if len(self) > 0 {
			candidates = append(self, rest...)
		}
	}
	return candidates
}

// applyHooks runs the registered candidate filters, then reinstates any
// framework-owned candidates a hook removed.
func (c *Context) applyHooks(req *capability.Requirement, candidates []*capability.Capability, meta map[*capability.Capability]candidateMeta) []*capability.Capability {
	var protected []*capability.Capability
	for _, cap := range candidates {
		if c.framework != nil && cap.Resource() == c.framework {
			protected = append(protected, cap)
		}
	}

	for _, hook := range c.hooks {
		hook(req, &candidates)
	}

	present := make(map[*capability.Capability]bool, len(candidates))
	for _, cap := range candidates {
		present[cap] = true
	}
	var reinstated []*capability.Capability
	for _, cap := range protected {
		if !present[cap] {
			reinstated = append(reinstated, cap)
		}
	}
	if len(reinstated) > 0 {
		candidates = append(reinstated, candidates...)
	}

	// Drop anything a hook injected that was never a pipeline candidate.
	out := candidates[:0]
	for _, cap := range candidates {
		if _, ok := meta[cap]; ok {
			out = append(out, cap)
		}
	}
	return out
}

// preferenceBucket returns the index of the first preference pattern the
// resource's identity name matches, or one past the end for no match.
func (c *Context) preferenceBucket(res *capability.Resource) int {
	name := res.IdentityName()
	for i, pattern := range c.model.Preferences {
		if ok, _ := path.Match(pattern, name); ok {
			return i
		}
	}
	return len(c.model.Preferences)
}

// isBlacklisted reports whether any blacklist requirement matches one of the
// resource's capabilities in that requirement's namespace. Results are
// cached per resource for the lifetime of the context.
func (c *Context) isBlacklisted(res *capability.Resource) bool {
	if len(c.blacklist) == 0 {
		return false
	}
	if hit, ok := c.blacklistCache[res]; ok {
		return hit
	}
	hit := false
	for _, bl := range c.blacklist {
		for _, cap := range res.Capabilities(bl.Namespace()) {
			if bl.Matches(cap) {
				hit = true
				break
			}
		}
		if hit {
			break
		}
	}
	c.blacklistCache[res] = hit
	return hit
}

// fork creates a Context for the second resolution pass: same model,
// repositories, hooks and selected framework, fresh per-pass scratch state.
func (c *Context) fork() *Context {
	return &Context{
		model:           c.model,
		repos:           c.repos,
		log:             c.log,
		hooks:           c.hooks,
		ctx:             c.ctx,
		input:           c.input,
		framework:       c.framework,
		frameworkSource: c.frameworkSource,
		mandatory:       c.mandatory,
		blacklist:       c.blacklist,
		effective:       c.effective,
		blacklistCache:  make(map[*capability.Resource]bool),
		initialized:     true,
	}
}

// Ensure Context implements ResolveContext.
var _ ResolveContext = (*Context)(nil)
