package capability

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/yarmol/bnd/pkg/filter"
	"github.com/yarmol/bnd/pkg/version"
)

// Capability is a typed fact a resource offers: a namespace, a set of
// typed attributes and a set of string directives. Capabilities are
// immutable; the maps returned by accessors must not be modified.
type Capability struct {
	namespace  string
	attributes map[string]any
	directives map[string]string
	resource   *Resource
}

// Namespace returns the capability's namespace.
func (c *Capability) Namespace() string { return c.namespace }

// Attributes returns the attribute map. Callers must treat it as read-only.
func (c *Capability) Attributes() map[string]any { return c.attributes }

// Attribute returns a single attribute value.
func (c *Capability) Attribute(key string) (any, bool) {
	v, ok := c.attributes[key]
	return v, ok
}

// Directives returns the directive map. Callers must treat it as read-only.
func (c *Capability) Directives() map[string]string { return c.directives }

// Directive returns a single directive value, or "" when absent.
func (c *Capability) Directive(key string) string { return c.directives[key] }

// Resource returns the owning resource. It is nil only for capabilities
// still under construction.
func (c *Capability) Resource() *Resource { return c.resource }

func (c *Capability) String() string {
	return fmt.Sprintf("%s%s", c.namespace, formatAttrs(c.attributes))
}

// Requirement is a typed need a resource declares. The filter directive, if
// present, constrains which capability attributes satisfy it. Requirements
// are immutable.
type Requirement struct {
	namespace  string
	directives map[string]string
	resource   *Resource

	filterOnce sync.Once
	filter     *filter.Filter
	filterErr  error
}

// NewRequirement creates a standalone requirement with no owning resource.
// Standalone requirements seed top-level declarations, blacklist entries and
// framework lookups.
func NewRequirement(namespace string, directives map[string]string) *Requirement {
	return &Requirement{namespace: namespace, directives: copyDirectives(directives)}
}

// Namespace returns the requirement's namespace.
func (r *Requirement) Namespace() string { return r.namespace }

// Directives returns the directive map. Callers must treat it as read-only.
func (r *Requirement) Directives() map[string]string { return r.directives }

// Directive returns a single directive value, or "" when absent.
func (r *Requirement) Directive(key string) string { return r.directives[key] }

// Filter returns the filter expression, or "" when the requirement matches
// every capability in its namespace.
func (r *Requirement) Filter() string { return r.directives[DirectiveFilter] }

// Optional reports whether the requirement's resolution mode is optional.
func (r *Requirement) Optional() bool {
	return r.directives[DirectiveResolution] == ResolutionOptional
}

// Effective returns the effective tag, or "" when none was declared.
func (r *Requirement) Effective() string { return r.directives[DirectiveEffective] }

// Resource returns the owning resource, or nil for standalone requirements.
func (r *Requirement) Resource() *Resource { return r.resource }

// Matches reports whether cap satisfies the requirement: same namespace and
// attributes accepted by the filter expression. A malformed filter is
// treated as matching nothing, never as an error.
func (r *Requirement) Matches(cap *Capability) bool {
	if cap == nil || cap.namespace != r.namespace {
		return false
	}
	expr := r.Filter()
	if expr == "" {
		return true
	}
	r.filterOnce.Do(func() {
		r.filter, r.filterErr = filter.Parse(expr)
	})
	if r.filterErr != nil {
		return false
	}
	return r.filter.Matches(cap.attributes)
}

func (r *Requirement) String() string {
	if expr := r.Filter(); expr != "" {
		return fmt.Sprintf("%s: %s", r.namespace, expr)
	}
	return r.namespace
}

// Resource is an indivisible unit of capabilities and requirements sourced
// from a repository. Resources are immutable after Build and are compared by
// pointer identity; logical identity lives in the identity capability.
type Resource struct {
	capabilities []*Capability
	requirements []*Requirement
}

// Capabilities returns the resource's capabilities in declaration order.
// An empty namespace selects all of them. The returned slice must not be
// modified.
func (r *Resource) Capabilities(namespace string) []*Capability {
	if namespace == "" {
		return r.capabilities
	}
	var out []*Capability
	for _, c := range r.capabilities {
		if c.namespace == namespace {
			out = append(out, c)
		}
	}
	return out
}

// Requirements returns the resource's requirements in declaration order.
// An empty namespace selects all of them. The returned slice must not be
// modified.
func (r *Resource) Requirements(namespace string) []*Requirement {
	if namespace == "" {
		return r.requirements
	}
	var out []*Requirement
	for _, req := range r.requirements {
		if req.namespace == namespace {
			out = append(out, req)
		}
	}
	return out
}

// Identity returns the resource's sole identity capability. ok is false
// when the resource exposes zero or more than one identity capability; such
// resources are excluded from identity-sensitive logic and the condition is
// logged by callers.
func (r *Resource) Identity() (id *Capability, ok bool) {
	ids := r.Capabilities(NamespaceIdentity)
	if len(ids) != 1 {
		return nil, false
	}
	return ids[0], true
}

// IdentityName returns the resource name from the identity capability, or
// "" when the identity is absent or ambiguous.
func (r *Resource) IdentityName() string {
	id, ok := r.Identity()
	if !ok {
		return ""
	}
	name, _ := id.attributes[NamespaceIdentity].(string)
	return name
}

// IdentityVersion returns the version from the identity capability, or the
// zero Version when absent.
func (r *Resource) IdentityVersion() version.Version {
	id, ok := r.Identity()
	if !ok {
		return version.Version{}
	}
	v, _ := id.attributes[AttrVersion].(version.Version)
	return v
}

// IsCompileOnly reports whether the identity declares the compile-only
// resource type.
func (r *Resource) IsCompileOnly() bool {
	id, ok := r.Identity()
	if !ok {
		return false
	}
	typ, _ := id.attributes[AttrType].(string)
	return typ == TypeCompileOnly
}

// IsFragment reports whether the resource declares a host requirement and
// therefore cannot be resolved independently.
func (r *Resource) IsFragment() bool {
	return len(r.Requirements(NamespaceHost)) > 0
}

func (r *Resource) String() string {
	id, ok := r.Identity()
	if !ok {
		return "<anonymous>"
	}
	name, _ := id.attributes[NamespaceIdentity].(string)
	if v, vok := id.attributes[AttrVersion].(version.Version); vok {
		return fmt.Sprintf("%s/%s", name, v)
	}
	return name
}

// IdentityKey returns a normalized, resource-independent form of an
// identity capability: the namespace plus its attributes in sorted key
// order. Two resources with equal keys are the same logical module even
// when sourced from different repositories.
func IdentityKey(id *Capability) string {
	return id.namespace + formatAttrs(id.attributes)
}

func formatAttrs(attrs map[string]any) string {
	if len(attrs) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%v", k, attrs[k])
	}
	b.WriteByte('}')
	return b.String()
}

func copyAttrs(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyDirectives(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
