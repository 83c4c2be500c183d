package capability

import "github.com/yarmol/bnd/pkg/version"

// Builder assembles an immutable Resource. The zero value is ready to use.
type Builder struct {
	res Resource
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder { return &Builder{} }

// AddCapability appends a capability in the given namespace. Attribute and
// directive maps are copied; nil maps are allowed.
func (b *Builder) AddCapability(namespace string, attrs map[string]any, dirs map[string]string) *Builder {
	b.res.capabilities = append(b.res.capabilities, &Capability{
		namespace:  namespace,
		attributes: copyAttrs(attrs),
		directives: copyDirectives(dirs),
		resource:   &b.res,
	})
	return b
}

// AddRequirement appends a requirement in the given namespace. The directive
// map is copied; nil is allowed.
func (b *Builder) AddRequirement(namespace string, dirs map[string]string) *Builder {
	b.res.requirements = append(b.res.requirements, &Requirement{
		namespace:  namespace,
		directives: copyDirectives(dirs),
		resource:   &b.res,
	})
	return b
}

// Identity adds the identity capability. resourceType may be empty for
// ordinary resources.
func (b *Builder) Identity(name string, v version.Version, resourceType string) *Builder {
	attrs := map[string]any{
		NamespaceIdentity: name,
		AttrVersion:       v,
	}
	if resourceType != "" {
		attrs[AttrType] = resourceType
	}
	return b.AddCapability(NamespaceIdentity, attrs, nil)
}

// Build returns the assembled resource. The builder must not be reused.
func (b *Builder) Build() *Resource { return &b.res }
