package capability

// Built-in namespaces. The attribute carrying the primary value of a
// namespace uses the namespace itself as its key, so a package capability
// stores the package name under "bnd.package" and an identity capability
// stores the resource name under "bnd.identity".
const (
	// NamespaceIdentity carries a resource's name, version and type.
	// Every well-formed resource exposes exactly one identity capability.
	NamespaceIdentity = "bnd.identity"

	// NamespacePackage marks an exported (capability) or imported
	// (requirement) code package.
	NamespacePackage = "bnd.package"

	// NamespaceEnvironment marks execution-environment grants and needs.
	NamespaceEnvironment = "bnd.environment"

	// NamespaceHost attaches a fragment resource to its host. A fragment
	// is not independently resolvable; its host must be pulled into the
	// mandatory set alongside it.
	NamespaceHost = "bnd.host"
)

// Well-known attribute keys within the identity namespace.
const (
	// AttrVersion is the version attribute, present on identity and
	// package capabilities. Values are version.Version after index
	// loading.
	AttrVersion = "version"

	// AttrType is the resource type attribute on identity capabilities.
	AttrType = "type"
)

// Resource types.
const (
	// TypeCompileOnly marks resources that exist for compilation only.
	// They are never returned as capability providers.
	TypeCompileOnly = "compile-only"
)

// Directive keys shared by capabilities and requirements.
const (
	// DirectiveFilter holds the attribute filter expression of a
	// requirement.
	DirectiveFilter = "filter"

	// DirectiveResolution selects the resolution mode of a requirement:
	// ResolutionMandatory (the default) or ResolutionOptional.
	DirectiveResolution = "resolution"

	// DirectiveEffective tags the resolution pass a requirement
	// participates in. An absent directive means EffectiveResolve.
	DirectiveEffective = "effective"
)

// Values for DirectiveResolution.
const (
	ResolutionMandatory = "mandatory"
	ResolutionOptional  = "optional"
)

// Values for DirectiveEffective. EffectiveResolve is always honored;
// further tags participate only when configured on the resolution context.
const (
	EffectiveResolve = "resolve"
	EffectiveActive  = "active"
)
