// Package capability defines the module graph model used by the resolver.
//
// The model mirrors a generic capability/requirement contract: a [Resource]
// is an indivisible unit that offers typed facts ([Capability]) and declares
// typed needs ([Requirement]). Capabilities and requirements belong to
// exactly one owning resource and are immutable once built. A [Wire] is a
// satisfied-requirement edge from a requiring resource to the capability
// that provides it.
//
// # Namespaces
//
// Capabilities and requirements are partitioned into namespaces: only a
// capability in the same namespace can satisfy a requirement. The built-in
// namespaces are:
//
//	bnd.identity     who a resource is (name, version, type)
//	bnd.package      an exported code package
//	bnd.environment  an execution-environment grant
//	bnd.host         fragment attachment to a host resource
//
// Arbitrary further namespaces are allowed; the resolver treats them
// uniformly.
//
// # Construction
//
// Resources are created through a [Builder], which enforces the ownership
// invariant:
//
//	b := capability.NewBuilder()
//	b.Identity("org.example.app", version.MustParse("1.2.0"), "")
//	b.AddCapability(capability.NamespacePackage,
//	    map[string]any{capability.NamespacePackage: "org/example/api"}, nil)
//	b.AddRequirement(capability.NamespacePackage,
//	    map[string]string{capability.DirectiveFilter: "(bnd.package=org/example/util)"})
//	res := b.Build()
//
// Standalone requirements (top-level declarations, blacklist entries) can be
// created with [NewRequirement]; they have no owning resource.
package capability
