package resolver

import (
	"context"
	"testing"

	"github.com/yarmol/bnd/pkg/capability"
	"github.com/yarmol/bnd/pkg/repository"
	"github.com/yarmol/bnd/pkg/version"
)

// bundle builds a resource exporting one package capability.
func bundle(identity, ver, pkg string) *capability.Resource {
	b := capability.NewBuilder().Identity(identity, version.MustParse(ver), "")
	if pkg != "" {
		b.AddCapability(capability.NamespacePackage, map[string]any{
			capability.NamespacePackage: pkg,
			capability.AttrVersion:      version.MustParse(ver),
		}, nil)
	}
	return b.Build()
}

func framework(ver string) *capability.Resource {
	return capability.NewBuilder().
		Identity("org.framework", version.MustParse(ver), "").
		AddCapability(capability.NamespacePackage, map[string]any{
			capability.NamespacePackage: "org.framework.api",
			capability.AttrVersion:      version.MustParse(ver),
		}, nil).
		Build()
}

func pkgRequirement(pkg string) *capability.Requirement {
	return capability.NewRequirement(capability.NamespacePackage, map[string]string{
		capability.DirectiveFilter: "(" + capability.NamespacePackage + "=" + pkg + ")",
	})
}

func initContext(t *testing.T, model *RunModel, repos []repository.Repository, opts ...Option) *Context {
	t.Helper()
	rc := NewContext(model, repos, opts...)
	if err := rc.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return rc
}

func providerNames(caps []*capability.Capability) []string {
	out := make([]string, len(caps))
	for i, c := range caps {
		out[i] = c.Resource().IdentityName()
	}
	return out
}

func TestFindProvidersSimple(t *testing.T) {
	repo := repository.NewStaticRepository("main", bundle("com.a", "1.0.0", "com.a.api"))
	rc := initContext(t, &RunModel{}, []repository.Repository{repo})

	caps := rc.FindProviders(pkgRequirement("com.a.api"))
	if len(caps) != 1 {
		t.Fatalf("len(caps) = %d, want 1", len(caps))
	}
	if caps[0].Resource().IdentityName() != "com.a" {
		t.Errorf("provider = %s, want com.a", caps[0].Resource().IdentityName())
	}

	if caps := rc.FindProviders(pkgRequirement("org.missing")); len(caps) != 0 {
		t.Errorf("unsatisfiable requirement returned %d candidates", len(caps))
	}
}

func TestRepositoryOrderPreserved(t *testing.T) {
	r1 := repository.NewStaticRepository("r1", bundle("com.first", "1.0.0", "com.api"))
	r2 := repository.NewStaticRepository("r2", bundle("com.second", "1.0.0", "com.api"))

	rc := initContext(t, &RunModel{}, []repository.Repository{r1, r2})
	got := providerNames(rc.FindProviders(pkgRequirement("com.api")))
	if got[0] != "com.first" || got[1] != "com.second" {
		t.Errorf("order = %v, want [com.first com.second]", got)
	}

	reversed := initContext(t, &RunModel{}, []repository.Repository{r2, r1})
	got = providerNames(reversed.FindProviders(pkgRequirement("com.api")))
	if got[0] != "com.second" || got[1] != "com.first" {
		t.Errorf("reversed order = %v, want [com.second com.first]", got)
	}
}

func TestBlacklistExcludesSoleProvider(t *testing.T) {
	repo := repository.NewStaticRepository("main", bundle("com.bad", "1.0.0", "com.api"))
	model := &RunModel{
		Blacklist: []RequirementSpec{{
			Namespace: capability.NamespaceIdentity,
			Filter:    "(bnd.identity=com.bad)",
		}},
	}
	rc := initContext(t, model, []repository.Repository{repo})
	if caps := rc.FindProviders(pkgRequirement("com.api")); len(caps) != 0 {
		t.Errorf("blacklisted sole provider returned %d candidates", len(caps))
	}
}

func TestBlacklistAffectsFrameworkSelection(t *testing.T) {
	repo := repository.NewStaticRepository("main", framework("4.0.0"), framework("4.1.0"))
	model := &RunModel{
		Framework: &FrameworkSpec{Identity: "org.framework", Range: "[4,5)"},
		Blacklist: []RequirementSpec{{
			Namespace: capability.NamespaceIdentity,
			Filter:    "(&(bnd.identity=org.framework)(version>=4.1))",
		}},
	}
	rc := initContext(t, model, []repository.Repository{repo})
	if got := rc.FrameworkResource().IdentityVersion().String(); got != "4.0.0" {
		t.Errorf("framework version = %s, want 4.0.0", got)
	}
}

func TestFrameworkHighestVersionWins(t *testing.T) {
	repo := repository.NewStaticRepository("main",
		framework("4.0.0"), framework("4.2.0"), framework("4.1.0"))
	model := &RunModel{
		Framework: &FrameworkSpec{Identity: "org.framework", Range: "[4,5)"},
	}
	rc := initContext(t, model, []repository.Repository{repo})
	if got := rc.FrameworkResource().IdentityVersion().String(); got != "4.2.0" {
		t.Errorf("framework version = %s, want 4.2.0", got)
	}
	if !rc.IsMandatory(rc.FrameworkResource()) {
		t.Error("framework should be mandatory")
	}
	if !rc.IsMandatory(rc.InputResource()) {
		t.Error("input resource should be mandatory")
	}
}

func TestFrameworkNotFound(t *testing.T) {
	repo := repository.NewStaticRepository("main", framework("3.0.0"))
	model := &RunModel{
		Framework: &FrameworkSpec{Identity: "org.framework", Range: "[4,5)"},
	}
	rc := NewContext(model, []repository.Repository{repo})
	if err := rc.Init(context.Background()); err == nil {
		t.Fatal("Init should fail when no framework matches the range")
	}
}

func TestFrameworkCapabilitiesRankFirst(t *testing.T) {
	repo := repository.NewStaticRepository("main",
		framework("4.0.0"),
		bundle("com.other", "1.0.0", "org.framework.api"))
	model := &RunModel{
		Framework: &FrameworkSpec{Identity: "org.framework", Range: ""},
	}
	rc := initContext(t, model, []repository.Repository{repo})

	caps := rc.FindProviders(pkgRequirement("org.framework.api"))
	if len(caps) != 2 {
		t.Fatalf("len(caps) = %d, want 2", len(caps))
	}
	if caps[0].Resource() != rc.FrameworkResource() {
		t.Error("framework capability should rank first")
	}
	// The chosen source resource is not offered again as a repository
	// candidate.
	for _, c := range caps[1:] {
		if c.Resource().IdentityName() == "org.framework" {
			t.Error("framework source resource offered as repository candidate")
		}
	}
}

func TestEffectiveGate(t *testing.T) {
	repo := repository.NewStaticRepository("main", bundle("com.a", "1.0.0", "com.api"))

	activeReq := capability.NewRequirement(capability.NamespacePackage, map[string]string{
		capability.DirectiveFilter:    "(bnd.package=com.api)",
		capability.DirectiveEffective: "active",
	})

	// Unconfigured tag: not effective.
	rc := initContext(t, &RunModel{}, []repository.Repository{repo})
	if caps := rc.FindProviders(activeReq); len(caps) != 0 {
		t.Errorf("unconfigured tag returned %d candidates", len(caps))
	}
	if rc.IsEffective(activeReq) {
		t.Error("IsEffective = true for unconfigured tag")
	}

	// Configured tag: effective.
	rc = initContext(t, &RunModel{
		EffectiveTags: []EffectiveTag{{Tag: "active"}},
	}, []repository.Repository{repo})
	if caps := rc.FindProviders(activeReq); len(caps) != 1 {
		t.Errorf("configured tag returned %d candidates, want 1", len(caps))
	}

	// Configured tag with the requirement's namespace skipped.
	rc = initContext(t, &RunModel{
		EffectiveTags: []EffectiveTag{{
			Tag:  "active",
			Skip: []string{capability.NamespacePackage, "other.ns"},
		}},
	}, []repository.Repository{repo})
	if caps := rc.FindProviders(activeReq); len(caps) != 0 {
		t.Errorf("skipped namespace returned %d candidates", len(caps))
	}

	// The default resolve tag always passes.
	resolveReq := capability.NewRequirement(capability.NamespacePackage, map[string]string{
		capability.DirectiveFilter:    "(bnd.package=com.api)",
		capability.DirectiveEffective: capability.EffectiveResolve,
	})
	if caps := rc.FindProviders(resolveReq); len(caps) != 1 {
		t.Errorf("resolve tag returned %d candidates, want 1", len(caps))
	}
}

func TestOptionalRequirementsYieldNoCandidates(t *testing.T) {
	repo := repository.NewStaticRepository("main", bundle("com.a", "1.0.0", "com.api"))
	rc := initContext(t, &RunModel{}, []repository.Repository{repo})

	opt := capability.NewRequirement(capability.NamespacePackage, map[string]string{
		capability.DirectiveFilter:     "(bnd.package=com.api)",
		capability.DirectiveResolution: capability.ResolutionOptional,
	})
	if caps := rc.FindProviders(opt); len(caps) != 0 {
		t.Errorf("optional requirement returned %d candidates", len(caps))
	}
	// The unrestricted pipeline still sees the provider.
	if caps := rc.findProviders(opt); len(caps) != 1 {
		t.Errorf("unrestricted lookup returned %d candidates, want 1", len(caps))
	}
}

func TestHookFiltering(t *testing.T) {
	repo := repository.NewStaticRepository("main",
		bundle("com.keep", "1.0.0", "com.api"),
		bundle("com.drop", "1.0.0", "com.api"))

	hook := func(req *capability.Requirement, candidates *[]*capability.Capability) {
		kept := (*candidates)[:0]
		for _, c := range *candidates {
			if c.Resource().IdentityName() != "com.drop" {
				kept = append(kept, c)
			}
		}
		*candidates = kept
	}

	rc := initContext(t, &RunModel{}, []repository.Repository{repo}, WithCandidateFilter(hook))
	got := providerNames(rc.FindProviders(pkgRequirement("com.api")))
	if len(got) != 1 || got[0] != "com.keep" {
		t.Errorf("candidates = %v, want [com.keep]", got)
	}
}

func TestHookCannotFilterFramework(t *testing.T) {
	repo := repository.NewStaticRepository("main",
		framework("4.0.0"),
		bundle("com.other", "1.0.0", "org.framework.api"))
	model := &RunModel{
		Framework: &FrameworkSpec{Identity: "org.framework", Range: ""},
	}

	dropAll := func(req *capability.Requirement, candidates *[]*capability.Capability) {
		*candidates = nil
	}

	rc := initContext(t, model, []repository.Repository{repo}, WithCandidateFilter(dropAll))
	caps := rc.FindProviders(pkgRequirement("org.framework.api"))
	if len(caps) != 1 {
		t.Fatalf("len(caps) = %d, want the reinstated framework capability", len(caps))
	}
	if caps[0].Resource() != rc.FrameworkResource() {
		t.Error("surviving candidate should be the framework capability")
	}
}

func TestTieBreakLaw(t *testing.T) {
	// A: 2 capabilities, 1 requirement. B: 2 capabilities, 0 requirements.
	// C: 1 capability, 0 requirements. Expected order: [B, A, C].
	a := capability.NewBuilder().
		Identity("com.a", version.MustParse("1.0.0"), "").
		AddCapability(capability.NamespacePackage, map[string]any{
			capability.NamespacePackage: "com.api",
		}, nil).
		AddRequirement(capability.NamespacePackage, map[string]string{
			capability.DirectiveFilter: "(bnd.package=some.dep)",
		}).
		Build()
	b := capability.NewBuilder().
		Identity("com.b", version.MustParse("1.0.0"), "").
		AddCapability(capability.NamespacePackage, map[string]any{
			capability.NamespacePackage: "com.api",
		}, nil).
		Build()
	c := capability.NewBuilder().
		AddCapability(capability.NamespacePackage, map[string]any{
			capability.NamespacePackage: "com.api",
		}, nil).
		Build()

	repo := repository.NewStaticRepository("main", a, b, c)
	rc := initContext(t, &RunModel{}, []repository.Repository{repo})

	caps := rc.FindProviders(pkgRequirement("com.api"))
	if len(caps) != 3 {
		t.Fatalf("len(caps) = %d, want 3", len(caps))
	}
	want := []*capability.Resource{b, a, c}
	for i, cap := range caps {
		if cap.Resource() != want[i] {
			t.Errorf("caps[%d] owned by %v, want %v", i, cap.Resource(), want[i])
		}
	}
}

func TestPreferences(t *testing.T) {
	x1 := bundle("x.1", "1.0.0", "com.api")
	x2 := bundle("x.2", "1.0.0", "com.api")
	x3 := bundle("x.3", "1.0.0", "com.api")
	repo := repository.NewStaticRepository("main", x1, x2, x3)

	model := &RunModel{Preferences: []string{"x.1", "x.3"}}
	rc := initContext(t, model, []repository.Repository{repo})

	got := providerNames(rc.FindProviders(pkgRequirement("com.api")))
	want := []string{"x.1", "x.3", "x.2"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestPreferenceGlob(t *testing.T) {
	preferred := bundle("com.vendor.a", "1.0.0", "com.api")
	other := bundle("org.misc", "1.0.0", "com.api")
	repo := repository.NewStaticRepository("main", other, preferred)

	model := &RunModel{Preferences: []string{"com.vendor.*"}}
	rc := initContext(t, model, []repository.Repository{repo})

	got := providerNames(rc.FindProviders(pkgRequirement("com.api")))
	if got[0] != "com.vendor.a" {
		t.Errorf("order = %v, want com.vendor.a first", got)
	}
}

func TestSelfPreference(t *testing.T) {
	self := capability.NewBuilder().
		Identity("com.self", version.MustParse("1.0.0"), "").
		AddCapability(capability.NamespacePackage, map[string]any{
			capability.NamespacePackage: "com.api",
		}, nil).
		AddRequirement(capability.NamespacePackage, map[string]string{
			capability.DirectiveFilter: "(bnd.package=com.api)",
		}).
		Build()
	// Richer external provider that would otherwise win the tie-break.
	external := capability.NewBuilder().
		Identity("com.external", version.MustParse("1.0.0"), "").
		AddCapability(capability.NamespacePackage, map[string]any{
			capability.NamespacePackage: "com.api",
		}, nil).
		AddCapability(capability.NamespacePackage, map[string]any{
			capability.NamespacePackage: "com.extra",
		}, nil).
		Build()
	repo := repository.NewStaticRepository("main", external, self)
	rc := initContext(t, &RunModel{}, []repository.Repository{repo})

	req := self.Requirements(capability.NamespacePackage)[0]
	caps := rc.FindProviders(req)
	if len(caps) != 2 {
		t.Fatalf("len(caps) = %d, want 2", len(caps))
	}
	if caps[0].Resource() != self {
		t.Error("self-owned capability should rank first")
	}
}

func TestCompileOnlyExcluded(t *testing.T) {
	stub := capability.NewBuilder().
		Identity("com.stub", version.MustParse("1.0.0"), capability.TypeCompileOnly).
		AddCapability(capability.NamespacePackage, map[string]any{
			capability.NamespacePackage: "com.api",
		}, nil).
		Build()
	repo := repository.NewStaticRepository("main", stub)
	rc := initContext(t, &RunModel{}, []repository.Repository{repo})

	if caps := rc.FindProviders(pkgRequirement("com.api")); len(caps) != 0 {
		t.Errorf("compile-only provider returned %d candidates", len(caps))
	}
}

func TestSystemGrants(t *testing.T) {
	repo := repository.NewStaticRepository("main", framework("4.0.0"))
	model := &RunModel{
		Framework:   &FrameworkSpec{Identity: "org.framework", Range: ""},
		Environment: []string{"java-se/1.8"},
		SystemPackages: []SystemPackage{
			{Name: "javax.annotation", Version: "1.3"},
		},
		SystemCapabilities: []CapabilitySpec{{
			Namespace:  "custom.ns",
			Attributes: map[string]any{"custom.ns": "granted"},
		}},
	}
	rc := initContext(t, model, []repository.Repository{repo})

	envReq := capability.NewRequirement(capability.NamespaceEnvironment, map[string]string{
		capability.DirectiveFilter: "(&(bnd.environment=java-se)(version>=1.6))",
	})
	if caps := rc.FindProviders(envReq); len(caps) != 1 {
		t.Errorf("environment grant returned %d candidates, want 1", len(caps))
	} else if caps[0].Resource() != rc.FrameworkResource() {
		t.Error("environment grant should come from the framework")
	}

	ungranted := capability.NewRequirement(capability.NamespaceEnvironment, map[string]string{
		capability.DirectiveFilter: "(bnd.environment=other-ee)",
	})
	if caps := rc.FindProviders(ungranted); len(caps) != 0 {
		t.Errorf("ungranted environment returned %d candidates", len(caps))
	}

	if caps := rc.FindProviders(pkgRequirement("javax.annotation")); len(caps) != 1 {
		t.Errorf("system package returned %d candidates, want 1", len(caps))
	}

	customReq := capability.NewRequirement("custom.ns", map[string]string{
		capability.DirectiveFilter: "(custom.ns=granted)",
	})
	if caps := rc.FindProviders(customReq); len(caps) != 1 {
		t.Errorf("system capability returned %d candidates, want 1", len(caps))
	}
}

func TestDeterminism(t *testing.T) {
	repo := repository.NewStaticRepository("main",
		bundle("com.a", "1.0.0", "com.api"),
		bundle("com.b", "1.0.0", "com.api"),
		bundle("com.c", "1.0.0", "com.api"))
	model := &RunModel{Preferences: []string{"com.b"}}

	first := providerNames(initContext(t, model, []repository.Repository{repo}).
		FindProviders(pkgRequirement("com.api")))
	second := providerNames(initContext(t, model, []repository.Repository{repo}).
		FindProviders(pkgRequirement("com.api")))

	if len(first) != 3 {
		t.Fatalf("len = %d, want 3", len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("orders differ: %v vs %v", first, second)
		}
	}
}
