package solver_test

import (
	"context"
	"errors"
	"testing"

	"github.com/yarmol/bnd/pkg/capability"
	"github.com/yarmol/bnd/pkg/repository"
	"github.com/yarmol/bnd/pkg/resolver"
	"github.com/yarmol/bnd/pkg/solver"
	"github.com/yarmol/bnd/pkg/version"
)

func provider(identity, pkg string) *capability.Resource {
	return capability.NewBuilder().
		Identity(identity, version.MustParse("1.0.0"), "").
		AddCapability(capability.NamespacePackage, map[string]any{
			capability.NamespacePackage: pkg,
		}, nil).
		Build()
}

func consumer(identity, pkg string, requires ...string) *capability.Resource {
	b := capability.NewBuilder().
		Identity(identity, version.MustParse("1.0.0"), "").
		AddCapability(capability.NamespacePackage, map[string]any{
			capability.NamespacePackage: pkg,
		}, nil)
	for _, dep := range requires {
		b.AddRequirement(capability.NamespacePackage, map[string]string{
			capability.DirectiveFilter: "(bnd.package=" + dep + ")",
		})
	}
	return b.Build()
}

func newContext(t *testing.T, requires []string, resources ...*capability.Resource) *resolver.Context {
	t.Helper()
	model := &resolver.RunModel{}
	for _, pkg := range requires {
		model.Requires = append(model.Requires, resolver.RequirementSpec{
			Namespace: capability.NamespacePackage,
			Filter:    "(bnd.package=" + pkg + ")",
		})
	}
	rc := resolver.NewContext(model, []repository.Repository{
		repository.NewStaticRepository("main", resources...),
	})
	if err := rc.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return rc
}

func TestSolveClosure(t *testing.T) {
	app := consumer("com.app", "com.app.api", "com.lib.api")
	lib := provider("com.lib", "com.lib.api")
	rc := newContext(t, []string{"com.app.api"}, app, lib)

	wiring, err := solver.New().Solve(context.Background(), rc)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	// Every closure resource is a key, leaves included.
	for _, res := range []*capability.Resource{rc.InputResource(), app, lib} {
		if _, ok := wiring[res]; !ok {
			t.Errorf("wiring missing key %v", res)
		}
	}
	if n := len(wiring[app]); n != 1 {
		t.Errorf("len(wiring[app]) = %d, want 1", n)
	}
	if n := len(wiring[lib]); n != 0 {
		t.Errorf("len(wiring[lib]) = %d, want 0", n)
	}
	if w := wiring[app][0]; w.Provider() != lib {
		t.Errorf("app wired to %v, want com.lib", w.Provider())
	}
}

func TestSolveCycle(t *testing.T) {
	a := consumer("com.a", "com.a.api", "com.b.api")
	b := consumer("com.b", "com.b.api", "com.a.api")
	rc := newContext(t, []string{"com.a.api"}, a, b)

	wiring, err := solver.New().Solve(context.Background(), rc)
	if err != nil {
		t.Fatalf("Solve on cycle: %v", err)
	}
	if len(wiring[a]) != 1 || len(wiring[b]) != 1 {
		t.Error("both cycle members should be wired")
	}
}

func TestSolveBacktracksAcrossCandidates(t *testing.T) {
	// The first-ranked provider of com.api has an unsatisfiable dependency;
	// the solver must fall through to the second. The extra capability
	// ranks com.broken ahead of com.working.
	broken := capability.NewBuilder().
		Identity("com.broken", version.MustParse("1.0.0"), "").
		AddCapability(capability.NamespacePackage, map[string]any{
			capability.NamespacePackage: "com.api",
		}, nil).
		AddCapability(capability.NamespacePackage, map[string]any{
			capability.NamespacePackage: "com.broken.extra",
		}, nil).
		AddRequirement(capability.NamespacePackage, map[string]string{
			capability.DirectiveFilter: "(bnd.package=com.nowhere)",
		}).
		Build()
	working := provider("com.working", "com.api")
	rc := newContext(t, []string{"com.api"}, broken, working)

	wiring, err := solver.New().Solve(context.Background(), rc)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	input := wiring[rc.InputResource()]
	if len(input) != 1 || input[0].Provider() != working {
		t.Errorf("input wired to %v, want com.working", input[0].Provider())
	}
	if _, ok := wiring[broken]; ok {
		t.Error("failed candidate should not be in the wiring")
	}
}

func TestSolveDiscardsAbandonedSubtree(t *testing.T) {
	// com.broken resolves a dependency chain before hitting its
	// unsatisfiable requirement. Falling back to com.working must not
	// leave that chain in the wiring.
	broken := capability.NewBuilder().
		Identity("com.broken", version.MustParse("1.0.0"), "").
		AddCapability(capability.NamespacePackage, map[string]any{
			capability.NamespacePackage: "com.api",
		}, nil).
		AddCapability(capability.NamespacePackage, map[string]any{
			capability.NamespacePackage: "com.broken.extra",
		}, nil).
		AddRequirement(capability.NamespacePackage, map[string]string{
			capability.DirectiveFilter: "(bnd.package=com.sub.api)",
		}).
		AddRequirement(capability.NamespacePackage, map[string]string{
			capability.DirectiveFilter: "(bnd.package=com.nowhere)",
		}).
		Build()
	sub := consumer("com.sub", "com.sub.api", "com.leaf.api")
	leaf := provider("com.leaf", "com.leaf.api")
	working := provider("com.working", "com.api")
	rc := newContext(t, []string{"com.api"}, broken, sub, leaf, working)

	wiring, err := solver.New().Solve(context.Background(), rc)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	input := wiring[rc.InputResource()]
	if len(input) != 1 || input[0].Provider() != working {
		t.Fatalf("input wired to %v, want com.working", input[0].Provider())
	}
	for _, res := range []*capability.Resource{broken, sub, leaf} {
		if _, ok := wiring[res]; ok {
			t.Errorf("abandoned resource %v still in wiring", res)
		}
	}
}

func TestSolveFailure(t *testing.T) {
	rc := newContext(t, []string{"com.missing"})

	_, err := solver.New().Solve(context.Background(), rc)
	var rerr *resolver.ResolutionError
	if !errors.As(err, &rerr) {
		t.Fatalf("err = %T, want *ResolutionError", err)
	}
	if len(rerr.Unresolved) != 1 {
		t.Fatalf("len(Unresolved) = %d, want 1", len(rerr.Unresolved))
	}
	if got := rerr.Unresolved[0].Filter(); got != "(bnd.package=com.missing)" {
		t.Errorf("unresolved filter = %q", got)
	}
}

func TestSolveSkipsOptionalAndNonEffective(t *testing.T) {
	app := capability.NewBuilder().
		Identity("com.app", version.MustParse("1.0.0"), "").
		AddCapability(capability.NamespacePackage, map[string]any{
			capability.NamespacePackage: "com.app.api",
		}, nil).
		AddRequirement(capability.NamespacePackage, map[string]string{
			capability.DirectiveFilter:     "(bnd.package=com.missing)",
			capability.DirectiveResolution: capability.ResolutionOptional,
		}).
		AddRequirement(capability.NamespacePackage, map[string]string{
			capability.DirectiveFilter:    "(bnd.package=com.missing)",
			capability.DirectiveEffective: "active",
		}).
		Build()
	rc := newContext(t, []string{"com.app.api"}, app)

	wiring, err := solver.New().Solve(context.Background(), rc)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if len(wiring[app]) != 0 {
		t.Errorf("len(wiring[app]) = %d, want 0", len(wiring[app]))
	}
}

func TestSolveCancelled(t *testing.T) {
	app := provider("com.app", "com.app.api")
	rc := newContext(t, []string{"com.app.api"}, app)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := solver.New().Solve(ctx, rc); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
