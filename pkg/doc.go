// Package pkg provides the core libraries for bnd capability resolution.
//
// # Overview
//
// bnd resolves a set of requirements against capability repositories and
// reports which resources a runtime needs and why. The pkg directory is
// organized around that flow:
//
//  1. [capability] - the graph model: Resource, Capability, Requirement, Wire
//  2. [filter] / [version] - attribute filters and version ranges
//  3. [repository] - index repositories (file, HTTP, MongoDB)
//  4. [resolver] / [solver] - selection policy, orchestration, diagnosis
//  5. [render] - wiring graphs as DOT, SVG and PNG
//
// # Architecture
//
// The typical data flow through bnd:
//
//	runfile (TOML) + repositories (index files, HTTP, Mongo)
//	         ↓
//	    [resolver] Context (candidate policy, framework selection)
//	         ↓
//	    [solver] Solve (mandatory closure)
//	         ↓
//	    [resolver] Process (two passes, optional discovery, reasons)
//	         ↓
//	    Result → text report or [render] wiring graph
//
// Supporting packages: [cache] (file, null, Redis), [httputil] (bounded
// retry), [observability] (lifecycle hooks), [errors] (structured codes),
// [buildinfo] (ldflags version stamping).
package pkg
