// Package render turns a resolution result into a wiring diagram.
//
// [ToDOT] converts the result to Graphviz DOT: one box per resolved
// resource, one labeled arrow per wire from the requiring resource to the
// providing one. Required resources draw solid, optional discoveries
// dashed.
//
// [RenderSVG] and [RenderPNG] rasterize a DOT string with Graphviz:
//
//	dot := render.ToDOT(result, render.Options{})
//	svg, err := render.RenderSVG(ctx, dot)
package render
