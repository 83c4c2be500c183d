package render

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/yarmol/bnd/pkg/capability"
	"github.com/yarmol/bnd/pkg/resolver"
)

// Options configures wiring diagram rendering.
type Options struct {
	// Detailed appends the requirement filter to each edge label.
	// When false, edges carry only the namespace.
	Detailed bool
}

// ToDOT converts a resolution result to Graphviz DOT. The resulting string
// can be rendered with [RenderSVG] or [RenderPNG].
//
// Required resources draw as solid boxes, optional discoveries as dashed
// grey ones. Each wire becomes an arrow from the requiring resource to the
// providing one, labeled with the requirement's namespace.
func ToDOT(result *resolver.Result, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph wiring {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  edge [fontsize=10];\n")
	buf.WriteString("\n")

	required := result.RequiredResources()
	optional := result.OptionalResources()

	for _, res := range required {
		fmt.Fprintf(&buf, "  %q;\n", res.String())
	}
	for _, res := range optional {
		fmt.Fprintf(&buf, "  %q [style=\"rounded,filled,dashed\", fillcolor=lightgrey];\n", res.String())
	}

	nodes := make(map[*capability.Resource]bool, len(required)+len(optional))
	for _, res := range required {
		nodes[res] = true
	}
	for _, res := range optional {
		nodes[res] = true
	}

	buf.WriteString("\n")
	seen := make(map[string]bool)
	var edges []string
	addEdges := func(provider *capability.Resource, wires []capability.Wire, dashed bool) {
		for _, w := range wires {
			requirer := w.Requirer()
			// Wires from outside the result (the resolution input) carry no
			// drawable source node.
			if !nodes[requirer] || requirer == provider {
				continue
			}
			line := fmtEdge(requirer.String(), provider.String(), w.Requirement(), dashed, opts.Detailed)
			if seen[line] {
				continue
			}
			seen[line] = true
			edges = append(edges, line)
		}
	}
	for _, res := range required {
		addEdges(res, result.RequiredReasons(res), false)
	}
	for _, res := range optional {
		addEdges(res, result.OptionalReasons(res), true)
	}
	sort.Strings(edges)
	for _, line := range edges {
		buf.WriteString(line)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtEdge(from, to string, req *capability.Requirement, dashed, detailed bool) string {
	label := req.Namespace()
	if detailed {
		if f := req.Filter(); f != "" {
			label += "\n" + f
		}
	}
	attrs := []string{fmt.Sprintf("label=%q", label)}
	if dashed {
		attrs = append(attrs, "style=dashed")
	}
	return fmt.Sprintf("  %q -> %q [%s];\n", from, to, strings.Join(attrs, ", "))
}
