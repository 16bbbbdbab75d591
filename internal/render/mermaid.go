// Package render draws graphs as Mermaid flowcharts.
package render

import (
	"fmt"
	"sort"
	"strings"

	"archmap/internal/graph"
	"archmap/internal/model"
)

type kindStyle struct {
	kind      model.ElementKind
	icon      string
	primary   string
	secondary string
}

var kindStyles = []kindStyle{
	{model.KindModule, "fa:fa-folder", "#5D2E8C", "#7B4BAF"},
	{model.KindClass, "fa:fa-cube", "#2962FF", "#5C8AFF"},
	{model.KindConstructor, "fa:fa-play-circle", "#E53935", "#EF5350"},
	{model.KindMethod, "fa:fa-code-branch", "#00C853", "#4CD964"},
	{model.KindFunction, "fa:fa-code-branch", "#00C853", "#4CD964"},
	{model.KindAsyncMethod, "fa:fa-bolt", "#AA00FF", "#CE93D8"},
	{model.KindProperty, "fa:fa-lock", "#FF6D00", "#FFAB40"},
	{model.KindStaticMethod, "fa:fa-cog", "#00B0FF", "#80D8FF"},
	{model.KindClassMethod, "fa:fa-cogs", "#0091EA", "#40C4FF"},
	{model.KindPrivateMethod, "fa:fa-key", "#757575", "#BDBDBD"},
}

const cycleEdgeStyle = "stroke:#D50000,stroke-width:3px"

// Mermaid renders g as a top-down flowchart. Nodes are grouped into one subgraph per
// module and, inside it, one subgraph per enclosing class. Cycle edges are drawn thick
// and red.
func Mermaid(g *graph.Graph) string {
	lines := []string{"flowchart TD", "    %% Nodes"}

	byModule := make(map[string][]graph.Node)
	for _, n := range g.Nodes() {
		byModule[n.Module] = append(byModule[n.Module], n)
	}
	modules := make([]string, 0, len(byModule))
	for name := range byModule {
		modules = append(modules, name)
	}
	sort.Strings(modules)

	ids := make(map[string]string, g.Len())
	next := func(prefix string) string {
		return fmt.Sprintf("%s%d", prefix, len(ids))
	}
	groups := 0

	for _, module := range modules {
		lines = append(lines, fmt.Sprintf("    subgraph mod%d[\"%s\"]", groups, label(module)))
		groups++

		var classOrder []string
		classes := make(map[string][]graph.Node)
		var standalone []graph.Node
		for _, n := range byModule[module] {
			if n.Class == "" {
				standalone = append(standalone, n)
				continue
			}
			if _, ok := classes[n.Class]; !ok {
				classOrder = append(classOrder, n.Class)
			}
			classes[n.Class] = append(classes[n.Class], n)
		}

		for _, class := range classOrder {
			lines = append(lines, fmt.Sprintf("        subgraph cls%d[\"%s\"]", groups, label(model.LastSegment(class))))
			groups++
			for _, n := range classes[class] {
				id := next("n")
				ids[n.ID] = id
				lines = append(lines, "            "+nodeLine(id, n))
			}
			lines = append(lines, "        end")
		}
		for _, n := range standalone {
			id := next("n")
			ids[n.ID] = id
			lines = append(lines, "        "+nodeLine(id, n))
		}
		lines = append(lines, "    end")
	}

	lines = append(lines, "", "    %% Relationships")
	var cycleLinks []string
	link := 0
	for _, e := range g.Edges() {
		from, okFrom := ids[e.From]
		to, okTo := ids[e.To]
		if !okFrom || !okTo {
			continue
		}
		lines = append(lines, "    "+edgeLine(from, to, e))
		if e.InCycle {
			cycleLinks = append(cycleLinks, fmt.Sprint(link))
		}
		link++
	}

	lines = append(lines, "", "    %% Styles")
	for _, s := range kindStyles {
		lines = append(lines, fmt.Sprintf("    classDef %s color:#ffffff, fill:%s, stroke:%s",
			styleClass(s.kind), s.primary, s.secondary))
	}
	if len(cycleLinks) > 0 {
		lines = append(lines, fmt.Sprintf("    linkStyle %s %s", strings.Join(cycleLinks, ","), cycleEdgeStyle))
	}

	return strings.Join(lines, "\n") + "\n"
}

// Markdown wraps the flowchart in a fenced mermaid block.
func Markdown(g *graph.Graph) string {
	return "```mermaid\n" + Mermaid(g) + "```\n"
}

func nodeLine(id string, n graph.Node) string {
	name := n.Name
	if name == "" {
		name = n.ID
	}
	line := fmt.Sprintf("%s[\"%s %s\"]", id, icon(n.Kind), label(name))
	if n.Kind != "" {
		line += ":::" + styleClass(n.Kind)
	}
	return line
}

func edgeLine(from, to string, e graph.Edge) string {
	arrow := "-->"
	if e.InCycle {
		arrow = "==>"
	}
	switch {
	case e.Kind == "" || e.Kind == model.RelationCalls:
		return fmt.Sprintf("%s %s %s", from, arrow, to)
	case e.Weight > 1:
		return fmt.Sprintf("%s %s|%s x%d| %s", from, arrow, e.Kind, e.Weight, to)
	default:
		return fmt.Sprintf("%s %s|%s| %s", from, arrow, e.Kind, to)
	}
}

func icon(kind model.ElementKind) string {
	for _, s := range kindStyles {
		if s.kind == kind {
			return s.icon
		}
	}
	return "fa:fa-code"
}

func styleClass(kind model.ElementKind) string {
	return strings.ReplaceAll(string(kind), "_", "-")
}

// label escapes text for a quoted Mermaid label.
func label(s string) string {
	return strings.NewReplacer(`"`, "#quot;", "<", "#lt;", ">", "#gt;").Replace(s)
}
