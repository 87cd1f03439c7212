package graph

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	initHeader       = "%%{init: {'theme': 'base', 'flowchart': {'curve': 'basis', 'htmlLabels': true}}}%%"
	branchesSubgraph = "git_branches"
	targetsSubgraph  = "deployment_targets"
)

var subgraphStyles = map[string]string{
	branchesSubgraph: "fill:#F3F3F3,color:#181818,stroke:#C9C9C9,stroke-width:1px",
	targetsSubgraph:  "fill:#EAF5FE,color:#014486,stroke:#0176D3,stroke-width:1px,stroke-dasharray:5",
}

const groupSubgraphStyle = "fill:#F8F8F8,color:#444444,stroke:#AEAEAE,stroke-width:1px,stroke-dasharray:3"

// emitter accumulates lines and remembers which classes and subgraphs were referenced.
type emitter struct {
	lines     []string
	classes   map[NodeClass]bool
	subgraphs []string
	styles    map[string]string
}

func emit(nodes []Node, links []Link, opts Options) []string {
	e := &emitter{
		classes: make(map[NodeClass]bool),
		styles:  make(map[string]string),
	}
	if opts.Wrap {
		e.add("```mermaid")
	}
	e.add(initHeader)
	e.add("flowchart LR")

	var branchNodes, ungrouped []Node
	groups := make(map[string][]Node)
	var groupOrder []string
	for _, n := range nodes {
		switch {
		case n.Kind == KindBranch:
			branchNodes = append(branchNodes, n)
		case n.Group == "":
			ungrouped = append(ungrouped, n)
		default:
			if _, seen := groups[n.Group]; !seen {
				groupOrder = append(groupOrder, n.Group)
			}
			groups[n.Group] = append(groups[n.Group], n)
		}
	}

	e.subgraph(branchesSubgraph, "Git Branches", subgraphStyles[branchesSubgraph], branchNodes, nodeShapeBranch)
	e.subgraph(targetsSubgraph, "Deployment Targets", subgraphStyles[targetsSubgraph], ungrouped, nodeShapeTarget)
	taken := map[string]bool{branchesSubgraph: true, targetsSubgraph: true}
	for _, n := range nodes {
		taken[n.Name] = true
	}
	for _, group := range groupOrder {
		id := reserveName(taken, group+"_targets")
		e.subgraph(id, group+" targets", groupSubgraphStyle, groups[group], nodeShapeTarget)
	}

	ordered := orderLinks(links)
	for _, l := range ordered {
		e.add(linkLine(l))
	}

	for _, class := range classOrder {
		if e.classes[class] {
			e.add(fmt.Sprintf("classDef %s %s", class, classDefs[class]))
		}
	}
	for _, name := range e.subgraphs {
		e.add(fmt.Sprintf("style %s %s", name, e.styles[name]))
	}

	indices := make(map[LinkType][]string)
	for i, l := range ordered {
		indices[l.Type] = append(indices[l.Type], strconv.Itoa(i))
	}
	for _, t := range linkTypeOrder {
		if idx := indices[t]; len(idx) > 0 {
			e.add(fmt.Sprintf("linkStyle %s %s", strings.Join(idx, ","), linkStyles[t]))
		}
	}

	if opts.Wrap {
		e.add("```")
	}
	return e.lines
}

// reserveName returns base, or base with a numeric suffix, so that subgraph
// ids never repeat a node id or another subgraph id.
func reserveName(taken map[string]bool, base string) string {
	name := base
	for i := 2; taken[name]; i++ {
		name = fmt.Sprintf("%s_%d", base, i)
	}
	taken[name] = true
	return name
}

func (e *emitter) add(line string) {
	e.lines = append(e.lines, line)
}

// subgraph emits a subgraph block; empty subgraphs are omitted.
func (e *emitter) subgraph(name, title, style string, nodes []Node, shape func(Node) string) {
	if len(nodes) == 0 {
		return
	}
	e.add(fmt.Sprintf(`subgraph %s ["%s"]`, name, escapeLabel(title)))
	for _, n := range nodes {
		e.add("    " + shape(n) + ":::" + string(n.Class))
		e.classes[n.Class] = true
	}
	e.add("end")
	e.subgraphs = append(e.subgraphs, name)
	e.styles[name] = style
}

func nodeShapeBranch(n Node) string {
	return fmt.Sprintf(`%s["%s"]`, n.Name, escapeLabel(n.Label))
}

func nodeShapeTarget(n Node) string {
	return fmt.Sprintf(`%s(["%s"])`, n.Name, escapeLabel(n.Label))
}

// orderLinks groups links by category while keeping their relative order.
func orderLinks(links []Link) []Link {
	ordered := append([]Link(nil), links...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Type.category() < ordered[j].Type.category()
	})
	return ordered
}

func linkLine(l Link) string {
	label := escapeLabel(l.Label)
	if l.Type == LinkPushPull {
		return fmt.Sprintf(`%s <-. "%s" .-> %s`, l.Source, label, l.Target)
	}
	return fmt.Sprintf(`%s %s|"%s"| %s`, l.Source, l.Type.arrow(), label, l.Target)
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// MajorOnly returns a copy restricted to main and major branches and their
// deployment targets. Links are kept only when both endpoints survive.
func (d *Diagram) MajorOnly() *Diagram {
	kept := make(map[string]bool)
	var nodes []Node
	for _, n := range d.Nodes {
		switch n.Class {
		case ClassGitMain, ClassGitMajor, ClassSalesforceProd, ClassSalesforceMajor:
			nodes = append(nodes, n)
			kept[n.Name] = true
		}
	}

	var links []Link
	for _, l := range d.Links {
		if kept[l.Source] && kept[l.Target] {
			links = append(links, l)
		}
	}

	return &Diagram{
		Nodes:    nodes,
		Links:    links,
		Lines:    emit(nodes, links, d.opts),
		Warnings: d.Warnings,
		opts:     d.opts,
	}
}
