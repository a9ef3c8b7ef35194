// Package depgraph builds the dependency graph of a checked mod list.
package depgraph

import (
	"sort"

	"modcheck/internal/mods"
)

type NodeType string

const (
	NodeMissing    NodeType = "missing"
	NodeLeaf       NodeType = "no-dependencies"
	NodeDependency NodeType = "dependency"
)

const (
	LinkDependency = "dependency"
	LinkMissing    = "missing"
)

// Node is one checked mod. Level counts the results that depend on it.
type Node struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	SizeMB float64  `json:"size"`
	Type   NodeType `json:"type"`
	Level  int      `json:"level"`
}

type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// Graph holds only dependencies between mods present in the results.
type Graph struct {
	Nodes []Node   `json:"nodes"`
	Links []Link   `json:"links"`
	Cycle []string `json:"cycle,omitempty"`

	deps  map[string][]string // id -> in-result dependency ids, page order
	sizes map[string]float64
}

// Build derives the graph from results. Results with a duplicate id after
// the first are ignored.
func Build(results []mods.CheckResult) *Graph {
	g := &Graph{
		Nodes: []Node{},
		Links: []Link{},
		deps:  map[string][]string{},
		sizes: map[string]float64{},
	}
	byID := make(map[string]mods.CheckResult, len(results))
	var order []string
	for _, r := range results {
		id := mods.NormalizeID(r.ModID)
		if _, ok := byID[id]; ok {
			continue
		}
		byID[id] = r
		order = append(order, id)
		g.sizes[id] = r.SizeMB
	}

	level := map[string]int{}
	for _, id := range order {
		seen := map[string]bool{}
		for _, d := range byID[id].Dependencies {
			dep := mods.NormalizeID(d.ModID)
			if seen[dep] {
				continue
			}
			seen[dep] = true
			level[dep]++
			if _, ok := byID[dep]; ok && dep != id {
				g.deps[id] = append(g.deps[id], dep)
			}
		}
	}

	for _, id := range order {
		r := byID[id]
		n := Node{ID: id, Name: r.Name, SizeMB: r.SizeMB, Level: level[id]}
		switch {
		case r.DependencyCheck.HasMissing:
			n.Type = NodeMissing
		case n.Level == 0:
			n.Type = NodeLeaf
		default:
			n.Type = NodeDependency
		}
		g.Nodes = append(g.Nodes, n)
	}

	for _, id := range order {
		for _, dep := range g.deps[id] {
			if g.redundant(id, dep) {
				continue
			}
			g.Links = append(g.Links, Link{Source: id, Target: dep, Type: LinkDependency})
		}
		for _, d := range byID[id].DependencyCheck.Missing {
			dep := mods.NormalizeID(d.ModID)
			if _, ok := byID[dep]; ok {
				g.Links = append(g.Links, Link{Source: id, Target: dep, Type: LinkMissing})
			}
		}
	}
	g.Cycle = g.cycleNodes()
	return g
}

// redundant reports whether another direct dependency of from reaches to.
func (g *Graph) redundant(from, to string) bool {
	for _, mid := range g.deps[from] {
		if mid != to && g.reaches(mid, to, map[string]bool{from: true}) {
			return true
		}
	}
	return false
}

func (g *Graph) reaches(from, to string, visited map[string]bool) bool {
	if from == to {
		return true
	}
	if visited[from] {
		return false
	}
	visited[from] = true
	for _, next := range g.deps[from] {
		if g.reaches(next, to, visited) {
			return true
		}
	}
	return false
}

// TotalSize returns the size of id plus every mod it transitively depends
// on within the results. Shared dependencies are counted once.
func (g *Graph) TotalSize(id string) float64 {
	id = mods.NormalizeID(id)
	if _, ok := g.sizes[id]; !ok {
		return 0
	}
	visited := map[string]bool{}
	var walk func(string) float64
	walk = func(id string) float64 {
		if visited[id] {
			return 0
		}
		visited[id] = true
		total := g.sizes[id]
		for _, dep := range g.deps[id] {
			total += walk(dep)
		}
		return total
	}
	return walk(id)
}

// cycleNodes runs Kahn's algorithm over the dependency edges and returns the
// sorted ids left on a cycle, or nil when the graph is acyclic.
func (g *Graph) cycleNodes() []string {
	inDegree := make(map[string]int, len(g.sizes))
	dependents := map[string][]string{}
	for id := range g.sizes {
		inDegree[id] = len(g.deps[id])
		for _, dep := range g.deps[id] {
			dependents[dep] = append(dependents[dep], id)
		}
	}
	var queue []string
	for id, d := range inDegree {
		if d == 0 {
			queue = append(queue, id)
		}
	}
	processed := 0
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		processed++
		for _, v := range dependents[u] {
			inDegree[v]--
			if inDegree[v] == 0 {
				queue = append(queue, v)
			}
		}
	}
	if processed == len(inDegree) {
		return nil
	}

	// Nodes left over either sit on a cycle or depend on one. Peel off those
	// no remaining node depends on until the set is stable.
	remaining := map[string]bool{}
	for id, d := range inDegree {
		if d > 0 {
			remaining[id] = true
		}
	}
	for changed := true; changed; {
		changed = false
		for id := range remaining {
			dependedOn := false
			for _, v := range dependents[id] {
				if remaining[v] {
					dependedOn = true
					break
				}
			}
			if !dependedOn {
				delete(remaining, id)
				changed = true
			}
		}
	}
	out := make([]string, 0, len(remaining))
	for id := range remaining {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
