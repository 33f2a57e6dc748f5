// Package graph derives a package-level link graph from the build index:
// package A depends on package B when an object of A has an undefined symbol
// whose definer lives in B.
package graph

import (
	"sort"
)

// Index is the read side of the build index the graph is derived from.
type Index interface {
	Packages() []string
	Files(pkg string) []string
	EntryPoints(pkg string) []string
	Undefined(object string) []string
	Definer(sym string) (string, bool)
	Package(object string) (string, bool)
}

type Package struct {
	Name        string
	Objects     int
	EntryPoints int
}

// Edge carries the number of distinct symbols From takes from To.
type Edge struct {
	From    string
	To      string
	Symbols int
}

type Graph struct {
	packages map[string]*Package
	edges    map[string]map[string]map[string]bool // from -> to -> symbols
}

func New() *Graph {
	return &Graph{
		packages: make(map[string]*Package),
		edges:    make(map[string]map[string]map[string]bool),
	}
}

// FromIndex builds the graph over every recorded package. References
// resolved inside the same package are not edges.
func FromIndex(idx Index) *Graph {
	g := New()
	for _, pkg := range idx.Packages() {
		files := idx.Files(pkg)
		g.packages[pkg] = &Package{
			Name:        pkg,
			Objects:     len(files),
			EntryPoints: len(idx.EntryPoints(pkg)),
		}
		for _, obj := range files {
			for _, sym := range idx.Undefined(obj) {
				definer, ok := idx.Definer(sym)
				if !ok {
					continue
				}
				to, ok := idx.Package(definer)
				if !ok || to == pkg {
					continue
				}
				g.addEdge(pkg, to, sym)
			}
		}
	}
	return g
}

func (g *Graph) AddPackage(p Package) {
	cp := p
	g.packages[p.Name] = &cp
}

func (g *Graph) addEdge(from, to, sym string) {
	if g.edges[from] == nil {
		g.edges[from] = make(map[string]map[string]bool)
	}
	if g.edges[from][to] == nil {
		g.edges[from][to] = make(map[string]bool)
	}
	g.edges[from][to][sym] = true
}

// AddEdge records that from uses sym defined in to.
func (g *Graph) AddEdge(from, to, sym string) {
	g.addEdge(from, to, sym)
}

// Packages returns packages sorted by name.
func (g *Graph) Packages() []Package {
	out := make([]Package, 0, len(g.packages))
	for _, p := range g.packages {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Edges returns every edge sorted by (From, To).
func (g *Graph) Edges() []Edge {
	var out []Edge
	for from, targets := range g.edges {
		for to, syms := range targets {
			out = append(out, Edge{From: from, To: to, Symbols: len(syms)})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// Dependencies lists the packages pkg takes symbols from, sorted.
func (g *Graph) Dependencies(pkg string) []string {
	out := make([]string, 0, len(g.edges[pkg]))
	for to := range g.edges[pkg] {
		out = append(out, to)
	}
	sort.Strings(out)
	return out
}

func (g *Graph) nodeNames() []string {
	names := make(map[string]bool, len(g.packages))
	for name := range g.packages {
		names[name] = true
	}
	for from, targets := range g.edges {
		names[from] = true
		for to := range targets {
			names[to] = true
		}
	}
	out := make([]string, 0, len(names))
	for name := range names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
