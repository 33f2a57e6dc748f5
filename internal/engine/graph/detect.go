package graph

import (
	"sort"
	"strings"
)

// DetectCycles returns the package cycles found by a depth-first walk in
// name order. Each cycle starts at its smallest package name, so the result
// does not depend on where the walk entered it, and cycles are sorted.
// Cyclic links are legal; they are reported for visibility only.
func (g *Graph) DetectCycles() [][]string {
	var found [][]string
	visited := make(map[string]bool)
	onStack := make(map[string]bool)

	for _, name := range g.nodeNames() {
		if !visited[name] {
			g.findCycles(name, visited, onStack, []string{}, &found)
		}
	}

	seen := make(map[string]bool, len(found))
	cycles := make([][]string, 0, len(found))
	for _, c := range found {
		c = canonicalCycle(c)
		key := strings.Join(c, "\x00")
		if seen[key] {
			continue
		}
		seen[key] = true
		cycles = append(cycles, c)
	}
	sort.Slice(cycles, func(i, j int) bool {
		return strings.Join(cycles[i], "\x00") < strings.Join(cycles[j], "\x00")
	})
	if len(cycles) == 0 {
		return nil
	}
	return cycles
}

// canonicalCycle rotates cycle to start at its smallest package name.
func canonicalCycle(cycle []string) []string {
	start := 0
	for i, pkg := range cycle {
		if pkg < cycle[start] {
			start = i
		}
	}
	out := make([]string, 0, len(cycle))
	out = append(out, cycle[start:]...)
	return append(out, cycle[:start]...)
}

func (g *Graph) findCycles(curr string, visited, onStack map[string]bool, path []string, cycles *[][]string) {
	visited[curr] = true
	onStack[curr] = true
	path = append(path, curr)

	for _, next := range g.Dependencies(curr) {
		if onStack[next] {
			cycleStart := -1
			for i, pkg := range path {
				if pkg == next {
					cycleStart = i
					break
				}
			}
			if cycleStart != -1 {
				cycle := make([]string, len(path)-cycleStart)
				copy(cycle, path[cycleStart:])
				*cycles = append(*cycles, cycle)
			}
		} else if !visited[next] {
			g.findCycles(next, visited, onStack, path, cycles)
		}
	}

	onStack[curr] = false
}

// FindChain returns the shortest dependency path from one package to
// another, if any.
func (g *Graph) FindChain(from, to string) ([]string, bool) {
	if from == to {
		return []string{from}, true
	}

	queue := []string{from}
	visited := map[string]bool{from: true}
	prev := make(map[string]string)

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]

		neighbors := g.Dependencies(curr)
		sort.Strings(neighbors)

		for _, next := range neighbors {
			if visited[next] {
				continue
			}
			visited[next] = true
			prev[next] = curr

			if next == to {
				path := []string{to}
				for node := to; node != from; node = prev[node] {
					path = append(path, prev[node])
				}
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return path, true
			}

			queue = append(queue, next)
		}
	}

	return nil, false
}
