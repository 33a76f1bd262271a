// Package emitter orders a resource graph for submission to a provisioning
// backend.
//
// Ordering is a stable topological sort: among nodes whose dependencies are
// all resolved, the lexicographically smallest identifier goes first. Two
// builds of the same logical intent therefore produce byte-identical output,
// which diffing and human review both rely on.
package emitter

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/cidrware/topoc"
)

// Emit returns the graph's nodes in dependency order, or a *topoc.CycleError
// if the graph contains a cycle. Dependencies on identifiers absent from the
// graph are ignored for ordering (the validator reports them as dangling);
// the emitter never silently truncates its output.
func Emit(g *topoc.Graph) ([]topoc.Node, error) {
	// Kahn's algorithm over the dependency edges.
	adjacent := make(map[string][]string)
	inDegree := make(map[string]int)
	for id := range g.Nodes {
		adjacent[id] = nil
		inDegree[id] = 0
	}
	for id, n := range g.Nodes {
		for _, dep := range n.DependsOn {
			if _, exists := g.Nodes[dep]; exists {
				adjacent[dep] = append(adjacent[dep], id)
				inDegree[id]++
			}
		}
	}

	var queue []string
	for id, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	order := make([]topoc.Node, 0, len(g.Nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, g.Nodes[id])

		for _, next := range adjacent[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
				sort.Strings(queue)
			}
		}
	}

	if len(order) != len(g.Nodes) {
		return nil, findCycle(g)
	}
	return order, nil
}

// Fingerprint returns the SHA-256 hex digest of the canonical JSON encoding
// of an emitted sequence. The encoding is normalized through a JSON round
// trip first, so a sequence reloaded from a saved state file fingerprints
// identically to a freshly built one.
func Fingerprint(nodes []topoc.Node) string {
	data, err := json.Marshal(nodes)
	if err != nil {
		return ""
	}
	var normalized any
	if err := json.Unmarshal(data, &normalized); err != nil {
		return ""
	}
	canonical, err := json.Marshal(normalized)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// findCycle locates one dependency cycle and reports its members in order.
func findCycle(g *topoc.Graph) *topoc.CycleError {
	visited := make(map[string]bool)
	onPath := make(map[string]bool)

	var cycle []string
	var walk func(id string) bool
	walk = func(id string) bool {
		visited[id] = true
		onPath[id] = true

		for _, dep := range g.Nodes[id].DependsOn {
			if _, exists := g.Nodes[dep]; !exists {
				continue
			}
			if !visited[dep] {
				if walk(dep) {
					cycle = append([]string{id}, cycle...)
					return true
				}
			} else if onPath[dep] {
				cycle = append([]string{dep, id}, cycle...)
				return true
			}
		}

		onPath[id] = false
		return false
	}

	for _, id := range g.IDs() {
		if !visited[id] {
			if walk(id) {
				break
			}
		}
	}

	return &topoc.CycleError{NodeIDs: cycle}
}
