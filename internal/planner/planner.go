// Package planner computes the ordered action plan between two emitted node
// sequences, mirroring how a provisioning system reconciles intent with
// reality.
//
// Nodes are matched by stable identifier, never by position. Creates and
// updates follow the new sequence's emission order; deletes come last in
// reverse old-emission order, so a dependent (a route rule) is always removed
// before the node it targets (the gateway).
package planner

import (
	"encoding/json"
	"reflect"
	"sort"

	"github.com/cidrware/topoc"
)

// immutableProps lists, per kind, the properties that cannot change in place.
// A change to any of these forces a replace rather than an update.
var immutableProps = map[topoc.Kind][]string{
	topoc.KindNetwork:    {"cidr"},
	topoc.KindSubnet:     {"cidr", "zone", "tier"},
	topoc.KindNatGateway: {"subnet"},
	topoc.KindRouteRule:  {"destination", "target"},
	topoc.KindEndpoint:   {"service"},
	topoc.KindInstance:   {"subnet"},
}

// Diff compares two emitted sequences and returns the ordered action plan.
// old may be nil, in which case every node in new is created. Diffing a
// sequence against itself yields an empty plan.
func Diff(old, new []topoc.Node) []topoc.Action {
	oldByID := index(old)
	newByID := index(new)

	var actions []topoc.Action
	for _, n := range new {
		o, exists := oldByID[n.ID]
		if !exists {
			node := n
			actions = append(actions, topoc.Action{
				Type:   topoc.ActionCreate,
				NodeID: n.ID,
				Node:   &node,
			})
			continue
		}

		if n.Kind != o.Kind {
			actions = append(actions, topoc.Action{
				Type:   topoc.ActionReplace,
				NodeID: n.ID,
				Reason: "kind changed: " + string(o.Kind) + " → " + string(n.Kind),
			})
			continue
		}

		changed := changedProps(o.Properties, n.Properties)
		if !reflect.DeepEqual(o.DependsOn, n.DependsOn) {
			changed = append(changed, "depends_on")
		}
		if len(changed) == 0 {
			continue
		}
		sort.Strings(changed)

		if prop, forced := forcesReplace(n.Kind, changed); forced {
			actions = append(actions, topoc.Action{
				Type:   topoc.ActionReplace,
				NodeID: n.ID,
				Reason: "immutable property " + prop + " changed",
			})
			continue
		}

		actions = append(actions, topoc.Action{
			Type:    topoc.ActionUpdate,
			NodeID:  n.ID,
			Changed: changed,
		})
	}

	// Deletes last, dependents before dependencies: the inverse of the
	// old sequence's creation order.
	for i := len(old) - 1; i >= 0; i-- {
		if _, exists := newByID[old[i].ID]; !exists {
			actions = append(actions, topoc.Action{
				Type:   topoc.ActionDelete,
				NodeID: old[i].ID,
			})
		}
	}

	return actions
}

func index(nodes []topoc.Node) map[string]topoc.Node {
	byID := make(map[string]topoc.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	return byID
}

// changedProps returns the property names whose values differ. Both bags are
// normalized through a JSON round trip first, so typed values from a fresh
// build compare equal to generic values reloaded from a saved state file.
func changedProps(oldProps, newProps map[string]any) []string {
	o := normalize(oldProps)
	n := normalize(newProps)

	var changed []string
	for key, newVal := range n {
		oldVal, exists := o[key]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			changed = append(changed, key)
		}
	}
	for key := range o {
		if _, exists := n[key]; !exists {
			changed = append(changed, key)
		}
	}
	return changed
}

func normalize(props map[string]any) map[string]any {
	data, err := json.Marshal(props)
	if err != nil {
		return props
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return props
	}
	return out
}

func forcesReplace(kind topoc.Kind, changed []string) (string, bool) {
	for _, prop := range immutableProps[kind] {
		for _, c := range changed {
			if c == prop {
				return prop, true
			}
		}
	}
	return "", false
}
