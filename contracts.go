// Package topoc provides the shared types for the topoc network-topology compiler.
//
// A topology intent (zones, CIDR blocks, tiers, policy rules) is compiled into
// a graph of immutable resource nodes:
//
//	intent → builder.Build → validator.Validate → emitter.Emit → ordered []Node
//
// Two emitted sequences can be diffed with planner.Diff into an ordered plan
// of create/update/replace/delete actions, ready for a provisioning backend.
package topoc

import "sort"

// Kind identifies a resource node's type. The set is closed; the compiler
// never emits a kind outside this list.
type Kind string

const (
	KindNetwork         Kind = "Network"
	KindSubnet          Kind = "Subnet"
	KindInternetGateway Kind = "InternetGateway"
	KindNatGateway      Kind = "NatGateway"
	KindRouteTable      Kind = "RouteTable"
	KindRouteRule       Kind = "RouteRule"
	KindSecurityGroup   Kind = "SecurityGroup"
	KindEndpoint        Kind = "Endpoint"
	KindInstance        Kind = "Instance"
	KindRole            Kind = "Role"
)

// Tier classifies a subnet as public (direct gateway route) or private
// (NAT-mediated or isolated).
type Tier string

const (
	TierPublic  Tier = "public"
	TierPrivate Tier = "private"
)

// Direction is the traffic direction of a policy rule.
type Direction string

const (
	DirectionIngress Direction = "ingress"
	DirectionEgress  Direction = "egress"
)

// Protocol is the transport protocol of a policy rule.
type Protocol string

const (
	ProtocolTCP  Protocol = "tcp"
	ProtocolUDP  Protocol = "udp"
	ProtocolICMP Protocol = "icmp"
	ProtocolAll  Protocol = "all"
)

// PolicyRule is one ingress or egress rule owned by a SecurityGroup node.
// Peer is either a CIDR block or the identifier of another SecurityGroup
// node (a "sg/<name>" reference).
type PolicyRule struct {
	Direction Direction `json:"direction" yaml:"direction"`
	Protocol  Protocol  `json:"protocol" yaml:"protocol"`
	FromPort  int       `json:"from_port,omitempty" yaml:"from_port,omitempty"`
	ToPort    int       `json:"to_port,omitempty" yaml:"to_port,omitempty"`
	Peer      string    `json:"peer" yaml:"peer"`
}

// Node is one emitted unit of the compiled topology graph.
//
// The ID is a deterministic path-like name derived from the entity's place in
// the intent (e.g. "subnet/app-a", "nat/zone-b", "route/app-a/default"), so
// two builds of the same logical intent always produce the same identifiers.
// Nodes are never mutated after the builder constructs them; validator,
// emitter and planner consume them read-only.
//
// DependsOn lists the identifiers of nodes that must exist before this one.
// Cross-references inside Properties (a route's "target", an instance's
// "subnet") are weak lookups by identifier, never back-pointers, which keeps
// the graph acyclic by construction.
type Node struct {
	ID         string         `json:"id" yaml:"id"`
	Kind       Kind           `json:"kind" yaml:"kind"`
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
	DependsOn  []string       `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
}

// Graph is the flat node table produced by the builder. All cross-references
// between nodes resolve through this table by identifier.
type Graph struct {
	Nodes map[string]Node
}

// Lookup resolves a node by identifier.
func (g *Graph) Lookup(id string) (Node, bool) {
	n, ok := g.Nodes[id]
	return n, ok
}

// IDs returns all node identifiers in lexicographic order.
func (g *Graph) IDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// OfKind returns all nodes of the given kind, ordered by identifier.
func (g *Graph) OfKind(k Kind) []Node {
	var nodes []Node
	for _, id := range g.IDs() {
		if n := g.Nodes[id]; n.Kind == k {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// ActionType classifies a plan action.
type ActionType string

const (
	ActionCreate  ActionType = "create"
	ActionUpdate  ActionType = "update"
	ActionReplace ActionType = "replace"
	ActionDelete  ActionType = "delete"
)

// Action is a single instruction in a plan produced by diffing two emitted
// node sequences.
type Action struct {
	Type   ActionType `json:"type" yaml:"type"`
	NodeID string     `json:"node_id" yaml:"node_id"`

	// Node is the full node to create. Set for create actions only.
	Node *Node `json:"node,omitempty" yaml:"node,omitempty"`

	// Changed lists the modified property names, sorted. Set for updates.
	Changed []string `json:"changed,omitempty" yaml:"changed,omitempty"`

	// Reason explains why an in-place update was not possible. Set for
	// replace actions.
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Summary counts plan actions by type.
type Summary struct {
	Creates  int `json:"creates" yaml:"creates"`
	Updates  int `json:"updates" yaml:"updates"`
	Replaces int `json:"replaces" yaml:"replaces"`
	Deletes  int `json:"deletes" yaml:"deletes"`
	Total    int `json:"total" yaml:"total"`
}

// Summarize tallies a plan by action type.
func Summarize(actions []Action) Summary {
	var s Summary
	for _, a := range actions {
		switch a.Type {
		case ActionCreate:
			s.Creates++
		case ActionUpdate:
			s.Updates++
		case ActionReplace:
			s.Replaces++
		case ActionDelete:
			s.Deletes++
		}
	}
	s.Total = s.Creates + s.Updates + s.Replaces + s.Deletes
	return s
}

// BuildResult is the output of `topoc build`. It doubles as the saved-state
// format consumed by `topoc plan --old-state`.
type BuildResult struct {
	Fingerprint string   `json:"fingerprint" yaml:"fingerprint"`
	Resources   []Node   `json:"resources" yaml:"resources"`
	Errors      []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// ValidateResult is the JSON output of `topoc validate`.
type ValidateResult struct {
	Success   bool     `json:"success" yaml:"success"`
	Resources int      `json:"resources" yaml:"resources"`
	Errors    []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// PlanResult is the structured output of `topoc plan`.
type PlanResult struct {
	Actions []Action `json:"actions" yaml:"actions"`
	Summary Summary  `json:"summary" yaml:"summary"`
}
