package emitter

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/cidrware/topoc"
	"gopkg.in/yaml.v3"
)

func node(id string, deps ...string) topoc.Node {
	return topoc.Node{
		ID:         id,
		Kind:       topoc.KindSubnet,
		Properties: map[string]any{"name": id},
		DependsOn:  deps,
	}
}

func graphOf(nodes ...topoc.Node) *topoc.Graph {
	g := &topoc.Graph{Nodes: make(map[string]topoc.Node, len(nodes))}
	for _, n := range nodes {
		g.Nodes[n.ID] = n
	}
	return g
}

func ids(nodes []topoc.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func TestEmitDependencyOrder(t *testing.T) {
	g := graphOf(
		node("net/lab"),
		node("subnet/web", "net/lab"),
		node("igw", "net/lab"),
		node("nat/a", "subnet/web", "igw"),
		node("route/web/default", "rtb/web", "igw"),
		node("rtb/web", "subnet/web"),
	)

	order, err := Emit(g)
	if err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	if len(order) != len(g.Nodes) {
		t.Fatalf("emitted %d nodes, want %d", len(order), len(g.Nodes))
	}

	position := make(map[string]int, len(order))
	for i, n := range order {
		position[n.ID] = i
	}
	for _, n := range order {
		for _, dep := range n.DependsOn {
			if position[dep] > position[n.ID] {
				t.Errorf("%s emitted before its dependency %s", n.ID, dep)
			}
		}
	}
}

func TestEmitLexicographicTieBreak(t *testing.T) {
	// All four nodes are independent, so the order is purely lexicographic.
	g := graphOf(node("delta"), node("alpha"), node("charlie"), node("bravo"))

	order, err := Emit(g)
	if err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	want := []string{"alpha", "bravo", "charlie", "delta"}
	got := ids(order)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestEmitIdempotent(t *testing.T) {
	g := graphOf(
		node("net/lab"),
		node("subnet/a", "net/lab"),
		node("subnet/b", "net/lab"),
		node("igw", "net/lab"),
	)

	first, err := Emit(g)
	if err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	second, err := Emit(g)
	if err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	if Fingerprint(first) != Fingerprint(second) {
		t.Error("two emissions of the same graph differ")
	}
}

func TestEmitIgnoresDanglingDependencies(t *testing.T) {
	// A dependency on an absent identifier must not block emission; the
	// validator owns that failure mode.
	g := graphOf(node("subnet/web", "net/nowhere"))

	order, err := Emit(g)
	if err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	if len(order) != 1 {
		t.Fatalf("emitted %d nodes, want 1", len(order))
	}
}

func TestEmitCycleError(t *testing.T) {
	g := graphOf(
		node("a", "b"),
		node("b", "c"),
		node("c", "a"),
		node("standalone"),
	)

	_, err := Emit(g)
	var cErr *topoc.CycleError
	if !errors.As(err, &cErr) {
		t.Fatalf("Emit() error = %v, want *topoc.CycleError", err)
	}
	if len(cErr.NodeIDs) < 3 {
		t.Errorf("cycle members = %v, want the a→b→c cycle", cErr.NodeIDs)
	}
	member := make(map[string]bool)
	for _, id := range cErr.NodeIDs {
		member[id] = true
	}
	for _, id := range []string{"a", "b", "c"} {
		if !member[id] {
			t.Errorf("cycle members %v missing %s", cErr.NodeIDs, id)
		}
	}
	if member["standalone"] {
		t.Error("cycle members include a node outside the cycle")
	}
}

func TestFingerprintStableAcrossRoundTrip(t *testing.T) {
	nodes := []topoc.Node{
		{
			ID:   "sg/web",
			Kind: topoc.KindSecurityGroup,
			Properties: map[string]any{
				"name": "web",
				"rules": []topoc.PolicyRule{
					{Direction: "ingress", Protocol: "tcp", FromPort: 443, ToPort: 443, Peer: "0.0.0.0/0"},
				},
			},
		},
	}
	fresh := Fingerprint(nodes)
	if fresh == "" {
		t.Fatal("empty fingerprint")
	}

	// Simulate a state file round trip: typed property values become plain
	// maps and slices after reloading from YAML.
	data, err := yaml.Marshal(nodes)
	if err != nil {
		t.Fatalf("yaml.Marshal: %v", err)
	}
	var reloaded []topoc.Node
	if err := yaml.Unmarshal(data, &reloaded); err != nil {
		t.Fatalf("yaml.Unmarshal: %v", err)
	}
	if got := Fingerprint(reloaded); got != fresh {
		t.Errorf("reloaded fingerprint = %s, want %s", got, fresh)
	}

	// And through JSON.
	data, err = json.Marshal(nodes)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	reloaded = nil
	if err := json.Unmarshal(data, &reloaded); err != nil {
		t.Fatalf("json.Unmarshal: %v", err)
	}
	if got := Fingerprint(reloaded); got != fresh {
		t.Errorf("json-reloaded fingerprint = %s, want %s", got, fresh)
	}
}

func TestFingerprintChangesWithContent(t *testing.T) {
	a := []topoc.Node{{ID: "subnet/web", Kind: topoc.KindSubnet, Properties: map[string]any{"cidr": "10.0.1.0/24"}}}
	b := []topoc.Node{{ID: "subnet/web", Kind: topoc.KindSubnet, Properties: map[string]any{"cidr": "10.0.2.0/24"}}}
	if Fingerprint(a) == Fingerprint(b) {
		t.Error("different contents produced equal fingerprints")
	}
}
