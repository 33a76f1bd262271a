package graphviz

import (
	"strings"
	"testing"

	"github.com/cidrware/topoc"
)

func testNodes() []topoc.Node {
	return []topoc.Node{
		{ID: "net/lab", Kind: topoc.KindNetwork, Properties: map[string]any{"cidr": "10.0.0.0/16"}},
		{ID: "igw", Kind: topoc.KindInternetGateway, DependsOn: []string{"net/lab"}},
		{ID: "subnet/web", Kind: topoc.KindSubnet, Properties: map[string]any{"cidr": "10.0.1.0/24"}, DependsOn: []string{"net/lab"}},
		{ID: "subnet/db", Kind: topoc.KindSubnet, Properties: map[string]any{"cidr": "10.0.2.0/24"}, DependsOn: []string{"net/lab"}},
		{ID: "rtb/web", Kind: topoc.KindRouteTable, Properties: map[string]any{"subnet": "subnet/web"}, DependsOn: []string{"subnet/web"}},
		{ID: "route/web/default", Kind: topoc.KindRouteRule, Properties: map[string]any{
			"route_table": "rtb/web", "destination": "0.0.0.0/0", "target": "igw",
		}, DependsOn: []string{"rtb/web", "igw"}},
	}
}

func TestGenerateDOT(t *testing.T) {
	gen := &Generator{Format: FormatDOT}
	out, err := gen.GenerateString(testNodes())
	if err != nil {
		t.Fatalf("GenerateString() error = %v", err)
	}

	if !strings.HasPrefix(out, "digraph") {
		t.Errorf("output does not start with digraph: %.40q", out)
	}
	for _, want := range []string{"net/lab", "subnet/web", "route/web/default", "[Network]", "[RouteRule]", "rankdir"} {
		if !strings.Contains(out, want) {
			t.Errorf("DOT output missing %q", want)
		}
	}
}

func TestGenerateDefaultsToDOT(t *testing.T) {
	gen := &Generator{}
	out, err := gen.GenerateString(testNodes())
	if err != nil {
		t.Fatalf("GenerateString() error = %v", err)
	}
	if !strings.HasPrefix(out, "digraph") {
		t.Errorf("empty format should default to DOT, got %.40q", out)
	}
}

func TestGenerateMermaid(t *testing.T) {
	gen := &Generator{Format: FormatMermaid}
	out, err := gen.GenerateString(testNodes())
	if err != nil {
		t.Fatalf("GenerateString() error = %v", err)
	}
	if !strings.Contains(out, "graph TD") {
		t.Errorf("mermaid output missing direction header: %.60q", out)
	}
	if !strings.Contains(out, "net/lab") {
		t.Error("mermaid output missing node label")
	}
}

func TestGenerateWeakRefEdgesColored(t *testing.T) {
	gen := &Generator{Format: FormatDOT}
	out, err := gen.GenerateString(testNodes())
	if err != nil {
		t.Fatalf("GenerateString() error = %v", err)
	}
	// The route's edge to its gateway target is a weak reference.
	if !strings.Contains(out, "blue") {
		t.Error("weak reference edges should be colored")
	}
}

func TestGenerateClustered(t *testing.T) {
	gen := &Generator{Format: FormatDOT, ClusterByKind: true}
	out, err := gen.GenerateString(testNodes())
	if err != nil {
		t.Fatalf("GenerateString() error = %v", err)
	}
	// Only Subnet has more than one member, so exactly one cluster appears.
	if strings.Count(out, "subgraph cluster_") != 1 {
		t.Errorf("want exactly one cluster, got:\n%s", out)
	}
	if !strings.Contains(out, `label="Subnet"`) {
		t.Error("output missing subnet cluster label")
	}
}

func TestGenerateClusteredNodesAppearOnce(t *testing.T) {
	gen := &Generator{Format: FormatDOT, ClusterByKind: true}
	out, err := gen.GenerateString(testNodes())
	if err != nil {
		t.Fatalf("GenerateString() error = %v", err)
	}

	// Each resource must be declared exactly once; edges must attach to the
	// cluster members, not to fresh root-level duplicates.
	for _, id := range []string{"subnet/web", "subnet/db", "net/lab"} {
		if got := strings.Count(out, id); got != 1 {
			t.Errorf("%s declared %d times, want 1\noutput:\n%s", id, got, out)
		}
	}
	if !strings.Contains(out, "->") {
		t.Error("clustered output has no edges")
	}
}

func TestGenerateSkipsDanglingEdges(t *testing.T) {
	nodes := []topoc.Node{
		{ID: "subnet/web", Kind: topoc.KindSubnet, DependsOn: []string{"net/missing"}},
	}
	gen := &Generator{Format: FormatDOT}
	out, err := gen.GenerateString(nodes)
	if err != nil {
		t.Fatalf("GenerateString() error = %v", err)
	}
	if strings.Contains(out, "net/missing") {
		t.Error("dangling dependency should not appear in the graph")
	}
}
