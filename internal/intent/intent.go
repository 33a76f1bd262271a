// Package intent reads topology intent documents.
//
// An intent describes a segmented network abstractly: one network CIDR, the
// subnets carved out of it per zone and tier, named policy groups, managed
// service endpoints, and instances. The reader is a thin adapter with no
// semantics of its own; all inference and checking happens in the builder and
// validator.
//
// Three document formats are supported, selected by file extension:
// YAML/JSON (.yaml, .yml, .json), TOML (.toml), and HCL (.hcl).
package intent

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// NAT redundancy modes. PerZone places one NAT gateway in every zone that
// needs private egress; SingleShared places one NAT gateway in the first
// public subnet and shares it across zones.
const (
	NATPerZone      = "per-zone"
	NATSingleShared = "single-shared"
)

// Intent is the parsed topology description consumed by the builder.
type Intent struct {
	Name          string     `yaml:"name" toml:"name" json:"name"`
	Network       Network    `yaml:"network" toml:"network" json:"network"`
	NATRedundancy string     `yaml:"nat_redundancy" toml:"nat_redundancy" json:"nat_redundancy,omitempty"`
	Subnets       []Subnet   `yaml:"subnets" toml:"subnets" json:"subnets"`
	Policies      []Policy   `yaml:"policies" toml:"policies" json:"policies,omitempty"`
	Endpoints     []Endpoint `yaml:"endpoints" toml:"endpoints" json:"endpoints,omitempty"`
	Instances     []Instance `yaml:"instances" toml:"instances" json:"instances,omitempty"`
}

// Network is the enclosing address space.
type Network struct {
	CIDR string `yaml:"cidr" toml:"cidr" json:"cidr"`
}

// Subnet is one address range in one zone, classified public or private.
// Isolated marks a private subnet that deliberately has no egress route.
type Subnet struct {
	Name     string `yaml:"name" toml:"name" json:"name"`
	CIDR     string `yaml:"cidr" toml:"cidr" json:"cidr"`
	Zone     string `yaml:"zone" toml:"zone" json:"zone"`
	Tier     string `yaml:"tier" toml:"tier" json:"tier"`
	Isolated bool   `yaml:"isolated" toml:"isolated" json:"isolated,omitempty"`
}

// Policy is a named group of traffic rules, attachable to instances and
// endpoints by name.
type Policy struct {
	Name  string `yaml:"name" toml:"name" json:"name"`
	Tier  string `yaml:"tier" toml:"tier" json:"tier,omitempty"`
	Rules []Rule `yaml:"rules" toml:"rules" json:"rules"`
}

// Rule is one traffic rule inside a policy. Peer is a CIDR block or the name
// of another policy group.
type Rule struct {
	Direction string `yaml:"direction" toml:"direction" json:"direction"`
	Protocol  string `yaml:"protocol" toml:"protocol" json:"protocol"`
	FromPort  int    `yaml:"from_port" toml:"from_port" json:"from_port,omitempty"`
	ToPort    int    `yaml:"to_port" toml:"to_port" json:"to_port,omitempty"`
	Peer      string `yaml:"peer" toml:"peer" json:"peer"`
}

// Endpoint requests a private, gateway-free path to a managed platform
// service (e.g. "ssm") from every subnet of the given tier. Tier defaults to
// private.
type Endpoint struct {
	Service string `yaml:"service" toml:"service" json:"service"`
	Tier    string `yaml:"tier" toml:"tier" json:"tier,omitempty"`
}

// Instance places a compute instance in a subnet, referencing policies and an
// optional management role by name.
type Instance struct {
	Name           string   `yaml:"name" toml:"name" json:"name"`
	Subnet         string   `yaml:"subnet" toml:"subnet" json:"subnet"`
	SecurityGroups []string `yaml:"security_groups" toml:"security_groups" json:"security_groups,omitempty"`
	Role           string   `yaml:"role" toml:"role" json:"role,omitempty"`
}

// Read loads an intent document from path, choosing the decoder by file
// extension.
func Read(path string) (*Intent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml", ".json":
		var in Intent
		if err := yaml.Unmarshal(data, &in); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		return &in, nil

	case ".toml":
		var in Intent
		if err := toml.Unmarshal(data, &in); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		return &in, nil

	case ".hcl":
		return readHCL(path, data)

	default:
		return nil, fmt.Errorf("unsupported intent format %q (use .yaml, .toml, or .hcl)", ext)
	}
}
