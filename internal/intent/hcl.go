package intent

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// HCL uses labeled blocks where the YAML/TOML forms use name fields:
//
//	network { cidr = "10.0.0.0/16" }
//
//	subnet "app-a" {
//	  cidr = "10.0.1.0/24"
//	  zone = "a"
//	  tier = "public"
//	}
type hclIntent struct {
	Name          string        `hcl:"name,optional"`
	NATRedundancy string        `hcl:"nat_redundancy,optional"`
	Network       *hclNetwork   `hcl:"network,block"`
	Subnets       []hclSubnet   `hcl:"subnet,block"`
	Policies      []hclPolicy   `hcl:"policy,block"`
	Endpoints     []hclEndpoint `hcl:"endpoint,block"`
	Instances     []hclInstance `hcl:"instance,block"`
}

type hclNetwork struct {
	CIDR string `hcl:"cidr"`
}

type hclSubnet struct {
	Name     string `hcl:"name,label"`
	CIDR     string `hcl:"cidr"`
	Zone     string `hcl:"zone"`
	Tier     string `hcl:"tier"`
	Isolated bool   `hcl:"isolated,optional"`
}

type hclPolicy struct {
	Name  string    `hcl:"name,label"`
	Tier  string    `hcl:"tier,optional"`
	Rules []hclRule `hcl:"rule,block"`
}

type hclRule struct {
	Direction string `hcl:"direction"`
	Protocol  string `hcl:"protocol"`
	FromPort  int    `hcl:"from_port,optional"`
	ToPort    int    `hcl:"to_port,optional"`
	Peer      string `hcl:"peer"`
}

type hclEndpoint struct {
	Service string `hcl:"service,label"`
	Tier    string `hcl:"tier,optional"`
}

type hclInstance struct {
	Name           string   `hcl:"name,label"`
	Subnet         string   `hcl:"subnet"`
	SecurityGroups []string `hcl:"security_groups,optional"`
	Role           string   `hcl:"role,optional"`
}

func readHCL(path string, data []byte) (*Intent, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing %s: %s", path, diags.Error())
	}

	var raw hclIntent
	if diags := gohcl.DecodeBody(file.Body, nil, &raw); diags.HasErrors() {
		return nil, fmt.Errorf("decoding %s: %s", path, diags.Error())
	}

	in := &Intent{
		Name:          raw.Name,
		NATRedundancy: raw.NATRedundancy,
	}
	if raw.Network != nil {
		in.Network = Network{CIDR: raw.Network.CIDR}
	}
	for _, s := range raw.Subnets {
		in.Subnets = append(in.Subnets, Subnet{
			Name:     s.Name,
			CIDR:     s.CIDR,
			Zone:     s.Zone,
			Tier:     s.Tier,
			Isolated: s.Isolated,
		})
	}
	for _, p := range raw.Policies {
		policy := Policy{Name: p.Name, Tier: p.Tier}
		for _, r := range p.Rules {
			policy.Rules = append(policy.Rules, Rule{
				Direction: r.Direction,
				Protocol:  r.Protocol,
				FromPort:  r.FromPort,
				ToPort:    r.ToPort,
				Peer:      r.Peer,
			})
		}
		in.Policies = append(in.Policies, policy)
	}
	for _, e := range raw.Endpoints {
		in.Endpoints = append(in.Endpoints, Endpoint{Service: e.Service, Tier: e.Tier})
	}
	for _, i := range raw.Instances {
		in.Instances = append(in.Instances, Instance{
			Name:           i.Name,
			Subnet:         i.Subnet,
			SecurityGroups: i.SecurityGroups,
			Role:           i.Role,
		})
	}
	return in, nil
}
