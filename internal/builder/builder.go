// Package builder turns a topology intent into a resource graph.
//
// The builder synthesizes one node per declared entity plus the inferred
// plumbing: one InternetGateway if any public subnet exists, NAT gateways per
// the intent's nat_redundancy mode, one RouteTable per subnet, and one default
// 0.0.0.0/0 route per non-isolated subnet (public tiers route to the
// InternetGateway, private tiers to their NAT gateway). The default route per
// tier is the one fixed convention the builder enforces; every other routing
// intent must be explicit in the intent document.
//
// Node identifiers are derived from the entity's place in the intent, never
// from a counter, so identical intents always build identical graphs.
package builder

import (
	"fmt"
	"net/netip"
	"sort"

	"github.com/cidrware/topoc"
	"github.com/cidrware/topoc/internal/intent"
)

// Build compiles the intent into a resource graph. It returns a
// *topoc.SchemaError when the intent is malformed: unparseable CIDR fields, a
// tier outside {public, private}, duplicate entity names, or a zone that
// needs a NAT gateway but defines no public subnet.
//
// Build performs no semantic validation beyond shape; CIDR containment,
// reachability, and reference resolution belong to the validator.
func Build(in *intent.Intent) (*topoc.Graph, error) {
	g := &topoc.Graph{Nodes: make(map[string]topoc.Node)}

	name := in.Name
	if name == "" {
		name = "main"
	}

	if _, err := netip.ParsePrefix(in.Network.CIDR); err != nil {
		return nil, &topoc.SchemaError{
			Field:  "network.cidr",
			Reason: fmt.Sprintf("unparseable CIDR %q", in.Network.CIDR),
		}
	}

	netID := "net/" + name
	g.Nodes[netID] = topoc.Node{
		ID:   netID,
		Kind: topoc.KindNetwork,
		Properties: map[string]any{
			"name": name,
			"cidr": in.Network.CIDR,
		},
	}

	if err := buildSubnets(g, in, netID); err != nil {
		return nil, err
	}
	natBySubnet, err := buildGateways(g, in, netID)
	if err != nil {
		return nil, err
	}
	buildRouting(g, in, natBySubnet)
	if err := buildSecurityGroups(g, in, netID); err != nil {
		return nil, err
	}
	if err := buildEndpoints(g, in, netID); err != nil {
		return nil, err
	}
	if err := buildInstances(g, in); err != nil {
		return nil, err
	}

	return g, nil
}

// SubnetID returns the node identifier for a subnet name.
func SubnetID(name string) string { return "subnet/" + name }

// SecurityGroupID returns the node identifier for a policy group name.
func SecurityGroupID(name string) string { return "sg/" + name }

func buildSubnets(g *topoc.Graph, in *intent.Intent, netID string) error {
	seen := make(map[string]bool)
	for i, s := range in.Subnets {
		if s.Name == "" {
			return &topoc.SchemaError{
				Field:  fmt.Sprintf("subnets[%d].name", i),
				Reason: "subnet name is required",
			}
		}
		if seen[s.Name] {
			return &topoc.SchemaError{
				Field:  fmt.Sprintf("subnets[%d].name", i),
				Reason: fmt.Sprintf("duplicate subnet name %q", s.Name),
			}
		}
		seen[s.Name] = true

		if _, err := netip.ParsePrefix(s.CIDR); err != nil {
			return &topoc.SchemaError{
				Field:  fmt.Sprintf("subnets[%d].cidr", i),
				Reason: fmt.Sprintf("unparseable CIDR %q", s.CIDR),
			}
		}
		if s.Zone == "" {
			return &topoc.SchemaError{
				Field:  fmt.Sprintf("subnets[%d].zone", i),
				Reason: "zone is required",
			}
		}
		tier := topoc.Tier(s.Tier)
		if tier != topoc.TierPublic && tier != topoc.TierPrivate {
			return &topoc.SchemaError{
				Field:  fmt.Sprintf("subnets[%d].tier", i),
				Reason: fmt.Sprintf("tier must be public or private, got %q", s.Tier),
			}
		}

		props := map[string]any{
			"name":    s.Name,
			"cidr":    s.CIDR,
			"zone":    s.Zone,
			"tier":    s.Tier,
			"network": netID,
		}
		if s.Isolated {
			props["isolated"] = true
		}
		id := SubnetID(s.Name)
		g.Nodes[id] = topoc.Node{
			ID:         id,
			Kind:       topoc.KindSubnet,
			Properties: props,
			DependsOn:  []string{netID},
		}
	}
	return nil
}

// buildGateways synthesizes the InternetGateway and NAT gateways and returns
// the subnet-ID → NAT-ID mapping used for private default routes.
func buildGateways(g *topoc.Graph, in *intent.Intent, netID string) (map[string]string, error) {
	publicByZone := make(map[string][]string) // zone → sorted public subnet names
	var anyPublic bool
	egressZones := make(map[string]bool) // zones with non-isolated private subnets
	for _, s := range in.Subnets {
		if s.Tier == string(topoc.TierPublic) {
			publicByZone[s.Zone] = append(publicByZone[s.Zone], s.Name)
			anyPublic = true
		} else if !s.Isolated {
			egressZones[s.Zone] = true
		}
	}
	for zone := range publicByZone {
		sort.Strings(publicByZone[zone])
	}

	if anyPublic {
		g.Nodes["igw"] = topoc.Node{
			ID:         "igw",
			Kind:       topoc.KindInternetGateway,
			Properties: map[string]any{"network": netID},
			DependsOn:  []string{netID},
		}
	}

	mode := in.NATRedundancy
	if mode == "" {
		mode = intent.NATPerZone
	}
	if mode != intent.NATPerZone && mode != intent.NATSingleShared {
		return nil, &topoc.SchemaError{
			Field:  "nat_redundancy",
			Reason: fmt.Sprintf("must be %q or %q, got %q", intent.NATPerZone, intent.NATSingleShared, mode),
		}
	}

	natBySubnet := make(map[string]string)
	if len(egressZones) == 0 {
		return natBySubnet, nil
	}

	var allPublic []string
	for _, names := range publicByZone {
		allPublic = append(allPublic, names...)
	}
	sort.Strings(allPublic)

	var natIDByZone map[string]string
	switch mode {
	case intent.NATPerZone:
		natIDByZone = make(map[string]string)
		zones := sortedKeys(egressZones)
		for _, zone := range zones {
			// Prefer a public subnet in the NAT's own zone; fall back to
			// any public subnet when the zone has none.
			hosts := publicByZone[zone]
			if len(hosts) == 0 {
				hosts = allPublic
			}
			if len(hosts) == 0 {
				return nil, &topoc.SchemaError{
					Field:  "subnets",
					Reason: fmt.Sprintf("zone %q needs NAT egress but no public subnet is defined", zone),
				}
			}
			hostID := SubnetID(hosts[0])
			natID := "nat/" + zone
			g.Nodes[natID] = topoc.Node{
				ID:   natID,
				Kind: topoc.KindNatGateway,
				Properties: map[string]any{
					"network": netID,
					"subnet":  hostID,
					"zone":    zone,
				},
				DependsOn: []string{hostID},
			}
			natIDByZone[zone] = natID
		}

	case intent.NATSingleShared:
		if len(allPublic) == 0 {
			return nil, &topoc.SchemaError{
				Field:  "subnets",
				Reason: "private subnets need NAT egress but no public subnet is defined",
			}
		}
		hostID := SubnetID(allPublic[0])
		g.Nodes["nat/shared"] = topoc.Node{
			ID:   "nat/shared",
			Kind: topoc.KindNatGateway,
			Properties: map[string]any{
				"network": netID,
				"subnet":  hostID,
			},
			DependsOn: []string{hostID},
		}
	}

	for _, s := range in.Subnets {
		if s.Tier != string(topoc.TierPrivate) || s.Isolated {
			continue
		}
		if mode == intent.NATPerZone {
			natBySubnet[SubnetID(s.Name)] = natIDByZone[s.Zone]
		} else {
			natBySubnet[SubnetID(s.Name)] = "nat/shared"
		}
	}
	return natBySubnet, nil
}

// buildRouting synthesizes one route table per subnet and the default route
// for every non-isolated subnet.
func buildRouting(g *topoc.Graph, in *intent.Intent, natBySubnet map[string]string) {
	for _, s := range in.Subnets {
		subnetID := SubnetID(s.Name)
		rtbID := "rtb/" + s.Name
		g.Nodes[rtbID] = topoc.Node{
			ID:         rtbID,
			Kind:       topoc.KindRouteTable,
			Properties: map[string]any{"subnet": subnetID},
			DependsOn:  []string{subnetID},
		}

		var target string
		if s.Tier == string(topoc.TierPublic) {
			target = "igw"
		} else if !s.Isolated {
			target = natBySubnet[subnetID]
		}
		if target == "" {
			continue
		}

		routeID := "route/" + s.Name + "/default"
		g.Nodes[routeID] = topoc.Node{
			ID:   routeID,
			Kind: topoc.KindRouteRule,
			Properties: map[string]any{
				"route_table": rtbID,
				"destination": "0.0.0.0/0",
				"target":      target,
			},
			DependsOn: []string{rtbID, target},
		}
	}
}

func buildSecurityGroups(g *topoc.Graph, in *intent.Intent, netID string) error {
	seen := make(map[string]bool)
	for i, p := range in.Policies {
		if p.Name == "" {
			return &topoc.SchemaError{
				Field:  fmt.Sprintf("policies[%d].name", i),
				Reason: "policy name is required",
			}
		}
		if seen[p.Name] {
			return &topoc.SchemaError{
				Field:  fmt.Sprintf("policies[%d].name", i),
				Reason: fmt.Sprintf("duplicate policy name %q", p.Name),
			}
		}
		seen[p.Name] = true

		rules := make([]topoc.PolicyRule, 0, len(p.Rules))
		for _, r := range p.Rules {
			peer := r.Peer
			// Named peer groups become weak sg/ references; CIDR peers
			// pass through as written.
			if _, err := netip.ParsePrefix(peer); err != nil && peer != "" {
				peer = SecurityGroupID(peer)
			}
			rules = append(rules, topoc.PolicyRule{
				Direction: topoc.Direction(r.Direction),
				Protocol:  topoc.Protocol(r.Protocol),
				FromPort:  r.FromPort,
				ToPort:    r.ToPort,
				Peer:      peer,
			})
		}

		props := map[string]any{
			"name":    p.Name,
			"network": netID,
			"rules":   rules,
		}
		if p.Tier != "" {
			props["tier"] = p.Tier
		}
		id := SecurityGroupID(p.Name)
		g.Nodes[id] = topoc.Node{
			ID:         id,
			Kind:       topoc.KindSecurityGroup,
			Properties: props,
			DependsOn:  []string{netID},
		}
	}
	return nil
}

func buildEndpoints(g *topoc.Graph, in *intent.Intent, netID string) error {
	seen := make(map[string]bool)
	for i, e := range in.Endpoints {
		if e.Service == "" {
			return &topoc.SchemaError{
				Field:  fmt.Sprintf("endpoints[%d].service", i),
				Reason: "service name is required",
			}
		}
		if seen[e.Service] {
			return &topoc.SchemaError{
				Field:  fmt.Sprintf("endpoints[%d].service", i),
				Reason: fmt.Sprintf("duplicate endpoint service %q", e.Service),
			}
		}
		seen[e.Service] = true

		tier := e.Tier
		if tier == "" {
			tier = string(topoc.TierPrivate)
		}
		var subnets []string
		for _, s := range in.Subnets {
			if s.Tier == tier {
				subnets = append(subnets, SubnetID(s.Name))
			}
		}
		sort.Strings(subnets)

		id := "vpce/" + e.Service
		g.Nodes[id] = topoc.Node{
			ID:   id,
			Kind: topoc.KindEndpoint,
			Properties: map[string]any{
				"service": e.Service,
				"network": netID,
				"subnets": subnets,
			},
			DependsOn: append([]string{netID}, subnets...),
		}
	}
	return nil
}

func buildInstances(g *topoc.Graph, in *intent.Intent) error {
	seen := make(map[string]bool)
	for i, inst := range in.Instances {
		if inst.Name == "" {
			return &topoc.SchemaError{
				Field:  fmt.Sprintf("instances[%d].name", i),
				Reason: "instance name is required",
			}
		}
		if seen[inst.Name] {
			return &topoc.SchemaError{
				Field:  fmt.Sprintf("instances[%d].name", i),
				Reason: fmt.Sprintf("duplicate instance name %q", inst.Name),
			}
		}
		seen[inst.Name] = true
		if inst.Subnet == "" {
			return &topoc.SchemaError{
				Field:  fmt.Sprintf("instances[%d].subnet", i),
				Reason: "subnet reference is required",
			}
		}

		subnetID := SubnetID(inst.Subnet)
		deps := []string{subnetID}

		groups := make([]string, 0, len(inst.SecurityGroups))
		for _, sg := range inst.SecurityGroups {
			groups = append(groups, SecurityGroupID(sg))
		}
		sort.Strings(groups)
		deps = append(deps, groups...)

		props := map[string]any{
			"name":            inst.Name,
			"subnet":          subnetID,
			"security_groups": groups,
		}

		if inst.Role != "" {
			roleID := "role/" + inst.Role
			if _, ok := g.Nodes[roleID]; !ok {
				g.Nodes[roleID] = topoc.Node{
					ID:         roleID,
					Kind:       topoc.KindRole,
					Properties: map[string]any{"name": inst.Role},
				}
			}
			props["role"] = roleID
			deps = append(deps, roleID)
		}

		id := "ec2/" + inst.Name
		g.Nodes[id] = topoc.Node{
			ID:         id,
			Kind:       topoc.KindInstance,
			Properties: props,
			DependsOn:  deps,
		}
	}
	return nil
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
