// Package validator checks a resource graph against the network invariants.
//
// Checks run in a fixed order: CIDR containment, tier reachability, dangling
// references, policy-rule well-formedness. The first failing check kind wins,
// but every offending node of that kind is collected before reporting, so the
// caller sees all offenders of one kind at once. The validator is pure: it
// never repairs the graph, only reports.
package validator

import (
	"fmt"
	"net/netip"
	"sort"
	"strings"

	"github.com/cidrware/topoc"
)

// Validate runs all checks against the graph. It returns nil on success or a
// *topoc.ValidationError naming the failing check kind and every offending
// node identifier.
func Validate(g *topoc.Graph) error {
	if err := checkCIDR(g); err != nil {
		return err
	}
	if err := checkReachability(g); err != nil {
		return err
	}
	if err := checkReferences(g); err != nil {
		return err
	}
	return checkPolicy(g)
}

// checkCIDR verifies every subnet CIDR is contained in its network's CIDR and
// that no two sibling subnet CIDRs overlap.
func checkCIDR(g *topoc.Graph) error {
	offenders := make(map[string]bool)
	var reasons []string

	networks := make(map[string]netip.Prefix)
	for _, n := range g.OfKind(topoc.KindNetwork) {
		prefix, err := netip.ParsePrefix(propString(n, "cidr"))
		if err != nil {
			offenders[n.ID] = true
			reasons = append(reasons, fmt.Sprintf("%s: unparseable network CIDR", n.ID))
			continue
		}
		networks[n.ID] = prefix
	}

	type sub struct {
		id     string
		prefix netip.Prefix
	}
	var subs []sub
	for _, n := range g.OfKind(topoc.KindSubnet) {
		prefix, err := netip.ParsePrefix(propString(n, "cidr"))
		if err != nil {
			offenders[n.ID] = true
			reasons = append(reasons, fmt.Sprintf("%s: unparseable subnet CIDR", n.ID))
			continue
		}
		if netPrefix, ok := networks[propString(n, "network")]; ok {
			if !contains(netPrefix, prefix) {
				offenders[n.ID] = true
				reasons = append(reasons, fmt.Sprintf("%s: %s is not contained in %s", n.ID, prefix, netPrefix))
			}
		}
		subs = append(subs, sub{n.ID, prefix})
	}

	for i := 0; i < len(subs); i++ {
		for j := i + 1; j < len(subs); j++ {
			if subs[i].prefix.Overlaps(subs[j].prefix) {
				offenders[subs[i].id] = true
				offenders[subs[j].id] = true
				reasons = append(reasons, fmt.Sprintf("%s overlaps %s", subs[i].id, subs[j].id))
			}
		}
	}

	return report(topoc.CheckCIDR, offenders, reasons)
}

// checkReachability verifies tier routing policy: every public subnet routes
// to an InternetGateway and every private subnet routes to a NatGateway
// unless explicitly marked isolated.
func checkReachability(g *topoc.Graph) error {
	// subnet ID → kinds of gateways its routes target
	targets := make(map[string]map[topoc.Kind]bool)
	for _, r := range g.OfKind(topoc.KindRouteRule) {
		rtb, ok := g.Lookup(propString(r, "route_table"))
		if !ok {
			continue
		}
		target, ok := g.Lookup(propString(r, "target"))
		if !ok {
			continue
		}
		subnetID := propString(rtb, "subnet")
		if targets[subnetID] == nil {
			targets[subnetID] = make(map[topoc.Kind]bool)
		}
		targets[subnetID][target.Kind] = true
	}

	offenders := make(map[string]bool)
	var reasons []string
	for _, s := range g.OfKind(topoc.KindSubnet) {
		switch topoc.Tier(propString(s, "tier")) {
		case topoc.TierPublic:
			if !targets[s.ID][topoc.KindInternetGateway] {
				offenders[s.ID] = true
				reasons = append(reasons, fmt.Sprintf("%s: public subnet has no route to an InternetGateway", s.ID))
			}
		case topoc.TierPrivate:
			if propBool(s, "isolated") {
				continue
			}
			if !targets[s.ID][topoc.KindNatGateway] {
				offenders[s.ID] = true
				reasons = append(reasons, fmt.Sprintf("%s: private subnet has no route to a NatGateway and is not marked isolated", s.ID))
			}
		}
	}

	return report(topoc.CheckReachability, offenders, reasons)
}

// checkReferences verifies every weak reference resolves to an existing node
// of the expected kind.
func checkReferences(g *topoc.Graph) error {
	offenders := make(map[string]bool)
	var reasons []string
	flag := func(id, format string, args ...any) {
		offenders[id] = true
		reasons = append(reasons, id+": "+fmt.Sprintf(format, args...))
	}

	for _, r := range g.OfKind(topoc.KindRouteRule) {
		if _, ok := g.Lookup(propString(r, "route_table")); !ok {
			flag(r.ID, "route table %q does not exist", propString(r, "route_table"))
		}
		target, ok := g.Lookup(propString(r, "target"))
		if !ok {
			flag(r.ID, "gateway %q does not exist", propString(r, "target"))
		} else if target.Kind != topoc.KindInternetGateway && target.Kind != topoc.KindNatGateway {
			flag(r.ID, "target %q is a %s, not a gateway", target.ID, target.Kind)
		}
	}

	for _, inst := range g.OfKind(topoc.KindInstance) {
		if sub, ok := g.Lookup(propString(inst, "subnet")); !ok {
			flag(inst.ID, "subnet %q does not exist", propString(inst, "subnet"))
		} else if sub.Kind != topoc.KindSubnet {
			flag(inst.ID, "subnet reference %q is a %s", sub.ID, sub.Kind)
		}
		for _, sg := range propStrings(inst, "security_groups") {
			if _, ok := g.Lookup(sg); !ok {
				flag(inst.ID, "security group %q does not exist", sg)
			}
		}
		if role := propString(inst, "role"); role != "" {
			if _, ok := g.Lookup(role); !ok {
				flag(inst.ID, "role %q does not exist", role)
			}
		}
	}

	for _, sg := range g.OfKind(topoc.KindSecurityGroup) {
		for _, rule := range propRules(sg) {
			if strings.HasPrefix(rule.Peer, "sg/") {
				if _, ok := g.Lookup(rule.Peer); !ok {
					flag(sg.ID, "peer group %q does not exist", rule.Peer)
				}
			}
		}
	}

	for _, ep := range g.OfKind(topoc.KindEndpoint) {
		for _, sub := range propStrings(ep, "subnets") {
			if _, ok := g.Lookup(sub); !ok {
				flag(ep.ID, "subnet %q does not exist", sub)
			}
		}
	}

	return report(topoc.CheckReference, offenders, reasons)
}

// checkPolicy verifies policy rules are well-formed: direction and protocol
// from the closed sets, port range low ≤ high, and a peer present.
func checkPolicy(g *topoc.Graph) error {
	offenders := make(map[string]bool)
	var reasons []string
	for _, sg := range g.OfKind(topoc.KindSecurityGroup) {
		for i, rule := range propRules(sg) {
			if rule.Direction != topoc.DirectionIngress && rule.Direction != topoc.DirectionEgress {
				offenders[sg.ID] = true
				reasons = append(reasons, fmt.Sprintf("%s: rules[%d] direction %q is not ingress or egress", sg.ID, i, rule.Direction))
			}
			switch rule.Protocol {
			case topoc.ProtocolTCP, topoc.ProtocolUDP, topoc.ProtocolICMP, topoc.ProtocolAll:
			default:
				offenders[sg.ID] = true
				reasons = append(reasons, fmt.Sprintf("%s: rules[%d] protocol %q is not tcp, udp, icmp, or all", sg.ID, i, rule.Protocol))
			}
			if rule.FromPort > rule.ToPort {
				offenders[sg.ID] = true
				reasons = append(reasons, fmt.Sprintf("%s: rules[%d] port range %d-%d is inverted", sg.ID, i, rule.FromPort, rule.ToPort))
			}
			if rule.Peer == "" {
				offenders[sg.ID] = true
				reasons = append(reasons, fmt.Sprintf("%s: rules[%d] has no peer", sg.ID, i))
			} else if !strings.HasPrefix(rule.Peer, "sg/") {
				if _, err := netip.ParsePrefix(rule.Peer); err != nil {
					offenders[sg.ID] = true
					reasons = append(reasons, fmt.Sprintf("%s: rules[%d] peer %q is neither a CIDR nor a peer group", sg.ID, i, rule.Peer))
				}
			}
		}
	}
	return report(topoc.CheckPolicy, offenders, reasons)
}

func report(check topoc.CheckKind, offenders map[string]bool, reasons []string) error {
	if len(offenders) == 0 {
		return nil
	}
	ids := make([]string, 0, len(offenders))
	for id := range offenders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return &topoc.ValidationError{
		Check:   check,
		NodeIDs: ids,
		Reason:  strings.Join(reasons, "; "),
	}
}

// contains reports whether inner lies entirely within outer.
func contains(outer, inner netip.Prefix) bool {
	return outer.Contains(inner.Addr()) && inner.Bits() >= outer.Bits()
}

func propString(n topoc.Node, key string) string {
	s, _ := n.Properties[key].(string)
	return s
}

func propBool(n topoc.Node, key string) bool {
	b, _ := n.Properties[key].(bool)
	return b
}

func propStrings(n topoc.Node, key string) []string {
	switch v := n.Properties[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func propRules(n topoc.Node) []topoc.PolicyRule {
	rules, _ := n.Properties["rules"].([]topoc.PolicyRule)
	return rules
}
