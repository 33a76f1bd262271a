// Package export serializes an emitted node sequence as a CloudFormation
// template document, ready for submission to the provisioning backend.
//
// The exporter is a pure serializer: it maps each resource kind to its EC2/IAM
// template type and synthesizes the backend-specific glue the abstract model
// deliberately omits (the gateway attachment, one elastic IP per NAT gateway,
// instance profiles for management roles, and a latest-AMI parameter). It
// never talks to any cloud API.
package export

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cidrware/topoc"
)

// Template is a CloudFormation template document.
type Template struct {
	AWSTemplateFormatVersion string               `json:"AWSTemplateFormatVersion" yaml:"AWSTemplateFormatVersion"`
	Description              string               `json:"Description,omitempty" yaml:"Description,omitempty"`
	Parameters               map[string]Parameter `json:"Parameters,omitempty" yaml:"Parameters,omitempty"`
	Resources                map[string]Resource  `json:"Resources" yaml:"Resources"`
}

// Resource is a single resource in the template.
type Resource struct {
	Type       string         `json:"Type" yaml:"Type"`
	Properties map[string]any `json:"Properties,omitempty" yaml:"Properties,omitempty"`
	DependsOn  []string       `json:"DependsOn,omitempty" yaml:"DependsOn,omitempty"`
}

// Parameter is a template parameter.
type Parameter struct {
	Type        string `json:"Type" yaml:"Type"`
	Description string `json:"Description,omitempty" yaml:"Description,omitempty"`
	Default     any    `json:"Default,omitempty" yaml:"Default,omitempty"`
}

// Options configures the exporter.
type Options struct {
	// Description becomes the template description.
	Description string

	// InstanceType is applied to every instance. Defaults to t3.micro.
	InstanceType string
}

const amiParameter = "LatestAmiId"

var kindTypes = map[topoc.Kind]string{
	topoc.KindNetwork:         "AWS::EC2::VPC",
	topoc.KindSubnet:          "AWS::EC2::Subnet",
	topoc.KindInternetGateway: "AWS::EC2::InternetGateway",
	topoc.KindNatGateway:      "AWS::EC2::NatGateway",
	topoc.KindRouteTable:      "AWS::EC2::RouteTable",
	topoc.KindRouteRule:       "AWS::EC2::Route",
	topoc.KindSecurityGroup:   "AWS::EC2::SecurityGroup",
	topoc.KindEndpoint:        "AWS::EC2::VPCEndpoint",
	topoc.KindInstance:        "AWS::EC2::Instance",
	topoc.KindRole:            "AWS::IAM::Role",
}

// FromNodes converts an emitted sequence into a CloudFormation template.
func FromNodes(nodes []topoc.Node, opts Options) (*Template, error) {
	t := &Template{
		AWSTemplateFormatVersion: "2010-09-09",
		Description:              opts.Description,
		Resources:                make(map[string]Resource),
	}

	byID := make(map[string]topoc.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	e := &exporter{template: t, byID: byID, opts: opts}
	for _, n := range nodes {
		if err := e.add(n); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// ToJSON serializes the template to JSON.
func ToJSON(t *Template) ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// ToYAML serializes the template to YAML.
func ToYAML(t *Template) ([]byte, error) {
	return yaml.Marshal(t)
}

// LogicalID converts a node identifier to a CloudFormation logical ID.
// e.g. "route/app-a/default" → "RouteAppADefault"
func LogicalID(id string) string {
	var sb strings.Builder
	upper := true
	for _, r := range id {
		switch r {
		case '/', '-', '_', '.':
			upper = true
		default:
			if upper {
				sb.WriteString(strings.ToUpper(string(r)))
				upper = false
			} else {
				sb.WriteRune(r)
			}
		}
	}
	return sb.String()
}

type exporter struct {
	template *Template
	byID     map[string]topoc.Node
	opts     Options
}

func (e *exporter) add(n topoc.Node) error {
	cfType, ok := kindTypes[n.Kind]
	if !ok {
		return fmt.Errorf("unknown resource kind: %s", n.Kind)
	}

	logical := LogicalID(n.ID)
	res := Resource{Type: cfType}

	switch n.Kind {
	case topoc.KindNetwork:
		res.Properties = map[string]any{
			"CidrBlock":          e.str(n, "cidr"),
			"EnableDnsSupport":   true,
			"EnableDnsHostnames": true,
			"Tags":               nameTags(e.str(n, "name")),
		}

	case topoc.KindSubnet:
		res.Properties = map[string]any{
			"VpcId":               e.refNode(n, "network"),
			"CidrBlock":           e.str(n, "cidr"),
			"AvailabilityZone":    e.str(n, "zone"),
			"MapPublicIpOnLaunch": e.str(n, "tier") == string(topoc.TierPublic),
			"Tags":                nameTags(e.str(n, "name")),
		}

	case topoc.KindInternetGateway:
		// The abstract model has no attachment node; the backend needs one.
		e.template.Resources[logical+"Attachment"] = Resource{
			Type: "AWS::EC2::VPCGatewayAttachment",
			Properties: map[string]any{
				"InternetGatewayId": ref(logical),
				"VpcId":             e.refNode(n, "network"),
			},
		}

	case topoc.KindNatGateway:
		eip := logical + "Eip"
		e.template.Resources[eip] = Resource{
			Type:       "AWS::EC2::EIP",
			Properties: map[string]any{"Domain": "vpc"},
		}
		res.Properties = map[string]any{
			"SubnetId":     e.refNode(n, "subnet"),
			"AllocationId": getAtt(eip, "AllocationId"),
		}

	case topoc.KindRouteTable:
		// The table owns no VPC reference in the abstract model; resolve
		// it through the owning subnet.
		subnet := e.byID[e.str(n, "subnet")]
		res.Properties = map[string]any{
			"VpcId": e.refNode(subnet, "network"),
		}
		e.template.Resources[logical+"Association"] = Resource{
			Type: "AWS::EC2::SubnetRouteTableAssociation",
			Properties: map[string]any{
				"SubnetId":     e.refNode(n, "subnet"),
				"RouteTableId": ref(logical),
			},
		}

	case topoc.KindRouteRule:
		res.Properties = map[string]any{
			"RouteTableId":         e.refNode(n, "route_table"),
			"DestinationCidrBlock": e.str(n, "destination"),
		}
		target := e.byID[e.str(n, "target")]
		targetLogical := LogicalID(target.ID)
		if target.Kind == topoc.KindInternetGateway {
			res.Properties["GatewayId"] = ref(targetLogical)
			// Routes to an internet gateway apply only once it is attached.
			res.DependsOn = []string{targetLogical + "Attachment"}
		} else {
			res.Properties["NatGatewayId"] = ref(targetLogical)
		}

	case topoc.KindSecurityGroup:
		res.Properties = map[string]any{
			"VpcId":            e.refNode(n, "network"),
			"GroupDescription": e.str(n, "name") + " policy group",
		}
		ingress, egress := e.policyRules(n)
		if len(ingress) > 0 {
			res.Properties["SecurityGroupIngress"] = ingress
		}
		if len(egress) > 0 {
			res.Properties["SecurityGroupEgress"] = egress
		}

	case topoc.KindEndpoint:
		res.Properties = map[string]any{
			"VpcId":           e.refNode(n, "network"),
			"VpcEndpointType": "Interface",
			"ServiceName": map[string]any{
				"Fn::Sub": "com.amazonaws.${AWS::Region}." + e.str(n, "service"),
			},
			"PrivateDnsEnabled": true,
			"SubnetIds":         e.refs(strs(n, "subnets")),
		}

	case topoc.KindInstance:
		e.ensureAmiParameter()
		instanceType := e.opts.InstanceType
		if instanceType == "" {
			instanceType = "t3.micro"
		}
		res.Properties = map[string]any{
			"ImageId":      ref(amiParameter),
			"InstanceType": instanceType,
			"SubnetId":     e.refNode(n, "subnet"),
			"Tags":         nameTags(e.str(n, "name")),
		}
		if groups := strs(n, "security_groups"); len(groups) > 0 {
			res.Properties["SecurityGroupIds"] = e.refs(groups)
		}
		if role := e.str(n, "role"); role != "" {
			profile := LogicalID(role) + "Profile"
			res.Properties["IamInstanceProfile"] = ref(profile)
		}

	case topoc.KindRole:
		res.Properties = map[string]any{
			"RoleName": map[string]any{
				"Fn::Sub": "${AWS::StackName}-" + e.str(n, "name"),
			},
			"AssumeRolePolicyDocument": map[string]any{
				"Version": "2012-10-17",
				"Statement": []any{
					map[string]any{
						"Effect":    "Allow",
						"Principal": map[string]any{"Service": "ec2.amazonaws.com"},
						"Action":    "sts:AssumeRole",
					},
				},
			},
			"ManagedPolicyArns": []any{
				"arn:aws:iam::aws:policy/AmazonSSMManagedInstanceCore",
			},
		}
		e.template.Resources[logical+"Profile"] = Resource{
			Type: "AWS::IAM::InstanceProfile",
			Properties: map[string]any{
				"Roles": []any{ref(logical)},
			},
		}
	}

	for _, dep := range n.DependsOn {
		if _, exists := e.byID[dep]; exists {
			res.DependsOn = append(res.DependsOn, LogicalID(dep))
		}
	}

	e.template.Resources[logical] = res
	return nil
}

// policyRules converts the node's rules into inline ingress/egress lists.
func (e *exporter) policyRules(n topoc.Node) (ingress, egress []any) {
	rules, _ := n.Properties["rules"].([]topoc.PolicyRule)
	for _, r := range rules {
		entry := map[string]any{
			"IpProtocol": cfProtocol(r.Protocol),
		}
		if r.Protocol == topoc.ProtocolTCP || r.Protocol == topoc.ProtocolUDP {
			entry["FromPort"] = r.FromPort
			entry["ToPort"] = r.ToPort
		}
		if strings.HasPrefix(r.Peer, "sg/") {
			peerRef := ref(LogicalID(r.Peer))
			if r.Direction == topoc.DirectionIngress {
				entry["SourceSecurityGroupId"] = peerRef
			} else {
				entry["DestinationSecurityGroupId"] = peerRef
			}
		} else {
			entry["CidrIp"] = r.Peer
		}
		if r.Direction == topoc.DirectionIngress {
			ingress = append(ingress, entry)
		} else {
			egress = append(egress, entry)
		}
	}
	return ingress, egress
}

func (e *exporter) ensureAmiParameter() {
	if e.template.Parameters == nil {
		e.template.Parameters = make(map[string]Parameter)
	}
	if _, ok := e.template.Parameters[amiParameter]; !ok {
		e.template.Parameters[amiParameter] = Parameter{
			Type:        "AWS::SSM::Parameter::Value<AWS::EC2::Image::Id>",
			Description: "Latest Amazon Linux 2023 AMI",
			Default:     "/aws/service/ami-amazon-linux-latest/al2023-ami-kernel-default-x86_64",
		}
	}
}

// refNode builds a Ref to the node named by the given property.
func (e *exporter) refNode(n topoc.Node, key string) map[string]any {
	return ref(LogicalID(e.str(n, key)))
}

func (e *exporter) refs(ids []string) []any {
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, ref(LogicalID(id)))
	}
	return out
}

func (e *exporter) str(n topoc.Node, key string) string {
	s, _ := n.Properties[key].(string)
	return s
}

func strs(n topoc.Node, key string) []string {
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

func ref(logical string) map[string]any {
	return map[string]any{"Ref": logical}
}

func getAtt(logical, attr string) map[string]any {
	return map[string]any{"Fn::GetAtt": []string{logical, attr}}
}

func nameTags(name string) []any {
	return []any{
		map[string]any{
			"Key":   "Name",
			"Value": map[string]any{"Fn::Sub": "${AWS::StackName}-" + name},
		},
	}
}

func cfProtocol(p topoc.Protocol) string {
	if p == topoc.ProtocolAll {
		return "-1"
	}
	return string(p)
}
