package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cidrware/topoc"
	"github.com/cidrware/topoc/internal/builder"
	"github.com/cidrware/topoc/internal/emitter"
	"github.com/cidrware/topoc/internal/intent"
)

func emittedLab(t *testing.T) []topoc.Node {
	t.Helper()
	in := &intent.Intent{
		Name:    "lab",
		Network: intent.Network{CIDR: "10.0.0.0/16"},
		Subnets: []intent.Subnet{
			{Name: "web", CIDR: "10.0.1.0/24", Zone: "a", Tier: "public"},
			{Name: "db", CIDR: "10.0.2.0/24", Zone: "b", Tier: "private"},
		},
		Policies: []intent.Policy{
			{Name: "web", Rules: []intent.Rule{
				{Direction: "ingress", Protocol: "tcp", FromPort: 443, ToPort: 443, Peer: "0.0.0.0/0"},
				{Direction: "egress", Protocol: "all", Peer: "0.0.0.0/0"},
			}},
			{Name: "db", Rules: []intent.Rule{
				{Direction: "ingress", Protocol: "tcp", FromPort: 5432, ToPort: 5432, Peer: "web"},
			}},
		},
		Endpoints: []intent.Endpoint{{Service: "ssm"}},
		Instances: []intent.Instance{
			{Name: "bastion", Subnet: "web", SecurityGroups: []string{"web"}, Role: "ssm-managed"},
		},
	}
	g, err := builder.Build(in)
	require.NoError(t, err)
	nodes, err := emitter.Emit(g)
	require.NoError(t, err)
	return nodes
}

func TestLogicalID(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"net/lab", "NetLab"},
		{"subnet/app-a", "SubnetAppA"},
		{"route/app-a/default", "RouteAppADefault"},
		{"igw", "Igw"},
		{"nat/shared", "NatShared"},
		{"role/ssm-managed", "RoleSsmManaged"},
		{"vpce/ssm", "VpceSsm"},
	}
	for _, tt := range tests {
		if got := LogicalID(tt.id); got != tt.want {
			t.Errorf("LogicalID(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestFromNodesKindMapping(t *testing.T) {
	tmpl, err := FromNodes(emittedLab(t), Options{Description: "lab network"})
	require.NoError(t, err)

	assert.Equal(t, "2010-09-09", tmpl.AWSTemplateFormatVersion)
	assert.Equal(t, "lab network", tmpl.Description)

	wantTypes := map[string]string{
		"NetLab":          "AWS::EC2::VPC",
		"SubnetWeb":       "AWS::EC2::Subnet",
		"SubnetDb":        "AWS::EC2::Subnet",
		"Igw":             "AWS::EC2::InternetGateway",
		"NatB":            "AWS::EC2::NatGateway",
		"RtbWeb":          "AWS::EC2::RouteTable",
		"RouteWebDefault": "AWS::EC2::Route",
		"SgWeb":           "AWS::EC2::SecurityGroup",
		"VpceSsm":         "AWS::EC2::VPCEndpoint",
		"Ec2Bastion":      "AWS::EC2::Instance",
		"RoleSsmManaged":  "AWS::IAM::Role",
	}
	for logical, cfType := range wantTypes {
		res, ok := tmpl.Resources[logical]
		require.True(t, ok, "missing resource %s", logical)
		assert.Equal(t, cfType, res.Type, logical)
	}
}

func TestFromNodesSynthesizedGlue(t *testing.T) {
	tmpl, err := FromNodes(emittedLab(t), Options{})
	require.NoError(t, err)

	attachment, ok := tmpl.Resources["IgwAttachment"]
	require.True(t, ok, "missing gateway attachment")
	assert.Equal(t, "AWS::EC2::VPCGatewayAttachment", attachment.Type)

	eip, ok := tmpl.Resources["NatBEip"]
	require.True(t, ok, "missing NAT elastic IP")
	assert.Equal(t, "AWS::EC2::EIP", eip.Type)
	assert.Equal(t, "vpc", eip.Properties["Domain"])

	nat := tmpl.Resources["NatB"]
	assert.Equal(t, map[string]any{"Fn::GetAtt": []string{"NatBEip", "AllocationId"}}, nat.Properties["AllocationId"])

	assoc, ok := tmpl.Resources["RtbWebAssociation"]
	require.True(t, ok, "missing route table association")
	assert.Equal(t, "AWS::EC2::SubnetRouteTableAssociation", assoc.Type)

	profile, ok := tmpl.Resources["RoleSsmManagedProfile"]
	require.True(t, ok, "missing instance profile")
	assert.Equal(t, "AWS::IAM::InstanceProfile", profile.Type)

	// Routes to the internet gateway wait for the attachment.
	route := tmpl.Resources["RouteWebDefault"]
	assert.Contains(t, route.DependsOn, "IgwAttachment")
	assert.Equal(t, map[string]any{"Ref": "Igw"}, route.Properties["GatewayId"])

	// Routes to a NAT gateway reference it directly.
	privRoute := tmpl.Resources["RouteDbDefault"]
	assert.Equal(t, map[string]any{"Ref": "NatB"}, privRoute.Properties["NatGatewayId"])
	assert.NotContains(t, privRoute.Properties, "GatewayId")
}

func TestFromNodesSecurityGroupRules(t *testing.T) {
	tmpl, err := FromNodes(emittedLab(t), Options{})
	require.NoError(t, err)

	web := tmpl.Resources["SgWeb"]
	ingress, ok := web.Properties["SecurityGroupIngress"].([]any)
	require.True(t, ok, "SgWeb has no ingress rules")
	require.Len(t, ingress, 1)
	entry := ingress[0].(map[string]any)
	assert.Equal(t, "tcp", entry["IpProtocol"])
	assert.Equal(t, 443, entry["FromPort"])
	assert.Equal(t, "0.0.0.0/0", entry["CidrIp"])

	egress, ok := web.Properties["SecurityGroupEgress"].([]any)
	require.True(t, ok, "SgWeb has no egress rules")
	entry = egress[0].(map[string]any)
	assert.Equal(t, "-1", entry["IpProtocol"])
	assert.NotContains(t, entry, "FromPort")

	// Group-to-group rules become security-group references.
	db := tmpl.Resources["SgDb"]
	ingress = db.Properties["SecurityGroupIngress"].([]any)
	entry = ingress[0].(map[string]any)
	assert.Equal(t, map[string]any{"Ref": "SgWeb"}, entry["SourceSecurityGroupId"])
	assert.NotContains(t, entry, "CidrIp")
}

func TestFromNodesInstanceAndParameter(t *testing.T) {
	tmpl, err := FromNodes(emittedLab(t), Options{InstanceType: "t3.small"})
	require.NoError(t, err)

	param, ok := tmpl.Parameters["LatestAmiId"]
	require.True(t, ok, "missing AMI parameter")
	assert.Equal(t, "AWS::SSM::Parameter::Value<AWS::EC2::Image::Id>", param.Type)

	inst := tmpl.Resources["Ec2Bastion"]
	assert.Equal(t, "t3.small", inst.Properties["InstanceType"])
	assert.Equal(t, map[string]any{"Ref": "LatestAmiId"}, inst.Properties["ImageId"])
	assert.Equal(t, map[string]any{"Ref": "RoleSsmManagedProfile"}, inst.Properties["IamInstanceProfile"])
	assert.Contains(t, inst.DependsOn, "SubnetWeb")
}

func TestFromNodesNoInstancesNoParameters(t *testing.T) {
	in := &intent.Intent{
		Network: intent.Network{CIDR: "10.0.0.0/16"},
		Subnets: []intent.Subnet{
			{Name: "web", CIDR: "10.0.1.0/24", Zone: "a", Tier: "public"},
		},
	}
	g, err := builder.Build(in)
	require.NoError(t, err)
	nodes, err := emitter.Emit(g)
	require.NoError(t, err)

	tmpl, err := FromNodes(nodes, Options{})
	require.NoError(t, err)
	assert.Empty(t, tmpl.Parameters)
}

func TestFromNodesUnknownKind(t *testing.T) {
	_, err := FromNodes([]topoc.Node{{ID: "x", Kind: "Mystery"}}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown resource kind")
}

func TestSerializationFormats(t *testing.T) {
	tmpl, err := FromNodes(emittedLab(t), Options{})
	require.NoError(t, err)

	jsonData, err := ToJSON(tmpl)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(jsonData), `"AWSTemplateFormatVersion": "2010-09-09"`))

	yamlData, err := ToYAML(tmpl)
	require.NoError(t, err)
	assert.Contains(t, string(yamlData), "AWSTemplateFormatVersion:")
	assert.Contains(t, string(yamlData), "AWS::EC2::VPC")
}
