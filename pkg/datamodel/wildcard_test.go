package datamodel

import (
	"context"
	"testing"

	"github.com/chip-node/matter-core/pkg/tlv"
)

// attrCluster is a minimal Cluster stub exposing a fixed attribute list,
// so expansion tests can control exactly which attributes are readable or
// writable without a full cluster implementation.
type attrCluster struct {
	id         ClusterID
	endpointID EndpointID
	attrs      []AttributeEntry
}

func (c *attrCluster) ID() ClusterID                     { return c.id }
func (c *attrCluster) EndpointID() EndpointID            { return c.endpointID }
func (c *attrCluster) DataVersion() DataVersion          { return 1 }
func (c *attrCluster) ClusterRevision() uint16           { return 1 }
func (c *attrCluster) FeatureMap() uint32                { return 0 }
func (c *attrCluster) AttributeList() []AttributeEntry   { return c.attrs }
func (c *attrCluster) AcceptedCommandList() []CommandEntry { return nil }
func (c *attrCluster) GeneratedCommandList() []CommandID { return nil }

func (c *attrCluster) ReadAttribute(context.Context, ReadAttributeRequest, *tlv.Writer) error {
	return nil
}
func (c *attrCluster) WriteAttribute(context.Context, WriteAttributeRequest, *tlv.Reader) error {
	return nil
}
func (c *attrCluster) InvokeCommand(context.Context, InvokeRequest, *tlv.Reader) ([]byte, error) {
	return nil, nil
}

func buildTestNode() *BasicNode {
	node := NewNode()

	view := PrivilegeView
	op := PrivilegeOperate

	ep1 := NewEndpoint(1)
	ep1.AddCluster(&attrCluster{id: 0x0006, endpointID: 1, attrs: []AttributeEntry{
		NewReadWriteAttribute(0x0000, 0, view, op), // OnOff
		NewReadOnlyAttribute(0xFFFD, 0, view),      // ClusterRevision
	}})
	ep1.AddCluster(&attrCluster{id: 0x001D, endpointID: 1, attrs: []AttributeEntry{
		NewReadOnlyAttribute(0x0000, 0, view), // DeviceTypeList
	}})
	node.AddEndpoint(ep1)

	ep2 := NewEndpoint(2)
	ep2.AddCluster(&attrCluster{id: 0x0006, endpointID: 2, attrs: []AttributeEntry{
		NewReadWriteAttribute(0x0000, 0, view, op),
	}})
	node.AddEndpoint(ep2)

	return node
}

func TestExpandAttributePaths_FullWildcard(t *testing.T) {
	node := buildTestNode()

	got := ExpandAttributePaths(node, nil, nil, nil)

	want := []ConcreteAttributePath{
		{Endpoint: 1, Cluster: 0x0006, Attribute: 0x0000},
		{Endpoint: 1, Cluster: 0x0006, Attribute: 0xFFFD},
		{Endpoint: 1, Cluster: 0x001D, Attribute: 0x0000},
		{Endpoint: 2, Cluster: 0x0006, Attribute: 0x0000},
	}

	if len(got) != len(want) {
		t.Fatalf("len(got) = %d, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestExpandAttributePaths_WildcardEndpointConcreteClusterAttribute(t *testing.T) {
	node := buildTestNode()

	cl := ClusterID(0x0006)
	attr := AttributeID(0x0000)
	got := ExpandAttributePaths(node, nil, &cl, &attr)

	want := []ConcreteAttributePath{
		{Endpoint: 1, Cluster: 0x0006, Attribute: 0x0000},
		{Endpoint: 2, Cluster: 0x0006, Attribute: 0x0000},
	}
	if len(got) != len(want) {
		t.Fatalf("len(got) = %d, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestExpandAttributePaths_SkipsNonReadable(t *testing.T) {
	node := NewNode()
	ep := NewEndpoint(1)
	ep.AddCluster(&attrCluster{id: 0x0006, endpointID: 1, attrs: []AttributeEntry{
		{ID: 0x0000, WritePrivilege: &[]Privilege{PrivilegeOperate}[0]}, // write-only
	}})
	node.AddEndpoint(ep)

	got := ExpandAttributePaths(node, nil, nil, nil)
	if len(got) != 0 {
		t.Errorf("expected no paths for a write-only attribute, got %+v", got)
	}
}

func TestExpandWriteEndpoints(t *testing.T) {
	node := buildTestNode()

	got := ExpandWriteEndpoints(node, 0x0006, 0x0000)
	want := []ConcreteAttributePath{
		{Endpoint: 1, Cluster: 0x0006, Attribute: 0x0000},
		{Endpoint: 2, Cluster: 0x0006, Attribute: 0x0000},
	}
	if len(got) != len(want) {
		t.Fatalf("len(got) = %d, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}

	// No endpoint carries cluster 0x9999, so a non-matching cluster yields
	// nothing rather than an error.
	none := ExpandWriteEndpoints(node, 0x9999, 0x0000)
	if len(none) != 0 {
		t.Errorf("expected no endpoints for unmatched cluster, got %+v", none)
	}
}

func TestIsWildcardPath(t *testing.T) {
	ep := EndpointID(1)
	cl := ClusterID(2)
	attr := AttributeID(3)

	if IsWildcardPath(&ep, &cl, &attr) {
		t.Error("fully concrete path reported as wildcard")
	}
	if !IsWildcardPath(nil, &cl, &attr) {
		t.Error("nil endpoint should be a wildcard")
	}
	if !IsWildcardPath(&ep, nil, &attr) {
		t.Error("nil cluster should be a wildcard")
	}
	if !IsWildcardPath(&ep, &cl, nil) {
		t.Error("nil attribute should be a wildcard")
	}
}
