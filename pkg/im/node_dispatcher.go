package im

import (
	"context"

	"github.com/chip-node/matter-core/pkg/datamodel"
	"github.com/chip-node/matter-core/pkg/tlv"
)

// NodeDispatcher routes IM operations directly against a datamodel.Node,
// resolving the concrete endpoint/cluster named by the request and
// delegating to that cluster's ReadAttribute/WriteAttribute/InvokeCommand.
//
// It only ever sees concrete paths: wildcard expansion happens one layer up,
// in ReadHandler/WriteHandler (Spec 8.2.1.6), before a dispatcher is ever
// called. A path naming an endpoint or cluster the node doesn't have yields
// ErrEndpointNotFound/ErrClusterNotFound rather than reaching into a nil
// cluster.
type NodeDispatcher struct {
	node datamodel.Node
}

// NewNodeDispatcher creates a Dispatcher backed by node.
func NewNodeDispatcher(node datamodel.Node) *NodeDispatcher {
	return &NodeDispatcher{node: node}
}

// resolveCluster looks up the cluster named by endpoint/cluster, returning
// ErrEndpointNotFound or ErrClusterNotFound when either leg of the path is
// absent from the tree.
func (d *NodeDispatcher) resolveCluster(endpoint datamodel.EndpointID, cluster datamodel.ClusterID) (datamodel.Cluster, error) {
	ep := d.node.GetEndpoint(endpoint)
	if ep == nil {
		return nil, ErrEndpointNotFound
	}
	cl := ep.GetCluster(cluster)
	if cl == nil {
		return nil, ErrClusterNotFound
	}
	return cl, nil
}

// ReadAttribute implements Dispatcher.
func (d *NodeDispatcher) ReadAttribute(ctx context.Context, req *AttributeReadRequest, w *tlv.Writer) error {
	dmReq := req.ToDataModelRequest()
	cl, err := d.resolveCluster(dmReq.Path.Endpoint, dmReq.Path.Cluster)
	if err != nil {
		return err
	}
	return cl.ReadAttribute(ctx, dmReq, w)
}

// WriteAttribute implements Dispatcher.
func (d *NodeDispatcher) WriteAttribute(ctx context.Context, req *AttributeWriteRequest, r *tlv.Reader) error {
	dmReq := req.ToDataModelRequest()
	cl, err := d.resolveCluster(dmReq.Path.Endpoint, dmReq.Path.Cluster)
	if err != nil {
		return err
	}
	return cl.WriteAttribute(ctx, dmReq, r)
}

// InvokeCommand implements Dispatcher.
func (d *NodeDispatcher) InvokeCommand(ctx context.Context, req *CommandInvokeRequest, r *tlv.Reader) ([]byte, error) {
	dmReq := req.ToDataModelRequest()
	cl, err := d.resolveCluster(dmReq.Path.Endpoint, dmReq.Path.Cluster)
	if err != nil {
		return nil, err
	}
	return cl.InvokeCommand(ctx, dmReq, r)
}
